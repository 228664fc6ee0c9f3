package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"freshdesk-simulator/internal/config"
	aiAdapters "freshdesk-simulator/internal/infra/adapters/ai"
	"freshdesk-simulator/internal/infra/adapters/freshdesk"
	pg "freshdesk-simulator/internal/infra/db/postgres"
	"freshdesk-simulator/internal/infra/logging"
	"freshdesk-simulator/internal/infra/memqueue"
	"freshdesk-simulator/internal/infra/security"
	"freshdesk-simulator/internal/usecase"
)

// companiesFile lists accounts to register, e.g.
//
//	companies:
//	  - freshdeskUrl: https://acme.freshdesk.com
//	    apiKey: ${ACME_FRESHDESK_KEY}
//	    ticketsPerDay: 20
type companiesFile struct {
	Companies []struct {
		FreshdeskURL         string `yaml:"freshdeskUrl"`
		APIKey               string `yaml:"apiKey"`
		TicketCreateInterval int    `yaml:"ticketCreateInterval"`
		TicketReplyInterval  int    `yaml:"ticketReplyInterval"`
		TicketsPerDay        int    `yaml:"ticketsPerDay"`
	} `yaml:"companies"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	listPath := flag.String("companies", "companies.yaml", "YAML file with the companies to register")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	raw, err := os.ReadFile(*listPath)
	if err != nil {
		log.Fatalf("read companies: %v", err)
	}
	var list companiesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &list); err != nil {
		log.Fatalf("parse companies: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	cipher, err := security.NewAPIKeyCipher(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("encryption: %v", err)
	}
	configRepo := pg.NewCompanyConfigRepo(pool, cipher)
	contactRepo := pg.NewContactRepo(pool)
	agentRepo := pg.NewAgentRepo(pool)

	generator, err := aiAdapters.NewGenerator(ctx, cfg.AI, logger)
	if err != nil {
		log.Fatalf("text generator: %v", err)
	}
	clients := freshdesk.NewFactory(cfg.Freshdesk.Timeout)
	provisioner := usecase.NewProvisioner(configRepo, contactRepo, agentRepo, clients, generator, logger)
	// Registration never removes, so the reconciler only needs a placeholder queue.
	reconciler := usecase.NewReconciler(configRepo, contactRepo, agentRepo, memqueue.New(time.Minute, nil), pg.NewTxManager(pool), logger)
	companyUC := usecase.NewCompanyUseCase(configRepo, clients, provisioner, reconciler, cfg.Freshdesk.DomainSuffix, logger)

	failed := 0
	for _, c := range list.Companies {
		got, err := companyUC.Create(ctx, usecase.CreateCompanyInput{
			FreshdeskURL:         c.FreshdeskURL,
			APIKey:               c.APIKey,
			TicketCreateInterval: c.TicketCreateInterval,
			TicketReplyInterval:  c.TicketReplyInterval,
			TicketsPerDay:        c.TicketsPerDay,
		})
		if err != nil {
			failed++
			fmt.Printf("failed: %s: %v\n", c.FreshdeskURL, err)
			continue
		}
		fmt.Printf("seeded: %s (id=%s, per_day=%d, create=%ds, reply=%ds, active=%t)\n",
			got.CompanyName, got.ID, got.TicketsPerDay, got.TicketCreateInterval, got.TicketReplyInterval, got.Active)
	}
	if failed > 0 {
		log.Fatalf("%d of %d companies failed", failed, len(list.Companies))
	}
	fmt.Println("Seeding complete.")
}
