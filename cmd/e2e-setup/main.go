package main

import (
	"context"
	"flag"
	"log"
	"os"

	"freshdesk-simulator/internal/config"
	"freshdesk-simulator/internal/infra/db/postgres"
	"freshdesk-simulator/internal/infra/redis"
)

// This script resets Postgres and the Redis queue keys to a clean state
// for manual end-to-end testing.
func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schema := flag.String("schema", "deploy/postgres/init.sql", "schema applied after the wipe; empty skips it")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Drop queued jobs, locks, rate-limit counters and roster caches.
	if cfg.Redis.URL != "" {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		log.Printf("[1/3] Wiping Redis keys under %q...", cfg.Queue.KeyPrefix)
		n, err := redisClient.DeletePrefix(ctx, cfg.Queue.KeyPrefix)
		if err != nil {
			log.Fatalf("failed to wipe redis keys: %v", err)
		}
		log.Printf("      removed %d keys", n)
	} else {
		log.Println("[1/3] No redis.url configured; skipping")
	}

	// 2. Apply the schema so a fresh database works too.
	if *schema != "" {
		log.Printf("[2/3] Applying %s...", *schema)
		ddl, err := os.ReadFile(*schema)
		if err != nil {
			log.Fatalf("read schema: %v", err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			log.Fatalf("apply schema: %v", err)
		}
	} else {
		log.Println("[2/3] Schema skipped")
	}

	// 3. Clean the tables completely.
	log.Println("[3/3] Wiping all company data...")
	if _, err := pool.Exec(ctx, `TRUNCATE freshdesk_agents, freshdesk_contacts, freshdesk_config CASCADE;`); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("--- E2E Environment Setup Complete ---")
}
