package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"freshdesk-simulator/internal/domain"
)

const (
	DefaultTicketCreateInterval = 60 // seconds
	DefaultTicketReplyInterval  = 60 // seconds
	DefaultTicketsPerDay        = 10
)

// CompanyConfig is one registered Freshdesk tenant with its throttle parameters.
type CompanyConfig struct {
	ID                   string     `json:"id"`
	CompanyName          string     `json:"companyName"`
	FreshdeskURL         string     `json:"freshdeskUrl"`
	APIKey               string     `json:"-"`
	TicketCreateInterval int        `json:"ticketCreateInterval"`
	TicketReplyInterval  int        `json:"ticketReplyInterval"`
	TicketsPerDay        int        `json:"ticketsPerDay"`
	TicketQuotaCompleted int        `json:"ticketQuotaCompleted"`
	LastTicketCreatedAt  *time.Time `json:"ticketCreatedTime"`
	Active               bool       `json:"isActive"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// NewCompanyConfig validates the URL, derives the company name from the
// Freshdesk host and applies defaults for zero-valued throttle parameters.
// domainSuffix is the host suffix every Freshdesk account must carry.
func NewCompanyConfig(rawURL, apiKey string, createInterval, replyInterval, perDay int, domainSuffix string) (*CompanyConfig, error) {
	u := NormalizeFreshdeskURL(rawURL)
	name, err := CompanyNameFromURL(u, domainSuffix)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if createInterval < 0 || replyInterval < 0 || perDay < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if createInterval == 0 {
		createInterval = DefaultTicketCreateInterval
	}
	if replyInterval == 0 {
		replyInterval = DefaultTicketReplyInterval
	}
	if perDay == 0 {
		perDay = DefaultTicketsPerDay
	}
	return &CompanyConfig{
		ID:                   uuid.NewString(),
		CompanyName:          name,
		FreshdeskURL:         u,
		APIKey:               apiKey,
		TicketCreateInterval: createInterval,
		TicketReplyInterval:  replyInterval,
		TicketsPerDay:        perDay,
		CreatedAt:            time.Now(),
	}, nil
}

// CreateInterval is the minimum spacing between two creation jobs.
func (c *CompanyConfig) CreateInterval() time.Duration {
	return time.Duration(c.TicketCreateInterval) * time.Second
}

// ReplyDelay is how long a reply job waits after its ticket was created.
func (c *CompanyConfig) ReplyDelay() time.Duration {
	return time.Duration(c.TicketReplyInterval) * time.Second
}

// NormalizeFreshdeskURL trims whitespace and trailing slashes.
func NormalizeFreshdeskURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// CompanyNameFromURL returns the first host label of a Freshdesk account URL,
// e.g. "acme" for https://acme.freshdesk.com.
func CompanyNameFromURL(raw, domainSuffix string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", domain.ErrInvalidDomain
	}
	host := strings.ToLower(u.Hostname())
	if domainSuffix != "" && !strings.HasSuffix(host, "."+strings.TrimPrefix(domainSuffix, ".")) {
		return "", domain.ErrInvalidDomain
	}
	name, _, _ := strings.Cut(host, ".")
	if name == "" {
		return "", domain.ErrInvalidDomain
	}
	return name, nil
}
