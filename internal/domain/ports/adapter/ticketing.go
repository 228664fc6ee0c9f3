package adapter

import (
	"context"
	"encoding/json"
)

// TicketField is the metadata Freshdesk exposes for one ticket field.
type TicketField struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	Label                string          `json:"label"`
	Type                 string          `json:"type"`
	RequiredForAgents    bool            `json:"required_for_agents"`
	RequiredForCustomers bool            `json:"required_for_customers"`
	RequiredForClosure   bool            `json:"required_for_closure"`
	Choices              json.RawMessage `json:"choices,omitempty"`
}

// Required reports whether any Freshdesk requirement flag is set.
func (f TicketField) Required() bool {
	return f.RequiredForAgents || f.RequiredForCustomers || f.RequiredForClosure
}

// HasChoices reports whether the field carries a non-empty choice set.
func (f TicketField) HasChoices() bool {
	switch string(f.Choices) {
	case "", "null", "[]", "{}":
		return false
	}
	return true
}

type Ticket struct {
	ID          int64  `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description_text"`
	// DescriptionHTML is Freshdesk's "description" field.
	DescriptionHTML string `json:"description"`
}

// Text returns the plain description, falling back to the HTML body.
func (t Ticket) Text() string {
	if t.Description != "" {
		return t.Description
	}
	return t.DescriptionHTML
}

type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Agent struct {
	ID        int64  `json:"id"`
	Available bool   `json:"available"`
	Email     string `json:"email,omitempty"`
	Contact   struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"contact"`
}

// SenderEmail prefers the agent's contact email.
func (a Agent) SenderEmail() string {
	if a.Contact.Email != "" {
		return a.Contact.Email
	}
	return a.Email
}

// TicketingClient is an authenticated client for one company's Freshdesk account.
type TicketingClient interface {
	VerifyCredentials(ctx context.Context) error
	ListTicketFields(ctx context.Context) ([]TicketField, error)
	CreateTicket(ctx context.Context, fields map[string]any) (*Ticket, error)
	GetTicket(ctx context.Context, id int64) (*Ticket, error)
	ReplyToTicket(ctx context.Context, id int64, reply map[string]any) error
	ListAgents(ctx context.Context) ([]Agent, error)
	CreateAgent(ctx context.Context, agent map[string]any) (*Agent, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	CreateContact(ctx context.Context, contact map[string]any) (*Contact, error)
}

// TicketingClientFactory builds a client keyed by a stored URL and API key.
type TicketingClientFactory interface {
	ForAccount(baseURL, apiKey string) TicketingClient
}
