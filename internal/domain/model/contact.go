package model

import "github.com/google/uuid"

// Contact is a Freshdesk requester owned by a company config.
type Contact struct {
	ID          string `json:"id"`
	ConfigID    string `json:"configId"`
	FreshdeskID int64  `json:"freshdeskUserId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
}

func NewContact(configID string, freshdeskID int64, name, email, phone string) *Contact {
	return &Contact{
		ID:          uuid.NewString(),
		ConfigID:    configID,
		FreshdeskID: freshdeskID,
		Name:        name,
		Email:       email,
		Phone:       phone,
	}
}

// Agent is a Freshdesk agent owned by a company config.
type Agent struct {
	ID          string `json:"id"`
	ConfigID    string `json:"configId"`
	FreshdeskID int64  `json:"freshdeskUserId"`
	Available   bool   `json:"available"`
}

func NewAgent(configID string, freshdeskID int64, available bool) *Agent {
	return &Agent{
		ID:          uuid.NewString(),
		ConfigID:    configID,
		FreshdeskID: freshdeskID,
		Available:   available,
	}
}
