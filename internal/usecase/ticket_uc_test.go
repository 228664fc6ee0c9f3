//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	"freshdesk-simulator/internal/usecase"
)

func ticketFields() []adapter.TicketField {
	return []adapter.TicketField{
		{Name: "subject", RequiredForCustomers: true},
		{Name: "priority", RequiredForAgents: true, Choices: json.RawMessage(`{"Low":1,"Medium":2,"High":3,"Urgent":4}`)},
		{Name: "status", RequiredForAgents: true, Choices: json.RawMessage(`{"2":["Open","Being Processed"],"3":["Pending","Awaiting your Reply"]}`)},
		{Name: "ticket_type", RequiredForClosure: true, Choices: json.RawMessage(`["Question","Incident"]`)},
		{Name: "group", Choices: json.RawMessage(`{"Billing":7}`)},
	}
}

func TestCreateTicket_NormalizesChoicesAndCountsOnce(t *testing.T) {
	ctx := context.Background()
	configs := NewMockConfigRepo(newConfig("acme"))
	client := &MockTicketingClient{
		ListTicketFieldsFunc: func(ctx context.Context) ([]adapter.TicketField, error) { return ticketFields(), nil },
		CreateTicketFunc: func(ctx context.Context, fields map[string]any) (*adapter.Ticket, error) {
			return &adapter.Ticket{ID: 42}, nil
		},
	}
	gen := &MockGenerator{Responses: []string{"```json\n" +
		`{"subject":"Printer on fire","description":"help","priority":"High","status":"Open","type":"Incident","email":"a@b.io"}` +
		"\n```"}}
	uc := usecase.NewTicketUseCase(configs, &MockClientFactory{Client: client}, gen, newTestLogger())

	created, err := uc.CreateTicket(ctx, "acme")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if created.TicketID != 42 || created.ReplyInterval != 45 {
		t.Fatalf("unexpected result %+v", created)
	}
	if len(client.CreatedTickets) != 1 {
		t.Fatalf("expected one ticket submitted, got %d", len(client.CreatedTickets))
	}
	sent := client.CreatedTickets[0]
	if sent["priority"] != int64(3) {
		t.Errorf("priority: want 3, got %#v", sent["priority"])
	}
	if sent["status"] != int64(2) {
		t.Errorf("status: want 2, got %#v", sent["status"])
	}
	if sent["type"] != "Incident" {
		t.Errorf("type: want Incident, got %#v", sent["type"])
	}

	stored, _ := configs.FindByID(ctx, nil, "acme")
	if configs.IncrementCalls != 1 || stored.TicketQuotaCompleted != 1 {
		t.Fatalf("quota must be incremented exactly once; calls=%d completed=%d", configs.IncrementCalls, stored.TicketQuotaCompleted)
	}

	prompt := gen.Prompts[0]
	if !strings.Contains(prompt, `"priority"`) || !strings.Contains(prompt, `"type"`) {
		t.Errorf("prompt is missing required fields: %s", prompt)
	}
	if strings.Contains(prompt, "Billing") {
		t.Errorf("prompt must only list required fields: %s", prompt)
	}
}

func TestCreateTicket_MalformedGeneration(t *testing.T) {
	configs := NewMockConfigRepo(newConfig("acme"))
	client := &MockTicketingClient{}
	gen := &MockGenerator{Responses: []string{"Sure! Here is your ticket: {subject: nope"}}
	uc := usecase.NewTicketUseCase(configs, &MockClientFactory{Client: client}, gen, newTestLogger())

	_, err := uc.CreateTicket(context.Background(), "acme")
	if !errors.Is(err, domain.ErrMalformedGeneration) {
		t.Fatalf("want ErrMalformedGeneration, got %v", err)
	}
	if len(client.CreatedTickets) != 0 || configs.IncrementCalls != 0 {
		t.Fatal("nothing may be submitted or counted on malformed output")
	}
}

func TestCreateTicket_APIFailureDoesNotCount(t *testing.T) {
	configs := NewMockConfigRepo(newConfig("acme"))
	client := &MockTicketingClient{
		CreateTicketFunc: func(ctx context.Context, fields map[string]any) (*adapter.Ticket, error) {
			return nil, domain.ErrTicketingAPI
		},
	}
	gen := &MockGenerator{Responses: []string{`{"subject":"s","description":"d"}`}}
	uc := usecase.NewTicketUseCase(configs, &MockClientFactory{Client: client}, gen, newTestLogger())

	if _, err := uc.CreateTicket(context.Background(), "acme"); !errors.Is(err, domain.ErrTicketingAPI) {
		t.Fatalf("want ErrTicketingAPI, got %v", err)
	}
	if configs.IncrementCalls != 0 {
		t.Fatal("failed creation must not count against the quota")
	}
}

func TestCreateTicket_IncrementFailureStillSucceeds(t *testing.T) {
	configs := NewMockConfigRepo(newConfig("acme"))
	configs.IncrementQuotaFunc = func(ctx context.Context, tx repository.Tx, id string) error {
		return domain.ErrOperationFailed
	}
	client := &MockTicketingClient{}
	gen := &MockGenerator{Responses: []string{`{"subject":"s"}`}}
	uc := usecase.NewTicketUseCase(configs, &MockClientFactory{Client: client}, gen, newTestLogger())

	if _, err := uc.CreateTicket(context.Background(), "acme"); err != nil {
		t.Fatalf("ticket was created; want success, got %v", err)
	}
}

func TestCreateTicket_UnknownCompany(t *testing.T) {
	uc := usecase.NewTicketUseCase(NewMockConfigRepo(), &MockClientFactory{Client: &MockTicketingClient{}}, &MockGenerator{}, newTestLogger())
	if _, err := uc.CreateTicket(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestReplyToTicket_UsesFirstAgentAndNeverCounts(t *testing.T) {
	configs := NewMockConfigRepo(newConfig("acme"))
	client := &MockTicketingClient{
		GetTicketFunc: func(ctx context.Context, id int64) (*adapter.Ticket, error) {
			return &adapter.Ticket{ID: id, Subject: "Login broken", Description: "cannot log in"}, nil
		},
		ListAgentsFunc: func(ctx context.Context) ([]adapter.Agent, error) {
			a := adapter.Agent{ID: 900}
			a.Contact.Email = "first@acme.io"
			return []adapter.Agent{a, {ID: 901, Email: "second@acme.io"}}, nil
		},
	}
	gen := &MockGenerator{Responses: []string{"```" + `{"body":"<div>Try again</div>","from_email":"made-up@x.io"}` + "```"}}
	factory := &MockClientFactory{Client: client}
	uc := usecase.NewTicketUseCase(configs, factory, gen, newTestLogger())

	if err := uc.ReplyToTicket(context.Background(), "acme", 42); err != nil {
		t.Fatalf("ReplyToTicket: %v", err)
	}
	if len(client.Replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(client.Replies))
	}
	reply := client.Replies[0]
	if reply["from_email"] != "first@acme.io" || reply["user_id"] != int64(900) {
		t.Fatalf("sender must come from the first agent, got %v", reply)
	}
	if configs.IncrementCalls != 0 {
		t.Fatal("replies must never touch the quota")
	}
	if !strings.Contains(gen.Prompts[0], "Login broken") {
		t.Errorf("reply prompt should quote the ticket subject: %s", gen.Prompts[0])
	}
	if factory.Keys[0] != "key-acme" {
		t.Errorf("client must use the stored key, got %q", factory.Keys[0])
	}
}

func TestReplyToTicket_NoAgents(t *testing.T) {
	configs := NewMockConfigRepo(newConfig("acme"))
	client := &MockTicketingClient{}
	gen := &MockGenerator{Responses: []string{`{"body":"hi"}`}}
	uc := usecase.NewTicketUseCase(configs, &MockClientFactory{Client: client}, gen, newTestLogger())

	if err := uc.ReplyToTicket(context.Background(), "acme", 7); !errors.Is(err, domain.ErrNoAgents) {
		t.Fatalf("want ErrNoAgents, got %v", err)
	}
	if len(client.Replies) != 0 {
		t.Fatal("no reply may be sent without an agent")
	}
}

func TestReplyToTicket_MissingTicketID(t *testing.T) {
	uc := usecase.NewTicketUseCase(NewMockConfigRepo(newConfig("acme")), &MockClientFactory{Client: &MockTicketingClient{}}, &MockGenerator{}, newTestLogger())
	if err := uc.ReplyToTicket(context.Background(), "acme", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
