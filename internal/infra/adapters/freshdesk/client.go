package freshdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/ports/adapter"
)

var (
	_ adapter.TicketingClient        = (*Client)(nil)
	_ adapter.TicketingClientFactory = (*Factory)(nil)
)

const (
	ticketsPath      = "/api/v2/tickets"
	ticketFieldsPath = "/api/v2/ticket_fields"
	contactsPath     = "/api/v2/contacts"
	agentsPath       = "/api/v2/agents"

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// Factory hands out per-account clients sharing one *http.Client.
type Factory struct {
	http *http.Client
}

func NewFactory(timeout time.Duration) *Factory {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Factory{http: &http.Client{Timeout: timeout}}
}

func (f *Factory) ForAccount(baseURL, apiKey string) adapter.TicketingClient {
	return NewClient(f.http, baseURL, apiKey)
}

// Client talks to one Freshdesk account. Freshdesk uses HTTP basic auth
// with the API key as user name and "X" as password.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(hc *http.Client, baseURL, apiKey string) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
	}
}

// StatusError is a non-2xx response from Freshdesk.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("freshdesk %s %s: http %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return domain.ErrTicketingAPI }

func (c *Client) VerifyCredentials(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, ticketsPath, nil, nil)
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden || se.Code == http.StatusNotFound) {
		return fmt.Errorf("%w: http %d", domain.ErrInvalidCredentials, se.Code)
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
}

func (c *Client) ListTicketFields(ctx context.Context) ([]adapter.TicketField, error) {
	var out []adapter.TicketField
	if err := c.do(ctx, http.MethodGet, ticketFieldsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTicket(ctx context.Context, fields map[string]any) (*adapter.Ticket, error) {
	var out adapter.Ticket
	if err := c.do(ctx, http.MethodPost, ticketsPath, fields, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("%w: create ticket returned no id", domain.ErrTicketingAPI)
	}
	return &out, nil
}

func (c *Client) GetTicket(ctx context.Context, id int64) (*adapter.Ticket, error) {
	var out adapter.Ticket
	if err := c.do(ctx, http.MethodGet, ticketsPath+"/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReplyToTicket(ctx context.Context, id int64, reply map[string]any) error {
	return c.do(ctx, http.MethodPost, ticketsPath+"/"+strconv.FormatInt(id, 10)+"/reply", reply, nil)
}

func (c *Client) ListAgents(ctx context.Context) ([]adapter.Agent, error) {
	var out []adapter.Agent
	if err := c.do(ctx, http.MethodGet, agentsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAgent(ctx context.Context, agent map[string]any) (*adapter.Agent, error) {
	var out adapter.Agent
	if err := c.do(ctx, http.MethodPost, agentsPath, agent, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListContacts(ctx context.Context) ([]adapter.Contact, error) {
	var out []adapter.Contact
	if err := c.do(ctx, http.MethodGet, contactsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateContact(ctx context.Context, contact map[string]any) (*adapter.Contact, error) {
	var out adapter.Contact
	if err := c.do(ctx, http.MethodPost, contactsPath, contact, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends body as JSON when non-nil and decodes a 2xx response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrTicketingAPI, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", domain.ErrTicketingAPI, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncateUTF8(string(data), maxErrorBody)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", domain.ErrTicketingAPI, err)
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
