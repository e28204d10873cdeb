// Package front talks to the PluralKit compatible front tracking API: who
// is currently fronting, and logging a switch when a keyboard asks for one.
package front

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.pluralkit.me/v1"

var (
	// ErrNotFound means the system or member id does not exist.
	ErrNotFound = errors.New("front service: not found")

	// ErrUnauthorized means the request needs a valid token.
	ErrUnauthorized = errors.New("front service: unauthorized")

	// ErrAlreadyFronting means the requested switch matches the current
	// fronters. The service rejects the duplicate switch; for us it is an
	// expected outcome, not a failure.
	ErrAlreadyFronting = errors.New("front service: members already fronting")
)

// Member is the service's view of one system member.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Fronters is the current switch: who is in front and since when.
type Fronters struct {
	Timestamp time.Time `json:"timestamp"`
	Members   []Member  `json:"members"`
}

// Options configures a Client. Zero values fall back to the public API
// with no authentication.
type Options struct {
	BaseURL    string
	GatewayURL string // optional local gateway for cached reads
	SystemID   string
	Token      string
	Timeout    time.Duration
}

// Client is a small REST wrapper around the front tracking API. Methods are
// blocking; the poll loop calls them at its own cadence.
type Client struct {
	baseURL    string
	gatewayURL string
	systemID   string
	token      string
	http       *http.Client

	warnNoGateway sync.Once
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    opts.BaseURL,
		gatewayURL: opts.GatewayURL,
		systemID:   opts.SystemID,
		token:      opts.Token,
		http:       &http.Client{Timeout: opts.Timeout},
	}
}

// Fronters fetches the current switch from the main API.
func (c *Client) Fronters(ctx context.Context) (Fronters, error) {
	return c.getFronters(ctx, c.baseURL)
}

// CachedFronters fetches the current switch from the local gateway, which
// serves a cached copy without burning public API rate limit. Without a
// configured gateway it falls back to the main API.
func (c *Client) CachedFronters(ctx context.Context) (Fronters, error) {
	if c.gatewayURL == "" {
		c.warnNoGateway.Do(func() {
			log.Println("[Front] No gateway configured, using the public API for fronter polling.")
		})
		return c.getFronters(ctx, c.baseURL)
	}
	return c.getFronters(ctx, c.gatewayURL)
}

// SetFronters logs a switch to the given members. A nil or empty list logs
// a switch-out. ErrAlreadyFronting reports the service refusing a switch
// identical to the current one.
func (c *Client) SetFronters(ctx context.Context, memberIDs []string) error {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	body, err := json.Marshal(map[string][]string{"members": memberIDs})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/s/switches", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("front service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return ErrAlreadyFronting
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	}
	return fmt.Errorf("front service: unexpected status %s", resp.Status)
}

func (c *Client) getFronters(ctx context.Context, base string) (Fronters, error) {
	url := fmt.Sprintf("%s/s/%s/fronters", base, c.systemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fronters{}, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Fronters{}, fmt.Errorf("front service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Fronters{}, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Fronters{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return Fronters{}, fmt.Errorf("front service: unexpected status %s", resp.Status)
	}

	var fronters Fronters
	if err := json.NewDecoder(resp.Body).Decode(&fronters); err != nil {
		return Fronters{}, fmt.Errorf("front service: decode: %w", err)
	}
	return fronters, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
}
