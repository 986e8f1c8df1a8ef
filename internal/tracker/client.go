// Package tracker is a Jira REST v2 client for creating and linking work
// items.
//
// Every request authenticates with the account email and API token. A
// non-2xx response is returned as a *TrackerError carrying the status code
// and the decoded response body. Tracker calls are never retried.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultEpicNameField = "customfield_10014"
	defaultEpicLinkField = "customfield_10014"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Email      string
	APIToken   string `json:"-"`
	ProjectKey string
	// EpicNameField is the custom field holding an epic's name.
	EpicNameField string
	// EpicLinkField is the custom field a story uses to point at its epic.
	EpicLinkField string
	Timeout       time.Duration
}

// Validate reports missing connection settings.
func (c Config) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "base url")
	}
	if c.Email == "" {
		missing = append(missing, "email")
	}
	if c.APIToken == "" {
		missing = append(missing, "api token")
	}
	if c.ProjectKey == "" {
		missing = append(missing, "project key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("tracker config missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Client talks to one Jira project.
type Client struct {
	baseURL       string
	email         string
	token         string
	projectKey    string
	epicNameField string
	epicLinkField string
	httpClient    *http.Client
	logger        *zap.Logger
}

// New creates a Client for cfg.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger is required for tracker client")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.EpicNameField == "" {
		cfg.EpicNameField = defaultEpicNameField
	}
	if cfg.EpicLinkField == "" {
		cfg.EpicLinkField = defaultEpicLinkField
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		email:         cfg.Email,
		token:         cfg.APIToken,
		projectKey:    cfg.ProjectKey,
		epicNameField: cfg.EpicNameField,
		epicLinkField: cfg.EpicLinkField,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        logger.Named("tracker"),
	}, nil
}

// BrowseURL returns the web address of the issue with key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// ProjectKey returns the project items are created in.
func (c *Client) ProjectKey() string { return c.projectKey }

// do sends body (if any) as JSON and decodes a JSON response into out (if
// any). ok lists the status codes counted as success besides 200.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any, ok ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TrackerError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TrackerError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("tracker request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if !successful(resp.StatusCode, ok) {
		return newTrackerError(op, resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &TrackerError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func successful(status int, ok []int) bool {
	if status == http.StatusOK {
		return true
	}
	for _, s := range ok {
		if s == status {
			return true
		}
	}
	return false
}
