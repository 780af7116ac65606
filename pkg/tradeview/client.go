// Package tradeview is a Go client for the tradeview-server REST API.
package tradeview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the tradeview-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tradeview API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tradeview api: %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Health is the payload of GET /api/health.
type Health struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Strategies int    `json:"strategies"`
}

// Strategy describes one registered strategy.
type Strategy struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Description   string         `json:"description"`
	Tags          []string       `json:"tags"`
	DefaultParams map[string]any `json:"default_params"`
}

// BacktestRequest is the body of POST /api/backtest. Dates are YYYY-MM-DD.
type BacktestRequest struct {
	Strategy       string         `json:"strategy,omitempty"`
	Symbol         string         `json:"symbol,omitempty"`
	StartDate      string         `json:"start_date,omitempty"`
	EndDate        string         `json:"end_date,omitempty"`
	InitialCapital float64        `json:"initial_capital,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	ConfigID       string         `json:"config_id,omitempty"`
}

// BacktestResult carries the persisted run ID and the raw report JSON.
type BacktestResult struct {
	RunID  string          `json:"run_id"`
	Report json.RawMessage `json:"report"`
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListStrategies returns every registered strategy.
func (c *Client) ListStrategies(ctx context.Context) ([]Strategy, error) {
	var out []Strategy
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSymbols returns the symbols the server can backtest.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/api/symbols", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunBacktest runs one backtest on the server.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var out BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRun returns the stored report of a previous run.
func (c *Client) GetRun(ctx context.Context, id string) (json.RawMessage, error) {
	var out struct {
		Report json.RawMessage `json:"report"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Report, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "undecodable response: " + err.Error()}
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}
