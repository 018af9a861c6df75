package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apphttp "cassa/internal/http"
)

var errUnauthorized = errors.New("token rejected by server, log in again")

// apiClient talks to the cassa JSON API with a bearer token.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string, hc *http.Client) *apiClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, http: hc}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values, dst any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("GET %s: decode response (status %d): %w", path, resp.StatusCode, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	case resp.StatusCode != http.StatusOK || !env.Success:
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, env.Message)
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(env.Data, dst)
}

// PendingCount satisfies poller.Counter.
func (c *apiClient) PendingCount(ctx context.Context) (int64, error) {
	var out apphttp.PendingCountResponse
	if err := c.get(ctx, "/api/approvals/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Pending, nil
}

// Pending lists the oldest pending expenses first, up to limit.
func (c *apiClient) Pending(ctx context.Context, limit int) ([]apphttp.ExpenseResponse, error) {
	q := url.Values{}
	q.Set("page_size", fmt.Sprint(limit))
	q.Set("sort", "date:asc")
	var out []apphttp.ExpenseResponse
	if err := c.get(ctx, "/api/approvals", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me returns the user the token belongs to.
func (c *apiClient) Me(ctx context.Context) (apphttp.MeResponse, error) {
	var out apphttp.MeResponse
	err := c.get(ctx, "/api/me", nil, &out)
	return out, err
}
