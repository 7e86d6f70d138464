package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// internalClient calls sibling services that share the internal API key
type internalClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newInternalClient(name, baseURL, apiKey string, timeout time.Duration) internalClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return internalClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CollaboratorError reports a non-2xx answer from a sibling service
type CollaboratorError struct {
	Service    string
	Path       string
	StatusCode int
	Body       string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: status %d for %s: %s", e.Service, e.StatusCode, e.Path, e.Body)
}

// collaboratorEnvelope mirrors the {data, message, error} shape every service answers with
type collaboratorEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c internalClient) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &CollaboratorError{Service: c.name, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}

	var env collaboratorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", c.name, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", c.name, err)
	}
	return nil
}
