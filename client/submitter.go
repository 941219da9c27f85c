// Package client talks to a remote registration service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Symposium/form"
	"Symposium/model"
)

const registerPath = "/api/register"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 10

type registerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPSubmitter posts forms to a registration service's /api/register.
type HTTPSubmitter struct {
	baseURL string
	client  *http.Client
}

// defaultClientTimeout caps a request whose context carries no deadline.
const defaultClientTimeout = time.Minute

// NewHTTPSubmitter returns a submitter for the service at baseURL. A nil
// client is replaced by one capped at defaultClientTimeout; the caller's
// context deadline still applies when it is shorter.
func NewHTTPSubmitter(baseURL string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &HTTPSubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Submit sends f and returns *form.RejectedError when the service answers
// with a failure payload or a non-2xx status.
func (s *HTTPSubmitter) Submit(ctx context.Context, f model.RegistrationForm) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("error encoding registration: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error posting registration: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	var out registerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &form.RejectedError{Status: resp.StatusCode}
		}
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !out.Success {
		return &form.RejectedError{Status: resp.StatusCode, Message: out.Message}
	}
	return nil
}
