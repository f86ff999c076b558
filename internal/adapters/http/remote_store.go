package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

const recordsEndpoint = "/v1/records/"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Config identifies the record service and this client.
type Config struct {
	// ServiceURL is the base URL, without a trailing slash.
	ServiceURL string
	AuthKey    string
	Hostname   string
}

// RemoteStore implements ports.RemoteStore over HTTP.
//
// create, update and delete map to POST, PATCH and DELETE on
// {ServiceURL}/v1/records/{entity}. Every request carries the idempotency
// key in the Idempotency-Key header.
type RemoteStore struct {
	client ports.HTTPClient
	cfg    Config
	logger ports.Logger
}

// NewRemoteStore creates an HTTP remote store.
func NewRemoteStore(client ports.HTTPClient, cfg Config, logger ports.Logger) *RemoteStore {
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	return &RemoteStore{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Perform sends one mutation.
func (s *RemoteStore) Perform(ctx context.Context, kind domain.Kind, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error) {
	method, err := methodFor(kind.Action)
	if err != nil {
		return nil, err
	}

	endpoint := s.cfg.ServiceURL + recordsEndpoint + url.PathEscape(kind.Entity)
	op := method + " " + recordsEndpoint + kind.Entity

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	req.Header.Set("X-Agent-Hostname", s.cfg.Hostname)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// The write may have been applied; the idempotency key makes the retry safe.
		return nil, &domain.ConnectivityError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode/100 == 2 {
		s.logger.Debug("remote write applied",
			ports.String("op", op),
			ports.Int("status", resp.StatusCode))
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		return json.RawMessage(body), nil
	}

	if retryableStatus(resp.StatusCode) {
		return nil, &domain.ConnectivityError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil, &domain.LogicalError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
}

func methodFor(action domain.Action) (string, error) {
	switch action {
	case domain.ActionCreate:
		return http.MethodPost, nil
	case domain.ActionUpdate:
		return http.MethodPatch, nil
	case domain.ActionDelete:
		return http.MethodDelete, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", domain.ErrInvalidOperation, action)
	}
}

// retryableStatus lists the responses that mean "not now" rather than "no".
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// errorMessage extracts the service's message from an error body.
func errorMessage(code int, body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(code)
}
