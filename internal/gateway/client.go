// Package gateway implements the HTTP client for the external payment
// processor. It creates PIX and card payments, polls payment status, and
// maps the gateway's status vocabulary onto the internal contribution
// statuses.
//
// Clients are constructed explicitly from a resolved credential and passed
// in by the caller; there is no package-level singleton. All outbound calls
// carry a bounded timeout and surface failures as typed errors.
package gateway

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

	"github.com/google/uuid"
)

// DefaultBaseURL is the production gateway endpoint. Tests and development
// point Config.BaseURL at an httptest server instead.
const DefaultBaseURL = "https://api.mercadopago.com"

// defaultTimeout bounds every outbound gateway call.
const defaultTimeout = 10 * time.Second

// defaultPixExpiry is the registry's own business rule for how long a PIX
// charge stays payable. It is enforced locally and sent to the gateway as
// the charge expiration.
const defaultPixExpiry = 30 * time.Minute

// ErrNotConfigured indicates no gateway credential is available. Callers
// degrade to a mock payment (see MockPixPayment) instead of failing hard,
// so the funding flow stays testable without real gateway access.
var ErrNotConfigured = errors.New("gateway: access token not configured")

// APIError is a non-2xx response from the gateway, kept distinct from
// validation errors so handlers can translate it appropriately.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: api error (status %d): %s", e.StatusCode, e.Message)
}

// Config carries the constructor inputs for Client.
type Config struct {
	// AccessToken authenticates outbound calls. Required.
	AccessToken string
	// BaseURL overrides the gateway endpoint; empty means DefaultBaseURL.
	BaseURL string
	// NotificationURL is the absolute webhook callback URL registered on
	// every payment so the gateway can notify this system.
	NotificationURL string
	// Timeout bounds each outbound call; zero means a 10s default.
	Timeout time.Duration
	// PixExpiry is how long a PIX charge stays payable; zero means 30m.
	PixExpiry time.Duration
}

// Client talks to the payment gateway. It is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	accessToken     string
	notificationURL string
	pixExpiry       time.Duration
}

// NewClient builds a Client from cfg. It returns ErrNotConfigured when the
// access token is empty; callers decide whether to fall back to the mock.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrNotConfigured
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	expiry := cfg.PixExpiry
	if expiry <= 0 {
		expiry = defaultPixExpiry
	}
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimRight(base, "/"),
		accessToken:     cfg.AccessToken,
		notificationURL: cfg.NotificationURL,
		pixExpiry:       expiry,
	}, nil
}

// do performs an authenticated JSON round trip and decodes the payment
// response. Non-2xx responses become *APIError; transport failures are
// wrapped with op for context.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (*Payment, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		// Gateway-side dedup for retried creates.
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(raw)}
	}

	payment, err := decodePayment(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: decode response: %w", op, err)
	}
	return payment, nil
}

// apiErrorMessage pulls the human-readable message out of an error payload,
// falling back to the raw body when it is not the expected JSON shape.
func apiErrorMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}

// splitName separates a full name into the first/last fields the gateway
// expects. A single token yields an empty last name.
func splitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// formatID renders the gateway's numeric payment id as a string, which is
// how it is stored locally and matched against webhook notifications.
func formatID(id int64) string { return strconv.FormatInt(id, 10) }
