package storeaccess

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

	"michatta/internal/daemon"
	"michatta/internal/facade"
)

// Caller delivers one facade request and returns its envelope. Transport
// failures are errors; failure envelopes are not.
type Caller interface {
	Call(ctx context.Context, req facade.Request) (facade.Response, error)
}

// ErrDaemonUnavailable reports that no daemon answered at the base URL.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

const (
	defaultHTTPTimeout = 30 * time.Second
	dialTimeout        = 2 * time.Second
)

// HTTPCaller talks to the daemon API.
type HTTPCaller struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPCaller returns a caller for the daemon at baseURL.
func NewHTTPCaller(baseURL, token string) *HTTPCaller {
	return &HTTPCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Dial returns a caller once the daemon has answered a status request.
func Dial(ctx context.Context, baseURL, token string) (*HTTPCaller, error) {
	caller := NewHTTPCaller(baseURL, token)
	statusCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if _, err := caller.Status(statusCtx); err != nil {
		return nil, err
	}
	return caller, nil
}

// Call posts req to /api/storage.
func (c *HTTPCaller) Call(ctx context.Context, req facade.Request) (facade.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return facade.Response{}, fmt.Errorf("encode request: %w", err)
	}
	var resp facade.Response
	if err := c.do(ctx, http.MethodPost, "/api/storage", bytes.NewReader(body), &resp); err != nil {
		return facade.Response{}, err
	}
	return resp, nil
}

// Status fetches the daemon status.
func (c *HTTPCaller) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return daemon.Status{}, err
	}
	return status, nil
}

// Close satisfies the session cleanup contract.
func (c *HTTPCaller) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *HTTPCaller) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope facade.Response
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
		if envelope.Error != "" {
			return fmt.Errorf("daemon returned %s: %s", resp.Status, envelope.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LocalCaller serves calls from an in-process facade.
type LocalCaller struct {
	facade *facade.Facade
}

// NewLocalCaller wraps f.
func NewLocalCaller(f *facade.Facade) *LocalCaller {
	return &LocalCaller{facade: f}
}

// Call dispatches req directly.
func (c *LocalCaller) Call(ctx context.Context, req facade.Request) (facade.Response, error) {
	return c.facade.Call(ctx, req), nil
}
