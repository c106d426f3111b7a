package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/omadm-protocol/omadm-go/pkg/wire"
)

// Defaults applied by NewHTTP when the config leaves them zero.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultRetryWindow = 15 * time.Second
	DefaultUserAgent   = "omadm-go/1.0"
)

// Config configures an HTTPTransport.
type Config struct {
	// RegisterURL is the endpoint for the one-time registration call.
	RegisterURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each individual HTTP request.
	Timeout time.Duration

	// RetryWindow bounds the total time spent retrying a transient
	// failure (network error or 5xx). Zero means DefaultRetryWindow;
	// negative disables retries.
	RetryWindow time.Duration

	// Client overrides the underlying HTTP client (e.g. for custom TLS).
	Client *http.Client
}

// HTTPTransport implements Transport over HTTP(S).
type HTTPTransport struct {
	cfg    Config
	client *http.Client
}

// Compile-time interface satisfaction check.
var _ Transport = (*HTTPTransport)(nil)

// NewHTTP creates an HTTPTransport with defaults applied.
func NewHTTP(cfg Config) *HTTPTransport {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryWindow == 0 {
		cfg.RetryWindow = DefaultRetryWindow
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPTransport{cfg: cfg, client: client}
}

// Register posts the device identity to the registration endpoint.
func (t *HTTPTransport) Register(ctx context.Context, deviceID string) error {
	if t.cfg.RegisterURL == "" {
		return fmt.Errorf("no registration endpoint configured")
	}

	form := url.Values{"deviceId": {deviceID}}
	err := t.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.RegisterURL,
			strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", t.cfg.UserAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		return statusError(resp)
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return nil
}

// Send posts an encoded message and returns the raw response bytes.
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	var out []byte
	err := t.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
			bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", wire.MediaType)
		req.Header.Set("Accept", wire.MediaType)
		req.Header.Set("User-Agent", t.cfg.UserAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := statusError(resp); err != nil {
			io.Copy(io.Discard, resp.Body)
			return err
		}

		out, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("send to %s failed: %w", endpoint, err)
	}
	return out, nil
}

// FetchDocument retrieves a descriptor document as text. A 404 response
// or an empty body yields ("", nil).
func (t *HTTPTransport) FetchDocument(ctx context.Context, uri string) (string, error) {
	var out string
	err := t.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", t.cfg.UserAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			io.Copy(io.Discard, resp.Body)
			out = ""
			return nil
		}
		if err := statusError(resp); err != nil {
			io.Copy(io.Discard, resp.Body)
			return err
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = string(data)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch of %s failed: %w", uri, err)
	}
	return out, nil
}

// retry runs op with exponential backoff for transient failures.
// Client errors (4xx) are permanent; network errors and 5xx retry until
// the configured window elapses.
func (t *HTTPTransport) retry(ctx context.Context, op backoff.Operation) error {
	if t.cfg.RetryWindow < 0 {
		return op()
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = t.cfg.RetryWindow
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// statusError converts a non-2xx response to an *HTTPError.
// 5xx is retryable, 4xx is permanent.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 500:
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	case resp.StatusCode >= 400:
		return backoff.Permanent(&HTTPError{StatusCode: resp.StatusCode, Status: resp.Status})
	default:
		return nil
	}
}
