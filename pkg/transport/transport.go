package transport

import (
	"context"
	"fmt"
)

// Transport sends encoded protocol messages and fetches documents.
// Implementations must be safe for sequential use by one session;
// HTTPTransport is additionally safe for concurrent sessions.
type Transport interface {
	// Register performs the one-time device registration call.
	Register(ctx context.Context, deviceID string) error

	// Send posts an encoded message to the given URL and returns the
	// raw encoded response bytes.
	Send(ctx context.Context, url string, body []byte) ([]byte, error)

	// FetchDocument retrieves a descriptor document. An absent document
	// (404, empty body) is reported as an empty string with a nil
	// error - absence is an expected outcome, not a failure.
	FetchDocument(ctx context.Context, uri string) (string, error)
}

// HTTPError reports a non-success HTTP response.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s", e.Status)
}
