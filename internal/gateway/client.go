// Package gateway is the HTTP client for the delivery note backend. All
// failures come back as explicit error values from the taxonomy in
// errors.go; nothing in here panics across the boundary or retries on its
// own.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxResponseSize caps how much of a backend response is read (4MB).
const maxResponseSize = 4 * 1024 * 1024

// Session is the explicit per-caller context for backend access: where to
// call and which bearer token to present. It replaces ambient globals so
// tests and the CLI can inject their own.
type Session struct {
	BaseURL string
	Token   string
}

// Client defines the backend gateway operations
type Client interface {
	FetchSnapshot(ctx context.Context, noDN string) (*Snapshot, error)
	SubmitQuantities(ctx context.Context, cmd UpdateCommand) (*Snapshot, error)
	UpdateDriverInfo(ctx context.Context, noDN, driverName, platNumber string) error
}

// HTTPClient implements Client over HTTP
type HTTPClient struct {
	session    Session
	httpClient *http.Client
	log        *logrus.Logger
}

// NewHTTPClient creates a gateway client with a hard request timeout.
// A request that exceeds the timeout surfaces as a NetworkError.
func NewHTTPClient(session Session, timeout time.Duration, log *logrus.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		session: session,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// FetchSnapshot fetches the authoritative snapshot for a delivery note.
func (c *HTTPClient) FetchSnapshot(ctx context.Context, noDN string) (*Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/dn/detail/"+url.PathEscape(noDN), noDN, nil)
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, &NetworkError{Op: "fetch snapshot", Err: err}
	}
	return snap, nil
}

// SubmitQuantities submits one batch of per-line quantities and returns the
// new authoritative snapshot.
func (c *HTTPClient) SubmitQuantities(ctx context.Context, cmd UpdateCommand) (*Snapshot, error) {
	body, err := c.do(ctx, http.MethodPut, "/dn/update", cmd.NoDN, cmd)
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, &NetworkError{Op: "submit quantities", Err: err}
	}
	return snap, nil
}

// UpdateDriverInfo persists driver name and plate. The plate is transmitted
// without spaces; callers normalize before handing it over.
func (c *HTTPClient) UpdateDriverInfo(ctx context.Context, noDN, driverName, platNumber string) error {
	payload := driverInfoPayload{
		NoDN:       noDN,
		DriverName: driverName,
		PlatNumber: platNumber,
	}
	_, err := c.do(ctx, http.MethodPut, "/dn/update/driver-info", noDN, payload)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path, noDN string, payload interface{}) ([]byte, error) {
	op := fmt.Sprintf("%s %s", method, path)

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &NetworkError{Op: op, Err: errors.Wrap(err, "failed to encode request body")}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.session.BaseURL+path, reqBody)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: errors.Wrap(err, "failed to build request")}
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.WithError(err).WithField("op", op).Warn("Backend request failed")
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: errors.Wrap(err, "failed to read response body")}
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return body, nil
	case res.StatusCode == http.StatusConflict:
		return nil, &ConflictError{NoDN: noDN}
	default:
		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"op":     op,
				"status": res.StatusCode,
			}).Warn("Backend returned error status")
		}
		return nil, &NetworkError{Op: op, StatusCode: res.StatusCode}
	}
}
