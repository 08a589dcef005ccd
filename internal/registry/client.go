package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nfawbert/switchbridge/internal/infrastructure/config"
)

// apiPath is the fixed path segment appended to the base URL for all
// registry operations.
const apiPath = "/api/v1/"

// Outcome is the business-level result of invoking an action.
//
// A failed invocation is a normal, expected outcome reported by the remote
// service, not a transport error.
type Outcome int

const (
	// OutcomeOK means the remote service reported the action as executed.
	OutcomeOK Outcome = iota

	// OutcomeFailed means the remote service responded but did not report
	// success.
	OutcomeFailed
)

// String returns a human-readable form of the outcome for logging.
func (o Outcome) String() string {
	if o == OutcomeOK {
		return "ok"
	}
	return "failed"
}

// Client issues read (list actions) and write (invoke action) calls against a
// single remote action registry.
//
// The client holds no state beyond its base URL and HTTP transport: every
// call is a fresh request, nothing is cached, and no retries are performed.
// The caller decides how to react to failures.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// listResponse is the wire shape of the registry's action listing.
// The action map is nested as data.data in the response body.
type listResponse struct {
	Data struct {
		Data map[string]string `json:"data"`
	} `json:"data"`
}

// invokeResponse is the wire shape of an invocation response.
type invokeResponse struct {
	Status string `json:"status"`
}

// NewClient creates a registry client from configuration.
//
// The configured base URL has any trailing slashes normalised away before
// the fixed API path segment is appended to it.
func NewClient(cfg config.RegistryConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

// BaseURL returns the normalised base URL of the remote registry.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ActionURL returns the invocation URL for an action key.
// This is the value recorded on an entity at creation time and never
// recomputed afterwards.
func (c *Client) ActionURL(actionID string) string {
	return c.baseURL + apiPath + actionID
}

// ListActions fetches the authoritative action set from the remote registry.
//
// Returns:
//   - map of actionID to display name
//   - error: wrapped ErrUnreachable on transport failure, wrapped
//     ErrProtocol if the response cannot be parsed into the expected shape
func (c *Client) ListActions(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProtocol, resp.StatusCode)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding action list: %w", ErrProtocol, err)
	}
	if body.Data.Data == nil {
		return nil, fmt.Errorf("%w: response missing action map", ErrProtocol)
	}

	return body.Data.Data, nil
}

// Invoke triggers the action behind the given invocation URL.
//
// A non-error HTTP response whose body does not report status "ok" yields
// OutcomeFailed with a nil error: the remote service answered, it just
// declined. Only transport failures produce an error.
func (c *Client) Invoke(ctx context.Context, invokeURL string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, invokeURL, nil)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("building invoke request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	// An undecodable or unexpected body is a failed invocation, not a
	// protocol error: the switch resets on a timer either way and the
	// operator is pointed at the remote service.
	var body invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return OutcomeFailed, nil
	}
	if body.Status != "ok" {
		return OutcomeFailed, nil
	}

	return OutcomeOK, nil
}
