// Package client provides typed HTTP clients for the service chain:
// storage (row lookup), collector (feature assembly), and the model service.
//
// Every call carries a bounded timeout and maps failures to a distinguishable
// error kind: timeouts, unreachable dependencies, and upstream-reported
// errors each keep their identity across hops instead of collapsing into a
// generic status string.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// healthTimeout bounds optional health probes; they degrade to
// "unavailable" instead of failing their parent request.
const healthTimeout = 5 * time.Second

// DependencyTimeoutError reports a collaborator call that exceeded its
// bounded timeout. Callers may retry; the clients themselves never do.
type DependencyTimeoutError struct {
	Dep string
}

func (e *DependencyTimeoutError) Error() string {
	return fmt.Sprintf("%s did not respond in time", e.Dep)
}

// DependencyUnavailableError reports a collaborator that is unreachable or
// returned a malformed payload.
type DependencyUnavailableError struct {
	Dep string
	Err error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dep, e.Err)
}

func (e *DependencyUnavailableError) Unwrap() error { return e.Err }

// UpstreamError carries a typed failure reported by a collaborator, so the
// original kind and HTTP status survive re-rendering at the next hop.
type UpstreamError struct {
	Dep        string
	StatusCode int
	Kind       string
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s reported %s: %s", e.Dep, e.Kind, e.Message)
}

// errorEnvelope is the error body every service in the chain produces.
type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// caller wraps one collaborator's base URL with timeout and error mapping.
type caller struct {
	baseURL string
	dep     string
	http    *http.Client
	timeout time.Duration
}

func newCaller(baseURL, dep string, timeout time.Duration) caller {
	return caller{
		baseURL: strings.TrimRight(baseURL, "/"),
		dep:     dep,
		http:    &http.Client{},
		timeout: timeout,
	}
}

// getJSON performs a GET with the caller's timeout and decodes the response
// body into out.
func (c *caller) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, u, nil, out, c.timeout)
}

// postJSON performs a POST with a JSON body and the caller's timeout.
func (c *caller) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.dep, err)
	}
	return c.doJSON(ctx, http.MethodPost, c.baseURL+path, payload, out, c.timeout)
}

func (c *caller) doJSON(ctx context.Context, method, u string, body []byte, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.dep, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &DependencyTimeoutError{Dep: c.dep}
		}
		return &DependencyUnavailableError{Dep: c.dep, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.upstreamError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DependencyUnavailableError{Dep: c.dep, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *caller) upstreamError(resp *http.Response) error {
	var env errorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &env); err != nil || env.Status == "" {
		env.Status = "dependency_error"
		env.Message = strings.TrimSpace(string(raw))
	}
	return &UpstreamError{
		Dep:        c.dep,
		StatusCode: resp.StatusCode,
		Kind:       env.Status,
		Message:    env.Message,
	}
}

// health probes the collaborator's /health endpoint. Probe failures degrade
// to "unavailable" rather than becoming errors.
func (c *caller) health(ctx context.Context) string {
	var body struct {
		Status string `json:"status"`
	}
	probe := caller{baseURL: c.baseURL, dep: c.dep, http: c.http, timeout: healthTimeout}
	if err := probe.getJSON(ctx, "/health", nil, &body); err != nil {
		return "unavailable"
	}
	if body.Status == "" {
		return "unknown"
	}
	return body.Status
}
