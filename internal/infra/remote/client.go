package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"order-service/internal/pkg/errs"
)

// caller combines a circuit breaker with a retry policy. The breaker sees only
// transport outcomes: a rejection proves the dependency reachable and counts
// as success.
type caller struct {
	name    string
	breaker *CircuitBreaker
	retry   RetryPolicy
}

func (c *caller) call(ctx context.Context, fn func() error) error {
	if !c.breaker.CanExecute() {
		return Unreachable(nil, c.name+" circuit breaker is open")
	}

	err := c.retry.Do(ctx, fn)
	switch {
	case err == nil:
		c.breaker.RecordSuccess()
		return nil
	case IsUnreachable(err):
		c.breaker.RecordFailure()
		return err
	case IsRejected(err):
		c.breaker.RecordSuccess()
		return err
	default:
		// Context cancellation says nothing about the dependency's health.
		return err
	}
}

type httpClient struct {
	base string
	http *http.Client
}

// do executes the request and returns the status code and raw body. Transport
// failures, unreadable bodies and 5xx responses come back as Unreachable;
// interpreting 4xx bodies stays with the caller.
func (c *httpClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errs.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, nil, errs.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, Unreachable(err, "request to "+req.URL.Host+" failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, Unreachable(err, "failed to read response from "+req.URL.Host)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, raw, Unreachable(nil, req.URL.Host+" returned status "+resp.Status)
	}

	return resp.StatusCode, raw, nil
}

func decodeInto(raw []byte, host string, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return Unreachable(err, "malformed response from "+host)
	}
	return nil
}

// errorDetail is the {"detail": "..."} error body the downstream services use.
type errorDetail struct {
	Detail string `json:"detail"`
}

func rejectionFromBody(raw []byte, status int) error {
	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		return Rejected(detail.Detail)
	}
	return Rejectedf("request rejected with status %d", status)
}
