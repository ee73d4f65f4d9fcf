// Package client holds one HTTP adapter per downstream system. Every
// request goes through the adapter's circuit breaker; a nil response
// from the breaker surfaces as domain.ErrUnavailable (or a placeholder
// record on the read paths that degrade instead of failing).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bookrent/gateway/internal/breaker"
	"github.com/bookrent/gateway/internal/logger"
)

// userNameHeader carries the authenticated username to backends that
// scope their data per user.
const userNameHeader = "X-User-Name"

// Options configures a downstream client.
type Options struct {
	// BaseURL is the backend root, e.g. "http://library:8060".
	BaseURL string
	// ConnectTimeout bounds the TCP dial. Default: 3s.
	ConnectTimeout time.Duration
	// RequestTimeout bounds the whole exchange. Default: 10s.
	RequestTimeout time.Duration
	// Breaker guards every call this client makes.
	Breaker *breaker.CircuitBreaker
	// Logger receives request failures.
	Logger *logger.Logger
}

// base is the breaker-wrapped HTTP core shared by the three adapters.
type base struct {
	baseURL string
	http    *http.Client
	cb      *breaker.CircuitBreaker
	log     *logger.Logger
}

func newBase(opts Options) base {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 3 * time.Second
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	// The dial timeout is separate from the overall budget so the
	// breaker can classify connect timeouts; the dialer retries the
	// connect once within the request budget.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConnsPerHost: 16,
	}

	return base{
		baseURL: opts.BaseURL,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		cb:  opts.Breaker,
		log: log,
	}
}

// do issues one request through the circuit breaker. A nil return means
// the dependency is unavailable right now; the caller decides whether
// that degrades or fails.
func (b *base) do(ctx context.Context, method, path string, query url.Values, username string, body any) *http.Response {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			b.log.Error(fmt.Sprintf("failed to encode request body: %v", err))
			return nil
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	reqURL := b.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		b.log.Error(fmt.Sprintf("failed to build request: %v", err))
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if username != "" {
		req.Header.Set(userNameHeader, username)
	}

	return b.cb.Execute(func() (*http.Response, error) {
		return b.http.Do(req)
	})
}

// decode reads and closes the response body into dst.
func decode(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// drain discards and closes a response body the caller does not need.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = resp.Body.Read(make([]byte, 512))
	_ = resp.Body.Close()
}
