// Package fetch retrieves raw feed payloads over HTTP. It performs no
// parsing and no storage: one GET per source, each independently bounded
// by the configured timeout, all outstanding requests concurrent.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	userAgent    = "moccasin/1.0"
	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

// ErrorKind classifies a transport failure.
type ErrorKind int

const (
	// KindTimeout is a deadline expiring before the response completed.
	KindTimeout ErrorKind = iota
	// KindConnection is a network-level failure (DNS, refused, reset).
	KindConnection
	// KindHTTPStatus is a non-2xx response; Status carries the code.
	KindHTTPStatus
	// KindDecode is a failure reading the response body.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection error"
	case KindHTTPStatus:
		return "http status error"
	case KindDecode:
		return "decode error"
	}
	return "transport error"
}

// Error is a typed per-source transport failure.
type Error struct {
	URL    string
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: %s (%d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same request could plausibly
// succeed. Client errors (4xx) are considered permanent.
func (e *Error) Temporary() bool {
	if e.Kind == KindHTTPStatus {
		return e.Status >= 500
	}
	return e.Kind != KindDecode
}

// Result pairs one source URL with either its raw payload or its failure.
type Result struct {
	URL  string
	Body []byte
	Err  error
}

type acceptTransport struct {
	base http.RoundTripper
}

func (t acceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", acceptHeader)
	}
	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", userAgent)
	}
	return base.RoundTrip(clone)
}

// Fetcher issues bounded, concurrent feed retrievals.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// New returns a Fetcher whose individual requests are bounded by timeout.
// A zero timeout means no per-request bound beyond the caller's context.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Transport: acceptTransport{base: http.DefaultTransport}},
		timeout: timeout,
	}
}

// Fetch retrieves one source. Failures come back as *Error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Kind: KindConnection, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{URL: url, Kind: KindHTTPStatus, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e := classify(url, err)
		if e.Kind == KindConnection {
			e.Kind = KindDecode
		}
		return nil, e
	}
	return body, nil
}

// FetchAll retrieves every source concurrently. One source's failure never
// blocks or fails another's request; results arrive in input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		i, url := i, url
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := f.Fetch(ctx, url)
			results[i] = Result{URL: url, Body: body, Err: err}
		}()
	}
	wg.Wait()
	return results
}

func classify(url string, err error) *Error {
	kind := KindConnection
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindTimeout
	default:
		var timeoutErr interface{ Timeout() bool }
		if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
			kind = KindTimeout
		}
	}
	return &Error{URL: url, Kind: kind, Err: err}
}
