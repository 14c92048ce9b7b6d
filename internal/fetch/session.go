package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 10 << 20

// HTTPError is a non-2xx response. Adapters match on it to drive
// capability-downgrade retries.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status %d fetching %s", e.Status, e.URL)
}

// Session is the shared HTTP boundary for one source: retrying GETs with the
// source's headers, a per-request timeout, and a politeness delay between
// requests. Safe for concurrent use by pipeline workers.
type Session struct {
	client  *http.Client
	headers map[string]string
	retries int

	mu       sync.Mutex
	minGap   time.Duration
	lastReq  time.Time
	override map[string]string
}

func NewSession(headers map[string]string, timeout time.Duration, maxRPS float64) *Session {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var gap time.Duration
	if maxRPS > 0 {
		gap = time.Duration(float64(time.Second) / maxRPS)
	}
	h := map[string]string{}
	for k, v := range headers {
		h[k] = v
	}
	if _, ok := h["User-Agent"]; !ok {
		h["User-Agent"] = "JobHarvest/0.2"
	}
	return &Session{
		client:  &http.Client{Timeout: timeout},
		headers: h,
		retries: 3,
		minGap:  gap,
	}
}

// SetHeader overrides one session header for subsequent requests (warmup
// flows set Referer and Accept this way).
func (s *Session) SetHeader(key, value string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override == nil {
		s.override = map[string]string{}
	}
	s.override[key] = value
}

// Get fetches one URL with bounded retries and backoff. Transient transport
// failures and 5xx are retried; a final non-2xx surfaces as *HTTPError.
func (s *Session) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return s.GetWithParams(ctx, rawURL, nil)
}

// GetWithParams merges query params into the URL before fetching.
func (s *Session) GetWithParams(ctx context.Context, rawURL string, params map[string]string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("nil session")
	}
	target, err := withQuery(rawURL, params)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.politeWait(ctx)

		body, err := s.doGet(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var he *HTTPError
		if asHTTPError(err, &he) && he.Status >= 400 && he.Status < 500 {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(attempt+1)) * time.Millisecond):
		}
	}
	return nil, lastErr
}

// Warmup primes cookies and headers against an entry page before API calls.
// Failures are non-fatal: the caller proceeds and lets the API call decide.
func (s *Session) Warmup(ctx context.Context, warmupURL, referer string) error {
	if s == nil || strings.TrimSpace(warmupURL) == "" {
		return nil
	}
	if referer != "" {
		s.SetHeader("Referer", referer)
	}
	s.SetHeader("Accept", "application/json, text/plain, */*")
	_, err := s.Get(ctx, warmupURL)
	return err
}

func (s *Session) doGet(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	for k, v := range s.override {
		req.Header.Set(k, v)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, URL: target}
	}
	return readAllLimit(resp.Body, maxResponseBytes)
}

func (s *Session) politeWait(ctx context.Context) {
	if s.minGap <= 0 {
		return
	}
	s.mu.Lock()
	wait := s.minGap - time.Since(s.lastReq)
	s.lastReq = time.Now().Add(wait)
	s.mu.Unlock()
	if wait <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func withQuery(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func asHTTPError(err error, target **HTTPError) bool {
	he, ok := err.(*HTTPError)
	if ok {
		*target = he
	}
	return ok
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: max}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if lr.N <= 0 {
		return nil, fmt.Errorf("response too large")
	}
	return b, nil
}
