package gitlab

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/swpd-platform/glbridge/internal/config"
	"github.com/swpd-platform/glbridge/internal/logging"
)

// Client handles GitLab API operations
type Client struct {
	config config.GitLabConfig
	http   *http.Client
}

// InvocationError reports a request that failed after exhausting its retry
// budget. It names the endpoint and the attempt count.
type InvocationError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("GitLab request failed after %d attempts: %s: %v", e.Attempts, e.Endpoint, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// createHTTPClient creates an HTTP client with custom TLS configuration and
// independent connect and overall timeouts.
func createHTTPClient(cfg config.GitLabConfig) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12, // Enforce TLS 1.2 minimum for security
	}

	// Handle insecure TLS (skip certificate verification)
	if cfg.InsecureTLS {
		tlsConfig.InsecureSkipVerify = true
	}

	// Handle custom CA certificate
	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", cfg.CACertPath, err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", cfg.CACertPath)
		}

		tlsConfig.RootCAs = caCertPool
	}

	transport.TLSClientConfig = tlsConfig

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}, nil
}

// NewClient creates a new GitLab API client
func NewClient(cfg config.GitLabConfig) *Client {
	httpClient, err := createHTTPClient(cfg)
	if err != nil {
		// Fallback to default client if TLS configuration fails
		logging.Warn("Falling back to default HTTP client: %v", err)
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Client{
		config: cfg,
		http:   httpClient,
	}
}

// response is the raw outcome of one successful invocation.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text decodes the response body. Bodies that are not valid UTF-8 fall back
// to latin-1 and finally to lossy replacement; decoding never fails.
func (r *response) Text() string {
	return decodeText(r.Body)
}

// invoke performs one authenticated API call with bounded retries and a
// fixed inter-attempt delay. Any non-2xx status, transport error or timeout
// counts as a failed attempt. Context cancellation aborts further retries.
func (c *Client) invoke(ctx context.Context, method, endpoint string, body interface{}) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
	}

	fullURL := c.config.BaseURL + endpoint
	attempts := c.config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.attempt(ctx, method, fullURL, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			logging.Warn("Attempt %d/%d failed for %s: %v", attempt, attempts, endpoint, err)
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts // No further retries once cancelled
			}
		}
	}

	return nil, &InvocationError{Endpoint: endpoint, Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, fullURL string, payload []byte) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GitLab API error %d: %s", resp.StatusCode, truncate(decodeText(data), 200))
	}

	return &response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Invoke executes a call and classifies the result: structured data when the
// body parses as JSON, otherwise the raw text verbatim (job logs and other
// non-JSON payloads).
func (c *Client) Invoke(ctx context.Context, method, endpoint string, body interface{}) (interface{}, error) {
	resp, err := c.invoke(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	return classify(resp.Body), nil
}

// invokeJSON executes a call and unmarshals the JSON response into out.
func (c *Client) invokeJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	resp, err := c.invoke(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// invokePaginated follows GitLab Link headers, decoding each page into a
// slice of raw JSON values appended to the accumulator.
func (c *Client) invokePaginated(ctx context.Context, endpoint string, collect func([]byte) error) error {
	next := endpoint
	for next != "" {
		resp, err := c.invoke(ctx, http.MethodGet, next, nil)
		if err != nil {
			return err
		}
		if err := collect(resp.Body); err != nil {
			return err
		}
		next = relativeLink(c.config.BaseURL, parseNextLink(resp.Header.Get("Link")))
	}
	return nil
}

// classify returns parsed JSON when the payload is structured, otherwise the
// decoded text.
func classify(data []byte) interface{} {
	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err == nil {
		return parsed
	}
	return decodeText(data)
}

// decodeText converts raw bytes to a string through an ordered fallback
// chain: UTF-8, then latin-1, then lossy replacement. A decoding mismatch
// from the transport must never abort an invocation.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// parseNextLink extracts the "next" page URL from GitLab's Link header
// (RFC 5988: <URL>; rel="next", <URL>; rel="prev"). Returns empty string if
// no next link exists.
func parseNextLink(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}

	for _, link := range strings.Split(linkHeader, ",") {
		link = strings.TrimSpace(link)

		if !strings.Contains(link, `rel="next"`) {
			continue
		}

		startIdx := strings.Index(link, "<")
		endIdx := strings.Index(link, ">")

		if startIdx == -1 || endIdx == -1 || startIdx >= endIdx {
			continue
		}

		return link[startIdx+1 : endIdx]
	}

	return ""
}

// relativeLink strips the base URL from an absolute pagination link so it
// can be fed back through invoke.
func relativeLink(baseURL, link string) string {
	if link == "" {
		return ""
	}
	return strings.TrimPrefix(link, baseURL)
}

// projectSegment renders a project reference for a URL path: numeric IDs
// pass through, namespace paths are percent-encoded.
func projectSegment(project string) string {
	if project == "" {
		return project
	}
	for _, r := range project {
		if r < '0' || r > '9' {
			return url.PathEscape(project)
		}
	}
	return project
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
