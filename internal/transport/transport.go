// Package transport implements the Upstream Transport (C8): single-shot
// and SSE calls to the CodeAssist backend over either a TLS-fingerprinting
// dialer or a standard net/http client, with transparent brotli/gzip
// response decoding and upstream error classification.
package transport

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"
)

// ErrorKind classifies a non-2xx upstream response.
type ErrorKind string

const (
	KindRetryableRateLimit ErrorKind = "retryable_rate_limit"
	KindCapacityExhausted  ErrorKind = "capacity_exhausted"
	KindNoPermission       ErrorKind = "no_permission"
	KindContextTooLong     ErrorKind = "context_too_long"
	KindAuthNeeded         ErrorKind = "auth_needed"
	KindOther              ErrorKind = "other"
)

// UpstreamError is the normalized shape every failed call returns.
type UpstreamError struct {
	StatusCode int
	BodyText   string
	Kind       ErrorKind
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: %s (status %d): %s", e.Kind, e.StatusCode, truncate(e.BodyText, 300))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func classify(statusCode int, body string) ErrorKind {
	switch statusCode {
	case 429:
		return KindRetryableRateLimit
	case 503:
		if strings.Contains(body, "MODEL_CAPACITY_EXHAUSTED") {
			return KindCapacityExhausted
		}
		return KindOther
	case 403:
		if strings.Contains(strings.ToLower(body), "caller does not have permission") {
			return KindNoPermission
		}
		return KindContextTooLong
	case 401:
		return KindAuthNeeded
	default:
		if statusCode == 0 {
			return KindAuthNeeded
		}
		return KindOther
	}
}

// Client performs unary and streaming calls against a single upstream base.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// Options configures a Client.
type Options struct {
	// UseUTLS selects the TLS-fingerprinting dialer over net/http.
	UseUTLS bool
	// ProxyURL overrides HTTP_PROXY/HTTPS_PROXY/ALL_PROXY when non-empty.
	ProxyURL string
	// Timeout bounds unary calls; streaming calls use it only for the
	// initial connection, not the full body read.
	Timeout time.Duration
}

// New builds a Client per opts.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	var rt http.RoundTripper
	if opts.UseUTLS {
		rt = newUTLSRoundTripper(opts.ProxyURL)
	} else {
		rt = &http.Transport{Proxy: proxyFunc(opts.ProxyURL)}
	}
	return &Client{
		http:    &http.Client{Transport: rt},
		timeout: opts.Timeout,
	}
}

func proxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL == "" {
		return http.ProxyFromEnvironment
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return http.ProxyFromEnvironment
	}
	return http.ProxyURL(parsed)
}

func (c *Client) newRequest(ctx context.Context, target string, headers map[string]string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// CallUnary performs a single POST and returns the decoded response body, or
// a classified *UpstreamError on non-2xx.
func (c *Client) CallUnary(ctx context.Context, target string, headers map[string]string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, target, headers, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{StatusCode: 0, BodyText: err.Error(), Kind: KindOther}
	}
	defer resp.Body.Close()

	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("transport: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			BodyText:   string(decoded),
			Kind:       classify(resp.StatusCode, string(decoded)),
		}
	}
	return decoded, nil
}

// StreamLines is an open SSE response body; callers read lines until Close.
type StreamLines struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next returns the next line, or io.EOF when the stream ends.
func (s *StreamLines) Next() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close releases the underlying connection.
func (s *StreamLines) Close() error {
	return s.body.Close()
}

// CallStream opens a POST expected to return `text/event-stream`-shaped
// SSE. On a non-2xx response the body is read, decoded, classified, and
// returned as an error instead of a StreamLines.
func (c *Client) CallStream(ctx context.Context, target string, headers map[string]string, body []byte) (*StreamLines, error) {
	req, err := c.newRequest(ctx, target, headers, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{StatusCode: 0, BodyText: err.Error(), Kind: KindOther}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		decoded, errDecode := decodeBody(resp)
		if errDecode != nil {
			return nil, fmt.Errorf("transport: decode error response: %w", errDecode)
		}
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			BodyText:   string(decoded),
			Kind:       classify(resp.StatusCode, string(decoded)),
		}
	}

	reader, err := decodingReader(resp)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("transport: wrap stream decoder: %w", err)
	}
	return &StreamLines{body: resp.Body, scanner: bufio.NewScanner(reader)}, nil
}

func decodeBody(resp *http.Response) ([]byte, error) {
	reader, err := decodingReader(resp)
	if err != nil {
		return nil, err
	}
	if closer, ok := reader.(io.Closer); ok && reader != io.Reader(resp.Body) {
		defer closer.Close()
	}
	return io.ReadAll(reader)
}

// decodingReader wraps resp.Body in a brotli or gzip decoder per
// Content-Encoding; an unrecognized or absent encoding passes through.
func decodingReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return resp.Body, nil
	}
}

// dialerForProxy builds a golang.org/x/net/proxy.Dialer honoring an
// explicit proxy URL, falling back to a direct dial.
func dialerForProxy(proxyURL string) proxy.Dialer {
	if proxyURL == "" {
		return proxy.Direct
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return proxy.Direct
	}
	d, err := proxy.FromURL(parsed, proxy.Direct)
	if err != nil {
		return proxy.Direct
	}
	return d
}
