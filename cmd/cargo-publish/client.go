package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	"github.com/tendant/simple-registry/pkg/registry/api"
)

// maxResponseBytes caps how much of a registry response is read
const maxResponseBytes = 1 << 20

// PublishError is a response the registry rejected the publish with
type PublishError struct {
	StatusCode int
	Details    []string

	// Earlier is the server error of a previous attempt. A retry that follows
	// a failed archive write is answered with "already exists"; Earlier keeps
	// the failure that actually stopped the publish.
	Earlier *PublishError
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("registry responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("registry responded %d: %s", e.StatusCode, strings.Join(e.Details, "; "))
	}
	if e.Earlier != nil {
		msg += fmt.Sprintf(" (an earlier attempt failed: %v; the version may be registered without its archive)", e.Earlier)
	}
	return msg
}

// Client uploads publish frames to a registry
type Client struct {
	endpoint   string
	token      string
	authHeader string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// newHTTPClient returns a client whose dialer resolves through a DNS cache
func newHTTPClient(timeout time.Duration) *http.Client {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// exponentialBackOff retries for at most maxElapsed
func exponentialBackOff(maxElapsed time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 10 * time.Second
		b.MaxElapsedTime = maxElapsed
		b.Reset()
		return b
	}
}

// Publish PUTs body to the registry. Network errors and 5xx responses are
// retried with backoff; any other response is final.
func (c *Client) Publish(ctx context.Context, body []byte) (*api.PublishResponse, error) {
	var (
		result    *api.PublishResponse
		final     error
		attempts  int
		serverErr *PublishError
	)

	operation := func() error {
		attempts++
		resp, err := c.put(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				final = ctx.Err()
				return nil
			}
			c.logger.Warn("Publish attempt failed", "attempt", attempts, "error", err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusOK {
			var out api.PublishResponse
			if err := json.Unmarshal(data, &out); err != nil {
				final = fmt.Errorf("failed to decode registry response: %w", err)
				return nil
			}
			result = &out
			return nil
		}

		perr := &PublishError{StatusCode: resp.StatusCode, Details: errorDetails(data)}
		if resp.StatusCode >= http.StatusInternalServerError {
			c.logger.Warn("Publish attempt failed", "attempt", attempts, "status", resp.StatusCode)
			serverErr = perr
			return perr
		}
		perr.Earlier = serverErr
		final = perr
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	if final != nil {
		return nil, final
	}
	return result, nil
}

func (c *Client) put(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(c.authHeader, c.token)
	}
	return c.httpClient.Do(req)
}

func errorDetails(data []byte) []string {
	var envelope api.ErrorResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil
	}
	details := make([]string, 0, len(envelope.Errors))
	for _, e := range envelope.Errors {
		details = append(details, e.Detail)
	}
	return details
}
