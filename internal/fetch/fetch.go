// ABOUTME: HTTP feed retrieval with size limits, SSRF protection, and bounded retry
// ABOUTME: Composes retrieval and parsing into the typed FetchPodcast operation

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/harper/podkeep/internal/parse"
)

const MaxResponseSize = 10 * 1024 * 1024 // 10MB

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// Error is a typed fetch failure for one feed. Single-add surfaces it to the
// caller; refresh-all and bulk import record it and continue with remaining
// feeds.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// isPrivateIP checks if an IP address is in a private range (excluding loopback for tests).
func isPrivateIP(ip net.IP) bool {
	// Allow loopback addresses (localhost) for tests
	if ip.IsLoopback() {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// Fetch retrieves a URL and returns the response body.
// Includes SSRF protection by blocking private IP ranges and DoS protection
// via response size limit. Transient failures are retried with backoff;
// non-retryable HTTP statuses fail immediately.
func Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	// Validation happens before any fetch attempt
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: unsupported scheme %q", parsedURL.Scheme)
	}

	// SSRF protection: block private IP ranges
	if ips, err := net.LookupIP(parsedURL.Hostname()); err == nil {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return nil, errors.New("access to private IP ranges is not allowed")
			}
		}
	}

	var body []byte
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("User-Agent", "podkeep/1.0 (podcast aggregator)")

			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch URL: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
					resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}

			limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
			body, err = io.ReadAll(limitedReader)
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			if int64(len(body)) > MaxResponseSize {
				return retry.Unrecoverable(fmt.Errorf("response too large (exceeds %d bytes)", MaxResponseSize))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchPodcast retrieves and parses a feed URL into a normalized podcast.
// Network errors and unparsable XML both surface as *Error.
func FetchPodcast(ctx context.Context, feedURL string) (*parse.ParsedPodcast, error) {
	body, err := Fetch(ctx, feedURL)
	if err != nil {
		return nil, &Error{URL: feedURL, Err: err}
	}

	podcast, err := parse.Parse(body)
	if err != nil {
		return nil, &Error{URL: feedURL, Err: fmt.Errorf("failed to parse feed: %w", err)}
	}
	return podcast, nil
}

// PodcastFetcher is the fetch dependency consumed by the reconciliation
// drivers. Matches FetchPodcast; tests substitute stubs.
type PodcastFetcher func(ctx context.Context, feedURL string) (*parse.ParsedPodcast, error)
