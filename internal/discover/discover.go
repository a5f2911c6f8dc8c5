// ABOUTME: Feed discovery package for finding RSS/Atom feeds from URLs
// ABOUTME: Supports direct feeds, HTML link headers, and common path probing

package discover

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/parse"
)

// Common feed paths to probe when other discovery methods fail
var commonFeedPaths = []string{
	"/feed.xml",
	"/feed",
	"/rss.xml",
	"/rss",
	"/podcast.xml",
	"/podcast/feed",
	"/index.xml",
	"/feeds/posts/default",
}

// Errors returned by discovery functions
var (
	ErrNoFeedFound = errors.New("no RSS/Atom feed found at URL")
	ErrInvalidURL  = errors.New("invalid URL")
)

// DiscoveredFeed represents a feed found during discovery
type DiscoveredFeed struct {
	URL   string // Absolute URL of the feed
	Title string // Feed title (from content or link element)
}

// Discover attempts to find a podcast feed from the given URL.
// It tries the following strategies in order:
//  1. Parse URL as a direct feed
//  2. Parse URL as HTML and extract <link rel="alternate"> headers
//  3. Probe common feed URL patterns
//
// Returns the discovered feed, or an error if none found.
func Discover(ctx context.Context, inputURL string) (*DiscoveredFeed, error) {
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	// Strategy 1: Try direct feed
	feed, body, err := tryDirectFeed(ctx, inputURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if feed != nil {
		return feed, nil
	}

	// Strategy 2: Extract feed links from HTML
	feeds, err := ExtractFeedLinks(body, parsedURL)
	if err == nil && len(feeds) > 0 {
		for _, candidate := range feeds {
			verifiedFeed, _, verifyErr := tryDirectFeed(ctx, candidate.URL)
			if verifyErr == nil && verifiedFeed != nil {
				// Use title from HTML link if feed doesn't have one
				if verifiedFeed.Title == "" && candidate.Title != "" {
					verifiedFeed.Title = candidate.Title
				}
				return verifiedFeed, nil
			}
		}
	}

	// Strategy 3: Probe common paths
	for _, path := range commonFeedPaths {
		probeURL := parsedURL.Scheme + "://" + parsedURL.Host + path
		feed, _, probeErr := tryDirectFeed(ctx, probeURL)
		if probeErr == nil && feed != nil {
			return feed, nil
		}
	}

	return nil, ErrNoFeedFound
}

// tryDirectFeed attempts to fetch and parse the URL as a podcast feed.
// Returns the feed if successful, or nil if the content is not a valid feed.
// Also returns the raw body for use in HTML parsing if it's not a feed.
func tryDirectFeed(ctx context.Context, feedURL string) (*DiscoveredFeed, []byte, error) {
	body, err := fetch.Fetch(ctx, feedURL)
	if err != nil {
		return nil, nil, err
	}

	parsed, parseErr := parse.Parse(body)
	if parseErr != nil {
		// Not a valid feed; return body for HTML parsing
		return nil, body, nil
	}

	return &DiscoveredFeed{
		URL:   feedURL,
		Title: parsed.Title,
	}, body, nil
}

// ExtractFeedLinks parses HTML and returns feed URLs from <link rel="alternate"> elements
func ExtractFeedLinks(htmlBody []byte, baseURL *url.URL) ([]DiscoveredFeed, error) {
	doc, err := html.Parse(strings.NewReader(string(htmlBody)))
	if err != nil {
		return nil, err
	}

	var feeds []DiscoveredFeed
	var findLinks func(*html.Node)
	findLinks = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			var rel, linkType, href, title string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "rel":
					rel = attr.Val
				case "type":
					linkType = attr.Val
				case "href":
					href = attr.Val
				case "title":
					title = attr.Val
				}
			}

			if rel == "alternate" && isFeedType(linkType) && href != "" {
				if abs := resolveURL(baseURL, href); abs != "" {
					feeds = append(feeds, DiscoveredFeed{URL: abs, Title: title})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findLinks(c)
		}
	}
	findLinks(doc)

	return feeds, nil
}

func isFeedType(linkType string) bool {
	switch linkType {
	case "application/rss+xml", "application/atom+xml", "application/xml", "text/xml":
		return true
	}
	return false
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
