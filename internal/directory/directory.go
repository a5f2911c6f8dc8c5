// ABOUTME: Podcast directory search client backed by the iTunes Search API
// ABOUTME: Helps users discover a feed URL; not part of the reconciliation core

package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://itunes.apple.com"

// Result is one podcast returned by a directory search.
type Result struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	ArtworkURL   string `json:"artworkUrl"`
	Genre        string `json:"genre"`
	EpisodeCount int    `json:"episodeCount"`
	FeedURL      string `json:"feedUrl"`
}

// Client queries a public podcast catalog by free-text term.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a directory client against the iTunes Search API.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type itunesResponse struct {
	Results []struct {
		CollectionName   string `json:"collectionName"`
		ArtistName       string `json:"artistName"`
		ArtworkURL600    string `json:"artworkUrl600"`
		PrimaryGenreName string `json:"primaryGenreName"`
		TrackCount       int    `json:"trackCount"`
		FeedURL          string `json:"feedUrl"`
	} `json:"results"`
}

// Search returns up to limit podcasts matching the query. Results without a
// feed URL are dropped - they cannot be subscribed to.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("media", "podcast")
	params.Set("term", query)
	params.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed itunesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.FeedURL == "" {
			continue
		}
		results = append(results, Result{
			Title:        r.CollectionName,
			Author:       r.ArtistName,
			ArtworkURL:   r.ArtworkURL600,
			Genre:        r.PrimaryGenreName,
			EpisodeCount: r.TrackCount,
			FeedURL:      r.FeedURL,
		})
	}
	return results, nil
}
