// ABOUTME: RSS/Atom podcast feed parsing using gofeed library
// ABOUTME: Normalizes items into playable episodes with guid fallback and duration parsing

package parse

import (
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mmcdole/gofeed"
)

// ParsedPodcast represents a normalized podcast feed.
type ParsedPodcast struct {
	Title       string
	Description *string
	ImageURL    *string
	Author      *string
	Episodes    []ParsedEpisode
}

// ParsedEpisode represents a normalized playable feed item.
type ParsedEpisode struct {
	GUID            string
	Title           string
	Description     *string
	AudioURL        string
	DurationSeconds *int
	PublishedAt     time.Time
}

// Parse parses RSS or Atom feed data and returns a normalized ParsedPodcast.
// Items without a resolvable audio enclosure are silently dropped - they are
// not playable episodes. Undated items default to now, which biases them
// toward the top of feeds; this is a known and accepted trade-off.
func Parse(data []byte) (*ParsedPodcast, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(data))
	if err != nil {
		return nil, err
	}

	podcast := &ParsedPodcast{
		Title:    feed.Title,
		Episodes: make([]ParsedEpisode, 0, len(feed.Items)),
	}
	if podcast.Title == "" {
		podcast.Title = "Unknown Podcast"
	}
	if feed.Description != "" {
		desc := feed.Description
		podcast.Description = &desc
	}
	if img := feedImage(feed); img != "" {
		podcast.ImageURL = &img
	}
	if feed.ITunesExt != nil && feed.ITunesExt.Author != "" {
		author := feed.ITunesExt.Author
		podcast.Author = &author
	}

	now := time.Now()
	for _, item := range feed.Items {
		audioURL := enclosureURL(item)
		if audioURL == "" {
			continue
		}

		episode := ParsedEpisode{
			GUID:        episodeGUID(item, now),
			Title:       item.Title,
			AudioURL:    audioURL,
			PublishedAt: now,
		}
		if episode.Title == "" {
			episode.Title = "Untitled Episode"
		}

		if desc := episodeDescription(item); desc != "" {
			episode.Description = &desc
		}

		if item.ITunesExt != nil && item.ITunesExt.Duration != "" {
			episode.DurationSeconds = ParseDuration(item.ITunesExt.Duration)
		}

		if item.PublishedParsed != nil {
			episode.PublishedAt = *item.PublishedParsed
		}

		podcast.Episodes = append(podcast.Episodes, episode)
	}

	return podcast, nil
}

// episodeGUID returns a non-empty dedupe key for the item. Fallback order:
// feed-provided guid, item link, item title, current timestamp string.
// Derived guids can collide across items; that lax behavior is deliberate.
func episodeGUID(item *gofeed.Item, now time.Time) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	if item.Title != "" {
		return item.Title
	}
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// enclosureURL returns the first audio enclosure URL, or "" if none.
func enclosureURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// episodeDescription prefers the description over full content and converts
// HTML to Markdown so notification emails and API clients get clean text.
func episodeDescription(item *gofeed.Item) string {
	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	return strings.TrimSpace(toMarkdown(desc))
}

// toMarkdown converts HTML content to Markdown. If the content doesn't look
// like HTML or conversion fails, returns it unchanged.
func toMarkdown(content string) string {
	if content == "" || !strings.Contains(content, "<") {
		return content
	}
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return content
	}
	return markdown
}

// feedImage resolves artwork from the channel image or the iTunes extension.
func feedImage(feed *gofeed.Feed) string {
	if feed.Image != nil && feed.Image.URL != "" {
		return feed.Image.URL
	}
	if feed.ITunesExt != nil {
		return feed.ITunesExt.Image
	}
	return ""
}

// ParseDuration parses an iTunes duration string. Accepts HH:MM:SS, MM:SS,
// or a bare integer-seconds string. Invalid strings yield nil rather than
// failing the whole fetch.
func ParseDuration(duration string) *int {
	parts := strings.Split(strings.TrimSpace(duration), ":")
	nums := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		nums = append(nums, n)
	}

	var seconds int
	switch len(nums) {
	case 3:
		seconds = nums[0]*3600 + nums[1]*60 + nums[2]
	case 2:
		seconds = nums[0]*60 + nums[1]
	case 1:
		seconds = nums[0]
	default:
		return nil
	}
	return &seconds
}
