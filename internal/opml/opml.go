// ABOUTME: OPML parsing and writing for podcast subscription lists
// ABOUTME: Flattens outlines into the {url, title} pairs the import orchestrator consumes

package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Feed is a single feed reference from an OPML document.
type Feed struct {
	URL   string
	Title string
}

// XML structs for parsing and writing OPML files
type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	Children []outlineXML `xml:"outline,omitempty"`
}

// Parse reads OPML data from an io.Reader and returns the flat feed list.
// Folder structure is ignored; only outlines with an xmlUrl count as feeds.
func Parse(r io.Reader) ([]Feed, error) {
	var doc opmlXML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}

	var feeds []Feed
	var collect func(outlines []outlineXML)
	collect = func(outlines []outlineXML) {
		for _, outline := range outlines {
			if outline.XMLURL != "" {
				title := outline.Title
				if title == "" {
					title = outline.Text
				}
				feeds = append(feeds, Feed{URL: outline.XMLURL, Title: title})
			}
			collect(outline.Children)
		}
	}
	collect(doc.Body.Outlines)

	return feeds, nil
}

// ParseFile reads OPML data from a file and returns the flat feed list.
func ParseFile(path string) ([]Feed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Write serializes the feed list as a flat OPML document.
func Write(w io.Writer, title string, feeds []Feed) error {
	doc := opmlXML{
		Version: "2.0",
		Head:    headXML{Title: title},
	}
	for _, feed := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, outlineXML{
			Text:   feed.Title,
			Title:  feed.Title,
			Type:   "rss",
			XMLURL: feed.URL,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	return nil
}
