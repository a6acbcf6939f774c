package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry is one parsed <item>. It is read once per run and never persisted.
type Entry struct {
	// Index is the item's position in the document.
	Index         int
	GUID          string
	Title         string
	Published     time.Time
	PublishedRaw  string
	EnclosureURL  string
	ItunesEpisode string
	Subtitle      string
	Link          string
	Description   string
}

// HasDate reports whether the entry carried a parseable publish date.
func (e Entry) HasDate() bool {
	return !e.Published.IsZero()
}

// Parser converts feed documents into entries.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{gofeedParser: gofeed.NewParser()}
}

// Parse decodes an RSS or Atom document.
func (p *Parser) Parse(data []byte) ([]Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	entries := make([]Entry, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, normalizeItem(i, item))
	}
	return entries, nil
}

func normalizeItem(index int, item *gofeed.Item) Entry {
	entry := Entry{
		Index:        index,
		GUID:         strings.TrimSpace(item.GUID),
		Title:        strings.TrimSpace(item.Title),
		PublishedRaw: strings.TrimSpace(item.Published),
		Link:         strings.TrimSpace(item.Link),
		Description:  strings.TrimSpace(item.Description),
	}
	if entry.Description == "" {
		entry.Description = strings.TrimSpace(item.Content)
	}
	if item.PublishedParsed != nil {
		entry.Published = item.PublishedParsed.UTC()
	}
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.TrimSpace(enclosure.URL) != "" {
			entry.EnclosureURL = strings.TrimSpace(enclosure.URL)
			break
		}
	}
	if ext := item.ITunesExt; ext != nil {
		entry.ItunesEpisode = strings.TrimSpace(ext.Episode)
		entry.Subtitle = strings.TrimSpace(ext.Subtitle)
	}
	return entry
}
