// Package render produces the markdown pages the static site is built from.
// Rendering is pure: the same inputs always give the same bytes.
package render

import (
	"fmt"
	"strings"
	"time"

	"whisperer/internal/podcast"
	"whisperer/internal/snapshot"
	"whisperer/internal/transcript"
	"whisperer/internal/workspace"
)

// Page is everything one episode page is built from.
type Page struct {
	Episode  podcast.Episode
	Synopsis string
	Speakers transcript.SpeakerMap
	Chunks   []transcript.Chunk
	// Excerpt stands in for an empty feed subtitle.
	Excerpt string
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// Markdown renders the episode page. Pages are excluded from the site search
// index; the transcript search comes from the separate index build.
func Markdown(p Page) []byte {
	ep := p.Episode
	title := ep.Title
	if strings.TrimSpace(title) == "" {
		title = "Episode " + ep.Label()
	}
	published := ep.PubDateRaw
	if published == "" && !ep.PubDate.IsZero() {
		published = ep.PubDate.Format(time.RFC1123Z)
	}
	if published == "" {
		published = "Unknown date"
	}
	subtitle := strings.TrimSpace(ep.Subtitle)
	if subtitle == "" {
		subtitle = strings.TrimSpace(p.Excerpt)
	}

	var b strings.Builder
	b.WriteString("---\nsearch:\n  exclude: true\n---\n\n")
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "Published on %s\n\n", published)
	if subtitle != "" {
		fmt.Fprintf(&b, "%s\n\n", subtitle)
	}
	fmt.Fprintf(&b, "## Synopsis\n%s\n\n", strings.TrimSpace(p.Synopsis))

	b.WriteString("## Links\n")
	if ep.EpisodeURL != "" {
		fmt.Fprintf(&b, "- [episode page](%s)\n", ep.EpisodeURL)
	}
	if ep.MP3URL != "" {
		fmt.Fprintf(&b, "- [episode MP3](%s)\n", ep.MP3URL)
	}
	fmt.Fprintf(&b, "- [episode webpage snapshot](%s)\n", workspace.SnapshotFile)
	fmt.Fprintf(&b, "- [episode MP3 - local mirror](%s)\n\n", workspace.AudioFile)

	b.WriteString("## Transcript\n")
	b.WriteString("|*Speaker*||\n|----|----|\n")
	for _, chunk := range p.Chunks {
		fmt.Fprintf(&b, "|%s|%s|\n",
			cellEscaper.Replace(p.Speakers.Name(chunk.Speaker)),
			cellEscaper.Replace(chunk.Text))
	}
	return []byte(b.String())
}

// Index renders docs/episodes.md listing episodes in number order.
func Index(episodes []podcast.Episode, updated time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "### Page updated %s - %d episodes\n", updated.Format(time.RFC3339), len(episodes))
	for _, ep := range episodes {
		line := fmt.Sprintf("- [%s](%s/%s)", ep.Title, ep.Label(), workspace.MarkdownFile)
		if ep.PubDateRaw != "" {
			line += " " + ep.PubDateRaw
		}
		b.WriteString(line + "\n")
	}
	return []byte(b.String())
}

// ShowNotesEntry pairs an episode with the links found on its page.
type ShowNotesEntry struct {
	Episode podcast.Episode
	Links   []snapshot.Link
}

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`, "\r\n", " ", "\n", " ")

// ShowNotes renders docs/shownotes.md, the outbound links of every scraped
// episode page. Entries are written in the order given.
func ShowNotes(name string, entries []ShowNotesEntry, updated time.Time) []byte {
	total, withLinks := 0, 0
	for _, entry := range entries {
		total += len(entry.Links)
		if len(entry.Links) > 0 {
			withLinks++
		}
	}
	average := 0.0
	if withLinks > 0 {
		average = float64(total) / float64(withLinks)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Show Notes Collection\n\n", name)
	fmt.Fprintf(&b, "Generated on %s\n\n", updated.Format("January 02, 2006"))
	fmt.Fprintf(&b, "**%d total links from %d episodes (out of %d episodes scraped, %d without any links), averaging %.1f per episode.**\n\n",
		total, withLinks, len(entries), len(entries)-withLinks, average)
	b.WriteString("---\n\n")

	for _, entry := range entries {
		ep := entry.Episode
		title := ep.Title
		if strings.TrimSpace(title) == "" {
			title = "Episode " + ep.Label()
		}
		if ep.EpisodeURL != "" {
			fmt.Fprintf(&b, "## [%s](%s)\n\n", linkTextEscaper.Replace(title), ep.EpisodeURL)
		} else {
			fmt.Fprintf(&b, "## %s\n\n", title)
		}
		if ep.PubDateRaw != "" {
			fmt.Fprintf(&b, "**Published:** %s\n\n", ep.PubDateRaw)
		}
		if len(entry.Links) == 0 {
			b.WriteString("*No related links found*\n\n---\n\n")
			continue
		}
		fmt.Fprintf(&b, "**Related Links (%d):**\n\n", len(entry.Links))
		for _, link := range entry.Links {
			line := fmt.Sprintf("- [%s](%s)", linkTextEscaper.Replace(link.Text), link.Href)
			if link.Timestamp != "" {
				line += " (" + link.Timestamp + ")"
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n---\n\n")
	}
	return []byte(b.String())
}
