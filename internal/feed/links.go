package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var bareURL = regexp.MustCompile(`https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`)

// EpisodeURL picks the episode page for an entry: the link element, else the
// first anchor or bare URL in the description, else fallback. Shortened links
// found in shortLinks are expanded.
func EpisodeURL(entry Entry, fallback string, shortLinks map[string]string) string {
	candidate := entry.Link
	if candidate == "" {
		candidate = firstDescriptionURL(entry.Description)
	}
	if candidate == "" {
		return fallback
	}
	if expanded, ok := shortLinks[candidate]; ok && strings.TrimSpace(expanded) != "" {
		return strings.TrimSpace(expanded)
	}
	return candidate
}

func firstDescriptionURL(description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}
	if strings.Contains(description, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
		if err == nil {
			var href string
			doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				value, _ := sel.Attr("href")
				value = strings.TrimSpace(value)
				if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
					href = value
					return false
				}
				return true
			})
			if href != "" {
				return href
			}
		}
	}
	return bareURL.FindString(description)
}
