package snapshot

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an outbound link found on an episode page.
type Link struct {
	Text string
	Href string
	// Timestamp is a show time ("16:05") that was glued onto the href.
	Timestamp string
}

// contentSelectors narrow extraction to the post body when the page has one.
var contentSelectors = []string{".available-content", ".body.markup", "article", "main"}

var trailingTimestamp = regexp.MustCompile(`(\d{1,2}:\d{2}(?::\d{2})?)\s*$`)

var shortenerHosts = []string{"bit.ly", "amzn.to", "youtu.be", "goo.gl", "t.co", "tinyurl.com"}

// Links returns the outbound http(s) links in the page body, in document
// order. Links back to the page's own host are navigation and are skipped.
// Hrefs listed in shortLinks are expanded; duplicates (same href and text)
// are dropped.
func Links(page []byte, pageURL string, shortLinks map[string]string) []Link {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(pageURL)

	container := doc.Find("body")
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			container = sel
			break
		}
	}

	var links []Link
	seen := make(map[string]struct{})
	container.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		raw := a.AttrOr("data-href", "")
		if raw == "" {
			raw = a.AttrOr("href", "")
		}
		href, stamp := splitTimestamp(strings.TrimSpace(raw))
		target, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			target = base.ResolveReference(target)
		}
		if target.Scheme != "http" && target.Scheme != "https" {
			return
		}
		if base != nil && base.Host != "" && strings.EqualFold(target.Host, base.Host) {
			return
		}
		href = target.String()
		if expanded, ok := shortLinks[href]; ok && strings.TrimSpace(expanded) != "" {
			href = strings.TrimSpace(expanded)
		}

		text := collapse(a.Text())
		if text == "" || isShortener(text) {
			text = href
		}
		key := href + "\x00" + strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, Link{Text: text, Href: href, Timestamp: stamp})
	})
	return links
}

func splitTimestamp(href string) (string, string) {
	loc := trailingTimestamp.FindStringSubmatchIndex(href)
	if loc == nil {
		return href, ""
	}
	return href[:loc[0]], href[loc[2]:loc[3]]
}

func isShortener(text string) bool {
	lower := strings.ToLower(text)
	for _, host := range shortenerHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}
