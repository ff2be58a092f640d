// Package source defines per-site extraction strategies. Each fact-check
// source implements the same capability set (archive URL template,
// article link extraction, article field extraction) and is selected
// once at configuration time.
package source

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/veritium/crawler/internal/claim"
)

// Strategy is one source's extraction capability. Field extractors never
// panic or return errors past this boundary: missing non-mandatory
// fields degrade to defaults, and only a missing claim text makes
// Extract report false.
type Strategy interface {
	// Name identifies the source in logs, counters, and configuration.
	Name() string
	// ArchiveURL returns the paginated archive listing URL for page.
	ArchiveURL(page int) string
	// ArticleLinks extracts absolute article URLs from an archive
	// listing page. Selector fallbacks are tried in order; the first
	// non-empty result wins. An empty result signals end-of-archive.
	ArticleLinks(doc *goquery.Document) []string
	// Extract parses a fetched article page into a claim record.
	// It reports false when the mandatory claim text is missing.
	Extract(doc *goquery.Document, articleURL string) (claim.Record, bool)
}

// Registry returns the strategies for the named sources, in order.
// Unknown names are skipped.
func Registry(names []string) []Strategy {
	all := map[string]Strategy{
		"politifact":   PolitiFact{},
		"snopes":       Snopes{},
		"afp":          AFP{},
		"factcheckorg": FactCheckOrg{},
		"boomlive":     BoomLive{},
	}
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		if s, ok := all[strings.ToLower(name)]; ok {
			out = append(out, s)
		}
	}
	return out
}

// firstText returns the trimmed text of the first selector that matches
// a node with non-blank text.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the trimmed value of attr on the first selector
// that matches a node carrying it.
func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if val, ok := doc.Find(sel).First().Attr(attr); ok {
			if val = strings.TrimSpace(val); val != "" {
				return val
			}
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// parseDate parses the formats the sources are known to publish.
// Unparseable input degrades to nil, never an error.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// structuredDate tries machine-readable timestamp attributes before
// visible text, per the common extraction contract.
func structuredDate(doc *goquery.Document) *time.Time {
	if raw := firstAttr(doc, "content", `meta[property="article:published_time"]`); raw != "" {
		if t := parseDate(raw); t != nil {
			return t
		}
	}
	if raw := firstAttr(doc, "datetime", "time[datetime]"); raw != "" {
		if t := parseDate(raw); t != nil {
			return t
		}
	}
	return parseDate(firstText(doc, "time"))
}

// absoluteURL resolves href against base, returning "" on garbage input.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// collectLinks gathers hrefs for a selector, resolved against base and
// filtered to paths containing pathMarker (when non-empty). The result
// is de-duplicated and keeps the archive page's publication order.
func collectLinks(doc *goquery.Document, selector, base, pathMarker string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs := absoluteURL(base, href)
		if abs == "" {
			return
		}
		if pathMarker != "" && !strings.Contains(abs, pathMarker) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
