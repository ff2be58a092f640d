package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/veritium/crawler/internal/claim"
)

const politifactBase = "https://www.politifact.com"

// PolitiFact scrapes politifact.com fact-check pages. The verdict is
// encoded in the alt text of the Truth-O-Meter image, or failing that
// in the m-statement-- class suffix of the article element.
type PolitiFact struct{}

// Name implements Strategy.
func (PolitiFact) Name() string { return "politifact" }

// ArchiveURL implements Strategy.
func (PolitiFact) ArchiveURL(page int) string {
	return fmt.Sprintf("%s/factchecks/?page=%d", politifactBase, page)
}

// ArticleLinks implements Strategy.
func (PolitiFact) ArticleLinks(doc *goquery.Document) []string {
	if links := collectLinks(doc, "div.m-statement__quote a[href]", politifactBase, "/factchecks/"); len(links) > 0 {
		return links
	}
	return collectLinks(doc, "a.m-statement__quote__link[href]", politifactBase, "/factchecks/")
}

// Extract implements Strategy.
func (PolitiFact) Extract(doc *goquery.Document, articleURL string) (claim.Record, bool) {
	text := firstText(doc, "h1.c-title", "div.m-statement__quote")
	if text == "" {
		return claim.Record{}, false
	}

	rec := claim.Record{
		ClaimText:     text,
		Verdict:       politifactVerdict(doc),
		SourceURL:     articleURL,
		PublishedDate: parseDate(firstText(doc, "span.m-author__date")),
		ShortPoints:   politifactShortPoints(doc),
	}
	return rec, true
}

func politifactVerdict(doc *goquery.Document) string {
	if alt := firstAttr(doc, "alt", `img[alt][src*="meter"]`); alt != "" {
		return alt
	}
	verdict := claim.DefaultVerdict
	doc.Find("article.m-statement").First().Each(func(_ int, s *goquery.Selection) {
		classes, _ := s.Attr("class")
		for _, c := range strings.Fields(classes) {
			if suffix, ok := strings.CutPrefix(c, "m-statement--"); ok && suffix != "" {
				verdict = capitalize(suffix)
				return
			}
		}
	})
	return verdict
}

// politifactShortPoints collects the "If Your Time is Short" bullets,
// the only short-point region any configured source publishes.
func politifactShortPoints(doc *goquery.Document) []string {
	var points []string
	doc.Find(".short-on-time li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			points = append(points, text)
		}
	})
	return points
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
