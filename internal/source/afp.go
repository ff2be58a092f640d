package source

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/veritium/crawler/internal/claim"
)

const afpBase = "https://factcheck.afp.com"

// AFP scrapes factcheck.afp.com. AFP rarely marks an explicit verdict
// on the article page, so most records carry the default.
type AFP struct{}

// Name implements Strategy.
func (AFP) Name() string { return "afp" }

// ArchiveURL implements Strategy.
func (AFP) ArchiveURL(page int) string {
	return fmt.Sprintf("%s/facts?page=%d", afpBase, page)
}

// ArticleLinks implements Strategy.
func (AFP) ArticleLinks(doc *goquery.Document) []string {
	if links := collectLinks(doc, "h3.teaser__title a[href]", afpBase, ""); len(links) > 0 {
		return links
	}
	return collectLinks(doc, "div.teaser__body a[href]", afpBase, "")
}

// Extract implements Strategy.
func (AFP) Extract(doc *goquery.Document, articleURL string) (claim.Record, bool) {
	text := firstText(doc, "h1", "h3.teaser__title")
	if text == "" {
		return claim.Record{}, false
	}

	verdict := firstText(doc, "span.verdict")
	if verdict == "" {
		verdict = claim.DefaultVerdict
	}

	rec := claim.Record{
		ClaimText: text,
		Verdict:   verdict,
		SourceURL: articleURL,
	}
	if raw := firstAttr(doc, "datetime", "time.teaser__date", "time[datetime]"); raw != "" {
		rec.PublishedDate = parseDate(raw)
	} else {
		rec.PublishedDate = structuredDate(doc)
	}
	return rec, true
}
