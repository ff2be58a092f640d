package source

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/veritium/crawler/internal/claim"
)

const factcheckOrgBase = "https://www.factcheck.org"

// FactCheckOrg scrapes factcheck.org's fact-check category.
type FactCheckOrg struct{}

// Name implements Strategy.
func (FactCheckOrg) Name() string { return "factcheckorg" }

// ArchiveURL implements Strategy.
func (FactCheckOrg) ArchiveURL(page int) string {
	return fmt.Sprintf("%s/category/fact-check/page/%d/", factcheckOrgBase, page)
}

// ArticleLinks implements Strategy.
func (FactCheckOrg) ArticleLinks(doc *goquery.Document) []string {
	if links := collectLinks(doc, "h2.entry-title a[href]", factcheckOrgBase, ""); len(links) > 0 {
		return links
	}
	return collectLinks(doc, "article.post h2 a[href]", factcheckOrgBase, "")
}

// Extract implements Strategy.
func (FactCheckOrg) Extract(doc *goquery.Document, articleURL string) (claim.Record, bool) {
	text := firstText(doc, "h1.entry-title", "h1")
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
	if raw := firstAttr(doc, "datetime", "time.entry-date", "time[datetime]"); raw != "" {
		rec.PublishedDate = parseDate(raw)
	} else {
		rec.PublishedDate = structuredDate(doc)
	}
	return rec, true
}
