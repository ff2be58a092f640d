package source

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/veritium/crawler/internal/claim"
)

const boomliveBase = "https://www.boomlive.in"

// BoomLive scrapes boomlive.in's fact-check section.
type BoomLive struct{}

// Name implements Strategy.
func (BoomLive) Name() string { return "boomlive" }

// ArchiveURL implements Strategy.
func (BoomLive) ArchiveURL(page int) string {
	return fmt.Sprintf("%s/fact-check/page/%d", boomliveBase, page)
}

// ArticleLinks implements Strategy.
func (BoomLive) ArticleLinks(doc *goquery.Document) []string {
	if links := collectLinks(doc, "div.post-listing div.post h3.title a[href]", boomliveBase, ""); len(links) > 0 {
		return links
	}
	return collectLinks(doc, "h3.title a[href]", boomliveBase, "")
}

// Extract implements Strategy.
func (BoomLive) Extract(doc *goquery.Document, articleURL string) (claim.Record, bool) {
	text := firstText(doc, "h1", "h3.title")
	if text == "" {
		return claim.Record{}, false
	}

	verdict := firstText(doc, "span.verdict")
	if verdict == "" {
		verdict = claim.DefaultVerdict
	}

	return claim.Record{
		ClaimText:     text,
		Verdict:       verdict,
		SourceURL:     articleURL,
		PublishedDate: structuredDate(doc),
	}, true
}
