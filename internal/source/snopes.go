package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/veritium/crawler/internal/claim"
)

const snopesBase = "https://www.snopes.com"

// Snopes scrapes snopes.com fact-check pages. The rating vocabulary is
// open-ended ("Incorrect Attribution", "Legit", ...) and stored verbatim.
type Snopes struct{}

// Name implements Strategy.
func (Snopes) Name() string { return "snopes" }

// ArchiveURL implements Strategy.
func (Snopes) ArchiveURL(page int) string {
	return fmt.Sprintf("%s/fact-check/?pagenum=%d", snopesBase, page)
}

// ArticleLinks implements Strategy.
func (Snopes) ArticleLinks(doc *goquery.Document) []string {
	if links := collectLinks(doc, "a.outer_article_link_wrapper[href]", snopesBase, "/fact-check/"); len(links) > 0 {
		return links
	}
	return collectLinks(doc, "h2.title a[href], .list-post h2 a[href]", snopesBase, "/fact-check/")
}

// Extract implements Strategy.
func (Snopes) Extract(doc *goquery.Document, articleURL string) (claim.Record, bool) {
	text := firstText(doc, "h1", ".claim_cont", "header h1", ".title")
	if text == "" {
		return claim.Record{}, false
	}

	return claim.Record{
		ClaimText:     text,
		Verdict:       snopesVerdict(doc),
		SourceURL:     articleURL,
		PublishedDate: structuredDate(doc),
	}, true
}

func snopesVerdict(doc *goquery.Document) string {
	// Direct child text only: the rating block nests an "About this
	// rating" link whose text must not leak into the verdict.
	if wrap := doc.Find(".rating_title_wrap").First(); wrap.Length() > 0 {
		var direct strings.Builder
		wrap.Contents().Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "#text" {
				direct.WriteString(s.Text())
			}
		})
		if text := strings.TrimSpace(direct.String()); text != "" {
			return text
		}
	}
	if alt := firstAttr(doc, "alt", ".rating_img_wrap img[alt]"); alt != "" {
		return alt
	}
	if text := firstText(doc, ".media-rating", ".media-badge"); text != "" {
		return text
	}
	return claim.DefaultVerdict
}
