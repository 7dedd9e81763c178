// Package enrich follows a candidate's discovered profile link to gather
// additional text and academically relevant outbound links. Enrichment
// failure never removes a candidate: pre-enrichment fields stay valid.
package enrich

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/MellowMango/apartment-search-sub005/internal/fetcher"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

const (
	defaultMaxExcerpt = 2000
	maxAcademicLinks  = 25
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Enricher fetches profile pages via the shared Fetcher.
type Enricher struct {
	fetcher    *fetcher.Fetcher
	maxExcerpt int
}

// New creates an Enricher over the given fetcher.
func New(f *fetcher.Fetcher) *Enricher {
	return &Enricher{fetcher: f, maxExcerpt: defaultMaxExcerpt}
}

// Enrich fetches the candidate's profile page. Candidates without a profile
// link short-circuit to not_attempted; fetch failures return the candidate
// with failed status and empty enrichment fields.
func (e *Enricher) Enrich(ctx context.Context, c model.RawCandidate) model.EnrichedCandidate {
	enriched := model.EnrichedCandidate{
		RawCandidate: c,
		Enrichment:   model.EnrichmentNotAttempted,
	}
	if c.ProfileURL == "" {
		return enriched
	}

	result, err := e.fetcher.Fetch(ctx, c.ProfileURL)
	if err != nil {
		zap.L().Debug("enrich: profile fetch failed",
			zap.String("candidate", c.Name),
			zap.String("url", c.ProfileURL),
			zap.Error(err),
		)
		enriched.Enrichment = model.EnrichmentFailed
		return enriched
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		enriched.Enrichment = model.EnrichmentFailed
		return enriched
	}

	enriched.FullTextExcerpt = e.excerpt(doc)
	enriched.AcademicLinks = academicLinks(doc, result.FinalURL)
	enriched.Enrichment = model.EnrichmentSucceeded
	return enriched
}

// excerpt extracts plain text from the page body, collapsed and capped.
func (e *Enricher) excerpt(doc *goquery.Document) string {
	body := doc.Find("body")
	body.Find("script, style, nav, footer").Remove()
	text := whitespaceRE.ReplaceAllString(strings.TrimSpace(body.Text()), " ")
	if len(text) > e.maxExcerpt {
		text = text[:e.maxExcerpt]
	}
	return text
}

// academicLinks collects outbound links classified by the allowlist,
// resolved to absolute URLs and deduplicated.
func academicLinks(doc *goquery.Document, pageURL string) []model.AcademicLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var links []model.AcademicLink
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, exists := sel.Attr("href")
		if !exists {
			return true
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return true
		}

		text := whitespaceRE.ReplaceAllString(strings.TrimSpace(sel.Text()), " ")
		kind, ok := ClassifyLink(text, href)
		if !ok {
			return true
		}

		resolved, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			resolved = base.ResolveReference(resolved)
		}
		if resolved.Host == "" || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return true
		}
		resolved.Fragment = ""
		abs := resolved.String()
		if seen[abs] {
			return true
		}
		seen[abs] = true

		links = append(links, model.AcademicLink{URL: abs, Text: text, Kind: kind})
		return len(links) < maxAcademicLinks
	})

	return links
}
