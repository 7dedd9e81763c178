package enrich

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

var (
	publicationRE = regexp.MustCompile(`(?i)\bpublications?\b|\bpapers?\b`)
	cvRE          = regexp.MustCompile(`(?i)\bc\.?v\.?\b|curriculum\s+vitae|\bresume\b`)
	labRE         = regexp.MustCompile(`(?i)\blabs?\b|\blaboratory\b|\bgroup\b`)
	researchRE    = regexp.MustCompile(`(?i)\bresearch\b|\bscholar\b`)
)

// ClassifyLink decides whether an outbound link is academically relevant
// from its anchor text and URL, using a keyword/extension allowlist. The
// most specific class wins: publication, then cv, then lab, then research.
func ClassifyLink(text, href string) (model.AcademicLinkKind, bool) {
	haystack := text
	if u, err := url.Parse(href); err == nil {
		haystack += " " + u.Path
		if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			// Bare PDFs on a profile page are almost always papers or CVs;
			// prefer the anchor text when it names one.
			if cvRE.MatchString(text) {
				return model.LinkCV, true
			}
			return model.LinkPublication, true
		}
	}

	switch {
	case publicationRE.MatchString(haystack):
		return model.LinkPublication, true
	case cvRE.MatchString(haystack):
		return model.LinkCV, true
	case labRE.MatchString(haystack):
		return model.LinkLab, true
	case researchRE.MatchString(haystack):
		return model.LinkResearch, true
	}
	return "", false
}
