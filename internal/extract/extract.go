// Package extract turns fetched page content into raw candidate records
// using an adapter's extraction rules. Extraction is layered: a structural
// pass over the adapter's listing selector, then a heading-text fallback.
// Failure is per-field, never per-page.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/MellowMango/apartment-search-sub005/internal/adapter"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

var departmentRE = regexp.MustCompile(`(?i)\b(?:department|school|college|institute)\s+of\s+([A-Za-z][A-Za-z& ]{2,60})`)

// Extract runs the adapter's rules over page content and returns candidate
// records. It never fails: unparseable or empty content yields an empty
// slice, and errors inside one candidate's sub-extraction skip only the
// affected field.
func Extract(content []byte, a *adapter.Adapter, pageURL string) []model.RawCandidate {
	if len(content) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		zap.L().Debug("extract: unparseable content",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	pageHint := pageDepartmentHint(doc)

	var out []model.RawCandidate

	// Structural pass: repeated listing containers.
	if a.Rules.ListingSelector != "" {
		doc.Find(a.Rules.ListingSelector).Each(func(_ int, sel *goquery.Selection) {
			if c, ok := fromContainer(sel, a, base, pageURL, pageHint, len(out)); ok {
				out = append(out, c)
			}
		})
	}

	if len(out) > 0 {
		return out
	}

	// Heading fallback: scan heading elements for name-shaped text.
	doc.Find("h1, h2, h3, h4, h5").Each(func(_ int, sel *goquery.Selection) {
		if c, ok := fromHeading(sel, a, base, pageURL, pageHint, len(out)); ok {
			out = append(out, c)
		}
	})

	return out
}

// fromContainer builds a candidate from one structurally-matched container.
func fromContainer(sel *goquery.Selection, a *adapter.Adapter, base *url.URL, pageURL, pageHint string, ordinal int) (c model.RawCandidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("extract: candidate sub-extraction panicked, skipping",
				zap.String("url", pageURL),
				zap.Any("cause", r),
			)
			ok = false
		}
	}()

	name := NormalizeName(firstText(sel, a.Rules.NameSelector))
	if name == "" {
		return c, false
	}

	c = model.RawCandidate{
		ID:              candidateID(pageURL, name, ordinal),
		Name:            name,
		SourceURL:       pageURL,
		Adapter:         a.Name,
		Strategy:        model.StrategyStructural,
		FieldConfidence: map[string]float64{"name": model.ConfidenceStructural},
	}

	if a.Rules.TitleSelector != "" {
		if title := strings.TrimSpace(firstText(sel, a.Rules.TitleSelector)); title != "" && title != name {
			c.Title = collapse(title)
			c.FieldConfidence["title"] = model.ConfidenceStructural
		}
	}

	extractLink(&c, sel, a.Rules.LinkSelector, base)
	extractEmail(&c, sel)
	extractSchemaFields(&c, sel, a)
	extractDepartment(&c, sel, a.Rules.DepartmentSelector, pageHint)

	return c, true
}

// fromHeading builds a candidate from a name-shaped heading.
func fromHeading(sel *goquery.Selection, a *adapter.Adapter, base *url.URL, pageURL, pageHint string, ordinal int) (c model.RawCandidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("extract: heading sub-extraction panicked, skipping",
				zap.String("url", pageURL),
				zap.Any("cause", r),
			)
			ok = false
		}
	}()

	text := strings.TrimSpace(sel.Text())
	if !LooksLikeName(text) {
		return c, false
	}
	name := NormalizeName(text)
	if name == "" {
		return c, false
	}

	c = model.RawCandidate{
		ID:              candidateID(pageURL, name, ordinal),
		Name:            name,
		SourceURL:       pageURL,
		Adapter:         a.Name,
		Strategy:        model.StrategyHeading,
		FieldConfidence: map[string]float64{"name": model.ConfidenceHeading},
	}

	// Neighborhood for the remaining fields: the heading itself, then its
	// parent container, then the next sibling.
	extractLink(&c, sel, "a[href]", base)
	if c.ProfileURL == "" {
		if href, exists := sel.Closest("a[href]").Attr("href"); exists {
			setLink(&c, href, base)
		}
	}
	extractEmail(&c, sel)
	if next := sel.Next(); next.Length() > 0 {
		if c.Title == "" {
			if t := collapse(next.Text()); t != "" && len(t) <= 120 && !LooksLikeName(t) && FindEmail(t) == "" {
				c.Title = t
				c.FieldConfidence["title"] = model.ConfidenceProximity
			}
		}
	}
	extractDepartment(&c, sel.Parent(), a.Rules.DepartmentSelector, pageHint)

	return c, true
}

// extractLink derives profile_url from a link inside the container, or from
// the next sibling when the container has none.
func extractLink(c *model.RawCandidate, sel *goquery.Selection, linkSelector string, base *url.URL) {
	if linkSelector == "" {
		linkSelector = "a[href]"
	}

	var href string
	sel.Find(linkSelector).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		h, exists := link.Attr("href")
		if !exists || skipHref(h) {
			return true
		}
		href = h
		return false
	})

	conf := model.ConfidenceStructural
	if href == "" {
		// Adjacent fallback: first usable link in the next sibling.
		sel.Next().Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			h, exists := link.Attr("href")
			if !exists || skipHref(h) {
				return true
			}
			href = h
			return false
		})
		conf = model.ConfidenceProximity
	}
	if href == "" {
		return
	}

	if setLink(c, href, base) {
		c.FieldConfidence["profile_url"] = conf
	}
}

// setLink resolves href against the page URL and stores it when absolute.
func setLink(c *model.RawCandidate, href string, base *url.URL) bool {
	if skipHref(href) {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	u.Fragment = ""
	c.ProfileURL = u.String()
	return true
}

// extractEmail searches a bounded neighborhood (container, then next
// sibling) for an email-shaped token and accepts the first match.
func extractEmail(c *model.RawCandidate, sel *goquery.Selection) {
	if c.Email != "" {
		return
	}

	// mailto links are the most reliable carrier.
	for _, scope := range []*goquery.Selection{sel, sel.Next()} {
		if href, exists := scope.Find(`a[href^="mailto:"]`).First().Attr("href"); exists {
			if email := FindEmail(strings.TrimPrefix(href, "mailto:")); email != "" {
				c.Email = email
				c.FieldConfidence["email"] = model.ConfidenceProximity
				return
			}
		}
	}

	if email := FindEmail(sel.Text()); email != "" {
		c.Email = email
		c.FieldConfidence["email"] = model.ConfidenceProximity
		return
	}
	if email := FindEmail(sel.Next().Text()); email != "" {
		c.Email = email
		c.FieldConfidence["email"] = model.ConfidenceProximity
	}
}

// extractSchemaFields applies the adapter's field regexes over the
// concatenated title+description text. Used by listing-style adapters to
// recover structured attributes (address, price, units and the like).
func extractSchemaFields(c *model.RawCandidate, sel *goquery.Selection, a *adapter.Adapter) {
	fields := a.FieldNames()
	if len(fields) == 0 {
		return
	}

	text := collapse(c.Title + " " + sel.Text())
	for _, field := range fields {
		re := a.FieldRegexp(field)
		if re == nil {
			continue
		}
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := match[0]
		if len(match) > 1 && match[1] != "" {
			value = match[1]
		}
		if c.Fields == nil {
			c.Fields = make(map[string]string)
		}
		c.Fields[field] = strings.TrimSpace(value)
		c.FieldConfidence[field] = model.ConfidenceProximity
	}
}

// extractDepartment fills department_hint from the adapter's selector, the
// surrounding text, or the page-level hint.
func extractDepartment(c *model.RawCandidate, sel *goquery.Selection, deptSelector, pageHint string) {
	if deptSelector != "" {
		if dept := collapse(sel.Find(deptSelector).First().Text()); dept != "" {
			c.DepartmentHint = dept
			return
		}
	}
	if m := departmentRE.FindStringSubmatch(sel.Text()); m != nil {
		c.DepartmentHint = collapse(m[1])
		return
	}
	c.DepartmentHint = pageHint
}

// pageDepartmentHint looks for a "Department of X" style phrase in the page
// title or first h1.
func pageDepartmentHint(doc *goquery.Document) string {
	for _, text := range []string{
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	} {
		if m := departmentRE.FindStringSubmatch(text); m != nil {
			return collapse(m[1])
		}
	}
	return ""
}

// firstText returns the trimmed text of the first selector match, or the
// selection's own text when the selector is empty.
func firstText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return sel.Text()
	}
	return sel.Find(selector).First().Text()
}

func skipHref(href string) bool {
	href = strings.TrimSpace(href)
	return href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "tel:")
}

func collapse(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// candidateID is stable for a given page, name, and position, so re-running
// extraction over the same content reproduces the same provenance ids.
func candidateID(pageURL, name string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", pageURL, name, ordinal)))
	return hex.EncodeToString(sum[:8])
}
