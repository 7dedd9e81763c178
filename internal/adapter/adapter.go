// Package adapter holds pluggable extraction strategies bound to site
// patterns, plus the generic fallback used when no registered adapter
// matches a page's host.
package adapter

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Rules describe how an adapter locates candidate records inside a page.
// Selectors are CSS; FieldPatterns map structured attribute names to regexes
// applied over the concatenated title+description text (listing-style pages).
type Rules struct {
	ListingSelector    string            `yaml:"listing_selector"`
	NameSelector       string            `yaml:"name_selector"`
	TitleSelector      string            `yaml:"title_selector"`
	LinkSelector       string            `yaml:"link_selector"`
	DepartmentSelector string            `yaml:"department_selector"`
	FieldPatterns      map[string]string `yaml:"field_patterns"`
}

// Adapter is one extraction strategy. Site-specific adapters carry host
// patterns; the generic adapter matches nothing and is returned only as the
// registry fallback.
type Adapter struct {
	Name         string
	HostPatterns []string
	Rules        Rules

	fieldRegexps map[string]*regexp.Regexp
}

// New compiles an adapter's field patterns. Invalid regexes are rejected at
// registration time rather than during extraction.
func New(name string, hostPatterns []string, rules Rules) (*Adapter, error) {
	a := &Adapter{
		Name:         name,
		HostPatterns: hostPatterns,
		Rules:        rules,
		fieldRegexps: make(map[string]*regexp.Regexp, len(rules.FieldPatterns)),
	}
	for field, pattern := range rules.FieldPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "adapter %s: compile pattern for field %s", name, field)
		}
		a.fieldRegexps[field] = re
	}
	return a, nil
}

// Matches reports whether the adapter is registered for the URL's host.
// Patterns are matched case-insensitively: an exact host, a "*.domain"
// wildcard covering subdomains, or a bare domain covering itself and all
// subdomains.
func (a *Adapter) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	for _, pattern := range a.HostPatterns {
		p := strings.ToLower(pattern)
		switch {
		case strings.HasPrefix(p, "*."):
			suffix := strings.TrimPrefix(p, "*")
			if strings.HasSuffix(host, suffix) {
				return true
			}
		case host == p:
			return true
		case strings.HasSuffix(host, "."+p):
			return true
		}
	}
	return false
}

// FieldRegexp returns the compiled regex for a schema field, or nil.
func (a *Adapter) FieldRegexp(field string) *regexp.Regexp {
	return a.fieldRegexps[field]
}

// FieldNames returns the adapter's schema field names. Order is not
// significant; extraction treats fields independently.
func (a *Adapter) FieldNames() []string {
	names := make([]string, 0, len(a.fieldRegexps))
	for name := range a.fieldRegexps {
		names = append(names, name)
	}
	return names
}

// Generic returns the fallback adapter. Its selectors cover the container
// and class names commonly used by directory pages; when the structural pass
// finds nothing the extractor degrades to heading heuristics.
func Generic() *Adapter {
	a, _ := New("generic", nil, Rules{
		ListingSelector: ".faculty-member, .faculty, .person, .profile, .staff-member, .directory-entry, li.person",
		NameSelector:    ".name, h2, h3, h4, a",
		TitleSelector:   ".title, .position, .role, em",
		LinkSelector:    "a[href]",
	})
	return a
}
