package model

// ExtractionStrategy identifies which extraction pass produced a field.
type ExtractionStrategy string

const (
	StrategyStructural ExtractionStrategy = "structural"
	StrategyHeading    ExtractionStrategy = "heading"
	StrategyProximity  ExtractionStrategy = "proximity"
)

// Field confidence constants assigned by the extractor. These are policy:
// resolution overrides a lower-confidence field with a higher-confidence
// corroborating candidate.
const (
	ConfidenceStructural = 1.0
	ConfidenceHeading    = 0.6
	ConfidenceProximity  = 0.5
)

// RawCandidate is an unresolved, possibly-duplicate record extracted from a
// single page. Name is always present and normalized before the record leaves
// the extractor; a candidate with no recoverable name is discarded.
type RawCandidate struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Title           string             `json:"title,omitempty"`
	Email           string             `json:"email,omitempty"`
	ProfileURL      string             `json:"profile_url,omitempty"`
	DepartmentHint  string             `json:"department_hint,omitempty"`
	SourceURL       string             `json:"source_url"`
	Adapter         string             `json:"adapter"`
	Strategy        ExtractionStrategy `json:"extraction_strategy"`
	Fields          map[string]string  `json:"fields,omitempty"` // adapter schema fields (listing-style pages)
	FieldConfidence map[string]float64 `json:"field_confidence"`
	DiscoveryOrder  int                `json:"discovery_order"`
}

// Confidence returns the recorded confidence for a field, or 0 when the
// field was never extracted.
func (c RawCandidate) Confidence(field string) float64 {
	if c.FieldConfidence == nil {
		return 0
	}
	return c.FieldConfidence[field]
}

// EnrichmentStatus records the outcome of following a candidate's profile link.
type EnrichmentStatus string

const (
	EnrichmentNotAttempted EnrichmentStatus = "not_attempted"
	EnrichmentSucceeded    EnrichmentStatus = "succeeded"
	EnrichmentFailed       EnrichmentStatus = "failed"
)

// EnrichedCandidate is a RawCandidate plus data gathered from its profile
// page. Immutable once produced, one-to-one with its source candidate.
type EnrichedCandidate struct {
	RawCandidate

	FullTextExcerpt string           `json:"full_text_excerpt,omitempty"`
	AcademicLinks   []AcademicLink   `json:"academic_links,omitempty"`
	Enrichment      EnrichmentStatus `json:"enrichment_status"`
}

// AcademicLinkKind classifies an outbound link found on a profile page.
type AcademicLinkKind string

const (
	LinkPublication AcademicLinkKind = "publication"
	LinkCV          AcademicLinkKind = "cv"
	LinkLab         AcademicLinkKind = "lab"
	LinkResearch    AcademicLinkKind = "research"
)

// AcademicLink is an outbound link classified as academically relevant.
type AcademicLink struct {
	URL  string           `json:"url"`
	Text string           `json:"text,omitempty"`
	Kind AcademicLinkKind `json:"kind"`
}
