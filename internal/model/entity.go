package model

// EntityType is one of the four canonical entity variants.
type EntityType string

const (
	EntityFaculty    EntityType = "faculty"
	EntityLab        EntityType = "lab"
	EntityDepartment EntityType = "department"
	EntityUniversity EntityType = "university"
)

// Entity is a canonical, deduplicated record in the output graph. EntityID is
// derived deterministically from the canonicalization key, so the same
// logical entity hashes to the same id across runs.
type Entity struct {
	EntityID         string     `json:"entity_id"`
	Type             EntityType `json:"entity_type"`
	Name             string     `json:"name"`
	Title            string     `json:"title,omitempty"`
	Email            string     `json:"email,omitempty"`
	ProfileURL       string     `json:"profile_url,omitempty"`
	Confidence       float64    `json:"confidence_score"`
	SourceCandidates []string   `json:"source_candidate_ids"`
}

// AssociationType is a typed edge between two entity types.
type AssociationType string

const (
	AssocFacultyDepartment    AssociationType = "faculty_department"
	AssocFacultyLab           AssociationType = "faculty_lab"
	AssocDepartmentUniversity AssociationType = "department_university"
)

// Association is a directed edge carrying its own provenance. Confidence is
// the minimum of the endpoint confidences at creation time; re-derivation of
// an existing (from, to, type) triple merges provenance rather than creating
// a second edge.
type Association struct {
	FromID           string          `json:"from_id"`
	ToID             string          `json:"to_id"`
	Type             AssociationType `json:"type"`
	Confidence       float64         `json:"confidence"`
	SourceCandidates []string        `json:"source_candidate_ids"`
}

// Graph is the resolved output handed to persistence as plain data.
type Graph struct {
	Entities     []Entity      `json:"entities"`
	Associations []Association `json:"associations"`
}

// CountByType returns the number of entities per type.
func (g *Graph) CountByType() map[EntityType]int {
	counts := make(map[EntityType]int)
	for _, e := range g.Entities {
		counts[e.Type]++
	}
	return counts
}
