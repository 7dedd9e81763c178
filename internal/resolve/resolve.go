// Package resolve canonicalizes and deduplicates enriched candidates into a
// typed entity graph with confidence scores and association edges.
//
// Resolution never fails: conflicting fields are settled by the
// deterministic highest-confidence rule, with ties breaking toward the most
// recently processed candidate. Callers must supply candidates in a stable
// order (the coordinator sorts by discovery order) so tie-breaks reproduce.
package resolve

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/MellowMango/apartment-search-sub005/internal/extract"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

// facultyGroup accumulates candidates sharing a dedup key.
type facultyGroup struct {
	key    string // name key
	domain string // email domain, "" until a corroborating email arrives

	name       fieldPick
	title      fieldPick
	email      fieldPick
	profileURL fieldPick

	contributions []float64
	candidateIDs  []string
}

// fieldPick holds the current best value for one field.
type fieldPick struct {
	value string
	conf  float64
}

// take replaces the pick when the new confidence is at least as high.
// Ties break toward the most recently processed candidate.
func (p *fieldPick) take(value string, conf float64) {
	if value == "" || conf < p.conf {
		return
	}
	p.value = value
	p.conf = conf
}

// nodeGroup accumulates corroboration for department, lab, and university
// entities.
type nodeGroup struct {
	key           string
	name          string
	profileURL    string
	contributions []float64
	candidateIDs  []string
}

// Resolve consumes enriched candidates and emits the entity graph. Entities
// appear in first-contribution order; associations in derivation order.
func Resolve(candidates []model.EnrichedCandidate) *model.Graph {
	r := &resolver{
		facultyByName: make(map[string][]*facultyGroup),
		departments:   make(map[string]*nodeGroup),
		labs:          make(map[string]*nodeGroup),
		universities:  make(map[string]*nodeGroup),
	}

	for i := range candidates {
		r.absorb(&candidates[i])
	}

	return r.build()
}

type resolver struct {
	facultyByName map[string][]*facultyGroup
	facultyOrder  []*facultyGroup

	departments  map[string]*nodeGroup
	labs         map[string]*nodeGroup
	universities map[string]*nodeGroup
	deptOrder    []*nodeGroup
	labOrder     []*nodeGroup
	univOrder    []*nodeGroup

	// pending edges recorded in derivation order, resolved to confidences
	// after aggregation.
	pending []pendingAssoc
}

type pendingAssoc struct {
	fromGroup   *facultyGroup
	toDept      *nodeGroup
	toLab       *nodeGroup
	fromDept    *nodeGroup
	toUniv      *nodeGroup
	assocType   model.AssociationType
	candidateID string
}

// absorb merges one candidate into the graph under construction.
func (r *resolver) absorb(c *model.EnrichedCandidate) {
	group := r.facultyFor(c)

	group.name.take(c.Name, c.Confidence("name"))
	group.title.take(c.Title, c.Confidence("title"))
	group.email.take(c.Email, c.Confidence("email"))
	group.profileURL.take(c.ProfileURL, c.Confidence("profile_url"))

	group.contributions = append(group.contributions, bestFieldConfidence(c))
	group.candidateIDs = append(group.candidateIDs, c.ID)

	if dom := emailDomain(c.Email); dom != "" && group.domain == "" {
		group.domain = dom
	}

	if hint := strings.TrimSpace(c.DepartmentHint); hint != "" {
		dept := r.departmentFor(hint)
		dept.contributions = append(dept.contributions, bestFieldConfidence(c))
		dept.candidateIDs = append(dept.candidateIDs, c.ID)
		r.pending = append(r.pending, pendingAssoc{
			fromGroup:   group,
			toDept:      dept,
			assocType:   model.AssocFacultyDepartment,
			candidateID: c.ID,
		})

		if univ := r.universityFor(c.SourceURL); univ != nil {
			univ.contributions = append(univ.contributions, model.ConfidenceProximity)
			univ.candidateIDs = append(univ.candidateIDs, c.ID)
			r.pending = append(r.pending, pendingAssoc{
				fromDept:    dept,
				toUniv:      univ,
				assocType:   model.AssocDepartmentUniversity,
				candidateID: c.ID,
			})
		}
	}

	for _, link := range c.AcademicLinks {
		if link.Kind != model.LinkLab {
			continue
		}
		lab := r.labFor(link)
		lab.contributions = append(lab.contributions, model.ConfidenceProximity)
		lab.candidateIDs = append(lab.candidateIDs, c.ID)
		r.pending = append(r.pending, pendingAssoc{
			fromGroup:   group,
			toLab:       lab,
			assocType:   model.AssocFacultyLab,
			candidateID: c.ID,
		})
	}
}

// facultyFor finds the group a candidate merges into. Groups sharing a name
// key are disambiguated by email domain: a candidate joins the first group
// whose domain matches, or is unknown on either side.
func (r *resolver) facultyFor(c *model.EnrichedCandidate) *facultyGroup {
	key := nameKey(c.Name)
	domain := emailDomain(c.Email)

	for _, g := range r.facultyByName[key] {
		if g.domain == domain || g.domain == "" || domain == "" {
			return g
		}
	}

	g := &facultyGroup{key: key, domain: domain}
	r.facultyByName[key] = append(r.facultyByName[key], g)
	r.facultyOrder = append(r.facultyOrder, g)
	return g
}

func (r *resolver) departmentFor(hint string) *nodeGroup {
	key := extract.FoldName(hint)
	if g, ok := r.departments[key]; ok {
		return g
	}
	g := &nodeGroup{key: key, name: hint}
	r.departments[key] = g
	r.deptOrder = append(r.deptOrder, g)
	return g
}

func (r *resolver) labFor(link model.AcademicLink) *nodeGroup {
	key := strings.ToLower(link.URL)
	if g, ok := r.labs[key]; ok {
		return g
	}
	name := strings.TrimSpace(link.Text)
	if name == "" || strings.EqualFold(name, "lab") {
		name = labNameFromURL(link.URL)
	}
	g := &nodeGroup{key: key, name: name, profileURL: link.URL}
	r.labs[key] = g
	r.labOrder = append(r.labOrder, g)
	return g
}

func (r *resolver) universityFor(sourceURL string) *nodeGroup {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return nil
	}
	key := hostDomain(u.Hostname())
	if key == "" {
		return nil
	}
	if g, ok := r.universities[key]; ok {
		return g
	}
	g := &nodeGroup{key: key, name: key}
	r.universities[key] = g
	r.univOrder = append(r.univOrder, g)
	return g
}

// build finalizes entities and associations.
func (r *resolver) build() *model.Graph {
	graph := &model.Graph{}

	facultyIDs := make(map[*facultyGroup]string)
	for _, g := range r.facultyOrder {
		id := entityID(model.EntityFaculty, g.key+"|"+g.domain)
		facultyIDs[g] = id
		graph.Entities = append(graph.Entities, model.Entity{
			EntityID:         id,
			Type:             model.EntityFaculty,
			Name:             g.name.value,
			Title:            g.title.value,
			Email:            g.email.value,
			ProfileURL:       g.profileURL.value,
			Confidence:       aggregateConfidence(g.contributions),
			SourceCandidates: g.candidateIDs,
		})
	}

	nodeIDs := make(map[*nodeGroup]string)
	appendNodes := func(order []*nodeGroup, t model.EntityType) {
		for _, g := range order {
			id := entityID(t, g.key)
			nodeIDs[g] = id
			graph.Entities = append(graph.Entities, model.Entity{
				EntityID:         id,
				Type:             t,
				Name:             g.name,
				ProfileURL:       g.profileURL,
				Confidence:       aggregateConfidence(g.contributions),
				SourceCandidates: g.candidateIDs,
			})
		}
	}
	appendNodes(r.deptOrder, model.EntityDepartment)
	appendNodes(r.labOrder, model.EntityLab)
	appendNodes(r.univOrder, model.EntityUniversity)

	confidence := make(map[string]float64, len(graph.Entities))
	for _, e := range graph.Entities {
		confidence[e.EntityID] = e.Confidence
	}

	// Associations: dedupe on the (from, to, type) triple; re-derivation
	// extends provenance, never creates a second edge.
	edgeIndex := make(map[string]int)
	for _, p := range r.pending {
		var fromID, toID string
		switch {
		case p.fromGroup != nil && p.toDept != nil:
			fromID, toID = facultyIDs[p.fromGroup], nodeIDs[p.toDept]
		case p.fromGroup != nil && p.toLab != nil:
			fromID, toID = facultyIDs[p.fromGroup], nodeIDs[p.toLab]
		case p.fromDept != nil && p.toUniv != nil:
			fromID, toID = nodeIDs[p.fromDept], nodeIDs[p.toUniv]
		default:
			continue
		}

		edgeKey := fromID + "|" + toID + "|" + string(p.assocType)
		if idx, ok := edgeIndex[edgeKey]; ok {
			assoc := &graph.Associations[idx]
			if !containsString(assoc.SourceCandidates, p.candidateID) {
				assoc.SourceCandidates = append(assoc.SourceCandidates, p.candidateID)
			}
			continue
		}

		edgeIndex[edgeKey] = len(graph.Associations)
		graph.Associations = append(graph.Associations, model.Association{
			FromID:           fromID,
			ToID:             toID,
			Type:             p.assocType,
			Confidence:       min(confidence[fromID], confidence[toID]),
			SourceCandidates: []string{p.candidateID},
		})
	}

	zap.L().Info("resolve: graph built",
		zap.Int("faculty", len(r.facultyOrder)),
		zap.Int("departments", len(r.deptOrder)),
		zap.Int("labs", len(r.labOrder)),
		zap.Int("universities", len(r.univOrder)),
		zap.Int("associations", len(graph.Associations)),
	)

	return graph
}

// bestFieldConfidence is a candidate's strongest single field, its
// corroboration weight during aggregation.
func bestFieldConfidence(c *model.EnrichedCandidate) float64 {
	var best float64
	for _, conf := range c.FieldConfidence {
		if conf > best {
			best = conf
		}
	}
	return best
}

// aggregateConfidence computes 1 - Π(1 - cᵢ): independent corroboration
// pushes confidence up, never down, capped at 1.0.
func aggregateConfidence(contributions []float64) float64 {
	remaining := 1.0
	for _, c := range contributions {
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		remaining *= 1 - c
	}
	score := 1 - remaining
	if score > 1 {
		score = 1
	}
	return score
}

func labNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return u.Hostname()
	}
	return strings.ReplaceAll(strings.ReplaceAll(last, "-", " "), "_", " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
