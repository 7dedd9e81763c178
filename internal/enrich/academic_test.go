package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

func TestClassifyLink(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		href     string
		wantKind model.AcademicLinkKind
		wantOK   bool
	}{
		{"publications text", "Publications", "/smith/pubs", model.LinkPublication, true},
		{"papers text", "Selected Papers", "/papers", model.LinkPublication, true},
		{"cv text", "Curriculum Vitae", "/smith/about", model.LinkCV, true},
		{"cv abbreviation", "CV", "/smith/about", model.LinkCV, true},
		{"lab text", "The Vision Lab", "https://visionlab.example.edu", model.LinkLab, true},
		{"laboratory text", "Robotics Laboratory", "/robotics", model.LinkLab, true},
		{"research text", "Research Interests", "/smith/research", model.LinkResearch, true},
		{"scholar text", "Google Scholar", "https://scholar.google.com/citations?user=x", model.LinkResearch, true},
		{"pdf defaults to publication", "Download", "/files/paper-2024.pdf", model.LinkPublication, true},
		{"pdf named cv", "My CV", "/files/smith.pdf", model.LinkCV, true},
		{"url path keyword", "here", "/smith/publications/2024", model.LinkPublication, true},
		{"publication beats lab", "Lab Publications", "/pubs", model.LinkPublication, true},
		{"irrelevant", "Campus Map", "/map", "", false},
		{"irrelevant nav", "Home", "/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ClassifyLink(tt.text, tt.href)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}
