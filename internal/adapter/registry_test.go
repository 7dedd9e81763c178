package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySelectOrder(t *testing.T) {
	broad, err := New("broad", []string{"example.edu"}, Rules{})
	require.NoError(t, err)
	narrow, err := New("narrow", []string{"cs.example.edu"}, Rules{})
	require.NoError(t, err)

	// Registration order wins on overlap.
	reg := NewRegistry(narrow, broad)
	assert.Equal(t, "narrow", reg.Select("https://cs.example.edu/faculty").Name)
	assert.Equal(t, "broad", reg.Select("https://math.example.edu/faculty").Name)

	reg = NewRegistry(broad, narrow)
	assert.Equal(t, "broad", reg.Select("https://cs.example.edu/faculty").Name)
}

func TestRegistrySelectNeverNil(t *testing.T) {
	reg := NewRegistry()
	a := reg.Select("https://unknown.example.org/people")
	require.NotNil(t, a)
	assert.Equal(t, "generic", a.Name)

	a = reg.Select("garbage input")
	require.NotNil(t, a)
	assert.Equal(t, "generic", a.Name)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adapters.yaml")

	rules := `
adapters:
  - name: state-u
    hosts:
      - "*.state.edu"
    rules:
      listing_selector: ".faculty-card"
      name_selector: "h3"
      title_selector: ".title"
      link_selector: "a.profile"
      field_patterns:
        office: 'Office:\s*(\S+)'
  - name: tech-institute
    hosts:
      - directory.tech.edu
    rules:
      listing_selector: "tr.person"
      name_selector: "td.name"
`
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Adapters(), 2)

	a := reg.Select("https://cs.state.edu/faculty")
	assert.Equal(t, "state-u", a.Name)
	assert.Equal(t, ".faculty-card", a.Rules.ListingSelector)
	assert.NotNil(t, a.FieldRegexp("office"))

	assert.Equal(t, "tech-institute", reg.Select("https://directory.tech.edu/all").Name)
	assert.Equal(t, "generic", reg.Select("https://elsewhere.edu/people").Name)
}

func TestLoadRegistryMissingFile(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, reg.Adapters())
	assert.Equal(t, "generic", reg.Select("https://x.edu/").Name)
}

func TestLoadRegistryInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adapters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapters: [unclosed"), 0o644))

	_, err := LoadRegistry(path)
	require.Error(t, err)
}

func TestLoadRegistryUnnamedAdapter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adapters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapters:\n  - hosts: [\"x.edu\"]\n"), 0o644))

	_, err := LoadRegistry(path)
	require.Error(t, err)
}
