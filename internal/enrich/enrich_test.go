package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MellowMango/apartment-search-sub005/internal/fetcher"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

func testFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{MaxAttempts: 1, PerHostRPS: 1000, PerHostBurst: 100})
}

const profilePage = `
<html>
<body>
<nav>Site navigation that should not appear in the excerpt</nav>
<h1>Jane Smith</h1>
<p>Jane Smith is an associate professor working on distributed systems.</p>
<ul>
  <li><a href="/smith/publications">Publications</a></li>
  <li><a href="/smith/cv.pdf">CV</a></li>
  <li><a href="https://syslab.example.edu">Systems Lab</a></li>
  <li><a href="/smith/publications">Publications</a></li>
  <li><a href="/campus-map">Campus Map</a></li>
</ul>
<script>console.log("noise")</script>
<footer>Footer noise</footer>
</body>
</html>`

func TestEnrichSucceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profilePage))
	}))
	defer srv.Close()

	e := New(testFetcher())
	c := model.RawCandidate{Name: "Jane Smith", ProfileURL: srv.URL + "/people/jane"}

	out := e.Enrich(context.Background(), c)

	assert.Equal(t, model.EnrichmentSucceeded, out.Enrichment)
	assert.Contains(t, out.FullTextExcerpt, "distributed systems")
	assert.NotContains(t, out.FullTextExcerpt, "console.log")
	assert.NotContains(t, out.FullTextExcerpt, "Footer noise")
	assert.NotContains(t, out.FullTextExcerpt, "Site navigation")

	require.Len(t, out.AcademicLinks, 3, "allowlist filters and dedupes")
	assert.Equal(t, model.LinkPublication, out.AcademicLinks[0].Kind)
	assert.Equal(t, srv.URL+"/smith/publications", out.AcademicLinks[0].URL)
	assert.Equal(t, model.LinkCV, out.AcademicLinks[1].Kind)
	assert.Equal(t, model.LinkLab, out.AcademicLinks[2].Kind)
	assert.Equal(t, "https://syslab.example.edu", out.AcademicLinks[2].URL)
}

func TestEnrichNoProfileURL(t *testing.T) {
	e := New(testFetcher())
	c := model.RawCandidate{Name: "Jane Smith"}

	out := e.Enrich(context.Background(), c)

	assert.Equal(t, model.EnrichmentNotAttempted, out.Enrichment)
	assert.Equal(t, "Jane Smith", out.Name, "pre-enrichment fields survive")
	assert.Empty(t, out.AcademicLinks)
}

func TestEnrichFetchFailureKeepsCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(testFetcher())
	c := model.RawCandidate{
		Name:       "Jane Smith",
		Email:      "j.smith@example.edu",
		ProfileURL: srv.URL + "/gone",
	}

	out := e.Enrich(context.Background(), c)

	assert.Equal(t, model.EnrichmentFailed, out.Enrichment)
	assert.Equal(t, "Jane Smith", out.Name)
	assert.Equal(t, "j.smith@example.edu", out.Email)
	assert.Empty(t, out.FullTextExcerpt)
	assert.Empty(t, out.AcademicLinks)
}

func TestEnrichExcerptCapped(t *testing.T) {
	long := "<html><body><p>"
	for i := 0; i < 500; i++ {
		long += "lorem ipsum dolor sit amet "
	}
	long += "</p></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(long))
	}))
	defer srv.Close()

	e := New(testFetcher())
	out := e.Enrich(context.Background(), model.RawCandidate{Name: "X Y", ProfileURL: srv.URL})

	assert.Equal(t, model.EnrichmentSucceeded, out.Enrichment)
	assert.LessOrEqual(t, len(out.FullTextExcerpt), defaultMaxExcerpt)
}
