package crawler

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

const searchPageURL = "https://www.indeed.com/jobs?q=Engineer&l=CA"

func TestParseListingPageSingleCard(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="abc123" title="Engineer" href="/rc/clk?jk=abc123">Engineer</a></div>
  <span class="company">Initech</span>
  <div class="location">Remote</div>
</div>`)

	page := ParseListingPage(doc, mustURL(t, searchPageURL), DefaultSelectors())
	require.Len(t, page.Summaries, 1)
	assert.Empty(t, page.Dropped)
	assert.Empty(t, page.NextPage)

	got := page.Summaries[0]
	assert.Equal(t, ListingSummary{
		Title:     "Engineer",
		Link:      "https://www.indeed.com/rc/clk?jk=abc123",
		Company:   "Initech",
		Location:  "Remote",
		RawID:     "abc123",
		DerivedID: "Engineer_id_abc123",
	}, got)
}

func TestParseListingPageCompanyFallback(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="x1" title="Analyst" href="/rc/clk?jk=x1">Analyst</a></div>
  <span class="company">
      <a href="/cmp/acme"> Acme Corp </a></span>
  <span class="location"><span>Austin, TX</span></span>
</div>
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="x2" title="Analyst II" href="/rc/clk?jk=x2">Analyst II</a></div>
  <div class="location">Dallas, TX</div>
</div>`)

	page := ParseListingPage(doc, mustURL(t, searchPageURL), DefaultSelectors())
	require.Len(t, page.Summaries, 2)
	assert.Equal(t, "Acme Corp", page.Summaries[0].Company)
	assert.Equal(t, "Austin, TX", page.Summaries[0].Location)
	assert.Equal(t, "", page.Summaries[1].Company, "no company element is not an error")
}

func TestParseListingPageDropsIncompleteCards(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="ok" title="Keeper" href="/rc/clk?jk=ok"></a></div>
  <div class="location">Remote</div>
</div>
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="t1" href="/rc/clk?jk=t1"></a></div>
  <div class="location">Remote</div>
</div>
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="l1" title="No link"></a></div>
  <div class="location">Remote</div>
</div>
<div class="jobsearch-SerpJobCard">
  <div class="title"><a title="No id" href="/rc/clk?jk=n"></a></div>
  <div class="location">Remote</div>
</div>
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="loc" title="No location" href="/rc/clk?jk=loc"></a></div>
</div>
<div class="jobsearch-SerpJobCard">
  <div class="title"><a id="blank" title="   " href="/rc/clk?jk=blank"></a></div>
  <div class="location">Remote</div>
</div>`)

	page := ParseListingPage(doc, mustURL(t, searchPageURL), DefaultSelectors())
	require.Len(t, page.Summaries, 1)
	assert.Equal(t, "Keeper_id_ok", page.Summaries[0].DerivedID)

	require.Len(t, page.Dropped, 5)
	wantFields := []string{"title", "href", "id", "location", "title"}
	for i, dropped := range page.Dropped {
		assert.Equal(t, i+1, dropped.Index)
		assert.True(t, errors.Is(dropped.Reason, ErrMissingField))
		assert.Contains(t, dropped.Reason.Error(), wantFields[i])
	}
}

func TestParseListingPageNextPage(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
<div class="pagination">
  <a href="/jobs?q=Engineer&l=CA&start=10">2</a>
  <a href="/jobs?q=Engineer&l=CA&start=20">3</a>
  <a href="/jobs?q=Engineer&l=CA&start=10"><span>Next</span></a>
</div>`)

	page := ParseListingPage(doc, mustURL(t, searchPageURL), DefaultSelectors())
	assert.Empty(t, page.Summaries)
	assert.Equal(t, "https://www.indeed.com/jobs?q=Engineer&l=CA&start=10", page.NextPage)
}

func TestParseListingPageCustomSelectors(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
<article class="job">
  <h2><a id="z9" title="Go Dev" href="https://jobs.example/z9"></a></h2>
  <p class="org">Gophers Inc</p>
  <p class="where">Remote</p>
</article>
<nav><a href="?page=2">next</a></nav>`)

	sel := Selectors{
		Card:      "article.job",
		TitleLink: "h2 > a",
		Company:   "p.org",
		Location:  "p.where",
		NextPage:  "nav > a",
	}
	page := ParseListingPage(doc, mustURL(t, "https://jobs.example/search?q=go"), sel)
	require.Len(t, page.Summaries, 1)
	assert.Equal(t, "https://jobs.example/z9", page.Summaries[0].Link)
	assert.Equal(t, "Gophers Inc", page.Summaries[0].Company)
	assert.Equal(t, "https://jobs.example/search?page=2", page.NextPage)
}
