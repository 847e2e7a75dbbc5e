package mail

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-digest-service/internal/domain"
)

func TestRenderReport(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	articles := []domain.Article{
		{
			PMID:               "39000001",
			Link:               "https://pubmed.ncbi.nlm.nih.gov/39000001/",
			Title:              "Tumour <microenvironment> in glioma",
			Authors:            "Smith J, Doe A",
			Journal:            "Nat Med",
			Year:               "2026",
			Abstract:           "English abstract.",
			TranslatedAbstract: "中文摘要。",
			CitationIndex:      1,
			Metrics: map[string]domain.MetricSet{
				domain.MetricSourceCAS: {domain.MetricMajorZone: "医学1区", domain.MetricTop: "是"},
				domain.MetricSourceJCR: {domain.MetricImpactFactor: "58.7", domain.MetricIFQuartile: "Q1"},
			},
		},
		{
			PMID:          "39000002",
			Link:          "https://pubmed.ncbi.nlm.nih.gov/39000002/",
			Title:         "Second article",
			Abstract:      domain.NoAbstract,
			CitationIndex: 2,
		},
	}

	out, err := r.RenderReport(ReportData{
		Keyword:  "glioma",
		Date:     time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		Review:   "## Overview\n\nNew data [1] and a [source](https://example.org) [2].",
		Articles: articles,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>glioma</h1>")
	assert.Contains(t, out, "2026-03-04")
	assert.Contains(t, out, `<h2 id="overview">Overview</h2>`)
	assert.Contains(t, out, `target="_blank"`)
	assert.Contains(t, out, "New data [1]")
	assert.Contains(t, out, "Tumour &lt;microenvironment&gt; in glioma")
	assert.Contains(t, out, "中文摘要。")
	assert.Contains(t, out, "CAS 医学1区")
	assert.Contains(t, out, "IF 58.7")
	assert.Contains(t, out, "JCR Q1")
	assert.Contains(t, out, domain.NoAbstract)
	assert.Less(t, strings.Index(out, "39000001"), strings.Index(out, "39000002"), "articles keep reconciled order")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	assert.Equal(t, "", string(RenderMarkdown("")))
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "PubMed daily literature report - CRISPR - 2026-03-04",
		ReportSubject("CRISPR", time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "PubMed Literature Push daily task report: succeeded", AdminSubject(domain.RunStatusSucceeded))
	assert.Equal(t, "PubMed Literature Push daily task report: failed", AdminSubject(domain.RunStatusFailed))
}

func TestRenderAdminSummary(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	summary := domain.NewRunSummary(start)
	summary.Add(domain.KeywordOutcome{Keyword: "glioma", Status: domain.KeywordStatusDelivered, ArticlesFound: 12, Recipients: 2, DeliveredEmails: 2})
	summary.Add(domain.KeywordOutcome{Keyword: "sepsis", Status: domain.KeywordStatusNoArticles})
	summary.Add(domain.KeywordOutcome{Keyword: "asthma", Status: domain.KeywordStatusFailed, Error: "pubmed: esearch returned status 500"})
	summary.Finish(start.Add(95*time.Second), nil)

	out, err := r.RenderAdminSummary(summary)
	require.NoError(t, err)

	assert.Contains(t, out, "Status: succeeded")
	assert.Contains(t, out, "Start: 2026-03-04 08:00:00")
	assert.Contains(t, out, "End: 2026-03-04 08:01:35")
	assert.Contains(t, out, "Duration: 1m35s")
	assert.Contains(t, out, "- Keyword &#39;glioma&#39;: found 12 articles, sent to 2 recipients (2 delivered).")
	assert.Contains(t, out, "no new articles")
	assert.Contains(t, out, "failed: pubmed: esearch returned status 500")
	assert.NotContains(t, out, "fatal error")
}

func TestRenderAdminSummary_FailedRun(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	summary := domain.NewRunSummary(start)
	summary.Finish(start.Add(time.Second), errors.New("build pipeline: no task mapping"))

	out, err := r.RenderAdminSummary(summary)
	require.NoError(t, err)

	assert.Contains(t, out, "Status: failed")
	assert.Contains(t, out, "No keywords were processed.")
	assert.Contains(t, out, "fatal error: build pipeline: no task mapping")
}

func TestKeywordLine(t *testing.T) {
	assert.Equal(t, "- Keyword 'x': no new articles.",
		KeywordLine(domain.KeywordOutcome{Keyword: "x", Status: domain.KeywordStatusNoArticles}))
}
