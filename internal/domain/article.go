package domain

import "strings"

// Sentinel text values carried on articles.
const (
	// NoAbstract marks an article whose PubMed record has no abstract.
	NoAbstract = "No abstract available"

	// NoAbstractTranslation is preset as the translated abstract of articles
	// without an abstract so they never enter translation.
	NoAbstractTranslation = "No English abstract was retrieved"
)

// Metric source names used as keys of Article.Metrics.
const (
	// MetricSourceCAS is the Chinese Academy of Sciences journal partition table.
	MetricSourceCAS = "cas"
	// MetricSourceJCR is the Journal Citation Reports impact factor table.
	MetricSourceJCR = "jcr"
)

// Metric field names within a metric source.
const (
	MetricMajorZone    = "major_zone"
	MetricTop          = "top"
	MetricMinorZone    = "minor_zone"
	MetricImpactFactor = "impact_factor"
	MetricIFQuartile   = "if_quartile"
)

// MetricSet holds the values one source reports for a journal.
type MetricSet map[string]string

// Article is one PubMed record flowing through the daily pipeline.
//
// The position of an article in the search result is its old 1-based
// citation index; CitationIndex is zero until reconciliation assigns it.
type Article struct {
	// PMID is the PubMed identifier and the stable identity of the article.
	PMID string `json:"pmid"`
	// Link is the PubMed landing page URL.
	Link string `json:"link"`
	// Title is the article title.
	Title string `json:"title"`
	// Authors is the rendered author list ("LastName Initials, ...").
	Authors string `json:"authors"`
	// Journal is the ISO abbreviation or full journal title.
	Journal string `json:"journal"`
	// Year is the publication year as reported by PubMed.
	Year string `json:"year"`
	// ISSN is the print ISSN (may be empty).
	ISSN string `json:"issn"`
	// EISSN is the electronic or linking ISSN (may be empty).
	EISSN string `json:"eissn"`
	// Abstract is the English abstract or NoAbstract.
	Abstract string `json:"abstract"`
	// TranslatedAbstract is empty until translation runs.
	TranslatedAbstract string `json:"translated_abstract,omitempty"`
	// Metrics maps a metric source to the values found for the journal.
	Metrics map[string]MetricSet `json:"metrics,omitempty"`
	// CitationIndex is the 1-based index assigned by citation reconciliation.
	CitationIndex int `json:"citation_index,omitempty"`
}

// HasAbstract reports whether the article carries a real abstract.
func (a Article) HasAbstract() bool {
	abstract := strings.TrimSpace(a.Abstract)
	return abstract != "" && abstract != NoAbstract
}

// Metric returns a single metric value, or "" when absent.
func (a Article) Metric(source, field string) string {
	set, ok := a.Metrics[source]
	if !ok {
		return ""
	}
	return set[field]
}

// Clone returns a copy of the article that shares no maps with the original.
func (a Article) Clone() Article {
	out := a
	if a.Metrics != nil {
		out.Metrics = make(map[string]MetricSet, len(a.Metrics))
		for source, set := range a.Metrics {
			copied := make(MetricSet, len(set))
			for k, v := range set {
				copied[k] = v
			}
			out.Metrics[source] = copied
		}
	}
	return out
}

// CloneArticles deep-copies a slice of articles.
func CloneArticles(articles []Article) []Article {
	if articles == nil {
		return nil
	}
	out := make([]Article, len(articles))
	for i, a := range articles {
		out[i] = a.Clone()
	}
	return out
}

// PMIDs returns the identifiers of the given articles in order.
func PMIDs(articles []Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.PMID
	}
	return ids
}
