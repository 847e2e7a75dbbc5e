// Package pubmed provides a client for the NCBI PubMed E-utilities API.
//
// PubMed is a biomedical literature database maintained by NCBI.
// This package implements the papersources.ArticleSource interface
// to search PubMed and map the efetch records onto domain.Article values.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import (
	"encoding/xml"
	"strings"
)

// ESearchResult represents the response from the esearch.fcgi endpoint.
// This endpoint returns a list of PMIDs matching a search query.
type ESearchResult struct {
	XMLName   xml.Name   `xml:"eSearchResult"`
	Count     int        `xml:"Count"`
	RetMax    int        `xml:"RetMax"`
	RetStart  int        `xml:"RetStart"`
	IDList    IDList     `xml:"IdList"`
	ErrorList *ErrorList `xml:"ErrorList,omitempty"`
	ERROR     string     `xml:"ERROR,omitempty"`
}

// IDList contains the list of PMIDs returned by a search.
type IDList struct {
	IDs []string `xml:"Id"`
}

// ErrorList contains errors from the E-utilities API.
type ErrorList struct {
	PhraseNotFound []string `xml:"PhraseNotFound,omitempty"`
	FieldNotFound  []string `xml:"FieldNotFound,omitempty"`
}

// PubmedArticleSet represents the response from the efetch.fcgi endpoint.
// This endpoint returns full article metadata for a list of PMIDs.
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle represents a single article in the PubMed database.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID               PMID                `xml:"PMID"`
	Article            Article             `xml:"Article"`
	MedlineJournalInfo *MedlineJournalInfo `xml:"MedlineJournalInfo,omitempty"`
}

// PMID represents the PubMed identifier with optional version.
type PMID struct {
	Version int    `xml:"Version,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// MedlineJournalInfo carries NLM's journal record, including the linking ISSN.
type MedlineJournalInfo struct {
	Country     string `xml:"Country,omitempty"`
	MedlineTA   string `xml:"MedlineTA,omitempty"`
	ISSNLinking string `xml:"ISSNLinking,omitempty"`
}

// Article contains the article metadata.
type Article struct {
	Journal      Journal     `xml:"Journal"`
	ArticleTitle InlineText  `xml:"ArticleTitle"`
	Abstract     *Abstract   `xml:"Abstract,omitempty"`
	AuthorList   *AuthorList `xml:"AuthorList,omitempty"`
}

// Journal contains journal information. A journal may list both a print and
// an electronic ISSN.
type Journal struct {
	ISSN            []ISSN       `xml:"ISSN,omitempty"`
	JournalIssue    JournalIssue `xml:"JournalIssue"`
	Title           string       `xml:"Title,omitempty"`
	ISOAbbreviation string       `xml:"ISOAbbreviation,omitempty"`
}

// ISSN represents a journal ISSN with its type (Print or Electronic).
type ISSN struct {
	IssnType string `xml:"IssnType,attr,omitempty"`
	Value    string `xml:",chardata"`
}

// JournalIssue contains the volume, issue, and publication date.
type JournalIssue struct {
	Volume  string  `xml:"Volume,omitempty"`
	Issue   string  `xml:"Issue,omitempty"`
	PubDate PubDate `xml:"PubDate"`
}

// PubDate represents the publication date which may have various formats.
type PubDate struct {
	Year        string `xml:"Year,omitempty"`
	Month       string `xml:"Month,omitempty"`
	Day         string `xml:"Day,omitempty"`
	Season      string `xml:"Season,omitempty"`
	MedlineDate string `xml:"MedlineDate,omitempty"`
}

// Abstract contains the article abstract, which may have multiple sections.
type Abstract struct {
	AbstractTexts []AbstractText `xml:"AbstractText"`
}

// AbstractText represents a section of the abstract.
// Structured abstracts have labeled sections (Background, Methods, Results, etc.).
type AbstractText struct {
	Label       string
	NlmCategory string
	Value       string
}

// UnmarshalXML keeps the text of inline markup such as <i> and <sup>, which
// a plain chardata field would drop.
func (a *AbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "Label":
			a.Label = attr.Value
		case "NlmCategory":
			a.NlmCategory = attr.Value
		}
	}
	text, err := collectText(d)
	if err != nil {
		return err
	}
	a.Value = text
	return nil
}

// AuthorList contains the list of authors.
type AuthorList struct {
	CompleteYN string   `xml:"CompleteYN,attr,omitempty"`
	Authors    []Author `xml:"Author"`
}

// Author represents a single author or a collective (group) author.
type Author struct {
	ValidYN        string `xml:"ValidYN,attr,omitempty"`
	LastName       string `xml:"LastName,omitempty"`
	ForeName       string `xml:"ForeName,omitempty"`
	Initials       string `xml:"Initials,omitempty"`
	CollectiveName string `xml:"CollectiveName,omitempty"`
}

// InlineText is element text with any nested inline markup flattened.
type InlineText string

// UnmarshalXML implements xml.Unmarshaler.
func (t *InlineText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	text, err := collectText(d)
	if err != nil {
		return err
	}
	*t = InlineText(text)
	return nil
}

// String returns the flattened text.
func (t InlineText) String() string {
	return string(t)
}

// collectText reads tokens up to the end of the current element and returns
// all character data inside it, including that of nested elements.
func collectText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}
