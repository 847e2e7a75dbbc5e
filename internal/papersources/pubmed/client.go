package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 20

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// DefaultTool is sent as the NCBI tool parameter.
	DefaultTool = "literature-digest-service"

	// ArticleURLPrefix is the public PubMed page prefix for a PMID.
	ArticleURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"

	// maxResponseBytes caps the size of a single E-utilities response body.
	maxResponseBytes = 10 << 20

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	APIKey string

	// Email is the contact address NCBI asks every client to send.
	Email string

	// Tool names the calling application. Defaults to DefaultTool.
	Tool string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxRetries is the number of retries on 429 and 5xx responses.
	MaxRetries int

	// MaxResults is the default maximum results per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Tool == "" {
		c.Tool = DefaultTool
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.ArticleSource interface for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	now        func() time.Time
}

// Compile-time check that Client implements ArticleSource.
var _ papersources.ArticleSource = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	userAgent := papersources.DefaultUserAgent
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpCfg := papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  userAgent,
	}

	return NewWithHTTPClient(cfg, papersources.NewHTTPClient(httpCfg, logger), logger)
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("source", sourceName).Logger(),
		now:        time.Now,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Search queries PubMed for articles matching the given parameters.
// It performs a two-step search:
// 1. esearch.fcgi - retrieves PMIDs matching the query
// 2. efetch.fcgi - retrieves full article metadata for the PMIDs
//
// Articles are returned in esearch PMID order.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, domain.NewValidationError("query", "search query is empty")
	}

	startTime := time.Now()
	empty := func(total int) *papersources.SearchResult {
		return &papersources.SearchResult{
			Articles:       []domain.Article{},
			TotalResults:   total,
			Source:         sourceName,
			SearchDuration: time.Since(startTime),
		}
	}

	searchResult, err := c.esearch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	if searchResult.ERROR != "" {
		return nil, domain.NewExternalAPIError(sourceName, http.StatusOK, searchResult.ERROR, nil)
	}

	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		c.logger.Warn().
			Strs("phrases", searchResult.ErrorList.PhraseNotFound).
			Msg("query phrases not found")
		if len(searchResult.IDList.IDs) == 0 {
			return empty(0), nil
		}
	}

	if len(searchResult.IDList.IDs) == 0 {
		return empty(searchResult.Count), nil
	}

	set, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	byPMID := make(map[string]PubmedArticle, len(set.Articles))
	for _, record := range set.Articles {
		byPMID[strings.TrimSpace(record.MedlineCitation.PMID.Value)] = record
	}

	articles := make([]domain.Article, 0, len(set.Articles))
	for _, pmid := range searchResult.IDList.IDs {
		record, ok := byPMID[strings.TrimSpace(pmid)]
		if !ok {
			c.logger.Warn().Str("pmid", pmid).Msg("efetch returned no record for pmid")
			continue
		}
		article := c.toArticle(record)
		c.logger.Debug().
			Str("pmid", article.PMID).
			Str("issn", article.ISSN).
			Str("eissn", article.EISSN).
			Msg("parsed article")
		articles = append(articles, article)
	}

	return &papersources.SearchResult{
		Articles:       articles,
		TotalResults:   searchResult.Count,
		Source:         sourceName,
		SearchDuration: time.Since(startTime),
	}, nil
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, params papersources.SearchParams) (*ESearchResult, error) {
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", params.Query)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(maxResults))

	var result ESearchResult
	if err := c.get(ctx, "esearch.fcgi", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	var result PubmedArticleSet
	if err := c.get(ctx, "efetch.fcgi", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// get issues a GET against an E-utility, adding the identification and key
// parameters, and decodes the XML response into out.
func (c *Client) get(ctx context.Context, utility string, q url.Values, out any) error {
	u, err := url.Parse(c.config.BaseURL + "/" + utility)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	q.Set("tool", c.config.Tool)
	if c.config.Email != "" {
		q.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewExternalAPIError(sourceName, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse XML response: %w", err)
	}
	return nil
}

// toArticle converts a PubmedArticle record to a domain.Article.
func (c *Client) toArticle(record PubmedArticle) domain.Article {
	citation := record.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID.Value)

	title := strings.TrimSpace(citation.Article.ArticleTitle.String())
	if title == "" {
		title = "No title"
	}

	issn, eissn := extractISSNs(citation.Article.Journal, citation.MedlineJournalInfo)

	article := domain.Article{
		PMID:     pmid,
		Link:     ArticleURL(pmid),
		Title:    title,
		Authors:  extractAuthors(citation.Article.AuthorList),
		Journal:  extractJournal(citation.Article.Journal),
		Year:     c.extractYear(citation.Article.Journal.JournalIssue.PubDate),
		ISSN:     issn,
		EISSN:    eissn,
		Abstract: extractAbstract(citation.Article.Abstract),
	}

	if article.Abstract == "" {
		article.Abstract = domain.NoAbstract
		article.TranslatedAbstract = domain.NoAbstractTranslation
	}

	return article
}

// ArticleURL returns the public PubMed page for a PMID.
func ArticleURL(pmid string) string {
	return ArticleURLPrefix + pmid + "/"
}

// extractJournal prefers the ISO abbreviation and falls back to the full title.
func extractJournal(journal Journal) string {
	if name := strings.TrimSpace(journal.ISOAbbreviation); name != "" {
		return name
	}
	if name := strings.TrimSpace(journal.Title); name != "" {
		return name
	}
	return "Unknown journal"
}

// extractYear returns the publication year from PubDate, then MedlineDate,
// and finally the current year.
func (c *Client) extractYear(pubDate PubDate) string {
	if year := strings.TrimSpace(pubDate.Year); year != "" {
		return year
	}
	if year := extractYearFromMedlineDate(pubDate.MedlineDate); year > 0 {
		return strconv.Itoa(year)
	}
	return strconv.Itoa(c.now().Year())
}

// extractYearFromMedlineDate extracts the year from a MedlineDate string.
func extractYearFromMedlineDate(medlineDate string) int {
	// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021", etc.
	parts := strings.Fields(medlineDate)
	if len(parts) > 0 {
		yearStr := strings.Split(parts[0], "-")[0]
		if year, err := strconv.Atoi(yearStr); err == nil {
			return year
		}
	}
	return 0
}

// extractISSNs picks the print ISSN and the electronic ISSN used for metric
// lookups. The linking ISSN from MedlineJournalInfo wins for the electronic
// slot; otherwise the Electronic ISSN is used. The print slot takes the Print
// ISSN, else the first ISSN that is not Electronic.
func extractISSNs(journal Journal, info *MedlineJournalInfo) (issn, eissn string) {
	if info != nil {
		eissn = strings.TrimSpace(info.ISSNLinking)
	}

	for _, tag := range journal.ISSN {
		value := strings.TrimSpace(tag.Value)
		if value == "" {
			continue
		}
		switch tag.IssnType {
		case "Electronic":
			if eissn == "" {
				eissn = value
			}
		case "Print":
			issn = value
		}
	}

	if issn == "" {
		for _, tag := range journal.ISSN {
			value := strings.TrimSpace(tag.Value)
			if value != "" && tag.IssnType != "Electronic" {
				issn = value
				break
			}
		}
	}

	return issn, eissn
}

// extractAbstract joins the abstract sections with single spaces, prefixing
// labeled sections with their label.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" && len(abstract.AbstractTexts) > 1 {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// extractAuthors renders the author list as "LastName Initials" entries
// joined by ", ". Group authors use their collective name.
func extractAuthors(authorList *AuthorList) string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return ""
	}

	names := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.LastName != "" {
			name = strings.TrimSpace(a.LastName + " " + a.Initials)
		} else {
			name = strings.TrimSpace(a.CollectiveName)
		}
		if name == "" {
			continue
		}
		names = append(names, name)
	}

	return strings.Join(names, ", ")
}
