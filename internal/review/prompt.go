package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/llm"
	"github.com/helixir/literature-digest-service/internal/papersources/pubmed"
)

// Placeholders accepted by the prompt templates.
const (
	varKeyword      = "keyword"
	varDateQuery    = "date_query"
	varArticlesText = "articles_text"
)

// QueryPrompt renders the search-term prompt for a keyword. The date clause
// selects the UTC publication day windowDays before now.
func QueryPrompt(template, keyword string, now time.Time, windowDays int) (string, error) {
	return llm.RenderPrompt(template, map[string]string{
		varKeyword:   keyword,
		varDateQuery: pubmed.DateQuery(now, windowDays),
	})
}

// ReviewPrompt renders the review prompt for a keyword and its articles.
func ReviewPrompt(template, keyword string, articles []domain.Article) (string, error) {
	return llm.RenderPrompt(template, map[string]string{
		varKeyword:      keyword,
		varArticlesText: ArticlesText(articles),
	})
}

// ArticlesText lists the articles for the review prompt. Each block is
// numbered by the article's 1-based position, which is the number the model
// is asked to cite.
func ArticlesText(articles []domain.Article) string {
	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "文献 [%d]:\n", i+1)
		fmt.Fprintf(&b, "标题: %s\n", a.Title)
		fmt.Fprintf(&b, "作者: %s\n", a.Authors)
		fmt.Fprintf(&b, "期刊: %s\n", a.Journal)
		fmt.Fprintf(&b, "年份: %s\n", a.Year)
		fmt.Fprintf(&b, "PMID: [%s](%s)\n", a.PMID, pubmed.ArticleURL(a.PMID))
		fmt.Fprintf(&b, "摘要: %s\n\n", a.Abstract)
	}
	return b.String()
}
