package review

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/helixir/literature-digest-service/internal/citation"
	"github.com/helixir/literature-digest-service/internal/domain"
)

const (
	debugTimestampLayout = "20060102_150405"
	debugTitleLimit      = 100
	debugBodyLimit       = 1000
	debugUnreferencedMax = 50
	debugRule            = "=================================================="
)

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// DebugDumper writes per-keyword review artifacts to a directory.
type DebugDumper struct {
	dir string
}

// NewDebugDumper returns a dumper writing into dir.
func NewDebugDumper(dir string) *DebugDumper {
	return &DebugDumper{dir: dir}
}

// Dir returns the output directory.
func (d *DebugDumper) Dir() string {
	return d.dir
}

// WriteRawReview saves the model output together with the numbered article
// list it was generated from.
func (d *DebugDumper) WriteRawReview(keyword string, articles []domain.Article, raw string, at time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %s\n", keyword)
	fmt.Fprintf(&b, "Articles: %d\n", len(articles))
	fmt.Fprintf(&b, "Generated: %s\n", at.Format(time.DateTime))
	b.WriteString(debugRule + "\n\n")
	b.WriteString("Article list:\n")
	writeArticleList(&b, articles)
	b.WriteString("\n" + debugRule + "\n\n")
	b.WriteString("Review:\n")
	b.WriteString(raw)

	return d.write(keyword, "raw_review", at, b.String())
}

// WriteCitationAnalysis saves how the review's markers were reconciled.
func (d *DebugDumper) WriteCitationAnalysis(keyword string, articles []domain.Article, rev citation.Review, at time.Time) (string, error) {
	res := rev.Result

	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %s\n", keyword)
	fmt.Fprintf(&b, "Analyzed: %s\n", at.Format(time.DateTime))
	fmt.Fprintf(&b, "Articles: %d\n", len(articles))
	fmt.Fprintf(&b, "Outcome: %s\n", res.Outcome)
	if rev.Recovered != "" {
		fmt.Fprintf(&b, "Recovered from: %s\n", rev.Recovered)
	}
	b.WriteString(debugRule + "\n\n")

	b.WriteString("Body (references section removed):\n")
	b.WriteString(truncate(rev.Body, debugBodyLimit) + "\n\n")

	b.WriteString("Extracted references in order:\n")
	fmt.Fprintf(&b, "%v\nTotal: %d\n\n", rev.RawRefs, len(rev.RawRefs))

	b.WriteString("Distinct references in first-appearance order:\n")
	fmt.Fprintf(&b, "%v\nTotal: %d\n\n", res.OrderedOldRefs, len(res.OrderedOldRefs))

	b.WriteString("Statistics:\n")
	fmt.Fprintf(&b, "Referenced: %d\n", res.Stats.Referenced)
	fmt.Fprintf(&b, "Unreferenced: %d\n", res.Stats.Unreferenced)
	fmt.Fprintf(&b, "Reference rate: %.1f%%\n", res.Stats.Rate*100)
	fmt.Fprintf(&b, "Band: %s\n\n", res.Stats.Band)

	b.WriteString("Mapping:\n")
	for _, old := range res.OrderedOldRefs {
		fmt.Fprintf(&b, "[%d] -> [%d] (PMID: %s)\n", old, res.OldToNew[old], articles[old-1].PMID)
	}
	b.WriteString("\n")

	if len(res.Skipped) > 0 {
		b.WriteString("Skipped references:\n")
		fmt.Fprintf(&b, "%v\n\n", res.Skipped)
	}

	if n := len(res.Stats.UnreferencedIndices); n > 0 {
		shown := res.Stats.UnreferencedIndices
		if n > debugUnreferencedMax {
			shown = shown[:debugUnreferencedMax]
		}
		b.WriteString("Unreferenced articles:\n")
		for _, idx := range shown {
			if idx >= 1 && idx <= len(articles) {
				fmt.Fprintf(&b, "[%d] PMID: %s\n", idx, articles[idx-1].PMID)
			}
		}
		if n > len(shown) {
			fmt.Fprintf(&b, "... %d more\n", n-len(shown))
		}
		b.WriteString("\n")
	}

	b.WriteString(debugRule + "\n\n")
	b.WriteString("Rewritten body:\n")
	b.WriteString(rev.Body)
	b.WriteString("\n\nFinal article list:\n")
	writeArticleList(&b, res.Articles)

	return d.write(keyword, "citation_analysis", at, b.String())
}

func (d *DebugDumper) write(keyword, kind string, at time.Time, content string) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.txt", at.Format(debugTimestampLayout), safeFileName(keyword), kind)
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func writeArticleList(b *strings.Builder, articles []domain.Article) {
	for i, a := range articles {
		fmt.Fprintf(b, "[%d] PMID: %s - %s\n", i+1, a.PMID, truncate(a.Title, debugTitleLimit))
	}
}

// safeFileName keeps letters, digits, '-' and '_' and collapses the rest.
func safeFileName(s string) string {
	s = strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return "keyword"
	}
	return s
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
