package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/helixir/literature-digest-service/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// DateLayout formats report dates.
const DateLayout = "2006-01-02"

// ReportSubject returns the subject of a keyword report.
func ReportSubject(keyword string, date time.Time) string {
	return fmt.Sprintf("PubMed daily literature report - %s - %s", keyword, date.Format(DateLayout))
}

// AdminSubject returns the subject of the per-run admin summary.
func AdminSubject(status domain.RunStatus) string {
	return fmt.Sprintf("PubMed Literature Push daily task report: %s", status)
}

// ReportData is the input of a keyword report.
type ReportData struct {
	Keyword string
	Date    time.Time
	// Review is the rewritten review body in markdown.
	Review string
	// Articles are the cited articles in reconciled order.
	Articles []domain.Article
}

// Renderer turns reports and run summaries into HTML.
type Renderer struct {
	report *template.Template
	admin  *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"metric": func(a domain.Article, source, field string) string {
			return a.Metric(source, field)
		},
	}

	report, err := template.New("report.html").Funcs(funcs).ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	admin, err := template.New("admin.html").ParseFS(templateFS, "templates/admin.html")
	if err != nil {
		return nil, fmt.Errorf("parse admin template: %w", err)
	}

	return &Renderer{report: report, admin: admin}, nil
}

// RenderReport renders the HTML body of a keyword report.
func (r *Renderer) RenderReport(data ReportData) (string, error) {
	view := struct {
		Keyword    string
		Date       string
		ReviewHTML template.HTML
		Articles   []domain.Article
	}{
		Keyword:    data.Keyword,
		Date:       data.Date.Format(DateLayout),
		ReviewHTML: RenderMarkdown(data.Review),
		Articles:   data.Articles,
	}

	var buf bytes.Buffer
	if err := r.report.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render report for %q: %w", data.Keyword, err)
	}
	return buf.String(), nil
}

// RenderAdminSummary renders the admin run summary.
func (r *Renderer) RenderAdminSummary(summary *domain.RunSummary) (string, error) {
	const stamp = "2006-01-02 15:04:05"

	view := struct {
		RunID    string
		Status   domain.RunStatus
		Start    string
		End      string
		Duration string
		Lines    []string
		Error    string
	}{
		RunID:    summary.RunID.String(),
		Status:   summary.Status,
		Start:    summary.StartedAt.Format(stamp),
		End:      summary.EndedAt.Format(stamp),
		Duration: summary.Duration().Round(time.Second).String(),
		Error:    summary.Error,
	}
	for _, k := range summary.Keywords {
		view.Lines = append(view.Lines, KeywordLine(k))
	}

	var buf bytes.Buffer
	if err := r.admin.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render admin summary: %w", err)
	}
	return buf.String(), nil
}

// KeywordLine is the one-line admin summary of a keyword outcome.
func KeywordLine(k domain.KeywordOutcome) string {
	switch k.Status {
	case domain.KeywordStatusDelivered:
		return fmt.Sprintf("- Keyword '%s': found %d articles, sent to %d recipients (%d delivered).",
			k.Keyword, k.ArticlesFound, k.Recipients, k.DeliveredEmails)
	case domain.KeywordStatusNoArticles:
		return fmt.Sprintf("- Keyword '%s': no new articles.", k.Keyword)
	default:
		return fmt.Sprintf("- Keyword '%s': failed: %s", k.Keyword, k.Error)
	}
}

// RenderMarkdown converts review markdown to HTML. Links open in a new tab.
func RenderMarkdown(text string) template.HTML {
	if text == "" {
		return template.HTML("")
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})

	return template.HTML(markdown.ToHTML([]byte(text), mdParser, renderer))
}
