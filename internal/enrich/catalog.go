// Package enrich attaches journal metrics from local CSV tables to articles.
//
// Two tables are supported: the CAS partition table (zky.csv) and the JCR
// impact factor table (jcr.csv). Both are optional; a missing or malformed
// table leaves the corresponding metrics empty and never fails a run.
package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
)

// CAS table column names, matched after lowercasing.
const (
	zkyISSNColumn      = "issn/eissn"
	zkyMajorZoneColumn = "大类分区"
	zkyTopColumn       = "top"
	zkyMinorZoneColumn = "小类1分区"
)

var (
	impactFactorColumn = regexp.MustCompile(`^if\(\d{4}\)`)
	ifQuartileColumn   = regexp.MustCompile(`^if quartile\(\d{4}\)`)
)

// Catalog maps ISSNs to journal metrics.
type Catalog struct {
	cas map[string]domain.MetricSet
	jcr map[string]domain.MetricSet
}

// NewCatalog builds a catalog from in-memory tables. Nil maps are allowed.
func NewCatalog(cas, jcr map[string]domain.MetricSet) *Catalog {
	if cas == nil {
		cas = map[string]domain.MetricSet{}
	}
	if jcr == nil {
		jcr = map[string]domain.MetricSet{}
	}
	return &Catalog{cas: cas, jcr: jcr}
}

// LoadCatalog reads both tables. Problems with either file are logged and
// produce an empty table for that source.
func LoadCatalog(zkyPath, jcrPath string, logger zerolog.Logger) *Catalog {
	cas, err := loadTable(zkyPath, parseZKY, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", zkyPath).Msg("CAS partition table unavailable, partition metrics will be empty")
	}
	jcr, err := loadTable(jcrPath, func(r io.Reader) (map[string]domain.MetricSet, error) {
		return parseJCR(r, logger)
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", jcrPath).Msg("JCR table unavailable, impact factor metrics will be empty")
	}

	logger.Info().
		Int("cas_entries", len(cas)).
		Int("jcr_entries", len(jcr)).
		Msg("journal metrics loaded")

	return NewCatalog(cas, jcr)
}

func loadTable(path string, parse func(io.Reader) (map[string]domain.MetricSet, error), logger zerolog.Logger) (map[string]domain.MetricSet, error) {
	if path == "" {
		return nil, errors.New("no path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	logger.Debug().Str("path", path).Msg("loading journal metrics table")
	table, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}

// Lookup returns the metrics for a journal. The print ISSN is tried first
// and the electronic ISSN second, per source.
func (c *Catalog) Lookup(issn, eissn string) map[string]domain.MetricSet {
	out := map[string]domain.MetricSet{}
	if set := lookup(c.cas, issn, eissn); set != nil {
		out[domain.MetricSourceCAS] = set
	}
	if set := lookup(c.jcr, issn, eissn); set != nil {
		out[domain.MetricSourceJCR] = set
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func lookup(table map[string]domain.MetricSet, issn, eissn string) domain.MetricSet {
	for _, key := range []string{issn, eissn} {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if set, ok := table[key]; ok && len(set) > 0 {
			copied := make(domain.MetricSet, len(set))
			for k, v := range set {
				copied[k] = v
			}
			return copied
		}
	}
	return nil
}

// Enrich returns copies of articles with Metrics filled in. Articles whose
// journal is unknown get no metrics. The input slice is not modified.
func (c *Catalog) Enrich(articles []domain.Article) []domain.Article {
	out := domain.CloneArticles(articles)
	for i := range out {
		out[i].Metrics = c.Lookup(out[i].ISSN, out[i].EISSN)
	}
	return out
}

// Len returns the number of ISSN keys in each table.
func (c *Catalog) Len() (cas, jcr int) {
	return len(c.cas), len(c.jcr)
}

func parseZKY(r io.Reader) (map[string]domain.MetricSet, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	idx := map[string]int{}
	for _, name := range []string{zkyISSNColumn, zkyMajorZoneColumn, zkyTopColumn, zkyMinorZoneColumn} {
		i, ok := header[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		idx[name] = i
	}

	table := map[string]domain.MetricSet{}
	for _, row := range rows {
		set := domain.MetricSet{
			domain.MetricMajorZone: cell(row, idx[zkyMajorZoneColumn]),
			domain.MetricTop:       cell(row, idx[zkyTopColumn]),
			domain.MetricMinorZone: cell(row, idx[zkyMinorZoneColumn]),
		}
		issn, eissn, _ := strings.Cut(cell(row, idx[zkyISSNColumn]), "/")
		if issn = strings.TrimSpace(issn); issn != "" {
			table[issn] = set
		}
		if eissn = strings.TrimSpace(eissn); eissn != "" {
			table[eissn] = set
		}
	}
	return table, nil
}

func parseJCR(r io.Reader, logger zerolog.Logger) (map[string]domain.MetricSet, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	issnIdx, ok := header["issn"]
	if !ok {
		return nil, errors.New(`missing column "issn"`)
	}
	eissnIdx, ok := header["eissn"]
	if !ok {
		return nil, errors.New(`missing column "eissn"`)
	}

	ifIdx, quartileIdx := -1, -1
	for name, i := range header {
		if impactFactorColumn.MatchString(name) && (ifIdx < 0 || i < ifIdx) {
			ifIdx = i
		}
		if ifQuartileColumn.MatchString(name) && (quartileIdx < 0 || i < quartileIdx) {
			quartileIdx = i
		}
	}
	if ifIdx < 0 {
		logger.Warn().Msg(`JCR table has no impact factor column such as "IF(2024)"`)
	}
	if quartileIdx < 0 {
		logger.Warn().Msg(`JCR table has no quartile column such as "IF Quartile(2024)"`)
	}

	table := map[string]domain.MetricSet{}
	for _, row := range rows {
		set := domain.MetricSet{}
		if v := cell(row, ifIdx); v != "" {
			set[domain.MetricImpactFactor] = v
		}
		if v := cell(row, quartileIdx); v != "" {
			set[domain.MetricIFQuartile] = v
		}
		if len(set) == 0 {
			continue
		}
		if issn := cell(row, issnIdx); issn != "" {
			table[issn] = set
		}
		if eissn := cell(row, eissnIdx); eissn != "" {
			table[eissn] = set
		}
	}
	return table, nil
}

// readCSV returns the lowercased header index and the data rows.
func readCSV(r io.Reader) (map[string]int, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("empty file")
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}
	return header, records[1:], nil
}

// cell returns the trimmed value at i, treating "nan" and "N/A" as empty.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	switch strings.ToLower(v) {
	case "nan", "n/a":
		return ""
	}
	return v
}
