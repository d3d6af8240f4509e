// Package report renders the dashboard summary for the terminal and exports
// the monthly series for offline analysis.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shelfscan/shelfscan/internal/models"
	"gopkg.in/yaml.v3"
)

// Greeting returns the home-screen salutation for the hour of t.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good Morning"
	case h < 17:
		return "Good Afternoon"
	case h < 20:
		return "Good Evening"
	default:
		return "Good Night"
	}
}

// Summary is the document written by WriteYAML.
type Summary struct {
	Greeting  string            `yaml:"greeting"`
	User      models.User       `yaml:"user"`
	Generated string            `yaml:"generated"`
	Dashboard *models.Dashboard `yaml:"dashboard"`
}

// WriteYAML writes the dashboard for user as YAML.
func WriteYAML(w io.Writer, now time.Time, user models.User, d *models.Dashboard) error {
	doc := Summary{
		Greeting:  fmt.Sprintf("%s, %s", Greeting(now), user.Name),
		User:      user,
		Generated: now.Format(time.RFC3339),
		Dashboard: d,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// WriteText writes the dashboard as the short plain-text card shown by default.
func WriteText(w io.Writer, now time.Time, user models.User, d *models.Dashboard) error {
	_, err := fmt.Fprintf(w, "%s, %s\n\nProducts: %d\nImages:   %d\nGrowth:   %.1f%% this month\n",
		Greeting(now), user.Name, d.Stats.Products, d.Stats.Images, d.Stats.MonthlyGrowth)
	if err != nil {
		return err
	}
	if d.MonthlyData == nil {
		return nil
	}
	for _, p := range Points(d.MonthlyData) {
		if _, err := fmt.Fprintf(w, "  %-8s %-12s %g\n", p.Month, p.Series, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Point is one cell of the monthly series, flattened for columnar export.
type Point struct {
	Month  string  `parquet:"month" yaml:"month"`
	Series string  `parquet:"series" yaml:"series"`
	Value  float64 `parquet:"value" yaml:"value"`
}

// Points flattens a chart series into month/series/value rows. Series are
// named from the legend when it has an entry, series_<n> otherwise; values
// without a label are dropped.
func Points(m *models.MonthlySeries) []Point {
	if m == nil {
		return nil
	}
	var out []Point
	for i, ds := range m.Datasets {
		name := fmt.Sprintf("series_%d", i+1)
		if i < len(m.Legend) && m.Legend[i] != "" {
			name = m.Legend[i]
		}
		for j, v := range ds.Data {
			if j >= len(m.Labels) {
				break
			}
			out = append(out, Point{Month: m.Labels[j], Series: name, Value: v})
		}
	}
	return out
}

// ExportParquet writes the monthly series of d to path.
func ExportParquet(path string, d *models.Dashboard) (int, error) {
	if d == nil || d.MonthlyData == nil {
		return 0, fmt.Errorf("dashboard has no monthly data")
	}
	rows := Points(d.MonthlyData)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return 0, fmt.Errorf("failed to write parquet file: %w", err)
	}

	slog.Debug("Exported monthly series", "path", path, "rows", len(rows))
	return len(rows), nil
}

// LoadParquet reads back a file written by ExportParquet.
func LoadParquet(path string) ([]Point, error) {
	rows, err := parquet.ReadFile[Point](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}
