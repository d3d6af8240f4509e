package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shelfscan/shelfscan/internal/models"
	"gopkg.in/yaml.v3"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 1, hour, 30, 0, 0, time.UTC)
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		hour     int
		expected string
	}{
		{0, "Good Morning"},
		{11, "Good Morning"},
		{12, "Good Afternoon"},
		{16, "Good Afternoon"},
		{17, "Good Evening"},
		{19, "Good Evening"},
		{20, "Good Night"},
		{23, "Good Night"},
	}
	for _, tt := range tests {
		if got := Greeting(at(tt.hour)); got != tt.expected {
			t.Errorf("hour %d: expected %q, got %q", tt.hour, tt.expected, got)
		}
	}
}

func sample() *models.Dashboard {
	return &models.Dashboard{
		Stats: models.DashboardStats{Products: 4, Images: 17, MonthlyGrowth: 12.5},
		MonthlyData: &models.MonthlySeries{
			Labels:   []string{"Jan", "Feb", "Mar"},
			Datasets: []models.Dataset{{Data: []float64{1, 2, 3}}, {Data: []float64{5, 6}}},
			Legend:   []string{"Products"},
		},
	}
}

func TestPoints(t *testing.T) {
	points := Points(sample().MonthlyData)
	if len(points) != 5 {
		t.Fatalf("Expected 5 points, got %d", len(points))
	}
	if points[0] != (Point{Month: "Jan", Series: "Products", Value: 1}) {
		t.Errorf("unexpected first point %+v", points[0])
	}
	if points[4] != (Point{Month: "Feb", Series: "series_2", Value: 6}) {
		t.Errorf("unexpected last point %+v", points[4])
	}
	if Points(nil) != nil {
		t.Error("Expected nil for missing series")
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	user := models.User{ID: "u1", Name: "Ann"}
	if err := WriteYAML(&buf, at(9), user, sample()); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	var doc Summary
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if doc.Greeting != "Good Morning, Ann" {
		t.Errorf("unexpected greeting %q", doc.Greeting)
	}
	if doc.Dashboard == nil || doc.Dashboard.Stats.Images != 17 {
		t.Errorf("dashboard not round-tripped: %+v", doc.Dashboard)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, at(21), models.User{Name: "Ann"}, sample()); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Good Night, Ann", "Products: 4", "12.5% this month", "Mar"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExportParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "monthly.parquet")

	n, err := ExportParquet(path, sample())
	if err != nil {
		t.Fatalf("ExportParquet failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 rows written, got %d", n)
	}

	rows, err := LoadParquet(path)
	if err != nil {
		t.Fatalf("LoadParquet failed: %v", err)
	}
	if len(rows) != 5 || rows[2].Month != "Mar" || rows[2].Value != 3 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestExportParquet_NoSeries(t *testing.T) {
	_, err := ExportParquet(filepath.Join(t.TempDir(), "x.parquet"), &models.Dashboard{})
	if err == nil {
		t.Error("Expected error for dashboard without monthly data")
	}
}
