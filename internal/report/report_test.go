// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paperfeed/pkg/types"
)

func paper(id string, score int, published time.Time) types.EnrichedPaper {
	return types.EnrichedPaper{
		Paper: types.Paper{
			ID:        id,
			Title:     "Paper " + id,
			Abstract:  "Abstract " + id,
			Published: published,
			AbsURL:    "https://arxiv.org/abs/" + id,
		},
		Decision:    types.Decision{PaperID: id, Accepted: true, Score: score, Rationale: "matches"},
		AuthorsFull: "Ada (MIT)",
		Summary:     "One sentence.",
	}
}

func TestAssembleTotalOrder(t *testing.T) {
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	papers := []types.EnrichedPaper{
		paper("c", 3, day),
		paper("b", 5, day.AddDate(0, 0, -1)),
		paper("d", 3, day),                  // same score and date as "c": ID ascending
		paper("a", 3, day.AddDate(0, 0, 1)), // same score, newer: first among the 3s
		paper("e", 5, day),                  // higher score and newer than "b"
	}

	r := Assemble(papers, day)
	var got []string
	for _, p := range r.Papers {
		got = append(got, p.ID)
	}
	want := []string{"e", "b", "a", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	papers := []types.EnrichedPaper{
		paper("b", 4, day), paper("a", 4, day), paper("c", 4, day),
	}

	first := Assemble(papers, day)
	// Shuffle the input order; the output order must not change.
	shuffled := []types.EnrichedPaper{papers[2], papers[0], papers[1]}
	second := Assemble(shuffled, day)

	for i := range first.Papers {
		if first.Papers[i].ID != second.Papers[i].ID {
			t.Fatalf("ordering depends on input order: %s vs %s",
				first.Papers[i].ID, second.Papers[i].ID)
		}
	}
}

func TestPathsFor(t *testing.T) {
	cfg := types.OutputConfig{RootDir: "reports", FilenamePrefix: "pulse"}
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC) // ISO week 7

	p := PathsFor(cfg, date)
	if p.ReportFile != filepath.Join("reports", "2026", "week_07", "pulse_2026_02_10.md") {
		t.Errorf("ReportFile = %q", p.ReportFile)
	}
	if p.DataFile != filepath.Join("reports", "2026", "week_07", "assets", "pulse_2026_02_10", "papers_data.yaml") {
		t.Errorf("DataFile = %q", p.DataFile)
	}
	if p.RelAssets != "./assets/pulse_2026_02_10" {
		t.Errorf("RelAssets = %q", p.RelAssets)
	}
}

func TestWriteRendersMarkdown(t *testing.T) {
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	// Stage a cached PDF and preview so the writer copies them.
	cacheDir := t.TempDir()
	pdfPath := filepath.Join(cacheDir, "2602.00001.pdf")
	pngPath := filepath.Join(cacheDir, "2602.00001-1.png")
	os.WriteFile(pdfPath, []byte("%PDF"), 0o644)
	os.WriteFile(pngPath, []byte("png"), 0o644)

	p := paper("2602.00001", 4, day)
	p.ProjectURL = "https://demo.github.io"
	p.LocalPDF = pdfPath
	p.PreviewImages = []string{pngPath}
	p.Mentions = []types.Mention{{Text: "neat\npaper", AuthorHandle: "ada", Likes: 7, URL: "https://x.com/ada/status/1"}}

	cfg := types.OutputConfig{RootDir: t.TempDir(), FilenamePrefix: "pulse"}
	paths := PathsFor(cfg, day)
	r := Assemble([]types.EnrichedPaper{p}, day)

	if err := Write(r, paths); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(paths.ReportFile)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	md := string(data)

	for _, want := range []string{
		"# Research Pulse: 2026-02-10",
		"Found **1** papers",
		"[Paper 2602.00001](https://arxiv.org/abs/2602.00001)",
		"★★★★☆",
		"**Why selected:** matches",
		`<iframe src="https://demo.github.io"`,
		"./assets/pulse_2026_02_10/2602.00001-1.png",
		"./assets/pulse_2026_02_10/2602.00001.pdf",
		"[@ada](https://x.com/ada/status/1)** (7 likes): neat paper",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n---\n%s", want, md)
		}
	}

	// Assets must have been copied next to the report.
	if _, err := os.Stat(filepath.Join(paths.AssetsDir, "2602.00001.pdf")); err != nil {
		t.Errorf("copied PDF missing: %v", err)
	}
}

func TestDataRoundTrip(t *testing.T) {
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	cfg := types.OutputConfig{RootDir: t.TempDir(), FilenamePrefix: "pulse"}
	paths := PathsFor(cfg, day)

	if _, ok, err := LoadData(paths); err != nil || ok {
		t.Fatalf("LoadData on empty dir = (%v, %v), want miss", ok, err)
	}

	r := Assemble([]types.EnrichedPaper{paper("a", 5, day)}, day)
	if err := SaveData(r, paths); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}

	loaded, ok, err := LoadData(paths)
	if err != nil || !ok {
		t.Fatalf("LoadData = (%v, %v), want hit", ok, err)
	}
	if len(loaded.Papers) != 1 || loaded.Papers[0].ID != "a" {
		t.Errorf("loaded = %+v", loaded.Papers)
	}
	if loaded.Papers[0].Decision.Score != 5 {
		t.Errorf("Score = %d after round trip", loaded.Papers[0].Decision.Score)
	}
}

func TestStars(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "☆☆☆☆☆"},
		{3, "★★★☆☆"},
		{5, "★★★★★"},
		{9, "★★★★★"},
		{-1, "☆☆☆☆☆"},
	}
	for _, tt := range tests {
		if got := stars(tt.score); got != tt.want {
			t.Errorf("stars(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
