// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfeed/pkg/types"
)

// Paths locates the output files for a report date. The layout mirrors a
// weekly notebook: RootDir/YYYY/week_WW/ holds the markdown file and an
// assets directory per run, which also carries the run's data cache.
type Paths struct {
	ReportFile string
	AssetsDir  string
	DataFile   string

	// RelAssets is the assets directory relative to the report file, used
	// for links inside the markdown.
	RelAssets string
}

// PathsFor computes the output layout for cfg and date.
func PathsFor(cfg types.OutputConfig, date time.Time) Paths {
	year := date.Format("2006")
	_, week := date.ISOWeek()
	dateStr := date.Format("2006_01_02")

	weekDir := filepath.Join(cfg.RootDir, year, fmt.Sprintf("week_%02d", week))
	runName := fmt.Sprintf("%s_%s", cfg.FilenamePrefix, dateStr)
	assetsDir := filepath.Join(weekDir, "assets", runName)

	return Paths{
		ReportFile: filepath.Join(weekDir, runName+".md"),
		AssetsDir:  assetsDir,
		DataFile:   filepath.Join(assetsDir, "papers_data.yaml"),
		RelAssets:  "./assets/" + runName,
	}
}

// reportTmpl renders the digest markdown. Collapsible sections keep the
// page scannable; the preview image links to the cached PDF.
var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"stars":    stars,
	"flatten":  func(s string) string { return strings.ReplaceAll(s, "\n", " ") },
	"basename": filepath.Base,
}).Parse(`# Research Pulse: {{.Date.Format "2006-01-02"}}

**Summary:** Found **{{len .Papers}}** papers matching your interests.

---
{{range .Papers}}
### [{{.Title}}]({{.AbsURL}})
**{{.AuthorsFull}}** | {{.Published.Format "2006-01-02"}} | {{stars .Decision.Score}}

> **Why selected:** {{.Decision.Rationale}}
>
> **TL;DR:** {{.Summary}}
{{if .ProjectURL}}
<details>
<summary><strong>Show Project Demo</strong></summary>
<br>
<div style="width: 100%; height: 400px; overflow: hidden; border: 1px solid #ddd; border-radius: 4px;">
    <iframe src="{{.ProjectURL}}" style="width: 100%; height: 100%; border: none;"></iframe>
</div>
<p><em><a href="{{.ProjectURL}}">Open Project Page</a></em></p>
</details>
{{end}}{{if .PreviewImages}}
<details>
<summary><strong>Show PDF Preview</strong></summary>
<br>
<a href="{{$.RelAssets}}/{{basename .LocalPDF}}" target="_blank">
    <img src="{{$.RelAssets}}/{{basename (index .PreviewImages 0)}}" alt="Click to open PDF" style="width: 100%; border: 1px solid #ddd; border-radius: 4px;">
</a>
</details>
{{end}}
<details>
<summary><strong>Show Abstract</strong></summary>
<br>
{{.Abstract}}
</details>
{{if .Mentions}}
**Community Signal**
{{range .Mentions}}* **[@{{.AuthorHandle}}]({{.URL}})** ({{.Likes}} likes): {{flatten .Text}}
{{end}}{{end}}
---
{{end}}`))

// stars renders a 1-5 score as a filled/empty star rating.
func stars(score int) string {
	if score < 0 {
		score = 0
	}
	if score > 5 {
		score = 5
	}
	return strings.Repeat("★", score) + strings.Repeat("☆", 5-score)
}

// Write renders the report to paths.ReportFile, copying each paper's
// cached PDF and first preview image into the assets directory so the
// report tree is self-contained.
func Write(r Report, paths Paths) error {
	for _, dir := range []string{filepath.Dir(paths.ReportFile), paths.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory %s: %w", dir, err)
		}
	}

	for _, p := range r.Papers {
		for _, src := range []string{p.LocalPDF, firstOrEmpty(p.PreviewImages)} {
			if src == "" {
				continue
			}
			if err := copyFile(src, filepath.Join(paths.AssetsDir, filepath.Base(src))); err != nil {
				return fmt.Errorf("copying asset for %s: %w", p.ID, err)
			}
		}
	}

	data := struct {
		Report
		RelAssets string
	}{Report: r, RelAssets: paths.RelAssets}

	var buf strings.Builder
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	if err := os.WriteFile(paths.ReportFile, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// SaveData persists the enriched papers of a run so a rerun for the same
// date can skip the network work entirely.
func SaveData(r Report, paths Paths) error {
	if err := os.MkdirAll(paths.AssetsDir, 0o755); err != nil {
		return fmt.Errorf("creating assets directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling run data: %w", err)
	}
	return os.WriteFile(paths.DataFile, data, 0o644)
}

// LoadData reads a prior run's data cache. A missing file returns
// ok=false, not an error.
func LoadData(paths Paths) (Report, bool, error) {
	data, err := os.ReadFile(paths.DataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return Report{}, false, nil
		}
		return Report{}, false, fmt.Errorf("reading run data: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Report{}, false, fmt.Errorf("parsing run data: %w", err)
	}
	return r, true, nil
}

func firstOrEmpty(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
