// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Renderer converts the first pages of a PDF into image files. The
// production implementation shells out to pdftoppm; tests inject a fake.
type Renderer interface {
	// Render writes up to pages page images for pdfPath under outDir using
	// baseName as the filename stem and returns the paths in page order.
	Render(ctx context.Context, pdfPath, outDir, baseName string, pages int) ([]string, error)
}

// PdftoppmRenderer renders PDF pages with the poppler pdftoppm tool.
type PdftoppmRenderer struct{}

// Render invokes pdftoppm and returns the generated PNG paths sorted by
// page number (pdftoppm names them <stem>-1.png, <stem>-2.png, ...).
func (PdftoppmRenderer) Render(ctx context.Context, pdfPath, outDir, baseName string, pages int) ([]string, error) {
	if pages <= 0 {
		pages = 1
	}
	stem := filepath.Join(outDir, baseName)

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png", "-r", "150",
		"-f", "1", "-l", strconv.Itoa(pages),
		pdfPath, stem)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(stem + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images for %s", pdfPath)
	}
	sort.Strings(matches)
	return matches, nil
}

// Fetcher downloads paper PDFs into an ID-keyed cache and renders preview
// images for them.
type Fetcher struct {
	Client       *http.Client
	UserAgent    string
	Renderer     Renderer
	CacheDir     string
	PreviewPages int
}

// FetchAssets returns the cached PDF path and preview image paths for the
// paper, downloading and rendering only what the cache is missing. The
// cache key is the paper ID, so an interrupted run resumes where it
// stopped and concurrent workers never write the same file.
func (f *Fetcher) FetchAssets(ctx context.Context, paperID, pdfURL string) (localPDF string, previews []string, err error) {
	key := cacheKey(paperID)
	pdfDir := filepath.Join(f.CacheDir, "pdfs")
	previewDir := filepath.Join(f.CacheDir, "previews", key)

	for _, dir := range []string{pdfDir, previewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	pdfPath := filepath.Join(pdfDir, key+".pdf")
	if _, statErr := os.Stat(pdfPath); statErr != nil {
		if err := f.download(ctx, pdfURL, pdfPath); err != nil {
			return "", nil, fmt.Errorf("downloading %s: %w", paperID, err)
		}
	}

	previews, globErr := filepath.Glob(filepath.Join(previewDir, key+"-*.png"))
	if globErr == nil && len(previews) > 0 {
		sort.Strings(previews)
		return pdfPath, previews, nil
	}

	previews, err = f.Renderer.Render(ctx, pdfPath, previewDir, key, f.PreviewPages)
	if err != nil {
		// The PDF itself is still usable without previews.
		return pdfPath, nil, fmt.Errorf("rendering preview for %s: %w", paperID, err)
	}
	return pdfPath, previews, nil
}

// download fetches url to destPath via a temporary file so a crashed run
// never leaves a truncated PDF in the cache.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving PDF into cache: %w", err)
	}
	return nil
}

// cacheKey flattens identifiers like "cs/0112017" into filesystem-safe names.
func cacheKey(paperID string) string {
	return strings.ReplaceAll(paperID, "/", "_")
}
