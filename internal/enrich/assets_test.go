// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// fakeRenderer writes one stub PNG per requested page.
type fakeRenderer struct {
	calls atomic.Int32
	err   error
}

func (r *fakeRenderer) Render(_ context.Context, _, outDir, baseName string, pages int) ([]string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	if pages <= 0 {
		pages = 1
	}
	var out []string
	for i := 1; i <= pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("%s-%d.png", baseName, i))
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func pdfServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 fake")
	}))
}

func newFetcher(t *testing.T, ts *httptest.Server, r Renderer) *Fetcher {
	t.Helper()
	return &Fetcher{
		Client:       ts.Client(),
		UserAgent:    "test/0.1",
		Renderer:     r,
		CacheDir:     t.TempDir(),
		PreviewPages: 2,
	}
}

func TestFetchAssetsDownloadsAndRenders(t *testing.T) {
	var hits atomic.Int32
	ts := pdfServer(t, &hits)
	defer ts.Close()

	f := newFetcher(t, ts, &fakeRenderer{})
	localPDF, previews, err := f.FetchAssets(context.Background(), "2602.00001", ts.URL)
	if err != nil {
		t.Fatalf("FetchAssets() error = %v", err)
	}

	data, readErr := os.ReadFile(localPDF)
	if readErr != nil {
		t.Fatalf("reading cached PDF: %v", readErr)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Errorf("cached PDF content = %q", data)
	}
	if len(previews) != 2 {
		t.Fatalf("len(previews) = %d, want 2", len(previews))
	}
}

func TestFetchAssetsSkipsCachedPDF(t *testing.T) {
	var hits atomic.Int32
	ts := pdfServer(t, &hits)
	defer ts.Close()

	renderer := &fakeRenderer{}
	f := newFetcher(t, ts, renderer)

	ctx := context.Background()
	if _, _, err := f.FetchAssets(ctx, "2602.00001", ts.URL); err != nil {
		t.Fatalf("first FetchAssets() error = %v", err)
	}
	if _, _, err := f.FetchAssets(ctx, "2602.00001", ts.URL); err != nil {
		t.Fatalf("second FetchAssets() error = %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("download hits = %d, want 1 (second run resumes from cache)", hits.Load())
	}
	if renderer.calls.Load() != 1 {
		t.Errorf("render calls = %d, want 1 (previews cached too)", renderer.calls.Load())
	}
}

func TestFetchAssetsRenderFailureKeepsPDF(t *testing.T) {
	var hits atomic.Int32
	ts := pdfServer(t, &hits)
	defer ts.Close()

	f := newFetcher(t, ts, &fakeRenderer{err: errors.New("pdftoppm missing")})
	localPDF, previews, err := f.FetchAssets(context.Background(), "2602.00001", ts.URL)
	if err == nil {
		t.Fatal("FetchAssets() error = nil, want render error")
	}
	if localPDF == "" {
		t.Error("localPDF empty, the downloaded PDF should survive a render failure")
	}
	if len(previews) != 0 {
		t.Errorf("previews = %v, want none", previews)
	}
}

func TestFetchAssetsDownloadFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := newFetcher(t, ts, &fakeRenderer{})
	localPDF, _, err := f.FetchAssets(context.Background(), "2602.00001", ts.URL)
	if err == nil {
		t.Fatal("FetchAssets() error = nil, want download error")
	}
	if localPDF != "" {
		t.Errorf("localPDF = %q, want empty", localPDF)
	}

	// No truncated file may be left behind.
	leftover := filepath.Join(f.CacheDir, "pdfs", "2602.00001.pdf")
	if _, statErr := os.Stat(leftover); !os.IsNotExist(statErr) {
		t.Errorf("stat(%s) = %v, want not-exist", leftover, statErr)
	}
}

func TestCacheKeyFlattensOldStyleIDs(t *testing.T) {
	if got := cacheKey("cs/0112017"); got != "cs_0112017" {
		t.Errorf("cacheKey = %q", got)
	}
}
