// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves candidate papers from the arXiv Atom feed.
package fetch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paperfeed/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ErrSourceUnavailable reports that no candidates could be fetched at all.
// A failure on the first page is fatal to the run; later page failures
// degrade to a partial result instead.
var ErrSourceUnavailable = errors.New("paper source unavailable")

// Client pages through the arXiv API and normalizes entries into Papers.
type Client struct {
	Client *http.Client
}

// Fetch returns papers submitted in the window (end-lookback, end],
// newest-first, at most cfg.MaxRaw, deduplicated by identifier. If a page
// fails after at least one page succeeded the partial result is returned
// with degraded=true; a first-page failure wraps ErrSourceUnavailable.
func (c *Client) Fetch(ctx context.Context, cfg types.FetchConfig, end time.Time) (papers []types.Paper, degraded bool, err error) {
	maxRaw := cfg.MaxRaw
	if maxRaw <= 0 {
		maxRaw = 200
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageSize > maxRaw {
		pageSize = maxRaw
	}

	// The feed indexes submissions with a lag; the offset shifts the whole
	// window back so a report day still sees a fully indexed window.
	end = end.AddDate(0, 0, -cfg.LookbackOffsetDays)
	start := end.AddDate(0, 0, -cfg.LookbackDays)
	query := buildCategoryQuery(cfg.Categories)
	if query == "" {
		return nil, false, fmt.Errorf("no categories configured")
	}

	seen := make(map[string]bool)
	for offset := 0; len(papers) < maxRaw; offset += pageSize {
		entries, pageErr := c.fetchPage(ctx, query, offset, pageSize, cfg)
		if pageErr != nil {
			if offset == 0 {
				return nil, false, fmt.Errorf("%w: %v", ErrSourceUnavailable, pageErr)
			}
			// Keep what we have; the run proceeds on a partial feed.
			return papers, true, nil
		}

		older := false
		for _, entry := range entries {
			p, ok := entryToPaper(entry)
			if !ok {
				continue
			}
			if p.Published.After(end) {
				continue
			}
			if p.Published.Before(start) {
				// Feed is sorted by submission date descending, so the
				// rest of this and every later page is out of window.
				older = true
				break
			}
			// The same paper can come back once per matching category.
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			papers = append(papers, p)
			if len(papers) >= maxRaw {
				break
			}
		}

		if older || len(entries) < pageSize {
			break
		}
	}

	return papers, false, nil
}

// fetchPage requests one page of results starting at offset.
func (c *Client) fetchPage(ctx context.Context, query string, offset, pageSize int, cfg types.FetchConfig) ([]arxivEntry, error) {
	u := fmt.Sprintf("%s?search_query=%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, url.QueryEscape(query), offset, pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return feed.Entries, nil
}

// buildCategoryQuery constructs "cat:cs.CV OR cat:cs.RO" from the category set.
func buildCategoryQuery(categories []string) string {
	var parts []string
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		parts = append(parts, "cat:"+c)
	}
	return strings.Join(parts, " OR ")
}

// entryToPaper normalizes one Atom entry into a Paper.
func entryToPaper(entry arxivEntry) (types.Paper, bool) {
	id := extractArxivID(entry.ID)
	if id == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		ID:       id,
		Title:    collapseSpace(entry.Title),
		Abstract: collapseSpace(entry.Summary),
		Comment:  collapseSpace(entry.Comment),
		AbsURL:   "https://arxiv.org/abs/" + id,
		PDFURL:   "https://arxiv.org/pdf/" + id,
	}

	for _, a := range entry.Authors {
		p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range entry.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}

	t, err := time.Parse(time.RFC3339, entry.Published)
	if err != nil {
		return types.Paper{}, false
	}
	p.Published = t

	return p, true
}

// collapseSpace flattens newlines and runs of whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Comment    string          `xml:"comment"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
