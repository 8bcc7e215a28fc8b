// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// urlPattern captures http/https URLs in free text.
var urlPattern = regexp.MustCompile(`https?://(?:[-\w.]|(?:%[\da-fA-F]{2}))+[/\w.\-?=&#%]*`)

// excludedFragments marks academic/meta links that are never project pages.
var excludedFragments = []string{
	"arxiv.org",
	"doi.org",
	"creativecommons.org",
	"license",
	"overleaf.com",
}

// ExtractProjectURL finds the first URL in text that looks like a project
// or demo page. Academic links are skipped, and github.com repositories are
// skipped too (they refuse to be embedded) while *.github.io project pages
// are kept. YouTube watch links are rewritten to their embed form.
func ExtractProjectURL(text string) string {
	for _, url := range urlPattern.FindAllString(text, -1) {
		url = strings.TrimRight(url, ".,;)")
		lower := strings.ToLower(url)

		excluded := false
		for _, frag := range excludedFragments {
			if strings.Contains(lower, frag) {
				excluded = true
				break
			}
		}
		if excluded || strings.Contains(lower, "github.com") {
			continue
		}

		if strings.Contains(url, "youtube.com/watch") {
			if idx := strings.LastIndex(url, "v="); idx >= 0 {
				id := url[idx+2:]
				if amp := strings.IndexByte(id, '&'); amp >= 0 {
					id = id[:amp]
				}
				return "https://www.youtube.com/embed/" + id
			}
			// A watch URL without a video parameter embeds nothing.
			return url
		}
		if strings.Contains(url, "youtu.be/") {
			return "https://www.youtube.com/embed/" + url[strings.LastIndex(url, "/")+1:]
		}

		return url
	}
	return ""
}

// LinkFinder discovers project links and author affiliations for a paper.
type LinkFinder struct {
	Client    *http.Client
	UserAgent string
}

// Discover returns the paper's project URL and full author string. The
// abstract and comment fields are checked first; when they carry no link
// the abstract page is fetched and its abstract block scanned. The same
// page fetch supplies the affiliation-annotated author string, so a page
// failure degrades both results but never errors the record.
func (f *LinkFinder) Discover(ctx context.Context, abstract, comment, absURL string) (projectURL, authorsFull string, err error) {
	projectURL = ExtractProjectURL(abstract)
	if projectURL == "" {
		projectURL = ExtractProjectURL(comment)
	}

	doc, fetchErr := f.fetchPage(ctx, absURL)
	if fetchErr != nil {
		// The regex results stand on their own.
		return projectURL, "", fmt.Errorf("fetching abstract page: %w", fetchErr)
	}

	if authors := doc.Find("div.authors").First().Text(); authors != "" {
		authorsFull = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authors), "Authors:"))
	}

	if projectURL == "" {
		pageAbstract := doc.Find("blockquote.abstract").First().Text()
		projectURL = ExtractProjectURL(pageAbstract)
	}

	return projectURL, authorsFull, nil
}

func (f *LinkFinder) fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}
