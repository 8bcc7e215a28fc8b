// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich decorates accepted papers with project links, cached PDF
// previews, and social mentions. Every sub-task is best-effort: a failure
// leaves its fields empty and counts as a warning, never dropping the paper.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paperfeed/pkg/types"
)

// recordConcurrency bounds how many papers are enriched at once. The
// per-dependency semaphores below bound the actual network pressure.
const recordConcurrency = 8

const (
	defaultPDFConcurrency    = 4
	defaultSocialConcurrency = 2
)

// Enricher runs the three enrichment sub-tasks for accepted papers.
type Enricher struct {
	Links  *LinkFinder
	Assets *Fetcher
	Social *SocialClient // nil when no social credential is configured

	pdfSem    *semaphore.Weighted
	socialSem *semaphore.Weighted
}

// New wires an Enricher from configuration. A nil renderer or empty
// social token disables the corresponding sub-task.
func New(cfg types.EnrichConfig, client *http.Client, renderer Renderer) *Enricher {
	pdfConc := cfg.PDFConcurrency
	if pdfConc <= 0 {
		pdfConc = defaultPDFConcurrency
	}
	socialConc := cfg.SocialConcurrency
	if socialConc <= 0 {
		socialConc = defaultSocialConcurrency
	}

	e := &Enricher{
		Links: &LinkFinder{Client: client, UserAgent: cfg.UserAgent},
		Assets: &Fetcher{
			Client:       client,
			UserAgent:    cfg.UserAgent,
			Renderer:     renderer,
			CacheDir:     cfg.CacheDir,
			PreviewPages: cfg.PreviewPages,
		},
		pdfSem:    semaphore.NewWeighted(pdfConc),
		socialSem: semaphore.NewWeighted(socialConc),
	}
	if cfg.SocialBearerToken != "" {
		e.Social = &SocialClient{
			Bearer:    cfg.SocialBearerToken,
			Client:    client,
			UserAgent: cfg.UserAgent,
			MinLikes:  cfg.SocialMinLikes,
		}
	}
	return e
}

// EnrichAll enriches papers concurrently and returns them in input order
// along with the number of sub-task warnings. Decisions are looked up by
// paper ID.
func (e *Enricher) EnrichAll(ctx context.Context, papers []types.Paper, decisions map[string]types.Decision, w io.Writer) ([]types.EnrichedPaper, int) {
	results := make([]types.EnrichedPaper, len(papers))
	var warnings atomic.Int64

	// Serialize warning lines; sub-tasks of many records log concurrently.
	var mu sync.Mutex
	logf := func(format string, args ...any) {
		warnings.Add(1)
		mu.Lock()
		fmt.Fprintf(w, format, args...)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(recordConcurrency)
	for i, p := range papers {
		i, p := i, p
		g.Go(func() error {
			results[i] = e.enrichOne(ctx, p, decisions[p.ID], logf)
			return nil
		})
	}
	g.Wait()

	return results, int(warnings.Load())
}

// enrichOne runs the three sub-tasks for a single paper and joins them.
// Each sub-task owns disjoint fields of the EnrichedPaper, so they can
// write concurrently without coordination.
func (e *Enricher) enrichOne(ctx context.Context, paper types.Paper, decision types.Decision, logf func(string, ...any)) types.EnrichedPaper {
	ep := types.EnrichedPaper{Paper: paper, Decision: decision}

	var g errgroup.Group

	g.Go(func() error {
		projectURL, authorsFull, err := e.Links.Discover(ctx, paper.Abstract, paper.Comment, paper.AbsURL)
		ep.ProjectURL = projectURL
		ep.AuthorsFull = authorsFull
		if err != nil {
			logf("warning: link discovery for %s: %v\n", paper.ID, err)
		}
		return nil
	})

	g.Go(func() error {
		if err := e.pdfSem.Acquire(ctx, 1); err != nil {
			logf("warning: preview for %s abandoned: %v\n", paper.ID, err)
			return nil
		}
		defer e.pdfSem.Release(1)

		localPDF, previews, err := e.Assets.FetchAssets(ctx, paper.ID, paper.PDFURL)
		ep.LocalPDF = localPDF
		ep.PreviewImages = previews
		if err != nil {
			logf("warning: assets for %s: %v\n", paper.ID, err)
		}
		return nil
	})

	if e.Social != nil {
		g.Go(func() error {
			if err := e.socialSem.Acquire(ctx, 1); err != nil {
				logf("warning: social lookup for %s abandoned: %v\n", paper.ID, err)
				return nil
			}
			defer e.socialSem.Release(1)

			mentions, err := e.Social.Search(ctx, paper.Title)
			if err != nil {
				logf("warning: social lookup for %s: %v\n", paper.ID, err)
				return nil
			}
			ep.Mentions = mentions
			return nil
		})
	}

	g.Wait()

	if ep.AuthorsFull == "" {
		ep.AuthorsFull = strings.Join(paper.Authors, ", ")
	}
	return ep
}

// FilterLinked drops papers without a discovered project link. Applied
// after enrichment when require_project_link is configured, which is why
// the selection cap upstream is only a soft bound.
func FilterLinked(papers []types.EnrichedPaper) []types.EnrichedPaper {
	var out []types.EnrichedPaper
	for _, p := range papers {
		if p.ProjectURL != "" {
			out = append(out, p)
		}
	}
	return out
}
