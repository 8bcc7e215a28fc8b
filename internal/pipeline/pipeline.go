// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one curation cycle: fetch, dedup, classify,
// enrich, summarize, assemble. Stages below the fatal tier report degraded
// counts instead of raising errors.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/paperfeed/internal/enrich"
	"github.com/pdiddy/paperfeed/internal/relevance"
	"github.com/pdiddy/paperfeed/internal/report"
	"github.com/pdiddy/paperfeed/internal/summarize"
	"github.com/pdiddy/paperfeed/pkg/types"
)

// Source fetches candidate papers for a report date.
type Source interface {
	Fetch(ctx context.Context, cfg types.FetchConfig, end time.Time) (papers []types.Paper, degraded bool, err error)
}

// SeenStore filters previously delivered papers and records new deliveries.
type SeenStore interface {
	FilterUnseen(papers []types.Paper) []types.Paper
	Commit(ctx context.Context, ids []string) error
}

// Enricher decorates accepted papers; the concrete type is enrich.Enricher.
type Enricher interface {
	EnrichAll(ctx context.Context, papers []types.Paper, decisions map[string]types.Decision, w io.Writer) ([]types.EnrichedPaper, int)
}

// Deps wires the pipeline's collaborators. Tests substitute fakes.
type Deps struct {
	Source     Source
	Seen       SeenStore
	Classifier relevance.Backend
	Enricher   Enricher
	Summarizer summarize.Backend
}

// Summary aggregates per-stage counters for the end-of-run status line.
type Summary struct {
	Fetched          int
	Unseen           int
	Accepted         int
	Delivered        int
	DegradedBatches  int
	EnrichWarnings   int
	SummaryFallbacks int
	PartialFeed      bool
	FromCache        bool
	ReportFile       string
}

// Run executes one curation cycle for the given report date and writes the
// markdown report. A cached run for the same date is reused unless force
// is set. Only fatal conditions return an error; everything else degrades
// and is counted in the Summary.
func Run(ctx context.Context, cfg types.PipelineConfig, deps Deps, date time.Time, force bool, w io.Writer) (Summary, error) {
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	paths := report.PathsFor(cfg.Output, date)
	summary := Summary{ReportFile: paths.ReportFile}

	// A finished run for this date left its data behind; reuse it.
	if !force {
		if cached, ok, err := report.LoadData(paths); err == nil && ok {
			fmt.Fprintf(w, "found cached run data at %s, skipping fetch\n", paths.DataFile)
			summary.FromCache = true
			summary.Delivered = len(cached.Papers)
			if err := report.Write(cached, paths); err != nil {
				return summary, fmt.Errorf("writing report from cache: %w", err)
			}
			// Recommit the cached IDs; the insert is idempotent, and this
			// heals a crash that landed between the report write and the
			// seen-set commit.
			ids := make([]string, len(cached.Papers))
			for i, p := range cached.Papers {
				ids[i] = p.ID
			}
			if err := deps.Seen.Commit(context.WithoutCancel(ctx), ids); err != nil {
				return summary, fmt.Errorf("committing delivered ids: %w", err)
			}
			return summary, nil
		}
	}

	papers, partial, err := deps.Source.Fetch(ctx, cfg.Fetch, date)
	if err != nil {
		return summary, fmt.Errorf("fetching papers: %w", err)
	}
	summary.Fetched = len(papers)
	summary.PartialFeed = partial
	if partial {
		fmt.Fprintln(w, "warning: feed pagination failed mid-stream, continuing with partial batch")
	}
	if len(papers) == 0 {
		fmt.Fprintln(w, "no papers found in the lookback window")
		return summary, nil
	}

	unseen := deps.Seen.FilterUnseen(papers)
	summary.Unseen = len(unseen)
	fmt.Fprintf(w, "fetched %d papers, %d unseen\n", len(papers), len(unseen))
	if len(unseen) == 0 {
		return summary, nil
	}

	res := relevance.Classify(ctx, deps.Classifier, unseen, cfg.Filter, w)
	summary.Accepted = len(res.Selected)
	summary.DegradedBatches = res.DegradedBatches
	fmt.Fprintf(w, "oracle accepted %d of %d papers\n", len(res.Selected), len(unseen))
	if len(res.Selected) == 0 {
		return summary, nil
	}

	decisions := make(map[string]types.Decision, len(res.Decisions))
	for _, d := range res.Decisions {
		decisions[d.PaperID] = d
	}

	enriched, warnings := deps.Enricher.EnrichAll(ctx, res.Selected, decisions, w)
	summary.EnrichWarnings = warnings

	if cfg.Filter.RequireProjectLink {
		before := len(enriched)
		enriched = enrich.FilterLinked(enriched)
		if dropped := before - len(enriched); dropped > 0 {
			fmt.Fprintf(w, "dropped %d paper(s) without a project link\n", dropped)
		}
	}
	if len(enriched) == 0 {
		fmt.Fprintln(w, "no papers left after enrichment filters")
		return summary, nil
	}

	summary.SummaryFallbacks = summarize.All(ctx, deps.Summarizer, enriched, cfg.Filter.MaxRetries, w)

	rep := report.Assemble(enriched, date)

	// The deadline must not cost us work that already finished: the
	// report write and the seen-set commit run detached from ctx.
	tail := context.WithoutCancel(ctx)

	if err := report.SaveData(rep, paths); err != nil {
		fmt.Fprintf(w, "warning: could not persist run data: %v\n", err)
	}
	if err := report.Write(rep, paths); err != nil {
		return summary, fmt.Errorf("writing report: %w", err)
	}
	summary.Delivered = len(rep.Papers)

	ids := make([]string, len(rep.Papers))
	for i, p := range rep.Papers {
		ids[i] = p.ID
	}
	if err := deps.Seen.Commit(tail, ids); err != nil {
		return summary, fmt.Errorf("committing delivered ids: %w", err)
	}

	fmt.Fprintf(w, "run summary: fetched %d, unseen %d, accepted %d, delivered %d (degraded batches %d, enrich warnings %d, summary fallbacks %d)\n",
		summary.Fetched, summary.Unseen, summary.Accepted, summary.Delivered,
		summary.DegradedBatches, summary.EnrichWarnings, summary.SummaryFallbacks)

	return summary, nil
}
