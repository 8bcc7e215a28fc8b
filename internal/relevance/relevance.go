// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relevance classifies candidate papers against the interest
// profile through batched oracle calls.
package relevance

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperfeed/internal/oracle"
	"github.com/pdiddy/paperfeed/pkg/types"
)

// maxConcurrentBatches bounds the oracle calls in flight at once.
const maxConcurrentBatches = 4

const defaultBatchSize = 20

// Backend abstracts the classification oracle so tests can supply a
// scripted fake. It returns one decision per echoed paper ID; the oracle
// may reorder or drop papers, which the caller must tolerate.
type Backend interface {
	Classify(ctx context.Context, papers []types.Paper, interests string) ([]types.Decision, error)
}

// Result holds the outcome of the relevance stage.
type Result struct {
	// Decisions holds one entry per input paper, in input order.
	Decisions []types.Decision

	// Selected lists accepted papers in original feed order, truncated to
	// the selection cap. The cap is soft: link-requirement filtering after
	// enrichment may shrink the set further.
	Selected []types.Paper

	// DegradedBatches counts batches whose oracle call failed after
	// retries; their papers were all treated as rejected.
	DegradedBatches int
}

// batchOutcome is the terminal state of one batch call.
type batchOutcome struct {
	decisions []types.Decision
	err       error
}

// Classify partitions papers into batches, classifies each batch through
// the backend, and correlates decisions back to papers by echoed ID. A
// batch that fails after retries rejects its papers and the run continues.
func Classify(ctx context.Context, backend Backend, papers []types.Paper, cfg types.FilterConfig, w io.Writer) Result {
	if len(papers) == 0 {
		return Result{}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var batches [][]types.Paper
	for start := 0; start < len(papers); start += batchSize {
		end := start + batchSize
		if end > len(papers) {
			end = len(papers)
		}
		batches = append(batches, papers[start:end])
	}

	// Batches run concurrently; each goroutine writes only its own slot.
	outcomes := make([]batchOutcome, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			var decisions []types.Decision
			err := oracle.WithRetry(gctx, maxRetries, func() error {
				var callErr error
				decisions, callErr = backend.Classify(gctx, batch, cfg.Interests)
				return callErr
			})
			outcomes[i] = batchOutcome{decisions: decisions, err: err}
			return nil
		})
	}
	g.Wait()

	// Correlate by echoed ID, never by position. Papers from a failed
	// batch are rejected wholesale; papers the oracle silently dropped
	// are rejected individually with a warning.
	byID := make(map[string]types.Decision)
	lost := make(map[string]bool)
	var result Result
	for i, outcome := range outcomes {
		if outcome.err != nil {
			fmt.Fprintf(w, "warning: relevance batch %d/%d failed, rejecting %d paper(s): %v\n",
				i+1, len(batches), len(batches[i]), outcome.err)
			result.DegradedBatches++
			for _, p := range batches[i] {
				lost[p.ID] = true
			}
			continue
		}
		for _, d := range outcome.decisions {
			byID[d.PaperID] = d
		}
	}

	for _, p := range papers {
		d, ok := byID[p.ID]
		if !ok {
			d = types.Decision{PaperID: p.ID, Accepted: false, Rationale: "no decision returned"}
			if !lost[p.ID] {
				fmt.Fprintf(w, "warning: no decision for %s, treating as rejected\n", p.ID)
			}
		}
		d.PaperID = p.ID
		result.Decisions = append(result.Decisions, d)
		if d.Accepted && (cfg.MaxSelected <= 0 || len(result.Selected) < cfg.MaxSelected) {
			result.Selected = append(result.Selected, p)
		}
	}

	return result
}
