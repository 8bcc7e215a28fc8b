// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report orders enriched papers deterministically and renders the
// run's markdown digest.
package report

import (
	"sort"
	"time"

	"github.com/pdiddy/paperfeed/pkg/types"
)

// Report is the assembled output of one run, ready for rendering.
type Report struct {
	// Date is the report date (not necessarily the generation time).
	Date time.Time `json:"date" yaml:"date"`

	// Papers is the ordered list of enriched papers.
	Papers []types.EnrichedPaper `json:"papers" yaml:"papers"`
}

// Assemble sorts papers into the report order: relevance score descending,
// published date descending, identifier ascending. The order is a total
// order, so assembly is deterministic regardless of the completion order
// of the concurrent enrichment work upstream.
func Assemble(papers []types.EnrichedPaper, date time.Time) Report {
	sorted := make([]types.EnrichedPaper, len(papers))
	copy(sorted, papers)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Decision.Score != b.Decision.Score {
			return a.Decision.Score > b.Decision.Score
		}
		if !a.Published.Equal(b.Published) {
			return a.Published.After(b.Published)
		}
		return a.ID < b.ID
	})

	return Report{Date: date, Papers: sorted}
}
