// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize produces a one-sentence oracle summary per accepted
// paper, falling back to a truncated abstract when the oracle fails.
package summarize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperfeed/internal/oracle"
	"github.com/pdiddy/paperfeed/pkg/types"
)

// maxConcurrent bounds the summary calls in flight at once.
const maxConcurrent = 4

// fallbackLen is the abstract-excerpt length used when the oracle fails.
const fallbackLen = 240

// summaryPromptTmpl asks for a single sentence about the method's novelty,
// not the problem background.
var summaryPromptTmpl = template.Must(template.New("summary").Parse(`You are an expert researcher writing a one-line digest entry.

Task: summarize the paper below in ONE sentence. Describe the method's novelty or key result, not the problem background. Respond with the sentence only, no preamble and no quotation marks.

ID: {{.ID}}
Title: {{.Title}}
Abstract: {{.Abstract}}
`))

// Backend abstracts the summarization oracle so tests can script responses.
type Backend interface {
	Summarize(ctx context.Context, paper types.Paper) (string, error)
}

// ClaudeBackend summarizes through the Claude Messages API.
type ClaudeBackend struct {
	Oracle *oracle.Client
}

// Summarize renders the prompt for one paper and returns the oracle's sentence.
func (b *ClaudeBackend) Summarize(ctx context.Context, paper types.Paper) (string, error) {
	var buf bytes.Buffer
	if err := summaryPromptTmpl.Execute(&buf, paper); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := b.Oracle.Complete(ctx, buf.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// All fills the Summary field of every paper, concurrently, writing a
// warning and falling back to a truncated abstract for papers whose oracle
// call fails. The number of fallbacks is returned.
func All(ctx context.Context, backend Backend, papers []types.EnrichedPaper, maxRetries int, w io.Writer) int {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	fallbacks := make([]bool, len(papers))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i := range papers {
		i := i
		g.Go(func() error {
			p := &papers[i]
			var summary string
			err := oracle.WithRetry(ctx, maxRetries, func() error {
				var callErr error
				summary, callErr = backend.Summarize(ctx, p.Paper)
				return callErr
			})
			if err != nil {
				mu.Lock()
				fmt.Fprintf(w, "warning: summary for %s fell back to abstract: %v\n", p.ID, err)
				mu.Unlock()
				summary = Fallback(p.Abstract)
				fallbacks[i] = true
			}
			p.Summary = summary
			return nil
		})
	}
	g.Wait()

	n := 0
	for _, f := range fallbacks {
		if f {
			n++
		}
	}
	return n
}

// Fallback truncates an abstract to a short excerpt on a word boundary.
func Fallback(abstract string) string {
	abstract = strings.TrimSpace(abstract)
	if len(abstract) <= fallbackLen {
		return abstract
	}
	cut := abstract[:fallbackLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	} else {
		// No word boundary in range (unspaced scripts); back off to a
		// rune boundary instead of cutting mid-character.
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
	}
	return cut + "..."
}
