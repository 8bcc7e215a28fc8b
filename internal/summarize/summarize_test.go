// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/paperfeed/internal/oracle"
	"github.com/pdiddy/paperfeed/pkg/types"
)

func init() {
	oracle.BackoffBase = time.Millisecond
}

type scriptedBackend struct {
	summaries map[string]string
	failIDs   map[string]bool
}

func (s *scriptedBackend) Summarize(_ context.Context, paper types.Paper) (string, error) {
	if s.failIDs[paper.ID] {
		return "", errors.New("oracle down")
	}
	return s.summaries[paper.ID], nil
}

func enriched(id, abstract string) types.EnrichedPaper {
	return types.EnrichedPaper{Paper: types.Paper{ID: id, Abstract: abstract}}
}

func TestAllFillsSummaries(t *testing.T) {
	papers := []types.EnrichedPaper{
		enriched("a", "abstract a"),
		enriched("b", "abstract b"),
	}
	backend := &scriptedBackend{summaries: map[string]string{
		"a": "Introduces a new policy architecture.",
		"b": "Beats the prior state of the art by 12%.",
	}}

	fallbacks := All(context.Background(), backend, papers, 1, &bytes.Buffer{})
	if fallbacks != 0 {
		t.Errorf("fallbacks = %d, want 0", fallbacks)
	}
	if papers[0].Summary != "Introduces a new policy architecture." {
		t.Errorf("papers[0].Summary = %q", papers[0].Summary)
	}
	if papers[1].Summary != "Beats the prior state of the art by 12%." {
		t.Errorf("papers[1].Summary = %q", papers[1].Summary)
	}
}

func TestAllFallsBackOnFailure(t *testing.T) {
	long := strings.Repeat("word ", 100)
	papers := []types.EnrichedPaper{
		enriched("a", "short abstract"),
		enriched("b", long),
	}
	backend := &scriptedBackend{
		summaries: map[string]string{"a": "Fine."},
		failIDs:   map[string]bool{"b": true},
	}

	var log bytes.Buffer
	fallbacks := All(context.Background(), backend, papers, 1, &log)
	if fallbacks != 1 {
		t.Fatalf("fallbacks = %d, want 1", fallbacks)
	}
	if papers[0].Summary != "Fine." {
		t.Errorf("papers[0].Summary = %q", papers[0].Summary)
	}
	if !strings.HasSuffix(papers[1].Summary, "...") {
		t.Errorf("papers[1].Summary = %q, want truncated abstract", papers[1].Summary)
	}
	if !strings.Contains(log.String(), "summary for b") {
		t.Error("fallback warning not logged")
	}
}

func TestFallback(t *testing.T) {
	if got := Fallback("short"); got != "short" {
		t.Errorf("Fallback(short) = %q", got)
	}

	long := strings.Repeat("0123456789", 30)
	got := Fallback(long)
	if len(got) > fallbackLen+3 {
		t.Errorf("len = %d, want <= %d", len(got), fallbackLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Fallback = %q, want ellipsis", got)
	}
}

func TestFallbackUnspacedScript(t *testing.T) {
	// 480 bytes of CJK text with no spaces anywhere near the cut point.
	long := strings.Repeat("深層学習", 40)
	got := Fallback(long)
	if !utf8.ValidString(got) {
		t.Fatalf("Fallback emitted invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Fallback = %q, want ellipsis", got)
	}
	if len(got) > fallbackLen+3 {
		t.Errorf("len = %d, want <= %d", len(got), fallbackLen+3)
	}
}
