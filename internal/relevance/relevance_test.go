// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/paperfeed/internal/oracle"
	"github.com/pdiddy/paperfeed/pkg/types"
)

func init() {
	oracle.BackoffBase = time.Millisecond
}

// scriptedBackend answers from a per-ID script and can fail selected batches.
type scriptedBackend struct {
	mu        sync.Mutex
	decisions map[string]types.Decision
	failIDs   map[string]bool // any batch containing one of these IDs errors
	failCount int             // first N calls fail regardless
	calls     int
}

func (s *scriptedBackend) Classify(_ context.Context, papers []types.Paper, _ string) ([]types.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failCount {
		return nil, errors.New("scripted transient failure")
	}
	var out []types.Decision
	for _, p := range papers {
		if s.failIDs[p.ID] {
			return nil, errors.New("scripted batch failure")
		}
		if d, ok := s.decisions[p.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func testCfg() types.FilterConfig {
	return types.FilterConfig{
		AIConfig:    types.AIConfig{Model: "test-model", MaxRetries: 1},
		Interests:   "robot learning",
		MaxSelected: 15,
		BatchSize:   4,
	}
}

func testPapers(n int) []types.Paper {
	papers := make([]types.Paper, n)
	for i := range papers {
		papers[i] = types.Paper{
			ID:    fmt.Sprintf("2602.%05d", i+1),
			Title: fmt.Sprintf("Paper %d", i+1),
		}
	}
	return papers
}

func acceptAll(papers []types.Paper, score int) map[string]types.Decision {
	m := make(map[string]types.Decision)
	for _, p := range papers {
		m[p.ID] = types.Decision{PaperID: p.ID, Accepted: true, Rationale: "match", Score: score}
	}
	return m
}

func TestClassifyKeepsFeedOrderAndCap(t *testing.T) {
	papers := testPapers(20)
	script := make(map[string]types.Decision)
	// Accept 12 of 20, scattered through the batches.
	accepted := 0
	for i, p := range papers {
		d := types.Decision{PaperID: p.ID, Rationale: "r", Score: 3}
		if i%5 != 2 && accepted < 12 {
			d.Accepted = true
			accepted++
		}
		script[p.ID] = d
	}

	var log bytes.Buffer
	res := Classify(context.Background(), &scriptedBackend{decisions: script}, papers, testCfg(), &log)

	if len(res.Decisions) != 20 {
		t.Fatalf("len(Decisions) = %d, want 20", len(res.Decisions))
	}
	if len(res.Selected) != 12 {
		t.Fatalf("len(Selected) = %d, want 12 (cap 15 not reached)", len(res.Selected))
	}
	// Selected papers must stay in original feed order.
	last := ""
	for _, p := range res.Selected {
		if p.ID <= last {
			t.Fatalf("Selected out of feed order: %q after %q", p.ID, last)
		}
		last = p.ID
	}
	if res.DegradedBatches != 0 {
		t.Errorf("DegradedBatches = %d, want 0", res.DegradedBatches)
	}
}

func TestClassifyTruncatesToCap(t *testing.T) {
	papers := testPapers(10)
	cfg := testCfg()
	cfg.MaxSelected = 3

	res := Classify(context.Background(), &scriptedBackend{decisions: acceptAll(papers, 4)}, papers, cfg, &bytes.Buffer{})
	if len(res.Selected) != 3 {
		t.Fatalf("len(Selected) = %d, want 3", len(res.Selected))
	}
	for i, p := range res.Selected {
		if p.ID != papers[i].ID {
			t.Errorf("Selected[%d] = %s, want first accepted in feed order", i, p.ID)
		}
	}
}

func TestClassifyMissingDecisionRejects(t *testing.T) {
	papers := testPapers(4)
	script := acceptAll(papers, 5)
	delete(script, papers[2].ID) // oracle silently drops one paper

	var log bytes.Buffer
	res := Classify(context.Background(), &scriptedBackend{decisions: script}, papers, testCfg(), &log)

	if len(res.Selected) != 3 {
		t.Fatalf("len(Selected) = %d, want 3", len(res.Selected))
	}
	if res.Decisions[2].Accepted {
		t.Error("dropped paper marked accepted")
	}
	if res.Decisions[2].Rationale != "no decision returned" {
		t.Errorf("Rationale = %q", res.Decisions[2].Rationale)
	}
	if !strings.Contains(log.String(), papers[2].ID) {
		t.Error("missing-decision warning not logged")
	}
}

func TestClassifyFailedBatchRejectsOnlyItsPapers(t *testing.T) {
	papers := testPapers(12) // 3 batches of 4
	backend := &scriptedBackend{
		decisions: acceptAll(papers, 4),
		failIDs:   map[string]bool{papers[5].ID: true}, // batch 2 always fails
	}

	var log bytes.Buffer
	res := Classify(context.Background(), backend, papers, testCfg(), &log)

	if res.DegradedBatches != 1 {
		t.Fatalf("DegradedBatches = %d, want 1", res.DegradedBatches)
	}
	if len(res.Selected) != 8 {
		t.Fatalf("len(Selected) = %d, want 8 (batch 2 rejected)", len(res.Selected))
	}
	for _, p := range res.Selected {
		for i := 4; i < 8; i++ {
			if p.ID == papers[i].ID {
				t.Errorf("paper %s from failed batch made it into Selected", p.ID)
			}
		}
	}
	if !strings.Contains(log.String(), "relevance batch") {
		t.Error("batch failure not logged")
	}
}

func TestClassifyRetriesTransientFailures(t *testing.T) {
	papers := testPapers(3)
	backend := &scriptedBackend{decisions: acceptAll(papers, 3), failCount: 1}

	cfg := testCfg()
	cfg.MaxRetries = 2
	res := Classify(context.Background(), backend, papers, cfg, &bytes.Buffer{})

	if len(res.Selected) != 3 {
		t.Fatalf("len(Selected) = %d, want 3 after retry", len(res.Selected))
	}
	if res.DegradedBatches != 0 {
		t.Errorf("DegradedBatches = %d, want 0", res.DegradedBatches)
	}
}

func TestClaudeBackendParsesDecisions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Response reorders the papers; correlation must use the echoed IDs.
		fmt.Fprint(w, `{"content": [{"type": "text", "text":
			"{\"decisions\": [{\"id\": \"b\", \"accept\": false, \"rationale\": \"off-topic\", \"score\": 1}, {\"id\": \"a\", \"accept\": true, \"rationale\": \"match\", \"score\": 5}]}"
		}]}`)
	}))
	defer ts.Close()

	backend := &ClaudeBackend{Oracle: &oracle.Client{
		APIKey: "k", Model: "m", Client: ts.Client(), BaseURL: ts.URL,
	}}
	decisions, err := backend.Classify(context.Background(),
		[]types.Paper{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}, "interests")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("len(decisions) = %d, want 2", len(decisions))
	}
	if decisions[0].PaperID != "b" || decisions[0].Accepted {
		t.Errorf("decisions[0] = %+v", decisions[0])
	}
	if decisions[1].PaperID != "a" || !decisions[1].Accepted || decisions[1].Score != 5 {
		t.Errorf("decisions[1] = %+v", decisions[1])
	}
}
