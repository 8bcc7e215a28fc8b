// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/pdiddy/paperfeed/internal/oracle"
	"github.com/pdiddy/paperfeed/pkg/types"
)

// classifyPromptTmpl is the prompt sent to the oracle for each batch. It
// demands explicit ID echoing so responses can be correlated even when the
// model reorders or drops papers.
var classifyPromptTmpl = template.Must(template.New("classify").Parse(`You are a research assistant screening new papers for a reader.
Reader interests: {{.Interests}}

Task: for EVERY paper below, decide whether it matches the reader's interests.
For each paper return:
- id: the paper ID exactly as given
- accept: true or false
- rationale: one short sentence explaining the decision
- score: an integer 1-5 rating how strongly the paper matches (5 = central to the interests)

Respond with a JSON object containing a "decisions" array, one element per paper, echoing the paper ID. Do not include any text outside the JSON object.

Example response:
{"decisions": [{"id": "2310.12345", "accept": true, "rationale": "Introduces a VLA architecture directly relevant to robot manipulation.", "score": 4}]}

Papers:
{{range .Papers}}ID: {{.ID}}
Title: {{.Title}}
Abstract: {{.Abstract}}

{{end}}`))

// ClaudeBackend classifies batches through the Claude Messages API.
type ClaudeBackend struct {
	Oracle *oracle.Client
}

// classifyResponse is the JSON shape the oracle is instructed to return.
type classifyResponse struct {
	Decisions []classifyDecision `json:"decisions"`
}

type classifyDecision struct {
	ID        string `json:"id"`
	Accept    bool   `json:"accept"`
	Rationale string `json:"rationale"`
	Score     int    `json:"score"`
}

// Classify sends one batch to the oracle and parses the per-ID decisions.
func (b *ClaudeBackend) Classify(ctx context.Context, papers []types.Paper, interests string) ([]types.Decision, error) {
	var buf bytes.Buffer
	err := classifyPromptTmpl.Execute(&buf, struct {
		Interests string
		Papers    []types.Paper
	}{Interests: interests, Papers: papers})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := b.Oracle.Complete(ctx, buf.String())
	if err != nil {
		return nil, err
	}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parsing classification JSON: %w", err)
	}

	decisions := make([]types.Decision, 0, len(resp.Decisions))
	for _, d := range resp.Decisions {
		decisions = append(decisions, types.Decision{
			PaperID:   d.ID,
			Accepted:  d.Accept,
			Rationale: d.Rationale,
			Score:     d.Score,
		})
	}
	return decisions, nil
}
