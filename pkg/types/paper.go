// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records exchanged between pipeline stages.
package types

import "time"

// Paper holds the metadata of one candidate paper as returned by the feed.
// Created by the fetch stage and immutable afterwards.
type Paper struct {
	// ID is the source-assigned identifier (e.g. "2301.07041"), stable
	// across runs and used as the dedup key.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title with newlines collapsed.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract with newlines collapsed.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Comment is the author-supplied comment field, often the place where
	// project or code links are announced.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`

	// Categories lists the subject tags the entry was filed under.
	Categories []string `json:"categories" yaml:"categories"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Published is the submission timestamp.
	Published time.Time `json:"published" yaml:"published"`

	// AbsURL is the abstract-page URL.
	AbsURL string `json:"abs_url" yaml:"abs_url"`

	// PDFURL is the primary document URL.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`
}

// Decision is the oracle's verdict for one paper.
type Decision struct {
	// PaperID references the Paper this decision belongs to.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Accepted reports whether the paper matched the interest profile.
	Accepted bool `json:"accepted" yaml:"accepted"`

	// Rationale is the oracle's one-line justification.
	Rationale string `json:"rationale" yaml:"rationale"`

	// Score is the relevance rating on a 1-5 scale, used for ranking.
	Score int `json:"score" yaml:"score"`
}

// Mention is one social post discussing a paper.
type Mention struct {
	Text         string `json:"text" yaml:"text"`
	AuthorName   string `json:"author_name" yaml:"author_name"`
	AuthorHandle string `json:"author_handle" yaml:"author_handle"`
	Likes        int    `json:"likes" yaml:"likes"`
	Retweets     int    `json:"retweets" yaml:"retweets"`
	URL          string `json:"url" yaml:"url"`
}

// EnrichedPaper is an accepted Paper plus its Decision and the optional
// fields the enrichment sub-tasks fill in. Each sub-task owns a disjoint
// set of fields, so concurrent sub-tasks never write the same field.
type EnrichedPaper struct {
	Paper    `yaml:",inline"`
	Decision Decision `json:"decision" yaml:"decision"`

	// ProjectURL is the discovered demo/project link, empty when none was
	// found. Owned by the link-discovery sub-task.
	ProjectURL string `json:"project_url,omitempty" yaml:"project_url,omitempty"`

	// AuthorsFull is the author string with affiliations scraped from the
	// abstract page; falls back to the plain author list.
	AuthorsFull string `json:"authors_full,omitempty" yaml:"authors_full,omitempty"`

	// LocalPDF is the path of the cached PDF, empty when the download
	// failed. Owned by the asset sub-task.
	LocalPDF string `json:"local_pdf,omitempty" yaml:"local_pdf,omitempty"`

	// PreviewImages lists rendered page images in page order.
	PreviewImages []string `json:"preview_images,omitempty" yaml:"preview_images,omitempty"`

	// Mentions holds social posts sorted by likes descending. Owned by
	// the social sub-task.
	Mentions []Mention `json:"mentions,omitempty" yaml:"mentions,omitempty"`

	// Summary is the one-sentence oracle summary, or a truncated abstract
	// when summarization failed.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// MentionCount returns the number of social posts found for the paper.
func (p *EnrichedPaper) MentionCount() int { return len(p.Mentions) }
