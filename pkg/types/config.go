package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperfeed/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call the oracle API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// FetchConfig holds settings for the feed-fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories is the set of subject tags to query (e.g. "cs.CV", "cs.RO").
	Categories []string `json:"categories" yaml:"categories"`

	// LookbackDays is the size of the submission window, counted back
	// from the report date.
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`

	// LookbackOffsetDays shifts the report date into the past to allow
	// for feed indexing delays (default 0).
	LookbackOffsetDays int `json:"lookback_offset_days" yaml:"lookback_offset_days"`

	// MaxRaw caps the number of records fetched before filtering (default 200).
	MaxRaw int `json:"max_raw" yaml:"max_raw"`

	// PageSize is the number of entries requested per feed page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// FilterConfig holds settings for the relevance-filter stage.
type FilterConfig struct {
	AIConfig `yaml:",inline"`

	// Interests is the free-text interest profile the oracle classifies against.
	Interests string `json:"interests" yaml:"interests"`

	// MaxSelected caps the number of accepted papers (default 20). The cap
	// is soft: link-requirement filtering may shrink the set further.
	MaxSelected int `json:"max_selected" yaml:"max_selected"`

	// BatchSize is the number of papers per oracle call (default 20).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// RequireProjectLink drops papers without a discovered project link
	// after enrichment.
	RequireProjectLink bool `json:"require_project_link" yaml:"require_project_link"`
}

// EnrichConfig holds settings for the enrichment stage.
type EnrichConfig struct {
	HTTPConfig `yaml:",inline"`

	// CacheDir is the directory for downloaded PDFs and rendered previews,
	// keyed by paper ID so an interrupted run resumes without re-downloading.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// PreviewPages is the number of PDF pages rendered as preview images (default 1).
	PreviewPages int `json:"preview_pages" yaml:"preview_pages"`

	// PDFConcurrency is the ceiling on concurrent document downloads (default 4).
	PDFConcurrency int64 `json:"pdf_concurrency" yaml:"pdf_concurrency"`

	// SocialConcurrency is the ceiling on concurrent social-search calls (default 2).
	SocialConcurrency int64 `json:"social_concurrency" yaml:"social_concurrency"`

	// SocialBearerToken authenticates the social-search API. Empty disables
	// the social sub-task.
	SocialBearerToken string `json:"social_bearer_token,omitempty" yaml:"social_bearer_token,omitempty"`

	// SocialMinLikes filters out low-signal posts (default 2).
	SocialMinLikes int `json:"social_min_likes" yaml:"social_min_likes"`
}

// OutputConfig holds settings for the report writer.
type OutputConfig struct {
	// RootDir is the root of the report tree (reports land under
	// RootDir/YYYY/week_WW/).
	RootDir string `json:"root_dir" yaml:"root_dir"`

	// FilenamePrefix is prepended to the report filename before the date.
	FilenamePrefix string `json:"filename_prefix" yaml:"filename_prefix"`
}

// PipelineConfig groups all stage configurations for one run.
type PipelineConfig struct {
	Fetch  FetchConfig  `json:"fetch" yaml:"fetch"`
	Filter FilterConfig `json:"filter" yaml:"filter"`
	Enrich EnrichConfig `json:"enrich" yaml:"enrich"`
	Output OutputConfig `json:"output" yaml:"output"`

	// SeenDBPath is the location of the delivered-ID database.
	SeenDBPath string `json:"seen_db_path" yaml:"seen_db_path"`

	// RunTimeout is the overall deadline for the run; zero means no deadline.
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout"`
}
