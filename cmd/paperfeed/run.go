// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfeed/internal/enrich"
	"github.com/pdiddy/paperfeed/internal/fetch"
	"github.com/pdiddy/paperfeed/internal/oracle"
	"github.com/pdiddy/paperfeed/internal/pipeline"
	"github.com/pdiddy/paperfeed/internal/relevance"
	"github.com/pdiddy/paperfeed/internal/seen"
	"github.com/pdiddy/paperfeed/internal/summarize"
	"github.com/pdiddy/paperfeed/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "paperfeed/0.1"
	defaultModel     = "claude-sonnet-4-20250514"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one curation cycle and write the daily report",
	Long: `Run fetches recent papers, filters out everything delivered before,
classifies the rest against the configured interest profile, enriches
the accepted papers, and writes a markdown report under the output
directory. Requires an anthropic-api-key file in .secrets/; an optional
x-bearer-token file enables social mention lookup.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("date", "", "report date as YYYY-MM-DD (default: today)")
	runCmd.Flags().Bool("force", false, "regenerate even if cached run data exists for the date")

	rootCmd.AddCommand(runCmd)
}

func setConfigDefaults() {
	viper.SetDefault("fetch.categories", []string{"cs.AI", "cs.LG", "cs.CL"})
	viper.SetDefault("fetch.lookback_days", 2)
	viper.SetDefault("fetch.lookback_offset_days", 0)
	viper.SetDefault("fetch.max_raw", 500)
	viper.SetDefault("fetch.page_size", 100)
	viper.SetDefault("filter.interests", "")
	viper.SetDefault("filter.max_selected", 15)
	viper.SetDefault("filter.batch_size", 20)
	viper.SetDefault("filter.max_retries", 3)
	viper.SetDefault("filter.require_project_link", false)
	viper.SetDefault("filter.model", defaultModel)
	viper.SetDefault("enrich.cache_dir", "cache")
	viper.SetDefault("enrich.preview_pages", 1)
	viper.SetDefault("enrich.pdf_concurrency", 4)
	viper.SetDefault("enrich.social_concurrency", 2)
	viper.SetDefault("enrich.social_min_likes", 2)
	viper.SetDefault("output.root_dir", "reports")
	viper.SetDefault("output.filename_prefix", "pulse")
	viper.SetDefault("seen_db", "cache/seen.db")
	viper.SetDefault("run_timeout", 30*time.Minute)
	viper.SetDefault("http_timeout", defaultTimeout)
	viper.SetDefault("user_agent", defaultUserAgent)
}

func pipelineConfig() types.PipelineConfig {
	setConfigDefaults()

	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http_timeout"),
		UserAgent: viper.GetString("user_agent"),
	}

	return types.PipelineConfig{
		Fetch: types.FetchConfig{
			HTTPConfig:         httpCfg,
			Categories:         viper.GetStringSlice("fetch.categories"),
			LookbackDays:       viper.GetInt("fetch.lookback_days"),
			LookbackOffsetDays: viper.GetInt("fetch.lookback_offset_days"),
			MaxRaw:             viper.GetInt("fetch.max_raw"),
			PageSize:           viper.GetInt("fetch.page_size"),
		},
		Filter: types.FilterConfig{
			AIConfig: types.AIConfig{
				Model:      viper.GetString("filter.model"),
				APIKey:     loadedSecrets["anthropic-api-key"],
				MaxRetries: viper.GetInt("filter.max_retries"),
			},
			Interests:          viper.GetString("filter.interests"),
			MaxSelected:        viper.GetInt("filter.max_selected"),
			BatchSize:          viper.GetInt("filter.batch_size"),
			RequireProjectLink: viper.GetBool("filter.require_project_link"),
		},
		Enrich: types.EnrichConfig{
			HTTPConfig:        httpCfg,
			CacheDir:          viper.GetString("enrich.cache_dir"),
			PreviewPages:      viper.GetInt("enrich.preview_pages"),
			PDFConcurrency:    viper.GetInt64("enrich.pdf_concurrency"),
			SocialConcurrency: viper.GetInt64("enrich.social_concurrency"),
			SocialBearerToken: loadedSecrets["x-bearer-token"],
			SocialMinLikes:    viper.GetInt("enrich.social_min_likes"),
		},
		Output: types.OutputConfig{
			RootDir:        viper.GetString("output.root_dir"),
			FilenamePrefix: viper.GetString("output.filename_prefix"),
		},
		SeenDBPath: viper.GetString("seen_db"),
		RunTimeout: viper.GetDuration("run_timeout"),
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	if cfg.Filter.APIKey == "" {
		return fmt.Errorf("no anthropic-api-key found in .secrets/; the relevance filter cannot run without it")
	}
	if cfg.Filter.Interests == "" {
		return fmt.Errorf("filter.interests is empty; set your interest profile in the config file")
	}

	date := time.Now().UTC()
	if dateStr, _ := cmd.Flags().GetString("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("parsing --date %q: %w", dateStr, err)
		}
		// End of the chosen day, so the lookback window covers all of it.
		date = parsed.Add(24*time.Hour - time.Second)
	}
	force, _ := cmd.Flags().GetBool("force")

	store, err := seen.Open(cfg.SeenDBPath)
	if err != nil {
		return fmt.Errorf("opening seen store: %w", err)
	}
	defer store.Close()

	client := &http.Client{Timeout: cfg.Fetch.Timeout}
	oracleClient := &oracle.Client{
		APIKey: cfg.Filter.APIKey,
		Model:  cfg.Filter.Model,
		Client: client,
	}

	deps := pipeline.Deps{
		Source:     &fetch.Client{Client: client},
		Seen:       store,
		Classifier: &relevance.ClaudeBackend{Oracle: oracleClient},
		Enricher:   enrich.New(cfg.Enrich, client, &enrich.PdftoppmRenderer{}),
		Summarizer: &summarize.ClaudeBackend{Oracle: oracleClient},
	}

	summary, err := pipeline.Run(cmd.Context(), cfg, deps, date, force, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Delivered > 0 || summary.FromCache {
		fmt.Printf("report: %s\n", summary.ReportFile)
	}
	return nil
}
