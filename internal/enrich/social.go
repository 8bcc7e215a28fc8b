// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/paperfeed/internal/httputil"
	"github.com/pdiddy/paperfeed/pkg/types"
)

// socialAPIBase is the X recent-search endpoint. Declared as a var so
// tests can substitute an httptest server.
var socialAPIBase = "https://api.twitter.com/2/tweets/search/recent"

const defaultMinLikes = 2

// SocialClient searches X for recent posts mentioning a paper title.
type SocialClient struct {
	Bearer    string
	Client    *http.Client
	UserAgent string

	// MinLikes filters out low-signal posts (default 2).
	MinLikes int
}

// searchResponse mirrors the X API v2 recent-search payload.
type searchResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// Search returns mentions of title sorted by likes descending. An empty
// result is not an error; callers treat any error as zero mentions.
func (c *SocialClient) Search(ctx context.Context, title string) ([]types.Mention, error) {
	// Quotes inside the title would break the exact-match query syntax.
	clean := strings.NewReplacer(`"`, "", "'", "").Replace(title)
	query := fmt.Sprintf(`"%s" -is:retweet lang:en`, clean)

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", "10")
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "name,username")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, socialAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Bearer)
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("social search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social API returned HTTP %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing social response: %w", err)
	}

	users := make(map[string]struct{ name, handle string })
	for _, u := range sr.Includes.Users {
		users[u.ID] = struct{ name, handle string }{u.Name, u.Username}
	}

	minLikes := c.MinLikes
	if minLikes <= 0 {
		minLikes = defaultMinLikes
	}

	var mentions []types.Mention
	for _, tweet := range sr.Data {
		if tweet.PublicMetrics.LikeCount < minLikes {
			continue
		}
		author := users[tweet.AuthorID]
		if author.handle == "" {
			author.handle = "unknown"
			author.name = "Unknown"
		}
		mentions = append(mentions, types.Mention{
			Text:         tweet.Text,
			AuthorName:   author.name,
			AuthorHandle: author.handle,
			Likes:        tweet.PublicMetrics.LikeCount,
			Retweets:     tweet.PublicMetrics.RetweetCount,
			URL:          fmt.Sprintf("https://x.com/%s/status/%s", author.handle, tweet.ID),
		})
	}

	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Likes > mentions[j].Likes
	})
	return mentions, nil
}
