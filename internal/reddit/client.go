// Package reddit fetches the newest posts of a community, either from the
// JSON listing API or from the community's RSS feed.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"thriftscan/valuator/internal/models"
)

// Source returns the newest posts of a community.
type Source interface {
	FetchNew(ctx context.Context, community string) ([]models.Post, error)
}

// StatusError is returned for a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// IsRateLimited reports whether err means the source asked us to back off.
func IsRateLimited(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests
	}
	return err != nil && strings.Contains(err.Error(), "429")
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Limit     int
	Timeout   time.Duration
	// Rate bounds listing requests per second across all communities.
	Rate rate.Limit
}

// Client reads the JSON listing API.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limit     int
	limiter   *rate.Limiter
}

// NewClient creates a listing client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 25
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		limit:     opts.Limit,
		limiter:   rate.NewLimiter(opts.Rate, 1),
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string      `json:"kind"`
			Data models.Post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// ListingURL returns the newest-posts listing URL for community.
func (c *Client) ListingURL(community string) string {
	return fmt.Sprintf("%s/r/%s/new.json?limit=%d&raw_json=1", c.baseURL, url.PathEscape(community), c.limit)
}

// FetchNew implements Source.
func (c *Client) FetchNew(ctx context.Context, community string) ([]models.Post, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.ListingURL(community)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, &StatusError{Code: resp.StatusCode, URL: u}
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode listing from %s: %w", u, err)
	}

	posts := make([]models.Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "" && child.Kind != "t3" {
			continue
		}
		if child.Data.Subreddit == "" {
			child.Data.Subreddit = community
		}
		posts = append(posts, child.Data)
	}

	log.Debug().Str("community", community).Int("posts", len(posts)).Msg("Fetched listing")
	return posts, nil
}
