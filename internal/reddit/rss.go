package reddit

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/reddot-watch/feedfetcher"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"thriftscan/valuator/internal/models"
)

// RSSSource reads a community's RSS feed. Feed entries carry no author or
// gallery data, so posts from this source are thinner than listing posts.
type RSSSource struct {
	fetcher *feedfetcher.FeedFetcher
	baseURL string
	limiter *rate.Limiter
}

// NewRSSSource creates an RSS-backed Source.
func NewRSSSource(opts Options) *RSSSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 25
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	return &RSSSource{
		fetcher: feedfetcher.NewFeedFetcher(feedfetcher.Config{
			UserAgent:            opts.UserAgent,
			RequestTimeout:       opts.Timeout,
			MaxItems:             opts.Limit,
			MaxHeadingLength:     300,
			MaxAge:               7 * 24 * time.Hour,
			FutureDriftTolerance: 12 * time.Hour,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(opts.Rate, 1),
	}
}

// FeedURL returns the RSS URL for community.
func (s *RSSSource) FeedURL(community string) string {
	return fmt.Sprintf("%s/r/%s/new/.rss", s.baseURL, url.PathEscape(community))
}

var (
	commentsID = regexp.MustCompile(`/comments/([A-Za-z0-9]+)`)
	imgSrc     = regexp.MustCompile(`(?i)<img[^>]+src="([^"]+)"`)
	imageLink  = regexp.MustCompile(`(?i)href="(https://i\.(?:redd\.it|imgur\.com)/[^"]+)"`)
)

// PostIDFromURL extracts the post id from a permalink.
func PostIDFromURL(link string) (string, bool) {
	m := commentsID.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FetchNew implements Source.
func (s *RSSSource) FetchNew(ctx context.Context, community string) ([]models.Post, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feedURL := s.FeedURL(community)
	items, err := s.fetcher.FetchAndProcess(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", feedURL, err)
	}

	posts := make([]models.Post, 0, len(items))
	for _, item := range items {
		id, ok := PostIDFromURL(item.URL)
		if !ok {
			log.Debug().Str("url", item.URL).Msg("Skipping feed entry without a post id")
			continue
		}

		p := models.Post{
			ID:        id,
			Title:     item.Headline,
			Selftext:  item.Content,
			Subreddit: community,
			URL:       item.URL,
		}
		if u, err := url.Parse(item.URL); err == nil {
			p.Permalink = u.Path
		}
		if !item.PublishedAt.IsZero() {
			p.CreatedUTC = float64(item.PublishedAt.Unix())
		}
		if img := firstImage(item.Content); img != "" {
			p.URL = img
		}
		posts = append(posts, p)
	}

	log.Debug().Str("community", community).Int("posts", len(posts)).Msg("Fetched feed")
	return posts, nil
}

// firstImage finds a direct image link in an entry's HTML body. Linked
// full-size images win over inline thumbnails.
func firstImage(content string) string {
	if m := imageLink.FindStringSubmatch(content); m != nil {
		return html.UnescapeString(m[1])
	}
	if m := imgSrc.FindStringSubmatch(content); m != nil {
		return html.UnescapeString(m[1])
	}
	return ""
}
