// Package tiktok is a placeholder provider. TikTok's research API is not
// integrated yet; this client fabricates deterministic records so the
// rest of the pipeline (and the frontend) can exercise the multi-platform
// path. Swap in a real client once API access lands.
package tiktok

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nichescout/provider"
)

// ItemsPerQuery is how many fake videos each keyword search yields.
const ItemsPerQuery = 3

// Client fabricates plausible short-form results for any query.
type Client struct {
	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func New() *Client {
	return &Client{Clock: time.Now}
}

func (c *Client) Platform() string { return "tiktok" }

func (c *Client) VideoURL(id string) string {
	return "https://www.tiktok.com/video/" + id
}

func (c *Client) ChannelURL(id string) string {
	return "https://www.tiktok.com/@" + id
}

// Search returns ItemsPerQuery synthetic hits per query, no pagination.
func (c *Client) Search(ctx context.Context, req provider.SearchRequest) (provider.Page, error) {
	slug := slugify(req.Query)
	var page provider.Page
	for i := 0; i < ItemsPerQuery; i++ {
		page.Items = append(page.Items, provider.SearchItem{
			VideoID:   fmt.Sprintf("tt-%s-%d", slug, i+1),
			ChannelID: fmt.Sprintf("creator_%s_%d", slug, i+1),
		})
	}
	return page, nil
}

// VideoDetails derives stable statistics from each synthetic ID.
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]provider.VideoDetail, error) {
	if len(ids) > provider.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds limit", provider.ErrBadRequest, len(ids))
	}
	now := c.now()
	details := make([]provider.VideoDetail, 0, len(ids))
	for i, id := range ids {
		views := int64(25000 + i*10000)
		likes := views / 15
		comments := views / 150
		details = append(details, provider.VideoDetail{
			ID:           id,
			Title:        "TikTok clip " + strings.TrimPrefix(id, "tt-"),
			ChannelID:    channelForVideo(id),
			PublishedAt:  now.AddDate(0, 0, -(i*2 + 1)).Format(time.RFC3339),
			Duration:     "PT45S",
			ViewCount:    &views,
			LikeCount:    &likes,
			CommentCount: &comments,
		})
	}
	return details, nil
}

// ChannelDetails derives stable small-creator statistics per channel ID.
func (c *Client) ChannelDetails(ctx context.Context, ids []string) ([]provider.ChannelDetail, error) {
	if len(ids) > provider.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds limit", provider.ErrBadRequest, len(ids))
	}
	details := make([]provider.ChannelDetail, 0, len(ids))
	for i, id := range ids {
		subs := int64(2000 + i*500)
		videos := int64(20)
		details = append(details, provider.ChannelDetail{
			ID:              id,
			Title:           id,
			SubscriberCount: &subs,
			VideoCount:      &videos,
		})
	}
	return details, nil
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// channelForVideo recovers the synthetic channel ID from a video ID
// produced by Search.
func channelForVideo(videoID string) string {
	return "creator_" + strings.ReplaceAll(strings.TrimPrefix(videoID, "tt-"), "-", "_")
}

func slugify(q string) string {
	s := strings.ToLower(strings.TrimSpace(q))
	s = strings.Join(strings.Fields(s), "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "clip"
	}
	return b.String()
}
