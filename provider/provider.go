// Package provider defines the contract a video-platform search API must
// satisfy to participate in a discovery pipeline: paginated keyword search,
// batched statistics lookup, and a small error taxonomy that tells the
// pipeline whether a failure is worth retrying, skipping, or surfacing.
package provider

import "context"

// MaxBatchSize is the largest ID list a single details call may carry.
// The YouTube Data API rejects larger batches; other providers are held
// to the same ceiling for uniformity.
const MaxBatchSize = 50

// MaxPageSize is the largest page a single search call may request.
const MaxPageSize = 50

// SearchItem is one raw hit from a keyword search: just enough to drive
// the detail fetch that follows.
type SearchItem struct {
	VideoID   string
	ChannelID string
}

// Page is one page of search results plus the continuation token, empty
// when the provider has no further results.
type Page struct {
	Items         []SearchItem
	NextPageToken string
}

// SearchRequest describes one keyword search call.
type SearchRequest struct {
	Query     string
	PageSize  int    // clamped to MaxPageSize by implementations
	PageToken string // continuation token from a previous Page
	// ShortsOnly restricts results to short-form videos where the
	// provider supports a duration filter.
	ShortsOnly bool
}

// VideoDetail is the full statistics record for one video. Counters are
// pointers because providers may omit them; absent is distinct from zero.
type VideoDetail struct {
	ID           string
	Title        string
	ChannelID    string
	PublishedAt  string // provider timestamp, RFC 3339; parsed defensively downstream
	Duration     string // ISO 8601 duration (e.g. PT1M5S), empty when unavailable
	ThumbnailURL string
	ViewCount    *int64
	LikeCount    *int64
	CommentCount *int64
}

// ChannelDetail is the statistics record for one channel (the owning
// group of a video). SubscriberCount is nil when the channel hides it.
type ChannelDetail struct {
	ID              string
	Title           string
	SubscriberCount *int64
	VideoCount      *int64
}

// Client is the capability a concrete platform SDK must expose. A Client
// is stateless and safe for concurrent use.
type Client interface {
	// Platform returns the stable platform identifier ("youtube", "tiktok").
	Platform() string

	// Search returns one page of results for the query. The caller follows
	// Page.NextPageToken for more.
	Search(ctx context.Context, req SearchRequest) (Page, error)

	// VideoDetails fetches statistics for up to MaxBatchSize video IDs.
	// IDs the provider does not know are silently absent from the result.
	VideoDetails(ctx context.Context, ids []string) ([]VideoDetail, error)

	// ChannelDetails fetches statistics for up to MaxBatchSize channel IDs.
	ChannelDetails(ctx context.Context, ids []string) ([]ChannelDetail, error)

	// VideoURL returns the canonical watch URL for a video ID.
	VideoURL(id string) string

	// ChannelURL returns the canonical URL for a channel ID.
	ChannelURL(id string) string
}
