package pipeline

import (
	"math"
	"time"
)

// Candidate is the normalized, platform-agnostic view of one discovered
// video plus its owning channel's statistics. Candidates live for one
// request: built during normalization, scored after filtering, gone once
// the response is written.
type Candidate struct {
	VideoID      string
	Platform     string
	Niche        string // the keyword that first surfaced this video
	Title        string
	VideoLink    string
	ThumbnailURL string
	PublishedAt  time.Time
	ViewCount    int64
	LikeCount    int64
	CommentCount int64

	ChannelID   string
	ChannelName string
	ChannelLink string

	// SubscriberCount stays nil when the channel hides it; such
	// candidates are rejected by the filter chain before scoring.
	SubscriberCount *int64

	// ChannelVideoCount is nil when the channel does not report a total.
	ChannelVideoCount *int64

	// Score is views per subscriber, attached after the candidate
	// passes the filter chain. Always finite and non-negative.
	Score float64
}

// viewsPerSubscriber is the ranking metric: views divided by subscribers,
// rounded to two decimals. Zero when the subscriber count is unknown or
// zero, so the metric can never be infinite or NaN.
func viewsPerSubscriber(views int64, subscribers *int64) float64 {
	if subscribers == nil || *subscribers <= 0 || views <= 0 {
		return 0.0
	}
	return math.Round(float64(views)/float64(*subscribers)*100) / 100
}
