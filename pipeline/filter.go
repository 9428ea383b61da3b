package pipeline

import "time"

// predicate is one named filter step. It returns false plus a short
// reason when the candidate should be dropped. Reasons end up in logs
// only, never in responses.
type predicate struct {
	name  string
	check func(c *Candidate, crit Criteria, now time.Time) (string, bool)
}

// ChainConfig tunes filter behavior per pipeline flavor.
type ChainConfig struct {
	// StrictSubscriberBound rejects channels AT the subscriber ceiling
	// as well as above it. The viral flow treats the ceiling as
	// inclusive, the niche flow as exclusive.
	StrictSubscriberBound bool
}

// Chain evaluates predicates in a fixed order and short-circuits on the
// first rejection. Adding a filter means appending a predicate here, not
// threading a new conditional through the pipeline.
type Chain struct {
	predicates []predicate
}

// NewChain builds the standard chain: subscriber bound, channel size,
// recency, view floor.
func NewChain(cfg ChainConfig) *Chain {
	return &Chain{predicates: []predicate{
		{
			name: "subscribers",
			check: func(c *Candidate, crit Criteria, _ time.Time) (string, bool) {
				if c.SubscriberCount == nil {
					return "subscriber count hidden", false
				}
				subs := *c.SubscriberCount
				if cfg.StrictSubscriberBound {
					if subs >= crit.MaxSubscribers {
						return "subscriber count at or above ceiling", false
					}
				} else if subs > crit.MaxSubscribers {
					return "subscriber count above ceiling", false
				}
				return "", true
			},
		},
		{
			name: "channel_size",
			check: func(c *Candidate, crit Criteria, _ time.Time) (string, bool) {
				// Channels that do not report a video total pass.
				if crit.MaxChannelVideos <= 0 || c.ChannelVideoCount == nil {
					return "", true
				}
				if *c.ChannelVideoCount > crit.MaxChannelVideos {
					return "channel has too many videos", false
				}
				return "", true
			},
		},
		{
			name: "recency",
			check: func(c *Candidate, crit Criteria, now time.Time) (string, bool) {
				if crit.MaxAgeDays <= 0 {
					return "", true
				}
				cutoff := now.AddDate(0, 0, -crit.MaxAgeDays)
				if c.PublishedAt.Before(cutoff) {
					return "published before cutoff", false
				}
				return "", true
			},
		},
		{
			name: "views",
			check: func(c *Candidate, crit Criteria, _ time.Time) (string, bool) {
				if c.ViewCount < crit.MinViews {
					return "view count below floor", false
				}
				return "", true
			},
		},
	}}
}

// Evaluate runs the chain. On rejection it returns the predicate name
// and reason; passing candidates return ok=true.
func (ch *Chain) Evaluate(c *Candidate, crit Criteria, now time.Time) (name, reason string, ok bool) {
	for _, p := range ch.predicates {
		if reason, passed := p.check(c, crit, now); !passed {
			return p.name, reason, false
		}
	}
	return "", "", true
}
