// Package pipeline implements the discovery/filter/rank core: keyword
// discovery against one or more video platforms, batched statistics
// lookup, defensive normalization into Candidate records, a data-driven
// filter chain, and cross-platform merge/sort/truncate.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"nichescout/provider"
)

// ErrInvalidCriteria marks caller errors (empty keyword list, unknown
// platform). Handlers map it to HTTP 400.
var ErrInvalidCriteria = errors.New("pipeline: invalid criteria")

// PlatformAll selects every configured provider.
const PlatformAll = "all"

// Criteria is the immutable per-request search input.
type Criteria struct {
	// Keywords are searched independently; one failing keyword never
	// aborts the others.
	Keywords []string

	// MaxAgeDays rejects candidates published earlier than now minus
	// this many days. Zero or negative disables the recency filter
	// entirely rather than rejecting everything already published;
	// callers wanting "today only" pass 1.
	MaxAgeDays int

	// MaxSubscribers is the upper bound on the owning channel's
	// subscriber count. Whether the bound itself passes is a chain
	// config knob (see ChainConfig.StrictSubscriberBound).
	MaxSubscribers int64

	// MinViews is the lower bound on a candidate's view count.
	MinViews int64

	// MaxChannelVideos is the upper bound on the owning channel's total
	// published videos, a proxy for "small creator". Zero or negative
	// means unbounded. Channels that do not report a total pass.
	MaxChannelVideos int64

	// Platform is PlatformAll or a single platform identifier.
	Platform string

	// MaxResultsPerKeyword bounds discovery breadth per keyword,
	// clamped to the provider page ceiling (50).
	MaxResultsPerKeyword int

	// MaxPerChannel caps how many candidates a single channel may
	// contribute to the final ranked output. Zero means uncapped.
	// Clamped to 50.
	MaxPerChannel int
}

// Normalize trims keywords, applies defaults, and clamps breadth limits
// to the provider ceilings. Returns ErrInvalidCriteria when no usable
// keyword remains.
func (c *Criteria) Normalize() error {
	kept := c.Keywords[:0]
	for _, k := range c.Keywords {
		k = strings.TrimSpace(k)
		if k != "" {
			kept = append(kept, k)
		}
	}
	c.Keywords = kept
	if len(c.Keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidCriteria)
	}

	if c.MaxAgeDays < 0 {
		c.MaxAgeDays = 0
	}
	if c.MaxSubscribers < 0 {
		c.MaxSubscribers = 0
	}
	if c.MinViews < 0 {
		c.MinViews = 0
	}
	if c.MaxChannelVideos < 0 {
		c.MaxChannelVideos = 0
	}

	if c.Platform == "" {
		c.Platform = PlatformAll
	}
	c.Platform = strings.ToLower(c.Platform)

	if c.MaxResultsPerKeyword <= 0 || c.MaxResultsPerKeyword > provider.MaxPageSize {
		c.MaxResultsPerKeyword = provider.MaxPageSize
	}
	if c.MaxPerChannel < 0 {
		c.MaxPerChannel = 0
	}
	if c.MaxPerChannel > provider.MaxPageSize {
		c.MaxPerChannel = provider.MaxPageSize
	}
	return nil
}

func (c Criteria) wantsPlatform(platform string) bool {
	return c.Platform == PlatformAll || c.Platform == platform
}
