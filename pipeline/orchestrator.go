package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"nichescout/provider"
)

// Orchestrator fans a search out across providers and merges the ranked
// results. Safe for concurrent use once constructed.
type Orchestrator struct {
	providers []provider.Client
	clock     func() time.Time
}

// NewOrchestrator wires the configured providers. Provider order is
// significant: merged results keep it, so output is deterministic for a
// given set of provider responses.
func NewOrchestrator(providers ...provider.Client) *Orchestrator {
	return &Orchestrator{providers: providers, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// RunOptions selects the pipeline flavor for one search.
type RunOptions struct {
	// Strategy picks the final sort order.
	Strategy RankStrategy

	// PageSize truncates the merged ranked output; <= 0 means unbounded.
	PageSize int

	// ShortsOnly restricts discovery to short-form results and enforces
	// the duration ceiling during normalization.
	ShortsOnly bool

	// Chain is the filter chain to apply. Required.
	Chain *Chain
}

// Result is one completed search.
type Result struct {
	Candidates []Candidate

	// PlatformCounts records how many candidates each attempted platform
	// contributed before merge truncation.
	PlatformCounts map[string]int
}

// Search runs discovery, detail fetch, normalization, filtering, and
// ranking for every selected platform, then merges. One platform failing
// is logged and skipped; Search errors only when every platform failed,
// keeping ErrRateLimited visible so handlers can answer 429.
func (o *Orchestrator) Search(ctx context.Context, crit Criteria, opts RunOptions) (Result, error) {
	if err := crit.Normalize(); err != nil {
		return Result{}, err
	}

	var selected []provider.Client
	for _, p := range o.providers {
		if crit.wantsPlatform(p.Platform()) {
			selected = append(selected, p)
		}
	}
	if len(selected) == 0 {
		return Result{}, fmt.Errorf("%w: unknown platform %q", ErrInvalidCriteria, crit.Platform)
	}

	perPlatform := make([][]Candidate, len(selected))
	errs := make([]error, len(selected))

	var g errgroup.Group
	for i, client := range selected {
		i, client := i, client
		g.Go(func() error {
			cands, err := o.runPlatform(ctx, client, crit, opts)
			perPlatform[i] = cands
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	result := Result{PlatformCounts: make(map[string]int, len(selected))}
	failed := 0
	rateLimited := false
	for i, client := range selected {
		if err := errs[i]; err != nil {
			failed++
			if errors.Is(err, provider.ErrRateLimited) {
				rateLimited = true
			}
			log.Printf("pipeline: platform %s failed: %v", client.Platform(), err)
			continue
		}
		result.PlatformCounts[client.Platform()] = len(perPlatform[i])
		result.Candidates = append(result.Candidates, perPlatform[i]...)
	}

	if failed == len(selected) {
		if rateLimited {
			return Result{}, fmt.Errorf("%w: every platform throttled", provider.ErrRateLimited)
		}
		return Result{}, fmt.Errorf("every platform failed: %w", errors.Join(errs...))
	}

	sortCandidates(result.Candidates, opts.Strategy)
	result.Candidates = capPerChannel(result.Candidates, crit.MaxPerChannel)
	result.Candidates = truncate(result.Candidates, opts.PageSize)
	return result, nil
}

// runPlatform executes the single-platform pipeline: discover, fetch
// video then channel statistics, normalize, filter, score.
func (o *Orchestrator) runPlatform(ctx context.Context, client provider.Client, crit Criteria, opts RunOptions) ([]Candidate, error) {
	disc, err := discover(ctx, client, crit, opts.ShortsOnly)
	if err != nil {
		return nil, err
	}
	if len(disc.items) == 0 {
		return nil, nil
	}

	videoIDs := make([]string, len(disc.items))
	for i, item := range disc.items {
		videoIDs[i] = item.VideoID
	}
	videos := fetchDetails(ctx, videoIDs, provider.MaxBatchSize,
		func(d provider.VideoDetail) string { return d.ID },
		client.VideoDetails, client.Platform()+" videos")

	// Channel IDs come from the fetched details rather than search hits
	// so a video batch drop also drops its channels, in discovery order
	// and deduplicated.
	var channelIDs []string
	seenChannels := make(map[string]struct{})
	for _, id := range videoIDs {
		vd, ok := videos[id]
		if !ok || vd.ChannelID == "" {
			continue
		}
		if _, dup := seenChannels[vd.ChannelID]; dup {
			continue
		}
		seenChannels[vd.ChannelID] = struct{}{}
		channelIDs = append(channelIDs, vd.ChannelID)
	}
	channels := fetchDetails(ctx, channelIDs, provider.MaxBatchSize,
		func(d provider.ChannelDetail) string { return d.ID },
		client.ChannelDetails, client.Platform()+" channels")

	now := o.clock()
	normOpts := normalizeOptions{enforceShortDuration: opts.ShortsOnly}
	var out []Candidate
	for _, id := range videoIDs {
		vd, ok := videos[id]
		if !ok {
			continue
		}
		cand, reason, ok := normalize(client, vd, channels, disc.niches, normOpts)
		if !ok {
			log.Printf("pipeline: %s drop %s: %s", client.Platform(), id, reason)
			continue
		}
		if name, reason, ok := opts.Chain.Evaluate(&cand, crit, now); !ok {
			log.Printf("pipeline: %s filter %s rejected %s: %s", client.Platform(), name, id, reason)
			continue
		}
		cand.Score = viewsPerSubscriber(cand.ViewCount, cand.SubscriberCount)
		out = append(out, cand)
	}
	return out, nil
}
