package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"nichescout/provider"
)

// discoverConcurrency bounds parallel keyword searches per provider.
const discoverConcurrency = 4

// discovery is the deduplicated outcome of searching every keyword.
type discovery struct {
	// items holds unique video/channel ID pairs in keyword order, then
	// result order within each keyword.
	items []provider.SearchItem

	// niches maps each video ID to the first keyword that surfaced it.
	niches map[string]string
}

// discover searches each keyword independently and merges the hits. A
// failing keyword is logged and skipped; the run errors only when every
// keyword failed, preferring the rate-limit sentinel so callers can
// surface quota exhaustion.
func discover(ctx context.Context, client provider.Client, crit Criteria, shortsOnly bool) (discovery, error) {
	pages := make([][]provider.SearchItem, len(crit.Keywords))
	errs := make([]error, len(crit.Keywords))

	var g errgroup.Group
	g.SetLimit(discoverConcurrency)
	for i, keyword := range crit.Keywords {
		i, keyword := i, keyword
		g.Go(func() error {
			items, err := searchKeyword(ctx, client, keyword, crit.MaxResultsPerKeyword, shortsOnly)
			pages[i] = items
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	failed := 0
	var firstErr error
	rateLimited := false
	disc := discovery{niches: make(map[string]string)}
	seen := make(map[string]struct{})
	for i, keyword := range crit.Keywords {
		if err := errs[i]; err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			if errors.Is(err, provider.ErrRateLimited) {
				rateLimited = true
			}
			log.Printf("pipeline: %s search %q failed: %v", client.Platform(), keyword, err)
			continue
		}
		for _, item := range pages[i] {
			if _, dup := seen[item.VideoID]; dup {
				continue
			}
			seen[item.VideoID] = struct{}{}
			disc.items = append(disc.items, item)
			disc.niches[item.VideoID] = keyword
		}
	}

	if failed == len(crit.Keywords) {
		if rateLimited {
			return discovery{}, fmt.Errorf("%w: every keyword search throttled", provider.ErrRateLimited)
		}
		return discovery{}, fmt.Errorf("every keyword search failed: %w", firstErr)
	}
	return disc, nil
}

// searchKeyword pages through search results until limit hits are
// collected or the provider runs out of pages.
func searchKeyword(ctx context.Context, client provider.Client, keyword string, limit int, shortsOnly bool) ([]provider.SearchItem, error) {
	var items []provider.SearchItem
	token := ""
	for len(items) < limit {
		page, err := client.Search(ctx, provider.SearchRequest{
			Query:      keyword,
			PageSize:   limit - len(items),
			PageToken:  token,
			ShortsOnly: shortsOnly,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextPageToken == "" || len(page.Items) == 0 {
			break
		}
		token = page.NextPageToken
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// fetchConcurrency bounds parallel detail batches per provider.
const fetchConcurrency = 3

// fetchDetails chunks IDs into provider-sized batches, fetches them
// concurrently, and indexes the results by ID. A failed batch is logged
// and its IDs silently missing from the map; downstream treats absence
// as a drop.
func fetchDetails[T any](ctx context.Context, ids []string, batchSize int, id func(T) string, fetch func(context.Context, []string) ([]T, error), what string) map[string]T {
	out := make(map[string]T, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batch := ids[start:end]
		g.Go(func() error {
			details, err := fetch(ctx, batch)
			if err != nil {
				log.Printf("pipeline: %s batch of %d failed: %v", what, len(batch), err)
				return nil
			}
			mu.Lock()
			for _, d := range details {
				out[id(d)] = d
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}
