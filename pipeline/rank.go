package pipeline

import "sort"

// RankStrategy names a sort order for the merged candidate set.
type RankStrategy string

const (
	// RankByViewsPerSubscriber orders by the views/subscriber score,
	// surfacing videos that punch above their channel's weight.
	RankByViewsPerSubscriber RankStrategy = "views_per_subscriber"

	// RankByViewCount orders by raw views.
	RankByViewCount RankStrategy = "view_count"
)

// sortCandidates orders descending by the strategy's metric. The sort is
// stable so equal-metric candidates keep their merge order and repeated
// runs over the same inputs produce the same output.
func sortCandidates(cands []Candidate, strategy RankStrategy) {
	switch strategy {
	case RankByViewCount:
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].ViewCount > cands[j].ViewCount
		})
	default:
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Score > cands[j].Score
		})
	}
}

// truncate returns at most limit candidates; limit <= 0 means unbounded.
func truncate(cands []Candidate, limit int) []Candidate {
	if limit > 0 && len(cands) > limit {
		return cands[:limit]
	}
	return cands
}

// capPerChannel keeps at most max candidates per channel, in ranked
// order. max <= 0 disables the cap.
func capPerChannel(cands []Candidate, max int) []Candidate {
	if max <= 0 {
		return cands
	}
	seen := make(map[string]int, len(cands))
	out := cands[:0]
	for _, c := range cands {
		key := c.Platform + "/" + c.ChannelID
		if seen[key] >= max {
			continue
		}
		seen[key]++
		out = append(out, c)
	}
	return out
}
