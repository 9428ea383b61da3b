package pipeline

import "testing"

func TestSortCandidates(t *testing.T) {
	cands := []Candidate{
		{VideoID: "a", ViewCount: 100, Score: 2.0},
		{VideoID: "b", ViewCount: 300, Score: 0.5},
		{VideoID: "c", ViewCount: 200, Score: 9.0},
		{VideoID: "d", ViewCount: 200, Score: 9.0},
	}

	byViews := append([]Candidate(nil), cands...)
	sortCandidates(byViews, RankByViewCount)
	if got := ids(byViews); got != "b,c,d,a" {
		t.Errorf("by views = %s, want b,c,d,a", got)
	}

	byScore := append([]Candidate(nil), cands...)
	sortCandidates(byScore, RankByViewsPerSubscriber)
	if got := ids(byScore); got != "c,d,a,b" {
		t.Errorf("by score = %s, want c,d,a,b (stable on ties)", got)
	}
}

func TestTruncate(t *testing.T) {
	cands := []Candidate{{VideoID: "a"}, {VideoID: "b"}, {VideoID: "c"}}
	if got := len(truncate(cands, 2)); got != 2 {
		t.Errorf("truncate(2) = %d", got)
	}
	if got := len(truncate(cands, 0)); got != 3 {
		t.Errorf("truncate(0) = %d, want all", got)
	}
	if got := len(truncate(cands, 10)); got != 3 {
		t.Errorf("truncate(10) = %d, want all", got)
	}
}

func TestCapPerChannel(t *testing.T) {
	cands := []Candidate{
		{VideoID: "a", Platform: "youtube", ChannelID: "c1"},
		{VideoID: "b", Platform: "youtube", ChannelID: "c1"},
		{VideoID: "c", Platform: "youtube", ChannelID: "c1"},
		{VideoID: "d", Platform: "youtube", ChannelID: "c2"},
		{VideoID: "e", Platform: "tiktok", ChannelID: "c1"},
	}
	got := capPerChannel(append([]Candidate(nil), cands...), 2)
	if ids(got) != "a,b,d,e" {
		t.Errorf("capped = %s, want a,b,d,e (same channel id on another platform is distinct)", ids(got))
	}
	all := capPerChannel(append([]Candidate(nil), cands...), 0)
	if len(all) != 5 {
		t.Errorf("cap 0 should be a no-op, got %d", len(all))
	}
}

func ids(cands []Candidate) string {
	s := ""
	for i, c := range cands {
		if i > 0 {
			s += ","
		}
		s += c.VideoID
	}
	return s
}
