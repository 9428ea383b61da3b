package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nichescout/provider"
)

// fakeProvider serves canned search pages and detail records.
type fakeProvider struct {
	platform   string
	pages      map[string]provider.Page // keyed by query
	searchErr  map[string]error         // per-query failures
	videos     map[string]provider.VideoDetail
	channels   map[string]provider.ChannelDetail
	videoErr   error
	channelErr error

	mu          sync.Mutex
	searchCalls int
}

func (f *fakeProvider) Platform() string          { return f.platform }
func (f *fakeProvider) VideoURL(id string) string { return "https://fake.test/v/" + id }
func (f *fakeProvider) ChannelURL(id string) string {
	return "https://fake.test/c/" + id
}

func (f *fakeProvider) Search(ctx context.Context, req provider.SearchRequest) (provider.Page, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if err := f.searchErr[req.Query]; err != nil {
		return provider.Page{}, err
	}
	return f.pages[req.Query], nil
}

func (f *fakeProvider) VideoDetails(ctx context.Context, ids []string) ([]provider.VideoDetail, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	var out []provider.VideoDetail
	for _, id := range ids {
		if d, ok := f.videos[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeProvider) ChannelDetails(ctx context.Context, ids []string) ([]provider.ChannelDetail, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	var out []provider.ChannelDetail
	for _, id := range ids {
		if d, ok := f.channels[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
}

// video builds a detail record published daysAgo days before fixedNow.
func video(id, channel string, views int64, daysAgo int) provider.VideoDetail {
	return provider.VideoDetail{
		ID:          id,
		Title:       "video " + id,
		ChannelID:   channel,
		PublishedAt: fixedNow().AddDate(0, 0, -daysAgo).Format(time.RFC3339),
		Duration:    "PT45S",
		ViewCount:   &views,
	}
}

func channel(id string, subs, videos int64) provider.ChannelDetail {
	return provider.ChannelDetail{ID: id, Title: "channel " + id, SubscriberCount: &subs, VideoCount: &videos}
}

func nicheCriteria(keywords ...string) Criteria {
	return Criteria{
		Keywords:         keywords,
		MaxAgeDays:       30,
		MaxSubscribers:   10000,
		MinViews:         10000,
		MaxChannelVideos: 50,
	}
}

func runOpts(strategy RankStrategy) RunOptions {
	return RunOptions{
		Strategy: strategy,
		Chain:    NewChain(ChainConfig{}),
	}
}

func TestSearch_ScoresAndRanks(t *testing.T) {
	f := &fakeProvider{
		platform: "youtube",
		pages: map[string]provider.Page{
			"cooking": {Items: []provider.SearchItem{
				{VideoID: "v1", ChannelID: "c1"},
				{VideoID: "v2", ChannelID: "c2"},
				{VideoID: "v3", ChannelID: "c3"},
			}},
		},
		videos: map[string]provider.VideoDetail{
			"v1": video("v1", "c1", 20000, 5),
			"v2": video("v2", "c2", 90000, 5),
			"v3": video("v3", "c3", 15000, 5),
		},
		channels: map[string]provider.ChannelDetail{
			"c1": channel("c1", 5000, 10),
			"c2": channel("c2", 3000, 10),
			"c3": channel("c3", 9000, 10),
		},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	res, err := o.Search(context.Background(), nicheCriteria("cooking"), runOpts(RankByViewsPerSubscriber))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ids(res.Candidates); got != "v2,v1,v3" {
		t.Fatalf("order = %s, want v2,v1,v3", got)
	}
	if res.Candidates[1].Score != 4.0 {
		t.Errorf("v1 score = %v, want 4.0", res.Candidates[1].Score)
	}
	if res.Candidates[0].Score != 30.0 {
		t.Errorf("v2 score = %v, want 30.0", res.Candidates[0].Score)
	}
	if res.PlatformCounts["youtube"] != 3 {
		t.Errorf("platform count = %d", res.PlatformCounts["youtube"])
	}
	if res.Candidates[0].Niche != "cooking" {
		t.Errorf("niche = %q", res.Candidates[0].Niche)
	}
}

func TestSearch_SingleSurvivorScore(t *testing.T) {
	f := &fakeProvider{
		platform: "youtube",
		pages: map[string]provider.Page{
			"cooking": {Items: []provider.SearchItem{{VideoID: "v1", ChannelID: "c1"}}},
		},
		videos:   map[string]provider.VideoDetail{"v1": video("v1", "c1", 20000, 5)},
		channels: map[string]provider.ChannelDetail{"c1": channel("c1", 5000, 10)},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	res, err := o.Search(context.Background(), nicheCriteria("cooking"), runOpts(RankByViewsPerSubscriber))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.Candidates))
	}
	if res.Candidates[0].Score != 4.0 {
		t.Errorf("score = %v, want 4.0", res.Candidates[0].Score)
	}
}

func TestSearch_FiltersApply(t *testing.T) {
	bigSubs := channel("big", 50000, 10)
	hidden := provider.ChannelDetail{ID: "hid", Title: "hidden"}
	f := &fakeProvider{
		platform: "youtube",
		pages: map[string]provider.Page{
			"x": {Items: []provider.SearchItem{
				{VideoID: "ok", ChannelID: "c1"},
				{VideoID: "big-channel", ChannelID: "big"},
				{VideoID: "hidden-subs", ChannelID: "hid"},
				{VideoID: "old", ChannelID: "c1"},
				{VideoID: "few-views", ChannelID: "c1"},
			}},
		},
		videos: map[string]provider.VideoDetail{
			"ok":          video("ok", "c1", 20000, 5),
			"big-channel": video("big-channel", "big", 20000, 5),
			"hidden-subs": video("hidden-subs", "hid", 20000, 5),
			"old":         video("old", "c1", 20000, 45),
			"few-views":   video("few-views", "c1", 500, 5),
		},
		channels: map[string]provider.ChannelDetail{
			"c1":  channel("c1", 5000, 10),
			"big": bigSubs,
			"hid": hidden,
		},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	res, err := o.Search(context.Background(), nicheCriteria("x"), runOpts(RankByViewCount))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ids(res.Candidates); got != "ok" {
		t.Fatalf("survivors = %s, want ok", got)
	}
	for _, c := range res.Candidates {
		if c.SubscriberCount == nil {
			t.Error("hidden-subscriber candidate leaked into output")
		}
	}
}

func TestSearch_DedupesAcrossKeywords(t *testing.T) {
	f := &fakeProvider{
		platform: "youtube",
		pages: map[string]provider.Page{
			"a": {Items: []provider.SearchItem{{VideoID: "v1", ChannelID: "c1"}}},
			"b": {Items: []provider.SearchItem{{VideoID: "v1", ChannelID: "c1"}, {VideoID: "v2", ChannelID: "c1"}}},
		},
		videos: map[string]provider.VideoDetail{
			"v1": video("v1", "c1", 20000, 5),
			"v2": video("v2", "c1", 30000, 5),
		},
		channels: map[string]provider.ChannelDetail{"c1": channel("c1", 5000, 10)},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	res, err := o.Search(context.Background(), nicheCriteria("a", "b"), runOpts(RankByViewCount))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 (v1 deduped)", len(res.Candidates))
	}
	for _, c := range res.Candidates {
		if c.VideoID == "v1" && c.Niche != "a" {
			t.Errorf("v1 niche = %q, want first keyword a", c.Niche)
		}
	}
}

func TestSearch_PartialKeywordFailure(t *testing.T) {
	f := &fakeProvider{
		platform: "youtube",
		pages: map[string]provider.Page{
			"good": {Items: []provider.SearchItem{{VideoID: "v1", ChannelID: "c1"}}},
		},
		searchErr: map[string]error{
			"bad": fmt.Errorf("%w: throttled", provider.ErrRateLimited),
		},
		videos:   map[string]provider.VideoDetail{"v1": video("v1", "c1", 20000, 5)},
		channels: map[string]provider.ChannelDetail{"c1": channel("c1", 5000, 10)},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	res, err := o.Search(context.Background(), nicheCriteria("bad", "good"), runOpts(RankByViewCount))
	if err != nil {
		t.Fatalf("one good keyword should succeed: %v", err)
	}
	if got := ids(res.Candidates); got != "v1" {
		t.Errorf("candidates = %s", got)
	}
}

func TestSearch_AllKeywordsThrottled(t *testing.T) {
	f := &fakeProvider{
		platform: "youtube",
		searchErr: map[string]error{
			"a": fmt.Errorf("%w: quota", provider.ErrRateLimited),
			"b": fmt.Errorf("%w: quota", provider.ErrRateLimited),
		},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	_, err := o.Search(context.Background(), nicheCriteria("a", "b"), runOpts(RankByViewCount))
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestSearch_OnePlatformDownStillAnswers(t *testing.T) {
	down := &fakeProvider{
		platform: "tiktok",
		searchErr: map[string]error{
			"x": fmt.Errorf("%w: upstream 500", provider.ErrTransient),
		},
	}
	up := &fakeProvider{
		platform: "youtube",
		pages:    map[string]provider.Page{"x": {Items: []provider.SearchItem{{VideoID: "v1", ChannelID: "c1"}}}},
		videos:   map[string]provider.VideoDetail{"v1": video("v1", "c1", 20000, 5)},
		channels: map[string]provider.ChannelDetail{"c1": channel("c1", 5000, 10)},
	}
	o := NewOrchestrator(up, down).WithClock(fixedNow)

	res, err := o.Search(context.Background(), nicheCriteria("x"), runOpts(RankByViewCount))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d", len(res.Candidates))
	}
	if _, ok := res.PlatformCounts["tiktok"]; ok {
		t.Error("failed platform must not appear in counts")
	}
}

func TestSearch_PlatformSelection(t *testing.T) {
	yt := &fakeProvider{platform: "youtube"}
	tk := &fakeProvider{
		platform: "tiktok",
		pages:    map[string]provider.Page{"x": {Items: []provider.SearchItem{{VideoID: "t1", ChannelID: "c1"}}}},
		videos:   map[string]provider.VideoDetail{"t1": video("t1", "c1", 20000, 5)},
		channels: map[string]provider.ChannelDetail{"c1": channel("c1", 5000, 10)},
	}
	o := NewOrchestrator(yt, tk).WithClock(fixedNow)

	crit := nicheCriteria("x")
	crit.Platform = "tiktok"
	res, err := o.Search(context.Background(), crit, runOpts(RankByViewCount))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if yt.searchCalls != 0 {
		t.Error("youtube should not have been queried")
	}
	if got := ids(res.Candidates); got != "t1" {
		t.Errorf("candidates = %s", got)
	}

	crit.Platform = "vimeo"
	if _, err := o.Search(context.Background(), crit, runOpts(RankByViewCount)); !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("unknown platform err = %v, want ErrInvalidCriteria", err)
	}
}

func TestSearch_EmptyKeywords(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{platform: "youtube"})
	_, err := o.Search(context.Background(), Criteria{Keywords: []string{"  "}}, runOpts(RankByViewCount))
	if !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("err = %v, want ErrInvalidCriteria", err)
	}
}

func TestSearch_PageSizeAndChannelCap(t *testing.T) {
	items := make([]provider.SearchItem, 0, 6)
	videos := make(map[string]provider.VideoDetail, 6)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("v%d", i)
		items = append(items, provider.SearchItem{VideoID: id, ChannelID: "c1"})
		videos[id] = video(id, "c1", int64(60000-i*1000), 5)
	}
	f := &fakeProvider{
		platform: "youtube",
		pages:    map[string]provider.Page{"x": {Items: items}},
		videos:   videos,
		channels: map[string]provider.ChannelDetail{"c1": channel("c1", 5000, 10)},
	}
	o := NewOrchestrator(f).WithClock(fixedNow)

	crit := nicheCriteria("x")
	crit.MaxPerChannel = 2
	opts := runOpts(RankByViewCount)
	opts.PageSize = 5

	res, err := o.Search(context.Background(), crit, opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ids(res.Candidates); got != "v0,v1" {
		t.Errorf("candidates = %s, want top two from the channel", got)
	}
}

func TestSearch_IdempotentForSameInputs(t *testing.T) {
	build := func() *fakeProvider {
		return &fakeProvider{
			platform: "youtube",
			pages: map[string]provider.Page{
				"x": {Items: []provider.SearchItem{
					{VideoID: "v1", ChannelID: "c1"},
					{VideoID: "v2", ChannelID: "c2"},
					{VideoID: "v3", ChannelID: "c1"},
				}},
			},
			videos: map[string]provider.VideoDetail{
				"v1": video("v1", "c1", 20000, 5),
				"v2": video("v2", "c2", 20000, 6),
				"v3": video("v3", "c1", 20000, 7),
			},
			channels: map[string]provider.ChannelDetail{
				"c1": channel("c1", 5000, 10),
				"c2": channel("c2", 5000, 10),
			},
		}
	}
	o1 := NewOrchestrator(build()).WithClock(fixedNow)
	o2 := NewOrchestrator(build()).WithClock(fixedNow)

	r1, err := o1.Search(context.Background(), nicheCriteria("x"), runOpts(RankByViewCount))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := o2.Search(context.Background(), nicheCriteria("x"), runOpts(RankByViewCount))
	if err != nil {
		t.Fatal(err)
	}
	if ids(r1.Candidates) != ids(r2.Candidates) {
		t.Errorf("runs differ: %s vs %s", ids(r1.Candidates), ids(r2.Candidates))
	}
}
