// Package search exposes the discovery endpoints: viral short-form
// search ranked by raw views and niche research ranked by views per
// subscriber.
package search

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"nichescout/auth"
	"nichescout/db"
	"nichescout/httputil"
	"nichescout/pipeline"
	"nichescout/provider"
)

// viralPageSize is how many ranked results the viral endpoint returns.
const viralPageSize = 40

// Pipeline is the slice of the orchestrator the handlers need.
type Pipeline interface {
	Search(ctx context.Context, crit pipeline.Criteria, opts pipeline.RunOptions) (pipeline.Result, error)
}

// Handler holds dependencies for the search endpoints.
type Handler struct {
	Pipeline Pipeline
	DB       *db.CompatDB
}

// viralVideo is the response shape for GET /api/search/viral-videos.
type viralVideo struct {
	ID              string `json:"id"`
	Platform        string `json:"platform"`
	Niche           string `json:"niche"`
	VideoTitle      string `json:"videoTitle"`
	VideoLink       string `json:"videoLink"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	PublishedAt     string `json:"publishedAt"`
	ViewCount       int64  `json:"viewCount"`
	LikeCount       int64  `json:"likeCount"`
	CommentCount    int64  `json:"commentCount"`
	ChannelName     string `json:"channelName"`
	ChannelLink     string `json:"channelLink"`
	SubscriberCount int64  `json:"subscriberCount"`
}

// nicheVideo is the response shape for GET /api/youtube/find_niches.
type nicheVideo struct {
	ChannelName        string  `json:"channelName"`
	ChannelLink        string  `json:"channelLink"`
	SubscriberCount    int64   `json:"subscriberCount"`
	VideoTitle         string  `json:"videoTitle"`
	VideoLink          string  `json:"videoLink"`
	PublishedAt        string  `json:"publishedAt"`
	ViewCount          int64   `json:"viewCount"`
	ViewsPerSubscriber float64 `json:"viewsPerSubscriber"`
	Keyword            string  `json:"keyword"`
}

// HandleViralVideos searches all platforms for recent shorts from small
// channels and returns the top results by view count.
func (h *Handler) HandleViralVideos(w http.ResponseWriter, r *http.Request) {
	keywords := splitCSV(r.URL.Query().Get("niches"))
	if len(keywords) == 0 {
		httputil.WriteJSON(w, 400, map[string]string{"error": "No niches provided"})
		return
	}

	crit := pipeline.Criteria{
		Keywords:         keywords,
		MaxAgeDays:       queryInt(r, "video_published_days", 30),
		MaxSubscribers:   int64(queryInt(r, "max_subs", 10000)),
		MinViews:         int64(queryInt(r, "min_views", 10000)),
		MaxChannelVideos: int64(queryInt(r, "max_channel_videos_total", 50)),
		Platform:         r.URL.Query().Get("platform"),
	}
	opts := pipeline.RunOptions{
		Strategy:   pipeline.RankByViewCount,
		PageSize:   viralPageSize,
		ShortsOnly: true,
		Chain:      pipeline.NewChain(pipeline.ChainConfig{}),
	}

	result, err := h.Pipeline.Search(r.Context(), crit, opts)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	h.recordSearch(r, "viral", keywords, len(result.Candidates))

	resp := make([]viralVideo, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		resp = append(resp, viralVideo{
			ID:              c.VideoID,
			Platform:        platformLabel(c.Platform),
			Niche:           c.Niche,
			VideoTitle:      c.Title,
			VideoLink:       c.VideoLink,
			ThumbnailURL:    c.ThumbnailURL,
			PublishedAt:     c.PublishedAt.UTC().Format(time.RFC3339),
			ViewCount:       c.ViewCount,
			LikeCount:       c.LikeCount,
			CommentCount:    c.CommentCount,
			ChannelName:     c.ChannelName,
			ChannelLink:     c.ChannelLink,
			SubscriberCount: subscriberCount(c),
		})
	}
	httputil.WriteJSON(w, 200, resp)
}

// HandleFindNiches searches YouTube for videos that dramatically outpace
// their channel's subscriber base, ranked by views per subscriber.
func (h *Handler) HandleFindNiches(w http.ResponseWriter, r *http.Request) {
	keywords := splitCSV(r.URL.Query().Get("keywords"))
	if len(keywords) == 0 {
		httputil.WriteJSON(w, 400, map[string]string{"error": "keywords parameter is required"})
		return
	}

	crit := pipeline.Criteria{
		Keywords:             keywords,
		MaxAgeDays:           queryInt(r, "video_published_days", 90),
		MaxSubscribers:       int64(queryInt(r, "max_subs", 10000)),
		MinViews:             int64(queryInt(r, "min_views", 50000)),
		MaxChannelVideos:     int64(queryInt(r, "max_channel_videos_total", 999999)),
		Platform:             "youtube",
		MaxResultsPerKeyword: queryInt(r, "max_channels", 50),
		MaxPerChannel:        queryInt(r, "max_videos", 20),
	}
	opts := pipeline.RunOptions{
		Strategy: pipeline.RankByViewsPerSubscriber,
		Chain:    pipeline.NewChain(pipeline.ChainConfig{StrictSubscriberBound: true}),
	}

	result, err := h.Pipeline.Search(r.Context(), crit, opts)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	h.recordSearch(r, "niche", keywords, len(result.Candidates))

	resp := make([]nicheVideo, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		resp = append(resp, nicheVideo{
			ChannelName:        c.ChannelName,
			ChannelLink:        c.ChannelLink,
			SubscriberCount:    subscriberCount(c),
			VideoTitle:         c.Title,
			VideoLink:          c.VideoLink,
			PublishedAt:        c.PublishedAt.UTC().Format(time.RFC3339),
			ViewCount:          c.ViewCount,
			ViewsPerSubscriber: c.Score,
			Keyword:            c.Niche,
		})
	}
	httputil.WriteJSON(w, 200, resp)
}

func (h *Handler) writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidCriteria):
		httputil.WriteJSON(w, 400, map[string]string{"error": err.Error()})
	case errors.Is(err, provider.ErrRateLimited):
		httputil.WriteJSON(w, 429, map[string]string{"error": "API quota exceeded. Please try again later."})
	default:
		log.Printf("search: %v", err)
		httputil.WriteJSON(w, 502, map[string]string{"error": "search failed"})
	}
}

// recordSearch appends to the user's search history. Best effort: a
// history failure never fails the search.
func (h *Handler) recordSearch(r *http.Request, kind string, keywords []string, resultCount int) {
	userID, ok := auth.ExtractUserID(r)
	if !ok || h.DB == nil {
		return
	}
	_, err := h.DB.ExecContext(r.Context(),
		`INSERT INTO search_history (id, user_id, kind, keywords, result_count) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, kind, strings.Join(keywords, ","), resultCount)
	if err != nil {
		log.Printf("search: record history for %s: %v", userID, err)
	}
}

// HandleHistory returns the authenticated user's recent searches.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rows, err := h.DB.QueryContext(r.Context(),
		`SELECT id, kind, keywords, result_count, created_at FROM search_history
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to load history"})
		return
	}
	defer rows.Close()

	type entry struct {
		ID          string `json:"id"`
		Kind        string `json:"kind"`
		Keywords    string `json:"keywords"`
		ResultCount int    `json:"resultCount"`
		CreatedAt   string `json:"createdAt"`
	}
	history := make([]entry, 0, limit)
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Keywords, &e.ResultCount, &e.CreatedAt); err != nil {
			httputil.WriteJSON(w, 500, map[string]string{"error": "failed to load history"})
			return
		}
		history = append(history, e)
	}
	httputil.WriteJSON(w, 200, history)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func subscriberCount(c pipeline.Candidate) int64 {
	if c.SubscriberCount == nil {
		return 0
	}
	return *c.SubscriberCount
}

func platformLabel(platform string) string {
	switch platform {
	case "youtube":
		return "YouTube Shorts"
	case "tiktok":
		return "TikTok"
	default:
		return platform
	}
}
