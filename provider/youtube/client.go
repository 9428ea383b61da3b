// Package youtube implements the provider contract against the YouTube
// Data API v3 (search.list, videos.list, channels.list).
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nichescout/provider"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client calls the YouTube Data API with a developer key. Safe for
// concurrent use; it holds no mutable state.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client with a bounded request timeout.
func New(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Platform() string { return "youtube" }

func (c *Client) VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func (c *Client) ChannelURL(id string) string {
	return "https://www.youtube.com/channel/" + id
}

// Search performs one search.list call for the query. With ShortsOnly the
// query is suffixed with #shorts and videoDuration=short is requested,
// matching how Shorts are discoverable through the Data API.
func (c *Client) Search(ctx context.Context, req provider.SearchRequest) (provider.Page, error) {
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > provider.MaxPageSize {
		pageSize = provider.MaxPageSize
	}

	query := req.Query
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(pageSize))
	if req.ShortsOnly {
		query += " #shorts"
		q.Set("videoDuration", "short")
	}
	q.Set("q", query)
	if req.PageToken != "" {
		q.Set("pageToken", req.PageToken)
	}

	var resp searchResponse
	if err := c.get(ctx, "/search", q, &resp); err != nil {
		return provider.Page{}, err
	}

	page := provider.Page{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		page.Items = append(page.Items, provider.SearchItem{
			VideoID:   item.ID.VideoID,
			ChannelID: item.Snippet.ChannelID,
		})
	}
	return page, nil
}

// VideoDetails performs one videos.list call for up to 50 IDs.
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]provider.VideoDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > provider.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d ids exceeds batch limit %d", provider.ErrBadRequest, len(ids), provider.MaxBatchSize)
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics,contentDetails")
	q.Set("id", strings.Join(ids, ","))

	var resp videoListResponse
	if err := c.get(ctx, "/videos", q, &resp); err != nil {
		return nil, err
	}

	details := make([]provider.VideoDetail, 0, len(resp.Items))
	for _, item := range resp.Items {
		details = append(details, provider.VideoDetail{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.ChannelID,
			PublishedAt:  item.Snippet.PublishedAt,
			Duration:     item.ContentDetails.Duration,
			ThumbnailURL: item.Snippet.Thumbnails.best(),
			ViewCount:    parseCount(item.Statistics.ViewCount),
			LikeCount:    parseCount(item.Statistics.LikeCount),
			CommentCount: parseCount(item.Statistics.CommentCount),
		})
	}
	return details, nil
}

// ChannelDetails performs one channels.list call for up to 50 IDs.
// Channels with hidden subscriber counts yield a nil SubscriberCount.
func (c *Client) ChannelDetails(ctx context.Context, ids []string) ([]provider.ChannelDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > provider.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d ids exceeds batch limit %d", provider.ErrBadRequest, len(ids), provider.MaxBatchSize)
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics")
	q.Set("id", strings.Join(ids, ","))

	var resp channelListResponse
	if err := c.get(ctx, "/channels", q, &resp); err != nil {
		return nil, err
	}

	details := make([]provider.ChannelDetail, 0, len(resp.Items))
	for _, item := range resp.Items {
		subs := parseCount(item.Statistics.SubscriberCount)
		if item.Statistics.HiddenSubscriberCount {
			subs = nil
		}
		details = append(details, provider.ChannelDetail{
			ID:              item.ID,
			Title:           item.Snippet.Title,
			SubscriberCount: subs,
			VideoCount:      parseCount(item.Statistics.VideoCount),
		})
	}
	return details, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	q.Set("key", c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", provider.ErrBadRequest, err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", provider.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return translateAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", provider.ErrTransient, err)
	}
	return nil
}

// translateAPIError maps the Data API's error envelope onto the provider
// taxonomy. Quota exhaustion arrives as 403 with reason "quotaExceeded".
func translateAPIError(status int, body []byte) error {
	var env apiErrorEnvelope
	json.Unmarshal(body, &env)

	msg := env.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimited, msg)
	case status == http.StatusForbidden:
		for _, e := range env.Error.Errors {
			if strings.Contains(e.Reason, "quotaExceeded") || strings.Contains(e.Reason, "rateLimitExceeded") {
				return fmt.Errorf("%w: %s", provider.ErrRateLimited, msg)
			}
		}
		return fmt.Errorf("%w: http 403: %s", provider.ErrBadRequest, msg)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: http %d: %s", provider.ErrBadRequest, status, msg)
	default:
		return fmt.Errorf("%w: http %d: %s", provider.ErrTransient, status, msg)
	}
}

// parseCount converts the API's string-typed counters. Unparsable or
// missing values become nil, never zero.
func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// --- Data API response shapes (counters are strings on the wire) ---

type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID string `json:"channelId"`
		} `json:"snippet"`
	} `json:"items"`
}

type thumbnails struct {
	Default thumbnail `json:"default"`
	Medium  thumbnail `json:"medium"`
	High    thumbnail `json:"high"`
}

type thumbnail struct {
	URL string `json:"url"`
}

func (t thumbnails) best() string {
	if t.High.URL != "" {
		return t.High.URL
	}
	if t.Medium.URL != "" {
		return t.Medium.URL
	}
	return t.Default.URL
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string     `json:"title"`
			ChannelID   string     `json:"channelId"`
			PublishedAt string     `json:"publishedAt"`
			Thumbnails  thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
			VideoCount            string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
