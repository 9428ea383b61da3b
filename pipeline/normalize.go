package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"nichescout/provider"
)

// maxShortDuration is the ceiling for shorts-flavored runs. The search
// API's "short" bucket means under four minutes, so a hard cap keeps
// long-form uploads tagged #shorts out of the results.
const maxShortDuration = 70 * time.Second

type normalizeOptions struct {
	// enforceShortDuration drops candidates longer than maxShortDuration.
	// Videos that report no duration at all pass.
	enforceShortDuration bool
}

// normalize converts raw provider records into a Candidate. It is the
// single place malformed upstream data is handled: a bad timestamp or
// duration drops that one candidate with a reason, never the run.
func normalize(client provider.Client, vd provider.VideoDetail, channels map[string]provider.ChannelDetail, niches map[string]string, opts normalizeOptions) (Candidate, string, bool) {
	publishedAt, err := time.Parse(time.RFC3339, vd.PublishedAt)
	if err != nil {
		return Candidate{}, "malformed publish timestamp", false
	}

	if vd.Duration != "" {
		d, err := parseISODuration(vd.Duration)
		if err != nil {
			return Candidate{}, "malformed duration", false
		}
		if opts.enforceShortDuration && d > maxShortDuration {
			return Candidate{}, "longer than a short", false
		}
	}

	ch, ok := channels[vd.ChannelID]
	if !ok {
		return Candidate{}, "channel details unavailable", false
	}

	niche := niches[vd.ID]
	if niche == "" {
		niche = "Unknown"
	}

	return Candidate{
		VideoID:           vd.ID,
		Platform:          client.Platform(),
		Niche:             niche,
		Title:             vd.Title,
		VideoLink:         client.VideoURL(vd.ID),
		ThumbnailURL:      vd.ThumbnailURL,
		PublishedAt:       publishedAt,
		ViewCount:         countOrZero(vd.ViewCount),
		LikeCount:         countOrZero(vd.LikeCount),
		CommentCount:      countOrZero(vd.CommentCount),
		ChannelID:         ch.ID,
		ChannelName:       ch.Title,
		ChannelLink:       client.ChannelURL(ch.ID),
		SubscriberCount:   ch.SubscriberCount,
		ChannelVideoCount: ch.VideoCount,
	}, "", true
}

func countOrZero(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

// parseISODuration parses the ISO 8601 duration subset the video APIs
// emit (P[nW][nD]T[nH][nM][nS], integer components). time.ParseDuration
// speaks a different grammar, so this stays hand-rolled.
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
		if timePart == "" {
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
	}

	var total time.Duration
	consume := func(part string, units map[byte]time.Duration) error {
		for part != "" {
			j := 0
			for j < len(part) && part[j] >= '0' && part[j] <= '9' {
				j++
			}
			if j == 0 || j == len(part) {
				return fmt.Errorf("invalid duration %q", orig)
			}
			unit, ok := units[part[j]]
			if !ok {
				return fmt.Errorf("invalid duration %q", orig)
			}
			n, err := strconv.ParseInt(part[:j], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid duration %q", orig)
			}
			total += time.Duration(n) * unit
			part = part[j+1:]
		}
		return nil
	}

	if err := consume(datePart, map[byte]time.Duration{
		'W': 7 * 24 * time.Hour,
		'D': 24 * time.Hour,
	}); err != nil {
		return 0, err
	}
	if err := consume(timePart, map[byte]time.Duration{
		'H': time.Hour,
		'M': time.Minute,
		'S': time.Second,
	}); err != nil {
		return 0, err
	}
	return total, nil
}
