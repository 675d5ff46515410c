package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"flatnas/pkg/metrics"

	"github.com/goccy/go-json"
)

const newsLimit = 50

// HotItem is one entry of a trending list. Weibo entries carry a heat value,
// news entries a publication time.
type HotItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Hot   *int64 `json:"hot,omitempty"`
	Time  string `json:"time,omitempty"`
}

type weiboResponse struct {
	Data struct {
		Realtime []struct {
			Word string `json:"word"`
			Num  *int64 `json:"num"`
		} `json:"realtime"`
	} `json:"data"`
}

// Hot returns the trending list for source. A fresh non-empty cache entry is
// served unless force is set. When the upstream fails the last cached list is
// returned; the error is only reported when there is nothing to fall back to.
func (s *Service) Hot(ctx context.Context, source string, force bool) ([]HotItem, error) {
	var fetch func(context.Context) ([]HotItem, error)
	switch source {
	case SourceWeibo:
		fetch = s.fetchWeibo
	case SourceNews:
		fetch = s.fetchNews
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	key := "hot:" + source
	if !force {
		if cached, ok := s.cache.Fresh(key); ok {
			if items := cached.([]HotItem); len(items) > 0 {
				metrics.IncrementHotCacheHits(source)
				return items, nil
			}
		}
	}

	ctx, cancel := s.withTimeout(ctx, s.cfg.FeedTimeout)
	defer cancel()

	var items []HotItem
	err := s.guard(source, source, func() error {
		var ferr error
		items, ferr = fetch(ctx)
		return ferr
	})
	if err == nil {
		s.cache.Set(key, items)
		return items, nil
	}

	if cached, ok := s.cache.Stale(key); ok {
		if stale := cached.([]HotItem); len(stale) > 0 {
			metrics.IncrementHotCacheStale(source)
			return stale, nil
		}
	}
	return []HotItem{}, err
}

func (s *Service) fetchWeibo(ctx context.Context) ([]HotItem, error) {
	body, err := s.get(ctx, s.cfg.WeiboURL, map[string]string{
		"Referer": "https://weibo.com/",
	})
	if err != nil {
		return nil, err
	}

	var resp weiboResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode weibo response: %w", err)
	}

	items := make([]HotItem, 0, len(resp.Data.Realtime))
	for _, x := range resp.Data.Realtime {
		items = append(items, HotItem{
			Title: x.Word,
			URL:   "https://s.weibo.com/weibo?q=" + escapeComponent(x.Word),
			Hot:   x.Num,
		})
	}
	return items, nil
}

func (s *Service) fetchNews(ctx context.Context) ([]HotItem, error) {
	feed, err := s.parseFeed(ctx, s.cfg.NewsFeedURL)
	if err != nil {
		return nil, err
	}

	n := len(feed.Items)
	if n > newsLimit {
		n = newsLimit
	}
	items := make([]HotItem, 0, n)
	for _, it := range feed.Items[:n] {
		items = append(items, HotItem{Title: it.Title, URL: it.Link, Time: it.Published})
	}
	return items, nil
}

// escapeComponent escapes s for a query value, spaces as %20.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
