// Package feeds proxies the third-party data sources shown on the dashboard:
// trending lists, RSS feeds, weather, public IP lookup and page metadata.
// Upstream failures degrade to cached or empty results wherever one exists.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flatnas/config"
	"flatnas/pkg/breaker"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/mmcdole/gofeed"
)

const (
	SourceWeibo = "weibo"
	SourceNews  = "news"
)

var (
	ErrUnknownSource = errors.New("unknown hot source")
	ErrInvalidURL    = errors.New("invalid url")
	ErrMissingCity   = errors.New("city is required")
)

type Service struct {
	cfg      config.FeedsConfig
	client   *resty.Client
	breakers *breaker.Group
	cache    *HotCache
	parser   *gofeed.Parser
}

func NewService(cfg config.FeedsConfig) *Service {
	client := resty.New().
		SetTimeout(cfg.FeedTimeout).
		SetHeader("User-Agent", cfg.UserAgent)
	client.JSONUnmarshal = json.Unmarshal
	client.JSONMarshal = json.Marshal

	return &Service{
		cfg:    cfg,
		client: client,
		breakers: breaker.NewGroup(breaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		cache:  NewHotCache(cfg.HotCacheTTL),
		parser: gofeed.NewParser(),
	}
}

// BreakerStates reports the circuit state per upstream.
func (s *Service) BreakerStates() map[string]string {
	return s.breakers.States()
}

// guard runs fn through the breaker named key and records the fetch under kind.
func (s *Service) guard(kind, key string, fn func() error) error {
	start := time.Now()
	_, err := s.breakers.Execute(key, func() (interface{}, error) {
		return nil, fn()
	})
	metrics.RecordFeedFetch(kind, time.Since(start).Seconds(), err == nil)
	if err != nil {
		logger.WithFields(map[string]any{
			"source":   kind,
			"upstream": key,
		}).WithError(err).Warn("Upstream fetch failed")
	}
	return err
}

// get fetches url and returns the body of a successful response.
func (s *Service) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// parseFeed downloads and parses an RSS or Atom document.
func (s *Service) parseFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := s.get(ctx, url, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	return s.parser.ParseString(strings.TrimSpace(string(body)))
}

func (s *Service) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
