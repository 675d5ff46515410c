package feeds

import (
	"context"
	"net/url"

	"flatnas/pkg/metrics"

	"github.com/mmcdole/gofeed"
)

// ParseRSS fetches and parses the feed at rawURL. Results are cached per URL
// under the hot-cache TTL and a stale copy is served when the upstream fails.
func (s *Service) ParseRSS(ctx context.Context, rawURL string) (*gofeed.Feed, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	key := "rss:" + rawURL
	if cached, ok := s.cache.Fresh(key); ok {
		metrics.IncrementHotCacheHits("rss")
		return cached.(*gofeed.Feed), nil
	}

	ctx, cancel := s.withTimeout(ctx, s.cfg.FeedTimeout)
	defer cancel()

	var feed *gofeed.Feed
	err = s.guard("rss", "rss:"+u.Host, func() error {
		var ferr error
		feed, ferr = s.parseFeed(ctx, rawURL)
		return ferr
	})
	if err == nil {
		s.cache.Set(key, feed)
		return feed, nil
	}

	if cached, ok := s.cache.Stale(key); ok {
		metrics.IncrementHotCacheStale("rss")
		return cached.(*gofeed.Feed), nil
	}
	return nil, err
}

// parseHTTPURL accepts absolute http and https URLs only.
func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	return u, nil
}
