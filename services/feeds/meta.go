package feeds

import (
	"context"
	"io"
	"net/url"
	"strings"

	"flatnas/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// Meta is what the bookmark editor pre-fills from a page.
type Meta struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

// FetchMeta reads the title and favicon of the page at rawURL. Only the first
// MetaMaxBytes of the body are parsed. Any upstream problem yields an empty
// Meta; the only error is ErrInvalidURL.
func (s *Service) FetchMeta(ctx context.Context, rawURL string) (Meta, error) {
	base, err := parseHTTPURL(rawURL)
	if err != nil {
		return Meta{}, err
	}

	ctx, cancel := s.withTimeout(ctx, s.cfg.MetaTimeout)
	defer cancel()

	var meta Meta
	err = s.guard("meta", "meta:"+base.Host, func() error {
		var ferr error
		meta, ferr = s.scrapeMeta(ctx, base)
		return ferr
	})
	if err != nil {
		return Meta{}, nil
	}
	return meta, nil
}

func (s *Service) scrapeMeta(ctx context.Context, base *url.URL) (Meta, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(base.String())
	if err != nil {
		return Meta{}, err
	}
	body := resp.RawBody()
	defer body.Close()

	// A non-HTML answer is a valid page without metadata, not an upstream failure.
	if resp.IsError() {
		logger.WithField("url", base.String()).Warn("Fetch meta failed: HTTP %d", resp.StatusCode())
		return Meta{}, nil
	}
	if ct := resp.Header().Get("Content-Type"); ct != "" &&
		!strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml+xml") {
		logger.WithField("url", base.String()).Debug("Skipping non-html content: %s", ct)
		return Meta{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, s.cfg.MetaMaxBytes))
	if err != nil {
		return Meta{}, err
	}
	return extractMeta(doc, base), nil
}

func extractMeta(doc *goquery.Document, base *url.URL) Meta {
	meta := Meta{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	doc.Find("link[rel][href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		rel := strings.ToLower(strings.Join(strings.Fields(sel.AttrOr("rel", "")), " "))
		if rel != "icon" && rel != "shortcut icon" {
			return true
		}
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return true
		}
		meta.Icon = resolveIcon(base, href)
		return false
	})
	return meta
}

func resolveIcon(base *url.URL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
