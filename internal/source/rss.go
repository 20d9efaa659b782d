package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/fetcher"
	"github.com/sells-group/newswatch/internal/model"
)

// rssItem is one <item> of an RSS 2.0 channel.
type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Published   string `xml:"published"`
}

// RSSSource scans one financial RSS feed for items that mention a ticker.
type RSSSource struct {
	feedName string
	feedURL  string
	fetcher  fetcher.Fetcher
	now      func() time.Time
}

// NewRSSSource creates an RSSSource for the named feed.
func NewRSSSource(name, url string, f fetcher.Fetcher) *RSSSource {
	return &RSSSource{feedName: name, feedURL: url, fetcher: f, now: time.Now}
}

// Name returns the feed name, which is also the record's source.
func (s *RSSSource) Name() string { return s.feedName }

// Fetch downloads the feed and keeps items whose title or description
// mentions the ticker as a whole word. Items decoded before a parse error
// are kept.
func (s *RSSSource) Fetch(ctx context.Context, ticker string) ([]model.NewsRecord, error) {
	body, err := s.fetcher.Download(ctx, s.feedURL)
	if err != nil {
		return nil, eris.Wrapf(err, "rss: download %s", s.feedName)
	}
	defer func() { _ = body.Close() }()

	items, err := fetcher.DecodeElements[rssItem](ctx, body, 0, "item")
	if err != nil {
		if len(items) == 0 {
			return nil, eris.Wrapf(err, "rss: parse %s", s.feedName)
		}
		zap.L().Warn("rss: partial feed",
			zap.String("feed", s.feedName),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
	}

	mention := tickerPattern(ticker)
	prefix := "rss-" + slug(s.feedName)

	var out []model.NewsRecord
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		desc := strings.TrimSpace(it.Description)
		if !mention.MatchString(title) && !mention.MatchString(desc) {
			continue
		}
		out = append(out, model.NewsRecord{
			SourceID:  NewID(prefix, title),
			Ticker:    ticker,
			Source:    s.feedName,
			Title:     title,
			Summary:   desc,
			URL:       strings.TrimSpace(it.Link),
			Published: s.published(it),
		})
	}
	return out, nil
}

func (s *RSSSource) published(it rssItem) time.Time {
	for _, raw := range []string{it.Published, it.PubDate} {
		if t, ok := parseFeedTime(raw); ok {
			return t
		}
	}
	return s.now().UTC()
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// tickerPattern matches the ticker as a standalone, case-insensitive word.
func tickerPattern(ticker string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^A-Za-z0-9])` + regexp.QuoteMeta(ticker) + `($|[^A-Za-z0-9])`)
}
