package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Market Currents</title>
<item>
  <title>ACME shares jump after earnings beat</title>
  <description>Acme Corp reported record revenue.</description>
  <link>https://example.com/acme-beat</link>
  <pubDate>Mon, 02 Mar 2026 14:00:00 +0000</pubDate>
</item>
<item>
  <title>Markets close flat</title>
  <description>Analysts cite caution ahead of ACME guidance.</description>
  <link>https://example.com/flat</link>
  <pubDate>Mon, 02 Mar 2026 21:00:00 GMT</pubDate>
</item>
<item>
  <title>ACMEX fund rebalances</title>
  <description>Unrelated fund news.</description>
  <link>https://example.com/acmex</link>
</item>
<item>
  <title>Oil prices rise</title>
  <description>Crude up 2%.</description>
  <link>https://example.com/oil</link>
</item>
</channel></rss>`

func TestRSSSource_FiltersByTickerMention(t *testing.T) {
	f := &stubFetcher{body: sampleFeed}
	s := NewRSSSource("Seeking Alpha", "https://example.com/feed.xml", f)

	got, err := s.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []string{"https://example.com/feed.xml"}, f.urls)

	first := got[0]
	assert.Equal(t, "ACME shares jump after earnings beat", first.Title)
	assert.Equal(t, "Acme Corp reported record revenue.", first.Summary)
	assert.Equal(t, "https://example.com/acme-beat", first.URL)
	assert.Equal(t, "Seeking Alpha", first.Source)
	assert.Equal(t, "ACME", first.Ticker)
	assert.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), first.Published)
	assert.Equal(t, NewID("rss-seeking-alpha", first.Title), first.SourceID)

	// Mentioned in the description only.
	assert.Equal(t, "Markets close flat", got[1].Title)
	assert.Equal(t, time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC), got[1].Published)
}

func TestRSSSource_MissingDateFallsBackToNow(t *testing.T) {
	f := &stubFetcher{body: `<rss><channel><item><title>INIT update</title></item></channel></rss>`}
	s := NewRSSSource("CNBC", "https://example.com/rss", f)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	got, err := s.Fetch(context.Background(), "INIT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fixed, got[0].Published)
}

func TestRSSSource_IDsStableAcrossFetches(t *testing.T) {
	s := NewRSSSource("MarketWatch", "https://example.com/rss", &stubFetcher{body: sampleFeed})

	a, err := s.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	b, err := s.Fetch(context.Background(), "ACME")
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].SourceID, b[i].SourceID)
	}
}

func TestRSSSource_DownloadError(t *testing.T) {
	s := NewRSSSource("CNBC", "https://example.com/rss", &stubFetcher{err: errors.New("dns failure")})

	_, err := s.Fetch(context.Background(), "ACME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rss: download CNBC")
}

func TestRSSSource_PartialFeedKeepsDecodedItems(t *testing.T) {
	body := `<rss><channel><item><title>ACME rallies</title></item><item>< /item></channel></rss>`
	s := NewRSSSource("CNBC", "https://example.com/rss", &stubFetcher{body: body})

	got, err := s.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ACME rallies", got[0].Title)
}

func TestRSSSource_UnparseableFeed(t *testing.T) {
	s := NewRSSSource("CNBC", "https://example.com/rss", &stubFetcher{body: `<rss>< /rss>`})

	_, err := s.Fetch(context.Background(), "ACME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rss: parse CNBC")
}

func TestParseFeedTime(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"Mon, 02 Mar 2026 14:00:00 +0000", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), true},
		{"Mon, 2 Mar 2026 09:00:00 -0500", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), true},
		{"2026-03-02T14:00:00Z", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseFeedTime(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestTickerPattern(t *testing.T) {
	p := tickerPattern("ACME")
	assert.True(t, p.MatchString("ACME rallies"))
	assert.True(t, p.MatchString("shares of acme fell"))
	assert.True(t, p.MatchString("(ACME) guidance"))
	assert.False(t, p.MatchString("ACMEX fund"))
	assert.False(t, p.MatchString("nothing here"))
}
