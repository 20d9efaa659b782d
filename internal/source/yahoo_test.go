package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/resilience"
)

func TestYahooSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ACME", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("newsCount"))
		assert.Equal(t, "newswatch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"news":[
			{"uuid":"u-1","title":"ACME signs deal","summary":"big deal","link":"https://example.com/1","providerPublishTime":1772460000},
			{"title":"ACME no uuid","link":"https://example.com/2","providerPublishTime":1772456400},
			{"summary":"untitled"}
		]}`))
	}))
	defer srv.Close()

	s := NewYahooSource(YahooOptions{BaseURL: srv.URL, UserAgent: "newswatch-test", MaxResults: 3, Timeout: 5 * time.Second})
	got, err := s.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "yahoo-u-1", got[0].SourceID)
	assert.Equal(t, "ACME signs deal", got[0].Title)
	assert.Equal(t, "big deal", got[0].Summary)
	assert.Equal(t, "Yahoo Finance", got[0].Source)
	assert.Equal(t, time.Unix(1772460000, 0).UTC(), got[0].Published)

	assert.Equal(t, NewID("yahoo", "ACME no uuid", "https://example.com/2"), got[1].SourceID)

	// No uuid and no title: the aggregator drops it.
	assert.Empty(t, got[2].SourceID)
}

func TestYahooSource_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewYahooSource(YahooOptions{BaseURL: srv.URL})
	_, err := s.Fetch(context.Background(), "ACME")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFromConfig(t *testing.T) {
	cfg := config.SourcesConfig{
		TimeoutSecs: 5,
		RSS: config.RSSConfig{Enabled: true, Feeds: []config.FeedRef{
			{Name: "CNBC", URL: "https://example.com/cnbc"},
			{Name: "Empty"},
		}},
		Finviz: config.FinvizConfig{Enabled: true, BaseURL: "https://finviz.example/quote.ashx"},
		Yahoo:  config.YahooConfig{Enabled: true, BaseURL: "https://yahoo.example"},
	}

	sources := FromConfig(cfg, &stubFetcher{})
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"Yahoo Finance", "CNBC", "Finviz"}, names)

	cfg.Yahoo.Enabled = false
	cfg.RSS.Enabled = false
	assert.Len(t, FromConfig(cfg, &stubFetcher{}), 1)
}
