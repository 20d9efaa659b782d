package source

import (
	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/fetcher"
)

// FromConfig builds the enabled sources in merge order: Yahoo, then each RSS
// feed, then Finviz. Later sources win on source_id collisions.
func FromConfig(cfg config.SourcesConfig, f fetcher.Fetcher) []Source {
	var sources []Source
	if cfg.Yahoo.Enabled {
		sources = append(sources, NewYahooSource(YahooOptions{
			BaseURL:    cfg.Yahoo.BaseURL,
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.Timeout(),
			MaxResults: cfg.Yahoo.MaxResults,
		}))
	}
	if cfg.RSS.Enabled {
		for _, feed := range cfg.RSS.Feeds {
			if feed.URL == "" {
				continue
			}
			sources = append(sources, NewRSSSource(feed.Name, feed.URL, f))
		}
	}
	if cfg.Finviz.Enabled {
		sources = append(sources, NewFinvizSource(cfg.Finviz.BaseURL, f))
	}
	return sources
}
