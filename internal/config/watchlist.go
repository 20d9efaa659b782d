package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/newswatch/internal/model"
)

type watchlistFile struct {
	Watchlist []watchlistEntry `yaml:"watchlist"`
}

// watchlistEntry keeps threshold as a pointer so an explicit 0 is told
// apart from a missing key.
type watchlistEntry struct {
	Ticker    string   `yaml:"ticker"`
	Threshold *float64 `yaml:"threshold"`
}

// LoadWatchlist reads the {watchlist: [{ticker, threshold}]} document at path.
// JSON is valid YAML, so both formats are accepted. Tickers are upper-cased,
// blank and repeated tickers are dropped, and a missing threshold becomes
// defaultThreshold. An explicit 0 is kept.
func LoadWatchlist(path string, defaultThreshold float64) ([]model.WatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read watchlist %s", path)
	}

	var f watchlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse watchlist %s", path)
	}

	seen := make(map[string]bool, len(f.Watchlist))
	items := make([]model.WatchItem, 0, len(f.Watchlist))
	for _, e := range f.Watchlist {
		w := model.WatchItem{
			Ticker:    strings.ToUpper(strings.TrimSpace(e.Ticker)),
			Threshold: defaultThreshold,
		}
		if w.Ticker == "" || seen[w.Ticker] {
			continue
		}
		seen[w.Ticker] = true
		if e.Threshold != nil {
			w.Threshold = *e.Threshold
		}
		if w.Threshold < 0 || w.Threshold > 1 {
			return nil, eris.Errorf("config: watchlist threshold for %s must be within [0, 1]", w.Ticker)
		}
		items = append(items, w)
	}
	if len(items) == 0 {
		return nil, eris.Errorf("config: watchlist %s is empty", path)
	}
	return items, nil
}
