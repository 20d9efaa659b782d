package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

// YahooName is the source name recorded on Yahoo Finance items.
const YahooName = "Yahoo Finance"

type yahooSearchResponse struct {
	News []yahooNews `json:"news"`
}

type yahooNews struct {
	UUID                string `json:"uuid"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	Link                string `json:"link"`
	Publisher           string `json:"publisher"`
	ProviderPublishTime int64  `json:"providerPublishTime"`
}

// YahooSource queries the Yahoo Finance search API for ticker news.
type YahooSource struct {
	client     *resty.Client
	maxResults int
}

// YahooOptions configures a YahooSource.
type YahooOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxResults int
}

// NewYahooSource creates a YahooSource backed by a resty client.
func NewYahooSource(opts YahooOptions) *YahooSource {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return &YahooSource{client: client, maxResults: opts.MaxResults}
}

func (s *YahooSource) Name() string { return YahooName }

// Fetch returns up to maxResults news items for the ticker.
func (s *YahooSource) Fetch(ctx context.Context, ticker string) ([]model.NewsRecord, error) {
	var result yahooSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":                ticker,
			"quotesCount":      "0",
			"newsCount":        strconv.Itoa(s.maxResults),
			"enableFuzzyQuery": "false",
			"quotesQueryId":    "tss_match_phrase_query",
			"enableCb":         "true",
		}).
		SetResult(&result).
		Get("")
	if err != nil {
		return nil, eris.Wrapf(err, "yahoo: search %s", ticker)
	}
	if resp.IsError() {
		return nil, resilience.StatusError("yahoo", resp.StatusCode(), resp.String())
	}

	out := make([]model.NewsRecord, 0, len(result.News))
	for _, n := range result.News {
		title := strings.TrimSpace(n.Title)
		id := ""
		switch {
		case n.UUID != "":
			id = "yahoo-" + n.UUID
		case title != "":
			id = NewID("yahoo", title, n.Link)
		}
		out = append(out, model.NewsRecord{
			SourceID:  id,
			Ticker:    ticker,
			Source:    YahooName,
			Title:     title,
			Summary:   strings.TrimSpace(n.Summary),
			URL:       n.Link,
			Published: time.Unix(n.ProviderPublishTime, 0).UTC(),
		})
	}
	return out, nil
}
