package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/fetcher"
	"github.com/sells-group/newswatch/internal/model"
)

// FinvizName is the source name recorded on Finviz items.
const FinvizName = "Finviz"

// FinvizSource scrapes the news table of a Finviz quote page.
type FinvizSource struct {
	baseURL string
	fetcher fetcher.Fetcher
	loc     *time.Location
	now     func() time.Time
}

// NewFinvizSource creates a FinvizSource. baseURL is the quote page, e.g.
// https://finviz.com/quote.ashx.
func NewFinvizSource(baseURL string, f fetcher.Fetcher) *FinvizSource {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &FinvizSource{baseURL: baseURL, fetcher: f, loc: loc, now: time.Now}
}

func (s *FinvizSource) Name() string { return FinvizName }

// Fetch downloads the quote page and parses its news rows. A page without a
// news table yields no records.
func (s *FinvizSource) Fetch(ctx context.Context, ticker string) ([]model.NewsRecord, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "finviz: parse base url %s", s.baseURL)
	}
	q := u.Query()
	q.Set("t", ticker)
	u.RawQuery = q.Encode()

	body, err := s.fetcher.Download(ctx, u.String())
	if err != nil {
		return nil, eris.Wrapf(err, "finviz: download %s", ticker)
	}
	defer func() { _ = body.Close() }()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrap(err, "finviz: parse html")
	}

	table := doc.Find("table.fullview-news-outer").First()
	if table.Length() == 0 {
		zap.L().Warn("finviz: no news table", zap.String("ticker", ticker))
		return nil, nil
	}

	return s.parseRows(table, ticker), nil
}

// parseRows reads each <tr>. Finviz prints the date only on the first row of
// each day; later rows carry just a time and inherit that date.
func (s *FinvizSource) parseRows(table *goquery.Selection, ticker string) []model.NewsRecord {
	var (
		out     []model.NewsRecord
		lastDay time.Time
	)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		dateCell := row.Find("td[align=right]").First()
		link := row.Find("td[align=left] a").First()
		if dateCell.Length() == 0 || link.Length() == 0 {
			return
		}

		published, day := s.parseStamp(strings.TrimSpace(dateCell.Text()), lastDay)
		lastDay = day

		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if title == "" {
			return
		}

		out = append(out, model.NewsRecord{
			SourceID:  NewID("finviz", title, href),
			Ticker:    ticker,
			Source:    FinvizName,
			Title:     title,
			Summary:   title,
			URL:       href,
			Published: published,
		})
	})
	return out
}

// parseStamp parses "Jan-02-06 03:04PM", "Today 03:04PM" or "03:04PM". It
// returns the timestamp and the calendar day it belongs to. Unparseable
// stamps fall back to now.
func (s *FinvizSource) parseStamp(raw string, lastDay time.Time) (time.Time, time.Time) {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	datePart, clockPart := "", raw
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		datePart, clockPart = raw[:i], strings.TrimSpace(raw[i+1:])
	}

	day := lastDay
	switch {
	case strings.EqualFold(datePart, "Today"):
		day = today
	case datePart != "":
		d, err := time.ParseInLocation("Jan-02-06", datePart, s.loc)
		if err != nil {
			return now.UTC(), lastDay
		}
		day = d
	case strings.Contains(raw, "-"):
		// Date with no clock.
		d, err := time.ParseInLocation("Jan-02-06", raw, s.loc)
		if err != nil {
			return now.UTC(), lastDay
		}
		return d.UTC(), d
	}
	if day.IsZero() {
		day = today
	}

	clock, err := time.Parse("03:04PM", strings.ToUpper(clockPart))
	if err != nil {
		return day.UTC(), day
	}
	ts := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, s.loc)
	return ts.UTC(), day
}
