package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/newswatch/internal/db"
	"github.com/sells-group/newswatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer; the pragmas below are per-connection.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS news_items (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id             TEXT NOT NULL UNIQUE,
	ticker                TEXT NOT NULL,
	source                TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	summary               TEXT NOT NULL DEFAULT '',
	url                   TEXT NOT NULL DEFAULT '',
	published             DATETIME NOT NULL,
	sentiment             TEXT,
	confidence            REAL,
	sentiment_score       REAL,
	is_positive           INTEGER NOT NULL DEFAULT 0,
	is_negative           INTEGER NOT NULL DEFAULT 0,
	reasoning             TEXT,
	key_factors           TEXT,
	market_impact         TEXT,
	action_recommendation TEXT,
	time_horizon          TEXT,
	processed             INTEGER NOT NULL DEFAULT 0,
	processed_at          DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alerts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	news_id         INTEGER NOT NULL UNIQUE REFERENCES news_items(id),
	ticker          TEXT NOT NULL,
	title           TEXT NOT NULL,
	sentiment       TEXT NOT NULL,
	issue_reference TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id          TEXT PRIMARY KEY,
	ticker      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	stages      TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_news_items_ticker ON news_items(ticker);
CREATE INDEX IF NOT EXISTS idx_news_items_published ON news_items(published);
CREATE INDEX IF NOT EXISTS idx_news_items_processed ON news_items(processed);
CREATE INDEX IF NOT EXISTS idx_alerts_ticker ON alerts(ticker);
CREATE INDEX IF NOT EXISTS idx_scan_runs_ticker ON scan_runs(ticker);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started_at ON scan_runs(started_at);
`

var (
	sqliteUpsertNews  = mustUpsertSQL(db.UpsertConfig{Table: "news_items", Columns: newsColumns, ConflictKeys: []string{"source_id"}, Returning: []string{"id"}, ReturnExisting: true}, db.Question)
	sqliteInsertAlert = mustUpsertSQL(db.UpsertConfig{Table: "alerts", Columns: alertColumns, ConflictKeys: []string{"news_id"}}, db.Question)
)

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertNews(ctx context.Context, rec model.NewsRecord) (int64, error) {
	if err := validateNews(rec); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, sqliteUpsertNews, newsArgs(rec, time.Now().UTC())...).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert news %s", rec.SourceID)
	}
	return id, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, newsID int64, v model.Verdict) error {
	factors, err := marshalFactors(v.KeyFactors)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE news_items SET sentiment = ?, confidence = ?, sentiment_score = ?, is_positive = ?, is_negative = ?,
		 reasoning = ?, key_factors = ?, market_impact = ?, action_recommendation = ?, time_horizon = ?,
		 processed = 1, processed_at = ? WHERE id = ?`,
		string(v.Sentiment), v.Confidence, v.SentimentScore, v.IsPositive, v.IsNegative,
		v.Reasoning, factors, v.MarketImpact, v.ActionRecommendation, v.TimeHorizon,
		time.Now().UTC(), newsID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %d", newsID)
	}
	return checkRowsAffected(res, "news item", newsID)
}

func (s *SQLiteStore) ListNews(ctx context.Context, filter model.NewsFilter) ([]model.NewsRecord, error) {
	query := `SELECT ` + newsSelectColumns + ` FROM news_items WHERE 1=1`
	var args []any

	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if filter.NegativeOnly {
		query += ` AND is_negative = 1`
	}
	if filter.PositiveOnly {
		query += ` AND is_positive = 1`
	}
	if filter.Unprocessed {
		query += ` AND processed = 0`
	}
	if !filter.PublishedFrom.IsZero() {
		query += ` AND published >= ?`
		args = append(args, filter.PublishedFrom.UTC())
	}
	query += ` ORDER BY published DESC, id DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list news")
	}
	defer rows.Close()

	var out []model.NewsRecord
	for rows.Next() {
		rec, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list news iterate")
}

func (s *SQLiteStore) AlertExistsFor(ctx context.Context, newsID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM alerts WHERE news_id = ?)`, newsID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: alert exists for %d", newsID)
	}
	return exists, nil
}

func (s *SQLiteStore) StoreAlert(ctx context.Context, alert model.Alert) (int64, error) {
	if alert.NewsStoreID == 0 {
		return 0, eris.New("sqlite: alert has no news id")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, sqliteInsertAlert, alertArgs(alert)...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert alert for news %d", alert.NewsStoreID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return 0, eris.Wrapf(ErrAlertExists, "sqlite: news %d", alert.NewsStoreID)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: last insert id")
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	query := `SELECT id, news_id, ticker, title, sentiment, issue_reference, created_at FROM alerts WHERE 1=1`
	var args []any

	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alerts")
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list alerts iterate")
}

func (s *SQLiteStore) CreateScanRun(ctx context.Context, ticker string) (*model.ScanRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (id, ticker, status, started_at) VALUES (?, ?, ?, ?)`,
		id, ticker, string(model.ScanStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert scan run for %s", ticker)
	}

	return &model.ScanRun{
		ID:        id,
		Ticker:    ticker,
		Status:    model.ScanStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteScanRun(ctx context.Context, runID string, status model.ScanStatus, summary model.ScanSummary, stages []model.StageResult) error {
	summaryJSON, stagesJSON, err := marshalScanResult(summary, stages)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_runs SET status = ?, summary = ?, stages = ?, finished_at = ? WHERE id = ?`,
		string(status), summaryJSON, stagesJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete scan run %s", runID)
	}
	return checkRowsAffected(res, "scan run", runID)
}

func (s *SQLiteStore) ListScanRuns(ctx context.Context, filter model.ScanRunFilter) ([]model.ScanRun, error) {
	query := `SELECT id, ticker, status, summary, stages, started_at, finished_at FROM scan_runs WHERE 1=1`
	var args []any

	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scan runs")
	}
	defer rows.Close()

	var out []model.ScanRun
	for rows.Next() {
		r, err := scanScanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scan runs iterate")
}

func (s *SQLiteStore) CleanOldData(ctx context.Context, days int) (int, error) {
	cutoff, err := retentionCutoff(days)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clean begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM alerts WHERE news_id IN (SELECT id FROM news_items WHERE published < ?)`, cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: clean alerts")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM news_items WHERE published < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clean news")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_runs WHERE started_at < ?`, cutoff); err != nil {
		return 0, eris.Wrap(err, "sqlite: clean scan runs")
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: clean commit")
	}

	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %v", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNews(row scannable) (*model.NewsRecord, error) {
	var (
		r          model.NewsRecord
		sentiment  sql.NullString
		confidence sql.NullFloat64
		score      sql.NullFloat64
		reasoning  sql.NullString
		factors    sql.NullString
		impact     sql.NullString
		action     sql.NullString
		horizon    sql.NullString
	)
	err := row.Scan(&r.StoreID, &r.SourceID, &r.Ticker, &r.Source, &r.Title, &r.Summary, &r.URL, &r.Published,
		&sentiment, &confidence, &score, &r.IsPositive, &r.IsNegative,
		&reasoning, &factors, &impact, &action, &horizon)
	if err != nil {
		return nil, eris.Wrap(err, "scan news")
	}

	r.Sentiment = model.Sentiment(sentiment.String)
	r.Confidence = confidence.Float64
	r.SentimentScore = score.Float64
	r.Reasoning = reasoning.String
	r.MarketImpact = impact.String
	r.ActionRecommendation = action.String
	r.TimeHorizon = horizon.String
	if factors.Valid && factors.String != "" {
		if err := json.Unmarshal([]byte(factors.String), &r.KeyFactors); err != nil {
			return nil, eris.Wrap(err, "unmarshal key factors")
		}
	}
	return &r, nil
}

func scanAlert(row scannable) (*model.Alert, error) {
	var a model.Alert
	var sentiment string
	err := row.Scan(&a.ID, &a.NewsStoreID, &a.Ticker, &a.Title, &sentiment, &a.IssueReference, &a.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "scan alert")
	}
	a.Sentiment = model.Sentiment(sentiment)
	return &a, nil
}

func scanScanRun(row scannable) (*model.ScanRun, error) {
	var r model.ScanRun
	var status string
	var summaryJSON, stagesJSON sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Ticker, &status, &summaryJSON, &stagesJSON, &r.StartedAt, &finished)
	if err != nil {
		return nil, eris.Wrap(err, "scan scan run")
	}
	r.Status = model.ScanStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		r.Summary = &model.ScanSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "unmarshal scan summary")
		}
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &r.Stages); err != nil {
			return nil, eris.Wrap(err, "unmarshal scan stages")
		}
	}
	return &r, nil
}

const newsSelectColumns = `id, source_id, ticker, source, title, summary, url, published,
	sentiment, confidence, sentiment_score, is_positive, is_negative,
	reasoning, key_factors, market_impact, action_recommendation, time_horizon`

var alertColumns = []string{"news_id", "ticker", "title", "sentiment", "issue_reference", "created_at"}

func alertArgs(a model.Alert) []any {
	return []any{a.NewsStoreID, a.Ticker, a.Title, string(a.Sentiment), a.IssueReference, a.CreatedAt.UTC()}
}

func marshalFactors(factors []string) (*string, error) {
	if len(factors) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(factors)
	if err != nil {
		return nil, eris.Wrap(err, "marshal key factors")
	}
	s := string(b)
	return &s, nil
}

func marshalScanResult(summary model.ScanSummary, stages []model.StageResult) (string, string, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal scan summary")
	}
	if stages == nil {
		stages = []model.StageResult{}
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal scan stages")
	}
	return string(summaryJSON), string(stagesJSON), nil
}

func mustUpsertSQL(cfg db.UpsertConfig, ph db.Placeholder) string {
	stmt, err := db.UpsertSQL(cfg, ph)
	if err != nil {
		panic(err)
	}
	return stmt
}
