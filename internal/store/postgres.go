package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/db"
	"github.com/sells-group/newswatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS news_items (
	id                    BIGSERIAL PRIMARY KEY,
	source_id             TEXT NOT NULL UNIQUE,
	ticker                TEXT NOT NULL,
	source                TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	summary               TEXT NOT NULL DEFAULT '',
	url                   TEXT NOT NULL DEFAULT '',
	published             TIMESTAMPTZ NOT NULL,
	sentiment             TEXT,
	confidence            DOUBLE PRECISION,
	sentiment_score       DOUBLE PRECISION,
	is_positive           BOOLEAN NOT NULL DEFAULT false,
	is_negative           BOOLEAN NOT NULL DEFAULT false,
	reasoning             TEXT,
	key_factors           TEXT[] NOT NULL DEFAULT '{}',
	market_impact         TEXT,
	action_recommendation TEXT,
	time_horizon          TEXT,
	processed             BOOLEAN NOT NULL DEFAULT false,
	processed_at          TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
	id              BIGSERIAL PRIMARY KEY,
	news_id         BIGINT NOT NULL UNIQUE REFERENCES news_items(id),
	ticker          TEXT NOT NULL,
	title           TEXT NOT NULL,
	sentiment       TEXT NOT NULL,
	issue_reference TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ticker      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	stages      JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_news_items_ticker_published ON news_items(ticker, published DESC);
CREATE INDEX IF NOT EXISTS idx_news_items_unprocessed ON news_items(processed) WHERE NOT processed;
CREATE INDEX IF NOT EXISTS idx_alerts_ticker ON alerts(ticker);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started_at ON scan_runs(started_at DESC);
`

var (
	postgresUpsertNews  = mustUpsertSQL(db.UpsertConfig{Table: "news_items", Columns: newsColumns, ConflictKeys: []string{"source_id"}, Returning: []string{"id"}, ReturnExisting: true}, db.Dollar)
	postgresInsertAlert = mustUpsertSQL(db.UpsertConfig{Table: "alerts", Columns: alertColumns, ConflictKeys: []string{"news_id"}, Returning: []string{"id"}}, db.Dollar)
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertNews(ctx context.Context, rec model.NewsRecord) (int64, error) {
	if err := validateNews(rec); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.QueryRow(ctx, postgresUpsertNews, newsArgs(rec, time.Now().UTC())...).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert news %s", rec.SourceID)
	}
	return id, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, newsID int64, v model.Verdict) error {
	factors := v.KeyFactors
	if factors == nil {
		factors = []string{}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE news_items SET sentiment = $1, confidence = $2, sentiment_score = $3, is_positive = $4, is_negative = $5,
		 reasoning = $6, key_factors = $7, market_impact = $8, action_recommendation = $9, time_horizon = $10,
		 processed = true, processed_at = $11 WHERE id = $12`,
		string(v.Sentiment), v.Confidence, v.SentimentScore, v.IsPositive, v.IsNegative,
		v.Reasoning, factors, v.MarketImpact, v.ActionRecommendation, v.TimeHorizon,
		time.Now().UTC(), newsID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %d", newsID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("news item not found: %d", newsID)
	}
	return nil
}

func (s *PostgresStore) ListNews(ctx context.Context, filter model.NewsFilter) ([]model.NewsRecord, error) {
	query := `SELECT id, source_id, ticker, source, title, summary, url, published,
		COALESCE(sentiment, ''), COALESCE(confidence, 0), COALESCE(sentiment_score, 0), is_positive, is_negative,
		COALESCE(reasoning, ''), key_factors, COALESCE(market_impact, ''), COALESCE(action_recommendation, ''), COALESCE(time_horizon, '')
		FROM news_items WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Ticker != "" {
		query += fmt.Sprintf(` AND ticker = $%d`, argIdx)
		args = append(args, filter.Ticker)
		argIdx++
	}
	if filter.NegativeOnly {
		query += ` AND is_negative`
	}
	if filter.PositiveOnly {
		query += ` AND is_positive`
	}
	if filter.Unprocessed {
		query += ` AND NOT processed`
	}
	if !filter.PublishedFrom.IsZero() {
		query += fmt.Sprintf(` AND published >= $%d`, argIdx)
		args = append(args, filter.PublishedFrom.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY published DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list news")
	}
	defer rows.Close()

	var out []model.NewsRecord
	for rows.Next() {
		var r model.NewsRecord
		var sentiment string
		if err := rows.Scan(&r.StoreID, &r.SourceID, &r.Ticker, &r.Source, &r.Title, &r.Summary, &r.URL, &r.Published,
			&sentiment, &r.Confidence, &r.SentimentScore, &r.IsPositive, &r.IsNegative,
			&r.Reasoning, &r.KeyFactors, &r.MarketImpact, &r.ActionRecommendation, &r.TimeHorizon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan news")
		}
		r.Sentiment = model.Sentiment(sentiment)
		if len(r.KeyFactors) == 0 {
			r.KeyFactors = nil
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list news iterate")
}

func (s *PostgresStore) AlertExistsFor(ctx context.Context, newsID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM alerts WHERE news_id = $1)`, newsID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: alert exists for %d", newsID)
	}
	return exists, nil
}

func (s *PostgresStore) StoreAlert(ctx context.Context, alert model.Alert) (int64, error) {
	if alert.NewsStoreID == 0 {
		return 0, eris.New("postgres: alert has no news id")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, postgresInsertAlert, alertArgs(alert)...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(ErrAlertExists, "postgres: news %d", alert.NewsStoreID)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert alert for news %d", alert.NewsStoreID)
	}
	return id, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	query := `SELECT id, news_id, ticker, title, sentiment, issue_reference, created_at FROM alerts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Ticker != "" {
		query += fmt.Sprintf(` AND ticker = $%d`, argIdx)
		args = append(args, filter.Ticker)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alerts")
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var sentiment string
		if err := rows.Scan(&a.ID, &a.NewsStoreID, &a.Ticker, &a.Title, &sentiment, &a.IssueReference, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		a.Sentiment = model.Sentiment(sentiment)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list alerts iterate")
}

func (s *PostgresStore) CreateScanRun(ctx context.Context, ticker string) (*model.ScanRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scan_runs (id, ticker, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, ticker, string(model.ScanStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert scan run for %s", ticker)
	}

	return &model.ScanRun{
		ID:        id,
		Ticker:    ticker,
		Status:    model.ScanStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteScanRun(ctx context.Context, runID string, status model.ScanStatus, summary model.ScanSummary, stages []model.StageResult) error {
	summaryJSON, stagesJSON, err := marshalScanResult(summary, stages)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scan_runs SET status = $1, summary = $2, stages = $3, finished_at = $4 WHERE id = $5`,
		string(status), summaryJSON, stagesJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete scan run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListScanRuns(ctx context.Context, filter model.ScanRunFilter) ([]model.ScanRun, error) {
	query := `SELECT id, ticker, status, summary, stages, started_at, finished_at FROM scan_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Ticker != "" {
		query += fmt.Sprintf(` AND ticker = $%d`, argIdx)
		args = append(args, filter.Ticker)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.StartedAfter.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.StartedAfter.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scan runs")
	}
	defer rows.Close()

	var out []model.ScanRun
	for rows.Next() {
		var r model.ScanRun
		var status string
		var summaryJSON, stagesJSON []byte
		if err := rows.Scan(&r.ID, &r.Ticker, &status, &summaryJSON, &stagesJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scan run")
		}
		r.Status = model.ScanStatus(status)
		if len(summaryJSON) > 0 {
			r.Summary = &model.ScanSummary{}
			if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal scan summary")
			}
		}
		if len(stagesJSON) > 0 {
			if err := json.Unmarshal(stagesJSON, &r.Stages); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal scan stages")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scan runs iterate")
}

func (s *PostgresStore) CleanOldData(ctx context.Context, days int) (int, error) {
	cutoff, err := retentionCutoff(days)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clean begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM alerts WHERE news_id IN (SELECT id FROM news_items WHERE published < $1)`, cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: clean alerts")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM news_items WHERE published < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clean news")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM scan_runs WHERE started_at < $1`, cutoff); err != nil {
		return 0, eris.Wrap(err, "postgres: clean scan runs")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: clean commit")
	}
	return int(tag.RowsAffected()), nil
}
