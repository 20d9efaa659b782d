package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/sentiment"
)

// --- Classifier Mock ---

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Score(ctx context.Context, rec model.NewsRecord) (sentiment.Score, error) {
	args := m.Called(ctx, rec.SourceID)
	return args.Get(0).(sentiment.Score), args.Error(1)
}

// --- Sink Mock ---

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Create(ctx context.Context, rec model.NewsRecord) (string, error) {
	args := m.Called(ctx, rec.SourceID)
	return args.String(0), args.Error(1)
}

// --- Collector stub ---

type stubCollector struct {
	recs []model.NewsRecord
}

func (s stubCollector) Collect(context.Context, string) []model.NewsRecord {
	return s.recs
}

// --- Recording sink ---

type recordingSink struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingSink) Create(_ context.Context, rec model.NewsRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rec.SourceID)
	return "https://tracker.example/" + rec.SourceID, nil
}

func (s *recordingSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// --- Scripted classifier ---

type scriptedClassifier map[string]sentiment.Score

func (c scriptedClassifier) Score(_ context.Context, rec model.NewsRecord) (sentiment.Score, error) {
	if s, ok := c[rec.Title]; ok {
		return s, nil
	}
	return sentiment.Score{Sentiment: model.SentimentNeutral, Confidence: 0.6}, nil
}

// --- Stage helper ---

type funcStage struct {
	name string
	fn   func(ctx context.Context, sc *ScanContext) (*ScanContext, error)
}

func (f funcStage) Name() string { return f.name }

func (f funcStage) Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error) {
	return f.fn(ctx, sc)
}
