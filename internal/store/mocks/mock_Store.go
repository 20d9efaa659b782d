// Package mocks provides test doubles for the store.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/newswatch/internal/model"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// UpsertNews provides a mock function with given fields: ctx, rec
func (_m *MockStore) UpsertNews(ctx context.Context, rec model.NewsRecord) (int64, error) {
	ret := _m.Called(ctx, rec)

	if len(ret) == 0 {
		panic("no return value specified for UpsertNews")
	}

	if rf, ok := ret.Get(0).(func(context.Context, model.NewsRecord) (int64, error)); ok {
		return rf(ctx, rec)
	}
	return ret.Get(0).(int64), ret.Error(1)
}

// MarkProcessed provides a mock function with given fields: ctx, newsID, v
func (_m *MockStore) MarkProcessed(ctx context.Context, newsID int64, v model.Verdict) error {
	ret := _m.Called(ctx, newsID, v)

	if len(ret) == 0 {
		panic("no return value specified for MarkProcessed")
	}
	return ret.Error(0)
}

// ListNews provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListNews(ctx context.Context, filter model.NewsFilter) ([]model.NewsRecord, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListNews")
	}

	var r0 []model.NewsRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.NewsRecord)
	}
	return r0, ret.Error(1)
}

// AlertExistsFor provides a mock function with given fields: ctx, newsID
func (_m *MockStore) AlertExistsFor(ctx context.Context, newsID int64) (bool, error) {
	ret := _m.Called(ctx, newsID)

	if len(ret) == 0 {
		panic("no return value specified for AlertExistsFor")
	}
	return ret.Bool(0), ret.Error(1)
}

// StoreAlert provides a mock function with given fields: ctx, alert
func (_m *MockStore) StoreAlert(ctx context.Context, alert model.Alert) (int64, error) {
	ret := _m.Called(ctx, alert)

	if len(ret) == 0 {
		panic("no return value specified for StoreAlert")
	}
	return ret.Get(0).(int64), ret.Error(1)
}

// ListAlerts provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListAlerts")
	}

	var r0 []model.Alert
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Alert)
	}
	return r0, ret.Error(1)
}

// CreateScanRun provides a mock function with given fields: ctx, ticker
func (_m *MockStore) CreateScanRun(ctx context.Context, ticker string) (*model.ScanRun, error) {
	ret := _m.Called(ctx, ticker)

	if len(ret) == 0 {
		panic("no return value specified for CreateScanRun")
	}

	var r0 *model.ScanRun
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ScanRun)
	}
	return r0, ret.Error(1)
}

// CompleteScanRun provides a mock function with given fields: ctx, runID, status, summary, stages
func (_m *MockStore) CompleteScanRun(ctx context.Context, runID string, status model.ScanStatus, summary model.ScanSummary, stages []model.StageResult) error {
	ret := _m.Called(ctx, runID, status, summary, stages)

	if len(ret) == 0 {
		panic("no return value specified for CompleteScanRun")
	}
	return ret.Error(0)
}

// ListScanRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListScanRuns(ctx context.Context, filter model.ScanRunFilter) ([]model.ScanRun, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListScanRuns")
	}

	var r0 []model.ScanRun
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.ScanRun)
	}
	return r0, ret.Error(1)
}

// CleanOldData provides a mock function with given fields: ctx, days
func (_m *MockStore) CleanOldData(ctx context.Context, days int) (int, error) {
	ret := _m.Called(ctx, days)

	if len(ret) == 0 {
		panic("no return value specified for CleanOldData")
	}
	return ret.Int(0), ret.Error(1)
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}
	return ret.Error(0)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
