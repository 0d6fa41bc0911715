// internal/analytics/service_test.go

package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/store"
)

func newTestService(now time.Time) (Service, *store.MemoryStore) {
	st := store.NewMemoryStore()
	svc := NewService(st, nil, func() time.Time { return now }, zap.NewNop())
	svc.LoadState(context.Background())
	return svc, st
}

func TestDeliveryRecordUpsert(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "welcome", "welcome_day1", true)
	svc.TrackDelivered(ctx, "n1", 2.5)

	export := svc.ExportData(ctx)

	// One record per notification, advanced in place
	require.Len(t, export.DeliveryRecords, 1)
	rec := export.DeliveryRecords[0]
	assert.Equal(t, "n1", rec.NotificationID)
	assert.Equal(t, DeliveryStatusDelivered, rec.Status)
	assert.Equal(t, 1, rec.AttemptCount)
	require.NotNil(t, rec.DeliveryLatency)
	assert.InDelta(t, 2.5, *rec.DeliveryLatency, 1e-9)
	require.NotNil(t, rec.DeliveredAt)
}

func TestDeliveredWithoutSentRecord(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackDelivered(ctx, "ghost", 1.0)

	export := svc.ExportData(ctx)

	// The event is logged, the record update is a silent no-op
	assert.Len(t, export.RecentEvents, 1)
	assert.Empty(t, export.DeliveryRecords)
}

func TestFailedIncrementsAttempts(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "system", "system_update", false)
	svc.TrackFailed(ctx, "n1", "device token expired")

	export := svc.ExportData(ctx)

	require.Len(t, export.DeliveryRecords, 1)
	rec := export.DeliveryRecords[0]
	assert.Equal(t, DeliveryStatusFailed, rec.Status)
	assert.Equal(t, 2, rec.AttemptCount)
	assert.Equal(t, "device token expired", rec.LastError)
}

func TestEventLogTrimming(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	for i := 0; i < 1005; i++ {
		svc.TrackSent(ctx, fmt.Sprintf("n%04d", i), "reminder", "daily_reminder", false)
	}

	events := svc.RecentEvents(ctx, 0)

	// The oldest five events fell off the front
	require.Len(t, events, 1000)
	assert.Equal(t, "n0005", events[0].NotificationID)
	assert.Equal(t, "n1004", events[len(events)-1].NotificationID)

	// Delivery records are a projection, not a log; nothing trims them
	export := svc.ExportData(ctx)
	assert.Len(t, export.DeliveryRecords, 1005)
	assert.Len(t, export.RecentEvents, 100)
}

func TestLifecycleEventsInheritCategory(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "welcome", "welcome_day1", false)
	svc.TrackDelivered(ctx, "n1", 1.5)
	svc.TrackOpened(ctx, "n1", 30)

	report := svc.Recompute(ctx)

	welcome, ok := report.Engagement.ByCategory["welcome"]
	require.True(t, ok, "expected a welcome bucket, got %v", report.Engagement.ByCategory)
	assert.Equal(t, 1, welcome.Sent)
	assert.Equal(t, 1, welcome.Delivered)
	assert.Equal(t, 1, welcome.Opened)
	assert.NotContains(t, report.Engagement.ByCategory, "unknown")
}

func TestRecomputeEndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "welcome", "welcome_day1", true)
	svc.TrackDelivered(ctx, "n1", 2.0)
	svc.TrackOpened(ctx, "n1", 4.0)
	svc.TrackSent(ctx, "n2", "reminder", "daily_reminder", false)
	svc.TrackFailed(ctx, "n2", "network unreachable")

	report := svc.Recompute(ctx)

	assert.Equal(t, 2, report.Delivery.TotalSent)
	assert.Equal(t, 1, report.Delivery.TotalDelivered)
	assert.Equal(t, 1, report.Delivery.TotalFailed)
	assert.Equal(t, 0, report.Delivery.TotalPending)
	assert.InDelta(t, 0.5, report.Delivery.DeliveryRate, 1e-9)
	assert.InDelta(t, 1.0, report.Engagement.OpenRate, 1e-9)

	assert.Equal(t, 2, report.Summary.TotalSent)
	assert.Equal(t, 1, report.Summary.TotalOpened)
	assert.Equal(t, allTimeRange, report.Summary.TimeRange)
	assert.True(t, report.Summary.ComputedAt.Equal(now))

	var types []string
	for _, insight := range report.Insights {
		types = append(types, insight.Type)
	}
	assert.Contains(t, types, InsightLowDeliveryRate)
	assert.Contains(t, types, InsightBestCategory)
}

func TestRecomputeOnEmptyState(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)

	report := svc.Recompute(context.Background())

	assert.Zero(t, report.Delivery.DeliveryRate)
	assert.Zero(t, report.Delivery.FailureRate)
	assert.Zero(t, report.Engagement.OpenRate)
	assert.Zero(t, report.Engagement.DismissalRate)
	assert.Zero(t, report.Engagement.ActionRate)
	assert.Empty(t, report.Insights)
	assert.Empty(t, report.Engagement.ByCategory)
}

func TestLatestReportComputesOnFirstUse(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "welcome", "welcome_day1", false)

	report := svc.LatestReport(ctx)
	assert.Equal(t, 1, report.Delivery.TotalSent)
}

func TestStateSurvivesRestart(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, st := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "welcome", "welcome_day1", false)
	svc.TrackDelivered(ctx, "n1", 1.0)
	svc.TrackOpened(ctx, "n1", 5.0)
	svc.Recompute(ctx)

	restarted := NewService(st, nil, func() time.Time { return now }, zap.NewNop())
	restarted.LoadState(ctx)

	report := restarted.LatestReport(ctx)
	assert.Equal(t, 1, report.Delivery.TotalSent)
	assert.Equal(t, 1, report.Delivery.TotalDelivered)

	// Tag enrichment is rebuilt from the restored event log
	restarted.TrackDismissed(ctx, "n1", 8.0)
	events := restarted.RecentEvents(ctx, 1)
	require.Len(t, events, 1)
	assert.Equal(t, EventDismissed, events[0].Type)
	assert.Equal(t, "welcome", events[0].Category)
}

func TestRecentEventsLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		svc.TrackSent(ctx, fmt.Sprintf("n%d", i), "reminder", "daily_reminder", false)
	}

	events := svc.RecentEvents(ctx, 3)

	require.Len(t, events, 3)
	assert.Equal(t, "n7", events[0].NotificationID)
	assert.Equal(t, "n9", events[2].NotificationID)
}

func TestExportSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	svc.TrackSent(ctx, "n1", "welcome", "welcome_day1", false)
	svc.TrackDelivered(ctx, "n1", 1.0)
	svc.TrackOpened(ctx, "n1", 2.0)

	export := svc.ExportData(ctx)

	assert.Len(t, export.RecentEvents, 3)
	assert.Len(t, export.DeliveryRecords, 1)
	assert.Len(t, export.EngagementRecords, 1)
	assert.Equal(t, 1, export.Report.Delivery.TotalDelivered)
	assert.True(t, export.ExportedAt.Equal(now))
}
