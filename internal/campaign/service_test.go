// internal/campaign/service_test.go

package campaign

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/delivery"
	"github.com/calmoraapp/calmora-backend/internal/profile"
	"github.com/calmoraapp/calmora-backend/internal/store"
)

type stubProfiles struct {
	p *profile.Profile
}

func (s stubProfiles) Current(ctx context.Context) *profile.Profile {
	return s.p
}

type captureSink struct {
	sent []string
}

func (c *captureSink) TrackSent(ctx context.Context, notificationID, category, templateType string, isPersonalized bool) {
	c.sent = append(c.sent, notificationID)
}

type fixture struct {
	svc   Service
	store *store.MemoryStore
	mock  *delivery.MockScheduler
	sink  *captureSink
	now   time.Time
}

func newFixture(t *testing.T, now time.Time, prof *profile.Profile) *fixture {
	t.Helper()

	st := store.NewMemoryStore()
	mock := delivery.NewMockScheduler()
	sink := &captureSink{}
	clock := func() time.Time { return now }

	svc := NewService(
		st,
		mock,
		stubProfiles{p: prof},
		NewRenderer(rand.New(rand.NewSource(1))),
		NewOptimizer(clock, time.UTC),
		sink,
		nil,
		clock,
		zap.NewNop(),
	)
	svc.LoadState(context.Background())

	return &fixture{svc: svc, store: st, mock: mock, sink: sink, now: now}
}

func TestLoadStateSeedsDefaultCatalog(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)

	templates := f.svc.ListTemplates(context.Background())
	assert.Len(t, templates, len(defaultTemplates))

	_, ok := f.svc.GetTemplate(context.Background(), "welcome_day1")
	assert.True(t, ok)

	onboarding := f.svc.SearchTemplates(context.Background(), "onboarding")
	assert.Len(t, onboarding, 2)
}

func TestCreateCampaignRejectsInvertedDates(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Backwards",
		StartDate: now.Add(48 * time.Hour),
		EndDate:   now,
		Items:     []ScheduleItem{{TemplateID: "welcome_day1"}},
	}

	assert.False(t, f.svc.CreateCampaign(ctx, c))
	assert.Empty(t, f.svc.ListCampaigns(ctx))

	// Nothing was persisted
	_, err := f.store.Load(ctx, campaignsKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateCampaignRejectsUnknownTemplate(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Ghost template",
		StartDate: now,
		EndDate:   now.Add(24 * time.Hour),
		Items:     []ScheduleItem{{TemplateID: "no_such_template"}},
	}

	assert.False(t, f.svc.CreateCampaign(ctx, c))
	assert.Empty(t, f.svc.ListCampaigns(ctx))
	assert.Equal(t, 0, f.mock.PendingCount())
}

func TestCreateCampaignSchedulesFutureItem(t *testing.T) {
	// Campaign created at its own start instant, 08:00
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Launch",
		StartDate: now,
		EndDate:   now.Add(24 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "welcome_day1", OffsetDays: 0, PreferredTime: "10:00"},
		},
	}

	require.True(t, f.svc.CreateCampaign(ctx, c))

	assert.Equal(t, StatusActive, c.Status)
	require.Len(t, c.ScheduledNotificationIDs, 1)
	assert.Equal(t, c.ScheduledNotificationIDs, f.sink.sent)

	pending, err := f.mock.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	want := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	assert.True(t, pending[0].ScheduledAt.Equal(want),
		"scheduled at %v, want %v", pending[0].ScheduledAt, want)
}

func TestCreateCampaignSkipsPastItemButStaysActive(t *testing.T) {
	// Created at 11:00; the preferred 10:00 slot is already gone
	now := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Late start",
		StartDate: now,
		EndDate:   now.Add(24 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "welcome_day1", OffsetDays: 0, PreferredTime: "10:00"},
		},
	}

	require.True(t, f.svc.CreateCampaign(ctx, c))

	assert.Equal(t, StatusActive, c.Status)
	assert.Empty(t, c.ScheduledNotificationIDs)
	assert.Equal(t, 0, f.mock.PendingCount())
}

func TestCreateCampaignMalformedPreferredTimeIgnored(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Sloppy time",
		StartDate: now.Add(1 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "daily_reminder", OffsetDays: 0, PreferredTime: "around ten"},
		},
	}

	require.True(t, f.svc.CreateCampaign(ctx, c))
	require.Len(t, c.ScheduledNotificationIDs, 1)

	// Falls back to the offset-only instant: the campaign start
	pending, err := f.mock.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].ScheduledAt.Equal(now.Add(1*time.Hour)))
}

func TestCreateCampaignPartialAcceptance(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	f.mock.RejectCategory = "welcome"
	ctx := context.Background()

	c := &Campaign{
		Name:      "Mixed luck",
		StartDate: now,
		EndDate:   now.Add(48 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "welcome_day1", OffsetDays: 0, PreferredTime: "10:00"},
			{TemplateID: "daily_reminder", OffsetDays: 1, PreferredTime: "09:00"},
		},
	}

	require.True(t, f.svc.CreateCampaign(ctx, c))

	// The rejected item is dropped silently; the campaign is still active
	assert.Equal(t, StatusActive, c.Status)
	assert.Len(t, c.ScheduledNotificationIDs, 1)
	assert.Equal(t, 1, f.mock.PendingCount())
	assert.Len(t, f.sink.sent, 1)
}

func TestCancelCampaign(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Short lived",
		StartDate: now,
		EndDate:   now.Add(72 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "daily_reminder", OffsetDays: 1, PreferredTime: "09:00"},
			{TemplateID: "daily_reminder", OffsetDays: 2, PreferredTime: "09:00"},
		},
	}
	require.True(t, f.svc.CreateCampaign(ctx, c))
	require.Len(t, c.ScheduledNotificationIDs, 2)

	assert.True(t, f.svc.CancelCampaign(ctx, c.ID))

	// Exactly one cancel call per recorded notification
	assert.ElementsMatch(t, c.ScheduledNotificationIDs, f.mock.Cancelled())
	assert.Equal(t, 0, f.mock.PendingCount())

	got, ok := f.svc.GetCampaign(ctx, c.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCancelUnknownCampaignIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)

	assert.False(t, f.svc.CancelCampaign(context.Background(), "missing"))
	assert.Empty(t, f.mock.Cancelled())
}

func TestPauseAndResumeCampaign(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Stop and go",
		StartDate: now,
		EndDate:   now.Add(48 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "daily_reminder", OffsetDays: 1, PreferredTime: "09:00"},
		},
	}
	require.True(t, f.svc.CreateCampaign(ctx, c))
	require.Equal(t, 1, f.mock.PendingCount())

	require.True(t, f.svc.PauseCampaign(ctx, c.ID))

	paused, ok := f.svc.GetCampaign(ctx, c.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPaused, paused.Status)
	assert.Empty(t, paused.ScheduledNotificationIDs)
	assert.Equal(t, 0, f.mock.PendingCount())

	// Pausing twice is refused
	assert.False(t, f.svc.PauseCampaign(ctx, c.ID))

	require.True(t, f.svc.ResumeCampaign(ctx, c.ID))

	resumed, ok := f.svc.GetCampaign(ctx, c.ID)
	require.True(t, ok)
	assert.Equal(t, StatusActive, resumed.Status)
	assert.Len(t, resumed.ScheduledNotificationIDs, 1)
	assert.Equal(t, 1, f.mock.PendingCount())
}

func TestCompleteExpiredCampaigns(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	expired := &Campaign{
		Name:      "Old news",
		StartDate: now.Add(-72 * time.Hour),
		EndDate:   now.Add(-24 * time.Hour),
		Items:     []ScheduleItem{{TemplateID: "welcome_day1", OffsetDays: 0}},
	}
	current := &Campaign{
		Name:      "Still running",
		StartDate: now,
		EndDate:   now.Add(48 * time.Hour),
		Items:     []ScheduleItem{{TemplateID: "daily_reminder", OffsetDays: 1, PreferredTime: "09:00"}},
	}
	require.True(t, f.svc.CreateCampaign(ctx, expired))
	require.True(t, f.svc.CreateCampaign(ctx, current))

	assert.Equal(t, 1, f.svc.CompleteExpired(ctx))

	got, _ := f.svc.GetCampaign(ctx, expired.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	got, _ = f.svc.GetCampaign(ctx, current.ID)
	assert.Equal(t, StatusActive, got.Status)

	// Second sweep finds nothing new
	assert.Equal(t, 0, f.svc.CompleteExpired(ctx))
}

func TestCampaignsPersistAcrossRestart(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)
	ctx := context.Background()

	c := &Campaign{
		Name:      "Durable",
		StartDate: now,
		EndDate:   now.Add(24 * time.Hour),
		Items:     []ScheduleItem{{TemplateID: "welcome_day1", OffsetDays: 0, PreferredTime: "10:00"}},
	}
	require.True(t, f.svc.CreateCampaign(ctx, c))

	// Fresh service over the same store sees the persisted campaign
	clock := func() time.Time { return now }
	restarted := NewService(
		f.store,
		delivery.NewMockScheduler(),
		stubProfiles{},
		NewRenderer(rand.New(rand.NewSource(1))),
		NewOptimizer(clock, time.UTC),
		nil,
		nil,
		clock,
		zap.NewNop(),
	)
	restarted.LoadState(ctx)

	got, ok := restarted.GetCampaign(ctx, c.ID)
	require.True(t, ok)
	assert.Equal(t, "Durable", got.Name)
	assert.Equal(t, StatusActive, got.Status)
	assert.Len(t, got.ScheduledNotificationIDs, 1)
}

func TestGeneratePersonalizedNotification(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	prof := &profile.Profile{Name: "Maya", PreferredReminderTime: "07:30", PreferredSessionMinutes: 10}
	f := newFixture(t, now, prof)
	ctx := context.Background()

	n := f.svc.GeneratePersonalizedNotification(ctx, "welcome_day1", nil)

	require.NotNil(t, n)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, CategoryWelcome, n.Category)
	assert.Contains(t, n.Title, "Maya")
	assert.True(t, n.DeliverAt.After(now))

	// Campaign state is untouched
	assert.Empty(t, f.svc.ListCampaigns(ctx))
	assert.Equal(t, 0, f.mock.PendingCount())
}

func TestGeneratePersonalizedNotificationUnknownTemplate(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)

	assert.Nil(t, f.svc.GeneratePersonalizedNotification(context.Background(), "missing", nil))
}

func TestCreateWelcomeCampaign(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now, nil)

	c, ok := f.svc.CreateWelcomeCampaign(context.Background())

	require.True(t, ok)
	assert.Equal(t, StatusActive, c.Status)
	assert.Len(t, c.Items, 3)
	// Created before 10:00, so even the day-0 touch point is scheduled
	assert.Len(t, c.ScheduledNotificationIDs, 3)
}

func TestCreateDailyReminderCampaignUsesProfileTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	prof := &profile.Profile{PreferredReminderTime: "07:30"}
	f := newFixture(t, now, prof)

	c, ok := f.svc.CreateDailyReminderCampaign(context.Background(), 3)

	require.True(t, ok)
	require.Len(t, c.Items, 3)
	for _, item := range c.Items {
		assert.Equal(t, "07:30", item.PreferredTime)
	}
	assert.Len(t, c.ScheduledNotificationIDs, 3)

	pending, err := f.mock.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}
