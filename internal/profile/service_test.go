// internal/profile/service_test.go

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/store"
)

type captureNotifier struct {
	events []string
}

func (c *captureNotifier) Publish(event string, payload interface{}) {
	c.events = append(c.events, event)
}

func newTestService(st store.Store, notifier Notifier, now time.Time) Service {
	clock := func() time.Time { return now }
	return NewService(context.Background(), st, notifier, clock, zap.NewNop())
}

func TestCurrentNilBeforeFirstUpdate(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), nil, time.Now())

	assert.Nil(t, svc.Current(context.Background()))
}

func TestUpdateReplacesWholesale(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := newTestService(store.NewMemoryStore(), nil, now)
	ctx := context.Background()

	svc.Update(ctx, &UpdateProfileRequest{
		Name:                    "Maya",
		PreferredReminderTime:   "07:30",
		PreferredSessionMinutes: 10,
		Interests:               []string{"sleep", "focus"},
	})

	// Second update omits interests; they do not survive
	got := svc.Update(ctx, &UpdateProfileRequest{
		Name:                  "Maya",
		PreferredReminderTime: "21:00",
	})

	assert.Equal(t, "21:00", got.PreferredReminderTime)
	assert.Empty(t, got.Interests)
	assert.Equal(t, now, got.LastActiveAt)
}

func TestCurrentReturnsCopy(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), nil, time.Now())
	ctx := context.Background()

	svc.Update(ctx, &UpdateProfileRequest{Name: "Maya"})

	p := svc.Current(ctx)
	require.NotNil(t, p)
	p.Name = "Changed"

	again := svc.Current(ctx)
	assert.Equal(t, "Maya", again.Name)
}

func TestProfileSurvivesRestart(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()

	svc := newTestService(st, nil, now)
	svc.Update(context.Background(), &UpdateProfileRequest{
		Name:          "Maya",
		CurrentStreak: 4,
	})

	restarted := newTestService(st, nil, now)

	got := restarted.Current(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, "Maya", got.Name)
	assert.Equal(t, 4, got.CurrentStreak)
}

func TestUpdatePublishesChangeEvent(t *testing.T) {
	notifier := &captureNotifier{}
	svc := newTestService(store.NewMemoryStore(), notifier, time.Now())

	svc.Update(context.Background(), &UpdateProfileRequest{Name: "Maya"})

	assert.Equal(t, []string{"profile.updated"}, notifier.events)
}
