// internal/campaign/timing_test.go

package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calmoraapp/calmora-backend/internal/profile"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestOptimalTimeBaseHours(t *testing.T) {
	// Half past midnight: every category's slot is still ahead today
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	o := NewOptimizer(fixedClock(now), time.UTC)

	tests := []struct {
		category Category
		wantHour int
	}{
		{CategoryWelcome, 10},
		{CategoryReminder, 9}, // no profile
		{CategoryAchievement, 12},
		{CategoryMotivation, 8},
		{CategoryEducational, 15},
		{CategorySocial, 18},
		{CategorySystem, 11},
		{Category("unknown"), 9},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got := o.OptimalTime(tt.category, nil)

			assert.Equal(t, tt.wantHour, got.Hour())
			assert.Equal(t, 0, got.Minute())
			assert.Equal(t, now.Day(), got.Day())
		})
	}
}

func TestOptimalTimeAlwaysStrictlyFuture(t *testing.T) {
	clocks := []time.Time{
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), // exactly on a slot
		time.Date(2026, 3, 10, 12, 31, 7, 0, time.UTC),
		time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC),
	}
	profiles := []*profile.Profile{
		nil,
		{PreferredReminderTime: "07:30"},
		{PreferredReminderTime: "23:00"},
		{PreferredReminderTime: "junk"},
	}
	categories := []Category{
		CategoryWelcome, CategoryReminder, CategoryAchievement,
		CategoryMotivation, CategoryEducational, CategorySocial, CategorySystem,
	}

	for _, now := range clocks {
		o := NewOptimizer(fixedClock(now), time.UTC)
		for _, prof := range profiles {
			for _, category := range categories {
				got := o.OptimalTime(category, prof)
				assert.Truef(t, got.After(now),
					"category %s at %v returned %v, not strictly future", category, now, got)
			}
		}
	}
}

func TestOptimalTimeRollsToTomorrow(t *testing.T) {
	// Late evening: every slot has passed
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	o := NewOptimizer(fixedClock(now), time.UTC)

	got := o.OptimalTime(CategoryMotivation, nil)

	assert.Equal(t, 11, got.Day())
	assert.Equal(t, 8, got.Hour())
}

func TestOptimalTimeExactHourRollsOver(t *testing.T) {
	// At 10:00:00 sharp the welcome slot is not strictly future
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	o := NewOptimizer(fixedClock(now), time.UTC)

	got := o.OptimalTime(CategoryWelcome, nil)

	assert.Equal(t, 11, got.Day())
	assert.Equal(t, 10, got.Hour())
}

func TestReminderHourFromProfile(t *testing.T) {
	tests := []struct {
		name string
		prof *profile.Profile
		want int
	}{
		{name: "no profile", prof: nil, want: 9},
		{name: "empty preference", prof: &profile.Profile{}, want: 9},
		{name: "morning preference", prof: &profile.Profile{PreferredReminderTime: "07:30"}, want: 7},
		{name: "evening preference", prof: &profile.Profile{PreferredReminderTime: "21:15"}, want: 21},
		{name: "single digit unpadded falls back", prof: &profile.Profile{PreferredReminderTime: "8:30"}, want: 9},
		{name: "garbage", prof: &profile.Profile{PreferredReminderTime: "soon"}, want: 9},
		{name: "out of range", prof: &profile.Profile{PreferredReminderTime: "99:00"}, want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reminderHour(tt.prof))
		})
	}
}
