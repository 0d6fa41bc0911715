// internal/campaign/timing.go
// Delivery-time optimization: pick the next wall-clock instant most
// likely to get engagement for a notification category.

package campaign

import (
	"strconv"
	"time"

	"github.com/calmoraapp/calmora-backend/internal/profile"
)

// Clock returns the current time. Injected so tests can pin it.
type Clock func() time.Time

const defaultReminderHour = 9

// Optimizer computes optimal delivery instants from a static
// per-category hour table plus the user's reminder preference.
type Optimizer struct {
	clock Clock
	loc   *time.Location
}

// NewOptimizer creates an optimizer on the given clock and calendar
func NewOptimizer(clock Clock, loc *time.Location) *Optimizer {
	if loc == nil {
		loc = time.Local
	}
	return &Optimizer{clock: clock, loc: loc}
}

// OptimalTime returns the next instant at the category's preferred
// hour. The result is always strictly in the future: today at that
// hour if it hasn't passed yet, otherwise the same hour tomorrow.
func (o *Optimizer) OptimalTime(category Category, prof *profile.Profile) time.Time {
	now := o.clock().In(o.loc)
	hour := o.baseHour(category, prof)

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, o.loc)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}

	return next
}

func (o *Optimizer) baseHour(category Category, prof *profile.Profile) int {
	switch category {
	case CategoryWelcome:
		return 10
	case CategoryReminder:
		return reminderHour(prof)
	case CategoryAchievement:
		return 12
	case CategoryMotivation:
		return 8
	case CategoryEducational:
		return 15
	case CategorySocial:
		return 18
	case CategorySystem:
		return 11
	default:
		return defaultReminderHour
	}
}

// reminderHour reads the hour from the profile's preferred reminder
// time ("HH:MM"). Absent or unparseable values fall back to 9.
func reminderHour(prof *profile.Profile) int {
	if prof == nil || len(prof.PreferredReminderTime) < 2 {
		return defaultReminderHour
	}
	hour, err := strconv.Atoi(prof.PreferredReminderTime[:2])
	if err != nil || hour < 0 || hour > 23 {
		return defaultReminderHour
	}
	return hour
}
