// internal/profile/models.go

package profile

import (
	"time"
)

// Profile is the single personalization profile for the device owner.
// It is replaced wholesale on update, never partially patched.
type Profile struct {
	Name                    string    `json:"name,omitempty"`
	PreferredReminderTime   string    `json:"preferred_reminder_time,omitempty"` // "HH:MM"
	PreferredSessionMinutes int       `json:"preferred_session_minutes,omitempty"`
	Interests               []string  `json:"interests,omitempty"`
	CompletedSessions       int       `json:"completed_sessions"`
	CurrentStreak           int       `json:"current_streak"`
	Timezone                string    `json:"timezone,omitempty"`
	LastActiveAt            time.Time `json:"last_active_at"`
}

// UpdateProfileRequest carries a full replacement profile
type UpdateProfileRequest struct {
	Name                    string   `json:"name,omitempty" validate:"max=80"`
	PreferredReminderTime   string   `json:"preferred_reminder_time,omitempty" validate:"max=5"`
	PreferredSessionMinutes int      `json:"preferred_session_minutes,omitempty" validate:"gte=0,lte=180"`
	Interests               []string `json:"interests,omitempty" validate:"max=20"`
	CompletedSessions       int      `json:"completed_sessions" validate:"gte=0"`
	CurrentStreak           int      `json:"current_streak" validate:"gte=0"`
	Timezone                string   `json:"timezone,omitempty" validate:"max=64"`
}
