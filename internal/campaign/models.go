// internal/campaign/models.go

package campaign

import (
	"time"
)

// Category tags a template with the kind of message it carries.
// The set is closed; the delivery-time optimizer keys off it.
type Category string

const (
	CategoryWelcome     Category = "welcome"
	CategoryReminder    Category = "reminder"
	CategoryAchievement Category = "achievement"
	CategoryMotivation  Category = "motivation"
	CategoryEducational Category = "educational"
	CategorySocial      Category = "social"
	CategorySystem      Category = "system"
)

// Priority levels for rendered notifications
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status is the campaign lifecycle state
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether a campaign can still change state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Template is an immutable catalog entry. Title and body may contain
// literal {placeholder} tokens filled in at render time. Templates are
// replaced wholesale, never patched.
type Template struct {
	ID                    string   `json:"id"`
	Category              Category `json:"category"`
	Priority              Priority `json:"priority"`
	Title                 string   `json:"title"`
	Body                  string   `json:"body"`
	Subtitle              string   `json:"subtitle,omitempty"`
	PersonalizationFields []string `json:"personalization_fields,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
	Sound                 string   `json:"sound,omitempty"`
	Badge                 *int     `json:"badge,omitempty"`
}

// ScheduleItem is one planned send within a campaign. It is a value
// carried inside its campaign, never persisted on its own.
type ScheduleItem struct {
	TemplateID      string            `json:"template_id"`
	OffsetDays      int               `json:"offset_days"`
	PreferredTime   string            `json:"preferred_time,omitempty"` // "HH:MM"
	Personalization map[string]string `json:"personalization,omitempty"`
}

// Campaign is a named, time-bounded sequence of schedule items
type Campaign struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	Description              string         `json:"description,omitempty"`
	StartDate                time.Time      `json:"start_date"`
	EndDate                  time.Time      `json:"end_date"`
	Items                    []ScheduleItem `json:"items"`
	Status                   Status         `json:"status"`
	ScheduledNotificationIDs []string       `json:"scheduled_notification_ids,omitempty"`
	TargetAudience           []string       `json:"target_audience,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// RenderedContent is the output of template personalization
type RenderedContent struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Subtitle string `json:"subtitle,omitempty"`
}

// NotificationRequest is an ad-hoc rendered notification with its
// computed delivery instant. It never touches campaign state.
type NotificationRequest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Category  Category  `json:"category"`
	Priority  Priority  `json:"priority"`
	DeliverAt time.Time `json:"deliver_at"`
}

// Request/response DTOs

type ScheduleItemRequest struct {
	TemplateID      string            `json:"template_id" validate:"required"`
	OffsetDays      int               `json:"offset_days" validate:"gte=0,lte=365"`
	PreferredTime   string            `json:"preferred_time,omitempty"`
	Personalization map[string]string `json:"personalization,omitempty"`
}

type CreateCampaignRequest struct {
	Name           string                `json:"name" validate:"required,min=1,max=120"`
	Description    string                `json:"description,omitempty" validate:"max=500"`
	StartDate      time.Time             `json:"start_date" validate:"required"`
	EndDate        time.Time             `json:"end_date" validate:"required"`
	Items          []ScheduleItemRequest `json:"items" validate:"required,min=1,dive"`
	TargetAudience []string              `json:"target_audience,omitempty"`
}

type PreviewNotificationRequest struct {
	TemplateID string            `json:"template_id" validate:"required"`
	Data       map[string]string `json:"data,omitempty"`
}

type DailyReminderRequest struct {
	Days int `json:"days" validate:"required,gte=1,lte=90"`
}
