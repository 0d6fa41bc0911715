// internal/analytics/models.go

package analytics

import (
	"time"
)

// EventType classifies a notification lifecycle event.
type EventType string

const (
	EventSent        EventType = "sent"
	EventDelivered   EventType = "delivered"
	EventOpened      EventType = "opened"
	EventDismissed   EventType = "dismissed"
	EventActionTaken EventType = "action_taken"
	EventFailed      EventType = "failed"
)

// NotificationEvent is one immutable entry in the engagement event log.
// The log is append-only; the only mutation is a global trim that keeps
// the most recent maxStoredEvents entries.
type NotificationEvent struct {
	ID              string    `json:"id"`
	NotificationID  string    `json:"notification_id"`
	Type            EventType `json:"type"`
	Category        string    `json:"category,omitempty"`
	TemplateType    string    `json:"template_type,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	DeliveryLatency *float64  `json:"delivery_latency,omitempty"`
	TimeToOpen      *float64  `json:"time_to_open,omitempty"`
	TimeToDismiss   *float64  `json:"time_to_dismiss,omitempty"`
	ActionID        string    `json:"action_id,omitempty"`
	ActionType      string    `json:"action_type,omitempty"`
	Error           string    `json:"error,omitempty"`
	IsPersonalized  bool      `json:"is_personalized,omitempty"`
}

// DeliveryStatus tracks where a notification is in its delivery lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusPending   DeliveryStatus = "pending"
)

// DeliveryRecord is the current-state projection for one notification:
// exactly one record per notification id, upserted as the lifecycle
// advances. NotificationEvent keeps the history, this keeps the now.
type DeliveryRecord struct {
	NotificationID  string         `json:"notification_id"`
	SentAt          time.Time      `json:"sent_at"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	Status          DeliveryStatus `json:"status"`
	AttemptCount    int            `json:"attempt_count"`
	DeliveryLatency *float64       `json:"delivery_latency,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
}

// EngagementKind discriminates what a user did with a notification.
type EngagementKind string

const (
	EngagementOpened      EngagementKind = "opened"
	EngagementDismissed   EngagementKind = "dismissed"
	EngagementActionTaken EngagementKind = "action_taken"
)

// EngagementRecord captures a single user interaction. Appended, never
// updated.
type EngagementRecord struct {
	NotificationID string         `json:"notification_id"`
	Kind           EngagementKind `json:"kind"`
	OpenedAt       *time.Time     `json:"opened_at,omitempty"`
	DismissedAt    *time.Time     `json:"dismissed_at,omitempty"`
	ActionTakenAt  *time.Time     `json:"action_taken_at,omitempty"`
	TimeToOpen     *float64       `json:"time_to_open,omitempty"`
	TimeToDismiss  *float64       `json:"time_to_dismiss,omitempty"`
	ActionID       string         `json:"action_id,omitempty"`
	ActionType     string         `json:"action_type,omitempty"`
}

// DeliveryStatistics is recomputed from the delivery records on demand.
type DeliveryStatistics struct {
	TotalSent          int     `json:"total_sent"`
	TotalDelivered     int     `json:"total_delivered"`
	TotalFailed        int     `json:"total_failed"`
	TotalPending       int     `json:"total_pending"`
	DeliveryRate       float64 `json:"delivery_rate"`
	FailureRate        float64 `json:"failure_rate"`
	AvgDeliveryLatency float64 `json:"avg_delivery_latency"`
	P95DeliveryLatency float64 `json:"p95_delivery_latency"`
}

// CategoryEngagement breaks engagement down for one notification category.
type CategoryEngagement struct {
	Category      string  `json:"category"`
	Sent          int     `json:"sent"`
	Delivered     int     `json:"delivered"`
	Opened        int     `json:"opened"`
	Dismissed     int     `json:"dismissed"`
	ActionsTaken  int     `json:"actions_taken"`
	DeliveryRate  float64 `json:"delivery_rate"`
	OpenRate      float64 `json:"open_rate"`
	DismissalRate float64 `json:"dismissal_rate"`
	ActionRate    float64 `json:"action_rate"`
}

// TimeOfDayEngagement breaks engagement down for one local hour (0-23).
type TimeOfDayEngagement struct {
	Hour          int     `json:"hour"`
	Sent          int     `json:"sent"`
	Delivered     int     `json:"delivered"`
	Opened        int     `json:"opened"`
	Dismissed     int     `json:"dismissed"`
	ActionsTaken  int     `json:"actions_taken"`
	DeliveryRate  float64 `json:"delivery_rate"`
	OpenRate      float64 `json:"open_rate"`
	DismissalRate float64 `json:"dismissal_rate"`
	ActionRate    float64 `json:"action_rate"`
}

// EngagementMetrics is recomputed from engagement records and the event
// log on demand.
type EngagementMetrics struct {
	OpenRate         float64                       `json:"open_rate"`
	DismissalRate    float64                       `json:"dismissal_rate"`
	ActionRate       float64                       `json:"action_rate"`
	AvgTimeToOpen    float64                       `json:"avg_time_to_open"`
	AvgTimeToDismiss float64                       `json:"avg_time_to_dismiss"`
	ByCategory       map[string]CategoryEngagement `json:"by_category"`
	ByHour           map[int]TimeOfDayEngagement   `json:"by_hour"`
}

// InsightSeverity ranks how urgently a performance insight needs attention.
type InsightSeverity string

const (
	SeverityInfo   InsightSeverity = "info"
	SeverityMedium InsightSeverity = "medium"
	SeverityHigh   InsightSeverity = "high"
)

// Insight type identifiers.
const (
	InsightLowDeliveryRate = "low_delivery_rate"
	InsightSlowDelivery    = "slow_delivery"
	InsightLowEngagement   = "low_engagement"
	InsightHighDismissal   = "high_dismissal"
	InsightBestCategory    = "best_category"
)

// PerformanceInsight is one heuristic finding about notification health.
// Insights are rebuilt from scratch on every recompute.
type PerformanceInsight struct {
	Type     string          `json:"type"`
	Severity InsightSeverity `json:"severity"`
	Message  string          `json:"message"`
	Value    float64         `json:"value"`
}

// NotificationAnalytics is the headline summary shown on dashboards.
type NotificationAnalytics struct {
	TotalSent          int       `json:"total_sent"`
	TotalDelivered     int       `json:"total_delivered"`
	TotalOpened        int       `json:"total_opened"`
	TotalFailed        int       `json:"total_failed"`
	AvgDeliveryLatency float64   `json:"avg_delivery_latency"`
	OpenRate           float64   `json:"open_rate"`
	ComputedAt         time.Time `json:"computed_at"`
	TimeRange          string    `json:"time_range"`
}

// Report bundles everything one recompute produces.
type Report struct {
	Summary    NotificationAnalytics `json:"summary"`
	Delivery   DeliveryStatistics    `json:"delivery"`
	Engagement EngagementMetrics     `json:"engagement"`
	Insights   []PerformanceInsight  `json:"insights"`
}

// Export is the full downloadable snapshot: a fresh report plus the raw
// records behind it and the tail of the event log.
type Export struct {
	Report            Report              `json:"report"`
	RecentEvents      []NotificationEvent `json:"recent_events"`
	DeliveryRecords   []DeliveryRecord    `json:"delivery_records"`
	EngagementRecords []EngagementRecord  `json:"engagement_records"`
	ExportedAt        time.Time           `json:"exported_at"`
}

// Request bodies for the event ingestion endpoints.

type TrackSentRequest struct {
	NotificationID string `json:"notificationId" validate:"required"`
	Category       string `json:"category" validate:"max=40"`
	TemplateType   string `json:"templateType" validate:"max=60"`
	IsPersonalized bool   `json:"isPersonalized"`
}

type TrackDeliveredRequest struct {
	NotificationID string  `json:"notificationId" validate:"required"`
	LatencySeconds float64 `json:"latencySeconds" validate:"gte=0"`
}

type TrackOpenedRequest struct {
	NotificationID    string  `json:"notificationId" validate:"required"`
	TimeToOpenSeconds float64 `json:"timeToOpenSeconds" validate:"gte=0"`
}

type TrackDismissedRequest struct {
	NotificationID       string  `json:"notificationId" validate:"required"`
	TimeToDismissSeconds float64 `json:"timeToDismissSeconds" validate:"gte=0"`
}

type TrackActionRequest struct {
	NotificationID string `json:"notificationId" validate:"required"`
	ActionID       string `json:"actionId" validate:"required,max=60"`
	ActionType     string `json:"actionType" validate:"max=60"`
}

type TrackFailedRequest struct {
	NotificationID string `json:"notificationId" validate:"required"`
	Error          string `json:"error" validate:"required,max=500"`
}
