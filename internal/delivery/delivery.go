// internal/delivery/delivery.go
// Boundary contract for the notification delivery subsystem
// The engine decides what to send and when; arming and firing device
// notifications is the delivery subsystem's job.

package delivery

import (
	"context"
	"time"
)

// ScheduledNotification is a fully rendered send request
type ScheduledNotification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Category  string    `json:"category"`
	DeliverAt time.Time `json:"deliver_at"`
}

// DeliveredNotification describes a notification the subsystem has fired
type DeliveredNotification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// PendingNotification describes a notification armed but not yet fired
type PendingNotification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Scheduler is the delivery subsystem as seen from this engine.
// Schedule reports acceptance; a rejected notification is simply not
// armed and the caller drops it. Cancel is best effort.
type Scheduler interface {
	Schedule(ctx context.Context, n ScheduledNotification) (bool, error)
	Cancel(ctx context.Context, id string) error
	ListDelivered(ctx context.Context) ([]DeliveredNotification, error)
	ListPending(ctx context.Context) ([]PendingNotification, error)
}
