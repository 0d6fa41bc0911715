// internal/delivery/mock.go
package delivery

import (
	"context"
	"sync"
	"time"
)

// MockScheduler is an in-process delivery subsystem used in development
// and tests. It records every call so tests can assert on behavior.
type MockScheduler struct {
	mu        sync.Mutex
	pending   map[string]ScheduledNotification
	delivered []DeliveredNotification
	cancelled []string

	// RejectCategory makes Schedule refuse notifications of one
	// category, simulating an upstream rejection
	RejectCategory string
}

// NewMockScheduler creates an empty mock delivery subsystem
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		pending: make(map[string]ScheduledNotification),
	}
}

func (m *MockScheduler) Schedule(ctx context.Context, n ScheduledNotification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RejectCategory != "" && n.Category == m.RejectCategory {
		return false, nil
	}

	m.pending[n.ID] = n
	return true, nil
}

func (m *MockScheduler) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, id)
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *MockScheduler) ListDelivered(ctx context.Context) ([]DeliveredNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DeliveredNotification, len(m.delivered))
	copy(out, m.delivered)
	return out, nil
}

func (m *MockScheduler) ListPending(ctx context.Context) ([]PendingNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingNotification, 0, len(m.pending))
	for _, n := range m.pending {
		out = append(out, PendingNotification{
			ID:          n.ID,
			Title:       n.Title,
			Body:        n.Body,
			Category:    n.Category,
			ScheduledAt: n.DeliverAt,
		})
	}
	return out, nil
}

// MarkDelivered simulates the subsystem firing a pending notification
func (m *MockScheduler) MarkDelivered(id string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.pending[id]
	if !ok {
		return false
	}
	delete(m.pending, id)
	m.delivered = append(m.delivered, DeliveredNotification{
		ID:          n.ID,
		Title:       n.Title,
		Body:        n.Body,
		Category:    n.Category,
		DeliveredAt: at,
	})
	return true
}

// Cancelled returns the IDs cancelled so far, in call order
func (m *MockScheduler) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.cancelled))
	copy(out, m.cancelled)
	return out
}

// PendingCount reports how many notifications are currently armed
func (m *MockScheduler) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
