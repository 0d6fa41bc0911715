// internal/analytics/service.go

package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/store"
)

const (
	eventsKey            = "events"
	deliveryRecordsKey   = "delivery_records"
	engagementRecordsKey = "engagement_records"
	summaryKey           = "analytics_summary"

	maxStoredEvents   = 1000
	exportRecentCount = 100
)

// Notifier pushes change events to live dashboard subscribers.
type Notifier interface {
	Publish(event string, payload interface{})
}

// Service ingests notification lifecycle events and serves the derived
// engagement statistics. All mutations funnel through one mutex so
// ingestion never races the periodic recompute.
type Service interface {
	TrackSent(ctx context.Context, notificationID, category, templateType string, isPersonalized bool)
	TrackDelivered(ctx context.Context, notificationID string, latencySeconds float64)
	TrackOpened(ctx context.Context, notificationID string, timeToOpenSeconds float64)
	TrackDismissed(ctx context.Context, notificationID string, timeToDismissSeconds float64)
	TrackActionTaken(ctx context.Context, notificationID, actionID, actionType string)
	TrackFailed(ctx context.Context, notificationID, errText string)

	Recompute(ctx context.Context) Report
	LatestReport(ctx context.Context) Report
	ExportData(ctx context.Context) Export
	RecentEvents(ctx context.Context, limit int) []NotificationEvent

	LoadState(ctx context.Context)
}

type service struct {
	mu sync.Mutex

	events            []NotificationEvent
	deliveryRecords   []DeliveryRecord
	engagementRecords []EngagementRecord
	tags              map[string]eventTags
	report            *Report

	store    store.Store
	notifier Notifier
	clock    func() time.Time
	logger   *zap.Logger
}

// eventTags remembers the category and template type a notification was
// sent with, so later lifecycle events land in the right breakdown
// bucket even though their callers only know the notification id.
type eventTags struct {
	Category     string
	TemplateType string
}

func NewService(st store.Store, notifier Notifier, clock func() time.Time, logger *zap.Logger) Service {
	if clock == nil {
		clock = time.Now
	}
	return &service{
		tags:     make(map[string]eventTags),
		store:    st,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// LoadState restores the record collections from the blob store. Missing
// blobs leave the collections empty; decode failures are logged and the
// engine continues with whatever loaded.
func (s *service) LoadState(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadBlob(ctx, eventsKey, &s.events)
	s.loadBlob(ctx, deliveryRecordsKey, &s.deliveryRecords)
	s.loadBlob(ctx, engagementRecordsKey, &s.engagementRecords)

	var cached Report
	if s.loadBlob(ctx, summaryKey, &cached) {
		s.report = &cached
	}

	for _, ev := range s.events {
		if ev.Type == EventSent && ev.Category != "" {
			s.tags[ev.NotificationID] = eventTags{Category: ev.Category, TemplateType: ev.TemplateType}
		}
	}

	s.logger.Info("analytics state loaded",
		zap.Int("events", len(s.events)),
		zap.Int("deliveryRecords", len(s.deliveryRecords)),
		zap.Int("engagementRecords", len(s.engagementRecords)))
}

func (s *service) TrackSent(ctx context.Context, notificationID, category, templateType string, isPersonalized bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.tags[notificationID] = eventTags{Category: category, TemplateType: templateType}

	s.appendEvent(ctx, NotificationEvent{
		NotificationID: notificationID,
		Type:           EventSent,
		Category:       category,
		TemplateType:   templateType,
		Timestamp:      now,
		IsPersonalized: isPersonalized,
	})

	if rec := s.findDeliveryRecord(notificationID); rec != nil {
		// Re-send of a known notification bumps the attempt, it never
		// creates a second record
		rec.SentAt = now
		rec.Status = DeliveryStatusSent
		rec.AttemptCount++
	} else {
		s.deliveryRecords = append(s.deliveryRecords, DeliveryRecord{
			NotificationID: notificationID,
			SentAt:         now,
			Status:         DeliveryStatusSent,
			AttemptCount:   1,
		})
	}
	s.persistDeliveryRecords(ctx)

	s.publish("analytics.sent", map[string]interface{}{
		"notificationId": notificationID,
		"category":       category,
	})
}

func (s *service) TrackDelivered(ctx context.Context, notificationID string, latencySeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	latency := latencySeconds

	ev := NotificationEvent{
		NotificationID:  notificationID,
		Type:            EventDelivered,
		Timestamp:       now,
		DeliveryLatency: &latency,
	}
	s.applyTags(&ev)
	s.appendEvent(ctx, ev)

	// Update only applies when the sent record exists
	if rec := s.findDeliveryRecord(notificationID); rec != nil {
		rec.Status = DeliveryStatusDelivered
		rec.DeliveredAt = &now
		rec.DeliveryLatency = &latency
		s.persistDeliveryRecords(ctx)
	}
	RecordDeliveryLatency(latencySeconds)

	s.publish("analytics.delivered", map[string]interface{}{
		"notificationId": notificationID,
		"latencySeconds": latencySeconds,
	})
}

func (s *service) TrackOpened(ctx context.Context, notificationID string, timeToOpenSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	timeToOpen := timeToOpenSeconds

	ev := NotificationEvent{
		NotificationID: notificationID,
		Type:           EventOpened,
		Timestamp:      now,
		TimeToOpen:     &timeToOpen,
	}
	s.applyTags(&ev)
	s.appendEvent(ctx, ev)

	s.engagementRecords = append(s.engagementRecords, EngagementRecord{
		NotificationID: notificationID,
		Kind:           EngagementOpened,
		OpenedAt:       &now,
		TimeToOpen:     &timeToOpen,
	})
	s.persistEngagementRecords(ctx)

	s.publish("analytics.engagement", map[string]interface{}{
		"notificationId": notificationID,
		"kind":           string(EngagementOpened),
	})
}

func (s *service) TrackDismissed(ctx context.Context, notificationID string, timeToDismissSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	timeToDismiss := timeToDismissSeconds

	ev := NotificationEvent{
		NotificationID: notificationID,
		Type:           EventDismissed,
		Timestamp:      now,
		TimeToDismiss:  &timeToDismiss,
	}
	s.applyTags(&ev)
	s.appendEvent(ctx, ev)

	s.engagementRecords = append(s.engagementRecords, EngagementRecord{
		NotificationID: notificationID,
		Kind:           EngagementDismissed,
		DismissedAt:    &now,
		TimeToDismiss:  &timeToDismiss,
	})
	s.persistEngagementRecords(ctx)

	s.publish("analytics.engagement", map[string]interface{}{
		"notificationId": notificationID,
		"kind":           string(EngagementDismissed),
	})
}

func (s *service) TrackActionTaken(ctx context.Context, notificationID, actionID, actionType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()

	ev := NotificationEvent{
		NotificationID: notificationID,
		Type:           EventActionTaken,
		Timestamp:      now,
		ActionID:       actionID,
		ActionType:     actionType,
	}
	s.applyTags(&ev)
	s.appendEvent(ctx, ev)

	s.engagementRecords = append(s.engagementRecords, EngagementRecord{
		NotificationID: notificationID,
		Kind:           EngagementActionTaken,
		ActionTakenAt:  &now,
		ActionID:       actionID,
		ActionType:     actionType,
	})
	s.persistEngagementRecords(ctx)

	s.publish("analytics.engagement", map[string]interface{}{
		"notificationId": notificationID,
		"kind":           string(EngagementActionTaken),
		"actionId":       actionID,
	})
}

func (s *service) TrackFailed(ctx context.Context, notificationID, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()

	ev := NotificationEvent{
		NotificationID: notificationID,
		Type:           EventFailed,
		Timestamp:      now,
		Error:          errText,
	}
	s.applyTags(&ev)
	s.appendEvent(ctx, ev)

	// Update only applies when the sent record exists
	if rec := s.findDeliveryRecord(notificationID); rec != nil {
		rec.Status = DeliveryStatusFailed
		rec.AttemptCount++
		rec.LastError = errText
		s.persistDeliveryRecords(ctx)
	}

	s.publish("analytics.failed", map[string]interface{}{
		"notificationId": notificationID,
		"error":          errText,
	})
}

// Recompute rebuilds every derived statistic from the raw collections
// and caches the result.
func (s *service) Recompute(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(ctx)
}

// LatestReport returns the cached report, computing one first if no
// recompute has happened yet.
func (s *service) LatestReport(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report == nil {
		return s.recomputeLocked(ctx)
	}
	return *s.report
}

// ExportData bundles a fresh report with the raw records behind it and
// the most recent events.
func (s *service) ExportData(ctx context.Context) Export {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.recomputeLocked(ctx)

	recent := s.events
	if len(recent) > exportRecentCount {
		recent = recent[len(recent)-exportRecentCount:]
	}

	return Export{
		Report:            report,
		RecentEvents:      append([]NotificationEvent(nil), recent...),
		DeliveryRecords:   append([]DeliveryRecord(nil), s.deliveryRecords...),
		EngagementRecords: append([]EngagementRecord(nil), s.engagementRecords...),
		ExportedAt:        s.clock(),
	}
}

// RecentEvents returns up to limit events, newest last. A non-positive
// limit returns the whole stored log.
func (s *service) RecentEvents(ctx context.Context, limit int) []NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]NotificationEvent, limit)
	copy(out, s.events[len(s.events)-limit:])
	return out
}

// recomputeLocked assumes s.mu is held.
func (s *service) recomputeLocked(ctx context.Context) Report {
	start := time.Now()
	report := buildReport(s.events, s.deliveryRecords, s.engagementRecords, s.clock())
	s.report = &report
	s.persistBlob(ctx, summaryKey, report)
	RecordRecompute(time.Since(start), len(report.Insights))

	s.publish("analytics.recomputed", report.Summary)
	return report
}

// appendEvent assumes s.mu is held. The caller fills everything but the
// id; the log is trimmed to the most recent maxStoredEvents entries.
func (s *service) appendEvent(ctx context.Context, ev NotificationEvent) {
	ev.ID = uuid.New().String()
	s.events = append(s.events, ev)
	if len(s.events) > maxStoredEvents {
		s.events = s.events[len(s.events)-maxStoredEvents:]
	}
	RecordEvent(ev.Type)
	s.persistEvents(ctx)
}

// applyTags assumes s.mu is held.
func (s *service) applyTags(ev *NotificationEvent) {
	if t, ok := s.tags[ev.NotificationID]; ok {
		ev.Category = t.Category
		ev.TemplateType = t.TemplateType
	}
}

// findDeliveryRecord assumes s.mu is held.
func (s *service) findDeliveryRecord(notificationID string) *DeliveryRecord {
	for i := range s.deliveryRecords {
		if s.deliveryRecords[i].NotificationID == notificationID {
			return &s.deliveryRecords[i]
		}
	}
	return nil
}

func (s *service) loadBlob(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.store.Load(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			s.logger.Error("failed to load blob",
				zap.String("key", key),
				zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Error("failed to decode blob",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

func (s *service) persistEvents(ctx context.Context) {
	s.persistBlob(ctx, eventsKey, s.events)
}

func (s *service) persistDeliveryRecords(ctx context.Context) {
	s.persistBlob(ctx, deliveryRecordsKey, s.deliveryRecords)
}

func (s *service) persistEngagementRecords(ctx context.Context) {
	s.persistBlob(ctx, engagementRecordsKey, s.engagementRecords)
}

func (s *service) persistBlob(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to serialize blob",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, key, data); err != nil {
		s.logger.Error("failed to persist blob",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *service) publish(event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(event, payload)
	}
}
