// internal/campaign/service.go

package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/delivery"
	"github.com/calmoraapp/calmora-backend/internal/profile"
	"github.com/calmoraapp/calmora-backend/internal/store"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTemplateNotFound = errors.New("template not found")
)

// Blob keys for persisted state
const (
	templatesKey = "templates"
	campaignsKey = "campaigns"
)

// ProfileSource yields the current personalization profile, nil when
// none has been set
type ProfileSource interface {
	Current(ctx context.Context) *profile.Profile
}

// EventSink receives the sent event emitted for each notification the
// scheduler successfully hands to the delivery subsystem
type EventSink interface {
	TrackSent(ctx context.Context, notificationID string, category string, templateType string, isPersonalized bool)
}

// Notifier receives a change event after each mutating operation
type Notifier interface {
	Publish(event string, payload interface{})
}

// Service owns the template catalog and the campaign set. All access
// to either collection goes through this interface.
type Service interface {
	// Campaign lifecycle
	Validate(c *Campaign) bool
	CreateCampaign(ctx context.Context, c *Campaign) bool
	CancelCampaign(ctx context.Context, id string) bool
	PauseCampaign(ctx context.Context, id string) bool
	ResumeCampaign(ctx context.Context, id string) bool
	GetCampaign(ctx context.Context, id string) (*Campaign, bool)
	ListCampaigns(ctx context.Context) []*Campaign
	CompleteExpired(ctx context.Context) int

	// Template catalog
	GetTemplate(ctx context.Context, id string) (*Template, bool)
	ListTemplates(ctx context.Context) []*Template
	SearchTemplates(ctx context.Context, tag string) []*Template

	// Ad-hoc rendering
	GeneratePersonalizedNotification(ctx context.Context, templateID string, data map[string]string) *NotificationRequest

	// Convenience builders
	CreateWelcomeCampaign(ctx context.Context) (*Campaign, bool)
	CreateDailyReminderCampaign(ctx context.Context, days int) (*Campaign, bool)

	// LoadState restores persisted templates and campaigns, seeding
	// the default catalog when none exist
	LoadState(ctx context.Context)
}

type service struct {
	mu        sync.Mutex
	templates map[string]*Template
	campaigns map[string]*Campaign

	store     store.Store
	deliverer delivery.Scheduler
	profiles  ProfileSource
	renderer  *Renderer
	optimizer *Optimizer
	events    EventSink
	notifier  Notifier
	clock     Clock
	logger    *zap.Logger
}

// NewService wires the campaign scheduler. events and notifier may be
// nil; every other collaborator is required.
func NewService(
	st store.Store,
	deliverer delivery.Scheduler,
	profiles ProfileSource,
	renderer *Renderer,
	optimizer *Optimizer,
	events EventSink,
	notifier Notifier,
	clock Clock,
	logger *zap.Logger,
) Service {
	return &service{
		templates: make(map[string]*Template),
		campaigns: make(map[string]*Campaign),
		store:     st,
		deliverer: deliverer,
		profiles:  profiles,
		renderer:  renderer,
		optimizer: optimizer,
		events:    events,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

// LoadState restores templates and campaigns from the store. A failed
// load leaves the affected collection empty; an empty catalog is
// seeded with the defaults.
func (s *service) LoadState(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var templates []*Template
	if s.loadBlob(ctx, templatesKey, &templates) {
		for _, tpl := range templates {
			s.templates[tpl.ID] = tpl
		}
	}

	if len(s.templates) == 0 {
		for _, tpl := range defaultTemplates {
			s.templates[tpl.ID] = tpl
		}
		s.persistTemplates(ctx)
		s.logger.Info("seeded default template catalog",
			zap.Int("count", len(defaultTemplates)))
	}

	var campaigns []*Campaign
	if s.loadBlob(ctx, campaignsKey, &campaigns) {
		for _, c := range campaigns {
			s.campaigns[c.ID] = c
		}
	}

	s.logger.Info("campaign state loaded",
		zap.Int("templates", len(s.templates)),
		zap.Int("campaigns", len(s.campaigns)))
}

// Validate checks a campaign definition. It fails when the date range
// is inverted or any schedule item references an unknown template.
func (s *service) Validate(c *Campaign) bool {
	if c.StartDate.After(c.EndDate) {
		s.logger.Warn("campaign has invalid date range",
			zap.String("name", c.Name),
			zap.Time("start", c.StartDate),
			zap.Time("end", c.EndDate))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range c.Items {
		if _, ok := s.templates[item.TemplateID]; !ok {
			s.logger.Warn("campaign references unknown template",
				zap.String("name", c.Name),
				zap.String("template_id", item.TemplateID))
			return false
		}
	}
	return true
}

// CreateCampaign validates, expands every schedule item into a
// concrete send, and activates the campaign. Items whose instant is
// already past are skipped; items the delivery subsystem rejects are
// dropped. Either way the campaign ends up active; there is no
// all-or-nothing guarantee across items. A validation failure leaves
// nothing persisted.
func (s *service) CreateCampaign(ctx context.Context, c *Campaign) bool {
	if !s.Validate(c) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	s.scheduleItems(ctx, c)

	c.Status = StatusActive
	s.campaigns[c.ID] = c
	s.persistCampaigns(ctx)

	s.logger.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("name", c.Name),
		zap.Int("scheduled", len(c.ScheduledNotificationIDs)),
		zap.Int("items", len(c.Items)))

	s.publish("campaign.created", c)
	return true
}

// scheduleItems expands c.Items and records the identifiers of every
// accepted send. Callers hold s.mu.
func (s *service) scheduleItems(ctx context.Context, c *Campaign) {
	prof := s.profiles.Current(ctx)
	now := s.clock()

	for _, item := range c.Items {
		tpl, ok := s.templates[item.TemplateID]
		if !ok {
			continue
		}

		deliverAt := c.StartDate.Add(time.Duration(item.OffsetDays) * 24 * time.Hour)
		if hour, minute, ok := parseTimeOfDay(item.PreferredTime); ok {
			deliverAt = time.Date(deliverAt.Year(), deliverAt.Month(), deliverAt.Day(),
				hour, minute, 0, 0, deliverAt.Location())
		}

		// Past-due items are skipped, not errors
		if !deliverAt.After(now) {
			continue
		}

		content := s.renderer.Render(tpl, item.Personalization, prof)
		notification := delivery.ScheduledNotification{
			ID:        uuid.New().String(),
			Title:     content.Title,
			Body:      content.Body,
			Subtitle:  content.Subtitle,
			Category:  string(tpl.Category),
			DeliverAt: deliverAt,
		}

		accepted, err := s.deliverer.Schedule(ctx, notification)
		if err != nil {
			s.logger.Error("delivery subsystem error",
				zap.String("campaign_id", c.ID),
				zap.String("template_id", tpl.ID),
				zap.Error(err))
			continue
		}
		if !accepted {
			// Upstream rejection drops the item silently
			continue
		}

		c.ScheduledNotificationIDs = append(c.ScheduledNotificationIDs, notification.ID)

		if s.events != nil {
			personalized := len(item.Personalization) > 0 || prof != nil
			s.events.TrackSent(ctx, notification.ID, string(tpl.Category), tpl.ID, personalized)
		}
	}
}

// CancelCampaign asks the delivery subsystem to remove every recorded
// notification, then marks the campaign cancelled. An unknown id is a
// warning-level no-op.
func (s *service) CancelCampaign(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		s.logger.Warn("campaign not found for cancel", zap.String("campaign_id", id))
		return false
	}

	for _, nid := range c.ScheduledNotificationIDs {
		if err := s.deliverer.Cancel(ctx, nid); err != nil {
			s.logger.Warn("failed to cancel scheduled notification",
				zap.String("notification_id", nid),
				zap.Error(err))
		}
	}

	c.Status = StatusCancelled
	c.UpdatedAt = s.clock()
	s.persistCampaigns(ctx)

	s.logger.Info("campaign cancelled",
		zap.String("campaign_id", id),
		zap.Int("cancelled_notifications", len(c.ScheduledNotificationIDs)))

	s.publish("campaign.cancelled", c)
	return true
}

// PauseCampaign cancels the campaign's pending sends and parks it.
// Only active campaigns can pause.
func (s *service) PauseCampaign(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		s.logger.Warn("campaign not found for pause", zap.String("campaign_id", id))
		return false
	}
	if c.Status != StatusActive {
		s.logger.Warn("campaign not active, cannot pause",
			zap.String("campaign_id", id),
			zap.String("status", string(c.Status)))
		return false
	}

	for _, nid := range c.ScheduledNotificationIDs {
		if err := s.deliverer.Cancel(ctx, nid); err != nil {
			s.logger.Warn("failed to cancel scheduled notification",
				zap.String("notification_id", nid),
				zap.Error(err))
		}
	}

	c.ScheduledNotificationIDs = nil
	c.Status = StatusPaused
	c.UpdatedAt = s.clock()
	s.persistCampaigns(ctx)

	s.logger.Info("campaign paused", zap.String("campaign_id", id))
	s.publish("campaign.paused", c)
	return true
}

// ResumeCampaign re-expands a paused campaign's remaining future items
// and reactivates it
func (s *service) ResumeCampaign(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		s.logger.Warn("campaign not found for resume", zap.String("campaign_id", id))
		return false
	}
	if c.Status != StatusPaused {
		s.logger.Warn("campaign not paused, cannot resume",
			zap.String("campaign_id", id),
			zap.String("status", string(c.Status)))
		return false
	}

	s.scheduleItems(ctx, c)

	c.Status = StatusActive
	c.UpdatedAt = s.clock()
	s.persistCampaigns(ctx)

	s.logger.Info("campaign resumed",
		zap.String("campaign_id", id),
		zap.Int("scheduled", len(c.ScheduledNotificationIDs)))

	s.publish("campaign.resumed", c)
	return true
}

// GetCampaign returns a copy of one campaign
func (s *service) GetCampaign(ctx context.Context, id string) (*Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, false
	}
	return copyCampaign(c), true
}

// ListCampaigns returns copies of all campaigns, newest first
func (s *service) ListCampaigns(ctx context.Context) []*Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, copyCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CompleteExpired marks active campaigns whose end date has passed as
// completed. Returns how many changed.
func (s *service) CompleteExpired(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	completed := 0
	for _, c := range s.campaigns {
		if c.Status != StatusActive || !c.EndDate.Before(now) {
			continue
		}
		c.Status = StatusCompleted
		c.UpdatedAt = now
		completed++
		s.publish("campaign.completed", c)
	}

	if completed > 0 {
		s.persistCampaigns(ctx)
	}
	return completed
}

// GetTemplate returns a copy of one catalog entry
func (s *service) GetTemplate(ctx context.Context, id string) (*Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[id]
	if !ok {
		return nil, false
	}
	copied := *tpl
	return &copied, true
}

// ListTemplates returns copies of the whole catalog, sorted by id
func (s *service) ListTemplates(ctx context.Context) []*Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		copied := *tpl
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SearchTemplates returns catalog entries carrying the given tag
func (s *service) SearchTemplates(ctx context.Context, tag string) []*Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Template
	for _, tpl := range s.templates {
		for _, t := range tpl.Tags {
			if t == tag {
				copied := *tpl
				out = append(out, &copied)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GeneratePersonalizedNotification renders a single ad-hoc
// notification with an optimized delivery instant. Unknown template
// ids are a warning-level no-op returning nil.
func (s *service) GeneratePersonalizedNotification(ctx context.Context, templateID string, data map[string]string) *NotificationRequest {
	s.mu.Lock()
	tpl, ok := s.templates[templateID]
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("template not found", zap.String("template_id", templateID))
		return nil
	}

	prof := s.profiles.Current(ctx)
	content := s.renderer.Render(tpl, data, prof)

	return &NotificationRequest{
		ID:        uuid.New().String(),
		Title:     content.Title,
		Body:      content.Body,
		Subtitle:  content.Subtitle,
		Category:  tpl.Category,
		Priority:  tpl.Priority,
		DeliverAt: s.optimizer.OptimalTime(tpl.Category, prof),
	}
}

// CreateWelcomeCampaign assembles the fixed onboarding sequence
func (s *service) CreateWelcomeCampaign(ctx context.Context) (*Campaign, bool) {
	start := s.clock()
	c := &Campaign{
		Name:        "Welcome Series",
		Description: "Onboarding touch points for the first week",
		StartDate:   start,
		EndDate:     start.Add(7 * 24 * time.Hour),
		Items: []ScheduleItem{
			{TemplateID: "welcome_day1", OffsetDays: 0, PreferredTime: "10:00"},
			{TemplateID: "welcome_day3", OffsetDays: 2, PreferredTime: "10:00"},
			{TemplateID: "mindfulness_tip", OffsetDays: 5, PreferredTime: "15:00"},
		},
		TargetAudience: []string{"new_users"},
	}

	if !s.CreateCampaign(ctx, c) {
		return nil, false
	}
	return c, true
}

// CreateDailyReminderCampaign assembles one reminder per day at the
// profile's preferred time
func (s *service) CreateDailyReminderCampaign(ctx context.Context, days int) (*Campaign, bool) {
	start := s.clock()

	preferred := "09:00"
	if prof := s.profiles.Current(ctx); prof != nil {
		if _, _, ok := parseTimeOfDay(prof.PreferredReminderTime); ok {
			preferred = prof.PreferredReminderTime
		}
	}

	items := make([]ScheduleItem, 0, days)
	for day := 0; day < days; day++ {
		items = append(items, ScheduleItem{
			TemplateID:    "daily_reminder",
			OffsetDays:    day,
			PreferredTime: preferred,
			Personalization: map[string]string{
				"dayNumber": strconv.Itoa(day + 1),
			},
		})
	}

	c := &Campaign{
		Name:        fmt.Sprintf("Daily Reminders (%d days)", days),
		Description: "One practice reminder per day",
		StartDate:   start,
		EndDate:     start.Add(time.Duration(days) * 24 * time.Hour),
		Items:       items,
	}

	if !s.CreateCampaign(ctx, c) {
		return nil, false
	}
	return c, true
}

// loadBlob deserializes one stored collection; false means the caller
// keeps its prior (empty) state
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

// persistCampaigns saves the campaign list. Failures are logged and
// swallowed: stale persisted state beats a crashed scheduler.
func (s *service) persistCampaigns(ctx context.Context) {
	list := make([]*Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	data, err := json.Marshal(list)
	if err != nil {
		s.logger.Error("failed to serialize campaigns", zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, campaignsKey, data); err != nil {
		s.logger.Error("failed to persist campaigns", zap.Error(err))
	}
}

func (s *service) persistTemplates(ctx context.Context) {
	list := make([]*Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		list = append(list, tpl)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.Marshal(list)
	if err != nil {
		s.logger.Error("failed to serialize templates", zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, templatesKey, data); err != nil {
		s.logger.Error("failed to persist templates", zap.Error(err))
	}
}

func (s *service) publish(event string, c *Campaign) {
	if s.notifier != nil {
		s.notifier.Publish(event, copyCampaign(c))
	}
}

func copyCampaign(c *Campaign) *Campaign {
	copied := *c
	copied.Items = append([]ScheduleItem(nil), c.Items...)
	copied.ScheduledNotificationIDs = append([]string(nil), c.ScheduledNotificationIDs...)
	copied.TargetAudience = append([]string(nil), c.TargetAudience...)
	return &copied
}

// parseTimeOfDay parses a strict "HH:MM" string. Malformed values
// report ok=false and are ignored by callers.
func parseTimeOfDay(value string) (hour, minute int, ok bool) {
	if len(value) != 5 || value[2] != ':' {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(value[:2])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(value[3:])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
