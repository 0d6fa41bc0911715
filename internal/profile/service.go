// internal/profile/service.go

package profile

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/store"
)

const profileKey = "profile"

// Notifier receives a change event after each mutation
type Notifier interface {
	Publish(event string, payload interface{})
}

// Service owns the personalization profile
type Service interface {
	Current(ctx context.Context) *Profile
	Update(ctx context.Context, req *UpdateProfileRequest) *Profile
}

type service struct {
	mu       sync.RWMutex
	current  *Profile
	store    store.Store
	notifier Notifier
	clock    func() time.Time
	logger   *zap.Logger
}

// NewService creates the profile service and loads any persisted
// profile. A failed load leaves the profile unset.
func NewService(ctx context.Context, st store.Store, notifier Notifier, clock func() time.Time, logger *zap.Logger) Service {
	s := &service{
		store:    st,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}

	data, err := st.Load(ctx, profileKey)
	if err != nil {
		if err != store.ErrNotFound {
			logger.Error("failed to load profile", zap.Error(err))
		}
		return s
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Error("failed to decode persisted profile", zap.Error(err))
		return s
	}
	s.current = &p

	return s
}

// Current returns the profile, or nil when none has been set
func (s *service) Current(ctx context.Context) *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Update replaces the profile wholesale and stamps last-active
func (s *service) Update(ctx context.Context, req *UpdateProfileRequest) *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Profile{
		Name:                    req.Name,
		PreferredReminderTime:   req.PreferredReminderTime,
		PreferredSessionMinutes: req.PreferredSessionMinutes,
		Interests:               req.Interests,
		CompletedSessions:       req.CompletedSessions,
		CurrentStreak:           req.CurrentStreak,
		Timezone:                req.Timezone,
		LastActiveAt:            s.clock(),
	}
	s.current = p

	s.persist(ctx)

	if s.notifier != nil {
		s.notifier.Publish("profile.updated", p)
	}

	copied := *p
	return &copied
}

func (s *service) persist(ctx context.Context) {
	data, err := json.Marshal(s.current)
	if err != nil {
		s.logger.Error("failed to serialize profile", zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, profileKey, data); err != nil {
		s.logger.Error("failed to persist profile", zap.Error(err))
	}
}
