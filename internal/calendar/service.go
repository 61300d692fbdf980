/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/cache"
	"github.com/iago1460/django-radio-sub000/internal/events"
	"github.com/iago1460/django-radio-sub000/internal/models"
)

// ErrNotFound marks lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a mutation with a machine-readable code.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationErr(code, format string, args ...any) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Service owns calendar mutations. Every write path validates, saves,
// recomputes cached effective bounds, invalidates the cache, publishes
// an event and re-runs episode rearrangement. Nothing hangs off ORM
// hooks; the flow is explicit.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	bus    *events.Bus
	logger zerolog.Logger

	// one mutex per programme, so concurrent editor calls on the same
	// programme serialize while distinct programmes proceed in parallel
	locks sync.Map

	now func() time.Time
}

// New wires a calendar service. cache may be nil.
func New(db *gorm.DB, c *cache.Cache, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		bus:    bus,
		logger: logger.With().Str("component", "calendar").Logger(),
		now:    time.Now,
	}
}

func (s *Service) lockProgramme(programmeID string) func() {
	v, _ := s.locks.LoadOrStore(programmeID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetProgramme loads one programme, trying the cache first.
func (s *Service) GetProgramme(ctx context.Context, id string) (*models.Programme, error) {
	if s.cache != nil {
		if p, ok := s.cache.GetProgramme(ctx, id); ok {
			return p, nil
		}
	}
	var p models.Programme
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetProgramme(ctx, &p)
	}
	return &p, nil
}

// SaveProgramme validates and persists a programme, then re-runs
// rearrangement since a window or runtime change shifts every slot.
func (s *Service) SaveProgramme(ctx context.Context, p *models.Programme) error {
	if p.Name == "" {
		return validationErr("name_required", "programme name must not be empty")
	}
	if p.RuntimeMinutes <= 0 {
		return validationErr("runtime_invalid", "runtime must be positive, got %d", p.RuntimeMinutes)
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return validationErr("window_inverted", "end date precedes start date")
	}
	if p.Slug == "" {
		p.Slug = models.Slugify(p.Name)
	}
	if p.CurrentSeason <= 0 {
		p.CurrentSeason = 1
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save programme: %w", err)
	}
	s.invalidateProgramme(ctx, p.ID)
	s.bus.Publish(events.EventProgrammeUpdated, events.Payload{"programme_id": p.ID})
	return s.Rearrange(ctx, p.ID, s.now())
}

// DeleteProgramme removes a programme with its schedules and episodes.
func (s *Service) DeleteProgramme(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Programme{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&models.Schedule{}, "programme_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Episode{}, "programme_id = ?", id).Error
	})
	if err != nil {
		return err
	}
	s.invalidateProgramme(ctx, id)
	s.bus.Publish(events.EventProgrammeDeleted, events.Payload{"programme_id": id})
	return nil
}

// GetSchedule loads one schedule with its programme attached.
func (s *Service) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var sched models.Schedule
	err := s.db.WithContext(ctx).Preload("Programme").First(&sched, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sched, nil
}

// SaveSchedule validates and persists a schedule definition, then
// re-runs rearrangement for its programme.
func (s *Service) SaveSchedule(ctx context.Context, sched *models.Schedule) error {
	var programme models.Programme
	if err := s.db.WithContext(ctx).First(&programme, "id = ?", sched.ProgrammeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validationErr("programme_unknown", "schedule references missing programme %s", sched.ProgrammeID)
		}
		return err
	}
	sched.Programme = &programme
	if err := s.validateSchedule(ctx, sched); err != nil {
		return err
	}
	computeEffectiveBounds(sched)
	if err := s.db.WithContext(ctx).Save(sched).Error; err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	s.invalidateProgramme(ctx, sched.ProgrammeID)
	s.bus.Publish(events.EventScheduleUpdated, events.Payload{
		"schedule_id":  sched.ID,
		"programme_id": sched.ProgrammeID,
	})
	return s.Rearrange(ctx, sched.ProgrammeID, s.now())
}

// DeleteSchedule removes a schedule and rearranges the programme's
// episodes over the slots that remain.
func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	sched, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Schedule{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	s.invalidateProgramme(ctx, sched.ProgrammeID)
	s.bus.Publish(events.EventScheduleDeleted, events.Payload{
		"schedule_id":  id,
		"programme_id": sched.ProgrammeID,
	})
	return s.Rearrange(ctx, sched.ProgrammeID, s.now())
}

func (s *Service) validateSchedule(ctx context.Context, sched *models.Schedule) error {
	if !sched.Type.Valid() {
		return validationErr("type_invalid", "unknown emission type %q", sched.Type)
	}
	if _, err := time.LoadLocation(sched.Timezone); err != nil {
		return validationErr("timezone_invalid", "unknown timezone %q", sched.Timezone)
	}
	if _, err := sched.ParseRecurrence(); err != nil {
		return validationErr("recurrence_invalid", "%v", err)
	}
	p := sched.Programme
	loc := sched.Location()
	anchor := sched.Anchor()
	if ws, ok := p.WindowStart(loc); ok && anchor.Before(ws) {
		return validationErr("start_outside_window", "start %s precedes programme window", anchor.Format(time.RFC3339))
	}
	if we, ok := p.WindowEnd(loc); ok && !anchor.Before(we) {
		return validationErr("start_outside_window", "start %s is past the programme window", anchor.Format(time.RFC3339))
	}
	if sched.IsLive() {
		if sched.SourceID != nil {
			return validationErr("source_on_live", "live schedules cannot replay a source")
		}
		return nil
	}
	if sched.SourceID != nil {
		var source models.Schedule
		if err := s.db.WithContext(ctx).First(&source, "id = ?", *sched.SourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return validationErr("source_unknown", "source schedule %s does not exist", *sched.SourceID)
			}
			return err
		}
		if !source.IsLive() {
			return validationErr("source_not_live", "source schedule %s is not live", source.ID)
		}
		if source.ProgrammeID != sched.ProgrammeID {
			return validationErr("source_mismatch", "source schedule belongs to another programme")
		}
	}
	return nil
}

// computeEffectiveBounds refreshes the denormalized first/last airing
// columns used by listing queries.
func computeEffectiveBounds(sched *models.Schedule) {
	sched.EffectiveStart, sched.EffectiveEnd = nil, nil
	if t, ok := EffectiveStart(sched); ok {
		sched.EffectiveStart = &t
	}
	if t, ok := EffectiveEnd(sched); ok {
		sched.EffectiveEnd = &t
	}
}

// liveSchedules returns the programme's live schedules, programme
// attached, trying the cache first.
func (s *Service) liveSchedules(ctx context.Context, tx *gorm.DB, programme *models.Programme) ([]*models.Schedule, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetLiveSchedules(ctx, programme.ID); ok {
			for _, sched := range cached {
				sched.Programme = programme
			}
			return cached, nil
		}
	}
	var rows []models.Schedule
	err := tx.WithContext(ctx).
		Where("programme_id = ? AND type = ?", programme.ID, models.EmissionLive).
		Order("start_dt ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.Schedule, len(rows))
	for i := range rows {
		rows[i].Programme = programme
		out[i] = &rows[i]
	}
	if s.cache != nil {
		s.cache.SetLiveSchedules(ctx, programme.ID, out)
	}
	return out, nil
}

func (s *Service) invalidateProgramme(ctx context.Context, programmeID string) {
	if s.cache != nil {
		s.cache.InvalidateProgramme(ctx, programmeID)
	}
}
