/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/events"
	"github.com/iago1460/django-radio-sub000/internal/models"
	"github.com/iago1460/django-radio-sub000/internal/recurrence"
	"github.com/iago1460/django-radio-sub000/internal/telemetry"
)

// DeleteScope selects how much of a schedule DeleteOccurrence removes.
type DeleteScope string

const (
	DeleteOnlyThis  DeleteScope = "only_this"
	DeleteFollowing DeleteScope = "this_and_following"
	DeleteAll       DeleteScope = "all"
)

// MoveOccurrence relocates one concrete airing of a schedule to a new
// start. Moving a recurring occurrence splits off a single-airing child
// schedule that remembers its collection of origin, so moving it again
// later (or back onto an excluded date of a sibling) re-joins instead
// of piling up fragments. Calls for the same programme serialize;
// edits to distinct programmes proceed concurrently.
func (s *Service) MoveOccurrence(ctx context.Context, scheduleID string, occurrence, newStart time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "calendar", "move_occurrence")
	defer span.End()

	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	telemetry.ProgrammeAttr(span, sched.ProgrammeID)
	unlock := s.lockProgramme(sched.ProgrammeID)
	defer unlock()

	if newStart.Equal(occurrence) {
		return nil
	}
	if err := s.checkOccurrence(sched, occurrence); err != nil {
		return err
	}
	loc := sched.Location()
	if ws, ok := sched.Programme.WindowStart(loc); ok && newStart.Before(ws) {
		return validationErr("start_outside_window", "new start precedes programme window")
	}
	if we, ok := sched.Programme.WindowEnd(loc); ok && !newStart.Before(we) {
		return validationErr("start_outside_window", "new start is past the programme window")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.moveOccurrenceTx(tx, sched, occurrence, newStart)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.invalidateProgramme(ctx, sched.ProgrammeID)
	s.bus.Publish(events.EventOccurrenceMoved, events.Payload{
		"schedule_id":  scheduleID,
		"programme_id": sched.ProgrammeID,
		"occurrence":   occurrence,
		"new_start":    newStart,
	})
	return s.Rearrange(ctx, sched.ProgrammeID, s.now())
}

func (s *Service) moveOccurrenceTx(tx *gorm.DB, sched *models.Schedule, occurrence, newStart time.Time) error {
	// A sibling schedule of the same programme and type may already
	// exclude newStart: the occurrence is moving back onto a hole an
	// earlier edit tore open. Reinstating the hole beats creating a
	// duplicate definition for the same instant.
	host, err := findExcludingSchedule(tx, sched, newStart)
	if err != nil {
		return err
	}
	if host != nil && host.ID == sched.ID {
		return mutateRecurrence(tx, sched, func(rec *recurrenceEdit) {
			rec.IncludeDate(newStart)
			rec.ExcludeDate(occurrence)
		})
	}
	if host != nil {
		if err := mutateRecurrence(tx, host, func(rec *recurrenceEdit) {
			rec.IncludeDate(newStart)
		}); err != nil {
			return err
		}
		if sched.HasRecurrences() {
			return mutateRecurrence(tx, sched, func(rec *recurrenceEdit) {
				rec.ExcludeDate(occurrence)
			})
		}
		// The whole single-airing schedule just merged into the host.
		return tx.Delete(&models.Schedule{}, "id = ?", sched.ID).Error
	}
	if sched.HasRecurrences() {
		if err := mutateRecurrence(tx, sched, func(rec *recurrenceEdit) {
			rec.ExcludeDate(occurrence)
		}); err != nil {
			return err
		}
		split := &models.Schedule{
			ID:               uuid.NewString(),
			ProgrammeID:      sched.ProgrammeID,
			Type:             sched.Type,
			StartDT:          newStart,
			Timezone:         sched.Timezone,
			SourceID:         sched.SourceID,
			FromCollectionID: &sched.ID,
			Programme:        sched.Programme,
		}
		computeEffectiveBounds(split)
		return tx.Create(split).Error
	}
	// Single airing: move the schedule itself.
	sched.StartDT = newStart
	computeEffectiveBounds(sched)
	return tx.Save(sched).Error
}

// DeleteOccurrence removes airings of a schedule according to scope:
// one occurrence, the occurrence and everything after it, or the whole
// schedule. A schedule whose last airing is removed is deleted rather
// than kept as an empty shell.
func (s *Service) DeleteOccurrence(ctx context.Context, scheduleID string, occurrence time.Time, scope DeleteScope) error {
	ctx, span := telemetry.StartSpan(ctx, "calendar", "delete_occurrence")
	defer span.End()

	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	telemetry.ProgrammeAttr(span, sched.ProgrammeID)
	unlock := s.lockProgramme(sched.ProgrammeID)
	defer unlock()

	if scope != DeleteAll {
		if err := s.checkOccurrence(sched, occurrence); err != nil {
			return err
		}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch scope {
		case DeleteAll:
			return tx.Delete(&models.Schedule{}, "id = ?", sched.ID).Error
		case DeleteOnlyThis:
			if !sched.HasRecurrences() {
				return tx.Delete(&models.Schedule{}, "id = ?", sched.ID).Error
			}
			return mutateRecurrence(tx, sched, func(rec *recurrenceEdit) {
				rec.ExcludeDate(occurrence)
			})
		case DeleteFollowing:
			if !sched.HasRecurrences() {
				return tx.Delete(&models.Schedule{}, "id = ?", sched.ID).Error
			}
			anchor := sched.Anchor()
			return mutateRecurrence(tx, sched, func(rec *recurrenceEdit) {
				rec.TruncateFrom(anchor, occurrence)
			})
		default:
			return validationErr("scope_invalid", "unknown delete scope %q", scope)
		}
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.invalidateProgramme(ctx, sched.ProgrammeID)
	s.bus.Publish(events.EventOccurrenceDeleted, events.Payload{
		"schedule_id":  scheduleID,
		"programme_id": sched.ProgrammeID,
		"occurrence":   occurrence,
		"scope":        string(scope),
	})
	return s.Rearrange(ctx, sched.ProgrammeID, s.now())
}

// checkOccurrence verifies the instant really is an airing of the
// schedule before an edit acts on it.
func (s *Service) checkOccurrence(sched *models.Schedule, occurrence time.Time) error {
	t, ok := DateAfter(sched, occurrence, true)
	if !ok || !t.Equal(occurrence) {
		return validationErr("occurrence_unknown", "%s is not an occurrence of schedule %s",
			occurrence.Format(time.RFC3339), sched.ID)
	}
	return nil
}

// findExcludingSchedule looks for a schedule of the same programme and
// emission type that currently excludes the given instant.
func findExcludingSchedule(tx *gorm.DB, sched *models.Schedule, dt time.Time) (*models.Schedule, error) {
	var siblings []models.Schedule
	err := tx.Where("programme_id = ? AND type = ?", sched.ProgrammeID, sched.Type).
		Order("id ASC").
		Find(&siblings).Error
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		rec, err := siblings[i].ParseRecurrence()
		if err != nil {
			continue
		}
		if rec.IsExcluded(siblings[i].Anchor(), dt) {
			siblings[i].Programme = sched.Programme
			return &siblings[i], nil
		}
	}
	return nil, nil
}

type recurrenceEdit = recurrence.Recurrence

// mutateRecurrence applies fn to the schedule's parsed recurrence and
// saves the result, deleting the schedule outright when nothing is left
// to air.
func mutateRecurrence(tx *gorm.DB, sched *models.Schedule, fn func(*recurrenceEdit)) error {
	rec, err := sched.ParseRecurrence()
	if err != nil {
		return fmt.Errorf("schedule %s: %w", sched.ID, err)
	}
	fn(rec)
	sched.SetRecurrence(rec)
	computeEffectiveBounds(sched)
	if sched.EffectiveStart == nil {
		return tx.Delete(&models.Schedule{}, "id = ?", sched.ID).Error
	}
	return tx.Save(sched).Error
}
