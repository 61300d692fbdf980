/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/events"
	"github.com/iago1460/django-radio-sub000/internal/models"
	"github.com/iago1460/django-radio-sub000/internal/telemetry"
)

// Rearrange reassigns the programme's episodes to its live transmission
// slots from `from` on. Episodes not yet aired (or with no date at all)
// are walked in (season, number) order against the merged slot stream;
// episodes left over when slots run out lose their issue date. The
// whole pass runs in one transaction: a half-applied rearrangement
// would leave two episodes claiming one slot.
//
// Re-running with the same inputs writes nothing, so callers may invoke
// it after every calendar mutation without further checks.
func (s *Service) Rearrange(ctx context.Context, programmeID string, from time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "calendar", "rearrange")
	defer span.End()
	telemetry.ProgrammeAttr(span, programmeID)

	started := time.Now()
	var assigned, unscheduled, updated int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var programme models.Programme
		if err := tx.First(&programme, "id = ?", programmeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		schedules, err := s.liveSchedules(ctx, tx, &programme)
		if err != nil {
			return err
		}
		// The slot stream counts an airing still in progress at `from`,
		// so the episode holding it must walk too: reach back by one
		// runtime, or the occupied slot would be handed to the next
		// episode and every later assignment would shift.
		cutoff := from.Add(-programme.Runtime())
		var pending []models.Episode
		err = tx.Where("programme_id = ?", programmeID).
			Where("issue_date IS NULL OR issue_date > ?", cutoff).
			Order("season ASC, number_in_season ASC").
			Find(&pending).Error
		if err != nil {
			return err
		}

		slots := Merge(schedules, from)
		for i := range pending {
			ep := &pending[i]
			tr, ok := slots.Next()
			if !ok {
				unscheduled++
				if ep.IssueDate == nil {
					continue
				}
				if err := tx.Model(ep).Update("issue_date", nil).Error; err != nil {
					return err
				}
				updated++
				continue
			}
			assigned++
			if ep.IssueDate != nil && ep.IssueDate.Equal(tr.StartsAt) {
				continue
			}
			if err := tx.Model(ep).Update("issue_date", tr.StartsAt).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("rearrange programme %s: %w", programmeID, err)
	}

	telemetry.RearrangePassesTotal.Inc()
	telemetry.RearrangeDuration.Observe(time.Since(started).Seconds())
	telemetry.EpisodesAssignedTotal.Add(float64(assigned))
	telemetry.EpisodesUnscheduledTotal.Add(float64(unscheduled))
	if updated > 0 {
		s.bus.Publish(events.EventEpisodesRearranged, events.Payload{
			"programme_id": programmeID,
			"assigned":     assigned,
			"unscheduled":  unscheduled,
		})
	}
	s.logger.Debug().
		Str("programme_id", programmeID).
		Int("assigned", assigned).
		Int("unscheduled", unscheduled).
		Int("updated", updated).
		Msg("rearranged episodes")
	return nil
}

// RearrangeAll re-runs rearrangement for every programme, used by the
// repair CLI.
func (s *Service) RearrangeAll(ctx context.Context, from time.Time) error {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Programme{}).Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Rearrange(ctx, id, from); err != nil {
			return err
		}
	}
	return nil
}

// CreateEpisode adds the next episode of a programme, scheduled at
// date. Numbering continues from the chronologically last episode when
// it sits in the current season, otherwise a fresh season starts at
// one.
func (s *Service) CreateEpisode(ctx context.Context, programmeID string, date time.Time, title, summary string) (*models.Episode, error) {
	var ep *models.Episode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var programme models.Programme
		if err := tx.First(&programme, "id = ?", programmeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		season, number := programme.CurrentSeason, 1
		var last models.Episode
		err := tx.Where("programme_id = ?", programmeID).
			Order("season DESC, number_in_season DESC").
			First(&last).Error
		switch {
		case err == nil && last.Season == programme.CurrentSeason:
			season, number = last.Season, last.NumberInSeason+1
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if title == "" {
			title = fmt.Sprintf("%s %dx%02d", programme.Name, season, number)
		}
		issue := date
		ep = &models.Episode{
			ID:             uuid.NewString(),
			ProgrammeID:    programmeID,
			Season:         season,
			NumberInSeason: number,
			Title:          title,
			Summary:        summary,
			IssueDate:      &issue,
		}
		return tx.Create(ep).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create episode: %w", err)
	}
	s.bus.Publish(events.EventEpisodeCreated, events.Payload{
		"programme_id": programmeID,
		"episode_id":   ep.ID,
	})
	return ep, nil
}

// RecordingSlot pairs an upcoming live transmission with the episode
// that will be recorded in it.
type RecordingSlot struct {
	Episode      *models.Episode     `json:"episode"`
	ScheduleID   string              `json:"schedule_id"`
	ProgrammeID  string              `json:"programme_id"`
	Programme    string              `json:"programme"`
	StartsAt     time.Time           `json:"starts_at"`
	EndsAt       time.Time           `json:"ends_at"`
	EmissionType models.EmissionType `json:"type"`
}

// NextRecordingSlots lists the live transmissions inside [start,
// start+window] together with their episodes, creating episodes that do
// not exist yet. This is the recorder ingestion contract.
func (s *Service) NextRecordingSlots(ctx context.Context, start time.Time, window time.Duration) ([]RecordingSlot, error) {
	var rows []models.Schedule
	err := s.db.WithContext(ctx).
		Preload("Programme").
		Where("type = ?", models.EmissionLive).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	schedules := make([]*models.Schedule, len(rows))
	for i := range rows {
		schedules[i] = &rows[i]
	}

	var out []RecordingSlot
	for _, tr := range Between(schedules, start, start.Add(window)) {
		// Match anywhere inside the transmission interval: an issue
		// date edited by hand may carry seconds the slot grid does not.
		var ep models.Episode
		err := s.db.WithContext(ctx).
			Where("programme_id = ? AND issue_date >= ? AND issue_date < ?",
				tr.Schedule.ProgrammeID, tr.StartsAt, tr.EndsAt()).
			Order("issue_date ASC").
			First(&ep).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, cerr := s.CreateEpisode(ctx, tr.Schedule.ProgrammeID, tr.StartsAt, "", "")
			if cerr != nil {
				return nil, cerr
			}
			ep = *created
		} else if err != nil {
			return nil, err
		}
		episode := ep
		out = append(out, RecordingSlot{
			Episode:      &episode,
			ScheduleID:   tr.Schedule.ID,
			ProgrammeID:  tr.Schedule.ProgrammeID,
			Programme:    tr.Schedule.Programme.Name,
			StartsAt:     tr.StartsAt,
			EndsAt:       tr.EndsAt(),
			EmissionType: tr.Schedule.Type,
		})
	}
	return out, nil
}
