package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iago1460/django-radio-sub000/internal/models"
)

func reloadSchedules(t *testing.T, svc *Service, programmeID string) []models.Schedule {
	t.Helper()
	var rows []models.Schedule
	if err := svc.db.Where("programme_id = ?", programmeID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("reload schedules: %v", err)
	}
	return rows
}

func TestMoveOccurrenceSplitsRecurringSchedule(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	occurrence := utc(2015, time.June, 8, 14, 0)
	newStart := utc(2015, time.June, 9, 18, 0)
	if err := svc.MoveOccurrence(ctx, sched.ID, occurrence, newStart); err != nil {
		t.Fatalf("move occurrence: %v", err)
	}

	rows := reloadSchedules(t, svc, p.ID)
	if len(rows) != 2 {
		t.Fatalf("got %d schedules, want original plus split child", len(rows))
	}

	var original, child *models.Schedule
	for i := range rows {
		if rows[i].ID == sched.ID {
			original = &rows[i]
		} else {
			child = &rows[i]
		}
	}
	if original == nil || child == nil {
		t.Fatalf("missing original or child schedule: %v", rows)
	}

	original.Programme = p
	rec, err := original.ParseRecurrence()
	if err != nil {
		t.Fatalf("parse original recurrence: %v", err)
	}
	if !rec.IsExcluded(original.Anchor(), occurrence) {
		t.Fatalf("original schedule does not exclude %s", occurrence)
	}

	if !child.StartDT.Equal(newStart) {
		t.Fatalf("child start = %s, want %s", child.StartDT, newStart)
	}
	if child.FromCollectionID == nil || *child.FromCollectionID != sched.ID {
		t.Fatalf("child FromCollectionID = %v, want %s", child.FromCollectionID, sched.ID)
	}
	if child.HasRecurrences() {
		t.Fatalf("split child must be a single airing, got %q", child.Recurrence)
	}

	// The guide shows the airing at its new time only.
	child.Programme = p
	week := Between([]*models.Schedule{original, child}, utc(2015, time.June, 7, 0, 0), utc(2015, time.June, 13, 0, 0))
	if len(week) != 1 || !week[0].StartsAt.Equal(newStart) {
		t.Fatalf("week transmissions = %v, want a single one at %s", week, newStart)
	}
}

func TestMoveOccurrenceBackMergesIntoCollection(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	occurrence := utc(2015, time.June, 8, 14, 0)
	newStart := utc(2015, time.June, 9, 18, 0)
	if err := svc.MoveOccurrence(ctx, sched.ID, occurrence, newStart); err != nil {
		t.Fatalf("move occurrence: %v", err)
	}

	rows := reloadSchedules(t, svc, p.ID)
	var childID string
	for _, row := range rows {
		if row.ID != sched.ID {
			childID = row.ID
		}
	}
	if childID == "" {
		t.Fatal("split child not found")
	}

	// Moving the detached airing back onto the hole re-joins the
	// collection instead of keeping a fragment around.
	if err := svc.MoveOccurrence(ctx, childID, newStart, occurrence); err != nil {
		t.Fatalf("move occurrence back: %v", err)
	}

	rows = reloadSchedules(t, svc, p.ID)
	if len(rows) != 1 || rows[0].ID != sched.ID {
		t.Fatalf("schedules after re-join = %v, want only the original", rows)
	}

	rows[0].Programme = p
	got, ok := DateAfter(&rows[0], occurrence, true)
	if !ok || !got.Equal(occurrence) {
		t.Fatalf("re-joined schedule does not air at %s again (got %v %v)", occurrence, got, ok)
	}
}

func TestMoveOccurrenceRejectsNonOccurrence(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	err := svc.MoveOccurrence(ctx, sched.ID, utc(2015, time.June, 2, 14, 0), utc(2015, time.June, 3, 14, 0))
	wantValidationCode(t, err, "occurrence_unknown")
}

func TestMoveOccurrenceUnknownSchedule(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	err := svc.MoveOccurrence(context.Background(), "missing", utc(2015, time.June, 1, 14, 0), utc(2015, time.June, 2, 14, 0))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteOccurrenceOnlyThis(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	occurrence := utc(2015, time.June, 8, 14, 0)
	if err := svc.DeleteOccurrence(ctx, sched.ID, occurrence, DeleteOnlyThis); err != nil {
		t.Fatalf("delete occurrence: %v", err)
	}

	reloaded, err := svc.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("reload schedule: %v", err)
	}
	dates := DatesBetween(reloaded, utc(2015, time.June, 1, 0, 0), utc(2015, time.June, 16, 0, 0))
	want := []time.Time{utc(2015, time.June, 1, 14, 0), utc(2015, time.June, 15, 14, 0)}
	if len(dates) != len(want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("dates[%d] = %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestDeleteOccurrenceFollowingTruncates(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	if err := svc.DeleteOccurrence(ctx, sched.ID, utc(2015, time.June, 15, 14, 0), DeleteFollowing); err != nil {
		t.Fatalf("delete following: %v", err)
	}

	reloaded, err := svc.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("reload schedule: %v", err)
	}
	dates := DatesBetween(reloaded, utc(2015, time.June, 1, 0, 0), utc(2016, time.June, 1, 0, 0))
	want := []time.Time{utc(2015, time.June, 1, 14, 0), utc(2015, time.June, 8, 14, 0)}
	if len(dates) != len(want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	if reloaded.EffectiveEnd == nil || !reloaded.EffectiveEnd.Equal(utc(2015, time.June, 8, 14, 0)) {
		t.Fatalf("effective end = %v, want 2015-06-08 14:00", reloaded.EffectiveEnd)
	}
}

func TestDeleteOccurrenceAllRemovesSchedule(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	if err := svc.DeleteOccurrence(ctx, sched.ID, time.Time{}, DeleteAll); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if _, err := svc.GetSchedule(ctx, sched.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound after delete all", err)
	}
}

func TestDeleteLastAiringRemovesSchedule(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "One Off", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "")

	if err := svc.DeleteOccurrence(ctx, sched.ID, utc(2015, time.June, 1, 14, 0), DeleteOnlyThis); err != nil {
		t.Fatalf("delete only this: %v", err)
	}
	if _, err := svc.GetSchedule(ctx, sched.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound for the emptied schedule", err)
	}
}

func TestDeleteFollowingFirstOccurrenceRemovesSchedule(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Weekly Quiz", 60)
	sched := createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=WEEKLY")

	// Truncating at the anchor leaves nothing to air.
	if err := svc.DeleteOccurrence(ctx, sched.ID, utc(2015, time.June, 1, 14, 0), DeleteFollowing); err != nil {
		t.Fatalf("delete following: %v", err)
	}
	if _, err := svc.GetSchedule(ctx, sched.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound for the emptied schedule", err)
	}
}
