package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/iago1460/django-radio-sub000/internal/models"
)

func reloadEpisodes(t *testing.T, svc *Service, programmeID string) []models.Episode {
	t.Helper()
	var eps []models.Episode
	err := svc.db.Where("programme_id = ?", programmeID).
		Order("season ASC, number_in_season ASC").
		Find(&eps).Error
	if err != nil {
		t.Fatalf("reload episodes: %v", err)
	}
	return eps
}

func TestRearrangeAssignsEpisodesInOrder(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY")

	// Created with dates out of line with the calendar on purpose.
	for _, d := range []time.Time{
		utc(2015, time.June, 9, 14, 0),
		utc(2015, time.June, 3, 14, 0),
		utc(2015, time.June, 7, 14, 0),
	} {
		if _, err := svc.CreateEpisode(ctx, p.ID, d, "", ""); err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}

	if err := svc.Rearrange(ctx, p.ID, utc(2015, time.June, 1, 0, 0)); err != nil {
		t.Fatalf("rearrange: %v", err)
	}

	eps := reloadEpisodes(t, svc, p.ID)
	want := []time.Time{
		utc(2015, time.June, 1, 14, 0),
		utc(2015, time.June, 2, 14, 0),
		utc(2015, time.June, 3, 14, 0),
	}
	if len(eps) != len(want) {
		t.Fatalf("got %d episodes, want %d", len(eps), len(want))
	}
	for i := range want {
		if eps[i].IssueDate == nil || !eps[i].IssueDate.Equal(want[i]) {
			t.Fatalf("episode %dx%02d issue date = %v, want %s",
				eps[i].Season, eps[i].NumberInSeason, eps[i].IssueDate, want[i])
		}
	}
}

func TestRearrangeUnschedulesSurplusEpisodes(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Mini Series", 60)
	// Two slots only: June 1st and 2nd.
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY;UNTIL=20150602T140000Z")

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 1+i, 14, 0), "", ""); err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}

	if err := svc.Rearrange(ctx, p.ID, utc(2015, time.June, 1, 0, 0)); err != nil {
		t.Fatalf("rearrange: %v", err)
	}

	eps := reloadEpisodes(t, svc, p.ID)
	if len(eps) != 3 {
		t.Fatalf("got %d episodes, want 3", len(eps))
	}
	if eps[0].IssueDate == nil || eps[1].IssueDate == nil {
		t.Fatalf("first two episodes must keep slots, got %v and %v", eps[0].IssueDate, eps[1].IssueDate)
	}
	if eps[2].IssueDate != nil {
		t.Fatalf("surplus episode kept issue date %s, want nil", eps[2].IssueDate)
	}
}

func TestRearrangeIsIdempotent(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY")
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 1+i, 14, 0), "", ""); err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}

	from := utc(2015, time.June, 1, 0, 0)
	if err := svc.Rearrange(ctx, p.ID, from); err != nil {
		t.Fatalf("first rearrange: %v", err)
	}
	first := reloadEpisodes(t, svc, p.ID)

	// A second pass over unchanged inputs must write nothing.
	rearranged := svc.bus.Subscribe("episodes.rearranged")
	if err := svc.Rearrange(ctx, p.ID, from); err != nil {
		t.Fatalf("second rearrange: %v", err)
	}
	select {
	case payload := <-rearranged:
		t.Fatalf("second pass published a change: %v", payload)
	default:
	}

	second := reloadEpisodes(t, svc, p.ID)
	for i := range first {
		if !first[i].IssueDate.Equal(*second[i].IssueDate) {
			t.Fatalf("episode %d moved from %s to %s", i, first[i].IssueDate, second[i].IssueDate)
		}
	}
}

func TestRearrangeMidAiringKeepsAssignments(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY")
	for i := 0; i < 3; i++ {
		if _, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 1+i, 14, 0), "", ""); err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}
	if err := svc.Rearrange(ctx, p.ID, utc(2015, time.June, 1, 0, 0)); err != nil {
		t.Fatalf("first rearrange: %v", err)
	}

	// Pivot while episode one is on air. Its slot is still in the
	// stream, so it must keep it; nothing may shift forward.
	rearranged := svc.bus.Subscribe("episodes.rearranged")
	if err := svc.Rearrange(ctx, p.ID, utc(2015, time.June, 1, 14, 30)); err != nil {
		t.Fatalf("mid-airing rearrange: %v", err)
	}
	select {
	case payload := <-rearranged:
		t.Fatalf("mid-airing pass published a change: %v", payload)
	default:
	}

	eps := reloadEpisodes(t, svc, p.ID)
	want := []time.Time{
		utc(2015, time.June, 1, 14, 0),
		utc(2015, time.June, 2, 14, 0),
		utc(2015, time.June, 3, 14, 0),
	}
	seen := map[string]int{}
	for i := range want {
		if eps[i].IssueDate == nil || !eps[i].IssueDate.Equal(want[i]) {
			t.Fatalf("episode %dx%02d issue date = %v, want %s",
				eps[i].Season, eps[i].NumberInSeason, eps[i].IssueDate, want[i])
		}
		seen[eps[i].IssueDate.UTC().String()]++
	}
	for slot, n := range seen {
		if n > 1 {
			t.Fatalf("slot %s assigned to %d episodes", slot, n)
		}
	}
}

func TestRearrangeLeavesAiredEpisodesAlone(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY")
	for i := 0; i < 3; i++ {
		if _, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 1+i, 14, 0), "", ""); err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}

	// Pivot past the first airing: episode one is history and keeps its
	// date, the rest shift onto the remaining slots.
	if err := svc.Rearrange(ctx, p.ID, utc(2015, time.June, 2, 0, 0)); err != nil {
		t.Fatalf("rearrange: %v", err)
	}

	eps := reloadEpisodes(t, svc, p.ID)
	want := []time.Time{
		utc(2015, time.June, 1, 14, 0),
		utc(2015, time.June, 2, 14, 0),
		utc(2015, time.June, 3, 14, 0),
	}
	for i := range want {
		if eps[i].IssueDate == nil || !eps[i].IssueDate.Equal(want[i]) {
			t.Fatalf("episode %d issue date = %v, want %s", i, eps[i].IssueDate, want[i])
		}
	}
}

func TestCreateEpisodeNumbering(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)

	first, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 1, 14, 0), "", "")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if first.Season != 1 || first.NumberInSeason != 1 {
		t.Fatalf("first episode = %dx%02d, want 1x01", first.Season, first.NumberInSeason)
	}
	if first.Title != "Daily News 1x01" {
		t.Fatalf("default title = %q, want %q", first.Title, "Daily News 1x01")
	}

	second, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 2, 14, 0), "Special", "")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if second.Season != 1 || second.NumberInSeason != 2 {
		t.Fatalf("second episode = %dx%02d, want 1x02", second.Season, second.NumberInSeason)
	}
	if second.Title != "Special" {
		t.Fatalf("explicit title = %q, want Special", second.Title)
	}

	// Bumping the current season restarts numbering.
	p.CurrentSeason = 2
	if err := svc.SaveProgramme(ctx, p); err != nil {
		t.Fatalf("save programme: %v", err)
	}
	third, err := svc.CreateEpisode(ctx, p.ID, utc(2015, time.June, 3, 14, 0), "", "")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if third.Season != 2 || third.NumberInSeason != 1 {
		t.Fatalf("third episode = %dx%02d, want 2x01", third.Season, third.NumberInSeason)
	}
}

func TestNextRecordingSlotsCreatesMissingEpisodes(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY")

	slots, err := svc.NextRecordingSlots(ctx, utc(2015, time.June, 1, 0, 0), 48*time.Hour)
	if err != nil {
		t.Fatalf("next recording slots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	for i, slot := range slots {
		if slot.Episode == nil {
			t.Fatalf("slot %d has no episode", i)
		}
		if slot.Episode.IssueDate == nil || !slot.Episode.IssueDate.Equal(slot.StartsAt) {
			t.Fatalf("slot %d episode date = %v, want %s", i, slot.Episode.IssueDate, slot.StartsAt)
		}
		if !slot.EndsAt.Equal(slot.StartsAt.Add(time.Hour)) {
			t.Fatalf("slot %d ends at %s, want one hour after start", i, slot.EndsAt)
		}
	}

	// A second query reuses the episodes created by the first.
	again, err := svc.NextRecordingSlots(ctx, utc(2015, time.June, 1, 0, 0), 48*time.Hour)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	var count int64
	svc.db.Model(&models.Episode{}).Where("programme_id = ?", p.ID).Count(&count)
	if count != 2 {
		t.Fatalf("episode count = %d, want 2", count)
	}
	for i := range slots {
		if again[i].Episode.ID != slots[i].Episode.ID {
			t.Fatalf("slot %d episode changed between queries", i)
		}
	}
}

func TestNextRecordingSlotsMatchesDriftedIssueDate(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p := createProgramme(t, svc, "Daily News", 60)
	createSchedule(t, svc, p, utc(2015, time.June, 1, 14, 0), "RRULE:FREQ=DAILY")

	// Hand-edited issue date carrying seconds the slot grid does not.
	drifted := time.Date(2015, time.June, 1, 14, 0, 7, 0, time.UTC)
	created, err := svc.CreateEpisode(ctx, p.ID, drifted, "", "")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}

	slots, err := svc.NextRecordingSlots(ctx, utc(2015, time.June, 1, 0, 0), 24*time.Hour)
	if err != nil {
		t.Fatalf("next recording slots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if slots[0].Episode.ID != created.ID {
		t.Fatalf("slot episode = %s, want the existing episode %s", slots[0].Episode.ID, created.ID)
	}
	var count int64
	svc.db.Model(&models.Episode{}).Where("programme_id = ?", p.ID).Count(&count)
	if count != 1 {
		t.Fatalf("episode count = %d, want 1", count)
	}
}
