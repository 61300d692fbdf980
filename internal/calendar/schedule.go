/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package calendar resolves schedules into concrete transmissions and
// keeps episodes assigned to live slots. Date queries here are pure;
// the Service in service.go adds persistence, caching and events.
package calendar

import (
	"time"

	"github.com/iago1460/django-radio-sub000/internal/models"
	"github.com/iago1460/django-radio-sub000/internal/recurrence"
)

// scheduleFrame bundles what every date query needs: the parsed
// recurrence, the anchor and the programme's validity window in the
// schedule's zone.
type scheduleFrame struct {
	rec      *recurrence.Recurrence
	anchor   time.Time
	runtime  time.Duration
	winStart time.Time
	winEnd   time.Time
	hasStart bool
	hasEnd   bool
}

func frameOf(s *models.Schedule) (scheduleFrame, bool) {
	rec, err := s.ParseRecurrence()
	if err != nil {
		return scheduleFrame{}, false
	}
	f := scheduleFrame{rec: rec, anchor: s.Anchor()}
	if p := s.Programme; p != nil {
		loc := s.Location()
		f.runtime = p.Runtime()
		f.winStart, f.hasStart = p.WindowStart(loc)
		f.winEnd, f.hasEnd = p.WindowEnd(loc)
	}
	return f, true
}

func exhausted() (time.Time, bool) { return time.Time{}, false }

// DateIterator returns a lazy ascending cursor over the schedule's
// occurrence dates, clamped to the programme window. An occurrence
// still on air at `after` is included: listeners asking "what is on
// from now" must see the programme that already started.
func DateIterator(s *models.Schedule, after time.Time) recurrence.Next {
	f, ok := frameOf(s)
	if !ok {
		return exhausted
	}
	if f.hasStart && after.Before(f.winStart) {
		after = f.winStart
	}
	next := f.rec.Iterator(f.anchor, after.Add(-f.runtime), true)
	return func() (time.Time, bool) {
		for {
			t, ok := next()
			if !ok {
				return time.Time{}, false
			}
			if f.hasEnd && !t.Before(f.winEnd) {
				return time.Time{}, false
			}
			if f.hasStart && t.Before(f.winStart) {
				continue
			}
			if !t.Add(f.runtime).After(after) {
				continue
			}
			return t, true
		}
	}
}

// DatesBetween returns the occurrence dates with any airtime inside
// [after, before], in order.
func DatesBetween(s *models.Schedule, after, before time.Time) []time.Time {
	var out []time.Time
	next := DateIterator(s, after)
	for t, ok := next(); ok; t, ok = next() {
		if t.After(before) {
			break
		}
		out = append(out, t)
	}
	return out
}

// DateAfter returns the first occurrence at or after the given instant
// (strictly after when inclusive is false), inside the programme window.
func DateAfter(s *models.Schedule, after time.Time, inclusive bool) (time.Time, bool) {
	f, ok := frameOf(s)
	if !ok {
		return time.Time{}, false
	}
	if f.hasStart && after.Before(f.winStart) {
		after, inclusive = f.winStart, true
	}
	t, found := f.rec.After(f.anchor, after, inclusive)
	if !found || (f.hasEnd && !t.Before(f.winEnd)) {
		return time.Time{}, false
	}
	return t, true
}

// DateBefore returns the last occurrence at or before the given
// instant, inside the programme window.
func DateBefore(s *models.Schedule, before time.Time) (time.Time, bool) {
	f, ok := frameOf(s)
	if !ok {
		return time.Time{}, false
	}
	inclusive := true
	if f.hasEnd && !before.Before(f.winEnd) {
		before, inclusive = f.winEnd, false
	}
	t, found := f.rec.Before(f.anchor, before, inclusive)
	if !found || (f.hasStart && t.Before(f.winStart)) {
		return time.Time{}, false
	}
	return t, true
}

// EffectiveStart returns the schedule's first airing, or false when the
// definition produces nothing inside the programme window.
func EffectiveStart(s *models.Schedule) (time.Time, bool) {
	f, ok := frameOf(s)
	if !ok {
		return time.Time{}, false
	}
	if f.hasStart {
		return DateAfter(s, f.winStart, true)
	}
	t, found := f.rec.First(f.anchor)
	if !found || (f.hasEnd && !t.Before(f.winEnd)) {
		return time.Time{}, false
	}
	return t, true
}

// EffectiveEnd returns the schedule's last airing. A rule that repeats
// forever under an open-ended programme has no effective end.
func EffectiveEnd(s *models.Schedule) (time.Time, bool) {
	f, ok := frameOf(s)
	if !ok {
		return time.Time{}, false
	}
	if f.hasEnd {
		return DateBefore(s, f.winEnd)
	}
	bound, bounded := f.rec.LastBound(f.anchor)
	if !bounded {
		return time.Time{}, false
	}
	t, found := f.rec.Before(f.anchor, bound, true)
	if !found || (f.hasStart && t.Before(f.winStart)) {
		return time.Time{}, false
	}
	return t, true
}
