/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import (
	"testing"
	"time"

	"github.com/teambition/rrule-go"
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func collect(next Next, limit int) []time.Time {
	var out []time.Time
	for t, ok := next(); ok && len(out) < limit; t, ok = next() {
		out = append(out, t)
	}
	return out
}

func TestSingleAiringWithoutRules(t *testing.T) {
	anchor := utc(2015, time.January, 1, 14, 0)
	rec := &Recurrence{}

	if !rec.IsEmpty() {
		t.Fatal("expected empty definition")
	}
	got, ok := rec.After(anchor, utc(2014, time.December, 1, 0, 0), true)
	if !ok || !got.Equal(anchor) {
		t.Fatalf("After = %v, %v; want anchor", got, ok)
	}
	if _, ok := rec.After(anchor, anchor, false); ok {
		t.Fatal("exclusive After at anchor should find nothing")
	}
	got, ok = rec.Before(anchor, utc(2015, time.February, 1, 0, 0), true)
	if !ok || !got.Equal(anchor) {
		t.Fatalf("Before = %v, %v; want anchor", got, ok)
	}
}

func TestDailyBetween(t *testing.T) {
	anchor := utc(2015, time.January, 1, 14, 0)
	rec := &Recurrence{Rules: []Rule{{Freq: rrule.DAILY}}}

	got := rec.Between(anchor, utc(2015, time.January, 5, 0, 0), utc(2015, time.January, 7, 0, 0), true)
	want := []time.Time{
		utc(2015, time.January, 5, 14, 0),
		utc(2015, time.January, 6, 14, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("Between returned %d occurrences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUntilBeforeAnchorYieldsNothing(t *testing.T) {
	anchor := utc(2015, time.June, 1, 14, 0)
	until := utc(2015, time.January, 1, 0, 0)
	rec := &Recurrence{Rules: []Rule{{Freq: rrule.WEEKLY, Until: &until}}}

	if _, ok := rec.After(anchor, utc(2014, time.January, 1, 0, 0), true); ok {
		t.Fatal("rule bounded before its anchor must produce no occurrences")
	}
	if _, ok := rec.First(anchor); ok {
		t.Fatal("First should report an empty sequence")
	}
}

func TestExcludeAndInclude(t *testing.T) {
	anchor := utc(2015, time.January, 1, 14, 0)
	rec := &Recurrence{Rules: []Rule{{Freq: rrule.DAILY}}}
	skipped := utc(2015, time.January, 3, 14, 0)

	rec.ExcludeDate(skipped)
	rec.ExcludeDate(skipped) // idempotent
	if len(rec.Exdates) != 1 {
		t.Fatalf("Exdates = %v, want one entry", rec.Exdates)
	}
	got, ok := rec.After(anchor, utc(2015, time.January, 3, 0, 0), true)
	if !ok || !got.Equal(utc(2015, time.January, 4, 14, 0)) {
		t.Fatalf("After skipped exclusion = %v, want Jan 4", got)
	}
	got, ok = rec.Before(anchor, utc(2015, time.January, 3, 23, 0), true)
	if !ok || !got.Equal(utc(2015, time.January, 2, 14, 0)) {
		t.Fatalf("Before skipped exclusion = %v, want Jan 2", got)
	}

	rec.IncludeDate(skipped)
	if len(rec.Exdates) != 0 {
		t.Fatalf("IncludeDate should drop the exclusion, got %v", rec.Exdates)
	}
	got, _ = rec.After(anchor, utc(2015, time.January, 3, 0, 0), true)
	if !got.Equal(skipped) {
		t.Fatalf("after reinstating, After = %v, want %v", got, skipped)
	}
}

func TestAddedDateOutsidePattern(t *testing.T) {
	anchor := utc(2015, time.January, 5, 10, 0) // a Monday
	until := utc(2015, time.February, 2, 0, 0)
	rec := &Recurrence{Rules: []Rule{{
		Freq:      rrule.WEEKLY,
		ByWeekday: []time.Weekday{time.Monday},
		Until:     &until,
	}}}
	rec.IncludeDate(utc(2015, time.January, 8, 0, 0)) // Thursday, wall clock realigned

	got := rec.Between(anchor, anchor, utc(2015, time.January, 13, 0, 0), true)
	want := []time.Time{
		utc(2015, time.January, 5, 10, 0),
		utc(2015, time.January, 8, 10, 0),
		utc(2015, time.January, 12, 10, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("Between = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDSTFallBackKeepsWallClock(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks fall back in Madrid on 25 October 2015.
	anchor := time.Date(2015, time.October, 23, 1, 0, 0, 0, madrid)
	rec := &Recurrence{Rules: []Rule{{Freq: rrule.DAILY}}}

	got := rec.Between(anchor, anchor, time.Date(2015, time.October, 27, 12, 0, 0, 0, madrid), true)
	if len(got) != 5 {
		t.Fatalf("expected 5 occurrences, got %v", got)
	}
	for i, occ := range got {
		local := occ.In(madrid)
		if local.Hour() != 1 || local.Minute() != 0 {
			t.Errorf("occurrence %d = %v, wall clock drifted", i, local)
		}
	}
	_, off0 := got[0].In(madrid).Zone()
	_, off4 := got[4].In(madrid).Zone()
	if off0 != 2*3600 || off4 != 1*3600 {
		t.Errorf("offsets = %d, %d; want CEST then CET", off0, off4)
	}
	// 24h between the last pre-transition and first post-transition wall
	// times would be wrong; the real gap is 25h.
	gap := got[3].Sub(got[2])
	if gap != 25*time.Hour {
		t.Errorf("gap across fall back = %v, want 25h", gap)
	}
}

func TestIteratorMergesAndDeduplicates(t *testing.T) {
	anchor := utc(2015, time.March, 2, 9, 0) // Monday
	rec := &Recurrence{
		Rules: []Rule{
			{Freq: rrule.WEEKLY, ByWeekday: []time.Weekday{time.Monday}},
			{Freq: rrule.DAILY, Interval: 7},
		},
	}
	// Both rules generate the identical Monday series.
	got := collect(rec.Iterator(anchor, anchor, true), 3)
	want := []time.Time{
		utc(2015, time.March, 2, 9, 0),
		utc(2015, time.March, 9, 9, 0),
		utc(2015, time.March, 16, 9, 0),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v (duplicates not collapsed?)", i, got[i], want[i])
		}
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	until := utc(2015, time.June, 1, 14, 0)
	rec := &Recurrence{
		Rules: []Rule{{
			Freq:      rrule.WEEKLY,
			Interval:  2,
			ByWeekday: []time.Weekday{time.Monday, time.Wednesday},
			Until:     &until,
		}},
		Dates:   []time.Time{utc(2015, time.February, 14, 14, 0)},
		Exdates: []time.Time{utc(2015, time.March, 2, 14, 0)},
	}

	parsed, err := Parse(rec.String())
	if err != nil {
		t.Fatalf("Parse(String()) failed: %v", err)
	}
	anchor := utc(2015, time.January, 5, 14, 0)
	from := utc(2015, time.January, 1, 0, 0)
	to := utc(2015, time.July, 1, 0, 0)
	a := rec.Between(anchor, from, to, true)
	b := parsed.Between(anchor, from, to, true)
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("round trip changed occurrence count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("occurrence %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, text := range []string{
		"FREQ=DAILY",
		"RDATE:not-a-time",
		"RRULE:FREQ=SOMETIMES",
	} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

func TestTruncateFrom(t *testing.T) {
	anchor := utc(2015, time.January, 1, 14, 0)
	rec := &Recurrence{Rules: []Rule{{Freq: rrule.DAILY}}}
	rec.IncludeDate(utc(2015, time.January, 20, 14, 0))

	rec.TruncateFrom(anchor, utc(2015, time.January, 10, 14, 0))

	if len(rec.Dates) != 0 {
		t.Fatalf("added date past cutoff kept: %v", rec.Dates)
	}
	last, ok := rec.Before(anchor, utc(2016, time.January, 1, 0, 0), true)
	if !ok || !last.Equal(utc(2015, time.January, 9, 14, 0)) {
		t.Fatalf("last occurrence = %v, want Jan 9", last)
	}
}
