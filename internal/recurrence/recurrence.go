/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recurrence evaluates repetition definitions for broadcast
// schedules: a set of rules plus individually added and excluded dates,
// all anchored on a schedule's first air time. Occurrences keep the
// anchor's wall-clock time-of-day across DST transitions because they are
// generated in the anchor's zone, not by adding fixed offsets.
package recurrence

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// Rule is a single repetition pattern. A nil Until repeats forever.
type Rule struct {
	Freq      rrule.Frequency
	Interval  int
	ByWeekday []time.Weekday
	Until     *time.Time
}

// Recurrence combines zero or more rules with explicitly added dates and
// an exclusion set. An empty Recurrence describes a single airing at the
// anchor.
type Recurrence struct {
	Rules   []Rule
	Dates   []time.Time
	Exdates []time.Time
}

// Next is a pull cursor over an ascending occurrence sequence. It returns
// false once the sequence is exhausted and keeps returning false after.
type Next func() (time.Time, bool)

// IsEmpty reports whether the definition can never produce an occurrence
// beyond the anchor and carries no added dates.
func (r *Recurrence) IsEmpty() bool {
	return len(r.Rules) == 0 && len(r.Dates) == 0
}

// HasRecurrences reports whether the definition repeats beyond a single
// anchor airing.
func (r *Recurrence) HasRecurrences() bool {
	return len(r.Rules) > 0 || len(r.Dates) > 0
}

// ExcludeDate removes one occurrence from the sequence.
func (r *Recurrence) ExcludeDate(dt time.Time) {
	for _, ex := range r.Exdates {
		if ex.Equal(dt) {
			return
		}
	}
	r.Exdates = append(r.Exdates, dt)
}

// IncludeDate reinstates a previously excluded occurrence, or adds a
// standalone date to the sequence.
func (r *Recurrence) IncludeDate(dt time.Time) {
	for i, ex := range r.Exdates {
		if ex.Equal(dt) {
			r.Exdates = append(r.Exdates[:i], r.Exdates[i+1:]...)
			return
		}
	}
	for _, d := range r.Dates {
		if d.Equal(dt) {
			return
		}
	}
	r.Dates = append(r.Dates, dt)
}

// IsExcluded reports whether dt is in the exclusion set, compared after
// alignment to the anchor's wall clock.
func (r *Recurrence) IsExcluded(anchor, dt time.Time) bool {
	return containsTime(r.alignedExdates(anchor), dt)
}

// After returns the first occurrence at or after from (after from when
// inclusive is false).
func (r *Recurrence) After(anchor, from time.Time, inclusive bool) (time.Time, bool) {
	return r.Iterator(anchor, from, inclusive)()
}

// Before returns the last occurrence at or before to (before to when
// inclusive is false).
func (r *Recurrence) Before(anchor, to time.Time, inclusive bool) (time.Time, bool) {
	rules := r.activeRules(anchor)
	fixed := r.fixedDates(anchor)
	excluded := r.alignedExdates(anchor)

	cursor, inc := to, inclusive
	// Each round either lands on a valid occurrence or steps over one
	// exclusion, so the exclusion set bounds the number of rounds.
	for i := 0; i < len(r.Exdates)+1; i++ {
		var best time.Time
		for _, rr := range rules {
			if t := rr.Before(cursor, inc); !t.IsZero() && t.After(best) {
				best = t
			}
		}
		for _, d := range fixed {
			if d.After(cursor) || (!inc && d.Equal(cursor)) {
				continue
			}
			if d.After(best) {
				best = d
			}
		}
		if best.IsZero() {
			return time.Time{}, false
		}
		if !containsTime(excluded, best) {
			return best, true
		}
		cursor, inc = best, false
	}
	return time.Time{}, false
}

// Between returns every occurrence in [from, to], or (from, to) when
// inclusive is false. Callers with open-ended needs should prefer
// Iterator; Between materializes the whole range.
func (r *Recurrence) Between(anchor, from, to time.Time, inclusive bool) []time.Time {
	var out []time.Time
	next := r.Iterator(anchor, from, inclusive)
	for t, ok := next(); ok; t, ok = next() {
		if t.After(to) || (!inclusive && t.Equal(to)) {
			break
		}
		out = append(out, t)
	}
	return out
}

// First returns the earliest occurrence of the whole definition. Added
// dates may precede the anchor.
func (r *Recurrence) First(anchor time.Time) (time.Time, bool) {
	from := anchor
	for _, d := range r.Dates {
		if a := alignToAnchor(d, anchor); a.Before(from) {
			from = a
		}
	}
	return r.After(anchor, from, true)
}

// LastBound returns the latest instant any occurrence can fall on, or
// false when some rule repeats forever.
func (r *Recurrence) LastBound(anchor time.Time) (time.Time, bool) {
	bound := anchor
	for _, rule := range r.Rules {
		if rule.Until == nil {
			return time.Time{}, false
		}
		if u := alignToAnchor(*rule.Until, anchor); u.After(bound) {
			bound = u
		}
	}
	for _, d := range r.Dates {
		if a := alignToAnchor(d, anchor); a.After(bound) {
			bound = a
		}
	}
	return bound, true
}

// TruncateFrom caps every rule the day before cutoff and drops added
// dates falling at or after cutoff.
func (r *Recurrence) TruncateFrom(anchor, cutoff time.Time) {
	until := cutoff.AddDate(0, 0, -1)
	for i := range r.Rules {
		rule := &r.Rules[i]
		if rule.Until == nil || alignToAnchor(*rule.Until, anchor).After(alignToAnchor(until, anchor)) {
			u := until
			rule.Until = &u
		}
	}
	kept := r.Dates[:0]
	for _, d := range r.Dates {
		if alignToAnchor(d, anchor).Before(cutoff) {
			kept = append(kept, d)
		}
	}
	r.Dates = kept
}

// Iterator returns a lazy ascending cursor over occurrences at or after
// from (strictly after when inclusive is false). Rule streams, added
// dates and the anchor are merged; duplicates collapse and excluded
// dates are skipped.
func (r *Recurrence) Iterator(anchor, from time.Time, inclusive bool) Next {
	sources := make([]Next, 0, len(r.Rules)+1)
	for _, rr := range r.activeRules(anchor) {
		sources = append(sources, fastForward(Next(rr.Iterator()), from, inclusive))
	}
	fixed := r.fixedDates(anchor)
	sources = append(sources, fastForward(sliceSource(fixed), from, inclusive))
	return merge(sources, r.alignedExdates(anchor))
}

// activeRules compiles the rule set against the anchor, dropping rules
// that fail to compile. Malformed rules are rejected at parse time, so a
// drop here only guards hand-built values.
func (r *Recurrence) activeRules(anchor time.Time) []*rrule.RRule {
	rules := make([]*rrule.RRule, 0, len(r.Rules))
	for _, rule := range r.Rules {
		rr, err := rule.compile(anchor)
		if err != nil {
			continue
		}
		rules = append(rules, rr)
	}
	return rules
}

func (rule Rule) compile(anchor time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:     rule.Freq,
		Interval: rule.Interval,
		Dtstart:  anchor,
	}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}
	for _, wd := range rule.ByWeekday {
		opt.Byweekday = append(opt.Byweekday, weekdayToRRule[wd])
	}
	if rule.Until != nil {
		opt.Until = alignToAnchor(*rule.Until, anchor)
	}
	return rrule.NewRRule(opt)
}

// fixedDates returns the anchor (when still admitted) plus all added
// dates, aligned and sorted.
func (r *Recurrence) fixedDates(anchor time.Time) []time.Time {
	fixed := make([]time.Time, 0, len(r.Dates)+1)
	if r.anchorAdmitted(anchor) {
		fixed = append(fixed, anchor)
	}
	for _, d := range r.Dates {
		fixed = append(fixed, alignToAnchor(d, anchor))
	}
	sort.Slice(fixed, func(i, j int) bool { return fixed[i].Before(fixed[j]) })
	return fixed
}

// anchorAdmitted reports whether the anchor itself counts as an
// occurrence. Without rules the schedule fires exactly once, at the
// anchor. With rules the anchor stands only while at least one rule's
// until bound still admits it; a rule truncated to before its own start
// therefore produces nothing at all rather than a stray first airing.
func (r *Recurrence) anchorAdmitted(anchor time.Time) bool {
	if len(r.Rules) == 0 {
		return true
	}
	for _, rule := range r.Rules {
		if rule.Until == nil || !alignToAnchor(*rule.Until, anchor).Before(anchor) {
			return true
		}
	}
	return false
}

func (r *Recurrence) alignedExdates(anchor time.Time) []time.Time {
	if len(r.Exdates) == 0 {
		return nil
	}
	out := make([]time.Time, len(r.Exdates))
	for i, ex := range r.Exdates {
		out[i] = alignToAnchor(ex, anchor)
	}
	return out
}

// alignToAnchor combines the calendar date of dt with the anchor's
// wall-clock time-of-day, interpreted in the anchor's zone. Adding a
// fixed offset instead would drift one hour across DST transitions, and
// two zones can disagree about which date an instant falls on.
func alignToAnchor(dt, anchor time.Time) time.Time {
	loc := anchor.Location()
	d := dt.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(),
		anchor.Hour(), anchor.Minute(), anchor.Second(), 0, loc)
}

func containsTime(ts []time.Time, t time.Time) bool {
	for _, x := range ts {
		if x.Equal(t) {
			return true
		}
	}
	return false
}

func fastForward(src Next, from time.Time, inclusive bool) Next {
	return func() (time.Time, bool) {
		for {
			t, ok := src()
			if !ok {
				return time.Time{}, false
			}
			if t.Before(from) || (!inclusive && t.Equal(from)) {
				continue
			}
			return t, true
		}
	}
}

func sliceSource(ts []time.Time) Next {
	i := 0
	return func() (time.Time, bool) {
		if i >= len(ts) {
			return time.Time{}, false
		}
		t := ts[i]
		i++
		return t, true
	}
}

// merge combines ascending sources into one ascending stream, dropping
// duplicates and excluded instants.
func merge(sources []Next, excluded []time.Time) Next {
	heads := make([]*time.Time, len(sources))
	var last *time.Time
	advance := func(i int) {
		if t, ok := sources[i](); ok {
			heads[i] = &t
		} else {
			heads[i] = nil
		}
	}
	for i := range sources {
		advance(i)
	}
	return func() (time.Time, bool) {
		for {
			min := -1
			for i, h := range heads {
				if h == nil {
					continue
				}
				if min < 0 || h.Before(*heads[min]) {
					min = i
				}
			}
			if min < 0 {
				return time.Time{}, false
			}
			t := *heads[min]
			advance(min)
			if last != nil && t.Equal(*last) {
				continue
			}
			last = &t
			if containsTime(excluded, t) {
				continue
			}
			return t, true
		}
	}
}
