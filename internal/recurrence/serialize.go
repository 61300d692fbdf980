/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Stored form is one element per line: RRULE:, RDATE: and EXDATE: lines
// with times in UTC basic format. Parse(rec.String()) yields an
// equivalent definition.
const timeLayout = "20060102T150405Z"

var weekdayToRRule = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

var weekdayFromRRule = map[rrule.Weekday]time.Weekday{
	rrule.MO: time.Monday,
	rrule.TU: time.Tuesday,
	rrule.WE: time.Wednesday,
	rrule.TH: time.Thursday,
	rrule.FR: time.Friday,
	rrule.SA: time.Saturday,
	rrule.SU: time.Sunday,
}

var freqNames = map[rrule.Frequency]string{
	rrule.YEARLY:   "YEARLY",
	rrule.MONTHLY:  "MONTHLY",
	rrule.WEEKLY:   "WEEKLY",
	rrule.DAILY:    "DAILY",
	rrule.HOURLY:   "HOURLY",
	rrule.MINUTELY: "MINUTELY",
	rrule.SECONDLY: "SECONDLY",
}

// String renders the definition in its stored form.
func (r *Recurrence) String() string {
	var b strings.Builder
	for _, rule := range r.Rules {
		b.WriteString("RRULE:")
		b.WriteString(rule.String())
		b.WriteByte('\n')
	}
	for _, d := range r.Dates {
		b.WriteString("RDATE:")
		b.WriteString(d.UTC().Format(timeLayout))
		b.WriteByte('\n')
	}
	for _, d := range r.Exdates {
		b.WriteString("EXDATE:")
		b.WriteString(d.UTC().Format(timeLayout))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (rule Rule) String() string {
	parts := []string{"FREQ=" + freqNames[rule.Freq]}
	if rule.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", rule.Interval))
	}
	if len(rule.ByWeekday) > 0 {
		days := make([]string, len(rule.ByWeekday))
		for i, wd := range rule.ByWeekday {
			days[i] = weekdayToRRule[wd].String()
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if rule.Until != nil {
		parts = append(parts, "UNTIL="+rule.Until.UTC().Format(timeLayout))
	}
	return strings.Join(parts, ";")
}

// Parse reads the stored form back. An empty string is a valid empty
// definition.
func Parse(text string) (*Recurrence, error) {
	rec := &Recurrence{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "RRULE:"):
			rule, err := parseRule(strings.TrimPrefix(line, "RRULE:"))
			if err != nil {
				return nil, err
			}
			rec.Rules = append(rec.Rules, rule)
		case strings.HasPrefix(line, "RDATE:"):
			t, err := parseTime(strings.TrimPrefix(line, "RDATE:"))
			if err != nil {
				return nil, err
			}
			rec.Dates = append(rec.Dates, t)
		case strings.HasPrefix(line, "EXDATE:"):
			t, err := parseTime(strings.TrimPrefix(line, "EXDATE:"))
			if err != nil {
				return nil, err
			}
			rec.Exdates = append(rec.Exdates, t)
		default:
			return nil, fmt.Errorf("unrecognized recurrence line %q", line)
		}
	}
	return rec, nil
}

func parseRule(body string) (Rule, error) {
	opt, err := rrule.StrToROption(body)
	if err != nil {
		return Rule{}, fmt.Errorf("parse rrule %q: %w", body, err)
	}
	rule := Rule{Freq: opt.Freq, Interval: opt.Interval}
	for _, wd := range opt.Byweekday {
		rule.ByWeekday = append(rule.ByWeekday, weekdayFromRRule[wd])
	}
	if !opt.Until.IsZero() {
		u := opt.Until.UTC()
		rule.Until = &u
	}
	return rule, nil
}

func parseTime(body string) (time.Time, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(body))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse recurrence date %q: %w", body, err)
	}
	return t, nil
}
