/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the persistence entities for the programme
// catalogue and broadcast calendar.
package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/iago1460/django-radio-sub000/internal/recurrence"
)

// RoleName names an access role carried in JWT claims.
type RoleName string

const (
	RoleAdmin   RoleName = "admin"
	RoleManager RoleName = "manager"
)

// EmissionType classifies how a scheduled slot goes to air.
type EmissionType string

const (
	// EmissionLive is a first, live airing. Only live slots receive
	// episodes.
	EmissionLive EmissionType = "live"
	// EmissionBroadcast replays previously recorded material.
	EmissionBroadcast EmissionType = "broadcast"
	// EmissionSyndication replays material produced elsewhere.
	EmissionSyndication EmissionType = "syndication"
)

// Valid reports whether t is a known emission type.
func (t EmissionType) Valid() bool {
	switch t {
	case EmissionLive, EmissionBroadcast, EmissionSyndication:
		return true
	}
	return false
}

// Programme is a show in the station catalogue.
type Programme struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Slug           string     `gorm:"type:varchar(100);uniqueIndex" json:"slug"`
	Synopsis       string     `gorm:"type:text" json:"synopsis,omitempty"`
	Category       string     `gorm:"type:varchar(50)" json:"category,omitempty"`
	Language       string     `gorm:"type:varchar(8);default:'en'" json:"language,omitempty"`
	RuntimeMinutes int        `gorm:"not null;default:60" json:"runtime_minutes"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CurrentSeason  int        `gorm:"not null;default:1" json:"current_season"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Programme) TableName() string { return "programmes" }

// Runtime returns the airing length of one transmission.
func (p *Programme) Runtime() time.Duration {
	return time.Duration(p.RuntimeMinutes) * time.Minute
}

// WindowStart returns the first instant of the validity window in loc,
// or false when the window has no lower bound. Start and end dates are
// calendar dates; the window opens at local midnight.
func (p *Programme) WindowStart(loc *time.Location) (time.Time, bool) {
	if p.StartDate == nil {
		return time.Time{}, false
	}
	d := p.StartDate.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), true
}

// WindowEnd returns the first instant past the validity window in loc
// (midnight after the end date), or false when the window is open-ended.
func (p *Programme) WindowEnd(loc *time.Location) (time.Time, bool) {
	if p.EndDate == nil {
		return time.Time{}, false
	}
	d := p.EndDate.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1), true
}

// Schedule anchors a recurrence pattern for one programme. StartDT is
// the first airing; Timezone fixes the wall clock the pattern follows.
type Schedule struct {
	ID               string       `gorm:"type:uuid;primaryKey" json:"id"`
	ProgrammeID      string       `gorm:"type:uuid;index;not null" json:"programme_id"`
	Type             EmissionType `gorm:"type:varchar(16);not null;default:'live'" json:"type"`
	StartDT          time.Time    `gorm:"not null" json:"start"`
	Timezone         string       `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	Recurrence       string       `gorm:"type:text" json:"recurrence,omitempty"`
	SourceID         *string      `gorm:"type:uuid;index" json:"source_id,omitempty"`
	FromCollectionID *string      `gorm:"type:uuid;index" json:"from_collection_id,omitempty"`
	EffectiveStart   *time.Time   `gorm:"index" json:"effective_start,omitempty"`
	EffectiveEnd     *time.Time   `json:"effective_end,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`

	Programme      *Programme `gorm:"foreignKey:ProgrammeID" json:"programme,omitempty"`
	Source         *Schedule  `gorm:"foreignKey:SourceID" json:"-"`
	FromCollection *Schedule  `gorm:"foreignKey:FromCollectionID" json:"-"`
}

func (Schedule) TableName() string { return "schedules" }

// Location resolves the schedule's zone, falling back to UTC when the
// stored name no longer loads.
func (s *Schedule) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Anchor returns the first airing in the schedule's own zone, the frame
// every recurrence computation runs in.
func (s *Schedule) Anchor() time.Time {
	return s.StartDT.In(s.Location())
}

// ParseRecurrence decodes the stored recurrence definition.
func (s *Schedule) ParseRecurrence() (*recurrence.Recurrence, error) {
	return recurrence.Parse(s.Recurrence)
}

// SetRecurrence stores rec in serialized form.
func (s *Schedule) SetRecurrence(rec *recurrence.Recurrence) {
	s.Recurrence = rec.String()
}

// HasRecurrences reports whether the schedule airs more than once. A
// malformed stored definition counts as single-airing.
func (s *Schedule) HasRecurrences() bool {
	rec, err := s.ParseRecurrence()
	if err != nil {
		return false
	}
	return rec.HasRecurrences()
}

// IsLive reports whether the slot carries first airings.
func (s *Schedule) IsLive() bool { return s.Type == EmissionLive }

// Episode is one numbered installment of a programme. IssueDate is nil
// while the episode awaits a transmission slot.
type Episode struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	ProgrammeID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_episodes_number,priority:1" json:"programme_id"`
	Season         int        `gorm:"not null;uniqueIndex:idx_episodes_number,priority:2" json:"season"`
	NumberInSeason int        `gorm:"not null;uniqueIndex:idx_episodes_number,priority:3" json:"number_in_season"`
	Title          string     `gorm:"type:varchar(255)" json:"title"`
	Summary        string     `gorm:"type:text" json:"summary,omitempty"`
	IssueDate      *time.Time `gorm:"index" json:"issue_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Programme *Programme `gorm:"foreignKey:ProgrammeID" json:"-"`
}

func (Episode) TableName() string { return "episodes" }

// Slugify derives a URL slug from a display name.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
