/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/iago1460/django-radio-sub000/internal/calendar"
	"github.com/iago1460/django-radio-sub000/internal/models"
	"github.com/iago1460/django-radio-sub000/internal/telemetry"
)

// transmissionView is the wire shape of one concrete airing.
type transmissionView struct {
	ScheduleID  string              `json:"schedule_id"`
	ProgrammeID string              `json:"programme_id"`
	Programme   string              `json:"programme"`
	Slug        string              `json:"slug"`
	Type        models.EmissionType `json:"type"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
}

func toTransmissionView(tr calendar.Transmission) transmissionView {
	v := transmissionView{
		ScheduleID: tr.Schedule.ID,
		Type:       tr.Schedule.Type,
		StartsAt:   tr.StartsAt,
		EndsAt:     tr.EndsAt(),
	}
	if p := tr.Schedule.Programme; p != nil {
		v.ProgrammeID = p.ID
		v.Programme = p.Name
		v.Slug = p.Slug
	}
	return v
}

type moveRequest struct {
	ScheduleID string    `json:"schedule_id"`
	Occurrence time.Time `json:"occurrence"`
	NewStart   time.Time `json:"new_start"`
}

type deleteRequest struct {
	ScheduleID string    `json:"schedule_id"`
	Occurrence time.Time `json:"occurrence"`
	Scope      string    `json:"scope"`
}

func (a *API) handleTransmissionsList(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	after, ok := parseTimeParam(r, "after", now)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_after")
		return
	}
	lookahead := time.Duration(a.siteConfig(r.Context()).DisplayLookaheadHours) * time.Hour
	before, ok := parseTimeParam(r, "before", after.Add(lookahead))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_before")
		return
	}
	if before.Before(after) {
		writeError(w, http.StatusBadRequest, "window_inverted")
		return
	}

	schedules, ok := a.loadCalendarSchedules(w, r)
	if !ok {
		return
	}
	telemetry.TransmissionQueriesTotal.WithLabelValues("between").Inc()

	views := make([]transmissionView, 0)
	for _, tr := range calendar.Between(schedules, after, before) {
		views = append(views, toTransmissionView(tr))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleTransmissionsNow(w http.ResponseWriter, r *http.Request) {
	schedules, ok := a.loadCalendarSchedules(w, r)
	if !ok {
		return
	}
	telemetry.TransmissionQueriesTotal.WithLabelValues("now").Inc()

	views := make([]transmissionView, 0)
	for _, tr := range calendar.At(schedules, time.Now()) {
		views = append(views, toTransmissionView(tr))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleTransmissionMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ScheduleID == "" || req.Occurrence.IsZero() || req.NewStart.IsZero() {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if err := a.calendar.MoveOccurrence(r.Context(), req.ScheduleID, req.Occurrence, req.NewStart); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (a *API) handleTransmissionDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Scope == "" {
		req.Scope = string(calendar.DeleteOnlyThis)
	}
	if req.ScheduleID == "" || (req.Occurrence.IsZero() && req.Scope != string(calendar.DeleteAll)) {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	err := a.calendar.DeleteOccurrence(r.Context(), req.ScheduleID, req.Occurrence, calendar.DeleteScope(req.Scope))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// loadCalendarSchedules fetches the schedules relevant to a guide
// query, optionally filtered by schedule or programme.
func (a *API) loadCalendarSchedules(w http.ResponseWriter, r *http.Request) ([]*models.Schedule, bool) {
	q := a.db.WithContext(r.Context()).Preload("Programme")
	if scheduleID := r.URL.Query().Get("schedule_id"); scheduleID != "" {
		q = q.Where("id = ?", scheduleID)
	}
	if programmeID := r.URL.Query().Get("programme_id"); programmeID != "" {
		q = q.Where("programme_id = ?", programmeID)
	}
	var rows []models.Schedule
	if err := q.Find(&rows).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	schedules := make([]*models.Schedule, len(rows))
	for i := range rows {
		schedules[i] = &rows[i]
	}
	return schedules, true
}
