/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/iago1460/django-radio-sub000/internal/models"
)

type scheduleRequest struct {
	ProgrammeID string    `json:"programme_id"`
	Type        string    `json:"type"`
	Start       time.Time `json:"start"`
	Timezone    string    `json:"timezone"`
	Recurrence  string    `json:"recurrence"`
	SourceID    *string   `json:"source_id"`
}

type scheduleUpdateRequest struct {
	Type       *string    `json:"type"`
	Start      *time.Time `json:"start"`
	Timezone   *string    `json:"timezone"`
	Recurrence *string    `json:"recurrence"`
	SourceID   *string    `json:"source_id"`
}

func (a *API) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Preload("Programme").Order("start_dt ASC")
	if programmeID := r.URL.Query().Get("programme_id"); programmeID != "" {
		q = q.Where("programme_id = ?", programmeID)
	}
	if emissionType := r.URL.Query().Get("type"); emissionType != "" {
		q = q.Where("type = ?", emissionType)
	}
	var schedules []models.Schedule
	if err := q.Find(&schedules).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (a *API) handleSchedulesCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ProgrammeID == "" {
		writeError(w, http.StatusBadRequest, "programme_id_required")
		return
	}
	if req.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "start_required")
		return
	}
	if req.Type == "" {
		req.Type = string(models.EmissionLive)
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	schedule := models.Schedule{
		ID:          uuid.NewString(),
		ProgrammeID: req.ProgrammeID,
		Type:        models.EmissionType(req.Type),
		StartDT:     req.Start,
		Timezone:    req.Timezone,
		Recurrence:  req.Recurrence,
		SourceID:    req.SourceID,
	}
	if err := a.calendar.SaveSchedule(r.Context(), &schedule); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

func (a *API) handleSchedulesGet(w http.ResponseWriter, r *http.Request) {
	schedule, err := a.calendar.GetSchedule(r.Context(), chi.URLParam(r, "scheduleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) handleSchedulesUpdate(w http.ResponseWriter, r *http.Request) {
	schedule, err := a.calendar.GetSchedule(r.Context(), chi.URLParam(r, "scheduleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	var req scheduleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Type != nil {
		schedule.Type = models.EmissionType(*req.Type)
	}
	if req.Start != nil {
		schedule.StartDT = *req.Start
	}
	if req.Timezone != nil {
		schedule.Timezone = *req.Timezone
	}
	if req.Recurrence != nil {
		schedule.Recurrence = *req.Recurrence
	}
	if req.SourceID != nil {
		schedule.SourceID = req.SourceID
	}
	if err := a.calendar.SaveSchedule(r.Context(), schedule); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) handleSchedulesDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.calendar.DeleteSchedule(r.Context(), chi.URLParam(r, "scheduleID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
