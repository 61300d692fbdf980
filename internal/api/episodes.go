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
)

type episodeCreateRequest struct {
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	IssueDate *time.Time `json:"issue_date"`
}

func (a *API) handleEpisodesList(w http.ResponseWriter, r *http.Request) {
	programme, ok := a.loadProgramme(w, r)
	if !ok {
		return
	}
	var episodes []models.Episode
	err := a.db.WithContext(r.Context()).
		Where("programme_id = ?", programme.ID).
		Order("season ASC, number_in_season ASC").
		Find(&episodes).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (a *API) handleEpisodesCreate(w http.ResponseWriter, r *http.Request) {
	programme, ok := a.loadProgramme(w, r)
	if !ok {
		return
	}
	var req episodeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	issue := time.Now()
	if req.IssueDate != nil {
		issue = *req.IssueDate
	}
	episode, err := a.calendar.CreateEpisode(r.Context(), programme.ID, issue, req.Title, req.Summary)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	// Slot assignment follows episode order, not the requested date.
	if err := a.calendar.Rearrange(r.Context(), programme.ID, time.Now()); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, episode)
}

func (a *API) handleRecorderSlots(w http.ResponseWriter, r *http.Request) {
	start, ok := parseTimeParam(r, "start", time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_start")
		return
	}
	window := time.Duration(a.siteConfig(r.Context()).RecorderLookaheadHours) * time.Hour
	if raw := r.URL.Query().Get("hours"); raw != "" {
		d, err := time.ParseDuration(raw + "h")
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_hours")
			return
		}
		window = d
	}
	slots, err := a.calendar.NextRecordingSlots(r.Context(), start, window)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if slots == nil {
		slots = []calendar.RecordingSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}
