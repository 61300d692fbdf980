/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/models"
)

type programmeRequest struct {
	Name           string     `json:"name"`
	Synopsis       string     `json:"synopsis"`
	Category       string     `json:"category"`
	Language       string     `json:"language"`
	RuntimeMinutes int        `json:"runtime_minutes"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	CurrentSeason  int        `json:"current_season"`
}

type programmeUpdateRequest struct {
	Name           *string    `json:"name"`
	Synopsis       *string    `json:"synopsis"`
	Category       *string    `json:"category"`
	Language       *string    `json:"language"`
	RuntimeMinutes *int       `json:"runtime_minutes"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	CurrentSeason  *int       `json:"current_season"`
	ClearStartDate bool       `json:"clear_start_date"`
	ClearEndDate   bool       `json:"clear_end_date"`
}

func (a *API) handleProgrammesList(w http.ResponseWriter, r *http.Request) {
	var programmes []models.Programme
	if err := a.db.WithContext(r.Context()).Order("name ASC").Find(&programmes).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, programmes)
}

func (a *API) handleProgrammesCreate(w http.ResponseWriter, r *http.Request) {
	var req programmeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.RuntimeMinutes <= 0 {
		req.RuntimeMinutes = 60
	}
	if req.Language == "" {
		req.Language = "en"
	}
	programme := models.Programme{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Slug:           models.Slugify(req.Name),
		Synopsis:       req.Synopsis,
		Category:       req.Category,
		Language:       req.Language,
		RuntimeMinutes: req.RuntimeMinutes,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		CurrentSeason:  req.CurrentSeason,
	}
	if err := a.calendar.SaveProgramme(r.Context(), &programme); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, programme)
}

func (a *API) handleProgrammesGet(w http.ResponseWriter, r *http.Request) {
	programme, ok := a.loadProgramme(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, programme)
}

func (a *API) handleProgrammesUpdate(w http.ResponseWriter, r *http.Request) {
	programme, ok := a.loadProgramme(w, r)
	if !ok {
		return
	}
	var req programmeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name != nil {
		programme.Name = *req.Name
		programme.Slug = models.Slugify(*req.Name)
	}
	if req.Synopsis != nil {
		programme.Synopsis = *req.Synopsis
	}
	if req.Category != nil {
		programme.Category = *req.Category
	}
	if req.Language != nil {
		programme.Language = *req.Language
	}
	if req.RuntimeMinutes != nil {
		programme.RuntimeMinutes = *req.RuntimeMinutes
	}
	if req.StartDate != nil {
		programme.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		programme.EndDate = req.EndDate
	}
	if req.ClearStartDate {
		programme.StartDate = nil
	}
	if req.ClearEndDate {
		programme.EndDate = nil
	}
	if req.CurrentSeason != nil {
		programme.CurrentSeason = *req.CurrentSeason
	}
	if err := a.calendar.SaveProgramme(r.Context(), programme); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, programme)
}

func (a *API) handleProgrammesDelete(w http.ResponseWriter, r *http.Request) {
	programmeID := chi.URLParam(r, "programmeID")
	if err := a.calendar.DeleteProgramme(r.Context(), programmeID); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) loadProgramme(w http.ResponseWriter, r *http.Request) (*models.Programme, bool) {
	programmeID := chi.URLParam(r, "programmeID")
	var programme models.Programme
	err := a.db.WithContext(r.Context()).First(&programme, "id = ?", programmeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
		} else {
			writeError(w, http.StatusInternalServerError, "db_error")
		}
		return nil, false
	}
	return &programme, true
}
