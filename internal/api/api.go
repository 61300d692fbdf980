/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the broadcast calendar over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/auth"
	"github.com/iago1460/django-radio-sub000/internal/calendar"
	"github.com/iago1460/django-radio-sub000/internal/events"
	"github.com/iago1460/django-radio-sub000/internal/models"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	calendar  *calendar.Service
	bus       *events.Bus
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, calendarSvc *calendar.Service, bus *events.Bus, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		calendar:  calendarSvc,
		bus:       bus,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/config", a.handleConfigGet)

		// Public programme guide
		r.Get("/transmissions", a.handleTransmissionsList)
		r.Get("/transmissions/now", a.handleTransmissionsNow)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(a.jwtSecret))

			edit := a.requireRoles(models.RoleAdmin, models.RoleManager)

			r.Route("/programmes", func(r chi.Router) {
				r.Get("/", a.handleProgrammesList)
				r.With(edit).Post("/", a.handleProgrammesCreate)
				r.Route("/{programmeID}", func(r chi.Router) {
					r.Get("/", a.handleProgrammesGet)
					r.With(edit).Put("/", a.handleProgrammesUpdate)
					r.With(edit).Delete("/", a.handleProgrammesDelete)
					r.Get("/episodes", a.handleEpisodesList)
					r.With(edit).Post("/episodes", a.handleEpisodesCreate)
				})
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", a.handleSchedulesList)
				r.With(edit).Post("/", a.handleSchedulesCreate)
				r.Route("/{scheduleID}", func(r chi.Router) {
					r.Get("/", a.handleSchedulesGet)
					r.With(edit).Put("/", a.handleSchedulesUpdate)
					r.With(edit).Delete("/", a.handleSchedulesDelete)
				})
			})

			r.With(edit).Post("/transmissions/move", a.handleTransmissionMove)
			r.With(edit).Post("/transmissions/delete", a.handleTransmissionDelete)

			r.With(a.requireRoles(models.RoleAdmin)).Put("/config", a.handleConfigUpdate)

			r.Get("/recorder/slots", a.handleRecorderSlots)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// siteConfig loads the station settings singleton, falling back to its
// defaults when the row cannot be read.
func (a *API) siteConfig(ctx context.Context) *models.SiteConfiguration {
	cfg, err := models.GetSiteConfiguration(a.db.WithContext(ctx))
	if err != nil {
		a.logger.Warn().Err(err).Msg("site configuration unavailable, using defaults")
		return &models.SiteConfiguration{
			StationName:            "RadioCo",
			DefaultTimezone:        "UTC",
			DisplayLookaheadHours:  168,
			RecorderLookaheadHours: 24,
		}
	}
	return cfg
}

func (a *API) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.siteConfig(r.Context()))
}

type configUpdateRequest struct {
	StationName            *string `json:"station_name"`
	DefaultTimezone        *string `json:"default_timezone"`
	DisplayLookaheadHours  *int    `json:"display_lookahead_hours"`
	RecorderLookaheadHours *int    `json:"recorder_lookahead_hours"`
}

func (a *API) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	cfg, err := models.GetSiteConfiguration(a.db.WithContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if req.StationName != nil {
		cfg.StationName = *req.StationName
	}
	if req.DefaultTimezone != nil {
		if _, err := time.LoadLocation(*req.DefaultTimezone); err != nil {
			writeError(w, http.StatusBadRequest, "timezone_invalid")
			return
		}
		cfg.DefaultTimezone = *req.DefaultTimezone
	}
	if req.DisplayLookaheadHours != nil && *req.DisplayLookaheadHours > 0 {
		cfg.DisplayLookaheadHours = *req.DisplayLookaheadHours
	}
	if req.RecorderLookaheadHours != nil && *req.RecorderLookaheadHours > 0 {
		cfg.RecorderLookaheadHours = *req.RecorderLookaheadHours
	}
	if err := a.db.WithContext(r.Context()).Save(cfg).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps calendar service failures onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var verr *calendar.ValidationError
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Code)
	default:
		a.logger.Error().Err(err).Msg("calendar operation failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// parseTimeParam reads an RFC 3339 query parameter, returning def when
// absent.
func parseTimeParam(r *http.Request, name string, def time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func decodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
