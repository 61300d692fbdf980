/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/api"
	"github.com/iago1460/django-radio-sub000/internal/cache"
	"github.com/iago1460/django-radio-sub000/internal/calendar"
	"github.com/iago1460/django-radio-sub000/internal/config"
	"github.com/iago1460/django-radio-sub000/internal/db"
	"github.com/iago1460/django-radio-sub000/internal/events"
	"github.com/iago1460/django-radio-sub000/internal/telemetry"
)

// rearrangeInterval is how often episode assignments are refreshed in
// the background so slots that have passed stop absorbing episodes.
const rearrangeInterval = 15 * time.Minute

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	metricsSrv *http.Server
	closers    []func() error

	db       *gorm.DB
	cache    *cache.Cache
	bus      *events.Bus
	calendar *calendar.Service
	api      *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("radioco-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	s.calendar = calendar.New(s.db, s.cache, s.bus, s.logger)
	s.api = api.New(s.db, s.calendar, s.bus, []byte(s.cfg.JWTSigningKey), s.logger)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	if s.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("metrics server shutdown error")
		}
		cancel()
	}
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Periodic rearrangement keeps episode assignments aligned with
	// the clock between explicit edits.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(rearrangeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.calendar.RearrangeAll(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error().Err(err).Msg("periodic rearrange failed")
				}
			}
		}
	}()

	// Database connection pool metrics.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached programme state when other
// components announce changes on the bus.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	programmeUpdated := s.bus.Subscribe(events.EventProgrammeUpdated)
	programmeDeleted := s.bus.Subscribe(events.EventProgrammeDeleted)
	scheduleUpdated := s.bus.Subscribe(events.EventScheduleUpdated)
	scheduleDeleted := s.bus.Subscribe(events.EventScheduleDeleted)
	occurrenceMoved := s.bus.Subscribe(events.EventOccurrenceMoved)
	occurrenceDeleted := s.bus.Subscribe(events.EventOccurrenceDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventProgrammeUpdated, programmeUpdated)
		s.bus.Unsubscribe(events.EventProgrammeDeleted, programmeDeleted)
		s.bus.Unsubscribe(events.EventScheduleUpdated, scheduleUpdated)
		s.bus.Unsubscribe(events.EventScheduleDeleted, scheduleDeleted)
		s.bus.Unsubscribe(events.EventOccurrenceMoved, occurrenceMoved)
		s.bus.Unsubscribe(events.EventOccurrenceDeleted, occurrenceDeleted)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload) {
		if programmeID, ok := payload["programme_id"].(string); ok && programmeID != "" {
			s.cache.InvalidateProgramme(ctx, programmeID)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload := <-programmeUpdated:
			invalidate(payload)
		case payload := <-programmeDeleted:
			invalidate(payload)
		case payload := <-scheduleUpdated:
			invalidate(payload)
		case payload := <-scheduleDeleted:
			invalidate(payload)
		case payload := <-occurrenceMoved:
			invalidate(payload)
		case payload := <-occurrenceDeleted:
			invalidate(payload)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.api.Routes(s.router)

	if s.cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		s.metricsSrv = &http.Server{
			Addr:              s.cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 15 * time.Second,
		}
		go func() {
			s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics server listening")
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	} else {
		s.router.Handle("/metrics", telemetry.Handler())
	}
}
