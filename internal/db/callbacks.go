/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/telemetry"
)

const startedAtKey = "radioco:started_at"

// RegisterCallbacks hooks latency and error metrics into every CRUD
// path, so programme, schedule and episode traffic shows up per table
// without instrumenting call sites.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	for _, reg := range []func() error{
		func() error { return cb.Query().Before("gorm:query").Register("radioco:query_start", markStart) },
		func() error { return cb.Query().After("gorm:query").Register("radioco:query_done", observe("query")) },
		func() error { return cb.Create().Before("gorm:create").Register("radioco:create_start", markStart) },
		func() error { return cb.Create().After("gorm:create").Register("radioco:create_done", observe("create")) },
		func() error { return cb.Update().Before("gorm:update").Register("radioco:update_start", markStart) },
		func() error { return cb.Update().After("gorm:update").Register("radioco:update_done", observe("update")) },
		func() error { return cb.Delete().Before("gorm:delete").Register("radioco:delete_start", markStart) },
		func() error { return cb.Delete().After("gorm:delete").Register("radioco:delete_done", observe("delete")) },
	} {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())

		// Missing rows are an answer, not a failure. Unique collisions
		// (episode numbering, programme slugs) get their own kind.
		if db.Error == nil || errors.Is(db.Error, gorm.ErrRecordNotFound) {
			return
		}
		kind := "query"
		if errors.Is(db.Error, gorm.ErrDuplicatedKey) {
			kind = "constraint"
		}
		telemetry.DatabaseErrorsTotal.WithLabelValues(operation, kind).Inc()
	}
}

// UpdateConnectionMetrics refreshes the pool gauge; the server calls
// it on a timer.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
