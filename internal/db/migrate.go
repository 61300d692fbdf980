/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate
// and seeds the configuration singleton.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Programme{},
		&models.Schedule{},
		&models.Episode{},
		&models.SiteConfiguration{},
	); err != nil {
		return err
	}

	if _, err := models.GetSiteConfiguration(database); err != nil {
		return fmt.Errorf("seed site configuration: %w", err)
	}

	return nil
}
