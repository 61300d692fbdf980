/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"gorm.io/gorm"
)

// SiteConfiguration is the station-wide settings singleton, kept as a
// single row with a fixed primary key.
type SiteConfiguration struct {
	ID                     int       `gorm:"primaryKey" json:"id"`
	StationName            string    `gorm:"type:varchar(100);default:'RadioCo'" json:"station_name"`
	DefaultTimezone        string    `gorm:"type:varchar(64);default:'UTC'" json:"default_timezone"`
	DisplayLookaheadHours  int       `gorm:"default:168" json:"display_lookahead_hours"`
	RecorderLookaheadHours int       `gorm:"default:24" json:"recorder_lookahead_hours"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (SiteConfiguration) TableName() string { return "site_configuration" }

// GetSiteConfiguration loads the singleton row, creating it with
// defaults on first access.
func GetSiteConfiguration(db *gorm.DB) (*SiteConfiguration, error) {
	cfg := &SiteConfiguration{ID: 1}
	err := db.Where(SiteConfiguration{ID: 1}).Attrs(SiteConfiguration{
		StationName:            "RadioCo",
		DefaultTimezone:        "UTC",
		DisplayLookaheadHours:  168,
		RecorderLookaheadHours: 24,
	}).FirstOrCreate(cfg).Error
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
