// Package models defines the domain types for leveler.
package models

import "time"

// LevelRecord is the progression state of one user inside one community.
type LevelRecord struct {
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	XP          int64     `json:"xp"`
	Level       int       `json:"level"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LevelUpEvent describes one level transition. It is never persisted.
type LevelUpEvent struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
	NewLevel    int    `json:"new_level"`
}

// CurveEntry is one row of the XP curve.
type CurveEntry struct {
	Level     int   `json:"level"`
	Threshold int64 `json:"threshold"`
}
