package database

import (
	"time"
)

// AlertLog represents a logged threshold breach
type AlertLog struct {
	AlertID     int64
	UserID      string
	Rule        string
	Severity    string
	BreachValue float64
	StartTime   time.Time
	EndTime     *time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	AlertStatusActive  = "ACTIVE"
	AlertStatusCleared = "CLEARED"
)
