package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is one scrape invocation. Created at entry, finalized exactly once
// at exit (completed or failed, with counts and the accumulated error log),
// immutable afterward.
type ScrapeRun struct {
	ID              int64           `json:"id" db:"id"`
	Platform        string          `json:"platform" db:"platform"`
	StartedAt       time.Time       `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at" db:"finished_at"`
	Status          RunStatus       `json:"status" db:"status"`
	ListingsFound   int             `json:"listings_found" db:"listings_found"`
	ListingsNew     int             `json:"listings_new" db:"listings_new"`
	ListingsUpdated int             `json:"listings_updated" db:"listings_updated"`
	ErrorsCount     int             `json:"errors_count" db:"errors_count"`
	ErrorLog        json.RawMessage `json:"error_log" db:"error_log"` // JSON array of strings
	Metadata        json.RawMessage `json:"metadata" db:"metadata"`   // filters used plus aggregate stats
}

// PlatformStats is the ops-store rollup shown by the control surface.
type PlatformStats struct {
	Platform          string     `json:"platform" db:"platform"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	TotalErrors       int        `json:"total_errors" db:"total_errors"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
