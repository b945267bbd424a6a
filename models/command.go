package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScrapeNow      CommandType = "scrape_now"      // all enabled platforms
	CmdScrapePlatform CommandType = "scrape_platform" // params.platform
	CmdSyncNow        CommandType = "sync_now"        // all connected accounts
	CmdSyncAccount    CommandType = "sync_account"    // params.account_id
	CmdPause          CommandType = "pause"
	CmdResume         CommandType = "resume"
	CmdRunInference   CommandType = "run_inference" // trigger the backfill worker
	CmdRunArchive     CommandType = "run_archive"
	CmdRunLiveness    CommandType = "run_liveness"
)

// Command is one row in the ops-store command queue, written by the control
// surface and consumed by the scheduler poll loop.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Platform  string `json:"platform,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	Region    string `json:"region,omitempty"`
}
