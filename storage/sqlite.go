package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dealscout/models"
)

// OpsStore is the local operational sidecar: the command queue the daemon
// polls, a mirror of run outcomes, structured ops logs, and per-platform
// rollups. Canonical listing and email data lives in Postgres.
type OpsStore struct {
	db *sql.DB
}

func NewOpsStore(dbPath string) (*OpsStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &OpsStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *OpsStore) Close() error {
	return s.db.Close()
}

func (s *OpsStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		platform TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		listings_updated INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS ops_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		source TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS platform_stats (
		platform TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER,
		total_errors INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON ops_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_platform ON scrape_runs(platform, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// MirrorRun upserts a run row keyed by its canonical (Postgres) id, so calling
// it at start and again at finalize lands on the same row.
func (s *OpsStore) MirrorRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_runs (id, platform, started_at, finished_at, status,
			listings_found, listings_new, listings_updated, errors_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			listings_found = excluded.listings_found,
			listings_new = excluded.listings_new,
			listings_updated = excluded.listings_updated,
			errors_count = excluded.errors_count`,
		run.ID, run.Platform, run.StartedAt, run.FinishedAt, run.Status,
		run.ListingsFound, run.ListingsNew, run.ListingsUpdated, run.ErrorsCount)
	return err
}

func (s *OpsStore) GetRecentRuns(platform string, limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, platform, started_at, finished_at, status,
			listings_found, listings_new, listings_updated, errors_count
		FROM scrape_runs WHERE platform = ? ORDER BY started_at DESC LIMIT ?`, platform, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var run models.ScrapeRun
		if err := rows.Scan(&run.ID, &run.Platform, &run.StartedAt, &run.FinishedAt, &run.Status,
			&run.ListingsFound, &run.ListingsNew, &run.ListingsUpdated, &run.ErrorsCount); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *OpsStore) Log(runID *int64, level models.LogLevel, source, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO ops_logs (run_id, timestamp, level, source, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, source, message)
	return err
}

func (s *OpsStore) UpdatePlatformStats(platform string) error {
	_, err := s.db.Exec(`
		INSERT INTO platform_stats (platform, last_run_at, last_run_status, total_runs,
			total_errors, success_rate, avg_run_duration_sec)
		SELECT
			?,
			COALESCE(
				(SELECT started_at FROM scrape_runs WHERE platform = ? AND status = 'completed' ORDER BY started_at DESC LIMIT 1),
				(SELECT started_at FROM scrape_runs WHERE platform = ? ORDER BY started_at DESC LIMIT 1)
			),
			(SELECT status FROM scrape_runs WHERE platform = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM scrape_runs WHERE platform = ?),
			(SELECT COALESCE(SUM(errors_count), 0) FROM scrape_runs WHERE platform = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scrape_runs WHERE platform = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM scrape_runs WHERE platform = ? AND finished_at IS NOT NULL)
		ON CONFLICT(platform) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			total_errors = excluded.total_errors,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		platform, platform, platform, platform, platform, platform, platform, platform)
	return err
}

func (s *OpsStore) GetPlatformStats(platform string) (*models.PlatformStats, error) {
	row := s.db.QueryRow(`
		SELECT platform, last_run_at, last_run_status, total_runs, total_errors,
			COALESCE(success_rate, 0), COALESCE(avg_run_duration_sec, 0)
		FROM platform_stats WHERE platform = ?`, platform)

	var st models.PlatformStats
	err := row.Scan(&st.Platform, &st.LastRunAt, &st.LastRunStatus, &st.TotalRuns, &st.TotalErrors,
		&st.SuccessRate, &st.AvgRunDurationSec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *OpsStore) GetLastRunTime(platform string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT last_run_at FROM platform_stats WHERE platform = ?`, platform).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}

func (s *OpsStore) EnqueueCommand(command string, params *models.CommandParams) error {
	var paramsJSON []byte
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
	}
	_, err := s.db.Exec(`
		INSERT INTO commands (command, params) VALUES (?, ?)`, command, paramsJSON)
	return err
}

func (s *OpsStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *OpsStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *OpsStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// ResetAllData clears all operational tables
func (s *OpsStore) ResetAllData() error {
	tables := []string{
		"ops_logs",
		"scrape_runs",
		"platform_stats",
		"commands",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
