package storage

import (
	"path/filepath"
	"testing"
	"time"

	"dealscout/models"
)

func newTestOpsStore(t *testing.T) *OpsStore {
	t.Helper()
	store, err := NewOpsStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("NewOpsStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCommandQueueRoundTrip(t *testing.T) {
	store := newTestOpsStore(t)

	err := store.EnqueueCommand(string(models.CmdScrapePlatform), &models.CommandParams{
		Platform: "bizbuysell",
		Region:   "Phoenix, AZ",
	})
	if err != nil {
		t.Fatalf("enqueue scrape_platform: %v", err)
	}
	if err := store.EnqueueCommand(string(models.CmdPause), nil); err != nil {
		t.Fatalf("enqueue pause: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("pending = %d, want 2", len(cmds))
	}

	var scrape *models.Command
	for i := range cmds {
		if cmds[i].Command == models.CmdScrapePlatform {
			scrape = &cmds[i]
		}
	}
	if scrape == nil {
		t.Fatalf("scrape_platform missing from pending set")
	}

	params, err := store.ParseCommandParams(scrape)
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params.Platform != "bizbuysell" || params.Region != "Phoenix, AZ" {
		t.Errorf("params = %+v", params)
	}

	for _, cmd := range cmds {
		if err := store.MarkCommandProcessed(cmd.ID); err != nil {
			t.Fatalf("mark processed %d: %v", cmd.ID, err)
		}
	}
	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending after processing: %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("pending after processing = %d, want 0", len(cmds))
	}
}

func TestParseCommandParamsWithoutParams(t *testing.T) {
	store := newTestOpsStore(t)

	if err := store.EnqueueCommand(string(models.CmdScrapeNow), nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("pending = %d, want 1", len(cmds))
	}

	params, err := store.ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params == nil {
		t.Fatalf("params = nil, want empty struct")
	}
	if params.Platform != "" || params.AccountID != "" {
		t.Errorf("params = %+v, want empty", params)
	}
}

func TestMirrorRunUpsertsByID(t *testing.T) {
	store := newTestOpsStore(t)

	started := time.Now().Add(-2 * time.Minute).UTC().Truncate(time.Second)
	run := &models.ScrapeRun{
		ID:        42,
		Platform:  "bizbuysell",
		StartedAt: started,
		Status:    models.RunStatusRunning,
	}
	if err := store.MirrorRun(run); err != nil {
		t.Fatalf("mirror start: %v", err)
	}

	finished := started.Add(90 * time.Second)
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 24
	run.ListingsNew = 5
	run.ListingsUpdated = 19
	if err := store.MirrorRun(run); err != nil {
		t.Fatalf("mirror finalize: %v", err)
	}

	runs, err := store.GetRecentRuns("bizbuysell", 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1 row for start and finalize", len(runs))
	}
	got := runs[0]
	if got.ID != 42 || got.Status != models.RunStatusCompleted {
		t.Errorf("run = id %d status %s", got.ID, got.Status)
	}
	if got.ListingsFound != 24 || got.ListingsNew != 5 || got.ListingsUpdated != 19 {
		t.Errorf("counts = %d/%d/%d", got.ListingsFound, got.ListingsNew, got.ListingsUpdated)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, finished)
	}
}

func TestPlatformStatsRollup(t *testing.T) {
	store := newTestOpsStore(t)

	base := time.Now().Add(-1 * time.Hour).UTC().Truncate(time.Second)
	okDone := base.Add(60 * time.Second)
	failDone := base.Add(10*time.Minute + 30*time.Second)

	runs := []models.ScrapeRun{
		{ID: 1, Platform: "bizquest", StartedAt: base, FinishedAt: &okDone, Status: models.RunStatusCompleted, ErrorsCount: 1},
		{ID: 2, Platform: "bizquest", StartedAt: base.Add(10 * time.Minute), FinishedAt: &failDone, Status: models.RunStatusFailed, ErrorsCount: 3},
	}
	for i := range runs {
		if err := store.MirrorRun(&runs[i]); err != nil {
			t.Fatalf("mirror run %d: %v", runs[i].ID, err)
		}
	}

	if err := store.UpdatePlatformStats("bizquest"); err != nil {
		t.Fatalf("update stats: %v", err)
	}

	st, err := store.GetPlatformStats("bizquest")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if st == nil {
		t.Fatalf("stats row missing")
	}
	if st.TotalRuns != 2 || st.TotalErrors != 4 {
		t.Errorf("totals = %d runs, %d errors, want 2 and 4", st.TotalRuns, st.TotalErrors)
	}
	if st.SuccessRate != 0.5 {
		t.Errorf("success rate = %v, want 0.5", st.SuccessRate)
	}
	if st.LastRunStatus != string(models.RunStatusFailed) {
		t.Errorf("last run status = %q, want failed from the latest run", st.LastRunStatus)
	}
	if st.LastRunAt == nil || !st.LastRunAt.Equal(base) {
		t.Errorf("last_run_at = %v, want %v from the latest completed run", st.LastRunAt, base)
	}
	if st.AvgRunDurationSec <= 0 {
		t.Errorf("avg duration = %d, want positive", st.AvgRunDurationSec)
	}

	last, err := store.GetLastRunTime("bizquest")
	if err != nil {
		t.Fatalf("last run time: %v", err)
	}
	if !last.Equal(base) {
		t.Errorf("last run time = %v, want %v", last, base)
	}
}

func TestGetPlatformStatsUnknownPlatform(t *testing.T) {
	store := newTestOpsStore(t)

	st, err := store.GetPlatformStats("nope")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if st != nil {
		t.Errorf("stats = %+v, want nil", st)
	}
}

func TestLogWritesRunScopedRows(t *testing.T) {
	store := newTestOpsStore(t)

	runID := int64(7)
	if err := store.Log(&runID, models.LogLevelInfo, "bizbuysell", "Starting scrape"); err != nil {
		t.Fatalf("log with run: %v", err)
	}
	if err := store.Log(nil, models.LogLevelInfo, "inference", "Inferred earnings for 3 of 9 listings"); err != nil {
		t.Fatalf("log without run: %v", err)
	}

	var total, scoped int
	if err := store.db.QueryRow(`SELECT COUNT(*), COUNT(run_id) FROM ops_logs`).Scan(&total, &scoped); err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if total != 2 || scoped != 1 {
		t.Errorf("logs = %d total, %d run-scoped, want 2 and 1", total, scoped)
	}
}

func TestResetAllData(t *testing.T) {
	store := newTestOpsStore(t)

	if err := store.EnqueueCommand(string(models.CmdScrapeNow), nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	run := &models.ScrapeRun{ID: 9, Platform: "bizbuysell", StartedAt: time.Now().UTC(), Status: models.RunStatusCompleted}
	if err := store.MirrorRun(run); err != nil {
		t.Fatalf("mirror: %v", err)
	}

	if err := store.ResetAllData(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("pending after reset = %d, want 0", len(cmds))
	}
	runs, err := store.GetRecentRuns("bizbuysell", 5)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs after reset = %d, want 0", len(runs))
	}
}
