package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"lotpulse/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCommandQueue(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.EnqueueCommand(models.CmdScrapeNow, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.EnqueueCommand(models.CmdScrapeDealer, &models.CommandParams{
		DealerURL:    "https://smalltownmotors.example",
		MaxPerDealer: 25,
	}); err != nil {
		t.Fatalf("enqueue with params: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("pending = %d, want 2", len(cmds))
	}
	if cmds[0].Command != models.CmdScrapeNow {
		t.Errorf("first command = %s, want scrape_now", cmds[0].Command)
	}

	params, err := store.ParseCommandParams(&cmds[1])
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params.DealerURL != "https://smalltownmotors.example" || params.MaxPerDealer != 25 {
		t.Errorf("params = %+v", params)
	}

	// Params-less commands parse to an empty struct, not an error.
	params0, err := store.ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("parse empty params: %v", err)
	}
	if params0.DealerURL != "" {
		t.Errorf("empty params = %+v", params0)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending after mark: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Command != models.CmdScrapeDealer {
		t.Errorf("pending after mark = %+v", cmds)
	}
}

func TestScrapeLogMirror(t *testing.T) {
	store := newTestSQLiteStore(t)

	jobID := uuid.New()
	otherJob := uuid.New()

	if err := store.Log(&jobID, models.LogLevelInfo, "Job started", ""); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(&jobID, models.LogLevelError, "Dealer failed: status 503", "https://flaky.example"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(&otherJob, models.LogLevelInfo, "Unrelated", ""); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(nil, models.LogLevelInfo, "Daemon line without a job", ""); err != nil {
		t.Fatalf("log without job: %v", err)
	}

	logs, err := store.GetLogsForJob(jobID, 0)
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	// Newest first.
	if logs[0].Level != models.LogLevelError || logs[0].DealerURL != "https://flaky.example" {
		t.Errorf("unexpected first log: %+v", logs[0])
	}
	if logs[1].Message != "Job started" {
		t.Errorf("unexpected second log: %+v", logs[1])
	}
	if logs[0].JobID == nil || *logs[0].JobID != jobID {
		t.Errorf("job id not round-tripped: %v", logs[0].JobID)
	}
}
