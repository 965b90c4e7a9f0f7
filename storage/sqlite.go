package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"lotpulse/models"
)

// SQLiteStore holds operational data local to one daemon instance: the
// command queue and a scrape log mirror. Inventory lives in Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT NOT NULL,
		params TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		job_id TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		dealer_url TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_job ON scrape_logs (job_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	var data []byte
	if params != nil {
		data, _ = json.Marshal(params)
	}
	_, err := s.db.Exec(
		`INSERT INTO commands (command, params) VALUES (?, ?)`,
		string(cmd), string(data),
	)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, ''), created_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params string
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		if params != "" {
			cmd.Params = json.RawMessage(params)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, err
	}
	return params, nil
}

// =============================================================================
// Logs
// =============================================================================

func (s *SQLiteStore) Log(jobID *uuid.UUID, level models.LogLevel, message, dealerURL string) error {
	var id interface{}
	if jobID != nil {
		id = jobID.String()
	}
	_, err := s.db.Exec(
		`INSERT INTO scrape_logs (job_id, level, message, dealer_url) VALUES (?, ?, ?, ?)`,
		id, string(level), message, dealerURL,
	)
	return err
}

func (s *SQLiteStore) GetLogsForJob(jobID uuid.UUID, limit int) ([]models.ScrapeLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(`
		SELECT id, job_id, timestamp, level, message, COALESCE(dealer_url, '')
		FROM scrape_logs WHERE job_id = ? ORDER BY id DESC LIMIT ?`,
		jobID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		var id string
		if err := rows.Scan(&l.ID, &id, &l.Timestamp, &l.Level, &l.Message, &l.DealerURL); err != nil {
			return nil, err
		}
		if parsed, err := uuid.Parse(id); err == nil {
			l.JobID = &parsed
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
