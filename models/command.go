package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScrapeNow    CommandType = "scrape_now"
	CmdScrapeDealer CommandType = "scrape_dealer"
	CmdPause        CommandType = "pause"
	CmdResume       CommandType = "resume"
	CmdRunMedia     CommandType = "run_media"
	CmdRunFreshness CommandType = "run_freshness"
)

// Command is an operational instruction queued in the local SQLite store,
// picked up by the scheduler's poll loop.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	DealerURL    string `json:"dealer_url,omitempty"`
	MaxPerDealer int    `json:"max_per_dealer,omitempty"`
}
