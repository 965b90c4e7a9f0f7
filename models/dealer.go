package models

import (
	"time"

	"github.com/google/uuid"
)

// Dealer is a registered inventory source. Created administratively,
// touched by the orchestrator after each completed per-dealer scrape,
// never auto-deleted. Adapter names the site layout from config/adapters;
// empty means match by host.
type Dealer struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	URL             string     `json:"website_url" db:"url"`
	Location        string     `json:"location" db:"location"`
	Adapter         string     `json:"adapter" db:"adapter"`
	ScrapingEnabled bool       `json:"scraping_enabled" db:"scraping_enabled"`
	LastScrapedAt   *time.Time `json:"last_scraped_at" db:"last_scraped_at"`
	VehicleCount    int        `json:"vehicle_count" db:"vehicle_count"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
