package models

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is the canonical record for one physical vehicle, keyed by its
// normalized VIN. The reconciler is the only writer.
type Vehicle struct {
	ID            uuid.UUID `json:"id" db:"id"`
	VIN           string    `json:"vin" db:"vin"`
	DealerID      uuid.UUID `json:"dealer_id" db:"dealer_id"`
	Year          int       `json:"year" db:"year"`
	Make          string    `json:"make" db:"make"`
	Model         string    `json:"model" db:"model"`
	Mileage       int       `json:"mileage" db:"mileage"`
	Price         float64   `json:"price" db:"price"`
	Condition     string    `json:"condition" db:"condition"` // new, used, certified
	FuelType      string    `json:"fuel_type" db:"fuel_type"`
	Transmission  string    `json:"transmission" db:"transmission"`
	StockNumber   string    `json:"stock_number" db:"stock_number"`
	URL           string    `json:"url" db:"url"`
	Photos        []string  `json:"photos" db:"photos"`
	Status        string    `json:"status" db:"status"` // active, stale
	FirstSeenAt   time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at" db:"last_updated_at"`
}

// Vehicle status. Stale means the owning dealer's latest scrape no longer
// carried this VIN; records are flagged, never deleted.
const (
	VehicleStatusActive = "active"
	VehicleStatusStale  = "stale"
)

const (
	ConditionNew       = "new"
	ConditionUsed      = "used"
	ConditionCertified = "certified"
)

// VehicleFilter narrows vehicle listings for read-only queries.
type VehicleFilter struct {
	DealerID  *uuid.UUID
	Make      string
	Model     string
	Condition string
	Status    string
	MaxPrice  *float64
	Limit     int
}
