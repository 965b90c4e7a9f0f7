package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"lotpulse/identity"
	"lotpulse/models"
)

// VehicleStore is the slice of storage the reconciler writes through. The
// reconciler is the only writer of vehicle records.
type VehicleStore interface {
	GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error)
	UpsertVehicle(ctx context.Context, v *models.Vehicle) error
	MarkVehiclesStaleExcept(ctx context.Context, dealerID uuid.UUID, seenVINs []string) (int64, error)
}

// MediaQueue enqueues a photo URL for background download/upload and
// returns the media id.
type MediaQueue interface {
	Enqueue(ctx context.Context, originalURL string) (uuid.UUID, error)
}

const (
	lockStripes    = 64
	upsertAttempts = 3
)

// Reconciler merges raw listings into the canonical vehicle store. Writes
// for a given VIN are serialized through a striped mutex pool so batches
// from different dealers cannot lose updates on a shared identity.
type Reconciler struct {
	store VehicleStore
	media MediaQueue // optional
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

func NewReconciler(store VehicleStore) *Reconciler {
	return &Reconciler{
		store: store,
		now:   time.Now,
	}
}

// SetMediaQueue enables photo enqueueing for reconciled vehicles.
func (r *Reconciler) SetMediaQueue(q MediaQueue) {
	r.media = q
}

// ReconcileResult reports one dealer batch. Added + Updated + Skipped
// always equals the number of raw listings handed in.
type ReconcileResult struct {
	Added        int
	Updated      int
	Skipped      int
	MarkedStale  int64
	ImagesQueued int
}

// Reconcile applies one dealer's raw listings, in arrival order, against
// the vehicle store.
//
// A listing with a missing or malformed VIN is counted as skipped and never
// touches the store. When two rows in the same batch claim the same VIN the
// later row wins and the superseded row counts as skipped, so added/updated
// stay per distinct identity while the counter sum still matches the raw
// row count. After the batch, active vehicles of this dealer whose VIN was
// not seen are flagged stale.
func (r *Reconciler) Reconcile(ctx context.Context, dealerID uuid.UUID, raw []models.RawListing) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	type entry struct {
		vin     string
		listing models.RawListing
	}
	var order []*entry
	byVIN := make(map[string]*entry)

	for _, listing := range raw {
		vin, err := identity.Normalize(listing.VIN)
		if err != nil {
			result.Skipped++
			continue
		}
		if prev, ok := byVIN[vin]; ok {
			// Last write wins inside a batch; the earlier row is accounted
			// for here so the counter sum stays equal to len(raw).
			prev.listing = listing
			result.Skipped++
			continue
		}
		e := &entry{vin: vin, listing: listing}
		byVIN[vin] = e
		order = append(order, e)
	}

	seen := make([]string, 0, len(order))
	for _, e := range order {
		added, images, err := r.reconcileOne(ctx, dealerID, e.vin, &e.listing)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", e.vin, err)
		}
		if added {
			result.Added++
		} else {
			result.Updated++
		}
		result.ImagesQueued += images
		seen = append(seen, e.vin)
	}

	stale, err := r.store.MarkVehiclesStaleExcept(ctx, dealerID, seen)
	if err != nil {
		return nil, fmt.Errorf("mark stale: %w", err)
	}
	result.MarkedStale = stale

	return result, nil
}

// reconcileOne upserts a single identity under its stripe lock. The store
// write is retried a bounded number of times before the error surfaces as
// a dealer-level failure.
func (r *Reconciler) reconcileOne(ctx context.Context, dealerID uuid.UUID, vin string, listing *models.RawListing) (added bool, images int, err error) {
	lock := &r.locks[stripeFor(vin)]
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.store.GetVehicleByVIN(ctx, vin)
	if err != nil {
		return false, 0, fmt.Errorf("get vehicle: %w", err)
	}

	now := r.now()
	var vehicle *models.Vehicle
	if existing == nil {
		vehicle = newVehicle(dealerID, vin, listing, now)
		added = true
	} else {
		vehicle = existing
		mergeListing(vehicle, listing)
		vehicle.DealerID = dealerID
		vehicle.Status = models.VehicleStatusActive
		vehicle.LastUpdatedAt = now
	}

	for attempt := 1; ; attempt++ {
		err = r.store.UpsertVehicle(ctx, vehicle)
		if err == nil {
			break
		}
		if attempt >= upsertAttempts || ctx.Err() != nil {
			return false, 0, fmt.Errorf("upsert vehicle: %w", err)
		}
		log.Printf("Retrying vehicle upsert for %s (attempt %d): %v", vin, attempt, err)
	}

	if r.media != nil {
		for _, photoURL := range vehicle.Photos {
			if _, err := r.media.Enqueue(ctx, photoURL); err != nil {
				log.Printf("Warning: failed to queue photo %s: %v", photoURL, err)
				continue
			}
			images++
		}
	}

	return added, images, nil
}

// newVehicle builds a record from the best available fields. Missing numeric
// fields default to zero rather than failing the listing.
func newVehicle(dealerID uuid.UUID, vin string, listing *models.RawListing, now time.Time) *models.Vehicle {
	v := &models.Vehicle{
		ID:            uuid.New(),
		VIN:           vin,
		DealerID:      dealerID,
		Condition:     models.ConditionUsed,
		URL:           listing.URL,
		Status:        models.VehicleStatusActive,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	mergeListing(v, listing)
	return v
}

// mergeListing applies the fields present on the listing. Absent fields
// leave the record untouched; one dealer omitting a field another always
// fills must not null it out.
func mergeListing(v *models.Vehicle, listing *models.RawListing) {
	if listing.Year != nil {
		v.Year = *listing.Year
	}
	if listing.Make != nil {
		v.Make = *listing.Make
	}
	if listing.Model != nil {
		v.Model = *listing.Model
	}
	if listing.Mileage != nil {
		v.Mileage = *listing.Mileage
	}
	if listing.Price != nil {
		v.Price = *listing.Price
	}
	if listing.Condition != nil {
		v.Condition = *listing.Condition
	}
	if listing.FuelType != nil {
		v.FuelType = *listing.FuelType
	}
	if listing.Transmission != nil {
		v.Transmission = *listing.Transmission
	}
	if listing.StockNumber != nil {
		v.StockNumber = *listing.StockNumber
	}
	if listing.URL != "" {
		v.URL = listing.URL
	}
	// Supplied photos fully replace the prior sequence, best-photo-first
	// as the adapter yielded them. Merging would grow without bound across
	// repeated scrapes.
	if len(listing.Photos) > 0 {
		v.Photos = append([]string(nil), listing.Photos...)
	}
}

func stripeFor(vin string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(vin))
	return h.Sum32() % lockStripes
}
