package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"lotpulse/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS dealers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL UNIQUE,
		location TEXT NOT NULL DEFAULT '',
		adapter TEXT NOT NULL DEFAULT '',
		scraping_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_scraped_at TIMESTAMPTZ,
		vehicle_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id UUID PRIMARY KEY,
		vin TEXT NOT NULL UNIQUE,
		dealer_id UUID NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		make TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		mileage INTEGER NOT NULL DEFAULT 0,
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		condition TEXT NOT NULL DEFAULT 'used',
		fuel_type TEXT NOT NULL DEFAULT '',
		transmission TEXT NOT NULL DEFAULT '',
		stock_number TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		photos TEXT[] NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'active',
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vehicles_dealer ON vehicles (dealer_id, status);
	CREATE INDEX IF NOT EXISTS idx_vehicles_make ON vehicles (make);

	CREATE TABLE IF NOT EXISTS scrape_jobs (
		id UUID PRIMARY KEY,
		dealer_urls TEXT[] NOT NULL,
		max_per_dealer INTEGER NOT NULL DEFAULT 100,
		status TEXT NOT NULL DEFAULT 'queued',
		progress INTEGER NOT NULL DEFAULT 0,
		dealers_total INTEGER NOT NULL DEFAULT 0,
		dealers_completed INTEGER NOT NULL DEFAULT 0,
		vehicles_found INTEGER NOT NULL DEFAULT 0,
		vehicles_added INTEGER NOT NULL DEFAULT 0,
		vehicles_updated INTEGER NOT NULL DEFAULT 0,
		vehicles_skipped INTEGER NOT NULL DEFAULT 0,
		images_scraped INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS media (
		id UUID PRIMARY KEY,
		s3_key TEXT,
		content_hash TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		file_size_bytes BIGINT,
		original_url TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Vehicles
// =============================================================================

// UpsertVehicle writes one canonical vehicle record. The caller (the
// reconciler) has already merged new fields against the existing record
// under the per-identity lock, so the conflict branch replaces everything
// except identity and first_seen_at.
func (s *PostgresStore) UpsertVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (
			id, vin, dealer_id, year, make, model, mileage, price, condition,
			fuel_type, transmission, stock_number, url, photos, status,
			first_seen_at, last_updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (vin) DO UPDATE SET
			dealer_id = EXCLUDED.dealer_id,
			year = EXCLUDED.year,
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			mileage = EXCLUDED.mileage,
			price = EXCLUDED.price,
			condition = EXCLUDED.condition,
			fuel_type = EXCLUDED.fuel_type,
			transmission = EXCLUDED.transmission,
			stock_number = EXCLUDED.stock_number,
			url = EXCLUDED.url,
			photos = EXCLUDED.photos,
			status = EXCLUDED.status,
			last_updated_at = EXCLUDED.last_updated_at
		RETURNING id, first_seen_at`

	return s.pool.QueryRow(ctx, query,
		v.ID, v.VIN, v.DealerID, v.Year, v.Make, v.Model, v.Mileage, v.Price, v.Condition,
		v.FuelType, v.Transmission, v.StockNumber, v.URL, v.Photos, v.Status,
		v.FirstSeenAt, v.LastUpdatedAt,
	).Scan(&v.ID, &v.FirstSeenAt)
}

func (s *PostgresStore) GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	query := `
		SELECT id, vin, dealer_id, year, make, model, mileage, price, condition,
			fuel_type, transmission, stock_number, url, photos, status,
			first_seen_at, last_updated_at
		FROM vehicles WHERE vin = $1`

	var v models.Vehicle
	err := s.pool.QueryRow(ctx, query, vin).Scan(
		&v.ID, &v.VIN, &v.DealerID, &v.Year, &v.Make, &v.Model, &v.Mileage, &v.Price, &v.Condition,
		&v.FuelType, &v.Transmission, &v.StockNumber, &v.URL, &v.Photos, &v.Status,
		&v.FirstSeenAt, &v.LastUpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	query := `
		SELECT id, vin, dealer_id, year, make, model, mileage, price, condition,
			fuel_type, transmission, stock_number, url, photos, status,
			first_seen_at, last_updated_at
		FROM vehicles WHERE 1=1`

	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.DealerID != nil {
		query += " AND dealer_id = " + arg(*filter.DealerID)
	}
	if filter.Make != "" {
		query += " AND LOWER(make) = LOWER(" + arg(filter.Make) + ")"
	}
	if filter.Model != "" {
		query += " AND LOWER(model) = LOWER(" + arg(filter.Model) + ")"
	}
	if filter.Condition != "" {
		query += " AND condition = " + arg(filter.Condition)
	}
	if filter.Status != "" {
		query += " AND status = " + arg(filter.Status)
	}
	if filter.MaxPrice != nil {
		query += " AND price <= " + arg(*filter.MaxPrice)
	}

	query += " ORDER BY last_updated_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	query += " LIMIT " + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(
			&v.ID, &v.VIN, &v.DealerID, &v.Year, &v.Make, &v.Model, &v.Mileage, &v.Price, &v.Condition,
			&v.FuelType, &v.Transmission, &v.StockNumber, &v.URL, &v.Photos, &v.Status,
			&v.FirstSeenAt, &v.LastUpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// MarkVehiclesStaleExcept flags every active vehicle of a dealer whose VIN
// was absent from the latest successful scrape. Records are never deleted;
// a single missed scrape must not destroy history.
func (s *PostgresStore) MarkVehiclesStaleExcept(ctx context.Context, dealerID uuid.UUID, seenVINs []string) (int64, error) {
	query := `
		UPDATE vehicles SET status = $3
		WHERE dealer_id = $1 AND status = $4 AND NOT (vin = ANY($2))`

	tag, err := s.pool.Exec(ctx, query, dealerID, seenVINs, models.VehicleStatusStale, models.VehicleStatusActive)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountVehiclesForDealer(ctx context.Context, dealerID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM vehicles WHERE dealer_id = $1 AND status = $2`,
		dealerID, models.VehicleStatusActive,
	).Scan(&count)
	return count, err
}

// TopMakes returns active inventory counts grouped by make, largest first.
func (s *PostgresStore) TopMakes(ctx context.Context, limit int) (map[string]int, error) {
	query := `
		SELECT make, COUNT(*) FROM vehicles
		WHERE status = 'active' AND make <> ''
		GROUP BY make ORDER BY COUNT(*) DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var make string
		var count int
		if err := rows.Scan(&make, &count); err != nil {
			return nil, err
		}
		counts[make] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CountVehicles(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&count)
	return count, err
}

// GetVehiclesNotSeenSince returns active vehicles whose last update is older
// than the cutoff, oldest first. Used by the freshness worker.
func (s *PostgresStore) GetVehiclesNotSeenSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Vehicle, error) {
	query := `
		SELECT id, vin, dealer_id, year, make, model, mileage, price, condition,
			fuel_type, transmission, stock_number, url, photos, status,
			first_seen_at, last_updated_at
		FROM vehicles
		WHERE status = 'active' AND last_updated_at < $1
		ORDER BY last_updated_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(
			&v.ID, &v.VIN, &v.DealerID, &v.Year, &v.Make, &v.Model, &v.Mileage, &v.Price, &v.Condition,
			&v.FuelType, &v.Transmission, &v.StockNumber, &v.URL, &v.Photos, &v.Status,
			&v.FirstSeenAt, &v.LastUpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *PostgresStore) MarkVehicleStale(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE vehicles SET status = $2 WHERE id = $1`,
		id, models.VehicleStatusStale,
	)
	return err
}

// =============================================================================
// Dealers
// =============================================================================

func (s *PostgresStore) UpsertDealer(ctx context.Context, d *models.Dealer) error {
	query := `
		INSERT INTO dealers (id, name, url, location, adapter, scraping_enabled, last_scraped_at, vehicle_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), dealers.name),
			location = COALESCE(NULLIF(EXCLUDED.location, ''), dealers.location),
			adapter = EXCLUDED.adapter,
			scraping_enabled = EXCLUDED.scraping_enabled
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		d.ID, d.Name, d.URL, d.Location, d.Adapter, d.ScrapingEnabled, d.LastScrapedAt, d.VehicleCount, d.CreatedAt,
	).Scan(&d.ID)
}

func (s *PostgresStore) GetDealerByURL(ctx context.Context, url string) (*models.Dealer, error) {
	return s.getDealer(ctx, `WHERE url = $1`, url)
}

func (s *PostgresStore) GetDealerByID(ctx context.Context, id uuid.UUID) (*models.Dealer, error) {
	return s.getDealer(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getDealer(ctx context.Context, where string, arg interface{}) (*models.Dealer, error) {
	query := `
		SELECT id, name, url, location, adapter, scraping_enabled, last_scraped_at, vehicle_count, created_at
		FROM dealers ` + where

	var d models.Dealer
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&d.ID, &d.Name, &d.URL, &d.Location, &d.Adapter, &d.ScrapingEnabled, &d.LastScrapedAt, &d.VehicleCount, &d.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) ListDealers(ctx context.Context, enabledOnly bool) ([]models.Dealer, error) {
	query := `
		SELECT id, name, url, location, adapter, scraping_enabled, last_scraped_at, vehicle_count, created_at
		FROM dealers`
	if enabledOnly {
		query += ` WHERE scraping_enabled`
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dealers []models.Dealer
	for rows.Next() {
		var d models.Dealer
		if err := rows.Scan(
			&d.ID, &d.Name, &d.URL, &d.Location, &d.Adapter, &d.ScrapingEnabled, &d.LastScrapedAt, &d.VehicleCount, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		dealers = append(dealers, d)
	}
	return dealers, rows.Err()
}

// TouchDealerScraped records a completed per-dealer scrape in one statement
// so overlapping jobs touching the same dealer cannot race a read-modify-write.
func (s *PostgresStore) TouchDealerScraped(ctx context.Context, id uuid.UUID, at time.Time, vehicleCount int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE dealers SET last_scraped_at = $2, vehicle_count = $3 WHERE id = $1`,
		id, at, vehicleCount,
	)
	return err
}

func (s *PostgresStore) CountDealers(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dealers`).Scan(&count)
	return count, err
}

// =============================================================================
// Scrape Jobs
// =============================================================================

func (s *PostgresStore) CreateScrapeJob(ctx context.Context, job *models.ScrapeJob) error {
	query := `
		INSERT INTO scrape_jobs (
			id, dealer_urls, max_per_dealer, status, progress, dealers_total,
			dealers_completed, vehicles_found, vehicles_added, vehicles_updated,
			vehicles_skipped, images_scraped, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.pool.Exec(ctx, query,
		job.ID, job.DealerURLs, job.MaxPerDealer, job.Status, job.Progress, job.DealersTotal,
		job.DealersCompleted, job.VehiclesFound, job.VehiclesAdded, job.VehiclesUpdated,
		job.VehiclesSkipped, job.ImagesScraped, job.ErrorMessage, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// UpdateScrapeJobProgress persists interim counters. The completed_at guard
// keeps terminal jobs frozen even if a straggling worker writes late.
func (s *PostgresStore) UpdateScrapeJobProgress(ctx context.Context, job *models.ScrapeJob) error {
	query := `
		UPDATE scrape_jobs SET
			status = $2, progress = $3, dealers_completed = $4,
			vehicles_found = $5, vehicles_added = $6, vehicles_updated = $7,
			vehicles_skipped = $8, images_scraped = $9, error_message = $10,
			updated_at = NOW()
		WHERE id = $1 AND completed_at IS NULL`

	_, err := s.pool.Exec(ctx, query,
		job.ID, job.Status, job.Progress, job.DealersCompleted,
		job.VehiclesFound, job.VehiclesAdded, job.VehiclesUpdated,
		job.VehiclesSkipped, job.ImagesScraped, job.ErrorMessage,
	)
	return err
}

// CloseScrapeJob transitions a job into a terminal state exactly once.
// Returns false when the job was already terminal; the late close is a no-op.
func (s *PostgresStore) CloseScrapeJob(ctx context.Context, job *models.ScrapeJob) (bool, error) {
	query := `
		UPDATE scrape_jobs SET
			status = $2, progress = $3, dealers_completed = $4,
			vehicles_found = $5, vehicles_added = $6, vehicles_updated = $7,
			vehicles_skipped = $8, images_scraped = $9, error_message = $10,
			updated_at = NOW(), completed_at = $11
		WHERE id = $1 AND completed_at IS NULL`

	tag, err := s.pool.Exec(ctx, query,
		job.ID, job.Status, job.Progress, job.DealersCompleted,
		job.VehiclesFound, job.VehiclesAdded, job.VehiclesUpdated,
		job.VehiclesSkipped, job.ImagesScraped, job.ErrorMessage, job.CompletedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetScrapeJob(ctx context.Context, id uuid.UUID) (*models.ScrapeJob, error) {
	query := `
		SELECT id, dealer_urls, max_per_dealer, status, progress, dealers_total,
			dealers_completed, vehicles_found, vehicles_added, vehicles_updated,
			vehicles_skipped, images_scraped, error_message, created_at, updated_at, completed_at
		FROM scrape_jobs WHERE id = $1`

	var job models.ScrapeJob
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.DealerURLs, &job.MaxPerDealer, &job.Status, &job.Progress, &job.DealersTotal,
		&job.DealersCompleted, &job.VehiclesFound, &job.VehiclesAdded, &job.VehiclesUpdated,
		&job.VehiclesSkipped, &job.ImagesScraped, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) ListScrapeJobs(ctx context.Context, limit int) ([]models.ScrapeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, dealer_urls, max_per_dealer, status, progress, dealers_total,
			dealers_completed, vehicles_found, vehicles_added, vehicles_updated,
			vehicles_skipped, images_scraped, error_message, created_at, updated_at, completed_at
		FROM scrape_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ScrapeJob
	for rows.Next() {
		var job models.ScrapeJob
		if err := rows.Scan(
			&job.ID, &job.DealerURLs, &job.MaxPerDealer, &job.Status, &job.Progress, &job.DealersTotal,
			&job.DealersCompleted, &job.VehiclesFound, &job.VehiclesAdded, &job.VehiclesUpdated,
			&job.VehiclesSkipped, &job.ImagesScraped, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// =============================================================================
// Media
// =============================================================================

func (s *PostgresStore) UpsertMedia(ctx context.Context, m *models.Media) error {
	query := `
		INSERT INTO media (id, s3_key, content_hash, mime_type, file_size_bytes, original_url, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (original_url) DO UPDATE SET
			s3_key = COALESCE(EXCLUDED.s3_key, media.s3_key),
			content_hash = COALESCE(NULLIF(EXCLUDED.content_hash, ''), media.content_hash),
			file_size_bytes = COALESCE(EXCLUDED.file_size_bytes, media.file_size_bytes),
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		m.ID, m.S3Key, m.ContentHash, m.MimeType, m.FileSizeBytes, m.OriginalURL, m.Status, m.Attempts, m.CreatedAt,
	).Scan(&m.ID)
}

func (s *PostgresStore) GetMediaByOriginalURL(ctx context.Context, url string) (*models.Media, error) {
	query := `
		SELECT id, s3_key, content_hash, mime_type, file_size_bytes, original_url, status, attempts, created_at
		FROM media WHERE original_url = $1`

	var m models.Media
	err := s.pool.QueryRow(ctx, query, url).Scan(
		&m.ID, &m.S3Key, &m.ContentHash, &m.MimeType, &m.FileSizeBytes, &m.OriginalURL, &m.Status, &m.Attempts, &m.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) GetPendingMedia(ctx context.Context, limit int) ([]models.Media, error) {
	query := `
		SELECT id, s3_key, content_hash, mime_type, file_size_bytes, original_url, status, attempts, created_at
		FROM media
		WHERE status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(
			&m.ID, &m.S3Key, &m.ContentHash, &m.MimeType, &m.FileSizeBytes, &m.OriginalURL, &m.Status, &m.Attempts, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *PostgresStore) UpdateMediaStatus(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error {
	query := `UPDATE media SET status = $2, s3_key = COALESCE($3, s3_key), content_hash = COALESCE(NULLIF($4, ''), content_hash), attempts = $5 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, status, s3Key, contentHash, attempts)
	return err
}
