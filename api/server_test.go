package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"lotpulse/config"
	"lotpulse/models"
	"lotpulse/scraper"
	"lotpulse/services"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]models.ScrapeJob
}

func (s *memJobStore) CreateScrapeJob(ctx context.Context, job *models.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memJobStore) UpdateScrapeJobProgress(ctx context.Context, job *models.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memJobStore) CloseScrapeJob(ctx context.Context, job *models.ScrapeJob) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return true, nil
}

type memRegistry struct{}

func (memRegistry) GetDealerByURL(ctx context.Context, url string) (*models.Dealer, error) {
	return nil, nil
}

func (memRegistry) ListDealers(ctx context.Context, enabledOnly bool) ([]models.Dealer, error) {
	return nil, nil
}

func (memRegistry) TouchDealerScraped(ctx context.Context, id uuid.UUID, at time.Time, vehicleCount int) error {
	return nil
}

func (memRegistry) CountVehiclesForDealer(ctx context.Context, id uuid.UUID) (int, error) {
	return 0, nil
}

type memReconciler struct{}

func (memReconciler) Reconcile(ctx context.Context, dealerID uuid.UUID, raw []models.RawListing) (*services.ReconcileResult, error) {
	return &services.ReconcileResult{}, nil
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Scraper: config.ScraperConfig{
			Concurrency:   1,
			MaxPerDealer:  100,
			DealerTimeout: time.Second,
			RetryBackoff:  time.Millisecond,
			RatePerSec:    1000,
		},
		Adapters: map[string]*config.AdapterConfig{},
	}
	jobs := &memJobStore{jobs: make(map[uuid.UUID]models.ScrapeJob)}
	orch := scraper.NewOrchestrator(context.Background(), cfg, nil, jobs, memRegistry{}, memReconciler{})
	t.Cleanup(orch.Wait)

	return NewHandler(Deps{Orchestrator: orch})
}

func TestCreateJobAccepted(t *testing.T) {
	handler := testHandler(t)

	body := `{"dealer_urls": ["https://smalltownmotors.example/inventory"], "max_per_dealer": 50}`
	req := httptest.NewRequest("POST", "/api/scrape/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var job models.ScrapeJob
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID == uuid.Nil {
		t.Error("job id not assigned")
	}
	if job.Status != models.JobStatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.DealersTotal != 1 || job.MaxPerDealer != 50 {
		t.Errorf("dealers_total=%d max_per_dealer=%d", job.DealersTotal, job.MaxPerDealer)
	}
}

func TestCreateJobRejectsEmptyURLs(t *testing.T) {
	handler := testHandler(t)

	for _, body := range []string{
		`{}`,
		`{"dealer_urls": []}`,
		`{"dealer_urls": ["", "  "]}`,
	} {
		req := httptest.NewRequest("POST", "/api/scrape/jobs", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateJobRejectsMalformedBody(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest("POST", "/api/scrape/jobs", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetJobRejectsBadID(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest("GET", "/api/scrape/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/vehicles?limit=30&offset=junk", nil)

	if got := parseIntParam(req, "limit", 50, 500); got != 30 {
		t.Errorf("limit = %d, want 30", got)
	}
	if got := parseIntParam(req, "offset", 0, 0); got != 0 {
		t.Errorf("junk offset = %d, want default 0", got)
	}
	if got := parseIntParam(req, "missing", 20, 100); got != 20 {
		t.Errorf("missing = %d, want default 20", got)
	}

	req = httptest.NewRequest("GET", "/api/vehicles?limit=9999", nil)
	if got := parseIntParam(req, "limit", 50, 500); got != 500 {
		t.Errorf("capped limit = %d, want 500", got)
	}
}
