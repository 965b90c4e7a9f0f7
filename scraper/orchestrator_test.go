package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"lotpulse/config"
	"lotpulse/models"
	"lotpulse/services"
)

type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]models.ScrapeJob
	progress []int
	closed   chan struct{}
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:   make(map[uuid.UUID]models.ScrapeJob),
		closed: make(chan struct{}),
	}
}

func (s *fakeJobStore) CreateScrapeJob(ctx context.Context, job *models.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *fakeJobStore) UpdateScrapeJobProgress(ctx context.Context, job *models.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[job.ID]; ok && existing.CompletedAt != nil {
		return nil // terminal rows are frozen
	}
	s.progress = append(s.progress, job.Progress)
	s.jobs[job.ID] = *job
	return nil
}

func (s *fakeJobStore) CloseScrapeJob(ctx context.Context, job *models.ScrapeJob) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[job.ID]; ok && existing.CompletedAt != nil {
		return false, nil
	}
	s.jobs[job.ID] = *job
	close(s.closed)
	return true, nil
}

func (s *fakeJobStore) get(id uuid.UUID) models.ScrapeJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

type fakeRegistry struct {
	mu      sync.Mutex
	byURL   map[string]*models.Dealer
	touched []uuid.UUID
}

func (r *fakeRegistry) GetDealerByURL(ctx context.Context, url string) (*models.Dealer, error) {
	if d, ok := r.byURL[url]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeRegistry) ListDealers(ctx context.Context, enabledOnly bool) ([]models.Dealer, error) {
	var out []models.Dealer
	for _, d := range r.byURL {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeRegistry) TouchDealerScraped(ctx context.Context, id uuid.UUID, at time.Time, vehicleCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	return nil
}

func (r *fakeRegistry) CountVehiclesForDealer(ctx context.Context, id uuid.UUID) (int, error) {
	return 0, nil
}

type fakeReconciler struct{}

func (fakeReconciler) Reconcile(ctx context.Context, dealerID uuid.UUID, raw []models.RawListing) (*services.ReconcileResult, error) {
	return &services.ReconcileResult{Added: len(raw)}, nil
}

// scriptedAdapter returns queued responses per URL, falling back to the
// default listings.
type scriptedAdapter struct {
	mu       sync.Mutex
	errs     map[string][]error // consumed per call before success
	listings map[string][]models.RawListing
	calls    map[string]int
}

func newScriptedAdapter() *scriptedAdapter {
	return &scriptedAdapter{
		errs:     make(map[string][]error),
		listings: make(map[string][]models.RawListing),
		calls:    make(map[string]int),
	}
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) FetchListings(ctx context.Context, dealerURL string, max int) ([]models.RawListing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[dealerURL]++
	if queue := a.errs[dealerURL]; len(queue) > 0 {
		err := queue[0]
		a.errs[dealerURL] = queue[1:]
		return nil, err
	}
	return a.listings[dealerURL], nil
}

func (a *scriptedAdapter) callCount(url string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[url]
}

func testConfig() *config.Config {
	return &config.Config{
		Scraper: config.ScraperConfig{
			Concurrency:   2,
			MaxPerDealer:  100,
			DealerTimeout: 5 * time.Second,
			MaxRetries:    2,
			RetryBackoff:  time.Millisecond,
			RatePerSec:    1000,
		},
		Adapters: map[string]*config.AdapterConfig{},
	}
}

func newTestOrchestrator(t *testing.T, adapter Adapter) (*Orchestrator, *fakeJobStore, *fakeRegistry) {
	t.Helper()
	jobs := newFakeJobStore()
	registry := &fakeRegistry{byURL: make(map[string]*models.Dealer)}
	o := NewOrchestrator(context.Background(), testConfig(), nil, jobs, registry, fakeReconciler{})
	o.RegisterAdapter("generic", adapter)
	return o, jobs, registry
}

func waitClosed(t *testing.T, jobs *fakeJobStore) {
	t.Helper()
	select {
	case <-jobs.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached a terminal status")
	}
}

func TestStartJobRequiresDealers(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, newScriptedAdapter())

	if _, err := o.StartJob(context.Background(), nil, 0); !errors.Is(err, ErrNoDealers) {
		t.Errorf("nil urls: got %v, want ErrNoDealers", err)
	}
	if _, err := o.StartJob(context.Background(), []string{"", "  "}, 0); !errors.Is(err, ErrNoDealers) {
		t.Errorf("blank urls: got %v, want ErrNoDealers", err)
	}
}

func TestJobCompletes(t *testing.T) {
	adapter := newScriptedAdapter()
	adapter.listings["https://one.example"] = []models.RawListing{{VIN: "1HGCM82633A004352"}, {VIN: "2HGCM82633A004353"}}
	adapter.listings["https://two.example"] = []models.RawListing{{VIN: "5YJSA1E26MF123456"}}

	o, jobs, _ := newTestOrchestrator(t, adapter)

	job, err := o.StartJob(context.Background(), []string{"https://one.example", "https://two.example"}, 0)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if job.Status != models.JobStatusQueued {
		t.Errorf("initial status = %s, want queued", job.Status)
	}
	waitClosed(t, jobs)

	final := jobs.get(job.ID)
	if final.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	if final.VehiclesFound != 3 || final.VehiclesAdded != 3 {
		t.Errorf("found=%d added=%d, want 3/3", final.VehiclesFound, final.VehiclesAdded)
	}
	if final.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	prev := 0
	for _, p := range jobs.progress {
		if p < prev {
			t.Errorf("progress went backwards: %v", jobs.progress)
			break
		}
		prev = p
	}
}

func TestJobCompletedWithErrors(t *testing.T) {
	adapter := newScriptedAdapter()
	adapter.listings["https://good.example"] = []models.RawListing{{VIN: "1HGCM82633A004352"}}
	adapter.errs["https://bad.example"] = []error{
		Permanent(errors.New("inventory markup changed")),
	}

	o, jobs, _ := newTestOrchestrator(t, adapter)
	job, err := o.StartJob(context.Background(), []string{"https://good.example", "https://bad.example"}, 0)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitClosed(t, jobs)

	final := jobs.get(job.ID)
	if final.Status != models.JobStatusCompletedWithErrors {
		t.Errorf("status = %s, want completed_with_errors", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
	if final.VehiclesAdded != 1 {
		t.Errorf("added = %d, want 1 from the surviving dealer", final.VehiclesAdded)
	}
}

func TestJobFailsWhenAllDealersFail(t *testing.T) {
	adapter := newScriptedAdapter()
	adapter.errs["https://down.example"] = []error{
		Permanent(errors.New("status 403")),
	}

	o, jobs, _ := newTestOrchestrator(t, adapter)
	job, err := o.StartJob(context.Background(), []string{"https://down.example"}, 0)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitClosed(t, jobs)

	final := jobs.get(job.ID)
	if final.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", final.Status)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100 even on failure", final.Progress)
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	adapter := newScriptedAdapter()
	url := "https://flaky.example"
	adapter.errs[url] = []error{
		Transient(errors.New("status 503")),
		Transient(errors.New("status 503")),
	}
	adapter.listings[url] = []models.RawListing{{VIN: "1HGCM82633A004352"}}

	o, jobs, _ := newTestOrchestrator(t, adapter)
	job, err := o.StartJob(context.Background(), []string{url}, 0)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitClosed(t, jobs)

	final := jobs.get(job.ID)
	if final.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed after retries", final.Status)
	}
	if got := adapter.callCount(url); got != 3 {
		t.Errorf("adapter called %d times, want 3", got)
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	adapter := newScriptedAdapter()
	url := "https://gone.example"
	adapter.errs[url] = []error{
		Permanent(errors.New("status 404")),
		Permanent(errors.New("status 404")),
	}

	o, jobs, _ := newTestOrchestrator(t, adapter)
	job, err := o.StartJob(context.Background(), []string{url}, 0)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitClosed(t, jobs)

	if got := adapter.callCount(url); got != 1 {
		t.Errorf("adapter called %d times, want 1", got)
	}
	if final := jobs.get(job.ID); final.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", final.Status)
	}
}

func TestRegisteredDealerIsTouched(t *testing.T) {
	adapter := newScriptedAdapter()
	url := "https://known.example"
	adapter.listings[url] = []models.RawListing{{VIN: "1HGCM82633A004352"}}

	o, jobs, registry := newTestOrchestrator(t, adapter)
	dealerID := uuid.New()
	registry.byURL[url] = &models.Dealer{ID: dealerID, URL: url, ScrapingEnabled: true}

	if _, err := o.StartJob(context.Background(), []string{url}, 0); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitClosed(t, jobs)

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.touched) != 1 || registry.touched[0] != dealerID {
		t.Errorf("dealer touch = %v, want [%s]", registry.touched, dealerID)
	}
}

func TestPauseSkipsScheduledRuns(t *testing.T) {
	adapter := newScriptedAdapter()
	o, _, registry := newTestOrchestrator(t, adapter)
	registry.byURL["https://one.example"] = &models.Dealer{ID: uuid.New(), URL: "https://one.example", ScrapingEnabled: true}

	o.Pause()
	job, err := o.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if job != nil {
		t.Error("paused orchestrator still started a job")
	}

	o.Resume()
	if o.IsPaused() {
		t.Error("resume did not clear the pause flag")
	}
}

func TestAdapterSelection(t *testing.T) {
	cfg := testConfig()
	cfg.Adapters = map[string]*config.AdapterConfig{
		"dealercarsearch": {ID: "dealercarsearch", Handler: "html", HostPatterns: []string{"*.dealercarsearch.com"}},
		"generic":         {ID: "generic", Handler: "html", HostPatterns: []string{"*"}},
	}

	jobs := newFakeJobStore()
	registry := &fakeRegistry{byURL: make(map[string]*models.Dealer)}
	o := NewOrchestrator(context.Background(), cfg, nil, jobs, registry, fakeReconciler{})

	special := newScriptedAdapter()
	fallback := newScriptedAdapter()
	o.RegisterAdapter("dealercarsearch", special)
	o.RegisterAdapter("generic", fallback)

	if got := o.adapterFor(&models.Dealer{URL: "https://cars.dealercarsearch.com/inventory"}); got != Adapter(special) {
		t.Error("host pattern did not select the site adapter")
	}
	if got := o.adapterFor(&models.Dealer{URL: "https://smalltownmotors.example"}); got != Adapter(fallback) {
		t.Error("unknown host did not fall back to generic")
	}
	if got := o.adapterFor(&models.Dealer{URL: "https://smalltownmotors.example", Adapter: "dealercarsearch"}); got != Adapter(special) {
		t.Error("explicit dealer adapter was ignored")
	}
}
