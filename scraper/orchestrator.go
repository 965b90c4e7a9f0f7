package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"lotpulse/config"
	"lotpulse/httputil"
	"lotpulse/models"
	"lotpulse/services"
)

// ErrNoDealers is returned synchronously when a job is requested with an
// empty dealer list. Every other failure is recorded on the job record.
var ErrNoDealers = errors.New("no dealer urls provided")

// JobStore persists the durable job record that polling clients read.
type JobStore interface {
	CreateScrapeJob(ctx context.Context, job *models.ScrapeJob) error
	UpdateScrapeJobProgress(ctx context.Context, job *models.ScrapeJob) error
	CloseScrapeJob(ctx context.Context, job *models.ScrapeJob) (bool, error)
}

// DealerRegistry resolves and touches registered dealers.
type DealerRegistry interface {
	GetDealerByURL(ctx context.Context, url string) (*models.Dealer, error)
	ListDealers(ctx context.Context, enabledOnly bool) ([]models.Dealer, error)
	TouchDealerScraped(ctx context.Context, id uuid.UUID, at time.Time, vehicleCount int) error
	CountVehiclesForDealer(ctx context.Context, id uuid.UUID) (int, error)
}

// Reconciler merges one dealer's batch into the vehicle store.
type Reconciler interface {
	Reconcile(ctx context.Context, dealerID uuid.UUID, raw []models.RawListing) (*services.ReconcileResult, error)
}

// OpsLogger mirrors orchestration logs into the operational store.
type OpsLogger interface {
	Log(jobID *uuid.UUID, level models.LogLevel, message, dealerURL string) error
}

// Orchestrator drives scrape jobs: one bounded background run per job id,
// fanned out over a worker pool of per-dealer fetches.
type Orchestrator struct {
	cfg        *config.Config
	jobs       JobStore
	dealers    DealerRegistry
	reconciler Reconciler
	adapters   map[string]Adapter
	limiter    *rate.Limiter
	ops        OpsLogger

	// base outlives any single request; jobs are decoupled from the HTTP
	// call that created them.
	base context.Context

	mu     sync.Mutex
	paused bool
	wg     sync.WaitGroup
}

func NewOrchestrator(base context.Context, cfg *config.Config, clients *httputil.Clients, jobs JobStore, dealers DealerRegistry, reconciler Reconciler) *Orchestrator {
	adapters := make(map[string]Adapter)
	for id, adapterCfg := range cfg.Adapters {
		var adapter Adapter
		if clients != nil {
			adapter = NewAdapter(adapterCfg, clients.Scraping)
		} else {
			adapter = NewAdapter(adapterCfg, nil)
		}
		adapters[id] = adapter
	}

	ratePerSec := cfg.Scraper.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	return &Orchestrator{
		cfg:        cfg,
		jobs:       jobs,
		dealers:    dealers,
		reconciler: reconciler,
		adapters:   adapters,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), cfg.Scraper.Concurrency+1),
		base:       base,
	}
}

// SetOpsLogger wires the operational log mirror.
func (o *Orchestrator) SetOpsLogger(ops OpsLogger) {
	o.ops = ops
}

// RegisterAdapter overrides or adds an adapter by id.
func (o *Orchestrator) RegisterAdapter(id string, a Adapter) {
	o.adapters[id] = a
}

// StartJob validates the request, persists a queued job, and kicks off the
// background run. It returns immediately; callers poll the job record.
func (o *Orchestrator) StartJob(ctx context.Context, dealerURLs []string, maxPerDealer int) (*models.ScrapeJob, error) {
	var urls []string
	for _, u := range dealerURLs {
		if u = trimURL(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoDealers
	}

	if maxPerDealer <= 0 {
		maxPerDealer = o.cfg.Scraper.MaxPerDealer
	}

	now := time.Now()
	job := &models.ScrapeJob{
		ID:           uuid.New(),
		DealerURLs:   urls,
		MaxPerDealer: maxPerDealer,
		Status:       models.JobStatusQueued,
		DealersTotal: len(urls),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := o.jobs.CreateScrapeJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runJob(o.base, job)
	}()

	snapshot := *job
	return &snapshot, nil
}

// RunAll starts one job covering every scraping-enabled dealer. Used by the
// scheduler and the scrape_now command.
func (o *Orchestrator) RunAll(ctx context.Context) (*models.ScrapeJob, error) {
	if o.IsPaused() {
		log.Println("Scraper is paused, skipping run")
		return nil, nil
	}

	dealers, err := o.dealers.ListDealers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list dealers: %w", err)
	}

	var urls []string
	for _, d := range dealers {
		urls = append(urls, d.URL)
	}
	if len(urls) == 0 {
		log.Println("No scraping-enabled dealers registered")
		return nil, nil
	}

	return o.StartJob(ctx, urls, o.cfg.Scraper.MaxPerDealer)
}

// runJob executes the whole job lifecycle: running -> terminal. A single
// dealer failure never aborts the job.
func (o *Orchestrator) runJob(ctx context.Context, job *models.ScrapeJob) {
	job.Status = models.JobStatusRunning
	if err := o.jobs.UpdateScrapeJobProgress(ctx, job); err != nil {
		log.Printf("Warning: failed to mark job %s running: %v", job.ID, err)
	}
	o.log(job.ID, models.LogLevelInfo, fmt.Sprintf("Job started: %d dealers, cap %d", job.DealersTotal, job.MaxPerDealer), "")

	var (
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	g := &errgroup.Group{}
	concurrency := o.cfg.Scraper.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	g.SetLimit(concurrency)

	for _, dealerURL := range job.DealerURLs {
		dealerURL := dealerURL
		g.Go(func() error {
			outcome, err := o.scrapeDealer(ctx, job, dealerURL)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed++
				job.ErrorMessage = fmt.Sprintf("%s: %v", dealerURL, err)
				o.log(job.ID, models.LogLevelError, fmt.Sprintf("Dealer failed: %v", err), dealerURL)
			} else {
				succeeded++
				job.VehiclesFound += outcome.found
				job.VehiclesAdded += outcome.added
				job.VehiclesUpdated += outcome.updated
				job.VehiclesSkipped += outcome.skipped
				job.ImagesScraped += outcome.images
				o.log(job.ID, models.LogLevelInfo,
					fmt.Sprintf("Dealer done: %d found, %d added, %d updated, %d skipped", outcome.found, outcome.added, outcome.updated, outcome.skipped),
					dealerURL)
			}

			job.DealersCompleted++
			job.Progress = 100 * job.DealersCompleted / job.DealersTotal
			if err := o.jobs.UpdateScrapeJobProgress(ctx, job); err != nil {
				log.Printf("Warning: failed to persist job %s progress: %v", job.ID, err)
			}
			return nil
		})
	}
	g.Wait()

	switch {
	case failed == 0:
		job.Status = models.JobStatusCompleted
	case succeeded == 0:
		job.Status = models.JobStatusFailed
	default:
		job.Status = models.JobStatusCompletedWithErrors
	}

	now := time.Now()
	job.CompletedAt = &now
	closed, err := o.jobs.CloseScrapeJob(ctx, job)
	if err != nil {
		log.Printf("Error closing job %s: %v", job.ID, err)
		return
	}
	if !closed {
		log.Printf("Job %s was already terminal, close skipped", job.ID)
		return
	}
	o.log(job.ID, models.LogLevelInfo,
		fmt.Sprintf("Job %s: %d/%d dealers ok, %d added, %d updated", job.Status, succeeded, job.DealersTotal, job.VehiclesAdded, job.VehiclesUpdated), "")
}

type dealerOutcome struct {
	found   int
	added   int
	updated int
	skipped int
	images  int
}

// scrapeDealer is the per-dealer unit of work: resolve, fetch with bounded
// retries, reconcile, touch the registry.
func (o *Orchestrator) scrapeDealer(ctx context.Context, job *models.ScrapeJob, dealerURL string) (*dealerOutcome, error) {
	dealer, err := o.dealers.GetDealerByURL(ctx, dealerURL)
	if err != nil {
		return nil, fmt.Errorf("resolve dealer: %w", err)
	}
	registered := dealer != nil
	if dealer == nil {
		// Transient dealer scoped to this job; not persisted unless the
		// caller registers it explicitly.
		dealer = &models.Dealer{ID: uuid.New(), URL: dealerURL}
	}

	adapter := o.adapterFor(dealer)
	if adapter == nil {
		return nil, fmt.Errorf("no adapter for %s", dealerURL)
	}

	listings, err := o.fetchWithRetry(ctx, adapter, job, dealer.URL)
	if err != nil {
		return nil, err
	}
	if len(listings) > job.MaxPerDealer {
		listings = listings[:job.MaxPerDealer]
	}

	result, err := o.reconciler.Reconcile(ctx, dealer.ID, listings)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	if registered {
		count, err := o.dealers.CountVehiclesForDealer(ctx, dealer.ID)
		if err != nil {
			log.Printf("Warning: failed to count vehicles for %s: %v", dealerURL, err)
		} else if err := o.dealers.TouchDealerScraped(ctx, dealer.ID, time.Now(), count); err != nil {
			log.Printf("Warning: failed to touch dealer %s: %v", dealerURL, err)
		}
	}

	return &dealerOutcome{
		found:   len(listings),
		added:   result.Added,
		updated: result.Updated,
		skipped: result.Skipped,
		images:  result.ImagesQueued,
	}, nil
}

// fetchWithRetry runs the adapter under the per-dealer timeout, retrying
// transient failures up to the configured budget. Retries never escalate to
// the job level; re-running a job is a new job id.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, adapter Adapter, job *models.ScrapeJob, dealerURL string) ([]models.RawListing, error) {
	timeout := o.cfg.Scraper.DealerTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= o.cfg.Scraper.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * o.cfg.Scraper.RetryBackoff
			o.log(job.ID, models.LogLevelWarn,
				fmt.Sprintf("Retry %d after %s: %v", attempt, backoff, lastErr), dealerURL)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		listings, err := adapter.FetchListings(fetchCtx, dealerURL, job.MaxPerDealer)
		cancel()

		if err == nil {
			return listings, nil
		}
		lastErr = err
		if !IsTransient(err) {
			break
		}
	}
	return nil, lastErr
}

// adapterFor picks the adapter for a dealer: explicit selector first, then
// host-pattern match, then the generic fallback.
func (o *Orchestrator) adapterFor(dealer *models.Dealer) Adapter {
	if dealer.Adapter != "" {
		if a, ok := o.adapters[dealer.Adapter]; ok {
			return a
		}
	}

	if host := hostOf(dealer.URL); host != "" {
		for id, adapterCfg := range o.cfg.Adapters {
			if id == "generic" {
				continue
			}
			if matchesHost(adapterCfg.HostPatterns, host) {
				return o.adapters[id]
			}
		}
	}

	if a, ok := o.adapters["generic"]; ok {
		return a
	}
	for _, a := range o.adapters {
		return a
	}
	return nil
}

func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.paused = true
	o.mu.Unlock()
	log.Println("Scraper paused")
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
	log.Println("Scraper resumed")
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// Wait blocks until all in-flight jobs drain. Used on shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command, params *models.CommandParams) error {
	switch cmd.Command {
	case models.CmdScrapeNow:
		_, err := o.RunAll(ctx)
		return err
	case models.CmdScrapeDealer:
		if params == nil || params.DealerURL == "" {
			return errors.New("scrape_dealer command requires dealer_url")
		}
		_, err := o.StartJob(ctx, []string{params.DealerURL}, params.MaxPerDealer)
		return err
	case models.CmdPause:
		o.Pause()
	case models.CmdResume:
		o.Resume()
	}
	return nil
}

func (o *Orchestrator) log(jobID uuid.UUID, level models.LogLevel, message, dealerURL string) {
	if dealerURL != "" {
		log.Printf("[%s] %s: %s", level, dealerURL, message)
	} else {
		log.Printf("[%s] job %s: %s", level, jobID, message)
	}
	if o.ops != nil {
		o.ops.Log(&jobID, level, message, dealerURL)
	}
}

func trimURL(u string) string {
	return strings.TrimSpace(u)
}
