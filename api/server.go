package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"lotpulse/models"
	"lotpulse/scraper"
	"lotpulse/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps carries everything the HTTP surface needs. The orchestrator owns job
// execution; handlers only create jobs and read state.
type Deps struct {
	Store        *storage.PostgresStore
	Orchestrator *scraper.Orchestrator
	Logs         *storage.SQLiteStore // optional
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth(deps))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape/jobs", handleCreateJob(deps))
		r.Get("/scrape/jobs", handleListJobs(deps))
		r.Get("/scrape/jobs/{id}", handleGetJob(deps))
		r.Get("/scrape/jobs/{id}/logs", handleJobLogs(deps))
		r.Post("/scrape/dealers/{id}", handleScrapeDealer(deps))

		r.Get("/vehicles", handleListVehicles(deps))
		r.Get("/vehicles/{vin}", handleGetVehicle(deps))

		r.Get("/dealers", handleListDealers(deps))
		r.Post("/dealers", handleCreateDealer(deps))
		r.Get("/dealers/{id}", handleGetDealer(deps))

		r.Get("/stats", handleStats(deps))
	})

	return r
}

type createJobRequest struct {
	DealerURLs   []string `json:"dealer_urls"`
	MaxPerDealer int      `json:"max_per_dealer"`
}

func handleCreateJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		job, err := deps.Orchestrator.StartJob(r.Context(), req.DealerURLs, req.MaxPerDealer)
		if errors.Is(err, scraper.ErrNoDealers) {
			httpError(w, http.StatusBadRequest, "dealer_urls is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to create job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		jobs, err := deps.Store.ListScrapeJobs(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list jobs: %v", err)
			return
		}
		if jobs == nil {
			jobs = []models.ScrapeJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid job id")
			return
		}

		job, err := deps.Store.GetScrapeJob(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get job: %v", err)
			return
		}
		if job == nil {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleJobLogs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Logs == nil {
			writeJSON(w, http.StatusOK, []models.ScrapeLog{})
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid job id")
			return
		}

		logs, err := deps.Logs.GetLogsForJob(id, parseIntParam(r, "limit", 200, 1000))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get logs: %v", err)
			return
		}
		if logs == nil {
			logs = []models.ScrapeLog{}
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

// handleScrapeDealer kicks off a single-dealer job for a registered dealer.
func handleScrapeDealer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid dealer id")
			return
		}

		dealer, err := deps.Store.GetDealerByID(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get dealer: %v", err)
			return
		}
		if dealer == nil {
			httpError(w, http.StatusNotFound, "dealer not found")
			return
		}

		job, err := deps.Orchestrator.StartJob(r.Context(), []string{dealer.URL}, parseIntParam(r, "max", 0, 0))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to create job: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListVehicles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := models.VehicleFilter{
			Make:      q.Get("make"),
			Model:     q.Get("model"),
			Condition: q.Get("condition"),
			Status:    q.Get("status"),
			Limit:     parseIntParam(r, "limit", 50, 500),
		}
		if raw := q.Get("dealer_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid dealer_id")
				return
			}
			filter.DealerID = &id
		}
		if raw := q.Get("max_price"); raw != "" {
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil || price < 0 {
				httpError(w, http.StatusBadRequest, "invalid max_price")
				return
			}
			filter.MaxPrice = &price
		}

		vehicles, err := deps.Store.ListVehicles(r.Context(), filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list vehicles: %v", err)
			return
		}
		if vehicles == nil {
			vehicles = []models.Vehicle{}
		}
		writeJSON(w, http.StatusOK, vehicles)
	}
}

func handleGetVehicle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicle, err := deps.Store.GetVehicleByVIN(r.Context(), chi.URLParam(r, "vin"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get vehicle: %v", err)
			return
		}
		if vehicle == nil {
			httpError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		writeJSON(w, http.StatusOK, vehicle)
	}
}

func handleListDealers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enabledOnly := r.URL.Query().Get("enabled") == "true"

		dealers, err := deps.Store.ListDealers(r.Context(), enabledOnly)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list dealers: %v", err)
			return
		}
		if dealers == nil {
			dealers = []models.Dealer{}
		}
		writeJSON(w, http.StatusOK, dealers)
	}
}

type createDealerRequest struct {
	Name            string `json:"name"`
	URL             string `json:"website_url"`
	Location        string `json:"location"`
	Adapter         string `json:"adapter"`
	ScrapingEnabled *bool  `json:"scraping_enabled"`
}

func handleCreateDealer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createDealerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "website_url is required")
			return
		}

		enabled := true
		if req.ScrapingEnabled != nil {
			enabled = *req.ScrapingEnabled
		}

		dealer := &models.Dealer{
			ID:              uuid.New(),
			Name:            req.Name,
			URL:             req.URL,
			Location:        req.Location,
			Adapter:         req.Adapter,
			ScrapingEnabled: enabled,
			CreatedAt:       time.Now(),
		}
		if err := deps.Store.UpsertDealer(r.Context(), dealer); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to save dealer: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, dealer)
	}
}

func handleGetDealer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid dealer id")
			return
		}

		dealer, err := deps.Store.GetDealerByID(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get dealer: %v", err)
			return
		}
		if dealer == nil {
			httpError(w, http.StatusNotFound, "dealer not found")
			return
		}
		writeJSON(w, http.StatusOK, dealer)
	}
}

type statsResponse struct {
	Vehicles int            `json:"vehicles"`
	Dealers  int            `json:"dealers"`
	TopMakes map[string]int `json:"top_makes"`
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicles, err := deps.Store.CountVehicles(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to count vehicles: %v", err)
			return
		}
		dealers, err := deps.Store.CountDealers(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to count dealers: %v", err)
			return
		}
		makes, err := deps.Store.TopMakes(r.Context(), 10)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to rank makes: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, statsResponse{
			Vehicles: vehicles,
			Dealers:  dealers,
			TopMakes: makes,
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Pool().Ping(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
