package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lotpulse/api"
	"lotpulse/config"
	"lotpulse/httputil"
	"lotpulse/logging"
	"lotpulse/models"
	"lotpulse/scheduler"
	"lotpulse/scraper"
	"lotpulse/services"
	"lotpulse/storage"
	"lotpulse/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run one scrape over all enabled dealers and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("lotpulse.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting lotpulse...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d adapter configs", len(cfg.Adapters))
	for id, adapter := range cfg.Adapters {
		log.Printf("  - %s (%s, %s)", adapter.Name, id, adapter.Handler)
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Scrape proxy: %s", maskURL(cfg.Proxy.URL))
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := storage.NewPostgresStore(baseCtx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskURL(cfg.Database.URL))

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("Operational database: %s", cfg.DBPath)

	mediaService := services.NewMediaService(pgStore)
	reconciler := services.NewReconciler(pgStore)
	reconciler.SetMediaQueue(mediaService)

	orchestrator := scraper.NewOrchestrator(baseCtx, cfg, clients, pgStore, pgStore, reconciler)
	orchestrator.SetOpsLogger(sqliteStore)

	if *scrapeNow {
		log.Println("Running one-shot scrape...")
		if _, err := orchestrator.RunAll(baseCtx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		orchestrator.Wait()
		log.Println("Scrape complete!")
		return
	}

	var uploader workers.S3Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(baseCtx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to init S3 uploader: %v", err)
		}
		uploader = s3Uploader
		log.Printf("Photo uploads -> s3://%s", cfg.S3.Bucket)
	} else {
		uploader = workers.NewNoOpUploader()
		log.Println("No S3 bucket configured, photo uploads disabled")
	}

	opsLog := func(level models.LogLevel, source, message string) {
		if err := sqliteStore.Log(nil, level, fmt.Sprintf("[%s] %s", source, message), ""); err != nil {
			log.Printf("Warning: ops log write failed: %v", err)
		}
	}

	mediaWorker := workers.NewMediaWorker(pgStore, uploader, clients.Media)
	mediaWorker.SetLogger(opsLog)
	go mediaWorker.Run(baseCtx, 20, 2*time.Minute)
	log.Println("Media worker started")

	freshnessWorker := workers.NewFreshnessWorker(pgStore, cfg.Scraper.StaleAfter)
	freshnessWorker.SetLogger(opsLog)
	go freshnessWorker.Run(baseCtx, 200, 30*time.Minute)
	log.Println("Freshness worker started")

	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	sched.SetWorkers(mediaWorker, freshnessWorker)
	if err := sched.Start(baseCtx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewHandler(api.Deps{
			Store:        pgStore,
			Orchestrator: orchestrator,
			Logs:         sqliteStore,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP API listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	sched.Stop()
	cancel()
	orchestrator.Wait()
	log.Println("Goodbye!")
}

// maskURL hides credentials in a connection URL for logging.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
