package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"dealscout/config"
	"dealscout/fetch"
	"dealscout/httputil"
	"dealscout/logging"
	"dealscout/mailsync"
	"dealscout/metrics"
	"dealscout/models"
	"dealscout/ratelimit"
	"dealscout/scheduler"
	"dealscout/scraper"
	"dealscout/secrets"
	"dealscout/services"
	"dealscout/session"
	"dealscout/storage"
	"dealscout/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run a scrape cycle once and exit")
	syncNow   = flag.Bool("sync", false, "Run a mailbox sync once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogDir)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting dealscout...")
	log.Printf("Loaded %d platform configs", len(cfg.Platforms))
	for id, platform := range cfg.Platforms {
		log.Printf("  - %s (%s)", platform.Name, id)
	}

	box, err := secrets.NewBoxFromBase64(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to load encryption key: %v", err)
	}

	ctx := context.Background()

	store, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.PostgresDSN))

	ops, err := storage.NewOpsStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open ops store: %v", err)
	}
	defer ops.Close()
	log.Printf("Ops database: %s", cfg.OpsDBPath)

	clients := httputil.NewClients(cfg.ProxyURL, 30*time.Second)
	if cfg.ProxyURL != "" {
		log.Printf("Proxy: %s", cfg.ProxyURL)
	}

	cookies := session.NewCookieStore(store, box)
	tokens := session.NewTokenProvider(store, box, cfg.OAuth, clients.API)

	limits := ratelimit.NewRegistry(ratelimit.Config{
		Capacity: 60,
		MinDelay: 3 * time.Second,
		MaxDelay: 8 * time.Second,
	})
	for id, platform := range cfg.Platforms {
		limits.Configure(id, ratelimit.Config{
			Capacity: platform.HourlyCap,
			MinDelay: time.Duration(platform.MinDelayMS) * time.Millisecond,
			MaxDelay: time.Duration(platform.MaxDelayMS) * time.Millisecond,
		})
	}

	browser := fetch.NewBrowserStrategy()
	defer browser.Close()
	fetcher := fetch.NewFetcher(fetch.NewDirectStrategy(clients.Scraping), browser, cookies, limits, cfg.Platforms)

	recon := services.NewReconciler(store, services.NewMarginInferrer())
	runner := scraper.NewRunner(cfg.Platforms, scraper.NewRegistry(), fetcher, recon, store, ops)

	var guard *mailsync.DedupGuard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		guard = mailsync.NewDedupGuard(rdb, 0)
		log.Printf("Redis dedup guard: %s", cfg.RedisAddr)
	}
	providers := map[string]mailsync.Provider{
		models.ProviderGmail:   mailsync.NewGmailProvider(clients.API),
		models.ProviderOutlook: mailsync.NewGraphProvider(clients.API),
	}
	engine := mailsync.NewEngine(store, tokens, providers, recon, guard, mailsync.EngineConfig{
		InitialBatch: cfg.Mail.InitialBatch,
		BodyTimeout:  cfg.Mail.BodyTimeout,
		AlertDomains: alertDomains(cfg.Platforms),
		ListingHosts: listingHosts(cfg.Platforms),
	})

	filters := scraper.SearchFilters{Region: cfg.Search.Region, Keyword: cfg.Search.Keyword}

	// One-shot modes
	if *scrapeNow {
		log.Println("Running scrape...")
		if err := runner.RunAll(ctx, filters); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}
	if *syncNow {
		log.Println("Running mailbox sync...")
		if err := engine.SyncAll(ctx); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		log.Println("Sync complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, runner, engine, ops)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	opsLog := func(level models.LogLevel, source, message string) {
		if err := ops.Log(nil, level, source, message); err != nil {
			log.Printf("Warning: ops log failed: %v", err)
		}
	}

	inference := workers.NewInferenceWorker(store, services.NewMarginInferrer())
	inference.SetLogger(opsLog)
	go inference.Run(ctx, 50, 10*time.Minute)
	log.Println("Inference worker started")

	liveness := workers.NewLivenessWorker(store, limits, clients.NoFollow)
	liveness.SetLogger(opsLog)
	go liveness.Run(ctx, 7*24*time.Hour, 25, time.Hour)
	log.Println("Liveness worker started")

	var archiveTrig scheduler.Triggerable
	if cfg.S3.Bucket != "" {
		archiver, err := storage.NewPayloadArchiver(ctx, storage.ArchiveConfig{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			KeyPrefix:       cfg.S3.KeyPrefix,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
		})
		if err != nil {
			log.Printf("Warning: payload archiver disabled: %v", err)
		} else {
			archive := workers.NewArchiveWorker(store, archiver)
			archive.SetLogger(opsLog)
			go archive.Run(ctx, 100, 15*time.Minute)
			archiveTrig = archive
			log.Println("Archive worker started")
		}
	}

	sched.SetWorkers(inference, archiveTrig, liveness)

	srv := metrics.Serve(cfg.MetricsAddr)
	if srv != nil {
		log.Printf("Metrics on %s", cfg.MetricsAddr)
		defer srv.Close()
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// alertDomains collects every platform's alert-sender domains for the mail
// categorizer.
func alertDomains(platforms map[string]*config.PlatformConfig) map[string]bool {
	domains := make(map[string]bool)
	for _, p := range platforms {
		for _, d := range p.AlertDomains {
			domains[strings.ToLower(d)] = true
		}
	}
	return domains
}

// listingHosts maps each platform's marketplace host to its id so alert-email
// links can be attributed.
func listingHosts(platforms map[string]*config.PlatformConfig) map[string]string {
	hosts := make(map[string]string)
	for id, p := range platforms {
		u, err := url.Parse(p.BaseURL)
		if err != nil || u.Host == "" {
			continue
		}
		hosts[strings.TrimPrefix(strings.ToLower(u.Host), "www.")] = id
	}
	return hosts
}

// maskConnectionString hides the password in a DSN for logging
func maskConnectionString(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Redacted()
}
