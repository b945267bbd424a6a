package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"dealscout/config"
	"dealscout/mailsync"
	"dealscout/models"
	"dealscout/scraper"
	"dealscout/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler drives the periodic scrape and mailbox-sync cycles and services
// the ops-store command queue.
type Scheduler struct {
	cfg     *config.Config
	runner  *scraper.Runner
	engine  *mailsync.Engine
	ops     *storage.OpsStore
	filters scraper.SearchFilters
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}

	inferenceWorker Triggerable
	archiveWorker   Triggerable
	livenessWorker  Triggerable
}

func New(cfg *config.Config, runner *scraper.Runner, engine *mailsync.Engine, ops *storage.OpsStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		engine: engine,
		ops:    ops,
		filters: scraper.SearchFilters{
			Region:  cfg.Search.Region,
			Keyword: cfg.Search.Keyword,
		},
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(inference, archive, liveness Triggerable) {
	s.inferenceWorker = inference
	s.archiveWorker = archive
	s.livenessWorker = liveness
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	scheduled := 0
	if s.cfg.Scheduler.ScrapeCron != "" {
		log.Printf("Scrape schedule: %s", s.cfg.Scheduler.ScrapeCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.ScrapeCron, func() {
			if err := s.runner.RunAll(ctx, s.filters); err != nil {
				log.Printf("Scheduled scrape error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid scrape cron expression: %w", err)
		}
		scheduled++
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Scrape schedule: every %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.runner.RunAll(ctx, s.filters); err != nil {
						log.Printf("Scheduled scrape error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No scrape schedule configured, daemon will only respond to commands")
	}

	if s.cfg.Scheduler.SyncCron != "" && s.engine != nil {
		log.Printf("Mail sync schedule: %s", s.cfg.Scheduler.SyncCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.SyncCron, func() {
			if err := s.engine.SyncAll(ctx); err != nil {
				log.Printf("Scheduled sync error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid sync cron expression: %w", err)
		}
		scheduled++
	}

	if scheduled > 0 {
		s.cron.Start()
	}
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs a full scrape cycle immediately.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.runner.RunAll(ctx, s.filters)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ops.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.ops.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleCommand dispatches one queue entry. Scrapes and syncs run in their own
// goroutine so a long cycle does not stall the poll loop.
func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdScrapeNow:
		go func() {
			if err := s.runner.RunAll(ctx, s.filters); err != nil {
				log.Printf("Command scrape error: %v", err)
			}
		}()
		return nil

	case models.CmdScrapePlatform:
		params, err := s.ops.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if params == nil || params.Platform == "" {
			return fmt.Errorf("scrape_platform needs a platform")
		}
		filters := s.filters
		if params.Region != "" {
			filters.Region = params.Region
		}
		if params.Keyword != "" {
			filters.Keyword = params.Keyword
		}
		platform := params.Platform
		go func() {
			if _, err := s.runner.RunPlatform(ctx, platform, filters); err != nil {
				log.Printf("Command scrape error for %s: %v", platform, err)
			}
		}()
		return nil

	case models.CmdSyncNow:
		if s.engine == nil {
			return fmt.Errorf("mail sync not configured")
		}
		go func() {
			if err := s.engine.SyncAll(ctx); err != nil {
				log.Printf("Command sync error: %v", err)
			}
		}()
		return nil

	case models.CmdSyncAccount:
		if s.engine == nil {
			return fmt.Errorf("mail sync not configured")
		}
		params, err := s.ops.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if params == nil || params.AccountID == "" {
			return fmt.Errorf("sync_account needs an account_id")
		}
		accountID, err := uuid.Parse(params.AccountID)
		if err != nil {
			return fmt.Errorf("bad account_id %q: %w", params.AccountID, err)
		}
		go func() {
			if _, err := s.engine.Sync(ctx, accountID); err != nil {
				log.Printf("Command sync error for %s: %v", accountID, err)
			}
		}()
		return nil

	case models.CmdPause:
		s.runner.Pause()
		return nil

	case models.CmdResume:
		s.runner.Resume()
		return nil

	case models.CmdRunInference:
		if s.inferenceWorker == nil {
			return fmt.Errorf("inference worker not running")
		}
		s.inferenceWorker.Trigger()
		log.Println("Inference worker triggered via command")
		return nil

	case models.CmdRunArchive:
		if s.archiveWorker == nil {
			return fmt.Errorf("archive worker not running")
		}
		s.archiveWorker.Trigger()
		log.Println("Archive worker triggered via command")
		return nil

	case models.CmdRunLiveness:
		if s.livenessWorker == nil {
			return fmt.Errorf("liveness worker not running")
		}
		s.livenessWorker.Trigger()
		log.Println("Liveness worker triggered via command")
		return nil

	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
