package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/mercadona-scraper/internal/api"
	"github.com/maltedev/mercadona-scraper/internal/browser"
	"github.com/maltedev/mercadona-scraper/internal/config"
	"github.com/maltedev/mercadona-scraper/internal/database"
	"github.com/maltedev/mercadona-scraper/internal/events"
	"github.com/maltedev/mercadona-scraper/internal/logger"
	"github.com/maltedev/mercadona-scraper/internal/metrics"
	"github.com/maltedev/mercadona-scraper/internal/pacing"
	"github.com/maltedev/mercadona-scraper/internal/parser"
	"github.com/maltedev/mercadona-scraper/internal/scraper"
	"github.com/maltedev/mercadona-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var cleanErrors bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape the catalog, resuming after the last written record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := config.ReadFile(v, configPath); err != nil {
				return err
			}
			if err := v.BindPFlag("scraper.postal_code", cmd.Flags().Lookup("postal-code")); err != nil {
				return err
			}
			if err := v.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			cfg, err := config.Decode(v)
			if err != nil {
				return err
			}

			log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(log)

			return run(cmd.Context(), cfg, cleanErrors, log)
		},
	}

	cmd.Flags().String("postal-code", "", "five-digit postal code used to localize the catalog")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	cmd.Flags().BoolVar(&cleanErrors, "clean-errors", false, "remove the error log and error snapshots before starting")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, cleanErrors bool, log *slog.Logger) error {
	snapshots := storage.NewSnapshotStore(cfg.Output.SnapshotDir)
	if cleanErrors {
		removed, err := storage.RemoveArtifacts(cfg.Output.ErrorLog, snapshots.Dir())
		if err != nil {
			return fmt.Errorf("failed to clean error artifacts: %w", err)
		}
		log.Info("removed error artifacts", "count", len(removed), "snapshot_dir", snapshots.Dir())
	}

	store, err := storage.NewRecordStore(cfg.Output.RecordsFile, cfg.Output.DelimiterRune())
	if err != nil {
		return err
	}
	errorLog, err := storage.NewErrorLog(cfg.Output.ErrorLog)
	if err != nil {
		return err
	}
	defer errorLog.Close()

	runID := uuid.NewString()
	runMetrics := metrics.New()
	progress := scraper.NewProgress()

	// Side services stop only after the walk, so the relay can flush the tail
	// of the outbox and the status server can report the final snapshot.
	sideCtx, stopSide := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	defer func() {
		stopSide()
		wg.Wait()
	}()

	var (
		mirrors  []scraper.RecordSink
		stats    api.OutboxStats
		relay    *database.Relay
		products *database.ProductRepository
	)

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			URL:      cfg.Database.URL,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}

		mirrors = append(mirrors, events.NewPublisher(db, runID, cfg.Redis.Stream, log))
		products = database.NewProductRepository(db)
		stats = database.NewOutboxRepository(db)

		if cfg.Redis.Enabled {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}

			relay = database.NewRelay(db, redisClient, log, database.RelayConfig{
				PollInterval: cfg.Redis.PollInterval,
				BatchSize:    cfg.Redis.BatchSize,
			})
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := relay.Start(sideCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("relay stopped with error", "error", err)
				}
			}()
		}
	}

	if cfg.Server.Enabled {
		handlers := api.NewHandlers(runID, progress, stats, log)
		server := api.NewServer(cfg.Server.Host, cfg.Server.Port, api.NewRouter(handlers, runMetrics.Registry), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(sideCtx); err != nil {
				log.Error("status server stopped with error", "error", err)
			}
		}()
	}

	b, err := browser.New(&browser.Options{
		Headless:          cfg.Browser.Headless,
		Timeout:           cfg.Browser.Timeout,
		NavigationRetries: cfg.Scraper.NavigationRetries,
		UserAgent:         cfg.Browser.UserAgent,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		AcceptLanguage:    cfg.Browser.AcceptLanguage,
		TimezoneID:        cfg.Browser.TimezoneID,
		Locale:            cfg.Browser.Locale,
		ProxyServer:       cfg.Browser.ProxyServer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer b.Close()

	page, err := b.NewPage()
	if err != nil {
		return err
	}
	defer page.Close()

	wait := browser.NewWaiter(cfg.Scraper.WaitTimeout, cfg.Scraper.PollInterval)

	opener := browser.CatalogOpener{
		URL:        cfg.Scraper.CatalogURL,
		PostalCode: cfg.Scraper.PostalCode,
		Wait:       wait,
		Logger:     log,
	}
	if err := opener.Open(ctx, page); err != nil {
		return err
	}

	s, err := scraper.New(scraper.Config{
		Driver:            page,
		Store:             store,
		Mirrors:           mirrors,
		ErrorLog:          errorLog,
		Snapshots:         snapshots,
		Parser:            parser.NewProductExtractor(cfg.Image.ThumbnailSize, cfg.Image.FullSize),
		Wait:              wait,
		ProductSettle:     pacing.New(cfg.Scraper.ProductSettle, cfg.Scraper.SettleJitter),
		SubcategorySettle: pacing.New(cfg.Scraper.SubcategorySettle, cfg.Scraper.SettleJitter),
		CategorySettle:    pacing.New(cfg.Scraper.CategorySettle, cfg.Scraper.SettleJitter),
		SkipNonFood:       cfg.Scraper.SkipNonFood,
		NonFood:           cfg.Scraper.NonFood,
		Metrics:           runMetrics,
		Progress:          progress,
		Logger:            log,
		RunID:             runID,
	})
	if err != nil {
		return err
	}

	runErr := s.Run(ctx)

	if relay != nil {
		flushCtx, cancel := context.WithTimeout(sideCtx, 30*time.Second)
		if err := relay.Flush(flushCtx); err != nil {
			log.Error("failed to flush outbox", "error", err)
		}
		cancel()
	}

	if products != nil {
		countCtx, cancel := context.WithTimeout(sideCtx, 10*time.Second)
		mirrored, err := products.CountByRun(countCtx, runID)
		cancel()
		if err != nil {
			log.Error("failed to count mirrored records", "error", err)
		} else {
			log.Info("mirrored records",
				"run_id", runID,
				"mirrored", mirrored,
				"recorded", progress.Snapshot().RecordsWritten,
			)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		log.Info("interrupted, the next run resumes after the last written record")
		return nil
	}
	return runErr
}
