package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/database"
	"github.com/tgrayson/streamtv/internal/database/migrations"
	"github.com/tgrayson/streamtv/internal/epg"
	"github.com/tgrayson/streamtv/internal/ffmpeg"
	internalhttp "github.com/tgrayson/streamtv/internal/http"
	"github.com/tgrayson/streamtv/internal/http/handlers"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/resolver"
	"github.com/tgrayson/streamtv/internal/scheduler"
	"github.com/tgrayson/streamtv/internal/service"
	"github.com/tgrayson/streamtv/internal/ssdp"
	"github.com/tgrayson/streamtv/internal/storage"
	"github.com/tgrayson/streamtv/internal/version"
	"github.com/tgrayson/streamtv/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streamtv server",
	Long: `Start the streamtv HTTP server and channel playout.

The server provides:
- HDHomeRun tuner emulation for Plex, Jellyfin, and Emby
- M3U playlist and XMLTV guide for IPTV players
- Live MPEG-TS streams for every continuous channel
- REST API for managing channels, collections, media, and schedules
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("data-dir", "", "Storage base directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)
	setupLogging(cfg)
	logger := slog.Default()

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Repositories.
	channelRepo := repository.NewChannelRepository(db.DB)
	mediaRepo := repository.NewMediaItemRepository(db.DB)
	collectionRepo := repository.NewCollectionRepository(db.DB)
	scheduleRepo := repository.NewScheduleRepository(db.DB)
	positionRepo := repository.NewPlaybackPositionRepository(db.DB)
	jobRepo := repository.NewJobRepository(db.DB)

	// Storage.
	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	iconCache, err := storage.NewIconCache(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing icon cache: %w", err)
	}
	if err := os.MkdirAll(cfg.Playout.SchedulesDir, 0o755); err != nil {
		return fmt.Errorf("creating schedules directory: %w", err)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transcoding stack. A failed hardware probe is not fatal; playout
	// falls back to software encoding.
	accels := detectHWAccels(rootCtx, cfg, logger)
	streamer := ffmpeg.NewStreamer(&cfg.FFmpeg, accels, logger)
	prober := ffmpeg.NewProber(cfg.FFmpeg.FFprobePath)

	httpClient := httpclient.NewWithDefaults()
	streamResolver := resolver.New(cfg, httpClient, logger)

	// Playout.
	planner := broadcast.NewPlanner(cfg, scheduleRepo, collectionRepo, mediaRepo, positionRepo, logger)
	manager := broadcast.NewManager(channelRepo, broadcast.Deps{
		Planner:   planner,
		Resolver:  streamResolver,
		Streamer:  broadcast.FFmpegStreamer{S: streamer},
		Prober:    prober,
		Positions: positionRepo,
		Config:    cfg,
		Logger:    logger,
	})

	// Guide.
	generator := epg.NewGenerator(cfg, channelRepo, mediaRepo, planner, logger)
	guide := epg.NewCache(generator, sandbox).WithLogger(logger)

	// Services.
	logoService := service.NewLogoService(iconCache, cfg.Storage.MaxLogoSize.Bytes()).
		WithLogger(logger)
	backupService := service.NewBackupService(db.DB, cfg.Backup, cfg.Storage.BaseDir, cfg.Playout.SchedulesDir).
		WithLogger(logger)
	importService := service.NewImportService(channelRepo).
		WithLogger(logger)

	// Background jobs.
	sched := scheduler.NewScheduler(jobRepo).WithLogger(logger)
	if err := registerRecurringJobs(sched, cfg); err != nil {
		return err
	}

	executor := scheduler.NewExecutor(jobRepo).WithLogger(logger)
	executor.RegisterHandler(models.JobTypeEPGBuild, scheduler.NewEPGBuildHandler(guide))
	executor.RegisterHandler(models.JobTypePositionSweep, scheduler.NewPositionSweepHandler(manager))
	executor.RegisterHandler(models.JobTypeScheduleReload,
		scheduler.NewScheduleReloadHandler(manager).WithGuide(guide).WithLogger(logger))
	if cfg.Backup.Enabled {
		executor.RegisterHandler(models.JobTypeBackup,
			scheduler.NewBackupHandler(backupService).WithLogger(logger))
	}

	runnerCfg := scheduler.DefaultRunnerConfig()
	if cfg.Scheduler.Workers > 0 {
		runnerCfg.WorkerCount = cfg.Scheduler.Workers
	}
	runner := scheduler.NewRunner(jobRepo, executor).
		WithLogger(logger).
		WithConfig(runnerCfg)

	// HTTP surface.
	server := internalhttp.NewServer(cfg, logger, version.Short())
	server.RegisterHandlers(cfg, internalhttp.Handlers{
		Channels:    handlers.NewChannelHandler(channelRepo, logger),
		Collections: handlers.NewCollectionHandler(collectionRepo, logger),
		Media:       handlers.NewMediaHandler(mediaRepo, logger),
		Schedules:   handlers.NewScheduleHandler(cfg, channelRepo, scheduleRepo, logger),
		Positions:   handlers.NewPositionHandler(channelRepo, positionRepo, logger),
		Imports:     handlers.NewImportHandler(importService, logger),
		Health: handlers.NewHealthHandler(version.Short()).
			WithDB(db.DB).
			WithChannels(channelRepo).
			WithManager(manager),
		HDHomeRun: handlers.NewHDHomeRunHandler(cfg, channelRepo, version.Short(), logger),
		IPTV:      handlers.NewIPTVHandler(cfg, channelRepo, mediaRepo, manager, planner, guide, streamResolver, logger),
		Logos:     handlers.NewLogoHandler(channelRepo, logoService, logger),
	})

	// Shutdown signal.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Start playout before the HTTP surface so early tuners find running
	// broadcasters.
	if err := manager.StartAll(rootCtx); err != nil {
		return fmt.Errorf("starting broadcasters: %w", err)
	}
	defer manager.StopAll()

	if _, err := guide.Rebuild(rootCtx); err != nil {
		logger.Warn("initial guide build failed", "error", err)
	}

	if err := sched.Start(rootCtx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	if err := runner.Start(rootCtx); err != nil {
		return fmt.Errorf("starting job runner: %w", err)
	}
	defer runner.Stop()

	if cfg.Scheduler.ScheduleReload {
		watcher := scheduler.NewScheduleWatcher(cfg.Playout.SchedulesDir, channelRepo, sched).
			WithLogger(logger)
		if err := watcher.Start(rootCtx); err != nil {
			return fmt.Errorf("starting schedule watcher: %w", err)
		}
		defer watcher.Stop()
	}

	if cfg.HDHomeRun.Enabled && cfg.HDHomeRun.EnableSSDP {
		responder := ssdp.NewResponder(cfg.HDHomeRun.DeviceID, cfg.HDHomeRun.FriendlyName, cfg.Server.ResolveBaseURL()).
			WithLogger(logger)
		if err := responder.Start(rootCtx); err != nil {
			logger.Warn("ssdp responder failed to start", "error", err)
		} else {
			defer responder.Stop()
		}
	}

	logger.Info("starting streamtv server",
		slog.String("addr", cfg.Server.Address()),
		slog.String("base_url", cfg.Server.ResolveBaseURL()),
		slog.String("version", version.Short()),
	)
	return server.ListenAndServe(rootCtx)
}

// applyServeFlags overrides config with explicitly set serve flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
	}
}

// registerRecurringJobs wires cron entries from config. Invalid
// expressions abort startup rather than silently never firing.
func registerRecurringJobs(sched *scheduler.Scheduler, cfg *config.Config) error {
	if err := sched.AddRecurring(models.JobTypeEPGBuild, cfg.Scheduler.EPGRebuildCron); err != nil {
		return fmt.Errorf("registering EPG rebuild job: %w", err)
	}
	if err := sched.AddRecurring(models.JobTypePositionSweep, cfg.Scheduler.PositionSweepCron); err != nil {
		return fmt.Errorf("registering position sweep job: %w", err)
	}
	if cfg.Backup.Enabled {
		if err := sched.AddRecurring(models.JobTypeBackup, cfg.Backup.Cron); err != nil {
			return fmt.Errorf("registering backup job: %w", err)
		}
	}
	return nil
}

// detectHWAccels probes FFmpeg for working hardware accelerators.
func detectHWAccels(ctx context.Context, cfg *config.Config, logger *slog.Logger) []string {
	infos, err := ffmpeg.NewHWAccelDetector(cfg.FFmpeg.FFmpegPath).Detect(ctx)
	if err != nil {
		logger.Warn("hardware acceleration probe failed, using software encoding", "error", err)
		return nil
	}
	var accels []string
	for _, info := range infos {
		if info.Available {
			accels = append(accels, info.Name)
		}
	}
	if len(accels) > 0 {
		logger.Info("hardware accelerators available", "accels", accels)
	}
	return accels
}
