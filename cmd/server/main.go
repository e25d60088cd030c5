package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/salesops/internal/archive"
	"github.com/JonMunkholm/salesops/internal/coaching"
	"github.com/JonMunkholm/salesops/internal/config"
	"github.com/JonMunkholm/salesops/internal/core"
	"github.com/JonMunkholm/salesops/internal/logging"
	"github.com/JonMunkholm/salesops/internal/mailer"
	"github.com/JonMunkholm/salesops/internal/store"
	"github.com/JonMunkholm/salesops/internal/web"
	mw "github.com/JonMunkholm/salesops/internal/web/middleware"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"coaching_enabled", cfg.Coaching.Enabled,
	)

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to database", "name", store.DatabaseName(cfg.Database.URL))

	db := store.New(pool)
	if cfg.Database.EnsureSchema {
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		slog.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}

	opts := []core.Option{core.WithRunRecorder(db)}
	if cfg.Archive.Bucket != "" {
		opts = append(opts, core.WithArchiver(archive.NewS3Archiver(awsCfg, cfg.Archive.Bucket, cfg.Archive.Prefix)))
		slog.Info("csv archive enabled", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
	}
	service := core.NewService(db, core.ServiceConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	}, opts...)

	prompts, err := coaching.LoadPrompts(cfg.Coaching.PromptFile)
	if err != nil {
		slog.Error("failed to load coaching prompts", "error", err)
		os.Exit(1)
	}

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.Email.Enabled {
		sender = mailer.NewSESSender(awsCfg, cfg.Email.FromAddress, cfg.Email.FromName)
	}

	// Metrics work without a model; generation needs one.
	var llm coaching.Completer
	if cfg.Coaching.Enabled {
		llm = coaching.NewBedrockCompleter(awsCfg, cfg.Coaching.ModelID, cfg.Coaching.MaxTokens, cfg.Coaching.Temperature).
			WithTimeout(cfg.Coaching.Timeout)
	}
	coach := coaching.NewCoach(db, llm, sender, prompts, coaching.Targets{
		MonthlyItems: cfg.Coaching.MonthlyItemTarget,
		DailyQHH:     cfg.Coaching.DailyQHHTarget,
	}, cfg.Coaching.ModelID)

	jobCtx, cancelJobs := context.WithCancel(context.Background())

	serverOpts := []web.Option{web.WithCoach(coach)}
	if cfg.Rate.Enabled {
		if cfg.Rate.RedisURL != "" {
			redisOpts, err := redis.ParseURL(cfg.Rate.RedisURL)
			if err != nil {
				slog.Error("failed to parse redis url", "error", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(redisOpts)
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("redis unreachable, rate limiting fails open until it recovers", "error", err)
			}
			serverOpts = append(serverOpts, web.WithRateLimiters(
				mw.NewRedisLimiter(rdb, "api", cfg.Rate.RequestsPerMinute, time.Minute),
				mw.NewRedisLimiter(rdb, "import", cfg.Rate.ImportLimit, time.Minute),
			))
		} else {
			apiLimiter := mw.NewMemoryLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
			importLimiter := mw.NewMemoryLimiter(cfg.Rate.ImportLimit, time.Minute)
			go apiLimiter.Cleanup(jobCtx, 5*time.Minute)
			go importLimiter.Cleanup(jobCtx, 5*time.Minute)
			serverOpts = append(serverOpts, web.WithRateLimiters(apiLimiter, importLimiter))
		}
	}

	server := web.NewServer(cfg, service, serverOpts...)

	if cfg.Report.Enabled {
		go coach.StartReportScheduler(jobCtx, coaching.ReportSchedule{
			Interval:   cfg.Report.CheckInterval,
			SendDay:    cfg.Report.Weekday(),
			Recipients: cfg.Email.Recipients,
		})
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
