package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/api"
	"github.com/ignite/campaign-dispatcher/internal/config"
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/ignite/campaign-dispatcher/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatcher/internal/pkg/logger"
	"github.com/ignite/campaign-dispatcher/internal/queue"
	"github.com/ignite/campaign-dispatcher/internal/repository/postgres"
	"github.com/ignite/campaign-dispatcher/internal/service/dispatch"
	"github.com/ignite/campaign-dispatcher/internal/storage"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config; empty reads the environment only")
	date := flag.String("date", "", "dispatch day as YYYY-MM-DD (default: today in dispatch.timezone)")
	serve := flag.Bool("serve", false, "run the admin HTTP server instead of a single dispatch")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logCloser := logger.Configure(logger.Options{
		Level:      cfg.Log.Level,
		RedactPII:  !cfg.Log.LogPII,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	err = run(cfg, *date, *serve)
	if err != nil {
		logger.Error("dispatcher exited with error", "error", err)
	}
	logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, date string, serve bool) error {
	ctx := context.Background()

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	mq, inspector, closeQueue, err := openQueue(cfg, rdb)
	if err != nil {
		return err
	}
	defer closeQueue()

	loc, err := cfg.Dispatch.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	reports, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	opts := dispatch.Options{
		Location:         loc,
		RunTimeout:       cfg.Dispatch.RunTimeout(),
		QueueErrorPolicy: dispatch.QueueErrorPolicy(cfg.Dispatch.QueueErrorPolicy),
		Reports:          reports,
	}
	if cfg.Dispatch.LockEnabled {
		opts.Lock = distlock.NewLock(rdb, db, cfg.Dispatch.LockKey, cfg.Dispatch.LockTTL())
	}

	svc := dispatch.NewService(
		postgres.NewCampaignRepo(db),
		postgres.NewSubscriberRepo(db),
		postgres.NewCustomerGroupRepo(db),
		mq,
		opts,
	)

	if serve {
		health := api.NewHealthChecker(db, rdb, inspector)
		router := api.SetupRoutes(api.NewHandlers(svc, inspector, reports), health)
		return serveHTTP(cfg.Server.Addr(), router)
	}
	return runOnce(ctx, svc, date, loc)
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")
	return db, nil
}

func openQueue(cfg *config.Config, rdb *redis.Client) (dispatch.MailQueue, api.QueueInspector, func() error, error) {
	switch cfg.Queue.Backend {
	case config.QueueAMQP:
		q, err := queue.DialAMQP(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueue)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("mail queue ready", "backend", "amqp", "queue", cfg.Queue.AMQPQueue)
		return q, q, q.Close, nil
	default:
		if rdb == nil {
			return nil, nil, nil, errors.New("redis queue backend needs redis.addr")
		}
		q := queue.NewRedisQueue(rdb, cfg.Queue.RedisKey)
		logger.Info("mail queue ready", "backend", "redis", "key", cfg.Queue.RedisKey)
		return q, q, func() error { return nil }, nil
	}
}

// runOnce performs a single dispatch for cron-style invocation. A held run
// lock is not a failure.
func runOnce(ctx context.Context, svc *dispatch.Service, date string, loc *time.Location) error {
	var today time.Time
	if date != "" {
		d, err := domain.ParseDate(date, loc)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", date, err)
		}
		today = d
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := svc.RunCampaignDispatch(ctx, today)
	if errors.Is(err, dispatch.ErrRunInProgress) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("dispatch complete",
		"run_id", report.RunID,
		"date", report.Date,
		"enqueued", report.TotalEnqueued(),
		"failed", report.TotalFailed())
	return nil
}

func serveHTTP(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
		logger.Info("shutting down admin server")
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	}

	// in-flight runs are synchronous requests; give them time to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
