package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Gopher0727/MovieNight/config"
	"github.com/Gopher0727/MovieNight/internal/api"
	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/repository/memory"
	"github.com/Gopher0727/MovieNight/internal/service"
	"github.com/Gopher0727/MovieNight/internal/storage"
	"github.com/Gopher0727/MovieNight/internal/utils"
	"github.com/Gopher0727/MovieNight/middleware/jwt"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
	"github.com/Gopher0727/MovieNight/pkg/mq"
	"github.com/Gopher0727/MovieNight/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML config file")
	flag.Parse()

	// a missing .env is fine; the environment and config file still apply
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLog); err != nil {
		appLog.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLog *logger.Logger) error {
	repos, closeStore, err := openRepositories(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer closeStore()

	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appLog.Named("hooks").Logger)
	pool.Start()
	defer pool.Stop()

	opts := []service.Option{service.WithLogger(appLog), service.WithWorkerPool(pool)}
	if cfg.Kafka.Enabled {
		publisher, err := mq.NewKafkaPublisher(&cfg.Kafka, appLog.Named("kafka").Logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
	}

	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled {
		client, err := storage.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer func(c *redis.Client) { _ = c.Close() }(client)
		limiter = ratelimit.NewRedisLimiter(client, appLog, cfg.RateLimit.FailOpen)
	} else {
		appLog.Warn("redis disabled, rate limiting is off")
	}

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	svc := service.NewServices(service.NewDeps(repos, opts...), tokens)

	gin.SetMode(cfg.Server.Mode)
	mw := api.NewMiddlewareManager(tokens, limiter, ratelimit.RulesFromConfig(&cfg.RateLimit), appLog)
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: api.NewRouter(mw, api.NewHandlers(svc)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		appLog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Scheduling.ReminderSweepEnabled {
		sweeper := service.NewReminderSweeper(svc.Reminders, cfg.Scheduling.ReminderSweepInterval, appLog)
		g.Go(func() error {
			sweeper.Run(gctx)
			return nil
		})
	}
	return g.Wait()
}

// openRepositories connects the configured store. For postgres the schema
// is migrated (when enabled) and then probed, so an older database keeps
// working with the features it can support.
func openRepositories(ctx context.Context, cfg *config.Config, appLog *logger.Logger) (*repository.Repositories, func(), error) {
	if cfg.Storage.Driver == "memory" {
		appLog.Warn("using in-memory storage; data is lost on restart")
		return memory.New(repository.FullCapabilities()).Repositories(), func() {}, nil
	}

	if cfg.Storage.AutoMigrate {
		if err := storage.Migrate(cfg.Postgres.MigrationURL(), appLog.Named("migrate")); err != nil {
			return nil, nil, err
		}
	}
	db, err := storage.InitPostgres(ctx, &cfg.Postgres, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	caps, err := repository.ProbeSchema(ctx, db)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	appLog.Info("database schema probed",
		zap.Stringer("schema", caps.Version()),
		zap.Bool("member_roles", caps.MemberRoles),
		zap.Bool("activity", caps.Activity),
		zap.Bool("notification_prefs", caps.NotificationPrefs),
		zap.Bool("night_scheduling", caps.NightScheduling),
	)
	return repository.NewGormRepositories(db, caps), closeDB, nil
}
