// cmd/flow-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"onboarding-flow/internal/common/aws"
	"onboarding-flow/internal/common/camunda"
	"onboarding-flow/internal/common/config"
	"onboarding-flow/internal/common/database"
	commonhttp "onboarding-flow/internal/common/http"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/common/observability"
	answerstore "onboarding-flow/internal/flow/answer-store"
	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/flow/completion"
	"onboarding-flow/internal/flow/navigation"
	"onboarding-flow/internal/flow/remote"
	"onboarding-flow/internal/models"
	"onboarding-flow/internal/submissions"
	"onboarding-flow/internal/transport/rest"
)

const (
	savePath       = "/v1/flows/{flowType}/submissions"
	uniquenessPath = "/v1/uniqueness"
	maxSweepEvery  = time.Minute
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting flow server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Catalogs ---
	catalogs, err := loadCatalogs(cfg.Flow)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}
	zapLog.Info("Catalogs loaded", zap.Any("flows", catalogs.FlowTypes()))

	checks := map[string]func(ctx context.Context) error{}

	// --- Durable cache ---
	var cache answerstore.Cache
	switch cfg.Cache.Backend {
	case "memory":
		cache = answerstore.NewMemoryCache()
		zapLog.Warn("Using in-process answer cache; answers will not survive a restart")
	default:
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		cache = answerstore.NewRedisCache(redis, config.GetDuration(cfg.Cache.TTL))
		checks["redis"] = redis.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Submissions (optional) ---
	var submissionService *submissions.Service
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg.Ping
		submissionService = submissions.NewService(submissions.NewRepository(pg), catalogs, log)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Completion hooks ---
	hooks, closeHooks := buildHooks(ctx, cfg, checks, zapLog)
	defer closeHooks()

	// --- Remote collaborators ---
	saveURL, uniquenessURL := cfg.Flow.SaveURL, cfg.Flow.UniquenessURL
	if submissionService != nil {
		base := localBaseURL(cfg.Server.Address)
		if saveURL == "" {
			saveURL = base + savePath
		}
		if uniquenessURL == "" {
			uniquenessURL = base + uniquenessPath
		}
	}
	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Flow.RemoteTimeout))
	saver := remote.NewSaveClient(httpClient, saveURL, log, obs)
	checker := remote.NewUniquenessClient(httpClient, uniquenessURL, log, obs)

	// hook runs of every session, awaited on shutdown
	var hookRuns sync.WaitGroup

	sessions := rest.NewSessions(rest.SessionConfig{
		Catalogs:      catalogs,
		Cache:         cache,
		KeyPrefix:     cfg.Cache.KeyPrefix,
		MirrorTimeout: config.GetDuration(cfg.Cache.MirrorTTL),
		IdleTTL:       config.GetDuration(cfg.Server.SessionIdleTTL),
		Dependencies: navigation.Dependencies{
			Checker: checker,
			Logger:  log,
			Obs:     obs,
		},
		NewCompleter: func() navigation.Completer {
			return completion.NewHandler(saver, log, obs, completion.WithHooks(hooks...), completion.WithHookGroup(&hookRuns))
		},
	}, log)
	go sessions.Run(ctx, sweepInterval(config.GetDuration(cfg.Server.SessionIdleTTL)))

	router := rest.NewRouter(&rest.Container{
		Catalogs:    catalogs,
		Sessions:    sessions,
		Submissions: submissionService,
		Logger:      log,
		Checks:      checks,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down flow server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	sessions.CloseAll(shutdownCtx)
	if err := completion.Wait(shutdownCtx, &hookRuns); err != nil {
		zapLog.Warn("completion hooks still running at shutdown", zap.Error(err))
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Flow server stopped")
}

func loadCatalogs(cfg config.FlowConfig) (*catalog.Registry, error) {
	if cfg.CatalogPath == "" {
		return catalog.Builtin(cfg.MaxChildren)
	}
	return catalog.Load(cfg.CatalogPath, cfg.MaxChildren)
}

// buildHooks connects the optional side effects of a completed flow.
func buildHooks(ctx context.Context, cfg *config.Config, checks map[string]func(ctx context.Context) error, zapLog *zap.Logger) ([]completion.Hook, func()) {
	var hooks []completion.Hook
	var closers []func()

	if cfg.Notifications.EmailEnabled {
		ses, err := aws.NewSESClient(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.EmailSender)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		hooks = append(hooks, completion.NewWelcomeEmailHook(ses))
		zapLog.Info("Welcome e-mail enabled")
	}

	if cfg.Notifications.EventsEnabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.EventTopicARN)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		hooks = append(hooks, completion.NewEventHook(sns))
		zapLog.Info("Completion events enabled")
	}

	if cfg.Camunda.Enabled {
		var zb *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zb, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		closers = append(closers, func() { _ = zb.Close() })
		checks["camunda"] = zb.HealthCheck
		hooks = append(hooks, completion.NewReviewProcessHook(zb, cfg.Camunda.ReviewProcessID, models.FlowNanny))
		zapLog.Info("Zeebe client connected successfully")
	}

	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		checks["elasticsearch"] = es.Ping
		hooks = append(hooks, completion.NewProfileIndexHook(es, cfg.Database.Elasticsearch.ProfileIndex))
		zapLog.Info("Elasticsearch connected successfully")
	}

	return hooks, func() {
		for _, c := range closers {
			c()
		}
	}
}

// localBaseURL turns a listen address into a loopback URL for self-calls.
func localBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}

func sweepInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval > maxSweepEvery {
		return maxSweepEvery
	}
	return interval
}
