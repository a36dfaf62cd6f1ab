package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bridgarr/bridgarr/internal/config"
	"github.com/bridgarr/bridgarr/internal/credential"
	"github.com/bridgarr/bridgarr/internal/history"
	"github.com/bridgarr/bridgarr/internal/logger"
	"github.com/bridgarr/bridgarr/internal/matching"
	"github.com/bridgarr/bridgarr/internal/metadata"
	"github.com/bridgarr/bridgarr/internal/notification"
	"github.com/bridgarr/bridgarr/internal/queue"
	"github.com/bridgarr/bridgarr/internal/ratelimit"
	"github.com/bridgarr/bridgarr/internal/remote"
	"github.com/bridgarr/bridgarr/internal/remote/agent"
	"github.com/bridgarr/bridgarr/internal/remote/mock"
	"github.com/bridgarr/bridgarr/internal/resolver"
	"github.com/bridgarr/bridgarr/internal/scheduler"
	"github.com/bridgarr/bridgarr/internal/startup"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env", "", "Path to .env file")
	flag.Parse()

	// Optional .env, local development convenience.
	if *envFile != "" {
		_ = godotenv.Load(*envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	log.Info().Str("logLevel", cfg.Logging.Level).Msg("starting bridgarr")

	db, err := history.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open journal database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	journal := history.NewService(db, log.Logger)

	// Remote target: the sidecar browser agent, or the in-process mock
	// for development without one.
	var target remote.Target
	if cfg.Remote.Mock {
		log.Warn().Msg("using mock remote target, no real claims will be made")
		target = mock.New()
	} else {
		target = agent.New(agent.Config{
			BaseURL:       cfg.Remote.AgentURL,
			DefaultFilter: cfg.Remote.DefaultFilter,
		}, log.Logger)
	}
	session := remote.NewSession(target)

	lifecycle := credential.NewLifecycle(
		credential.NewFileStore(cfg.Credential.Path),
		credential.NewHTTPExchanger(credential.ExchangeConfig{
			TokenURL:     cfg.Credential.TokenURL,
			ClientID:     cfg.Credential.ClientID,
			ClientSecret: cfg.Credential.ClientSecret,
		}, log.Logger),
		session,
		cfg.Credential.RefreshMargin,
		log.Logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The issuer may be unreachable right after boot; retry network
	// failures, bail on anything else.
	err = startup.WithRetry(ctx, "credential refresh", startup.DefaultRetryConfig(), func() error {
		return lifecycle.EnsureFresh(ctx)
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to establish remote credential")
	}

	matcher := matching.NewMatcher(matching.Thresholds{
		Relaxed: cfg.Matching.RelaxedThreshold,
		Strict:  cfg.Matching.StrictThreshold,
	})
	res := resolver.New(matcher, resolver.Config{
		AvailabilityWait: cfg.Resolver.AvailabilityWait,
		ClaimPollTimeout: cfg.Resolver.ClaimPollTimeout,
		MaxFileCount:     cfg.Resolver.MaxFileCount,
	}, log.Logger)

	requester := notification.NewClient(notification.ClientConfig{
		BaseURL: cfg.Requester.BaseURL,
		APIKey:  cfg.Requester.APIKey,
	}, log.Logger)

	limiter := ratelimit.New(ratelimit.Config{
		Limit:  cfg.Metadata.RateLimit,
		Window: cfg.Metadata.RateLimitWindow,
	}, log.Logger)
	titles := metadata.New(metadata.Config{
		BaseURL: cfg.Metadata.BaseURL,
		APIKey:  cfg.Metadata.APIKey,
	}, limiter, log.Logger)

	q := queue.New(cfg.Queue.Capacity, log.Logger)
	pool := queue.NewPool(queue.PoolConfig{
		Workers:        cfg.Queue.Workers,
		RequestTimeout: cfg.Queue.RequestTimeout,
	}, q, session, res, requester, titles, journal, log.Logger)
	go pool.Run(ctx)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	if requester.Configured() {
		// The rescan replays the approved backlog through the queue.
		// Coalescing makes this idempotent, and it recovers requests
		// that were queued when the process last stopped.
		err = sched.RegisterTask(scheduler.TaskConfig{
			ID:          "rescan",
			Name:        "Pending request rescan",
			Description: "Re-admits approved requests that are not yet resolved",
			Interval:    cfg.Scheduler.RescanInterval,
			RunOnStart:  true,
			Func: func(ctx context.Context) error {
				pending, err := requester.ListPending(ctx)
				if err != nil {
					return err
				}
				for _, req := range pending {
					if err := q.Enqueue(req); err != nil && !errors.Is(err, queue.ErrFull) {
						return err
					}
				}
				return nil
			},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register rescan task")
		}
	} else {
		log.Warn().Msg("requester API not configured, periodic rescan disabled")
	}

	err = sched.RegisterTask(scheduler.TaskConfig{
		ID:          "credential-refresh",
		Name:        "Credential refresh",
		Description: "Refreshes the remote access token before it expires",
		Interval:    cfg.Credential.RefreshInterval,
		Func:        lifecycle.EnsureFresh,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register credential refresh task")
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	api := e.Group("/api/v1")
	notification.NewHandlers(q, log.Logger).RegisterRoutes(api)
	history.NewHandlers(journal, log.Logger).RegisterRoutes(api)
	api.GET("/status", statusHandler(q, sched, lifecycle))
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		log.Info().Str("address", cfg.Server.Address()).Msg("http server listening")
		if err := e.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

// statusHandler reports queue depth, task schedule, and credential
// expiry.
func statusHandler(q *queue.Queue, sched *scheduler.Scheduler, lifecycle *credential.Lifecycle) echo.HandlerFunc {
	return func(c echo.Context) error {
		cred := lifecycle.Current()
		return c.JSON(http.StatusOK, map[string]any{
			"queue": map[string]int{
				"queued":  q.Len(),
				"pending": q.Pending(),
			},
			"tasks": sched.ListTasks(),
			"credential": map[string]any{
				"present": cred.Value != "",
				"expiry":  cred.Expiry,
			},
		})
	}
}
