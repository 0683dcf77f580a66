// Package app wires configuration into a ready HTTP router. It is shared by
// the standalone server and the serverless entry point.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavshah/rota-engine/internal/config"
	"github.com/arnavshah/rota-engine/pkg/auth"
	"github.com/arnavshah/rota-engine/pkg/database"
	"github.com/arnavshah/rota-engine/pkg/events"
	"github.com/arnavshah/rota-engine/pkg/generation"
	"github.com/arnavshah/rota-engine/pkg/handlers"
	"github.com/arnavshah/rota-engine/pkg/lock"
	"github.com/arnavshah/rota-engine/pkg/quota"
	"github.com/arnavshah/rota-engine/pkg/solver"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/arnavshah/rota-engine/pkg/substitutes"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// App is a wired server.
type App struct {
	Router *gin.Engine
	close  []func()
}

// Close releases connections opened by New.
func (a *App) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
}

// New opens the database, seeds the first manager and builds the router.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg.JWTSecret == "" || cfg.APIMasterSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET and API_MASTER_SECRET must be set")
	}
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{}
	if sqlDB, err := db.DB(); err == nil {
		a.close = append(a.close, func() { _ = sqlDB.Close() })
	}
	if err := auth.EnsureManager(db, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed manager: %w", err)
	}

	var (
		locker    lock.Locker      = lock.NewLocalLocker()
		publisher events.Publisher = events.NewLogPublisher(log.Named("events"))
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-process locks and log events", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = client.Close()
		} else {
			a.close = append(a.close, func() { _ = client.Close() })
			locker = lock.NewRedisLocker(client, "rota:lock:")
			publisher = events.NewRedisStreamPublisher(client, cfg.EventsStream)
			log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		}
	}
	dispatcher := events.NewDispatcher(publisher, log.Named("events"))

	st := store.New(db)
	gate := quota.NewGate(db, cfg.MonthlyGenerationQuota, cfg.UnlimitedOrganizations)

	heuristic := solver.NewHeuristic(cfg.HeuristicBudget)
	var fallback solver.Strategy = heuristic
	if cfg.GenerativeURL != "" {
		fallback = solver.Chain{
			solver.NewGenerativeStrategy(cfg.GenerativeURL, cfg.GenerativeAPIKey, cfg.GenerativeModel, cfg.GenerativeTimeout, log.Named("generative")),
			heuristic,
		}
	}
	opts := []generation.Option{
		generation.WithFallback(fallback),
		generation.WithLocker(locker),
		generation.WithQuota(gate),
		generation.WithEvents(dispatcher),
		generation.WithLogger(log.Named("generation")),
	}
	if cfg.SolverURL != "" {
		opts = append(opts, generation.WithPrimary(solver.NewHTTPSolver(cfg.SolverURL, cfg.SolverTimeout, log.Named("solver"))))
	}
	pipeline := generation.New(st, generation.Config{
		UseSolver:     cfg.UseSolver,
		SolverTimeout: cfg.SolverTimeout,
		LockTTL:       cfg.GenerationLockTTL,
	}, opts...)

	h := &handlers.Handler{
		DB:       db,
		Store:    st,
		Auth:     auth.New(cfg.JWTSecret, cfg.APIMasterSecret, cfg.JWTExpiry),
		Pipeline: pipeline,
		Ranker:   substitutes.NewRanker(st),
		Quota:    gate,
		Events:   dispatcher,
		Log:      log,
	}
	a.Router, err = handlers.NewRouter(h, cfg.RateLimit)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
