package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BillyP-Bot/billybot-backend/internal/config"
	"github.com/BillyP-Bot/billybot-backend/internal/repository/memory"
	"github.com/BillyP-Bot/billybot-backend/internal/repository/postgres"
	"github.com/BillyP-Bot/billybot-backend/internal/repository/redis"
	"github.com/BillyP-Bot/billybot-backend/internal/service/cleanup"
	"github.com/BillyP-Bot/billybot-backend/internal/service/game"
	transportHttp "github.com/BillyP-Bot/billybot-backend/internal/transport/http"
	"github.com/BillyP-Bot/billybot-backend/internal/transport/http/middleware"
	"github.com/BillyP-Bot/billybot-backend/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()
	if envErr != nil {
		envErr = godotenv.Load("../.env")
	}

	cfg := config.LoadConfig()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	if envErr != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	ctx := context.Background()

	// 1. Persistence: postgres when configured, otherwise in-process stores
	var (
		db      *sql.DB
		matches game.MatchStore
		players game.PlayerDirectory
		settler game.Settler
		ledger  game.SettlementLedger
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		log.Info().Msg("running database migrations")
		if err := postgres.RunMigrations(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}

		playerRepo := postgres.NewPlayerRepo(db)
		matchRepo := postgres.NewMatchRepo(db)
		matches = matchRepo
		players = playerRepo
		settler = playerRepo
		ledger = matchRepo
	} else {
		log.Warn().Msg("DATABASE_URL not set, matches and balances are kept in memory")
		directory := memory.NewPlayerDirectory().AutoEnroll(cfg.StartingBalance)
		matchStore := memory.NewMatchStore()
		matches = matchStore
		players = directory
		settler = directory
		ledger = memory.NewSettlementLedger(matchStore, directory)
	}

	// 2. Locking: redis across instances, or per-process with a sweeper
	var locker game.Locker
	var sweeper cleanup.Sweeper
	redisClient, err := redis.InitRedis(ctx, cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = redis.NewLocker(redisClient, cfg.LockTTL)
	} else {
		memLocker := game.NewMemoryLocker()
		locker = memLocker
		sweeper = memLocker
	}

	// 3. Service and background workers
	gameService := game.NewService(matches, players, game.CryptoCoin{}, settler, locker).WithLedger(ledger)

	cleanupWorker := cleanup.NewWorker(cleanup.Options{
		Locks:             sweeper,
		LockSweepInterval: cfg.LockSweepInterval,
		LockIdleAfter:     cfg.LockIdleAfter,
		Settlements:       gameService,
		ReconcileInterval: cfg.ReconcileInterval,
	})
	if err := cleanupWorker.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start cleanup worker")
	}

	// 4. HTTP
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	health := transportHttp.NewHealthHandler(nil)
	if db != nil {
		health = transportHttp.NewHealthHandler(db)
	}
	router.GET("/healthz", health.Healthz)
	transportHttp.NewConnectFourHandler(gameService).Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := cleanupWorker.Stop(); err != nil {
		log.Error().Err(err).Msg("cleanup worker stop failed")
	}

	log.Info().Msg("server exited gracefully")
}
