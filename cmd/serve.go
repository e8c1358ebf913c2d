package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/english-mastery/backend/config"
	"github.com/english-mastery/backend/controllers"
	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/middleware"
	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/routes"
	"github.com/english-mastery/backend/services"
	"github.com/english-mastery/backend/utils"
	"github.com/english-mastery/backend/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, background workers and the stale material sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := logger.New(cfg.Log.Mode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	log.Info("database connected and migrated")

	tokens, err := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}

	hub := ws.NewHub(log)
	var (
		rdb       *goredis.Client
		bus       *ws.RedisStatusBus
		notifier  services.StatusNotifier = hub
		blacklist utils.TokenBlacklist    = utils.NopTokenBlacklist{}
	)
	if cfg.Redis.Addr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: 5 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		defer rdb.Close()

		bus = ws.NewRedisStatusBus(rdb, cfg.Redis.Channel, log)
		notifier = bus
		blacklist = utils.NewRedisTokenBlacklist(rdb)
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	} else {
		log.Warn("REDIS_ADDR not set: token revocation disabled, status push is local only")
	}

	if cfg.AI.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set: new materials will fail generation")
	}

	runner := services.NewTaskRunner(cfg.Worker.Concurrency, log)
	extractor := services.NewWebExtractor(cfg.Scraper, log)
	generator := services.NewGenerationClient(cfg.AI, log)
	materials := services.NewMaterialService(db, extractor, generator, runner, notifier, cfg.AI, log)
	if cfg.Storage.Enabled() {
		materials.WithArchive(utils.NewSupabaseDocumentStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket))
		log.Info("document archive enabled", "bucket", cfg.Storage.Bucket)
	}
	reviews := services.NewReviewService(db, materials, log)
	if cfg.Speech.CredentialsFile != "" {
		speech, err := services.NewGoogleSpeech(ctx, cfg.Speech)
		if err != nil {
			return fmt.Errorf("text-to-speech: %w", err)
		}
		defer speech.Close()
		reviews.WithSpeech(speech, cfg.Speech.Timeout)
		log.Info("pronunciation audio enabled", "voice", cfg.Speech.Voice)
	}
	if cfg.Google.ClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID not set: Google sign-in disabled")
	}
	entitlements := services.NewEntitlementService(db)
	sweeper := utils.NewMaterialSweeper(materials, cfg.Worker.StaleAfter, cfg.Worker.SweepInterval, log)

	gin.SetMode(ginMode(cfg.Server.Mode))
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Auth-Token", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.SetupRouter(r, routes.Dependencies{
		DB:                 db,
		Tokens:             tokens,
		Blacklist:          blacklist,
		Entitlements:       entitlements,
		MaterialsMinLevel:  models.MembershipLevel(cfg.Materials.MinMembership),
		Hub:                hub,
		AllowedOrigins:     cfg.Server.CORSOrigins,
		AuthController:     controllers.NewAuthController(db, tokens, blacklist, log).WithGoogle(cfg.Google.ClientID, nil),
		MaterialController: controllers.NewMaterialController(materials, reviews, log),
		HealthController:   controllers.NewHealthController(db, rdb, hub),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bus != nil {
		g.Go(func() error { return bus.Run(gctx, hub.Deliver) })
	}
	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		runner.Wait()
		return err
	})
	return g.Wait()
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}
