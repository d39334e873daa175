package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"challenge-market/internal/auth"
	"challenge-market/internal/config"
	"challenge-market/internal/database"
	"challenge-market/internal/handlers"
	"challenge-market/internal/jobs"
	"challenge-market/internal/ledger"
	"challenge-market/internal/logging"
	"challenge-market/internal/repository"
	"challenge-market/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_ENCODING"))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	auth.InitJWT(cfg.App.JWTSecret)

	db, err := database.Connect(cfg.GetDSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Core wiring
	bank := ledger.New(cfg.App.Asset)
	repo := repository.NewRepository(db)
	notifier := services.NewLogNotifier(logger)

	challengeService := services.NewChallengeService(db, bank, cfg.App.PlatformUserID, logger)
	stakeService := services.NewStakeService(db, bank, cfg.App.PlatformUserID, logger)
	settlementService := services.NewSettlementService(db, bank, cfg.App.PlatformUserID, cfg.App.PlatformFeeRate, notifier, logger)
	disputeService := services.NewDisputeService(db, bank, cfg.App.PlatformUserID, notifier, logger)

	challengeHandler := handlers.NewChallengeHandler(challengeService, repo)
	betHandler := handlers.NewBetHandler(stakeService, repo)
	payoutHandler := handlers.NewPayoutHandler(settlementService, repo)
	disputeHandler := handlers.NewDisputeHandler(disputeService, repo)

	scheduler := jobs.NewLifecycleScheduler(challengeService, settlementService, disputeService, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	api := router.Group("/api")
	{
		api.GET("/challenges", challengeHandler.ListChallenges)
		api.GET("/challenges/:id", challengeHandler.GetChallenge)

		authed := api.Group("", auth.AuthMiddleware())
		{
			authed.POST("/challenges", challengeHandler.CreateChallenge)
			authed.POST("/challenges/:id/open", challengeHandler.OpenChallenge)
			authed.POST("/challenges/:id/close", challengeHandler.CloseChallenge)
			authed.POST("/challenges/:id/resolve", challengeHandler.ResolveChallenge)
			authed.POST("/challenges/:id/cancel", challengeHandler.CancelChallenge)

			authed.POST("/challenges/:id/bets", betHandler.PlaceBet)
			authed.GET("/bets", betHandler.MyBets)
			authed.GET("/users/me/balance", betHandler.MyBalance)
			authed.GET("/ledger", betHandler.MyLedger)

			authed.POST("/challenges/:id/payouts", payoutHandler.TriggerPayouts)
			authed.GET("/challenges/:id/payouts", payoutHandler.GetPayouts)

			authed.POST("/challenges/:id/disputes", disputeHandler.CreateDispute)
			authed.GET("/challenges/:id/disputes", disputeHandler.ListDisputes)

			moderator := authed.Group("", auth.RequireModerator())
			{
				moderator.POST("/disputes/:id/review", disputeHandler.StartReview)
				moderator.POST("/disputes/:id/resolve", disputeHandler.ResolveDispute)
			}
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
