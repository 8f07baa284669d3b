package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jamu-quote-bot/backend/pkg/cache"
	"jamu-quote-bot/backend/pkg/config"
	"jamu-quote-bot/backend/pkg/logger"
	"jamu-quote-bot/backend/quotes/api"
	"jamu-quote-bot/backend/quotes/models"
	"jamu-quote-bot/backend/quotes/repository"
	"jamu-quote-bot/backend/quotes/service"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting quote service", "env", cfg.Server.Env)

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(&models.Quote{}); err != nil {
		log.LogError(err, "failed to migrate database schema")
		os.Exit(1)
	}

	var quoteCache *cache.Cache
	if cfg.Cache.Enabled {
		quoteCache = cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	}

	repo := repository.NewGormQuoteStore(db)
	quoteService := service.NewQuoteService(repo, quoteCache)
	handler := api.NewQuoteHandler(quoteService, log)

	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterQuoteRoutes(r, handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "forced shutdown")
	}
}
