package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/adakita/loan-service/internal/cache"
	"github.com/adakita/loan-service/internal/config"
	"github.com/adakita/loan-service/internal/handler"
	"github.com/adakita/loan-service/internal/integrations/centralbank"
	"github.com/adakita/loan-service/internal/middleware"
	"github.com/adakita/loan-service/internal/repository"
	"github.com/adakita/loan-service/internal/scheduler"
	"github.com/adakita/loan-service/internal/service"
	"github.com/adakita/loan-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize cache; the store stays authoritative, so a missing Redis
	// only degrades to a process-local cache.
	var limitCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		limitCache = redisCache
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory cache")
		limitCache = cache.NewMemory()
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	sender := email.NewSender(cfg, logger)
	svc := service.NewService(repo, repo, limitCache, sender, cfg, logger)
	rates := centralbank.NewClient(cfg, logger)
	h := handler.NewHandler(svc, rates, logger)

	// Start background jobs
	jobs := scheduler.New(svc, logger)
	if err := jobs.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer jobs.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/benchmark-rate", h.GetBenchmarkRate).Methods("GET")
	// Role-gated routes
	limits := r.PathPrefix("/loan-limits").Subrouter()
	limits.Use(middleware.Identity(cfg, logger))
	limits.HandleFunc("/me", h.GetLoanLimit).Methods("GET")
	limits.HandleFunc("/{id}", h.GetLoanLimitByID).Methods("GET")
	limits.HandleFunc("/{id}", h.UpdateLoanLimit).Methods("PUT")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
