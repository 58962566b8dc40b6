package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plant-diagnosis-pipeline/config"
	"plant-diagnosis-pipeline/handlers"
	"plant-diagnosis-pipeline/metrics"
	"plant-diagnosis-pipeline/providers/leafscan"
	"plant-diagnosis-pipeline/providers/localmodel"
	"plant-diagnosis-pipeline/providers/phytovision"
	"plant-diagnosis-pipeline/providers/stubprovider"
	"plant-diagnosis-pipeline/registry"
	"plant-diagnosis-pipeline/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Providers that need credentials must have them when enabled.
	if cfg.LeafScan.Enabled && cfg.LeafScan.APIKey == "" {
		log.Fatal("LEAFSCAN_API_KEY is required when leafscan is enabled")
	}
	if cfg.PhytoVision.Enabled && cfg.PhytoVision.APIKey == "" {
		log.Fatal("PHYTOVISION_API_KEY is required when phytovision is enabled")
	}

	// Build the provider registry
	reg := registry.New()
	reg.Register(cfg.LeafScan, leafscan.NewClient(cfg.LeafScan))
	reg.Register(cfg.PhytoVision, phytovision.NewClient(cfg.PhytoVision))
	if cfg.LocalModel.Enabled {
		local, err := localmodel.NewClient(cfg.LocalModel)
		if err != nil {
			log.Fatalf("Failed to load local model: %v", err)
		}
		defer local.Close()
		reg.Register(cfg.LocalModel, local)
	}
	if cfg.Stub.Enabled {
		reg.Register(cfg.Stub, stubprovider.NewClient(cfg.Stub))
	}
	log.Infof("Registered providers: %v", reg.Available())

	// Best-effort startup probe; providers without one stay enabled and
	// are marked unhealthy lazily on first real failure.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	reg.ProbeAll(probeCtx)
	probeCancel()

	// Initialize service and metrics
	diagnosisService := service.NewService(cfg, reg)
	metrics.Register()

	// Initialize handlers
	h := handlers.NewHandlers(diagnosisService, reg)

	// Setup HTTP server
	router := gin.Default()

	// API routes
	api := router.Group("/api/v3")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/providers", h.GetProviders)
		api.POST("/diagnose", h.Diagnose)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
