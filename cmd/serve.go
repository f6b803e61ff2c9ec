package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/api"
	"example.com/supplierportal/services/deliverynote/internal/cache"
	"example.com/supplierportal/services/deliverynote/internal/db"
	"example.com/supplierportal/services/deliverynote/internal/messagebus"
	"example.com/supplierportal/services/deliverynote/internal/repository"
	"example.com/supplierportal/services/deliverynote/internal/search"
	"example.com/supplierportal/services/deliverynote/internal/service"
	"example.com/supplierportal/services/deliverynote/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		// Load configuration
		cfg, err := config.Load()
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}

		// Setup logger
		logger := newLogger(cfg)

		// Initialize New Relic
		nrApp, err := telemetry.InitNewRelic(cfg.NewRelic)
		if err != nil {
			logger.Warnf("Failed to initialize New Relic: %v", err)
		}

		// Connect to database
		dbConn, err := db.Connect(&cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}

		// Run migrations
		if err := db.Migrate(dbConn); err != nil {
			logger.Fatalf("Failed to run database migrations: %v", err)
		}

		// Initialize cache
		snapshotCache, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}

		// Initialize message bus
		busClient, err := messagebus.NewClient(&cfg.ServiceBus)
		if err != nil {
			logger.Fatalf("Failed to initialize message bus: %v", err)
		}

		// Initialize search indexing
		searchClient, err := search.NewClient(cfg.Elasticsearch)
		if err != nil {
			logger.Fatalf("Failed to connect to Elasticsearch: %v", err)
		}

		// Create repositories
		noteRepo := repository.NewDeliveryNoteRepository(dbConn)
		eventRepo := repository.NewSubmissionEventRepository(dbConn)

		// Create services
		noteService := service.NewDeliveryNoteService(
			noteRepo,
			eventRepo,
			snapshotCache,
			busClient,
			searchClient,
			cfg.ServiceBus.ERPQueue,
			logger,
		)

		// Create and start the server
		server := api.NewServer(&cfg.Server, noteService, nrApp, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Fatalf("Failed to start server: %v", err)
			}
		}()

		// Wait for interrupt signal
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		// Create context with timeout for graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Shutdown server
		logger.Info("Shutting down server...")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Fatalf("Server shutdown failed: %v", err)
		}

		// Close message bus
		if err := busClient.Close(shutdownCtx); err != nil {
			logger.Fatalf("Message bus closure failed: %v", err)
		}

		logger.Info("Server shutdown complete")
	},
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.Logging.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}
