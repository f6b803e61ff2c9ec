package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/service"
)

// Server is the HTTP server exposing the delivery note endpoints.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer creates a configured server. nrApp may be nil when New Relic is
// disabled.
func NewServer(cfg *config.ServerConfig, svc service.DeliveryNoteService, nrApp *newrelic.Application, log *logrus.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if nrApp != nil {
		router.Use(nrgin.Middleware(nrApp))
	}
	router.Use(RequestLogger(log))
	router.Use(Metrics())

	h := &handler{svc: svc}

	router.GET("/health", h.health)
	router.GET("/metrics", h.getMetrics)

	dn := router.Group("/dn")
	dn.Use(BearerAuth(cfg.APIToken))
	{
		dn.GET("/detail/:no_dn", h.getSnapshot)
		dn.GET("/list/:supplier_code", h.listBySupplier)
		dn.GET("/history/:no_dn", h.history)
		dn.PUT("/update", h.submitQuantities)
		dn.PUT("/update/driver-info", h.updateDriverInfo)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: log,
	}
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
