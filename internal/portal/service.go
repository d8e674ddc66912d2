package portal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/brgyhealth/records-portal/internal/approval"
	"github.com/brgyhealth/records-portal/internal/audit"
	"github.com/brgyhealth/records-portal/internal/iam"
	"github.com/brgyhealth/records-portal/internal/records"
	"github.com/brgyhealth/records-portal/pkg/config"
	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/monitoring"
)

const serviceName = "records-portal"

// Service is the HTTP surface of the portal. It wires the approval
// workflow, record store, audit query, and IAM services onto one router.
type Service struct {
	config   *config.Config
	logger   *logger.Logger
	db       *database.DB
	server   *http.Server
	validate *validator.Validate

	metrics  *monitoring.MetricsCollector
	health   *monitoring.HealthManager
	iam      *iam.Service
	records  *records.Service
	approval *approval.Service
	audit    *audit.Service
}

// New creates the portal service and its dependencies
func New(cfg *config.Config, log *logger.Logger) (*Service, error) {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	metrics := monitoring.NewMetricsCollector(serviceName)

	health := monitoring.NewHealthManager(serviceName)
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

	userRepo := iam.NewRepository(db, log)
	auditRepo := audit.NewRepository(db, log)
	recordRepo := records.NewRepository(db, auditRepo, log)
	requestionRepo := approval.NewRepository(db, recordRepo, auditRepo, log)
	auditSvc := audit.NewService(log, auditRepo, metrics)

	return &Service{
		config:   cfg,
		logger:   log,
		db:       db,
		validate: validator.New(),
		metrics:  metrics,
		health:   health,
		iam:      iam.NewService(cfg, log, userRepo),
		records:  records.NewService(log, recordRepo, auditSvc),
		approval: approval.NewService(log, requestionRepo, recordRepo, metrics),
		audit:    auditSvc,
	}, nil
}

// Start starts the portal HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.metrics.HTTPMiddleware(s.loggingMiddleware(router)),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.WithComponent("http").WithField("addr", addr).Info("Starting records portal service")
	return s.server.ListenAndServe()
}

// loggingMiddleware emits one structured log line per request
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.logger.HTTPRequest(r.Context(), r.Method, r.URL.Path, r.UserAgent(), r.RemoteAddr,
			wrapper.statusCode, time.Since(start).Milliseconds(), nil)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

// Stop gracefully stops the portal service
func (s *Service) Stop() error {
	if s.server != nil {
		s.logger.Info("Stopping records portal service")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
