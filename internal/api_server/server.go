package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/internal/config"
	handlers "github.com/gradeflow/gradeflow/internal/handlers/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/oracle"
	"github.com/gradeflow/gradeflow/internal/pipeline"
	"github.com/gradeflow/gradeflow/internal/service"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/pkg/log"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	riverStopTimeout        = 30 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of the gradeflow API server.
func New(cfg *config.Config, store store.Store, listener net.Listener) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("api_server")
	logger.Info("Initializing API server")

	// The dispatcher is the single funnel for every oracle call; it must
	// outlive the workers that submit to it.
	oracleCfg := s.cfg.Service.Oracle
	invoker := oracle.NewClient(oracleCfg.URL, oracleCfg.APIKey, oracleCfg.Model, oracleCfg.RequestTimeout)
	dispatcher := oracle.NewDispatcher(invoker, oracle.Options{
		MinInterval:    oracleCfg.MinInterval,
		MaxAttempts:    oracleCfg.MaxAttempts,
		BackoffBase:    oracleCfg.BackoffBase,
		RateLimitFloor: oracleCfg.RateLimitFloor,
		QueueDepth:     oracleCfg.QueueDepth,
	})
	go dispatcher.Run(ctx)

	// pgx pool for the river job queue, separate from the gorm store.
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
		s.cfg.Database.Hostname,
		s.cfg.Database.User,
		s.cfg.Database.Password,
		s.cfg.Database.Port,
		s.cfg.Database.Name,
	)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse pgx config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer dbPool.Close()

	queue, err := pipeline.NewClient(dbPool, s.store, dispatcher)
	if err != nil {
		return fmt.Errorf("failed to create river client: %w", err)
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), riverStopTimeout)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			logger.Warnw("failed to stop river client", "error", err)
		}
	}()
	logger.Info("River job queue initialized")

	router := chi.NewRouter()
	router.Use(
		log.Logger(zap.L(), "router"),
		chiMiddleware.Recoverer,
	)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := handlers.NewServiceHandler(
		service.NewAssignmentService(s.store, queue),
		service.NewSubmissionService(s.store, queue),
		service.NewExportService(s.store),
	)
	h.Routes(router)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("api server terminated")
	}()

	logger.Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
