package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/oio/domestic-ai/internal/journal"
	"github.com/oio/domestic-ai/internal/observability"
	"github.com/oio/domestic-ai/internal/supervise"
)

// Controller is the fleet-control surface the admin API exposes.
type Controller interface {
	Snapshot() []supervise.UnitStatus
	SnapshotUnit(name string) (supervise.UnitStatus, bool)
	Ensure(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Down(ctx context.Context) error
}

var _ Controller = (*supervise.Orchestrator)(nil)

// EventSource reads back the supervision journal.
type EventSource interface {
	Tail(limit int) ([]journal.Event, error)
	UnitHistory(unit string, limit int) ([]journal.Event, error)
}

// Server is the supervisor's admin HTTP endpoint.
type Server struct {
	name     string
	addr     string
	router   *gin.Engine
	ctl      Controller
	events   EventSource
	appeared time.Time
}

// New builds the admin server and registers its routes.
func New(name, addr string, corsOrigins []string, ctl Controller, events EventSource) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		name:     name,
		addr:     addr,
		router:   r,
		ctl:      ctl,
		events:   events,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", s.addr).Msg("admin api listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		out = append(out, strings.TrimRight(o, "/"))
	}
	if len(out) == 0 {
		out = []string{"http://localhost:3000"}
	}
	return out
}
