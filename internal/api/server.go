package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mxrobo/robodhs/internal/dcss"
	"github.com/mxrobo/robodhs/internal/gateway"
	"github.com/mxrobo/robodhs/internal/infrastructure/config"
	"github.com/mxrobo/robodhs/internal/infrastructure/database"
	"github.com/mxrobo/robodhs/internal/infrastructure/logging"
	"github.com/mxrobo/robodhs/internal/journal"
	"github.com/mxrobo/robodhs/internal/robot"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Gateway exposes the gateway state the API serves. Satisfied by
// *gateway.Gateway.
type Gateway interface {
	// Snapshot returns a deep copy of the current robot state.
	Snapshot() *robot.State

	// Stats returns the gateway operation counters.
	Stats() gateway.Stats

	// CurrentOperation returns the running operation name, or "idle".
	CurrentOperation() string

	// SetObserver registers a callback fired after each publication.
	SetObserver(fn func())
}

// Journal exposes the operation history the API serves. Satisfied by
// *journal.Repository.
type Journal interface {
	List(ctx context.Context, filter journal.Filter) (*journal.ListResult, error)
	Get(ctx context.Context, id string) (*journal.Entry, error)
}

// DCSSSource reports control-server link statistics for the metrics
// endpoint. Satisfied by *dcss.Client.
type DCSSSource interface {
	Stats() dcss.Stats
}

// RobotSource reports robot link statistics for the metrics endpoint.
// Satisfied by *robot.Client.
type RobotSource interface {
	Stats() robot.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Gateway Gateway
	Journal Journal      // optional: operations endpoints return 500 when absent
	DCSS    DCSSSource   // optional: metrics only
	Robot   RobotSource  // optional: metrics only
	DB      *database.DB // optional: metrics only
	Version string
}

// Server is the HTTP API server for the robot DHS.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	gateway   Gateway
	journal   Journal
	dcss      DCSSSource
	robot     RobotSource
	db        *database.DB
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, gateway)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	// Journal is optional — operation history endpoints report unavailable

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		gateway:   deps.Gateway,
		journal:   deps.Journal,
		dcss:      deps.DCSS,
		robot:     deps.Robot,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, registers the gateway
// observer for real-time WebSocket broadcast, and launches the HTTP
// listener in a background goroutine. The server can be stopped with
// Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Push a state snapshot to WebSocket clients after every publication
	s.gateway.SetObserver(s.broadcastSnapshot)

	// Build router
	router := s.buildRouter()

	// Create HTTP server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
