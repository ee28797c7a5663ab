package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/directory"
	"github.com/smukkama/matricare/internal/models"
	"github.com/smukkama/matricare/internal/poller"
	"github.com/smukkama/matricare/internal/session"
	"github.com/smukkama/matricare/internal/subscription"
	"github.com/smukkama/matricare/internal/token"
	"github.com/smukkama/matricare/pkg/config"
)

// Directory is the patient directory as seen by the API.
// *directory.Directory implements it.
type Directory interface {
	Get(ctx context.Context, id string) (*models.Patient, error)
	UpdateFamily(ctx context.Context, patientID string, emails []string) error
	AddAppointment(ctx context.Context, patientID string, in directory.AppointmentInput) bool
	AddSymptom(ctx context.Context, patientID string, in directory.SymptomInput) bool
	DoctorByLicense(ctx context.Context, license string) (*models.Doctor, error)
	RegisterDoctor(ctx context.Context, in directory.DoctorInput) directory.RegistrationResult
	Subscribe(ctx context.Context, patientID string, onUpdate func(directory.Update)) func()
}

// StateSource exposes the last committed dashboard state.
type StateSource interface {
	State() *poller.State
}

// Deps are the collaborators of the API server.
type Deps struct {
	Directory  Directory
	State      StateSource
	Sessions   *session.Store
	Tokens     *token.Signer
	Registry   *subscription.Registry
	SessionTTL time.Duration
	Logger     *zap.Logger
}

// Server is the dashboard HTTP and WebSocket server
type Server struct {
	config     *config.HTTPConfig
	deps       Deps
	logger     *zap.Logger
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a new server
func New(cfg *config.HTTPConfig, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return originAllowed(cfg.CORSOrigins, r.Header.Get("Origin")) },
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.config.CORSOrigins))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession(false))

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/session", s.handleSession)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/history", s.handleHistory)
			r.Get("/notes", s.handleAllNotes)

			r.Route("/patients/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPatient)
				r.Post("/appointments", s.handleAddAppointment)
				r.Post("/symptoms", s.handleAddSymptom)
				r.Put("/family", s.handleUpdateFamily)
				r.Get("/notes", s.handleNotes)
				r.Post("/notes", s.handleAddNote)
			})
		})
	})

	r.With(s.requireSession(true)).Get("/ws/patients/{id}", s.handleSocket)

	return r
}

// Start starts listening on the configured port
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the server gracefully. Open sockets are closed, which ends
// their subscriptions.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.wg.Wait()
	s.logger.Info("HTTP server stopped")
	return err
}
