package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adwski/liveide-collab/backend/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
	defaultRequestTimeout   = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type RosterService interface {
	Users(ctx context.Context) []model.User
	Online() []model.Identity
}

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger zerolog.Logger
	svc    RosterService
	*http.Server
}

type Config struct {
	Logger         *zerolog.Logger
	RosterService  RosterService
	Metrics        http.Handler
	ListenAddr     string
	AllowedOrigins []string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:    cfg.RosterService,
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	r.Use(middleware.Recoverer, middleware.Timeout(defaultRequestTimeout))

	r.Get("/healthz", srv.health)
	r.Get("/api/users", srv.users)
	r.Get("/api/online", srv.online)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Message: "OK"})
}

func (srv *Server) users(w http.ResponseWriter, r *http.Request) {
	users := srv.svc.Users(r.Context())
	srv.logger.Trace().Int("count", len(users)).Msg("users listed")
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Data: users})
}

func (srv *Server) online(w http.ResponseWriter, _ *http.Request) {
	online := srv.svc.Online()
	if online == nil {
		online = []model.Identity{}
	}
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Data: online})
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, resp *GenericResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	srv.writeBytes(w, code, b)
}

func (srv *Server) writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		srv.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
