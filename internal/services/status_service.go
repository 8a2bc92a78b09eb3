package services

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benmeehan/signal-agent/internal/lifecycle"
	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/benmeehan/signal-agent/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusSource exposes the connection state to the status endpoints.
type StatusSource interface {
	State() lifecycle.State
	Current() *session.Session
}

// Reauthenticator triggers an immediate login.
type Reauthenticator interface {
	Reauthenticate()
}

type healthResponse struct {
	State      string `json:"state"`
	Generation uint64 `json:"generation,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

type signalsResponse struct {
	Generation uint64                `json:"generation"`
	Total      int                   `json:"total"`
	Users      int                   `json:"users"`
	Signals    []models.SignalRecord `json:"signals"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewStatusRouter builds the status HTTP API. reauth may be nil.
func NewStatusRouter(source StatusSource, reauth Reauthenticator, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{State: source.State().String()}
		if sess := source.Current(); sess != nil {
			resp.Generation = sess.Generation
			resp.SessionID = sess.ID
		}
		writeJSON(w, http.StatusOK, resp, logger)
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if source.State() != lifecycle.StateActive {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "channel not ready"}, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/signals", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			sess := source.Current()
			if sess == nil {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no active session"}, logger)
				return
			}
			writeJSON(w, http.StatusOK, signalsResponse{
				Generation: sess.Generation,
				Total:      sess.Store.Len(),
				Users:      sess.UserCount(),
				Signals:    sess.Store.Visible(),
			}, logger)
		})

		r.Get("/{index}", func(w http.ResponseWriter, req *http.Request) {
			index, err := strconv.Atoi(chi.URLParam(req, "index"))
			if err != nil || index < 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be a non-negative integer"}, logger)
				return
			}
			sess := source.Current()
			if sess == nil {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no active session"}, logger)
				return
			}
			record, ok := sess.Store.Get(index)
			if !ok {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "signal not found"}, logger)
				return
			}
			writeJSON(w, http.StatusOK, record, logger)
		})
	})

	r.Post("/reauth", func(w http.ResponseWriter, _ *http.Request) {
		if reauth == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "authentication is disabled"}, logger)
			return
		}
		reauth.Reauthenticate()
		w.WriteHeader(http.StatusAccepted)
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to write status response")
	}
}

// StatusService serves the status API over HTTP.
type StatusService struct {
	address string
	handler http.Handler
	logger  zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewStatusService creates a StatusService listening on address.
func NewStatusService(address string, handler http.Handler, logger zerolog.Logger) *StatusService {
	return &StatusService{
		address: address,
		handler: handler,
		logger:  logger,
	}
}

// Start binds the listener and serves in the background.
func (ss *StatusService) Start() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.server != nil {
		return errors.New("status service is already running")
	}
	ln, err := net.Listen("tcp", ss.address)
	if err != nil {
		return err
	}
	ss.listener = ln
	ss.server = &http.Server{Handler: ss.handler, ReadHeaderTimeout: 5 * time.Second}

	ss.wg.Add(1)
	go func() {
		defer ss.wg.Done()
		if err := ss.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ss.logger.Error().Err(err).Msg("Status server failed")
		}
	}()

	ss.logger.Info().Str("address", ln.Addr().String()).Msg("Status service started")
	return nil
}

// Addr returns the bound address, or "" when not running.
func (ss *StatusService) Addr() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.listener == nil {
		return ""
	}
	return ss.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (ss *StatusService) Stop() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.server == nil {
		return errors.New("status service is not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := ss.server.Shutdown(ctx)
	ss.wg.Wait()
	ss.server, ss.listener = nil, nil

	ss.logger.Info().Msg("Status service stopped")
	return err
}
