// Package httpapi is the JSON control surface of the office: delegations,
// heartbeats, queue, route catalog, presence and meetings.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"clawoffice.ai/internal/protocol"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/office"
	"clawoffice.ai/internal/sim/presence"
	"clawoffice.ai/internal/sim/routes"
)

// CatalogStore receives the catalog after every change made through the API.
type CatalogStore interface {
	Save(ctx context.Context, rs []routes.Route) error
}

// History answers movement history queries.
type History interface {
	RecentMovements(ctx context.Context, agent string, limit int) ([]events.Movement, error)
}

type Server struct {
	office  *office.Office
	store   CatalogStore
	history History
	log     *log.Logger

	timeout time.Duration
}

type Option func(*Server)

func WithCatalogStore(s CatalogStore) Option { return func(srv *Server) { srv.store = s } }
func WithHistory(h History) Option           { return func(srv *Server) { srv.history = h } }

func New(o *office.Office, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{office: o, log: logger, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the API on r.
func (s *Server) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/delegations", s.handleDelegation).Methods(http.MethodPost)
	v1.HandleFunc("/interactions", s.handleInteraction).Methods(http.MethodPost)
	v1.HandleFunc("/heartbeats", s.handleHeartbeats).Methods(http.MethodPost)

	v1.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	v1.HandleFunc("/queue", s.handleClearQueue).Methods(http.MethodDelete)

	v1.HandleFunc("/routes", s.handleRoutes).Methods(http.MethodGet)
	v1.HandleFunc("/routes/regenerate", s.handleRegenerate).Methods(http.MethodPost)
	v1.HandleFunc("/routes/{id}", s.handleRoute).Methods(http.MethodGet)
	v1.HandleFunc("/routes/{id}", s.handleReplaceRoute).Methods(http.MethodPut)

	v1.HandleFunc("/presence", s.handlePresence).Methods(http.MethodGet)
	v1.HandleFunc("/presence/{agent}/leave", s.handleLeave).Methods(http.MethodPost)
	v1.HandleFunc("/presence/{agent}/return", s.handleReturn).Methods(http.MethodPost)

	v1.HandleFunc("/meeting/convene", s.handleConvene).Methods(http.MethodPost)
	v1.HandleFunc("/meeting/dismiss", s.handleDismiss).Methods(http.MethodPost)

	v1.HandleFunc("/poses", s.handlePoses).Methods(http.MethodGet)
	v1.HandleFunc("/movements", s.handleMovements).Methods(http.MethodGet)
}

// Handler returns a router with only the API mounted.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return r
}

func (s *Server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.ErrorResponse{Code: code, Message: msg})
}

// fail maps office errors onto status codes and protocol error codes.
func (s *Server) fail(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, office.ErrInvalid):
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	case errors.Is(err, presence.ErrUnknownAgent), errors.Is(err, routes.ErrNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, presence.ErrAlreadyAbsent), errors.Is(err, presence.ErrAlreadyPresent):
		writeError(rw, http.StatusConflict, protocol.ErrConflict, err.Error())
	case errors.Is(err, dispatch.ErrQueueFull):
		writeError(rw, http.StatusTooManyRequests, protocol.ErrQueueFull, err.Error())
	case errors.Is(err, office.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBusy, err.Error())
	default:
		s.log.Printf("internal error: %v", err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

func decode(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}
