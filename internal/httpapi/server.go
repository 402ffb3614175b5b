package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

type Dependencies struct {
	Logger  *log.Logger
	Addr    string
	Events  *service.EventStore
	Toggle  *service.ToggleResolver
	Bus     *service.NotificationBus
	Clock   service.Clock
	Metrics *metrics.Metrics // optional; enables GET /metrics
}

// Server is the admin surface: registration and read-only views of the log.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	events     *service.EventStore
	toggle     *service.ToggleResolver
	bus        *service.NotificationBus
	clock      service.Clock
}

func NewServer(d Dependencies) *Server {
	clock := d.Clock
	if clock == nil {
		clock = service.SystemClock()
	}

	s := &Server{
		logger: d.Logger,
		events: d.Events,
		toggle: d.Toggle,
		bus:    d.Bus,
		clock:  clock,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return loggingMiddleware(d.Logger, next) })

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.handleListEvents)
		r.Get("/identities", s.handleListIdentities)
		r.Post("/identities", s.handleRegister)
		r.Get("/identities/{code}", s.handleGetIdentity)
		r.Get("/identities/{code}/next", s.handleNextEvent)
		r.Get("/notification", s.handleNotification)
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	rows, err := s.events.ListEvents(r.Context())
	if err != nil {
		s.internalError(w, "list events", err)
		return
	}

	if wantsProtobuf(r) {
		msg, err := eventsToProto(rows)
		if err != nil {
			s.internalError(w, "encode events", err)
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	if rows == nil {
		rows = []types.EventRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.events.ListIdentities(r.Context())
	if err != nil {
		s.internalError(w, "list identities", err)
		return
	}
	if ids == nil {
		ids = []types.Identity{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.events.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no identity with that code")
			return
		}
		s.internalError(w, "find identity", err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRegister(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}

	id, err := s.events.RegisterIdentity(r.Context(), req.Name, req.Category, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidIdentity):
			writeError(w, http.StatusBadRequest, "invalid_identity", err.Error())
		case errors.Is(err, types.ErrDuplicateCode):
			writeError(w, http.StatusConflict, "duplicate_code", err.Error())
		default:
			s.internalError(w, "register identity", err)
		}
		return
	}

	if wantsProtobuf(r) {
		msg, err := structpb.NewStruct(identityFields(id))
		if err != nil {
			s.internalError(w, "encode identity", err)
			return
		}
		writeProto(w, http.StatusCreated, msg)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

type nextEventResponse struct {
	Code string          `json:"code"`
	Next types.EventKind `json:"next"`
}

func (s *Server) handleNextEvent(w http.ResponseWriter, r *http.Request) {
	id, err := s.events.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no identity with that code")
			return
		}
		s.internalError(w, "find identity", err)
		return
	}

	next, err := s.toggle.NextEvent(r.Context(), id.ID)
	if err != nil {
		s.internalError(w, "next event", err)
		return
	}
	writeJSON(w, http.StatusOK, nextEventResponse{Code: id.Code, Next: next})
}

type notificationResponse struct {
	Active    bool       `json:"active"`
	Text      string     `json:"text,omitempty"`
	Color     string     `json:"color,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleNotification(w http.ResponseWriter, _ *http.Request) {
	n, ok := s.bus.Current(s.clock.Now())
	if !ok {
		writeJSON(w, http.StatusOK, notificationResponse{})
		return
	}
	exp := n.ExpiresAt
	writeJSON(w, http.StatusOK, notificationResponse{
		Active:    true,
		Text:      n.Text,
		Color:     hexColor(n.Color),
		ExpiresAt: &exp,
	})
}

func decodeRegister(r *http.Request) (types.RegisterRequest, error) {
	if isProtobuf(r) {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			return types.RegisterRequest{}, err
		}
		return registerRequestFromProto(&msg), nil
	}

	var req types.RegisterRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return types.RegisterRequest{}, err
	}
	return req, nil
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
