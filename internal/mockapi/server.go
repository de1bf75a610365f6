package mockapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/models"
)

// notFoundBody mirrors the hosted service, which answers unknown ids with a
// bare JSON string rather than an object.
const notFoundBody = `"Not found"`

// Server exposes a Store over the remote collection contract.
type Server struct {
	store   Store
	latency time.Duration
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLatency delays every response, which makes in-flight states visible.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a mock server over store.
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler. Routes are mounted under prefix, e.g. ""
// or "/api/v1".
func (s *Server) Handler(prefix string) http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.delay)

	sub := r
	if prefix != "" {
		sub = r.PathPrefix(prefix).Subrouter()
	}
	sub.HandleFunc("/cards", s.list).Methods(http.MethodGet)
	sub.HandleFunc("/cards", s.create).Methods(http.MethodPost)
	sub.HandleFunc("/cards/{id}", s.get).Methods(http.MethodGet)
	sub.HandleFunc("/cards/{id}", s.delete).Methods(http.MethodDelete)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("mockapi request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)))
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, "list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("failed to read body"))
		return
	}
	var draft models.CardDraft
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &draft); err != nil {
			writeJSON(w, http.StatusBadRequest, message("invalid JSON body"))
			return
		}
	}
	card, err := s.store.Create(r.Context(), draft)
	if err != nil {
		s.fail(w, "create card", err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	card, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "get card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	card, err := s.store.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "delete card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, notFoundBody)
		return
	}
	s.logger.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, message(err.Error()))
}

type messageBody struct {
	Message string `json:"message"`
}

func message(msg string) messageBody {
	return messageBody{Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
