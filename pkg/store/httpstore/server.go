// Package httpstore serves a store.Store over HTTP and provides the matching
// client, so several workstations can exchange payloads through one server.
//
//	GET    /objects?prefix=p   list
//	PUT    /objects/{key...}   put (body is the payload)
//	GET    /objects/{key...}   get
//	DELETE /objects/{key...}   delete
//	GET    /healthz            liveness
package httpstore

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chazu/instancegraph/pkg/store"
)

// MaxBodyBytes limits an uploaded payload.
const MaxBodyBytes = 256 << 20

const updatedHeader = "X-Updated-At"

// Server exposes a backing store.
type Server struct {
	backend store.Store
	logger  *slog.Logger
}

// NewServer wraps backend. A nil logger uses slog.Default().
func NewServer(backend store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, logger: logger}
}

// Handler returns a router with the store routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the store routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/objects", s.handleList)
	r.Put("/objects/*", s.handlePut)
	r.Get("/objects/*", s.handleGet)
	r.Delete("/objects/*", s.handleDelete)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidKey):
		status = http.StatusBadRequest
	default:
		s.logger.Error("store request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	http.Error(w, err.Error(), status)
}

// keyParam returns the wildcard key. chi matches against the escaped path
// when the request has one.
func keyParam(r *http.Request) string {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return key
	}
	if k, err := url.PathUnescape(key); err == nil {
		return k
	}
	return key
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.backend.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(infos)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, "payload too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	info, err := s.backend.Put(r.Context(), key, data, r.Header.Get("Content-Type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("payload stored", "key", key, "size", info.Size)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(info)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	data, info, err := s.backend.Get(r.Context(), keyParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(updatedHeader, info.UpdatedAt.UTC().Format(time.RFC3339Nano))
	_, _ = w.Write(data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Delete(r.Context(), keyParam(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
