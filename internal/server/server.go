// Package server exposes the record editor as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	sheetedit "github.com/ideamans/go-sheetedit"
)

// maxBodyBytes bounds PUT /api/rows payloads
const maxBodyBytes = 4 << 20

// Service is the part of sheetedit.Client the handlers use
type Service interface {
	Worksheets(ctx context.Context) ([]string, error)
	Identities(ctx context.Context) ([]string, error)
	View(ctx context.Context, identity string) (*sheetedit.View, error)
	Save(ctx context.Context, view *sheetedit.View, candidate *sheetedit.Table) (*sheetedit.SaveResult, error)
}

// Options tunes the server
type Options struct {
	RequestTimeout time.Duration      // 0 disables the per-request deadline
	Logger         logrus.FieldLogger // default: logrus standard logger
}

// Server holds the handlers' dependencies
type Server struct {
	svc     Service
	auth    Authenticator
	log     logrus.FieldLogger
	timeout time.Duration
}

// New creates a server for svc, identifying callers with auth
func New(svc Service, auth Authenticator, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		svc:     svc,
		auth:    auth,
		log:     log,
		timeout: opts.RequestTimeout,
	}
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/healthz", s.getHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireIdentity)
		r.Get("/worksheets", s.getWorksheets)
		r.Get("/identities", s.getIdentities)
		r.Get("/rows", s.getRows)
		r.Put("/rows", s.putRows)
	})

	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getWorksheets(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Worksheets(r.Context())
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string][]string{"worksheets": names})
}

func (s *Server) getIdentities(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Identities(r.Context())
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string][]string{"identities": names})
}

func (s *Server) getRows(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	view, err := s.svc.View(r.Context(), identity)
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toViewResponse(view))
}

func (s *Server) putRows(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req SaveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.sendError(w, r, http.StatusBadRequest, err)
		return
	}
	candidate, err := req.toTable()
	if err != nil {
		s.sendError(w, r, http.StatusBadRequest, err)
		return
	}

	// Rows are diffed against the versions the caller was served
	view, err := s.svc.View(r.Context(), identity)
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	if !req.FetchedAt.IsZero() {
		view.FetchedAt = req.FetchedAt
	}

	result, err := s.svc.Save(r.Context(), view, candidate)
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

// statusFor maps core errors onto HTTP statuses
func statusFor(err error) int {
	var (
		loadErr     *sheetedit.LoadError
		schemaErr   *sheetedit.SchemaError
		writeErr    *sheetedit.WriteError
		conflictErr *sheetedit.ConflictError
	)
	switch {
	case errors.As(err, &conflictErr):
		return http.StatusConflict
	case errors.Is(err, sheetedit.ErrUnknownRow), errors.Is(err, sheetedit.ErrInvalidCell):
		return http.StatusBadRequest
	case errors.As(err, &schemaErr):
		return http.StatusInternalServerError
	case errors.As(err, &writeErr), errors.As(err, &loadErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, sheetedit.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendFailure(w http.ResponseWriter, r *http.Request, err error) {
	s.sendError(w, r, statusFor(err), err)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var (
		writeErr    *sheetedit.WriteError
		conflictErr *sheetedit.ConflictError
		invalidErr  *sheetedit.ValidationError
	)
	switch {
	case errors.As(err, &writeErr):
		resp.Rows = writeErr.Rows
	case errors.As(err, &conflictErr):
		resp.Rows = conflictErr.Rows
	case errors.As(err, &invalidErr):
		resp.Problems = invalidErr.Problems
	}

	entry := s.log.WithError(err).WithFields(logrus.Fields{
		"status":     status,
		"request_id": middleware.GetReqID(r.Context()),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	s.sendJSON(w, status, resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Error("failed to encode response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// logRequests writes one log line per request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
