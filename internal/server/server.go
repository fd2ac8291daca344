// Package server exposes the analysis pipeline over HTTP and WebSocket:
// multipart upload with quota admission, result retrieval, quota inspection,
// and job progress streaming.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/verimedia/verimedia/internal/app"
	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
	"github.com/verimedia/verimedia/internal/quota"
)

const (
	creditCookie = "vm_credits"
	creditHeader = "X-Credit-Token"
)

// AuthHook decides whether a presented bearer token marks the caller as
// authenticated. It is an external collaborator; DefaultAuthHook accepts any
// non-empty bearer.
type AuthHook func(bearer string) bool

// DefaultAuthHook treats any non-empty bearer token as authenticated.
func DefaultAuthHook(bearer string) bool { return bearer != "" }

// Server is the HTTP + WebSocket API surface.
type Server struct {
	cfg      Config
	orch     *app.Orchestrator
	ledger   *quota.Ledger
	authHook AuthHook
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer wires the API surface over an orchestrator and quota ledger.
func NewServer(cfg Config, orch *app.Orchestrator, ledger *quota.Ledger, authHook AuthHook, logger logging.Logger) (*Server, error) {
	if orch == nil || ledger == nil {
		return nil, errors.New("server: missing orchestrator or ledger")
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}
	if authHook == nil {
		authHook = DefaultAuthHook
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		cfg:      cfg,
		orch:     orch,
		ledger:   ledger,
		authHook: authHook,
		router:   chi.NewRouter(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Post("/analyze", s.handleAnalyze)
	r.Get("/results/{jobID}", s.handleGetResult)
	r.Get("/me", s.handleMe)
	r.Get("/health", s.handleHealth)

	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)
	r.Get("/ws/jobs/{jobID}", s.handleJobWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+creditHeader)
		w.Header().Set("Access-Control-Expose-Headers", creditHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- credit token plumbing ---

func readCreditToken(r *http.Request) string {
	if token := r.Header.Get(creditHeader); token != "" {
		return token
	}
	if c, err := r.Cookie(creditCookie); err == nil {
		return c.Value
	}
	return ""
}

// setCreditToken stores the replacement token as both a cookie and a response
// header. Must run before the status line is written.
func (s *Server) setCreditToken(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     creditCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(creditHeader, token)
}

func (s *Server) callerClass(r *http.Request) quota.CallerClass {
	auth := r.Header.Get("Authorization")
	if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok && s.authHook(strings.TrimSpace(bearer)) {
		return quota.ClassAuthenticated
	}
	return quota.ClassGuest
}

// --- HTTP handlers ---

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	class := s.callerClass(r)

	admission, err := s.ledger.Admit(readCreditToken(r), class)
	if err != nil {
		s.logger.Error("quota admission", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "quota admission failed")
		return
	}
	if !admission.Admitted {
		s.logger.Info("quota exceeded", logging.Field{Key: "class", Value: string(class)})
		writeError(w, http.StatusTooManyRequests, "quota exceeded")
		return
	}
	// The credit is spent on admission; every response from here carries the
	// replacement token.
	s.setCreditToken(w, admission.Token)

	upload, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "false" {
		job := s.orch.StartAnalysisJob(context.Background(), upload)
		s.logger.Info("started analysis job", logging.Field{Key: "job_id", Value: job.ID})
		writeJSON(w, http.StatusAccepted, JobResponse{
			JobID:   job.ID,
			Status:  string(model.JobPending),
			Message: "analysis started",
		})
		return
	}

	result, err := s.orch.Analyze(r.Context(), upload)
	if errors.Is(err, model.ErrUnsupportedMediaType) {
		writeError(w, http.StatusBadRequest, "unsupported media type")
		return
	}
	if err != nil {
		s.logger.Warn("analysis failed", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{
		JobID:   result.JobID,
		Status:  result.Status,
		Message: "analysis completed",
	})
}

// readUpload extracts the multipart "file" field. A false return means the
// rejection was already written.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (app.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return app.Upload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Warn("reading upload", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return app.Upload{}, false
	}

	return app.Upload{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, true
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	result, err := s.orch.GetResult(r.Context(), jobID)
	if errors.Is(err, interfaces.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Warn("fetching result", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Failed() {
		// Failed jobs stay readable; the stored error variant is the body.
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	class := s.callerClass(r)
	credits := s.ledger.Peek(readCreditToken(r), class)
	writeJSON(w, http.StatusOK, MeResponse{
		Authenticated: class == quota.ClassAuthenticated,
		CreditsLeft:   credits,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	snap, ok := s.orch.JobSnapshot(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.orch.CancelJob(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	writeJSON(w, http.StatusNoContent, nil)
}

// --- WebSockets ---

func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orch.GetJob(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	if snap, ok := s.orch.JobSnapshot(jobID); ok {
		_ = conn.WriteJSON(snap)
	}

	// Events closes when the job reaches a terminal status.
	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.orch.CancelJob(jobID)
			return
		}
	}
}
