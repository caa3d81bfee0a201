package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	syncqueue "rentbridge/contexts/legacy-integration/sync-queue-service"
	syncerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	synchttp "rentbridge/contexts/legacy-integration/sync-queue-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "rentbridge/internal/platform/httpserver/docs"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type Options struct {
	// APIToken, when set, must be presented as a bearer token on mutating routes.
	APIToken       string
	StreamInterval time.Duration
	EnableStream   bool
	// Alerts, when set, is pushed to status stream clients as alerts arrive.
	Alerts *AlertFeed
}

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	syncQueue syncqueue.Module
	options   Options
}

func New(module syncqueue.Module, logger *slog.Logger, addr string, options Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if options.StreamInterval <= 0 {
		options.StreamInterval = 2 * time.Second
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		syncQueue: module,
		options:   options,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /v1/sync/queue/process", s.handleProcessQueue)
	s.mux.HandleFunc("POST /v1/sync/queue/enqueue", s.handleEnqueue)
	s.mux.HandleFunc("POST /v1/sync/queue/items/{item_id}/retry", s.handleRetryItem)
	s.mux.HandleFunc("GET /v1/sync/queue/status", s.handleQueueStatus)
	s.mux.HandleFunc("GET /v1/sync/queue/dead-letters", s.handleDeadLetters)
	if s.options.EnableStream {
		s.mux.HandleFunc("GET /v1/sync/queue/status/stream", s.handleStatusStream)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuthorization(w, r) {
		return
	}
	var req synchttp.ProcessQueueRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	resp, err := s.syncQueue.Handler.ProcessQueueHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuthorization(w, r) {
		return
	}
	var req synchttp.EnqueueRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.syncQueue.Handler.EnqueueHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleRetryItem(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuthorization(w, r) {
		return
	}
	resp, err := s.syncQueue.Handler.RetryItemHandler(r.Context(), r.PathValue("item_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.syncQueue.Handler.QueueStatusHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	resp, err := s.syncQueue.Handler.DeadLettersHandler(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireAuthorization(w http.ResponseWriter, r *http.Request) bool {
	if s.options.APIToken == "" {
		return true
	}
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization bearer token is required")
		return false
	}
	token := strings.TrimSpace(parts[1])
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.options.APIToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token is not valid")
		return false
	}
	return true
}

// decodeJSON writes a 400 and returns false on a malformed body. An empty body
// is accepted only when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	err := decoder.Decode(target)
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *syncerrors.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_failed", validation.Error())
	case errors.Is(err, syncerrors.ErrInvalidProcessAction):
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, syncerrors.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, syncerrors.ErrItemNotFailed):
		writeError(w, http.StatusConflict, "item_not_failed", err.Error())
	default:
		s.logger.Error("sync queue request failed",
			"event", "http_sync_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, synchttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
