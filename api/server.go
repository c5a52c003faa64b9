package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/level"
	"github.com/wricardo/vinecheck/game/service"
	"github.com/wricardo/vinecheck/game/store"
	"github.com/wricardo/vinecheck/transport/websocket"
)

// maxDocumentSize caps request bodies on the validate endpoint
const maxDocumentSize = 32 << 20

// Server represents the REST API server
type Server struct {
	service    service.ValidationService
	hub        *websocket.Hub
	router     *mux.Router
	backupRoot string

	// batches started with async run under this context
	batchCtx context.Context
}

// Option configures a Server
type Option func(*Server)

// WithBackupRoot sets the directory batches back up into when asked to
func WithBackupRoot(dir string) Option {
	return func(s *Server) {
		s.backupRoot = dir
	}
}

// WithBatchContext sets the context async batches run under; cancelling it
// stops them
func WithBatchContext(ctx context.Context) Option {
	return func(s *Server) {
		s.batchCtx = ctx
	}
}

// NewServer creates a new API server. hub may be nil when no live progress is
// needed.
func NewServer(validationService service.ValidationService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service:  validationService,
		hub:      hub,
		router:   mux.NewRouter(),
		batchCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// Router exposes the router so callers can mount extra endpoints
func (s *Server) Router() *mux.Router {
	return s.router
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Validation
	api.HandleFunc("/validate", s.handleValidateDocument).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")

	// Levels (names may contain a subdirectory)
	api.HandleFunc("/levels", s.handleListLevels).Methods("GET")
	api.HandleFunc("/levels/{name:.+}/validate", s.handleValidateLevel).Methods("POST")
	api.HandleFunc("/levels/{name:.+}", s.handleGetLevel).Methods("GET")

	// Rules
	api.HandleFunc("/tiers", s.handleListTiers).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service and store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrLevelNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, service.ErrInvalidWorkers),
		errors.Is(err, service.ErrNilDocument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnparseable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ValidateResponse is returned by POST /api/validate
type ValidateResponse struct {
	Valid bool `json:"valid"`
	*engine.Report
	Document *level.Document `json:"document"`
}

// Validation Handlers

func (s *Server) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	doc, err := level.Parse(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	report, err := s.service.ValidateDocument(r.Context(), doc)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, &ValidateResponse{
		Valid:    report.Valid(),
		Report:   report,
		Document: doc,
	})
}

// BatchRequest is the body of POST /api/batch
type BatchRequest struct {
	ID      string      `json:"id,omitempty"`
	Workers json.Number `json:"workers,omitempty"` // count, "half" or "full"
	DryRun  bool        `json:"dry_run,omitempty"`
	Backup  bool        `json:"backup,omitempty"`
	Async   bool        `json:"async,omitempty"`
}

// UnmarshalJSON accepts workers as a number or a string
func (b *BatchRequest) UnmarshalJSON(data []byte) error {
	type alias BatchRequest
	var raw struct {
		alias
		Workers interface{} `json:"workers,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = BatchRequest(raw.alias)
	switch v := raw.Workers.(type) {
	case nil:
	case string:
		b.Workers = json.Number(v)
	case float64:
		b.Workers = json.Number(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("workers must be a number or a string")
	}
	return nil
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	workers, err := service.ParseWorkers(req.Workers.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Backup && s.backupRoot == "" {
		respondError(w, http.StatusBadRequest, "backups are not configured on this server")
		return
	}

	opts := service.BatchOptions{
		ID:      req.ID,
		Workers: workers,
		DryRun:  req.DryRun,
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if req.Backup {
		opts.BackupDir = s.backupRoot
	}
	if s.hub != nil {
		batchID := opts.ID
		opts.Observer = func(report *service.FileReport) {
			s.hub.BroadcastEvent(batchID, websocket.EventFileValidated, report)
		}
	}

	if req.Async {
		go s.runBatch(s.batchCtx, opts)
		respondJSON(w, http.StatusAccepted, map[string]string{
			"id":      opts.ID,
			"channel": opts.ID,
			"status":  "started",
		})
		return
	}

	summary, err := s.runBatch(r.Context(), opts)
	if summary == nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	// Per-file failures are listed in the summary
	respondJSON(w, http.StatusOK, summary)
}

// runBatch runs a batch and publishes its summary
func (s *Server) runBatch(ctx context.Context, opts service.BatchOptions) (*service.BatchSummary, error) {
	summary, err := s.service.ValidateAll(ctx, opts)
	if err != nil {
		log.Printf("Batch %s finished with errors: %v", opts.ID, err)
	}
	if summary != nil && s.hub != nil {
		s.hub.BroadcastEvent(opts.ID, websocket.EventBatchComplete, summary)
	}
	return summary, err
}

// Level Handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.service.ListLevels(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(levels),
		"levels": levels,
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	report, err := s.service.ValidateLevel(r.Context(), name, false)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleValidateLevel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	persist := false
	if v := r.URL.Query().Get("persist"); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "persist must be true or false")
			return
		}
		persist = p
	}

	report, err := s.service.ValidateLevel(r.Context(), name, persist)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	if report.Persisted && s.hub != nil {
		s.hub.BroadcastEvent(report.Name, websocket.EventLevelUpdated, report)
	}

	log.Printf("[VALIDATE] level=%s valid=%t violations=%d warnings=%d persisted=%t",
		name, report.Valid, len(report.Violations), len(report.Warnings), report.Persisted)

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	table, err := s.service.ListTiers(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, table)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "live progress is not enabled", http.StatusServiceUnavailable)
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = websocket.AllChannels
	}

	s.hub.ServeWS(w, r, channel)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
