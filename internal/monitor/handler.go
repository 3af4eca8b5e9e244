package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/internal/session"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
	"golang.org/x/net/websocket"
)

const (
	maxBodyBytes       = 1 << 20
	defaultAlertsLimit = 20
)

// HandlerConfig carries what the informational endpoints report.
type HandlerConfig struct {
	ServiceName        string
	Version            string
	SupervisorProvider string
}

// Handler wires HTTP requests to the monitor service.
type Handler struct {
	service *Service
	cfg     HandlerConfig
	logger  *logging.Logger
	now     func() time.Time
}

func NewHandler(service *Service, cfg HandlerConfig, logger *logging.Logger) *Handler {
	if service == nil {
		panic("monitor: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Context Rot Monitor"
	}
	return &Handler{service: service, cfg: cfg, logger: logger, now: time.Now}
}

type createSessionRequest struct {
	NorthStar string `json:"north_star"`
	SessionID string `json:"session_id,omitempty"`
}

type initializeRequest struct {
	NorthStar string `json:"north_star"`
}

type turnRequest struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}

// Info handles GET /.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.DriftConfig()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service": h.cfg.ServiceName,
		"status":  "running",
		"version": h.cfg.Version,
		"drift": map[string]any{
			"similarity_threshold": cfg.SimilarityThreshold,
			"check_interval":       cfg.CheckInterval,
			"window_size":          cfg.WindowSize,
		},
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	provider := h.cfg.SupervisorProvider
	if provider == "" {
		provider = "heuristic"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           h.now().UTC().Format(time.RFC3339),
		"supervisor_provider": provider,
		"active_sessions":     h.service.Sessions(),
	})
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Stats())
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Create(r.Context(), req.SessionID, req.NorthStar)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// Initialize handles POST /sessions/{sessionID}/initialize.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Initialize(r.Context(), sessionID(r), req.NorthStar)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "initialized",
		"session_id": result.SessionID,
		"north_star": result.NorthStar,
	})
}

// AddTurn handles POST /sessions/{sessionID}/turns. Turns that do not trigger
// an evaluation get 204.
func (h *Handler) AddTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.service.AddTurn(r.Context(), sessionID(r), req.UserMessage, req.AssistantResponse)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// CheckDrift handles GET|POST /sessions/{sessionID}/check-drift.
func (h *Handler) CheckDrift(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CheckDrift(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// State handles GET /sessions/{sessionID}/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.State(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// Reset handles POST /sessions/{sessionID}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := h.service.Reset(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": id})
}

// Delete handles DELETE /sessions/{sessionID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Alerts handles GET /sessions/{sessionID}/alerts?limit=N.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultAlertsLimit)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	id := sessionID(r)
	alerts, err := h.service.Alerts(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "alerts": alerts})
}

// Stream handles GET /sessions/{sessionID}/stream and pushes verdicts over a websocket.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.service.State(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveStream(conn, id)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveStream(conn *websocket.Conn, id string) {
	log := h.logger.WithSession(id)
	sub := h.service.Hub().Subscribe(id)
	defer sub.Cancel()

	// The reader only watches for the client going away.
	go func() {
		var ignored json.RawMessage
		for {
			if err := websocket.JSON.Receive(conn, &ignored); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	log.Debug("stream opened")
	for msg := range sub.C {
		if err := websocket.JSON.Send(conn, msg); err != nil {
			log.Debug("stream send failed", "error", err.Error())
			return
		}
	}
	log.Debug("stream closed")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err.Error())
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err.Error())
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, drift.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, drift.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrCapacity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func sessionID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "sessionID"))
}
