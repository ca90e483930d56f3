package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/countryleisure/rusty/internal/config"
	"github.com/countryleisure/rusty/internal/engine"
	"github.com/countryleisure/rusty/internal/journey"
	"github.com/countryleisure/rusty/internal/observability"
)

// Server is the HTTP surface over the conversation engine. It owns
// transport concerns only; all journey behavior lives in the engine.
type Server struct {
	cfg      config.Config
	engine   *engine.Engine
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, eng *engine.Engine, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		engine:  eng,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/users/{id}/stats", s.handleStats)
	r.Post("/v1/users/{id}/reset", s.handleReset)
	r.Get("/v1/users/{id}/render", s.handleRenderStatus)
	r.Post("/v1/users/{id}/render", s.handleSetRenderStatus)
	r.Post("/v1/users/{id}/cta-response", s.handleCTAResponse)

	r.Post("/v1/admin/sweep", s.handleSweep)
	r.Get("/v1/admin/overview", s.handleOverview)
	r.Get("/v1/admin/renders/export", s.handleExportRenders)

	return r
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply       string              `json:"reply"`
	UserID      string              `json:"user_id"`
	BuyerStage  journey.BuyerStage  `json:"buyer_stage"`
	Engagement  int                 `json:"engagement_level"`
	RenderStage journey.RenderStage `json:"render_status"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "message is required")
		return
	}
	// Anonymous visitors get a minted id they can carry across turns.
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = uuid.NewString()[:8]
	}

	result, err := s.engine.ProcessTurn(r.Context(), req.UserID, req.Message, time.Now().UTC())
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, engine.ErrCompletionUnavailable):
		// Journey state persisted; only the reply is missing.
		respondJSON(w, http.StatusServiceUnavailable, chatResponse{
			Reply:       result.Reply,
			UserID:      result.UserID,
			BuyerStage:  result.BuyerStage,
			Engagement:  result.Engagement,
			RenderStage: result.RenderStage,
		})
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "turn_failed", "something went wrong, please try again")
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{
		Reply:       result.Reply,
		UserID:      result.UserID,
		BuyerStage:  result.BuyerStage,
		Engagement:  result.Engagement,
		RenderStage: result.RenderStage,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}
	stats, err := s.engine.Stats(r.Context(), id, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}
	if err := s.engine.Reset(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": id, "reset": true})
}

type renderStatusRequest struct {
	Status journey.RenderStatus `json:"status"`
}

func (s *Server) handleRenderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := s.engine.Stats(r.Context(), id, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "render_status_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":          stats.UserID,
		"render_requested": stats.RenderRequested,
		"render_stage":     stats.RenderStage,
		"missing_fields":   stats.MissingFields,
	})
}

func (s *Server) handleSetRenderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req renderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	record, err := s.engine.SetRenderStatus(r.Context(), id, req.Status, time.Now().UTC())
	if errors.Is(err, engine.ErrInvalidInput) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "render_update_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":      record.UserID,
		"render_stage": journey.RenderStageOf(record),
	})
}

type ctaResponseRequest struct {
	Kind     journey.CTAKind `json:"cta_type"`
	Response string          `json:"response"`
}

func (s *Server) handleCTAResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ctaResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	record, err := s.engine.RecordCTAOutcome(r.Context(), id, req.Kind, req.Response, time.Now().UTC())
	if errors.Is(err, engine.ErrInvalidInput) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cta_response_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":          record.UserID,
		"buyer_stage":      record.BuyerStage,
		"render_requested": record.RenderRequested,
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.Sweep(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sweep_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cleaned_count": removed})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.engine.Overview(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "overview_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

type renderExportRow struct {
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	PhotoProvided bool      `json:"photo_provided"`
	PreferredSize string    `json:"preferred_size"`
	Focus         string    `json:"focus"`
	Features      []string  `json:"features"`
	BudgetAware   bool      `json:"budget_conscious"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated"`
}

func (s *Server) handleExportRenders(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.ExportRenders(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	rows := make([]renderExportRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, renderExportRow{
			UserID:        record.UserID,
			Name:          record.ContactInfo.Name,
			Email:         record.ContactInfo.Email,
			Phone:         record.ContactInfo.Phone,
			PhotoProvided: record.ContactInfo.Photo != "",
			PreferredSize: record.KeyFacts.PreferredSize,
			Focus:         record.KeyFacts.Focus,
			Features:      record.KeyFacts.Features,
			BudgetAware:   record.KeyFacts.BudgetConscious,
			CreatedAt:     record.CreatedAt,
			LastUpdatedAt: record.LastUpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"render_requests": rows,
		"count":           len(rows),
		"exported_at":     time.Now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
