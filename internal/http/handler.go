package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

// Handler handles HTTP requests.
type Handler struct {
	answers *domain.AnswerService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(answers *domain.AnswerService) *Handler {
	return &Handler{
		answers: answers,
	}
}

type askRequest struct {
	Question     string `json:"question"`
	Role         string `json:"role,omitempty"`
	UseWebSearch bool   `json:"use_web_search"`
	DocumentOnly bool   `json:"document_only"`
	SessionID    string `json:"session_id,omitempty"`
}

// HandleAsk processes question requests.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.SessionID != "" {
		ctx = observability.WithSessionID(ctx, req.SessionID)
	}

	logger := observability.FromContext(ctx)
	logger.Info("ask request received",
		zap.Bool("use_web_search", req.UseWebSearch),
		zap.Bool("document_only", req.DocumentOnly),
	)

	answer, err := h.answers.Answer(ctx, req.Question, domain.AskOptions{
		Role:         req.Role,
		UseWebSearch: req.UseWebSearch,
		DocumentOnly: req.DocumentOnly,
		SessionID:    req.SessionID,
	})
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			http.Error(w, validationErr.Error(), http.StatusBadRequest)
			return
		}

		logger.Error("ask request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logger.Info("ask request succeeded",
		zap.Bool("used_web_search", answer.UsedWebSearch),
		zap.Int("web_sources", len(answer.WebSources)),
	)

	writeJSON(ctx, w, answer)
}

// HandleCacheStats reports entry counts for both result caches.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.answers.CacheStats(ctx)
	if err != nil {
		observability.FromContext(ctx).Error("cache stats failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, stats)
}

// HandleCacheClear empties both result caches.
func (h *Handler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.answers.ClearCaches(ctx); err != nil {
		observability.FromContext(ctx).Error("cache clear failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, map[string]string{"status": "cleared"})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}
