package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/inference"
	"github.com/bloomweaver/backend/internal/stats"
	"github.com/bloomweaver/backend/internal/tiers"
)

type streamChatReq struct {
	ChatID      string              `json:"chatId"`
	Model       string              `json:"model"`
	Messages    []inference.Message `json:"messages" binding:"required"`
	PrivateMode bool                `json:"privateMode"`
}

// POST /api/chat/stream
//
// Runs the full send-message workflow: authentication, model gating, quota
// consumption, prompt enrichment from long-term memory, the upstream
// completion stream relayed as SSE, and usage accounting on the way out.
// Private mode skips memory on both the read and write side and keeps
// message counts out of the stats.
func (h *Handler) streamChat(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	var req streamChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Messages) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("messages must not be empty"))
		return
	}

	ctx := c.Request.Context()

	model := req.Model
	if model == "" {
		model = tiers.DefaultModelID
	}
	tier := h.policy.UserTier(ctx, userID)
	if !tiers.IsModelAvailable(model, tier) {
		RespondError(c, http.StatusForbidden, "model_not_available",
			fmt.Errorf("model %q is not available on the %s tier", model, tier))
		return
	}

	quota, err := h.policy.CheckAndDecrement(ctx, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !quota.OK {
		RespondError(c, http.StatusTooManyRequests, "limit_reached", common.ErrorLimitReached)
		return
	}

	messages := req.Messages
	if !req.PrivateMode {
		messages = h.memory.EnrichMessages(ctx, userID, messages)
	}
	if h.systemPrompt != "" {
		messages = append([]inference.Message{{Role: "system", Content: h.systemPrompt}}, messages...)
	}

	userTurn := req.Messages[len(req.Messages)-1]
	promptTokens := stats.EstimateTokens(userTurn.Content)

	// SSE headers are committed lazily so that an upstream failure before
	// the first delta can still produce a plain JSON error response.
	flusher, _ := c.Writer.(http.Flusher)
	started := false
	startSSE := func() {
		if started {
			return
		}
		started = true
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
	}

	result, streamErr := h.completer.Stream(ctx, inference.Request{
		Messages: messages,
		Model:    model,
	}, func(delta string) {
		startSSE()
		writeSSE(c.Writer, deltaFrame{Content: delta})
		if flusher != nil {
			flusher.Flush()
		}
	})

	if streamErr != nil {
		h.log.Error(ctx, "completion stream failed", "model", model, "error", streamErr)
		if !started {
			respondServiceError(c, streamErr)
			return
		}
		// The SSE channel is already open, so report in-band and account
		// for what was delivered.
		writeSSE(c.Writer, errorFrame{Error: "stream interrupted"})
	}

	completionTokens := result.CompletionTokens
	if completionTokens == 0 {
		completionTokens = stats.EstimateTokens(result.Content)
	}
	h.stats.RecordMessage(ctx, userID, promptTokens+completionTokens, req.PrivateMode)

	if !req.PrivateMode && result.Content != "" {
		h.memory.StoreMessage(ctx, userID, req.ChatID, chatRoleUser, userTurn.Content)
		h.memory.StoreMessage(ctx, userID, req.ChatID, chatRoleAssistant, result.Content)
	}

	startSSE()
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

const (
	chatRoleUser      = "user"
	chatRoleAssistant = "assistant"
)

type deltaFrame struct {
	Content string `json:"content"`
}

type errorFrame struct {
	Error string `json:"error"`
}

func writeSSE(w http.ResponseWriter, frame any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
}
