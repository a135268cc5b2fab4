package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloomweaver/backend/internal/chats"
	"github.com/bloomweaver/backend/internal/common"
)

// GET /api/chats
func (h *Handler) listChats(c *gin.Context) {
	userID := h.userID(c)

	previews, err := h.chats.List(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"chats": previews})
}

type createChatReq struct {
	Title     string `json:"title"`
	IsPrivate bool   `json:"isPrivate"`
}

// POST /api/chats
func (h *Handler) createChat(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ctx := c.Request.Context()
	chatID, err := h.chats.Create(ctx, userID, req.Title, req.IsPrivate)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	chat, err := h.chats.Get(ctx, userID, chatID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"chat": chat})
}

// GET /api/chats/:id
func (h *Handler) getChat(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	chat, err := h.chats.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"chat": chat})
}

type renameChatReq struct {
	Title string `json:"title" binding:"required"`
}

// PUT /api/chats/:id
func (h *Handler) renameChat(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	var req renameChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.chats.Rename(c.Request.Context(), userID, c.Param("id"), req.Title); err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

// DELETE /api/chats/:id
func (h *Handler) deleteChat(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	if err := h.chats.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

type updateMessagesReq struct {
	Messages []chats.ChatMessage `json:"messages"`
}

// PUT /api/chats/:id/messages
//
// Persistence failures on the durable path are absorbed by the service, so
// a 200 here means "accepted", not "fsynced". Authorization and private
// ownership failures still surface.
func (h *Handler) updateMessages(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	var req updateMessagesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	err := h.chats.Update(c.Request.Context(), userID, c.Param("id"), req.Messages)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) || errors.Is(err, common.ErrorNotFound) {
			respondServiceError(c, err)
			return
		}
		h.log.Error(c.Request.Context(), "failed to update chat messages", "chat_id", c.Param("id"), "error", err)
	}
	RespondOK(c, gin.H{"status": "ok"})
}
