package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/tiers"
)

// GET /api/stats
//
// Global counters are always included; the caller's own usage is added
// when the request is authenticated.
func (h *Handler) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	global, err := h.stats.Global(ctx)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	payload := gin.H{"global": global}
	if userID := h.userID(c); userID != "" {
		user, err := h.stats.ForUser(ctx, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		payload["user"] = user
	}
	RespondOK(c, payload)
}

// GET /api/models
//
// Anonymous callers see the free-tier catalog.
func (h *Handler) listModels(c *gin.Context) {
	tier := tiers.TierFree
	if userID := h.userID(c); userID != "" {
		tier = h.policy.UserTier(c.Request.Context(), userID)
	}
	RespondOK(c, gin.H{
		"tier":   tier,
		"models": tiers.ModelsForTier(tier),
	})
}

// GET /api/limits
func (h *Handler) getLimits(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		RespondError(c, http.StatusUnauthorized, "unauthenticated", common.ErrorUnauthorized)
		return
	}

	res, tier, err := h.policy.Remaining(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"tier":      tier,
		"unlimited": res.Unlimited,
		"remaining": res.Remaining,
	})
}
