// Package httpapi exposes the chat backend over HTTP: chat CRUD, the
// streaming completion endpoint, and the stats/models/limits read surface.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloomweaver/backend/internal/chats"
	"github.com/bloomweaver/backend/internal/inference"
	"github.com/bloomweaver/backend/internal/logging"
	"github.com/bloomweaver/backend/internal/stats"
	"github.com/bloomweaver/backend/internal/tiers"
)

// ChatStore is the chat persistence surface the handlers depend on.
type ChatStore interface {
	List(ctx context.Context, userID string) ([]chats.Preview, error)
	Get(ctx context.Context, userID, chatID string) (*chats.Chat, error)
	Create(ctx context.Context, userID, title string, private bool) (string, error)
	Update(ctx context.Context, userID, chatID string, messages []chats.ChatMessage) error
	Rename(ctx context.Context, userID, chatID, title string) error
	Delete(ctx context.Context, userID, chatID string) error
}

// QuotaPolicy gates message sends per subscription tier.
type QuotaPolicy interface {
	UserTier(ctx context.Context, userID string) tiers.Tier
	CheckAndDecrement(ctx context.Context, userID string) (tiers.CheckResult, error)
	Remaining(ctx context.Context, userID string) (tiers.CheckResult, tiers.Tier, error)
}

// UsageStats records and serves the usage counters.
type UsageStats interface {
	RecordMessage(ctx context.Context, userID string, tokens int64, privateMode bool)
	Global(ctx context.Context) (*stats.Usage, error)
	ForUser(ctx context.Context, userID string) (*stats.Usage, error)
}

// Completer runs one streaming completion call.
type Completer interface {
	Stream(ctx context.Context, req inference.Request, onDelta func(delta string)) (*inference.Result, error)
}

// Recall is the long-term memory surface. Implementations must tolerate
// being backed by a nil service.
type Recall interface {
	EnrichMessages(ctx context.Context, userID string, messages []inference.Message) []inference.Message
	StoreMessage(ctx context.Context, userID, chatID, role, content string)
}

// IdentityProvider resolves the calling user; "" means anonymous.
type IdentityProvider interface {
	CurrentUserID(r *http.Request) string
}

type Handler struct {
	chats        ChatStore
	policy       QuotaPolicy
	stats        UsageStats
	completer    Completer
	memory       Recall
	identity     IdentityProvider
	log          logging.Logger
	systemPrompt string
}

func NewHandler(
	chatStore ChatStore,
	policy QuotaPolicy,
	usage UsageStats,
	completer Completer,
	memory Recall,
	identity IdentityProvider,
	log logging.Logger,
	systemPrompt string,
) *Handler {
	return &Handler{
		chats:        chatStore,
		policy:       policy,
		stats:        usage,
		completer:    completer,
		memory:       memory,
		identity:     identity,
		log:          log,
		systemPrompt: systemPrompt,
	}
}

// Router assembles the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/chats", h.listChats)
		api.POST("/chats", h.createChat)
		api.GET("/chats/:id", h.getChat)
		api.PUT("/chats/:id", h.renameChat)
		api.DELETE("/chats/:id", h.deleteChat)
		api.PUT("/chats/:id/messages", h.updateMessages)

		api.POST("/chat/stream", h.streamChat)

		api.GET("/stats", h.getStats)
		api.GET("/models", h.listModels)
		api.GET("/limits", h.getLimits)
	}

	return r
}

// userID pulls the authenticated user from the request, or "" for
// anonymous callers.
func (h *Handler) userID(c *gin.Context) string {
	return h.identity.CurrentUserID(c.Request)
}
