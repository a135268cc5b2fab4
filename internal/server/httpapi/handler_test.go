package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomweaver/backend/internal/chats"
	"github.com/bloomweaver/backend/internal/inference"
	"github.com/bloomweaver/backend/internal/kvstore"
	"github.com/bloomweaver/backend/internal/logging"
	"github.com/bloomweaver/backend/internal/memory"
	"github.com/bloomweaver/backend/internal/server/auth"
	"github.com/bloomweaver/backend/internal/stats"
	"github.com/bloomweaver/backend/internal/tiers"
)

const testSecret = "handler-test-secret"

type fakeCompleter struct {
	deltas  []string
	tokens  int64
	err     error
	lastReq inference.Request
}

func (f *fakeCompleter) Stream(ctx context.Context, req inference.Request, onDelta func(string)) (*inference.Result, error) {
	f.lastReq = req
	var full strings.Builder
	for _, d := range f.deltas {
		full.WriteString(d)
		if onDelta != nil {
			onDelta(d)
		}
	}
	return &inference.Result{Content: full.String(), CompletionTokens: f.tokens}, f.err
}

type testEnv struct {
	router    *gin.Engine
	store     *kvstore.Memory
	completer *fakeCompleter
	policy    *tiers.Policy
}

func newTestEnv(t *testing.T, limitsEnabled bool) *testEnv {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	gin.SetMode(gin.TestMode)

	log := logging.NewJSON()
	store := kvstore.NewMemory()
	recorder := stats.NewRecorder(store, log)
	chatSvc := chats.NewService(store, recorder, log)
	policy := tiers.NewPolicy(store, log, limitsEnabled)
	completer := &fakeCompleter{deltas: []string{"Hi ", "there"}}
	identity := auth.NewIdentity([]byte(testSecret))

	var recall *memory.Service
	h := NewHandler(chatSvc, policy, recorder, completer, recall, identity, log, "")
	return &testEnv{router: h.Router(), store: store, completer: completer, policy: policy}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func TestChatLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	tok := tokenFor(t, "u1")

	// Create.
	w := env.do(t, http.MethodPost, "/api/chats", tok, `{"title":"First chat"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Chat chats.Chat `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Chat.ID)
	assert.Equal(t, "First chat", created.Chat.Title)

	// Get.
	w = env.do(t, http.MethodGet, "/api/chats/"+created.Chat.ID, tok, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Rename.
	w = env.do(t, http.MethodPut, "/api/chats/"+created.Chat.ID, tok, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// List shows the renamed chat.
	w = env.do(t, http.MethodGet, "/api/chats", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Chats []chats.Preview `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Chats, 1)
	assert.Equal(t, "Renamed", listed.Chats[0].Title)

	// Delete.
	w = env.do(t, http.MethodDelete, "/api/chats/"+created.Chat.ID, tok, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/chats/"+created.Chat.ID, tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateChat_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/chats", "", `{"title":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListChats_AnonymousGetsEmptyList(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/chats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"chats":[]}`, w.Body.String())
}

func TestGetChat_ForeignChatIsNotFound(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/chats", tokenFor(t, "owner"), `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		Chat chats.Chat `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(t, http.MethodGet, "/api/chats/"+created.Chat.ID, tokenFor(t, "intruder"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamChat_RelaysDeltasAsSSE(t *testing.T) {
	env := newTestEnv(t, false)
	tok := tokenFor(t, "u1")

	w := env.do(t, http.MethodPost, "/api/chat/stream", tok,
		`{"messages":[{"role":"user","content":"say hi"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"content":"Hi "}`)
	assert.Contains(t, body, `data: {"content":"there"}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	// Default model applied when the request names none.
	assert.Equal(t, tiers.DefaultModelID, env.completer.lastReq.Model)

	// Token usage was recorded.
	v, err := env.store.Get(context.Background(), "stats:total:tokens")
	require.NoError(t, err)
	assert.NotEqual(t, "0", v)
}

func TestStreamChat_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/chat/stream", "",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStreamChat_ModelGatedByTier(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/chat/stream", tokenFor(t, "u1"),
		`{"model":"deepseek-r1-distill-llama-70b","messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStreamChat_QuotaExhausted(t *testing.T) {
	env := newTestEnv(t, true)
	tok := tokenFor(t, "u1")

	// Burn the quota down to zero directly.
	ctx := context.Background()
	_, err := env.policy.CheckAndDecrement(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, env.store.Set(ctx, "user:u1:limit", "0"))

	w := env.do(t, http.MethodPost, "/api/chat/stream", tok,
		`{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStreamChat_PrivateModeSkipsMessageCounters(t *testing.T) {
	env := newTestEnv(t, false)
	tok := tokenFor(t, "u1")

	w := env.do(t, http.MethodPost, "/api/chat/stream", tok,
		`{"privateMode":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	ctx := context.Background()
	_, err := env.store.Get(ctx, "stats:total:messages")
	assert.Error(t, err, "private sends must not bump message counters")

	v, err := env.store.Get(ctx, "stats:total:tokens")
	require.NoError(t, err)
	assert.NotEqual(t, "0", v)
}

func TestGetStats_IncludesUserBlockWhenAuthenticated(t *testing.T) {
	env := newTestEnv(t, false)
	tok := tokenFor(t, "u1")

	// Generate some usage first.
	w := env.do(t, http.MethodPost, "/api/chats", tok, `{}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/stats", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Global *stats.Usage `json:"global"`
		User   *stats.Usage `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, int64(1), payload.Global.TotalChats)
	assert.Equal(t, int64(1), payload.User.TotalChats)

	// Anonymous request omits the user block.
	w = env.do(t, http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"user"`)
}

func TestListModels_AnonymousSeesFreeTier(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/models", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Tier   tiers.Tier    `json:"tier"`
		Models []tiers.Model `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, tiers.TierFree, payload.Tier)
	assert.Len(t, payload.Models, 1)
}

func TestGetLimits(t *testing.T) {
	env := newTestEnv(t, true)
	tok := tokenFor(t, "u1")

	w := env.do(t, http.MethodGet, "/api/limits", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/limits", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Tier      tiers.Tier `json:"tier"`
		Unlimited bool       `json:"unlimited"`
		Remaining int64      `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, tiers.TierFree, payload.Tier)
	assert.False(t, payload.Unlimited)
	assert.Equal(t, tiers.MessageLimits[tiers.TierFree], payload.Remaining)
}
