package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloomweaver/backend/internal/inference"
	"github.com/bloomweaver/backend/internal/logging"
)

const (
	// topK bounds how many past turns one query may recall.
	topK = 5
	// minScore filters out weakly related matches.
	minScore = 0.7
)

// Service embeds conversation turns into the index and recalls them into
// prompts. A nil Service (memory not configured) is valid and does nothing.
type Service struct {
	embedder Embedder
	index    Index
	log      logging.Logger
	now      func() time.Time
}

func NewService(embedder Embedder, index Index, log logging.Logger) *Service {
	return &Service{embedder: embedder, index: index, log: log, now: time.Now}
}

// StoreMessage embeds one turn and upserts it with ownership metadata.
// Failures are logged and swallowed: recall is best-effort and must never
// fail the chat request that triggered it.
func (s *Service) StoreMessage(ctx context.Context, userID, chatID, role, content string) {
	if s == nil || content == "" {
		return
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.log.Error(ctx, "failed to embed message", "error", err)
		return
	}

	err = s.index.Upsert(ctx, []Vector{{
		ID:     uuid.NewString(),
		Values: vector,
		Metadata: map[string]string{
			"userId":    userID,
			"chatId":    chatID,
			"role":      role,
			"content":   content,
			"timestamp": s.now().UTC().Format(time.RFC3339),
		},
	}})
	if err != nil {
		s.log.Error(ctx, "failed to index message", "error", err)
	}
}

// RelevantContext recalls past turns related to the query, scoped to the
// user. Failures degrade to no context.
func (s *Service) RelevantContext(ctx context.Context, userID, query string) string {
	if s == nil || query == "" {
		return ""
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Error(ctx, "failed to embed query", "error", err)
		return ""
	}

	matches, err := s.index.Query(ctx, vector, topK, map[string]string{"userId": userID})
	if err != nil {
		s.log.Error(ctx, "failed to query memory index", "error", err)
		return ""
	}

	var lines []string
	for _, m := range matches {
		if m.Score < minScore {
			continue
		}
		content := m.Metadata["content"]
		if content == "" {
			continue
		}
		role := m.Metadata["role"]
		if role == "" {
			role = "user"
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", role, content))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// EnrichMessages prepends recalled context as a system turn. The prompt is
// returned unchanged when nothing relevant is found. A conversation of one
// message or fewer has no history worth recalling, so it is left alone
// without touching the embeddings upstream.
func (s *Service) EnrichMessages(ctx context.Context, userID string, messages []inference.Message) []inference.Message {
	if s == nil || len(messages) <= 1 {
		return messages
	}

	last := messages[len(messages)-1]
	if last.Role != "user" {
		return messages
	}

	recalled := s.RelevantContext(ctx, userID, last.Content)
	if recalled == "" {
		return messages
	}

	system := inference.Message{
		Role: "system",
		Content: "Relevant context from earlier conversations with this user:\n" +
			recalled,
	}
	enriched := make([]inference.Message, 0, len(messages)+1)
	enriched = append(enriched, system)
	enriched = append(enriched, messages...)
	return enriched
}
