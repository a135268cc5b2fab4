package chats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/cryptox"
	"github.com/bloomweaver/backend/internal/kvstore"
	"github.com/bloomweaver/backend/internal/logging"
	"github.com/bloomweaver/backend/internal/stats"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// Service is the chat persistence layer. All operations take the caller's
// user id as supplied by the identity provider; an empty id means the
// request is unauthenticated.
//
// Multi-key updates (record + index) are sequenced with explicit repair
// logic rather than transactions, because the backing store offers no
// multi-key atomicity. Concurrent updates to the same chat id are not
// defended against beyond the transient-inconsistency retry.
type Service struct {
	store   kvstore.Store
	private *PrivateStore
	stats   *stats.Recorder
	log     logging.Logger

	retryAttempts int
	retryDelay    time.Duration
	now           func() time.Time
}

func NewService(store kvstore.Store, recorder *stats.Recorder, log logging.Logger) *Service {
	return &Service{
		store:         store,
		private:       NewPrivateStore(),
		stats:         recorder,
		log:           log,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		now:           time.Now,
	}
}

// List returns previews of the caller's durable chats, most recently updated
// first. Records that fail to decrypt are logged and skipped, not fatal.
// An unauthenticated caller gets an empty list.
func (s *Service) List(ctx context.Context, userID string) ([]Preview, error) {
	if userID == "" {
		return []Preview{}, nil
	}

	ids, err := s.store.SetMembers(ctx, userChatsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("reading chat index: %w", err)
	}

	previews := make([]Preview, 0, len(ids))
	for _, id := range ids {
		blob, err := s.store.Get(ctx, chatKey(id))
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				s.log.Warn(ctx, "skipping unreadable chat", "chat_id", id, "error", err)
			}
			continue
		}

		var chat Chat
		if err := cryptox.Decrypt(blob, &chat); err != nil {
			s.log.Warn(ctx, "skipping undecryptable chat", "chat_id", id, "error", err)
			continue
		}
		previews = append(previews, chat.preview())
	}

	sort.Slice(previews, func(i, j int) bool {
		return previews[i].UpdatedAt.After(previews[j].UpdatedAt)
	})
	return previews, nil
}

// Get fetches one chat. Private ids are resolved against process memory only
// and never touch the durable store. For durable ids the caller's index
// membership gates access; an absent record and a foreign record both come
// back as common.ErrorNotFound so existence of other users' chats does not
// leak.
func (s *Service) Get(ctx context.Context, userID, chatID string) (*Chat, error) {
	if userID == "" {
		return nil, common.ErrorNotFound
	}

	if IsPrivateID(chatID) {
		chat, ok := s.private.Get(chatID)
		if !ok || chat.UserID != userID {
			return nil, common.ErrorNotFound
		}
		return chat, nil
	}

	member, err := s.store.SetContains(ctx, userChatsKey(userID), chatID)
	if err != nil {
		return nil, fmt.Errorf("checking chat index: %w", err)
	}
	if !member {
		return nil, common.ErrorNotFound
	}

	blob, err := s.store.Get(ctx, chatKey(chatID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("reading chat: %w", err)
	}

	var chat Chat
	if err := cryptox.Decrypt(blob, &chat); err != nil {
		s.log.Error(ctx, "failed to decrypt chat", "chat_id", chatID, "error", err)
		return nil, common.ErrorNotFound
	}
	return &chat, nil
}

// Create mints a new chat seeded with one assistant greeting. Private chats
// are kept only in process memory; durable chats are encrypted, written and
// indexed under the caller, and counted as a new chat in usage stats.
func (s *Service) Create(ctx context.Context, userID, title string, private bool) (string, error) {
	if userID == "" {
		return "", common.ErrorUnauthorized
	}
	if title == "" {
		title = DefaultTitle
	}

	now := s.now()
	id := uuid.NewString()
	if private {
		id = PrivateIDPrefix + id
	}

	chat := &Chat{
		ID:        id,
		Title:     title,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Private:   private,
		Messages: []ChatMessage{{
			ID:        "1",
			Content:   Greeting,
			IsUser:    false,
			Timestamp: now,
			Role:      RoleAssistant,
		}},
	}

	if private {
		s.private.Put(chat)
		return id, nil
	}

	blob, err := cryptox.Encrypt(chat)
	if err != nil {
		return "", fmt.Errorf("encrypting chat: %w", err)
	}
	if err := s.store.Set(ctx, chatKey(id), blob); err != nil {
		return "", fmt.Errorf("storing chat: %w", err)
	}
	if _, err := s.store.SetAdd(ctx, userChatsKey(userID), id); err != nil {
		return "", fmt.Errorf("indexing chat: %w", err)
	}

	s.stats.RecordNewChat(ctx, userID)
	return id, nil
}

// Update replaces the chat's message sequence. For durable chats the
// index/record pair is first repaired if divergent, and the repair plus the
// read-reencrypt-write sequence runs under a bounded retry because the
// backing store may exhibit read-after-write lag. Terminal storage failures
// after retry exhaustion are logged and absorbed: callers cannot distinguish
// a no-op update from a successful one from the return value alone.
func (s *Service) Update(ctx context.Context, userID, chatID string, messages []ChatMessage) error {
	if userID == "" {
		return common.ErrorUnauthorized
	}

	if IsPrivateID(chatID) {
		chat, ok := s.private.Get(chatID)
		if !ok {
			return common.ErrorNotFound
		}
		if chat.UserID != userID {
			return common.ErrorUnauthorized
		}
		chat.Messages = messages
		chat.UpdatedAt = s.now()
		s.private.Put(chat)
		return nil
	}

	err := s.withRetry(ctx, "ensure chat consistent", func(ctx context.Context) error {
		return s.ensureConsistent(ctx, userID, chatID)
	})
	if err != nil {
		s.log.Error(ctx, "giving up on chat update", "chat_id", chatID, "error", err)
		return nil
	}

	blob, err := s.store.Get(ctx, chatKey(chatID))
	if err != nil {
		s.log.Error(ctx, "chat vanished during update", "chat_id", chatID, "error", err)
		return nil
	}

	var chat Chat
	if err := cryptox.Decrypt(blob, &chat); err != nil {
		s.log.Error(ctx, "failed to decrypt chat during update", "chat_id", chatID, "error", err)
		return nil
	}

	chat.Messages = messages
	chat.UpdatedAt = s.now()

	err = s.withRetry(ctx, "write chat", func(ctx context.Context) error {
		updated, err := cryptox.Encrypt(&chat)
		if err != nil {
			return err
		}
		return s.store.Set(ctx, chatKey(chatID), updated)
	})
	if err != nil {
		s.log.Error(ctx, "giving up on chat update", "chat_id", chatID, "error", err)
	}
	return nil
}

// Rename sets a new title. Unlike Update it is single-attempt, and a decrypt
// failure here is a hard error rather than a silent skip.
func (s *Service) Rename(ctx context.Context, userID, chatID, title string) error {
	if userID == "" {
		return common.ErrorUnauthorized
	}

	if IsPrivateID(chatID) {
		chat, ok := s.private.Get(chatID)
		if !ok {
			return common.ErrorNotFound
		}
		if chat.UserID != userID {
			return common.ErrorUnauthorized
		}
		chat.Title = title
		chat.UpdatedAt = s.now()
		s.private.Put(chat)
		return nil
	}

	member, err := s.store.SetContains(ctx, userChatsKey(userID), chatID)
	if err != nil {
		return fmt.Errorf("checking chat index: %w", err)
	}
	if !member {
		return common.ErrorUnauthorized
	}

	blob, err := s.store.Get(ctx, chatKey(chatID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("reading chat: %w", err)
	}

	var chat Chat
	if err := cryptox.Decrypt(blob, &chat); err != nil {
		return fmt.Errorf("decrypting chat: %w", err)
	}

	chat.Title = title
	chat.UpdatedAt = s.now()

	updated, err := cryptox.Encrypt(&chat)
	if err != nil {
		return fmt.Errorf("encrypting chat: %w", err)
	}
	if err := s.store.Set(ctx, chatKey(chatID), updated); err != nil {
		return fmt.Errorf("storing chat: %w", err)
	}
	return nil
}

// Delete removes a chat and its index entry. Single attempt, ownership
// gated by index membership.
func (s *Service) Delete(ctx context.Context, userID, chatID string) error {
	if userID == "" {
		return common.ErrorUnauthorized
	}

	if IsPrivateID(chatID) {
		chat, ok := s.private.Get(chatID)
		if !ok {
			return common.ErrorNotFound
		}
		if chat.UserID != userID {
			return common.ErrorUnauthorized
		}
		s.private.Delete(chatID)
		return nil
	}

	member, err := s.store.SetContains(ctx, userChatsKey(userID), chatID)
	if err != nil {
		return fmt.Errorf("checking chat index: %w", err)
	}
	if !member {
		return common.ErrorUnauthorized
	}

	if _, err := s.store.Delete(ctx, chatKey(chatID)); err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	if _, err := s.store.SetRemove(ctx, userChatsKey(userID), chatID); err != nil {
		return fmt.Errorf("unindexing chat: %w", err)
	}
	return nil
}

// ensureConsistent repairs index/record divergence and is safe to call
// repeatedly: a vanished record is recreated as an empty placeholder owned
// by the caller, and a missing index membership is re-added. Violations of
// the record/index invariant are treated as repairable, not as corruption.
func (s *Service) ensureConsistent(ctx context.Context, userID, chatID string) error {
	_, err := s.store.Get(ctx, chatKey(chatID))
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		now := s.now()
		placeholder := &Chat{
			ID:        chatID,
			Title:     RecoveredTitle,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
			Messages:  []ChatMessage{},
		}
		blob, err := cryptox.Encrypt(placeholder)
		if err != nil {
			return err
		}
		if err := s.store.Set(ctx, chatKey(chatID), blob); err != nil {
			return err
		}
		if _, err := s.store.SetAdd(ctx, userChatsKey(userID), chatID); err != nil {
			return err
		}
		return nil
	}

	member, err := s.store.SetContains(ctx, userChatsKey(userID), chatID)
	if err != nil {
		return err
	}
	if !member {
		if _, err := s.store.SetAdd(ctx, userChatsKey(userID), chatID); err != nil {
			return err
		}
	}
	return nil
}

// withRetry runs fn up to retryAttempts times with a fixed delay between
// attempts, honoring context cancellation while waiting.
func (s *Service) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		if last = fn(ctx); last == nil {
			return nil
		}
		s.log.Warn(ctx, "operation failed, will retry", "op", op, "attempt", attempt, "error", last)

		if attempt < s.retryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return fmt.Errorf("%w: %s: %v", common.ErrorStoreInconsistency, op, last)
}
