package chats

import "sync"

// PrivateStore holds ephemeral chats for the lifetime of the process. It is
// not replicated and not durable; contents vanish on restart. A size or
// eviction policy is a deliberate non-goal.
type PrivateStore struct {
	mu    sync.RWMutex
	chats map[string]*Chat
}

func NewPrivateStore() *PrivateStore {
	return &PrivateStore{chats: map[string]*Chat{}}
}

func (p *PrivateStore) Get(id string) (*Chat, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.chats[id]
	return c, ok
}

func (p *PrivateStore) Put(c *Chat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chats[c.ID] = c
}

func (p *PrivateStore) Delete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.chats, id)
}

// Len reports the number of stored chats.
func (p *PrivateStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.chats)
}
