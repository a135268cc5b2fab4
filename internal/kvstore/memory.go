package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bloomweaver/backend/internal/common"
)

// Memory is the in-process Store fallback. Contents live for the process
// lifetime only, are not replicated, and have no size bound or eviction;
// that is acceptable because it backs local development, not production.
type Memory struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewMemory() *Memory {
	return &Memory{data: map[string]any{}}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("key %q holds a non-scalar value", key)
	}
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return 0, nil
	}
	delete(m.data, key)
	return 1, nil
}

func (m *Memory) SetAdd(ctx context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, err := m.setAt(key, true)
	if err != nil {
		return 0, err
	}

	var added int64
	for _, member := range members {
		if _, ok := set[member]; !ok {
			set[member] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (m *Memory) SetRemove(ctx context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, err := m.setAt(key, false)
	if err != nil || set == nil {
		return 0, err
	}

	var removed int64
	for _, member := range members {
		if _, ok := set[member]; ok {
			delete(set, member)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) SetContains(ctx context.Context, key, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.data[key].(map[string]struct{})
	if !ok {
		return false, nil
	}
	_, found := set[member]
	return found, nil
}

func (m *Memory) SetMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.data[key].(map[string]struct{})
	if !ok {
		return []string{}, nil
	}
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	return members, nil
}

// setAt returns the set stored under key, creating it when create is set.
// Callers must hold the write lock.
func (m *Memory) setAt(key string, create bool) (map[string]struct{}, error) {
	v, ok := m.data[key]
	if !ok {
		if !create {
			return nil, nil
		}
		set := map[string]struct{}{}
		m.data[key] = set
		return set, nil
	}
	set, ok := v.(map[string]struct{})
	if !ok {
		return nil, fmt.Errorf("key %q does not hold a set", key)
	}
	return set, nil
}

// Pipeline returns a builder whose operations run sequentially at Exec time
// in submission order, not when queued. Each operation's failure is isolated
// to its own result slot.
func (m *Memory) Pipeline() Pipeline {
	return &memoryPipeline{store: m}
}

type memoryPipeline struct {
	store *Memory
	ops   []func(ctx context.Context) (int64, error)
}

func (p *memoryPipeline) Incr(key string) Pipeline {
	return p.IncrBy(key, 1)
}

func (p *memoryPipeline) IncrBy(key string, delta int64) Pipeline {
	p.ops = append(p.ops, func(ctx context.Context) (int64, error) {
		return p.store.incrBy(key, delta)
	})
	return p
}

func (p *memoryPipeline) Exec(ctx context.Context) []Result {
	results := make([]Result, len(p.ops))
	for i, op := range p.ops {
		v, err := op(ctx)
		results[i] = Result{Value: v, Err: err}
	}
	return results
}

func (m *Memory) incrBy(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	switch v := m.data[key].(type) {
	case nil:
	case int64:
		current = v
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("key %q holds a non-integer value", key)
		}
		current = parsed
	default:
		return 0, fmt.Errorf("key %q holds a non-integer value", key)
	}

	current += delta
	m.data[key] = current
	return current, nil
}
