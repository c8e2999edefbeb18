package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	info Info
	data []byte
}

// Memory is a Store backed by process memory.
type Memory struct {
	mu   sync.RWMutex
	objs map[string]entry
	now  func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objs: make(map[string]entry), now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Close() error { return nil }

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) (Info, error) {
	if err := ValidateKey(key); err != nil {
		return Info{}, err
	}
	b := make([]byte, len(data))
	copy(b, data)
	info := Info{Key: key, Size: int64(len(b)), ContentType: contentType, UpdatedAt: m.now()}

	m.mu.Lock()
	m.objs[key] = entry{info: info, data: b}
	m.mu.Unlock()
	return info, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, Info, error) {
	m.mu.RLock()
	e, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	b := make([]byte, len(e.data))
	copy(b, e.data)
	return b, e.info, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.objs, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.objs))
	for k, e := range m.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, e.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
