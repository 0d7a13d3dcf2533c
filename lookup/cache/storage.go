package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrQuotaExceeded é devolvido quando o armazenamento recusa a escrita por falta de espaço.
var ErrQuotaExceeded = errors.New("cache storage quota exceeded")

// Storage é o meio durável por trás do cache: chaves string com namespace,
// valores string. Get devolve ok=false quando a chave não existe.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryStorage guarda tudo num map. Com quota > 0 recusa escritas que
// passariam do total de bytes (chaves + valores).
type MemoryStorage struct {
	mu    sync.Mutex
	data  map[string]string
	used  int
	quota int
}

func NewMemoryStorage(quotaBytes int) *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string), quota: quotaBytes}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = used
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if old, ok := m.data[k]; ok {
			m.used -= len(k) + len(old)
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len conta todas as chaves, de qualquer namespace.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
