package images

import "context"

// Store is the object storage holding meal photos, keyed by the path
// recorded on the meal row.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a simple in-memory implementation for testing.
type MemoryStore struct {
	objects map[string]struct{}
	err     error
}

func NewMemoryStore(keys ...string) *MemoryStore {
	m := &MemoryStore{objects: make(map[string]struct{})}
	for _, k := range keys {
		m.objects[k] = struct{}{}
	}
	return m
}

func NewMemoryStoreWithError(err error) *MemoryStore {
	return &MemoryStore{objects: make(map[string]struct{}), err: err}
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.objects, key)
	return nil
}
