package remote

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process remote store. Failures can be injected per
// collection.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]map[string]map[string]map[string]any // tenant → collection → id → fields
	fetchErrs  map[string]error
	countErrs  map[string]error
	upsertErrs map[string]error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]map[string]map[string]map[string]any),
		fetchErrs:  make(map[string]error),
		countErrs:  make(map[string]error),
		upsertErrs: make(map[string]error),
	}
}

func (m *MemoryStore) collection(tenantID, collection string, create bool) map[string]map[string]any {
	byCollection, ok := m.docs[tenantID]
	if !ok {
		if !create {
			return nil
		}
		byCollection = make(map[string]map[string]map[string]any)
		m.docs[tenantID] = byCollection
	}
	docs, ok := byCollection[collection]
	if !ok && create {
		docs = make(map[string]map[string]any)
		byCollection[collection] = docs
	}
	return docs
}

// Put stores documents directly, bypassing injected failures.
func (m *MemoryStore) Put(tenantID, collection string, docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(tenantID, collection, true)
	for _, d := range docs {
		c[d.ID] = copyFields(d.Fields)
	}
}

// Get returns one stored document.
func (m *MemoryStore) Get(tenantID, collection, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.collection(tenantID, collection, false)[id]
	if !ok {
		return nil, false
	}
	return copyFields(fields), true
}

// FailFetch makes FetchAll on collection return err. A nil err clears it.
func (m *MemoryStore) FailFetch(collection string, err error) {
	m.setErr(m.fetchErrs, collection, err)
}

// FailCount makes Count on collection return err. A nil err clears it.
func (m *MemoryStore) FailCount(collection string, err error) {
	m.setErr(m.countErrs, collection, err)
}

// FailUpsert makes Upsert on collection return err. A nil err clears it.
func (m *MemoryStore) FailUpsert(collection string, err error) {
	m.setErr(m.upsertErrs, collection, err)
}

func (m *MemoryStore) setErr(target map[string]error, collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(target, collection)
		return
	}
	target[collection] = err
}

// FetchAll returns the documents of a collection ordered by id.
func (m *MemoryStore) FetchAll(ctx context.Context, tenantID, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fetchErrs[collection]; err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	c := m.collection(tenantID, collection, false)
	docs := make([]Document, 0, len(c))
	for id, fields := range c {
		docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
	}
	sortDocuments(docs)
	return docs, nil
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(ctx context.Context, tenantID, collection string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.countErrs[collection]; err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return int64(len(m.collection(tenantID, collection, false))), nil
}

// Upsert stores one document.
func (m *MemoryStore) Upsert(ctx context.Context, tenantID, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertErrs[collection]; err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	m.collection(tenantID, collection, true)[id] = copyFields(fields)
	return nil
}
