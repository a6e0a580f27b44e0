// Package outbox records push obligations for local mutations and drains
// them to the remote store.
package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/metrics"
	rentsync "github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/sync"
)

// markWriteTimeout bounds a single outbox write issued by the marker.
const markWriteTimeout = 5 * time.Second

// EntryWriter is the write side of the outbox queue.
type EntryWriter interface {
	InsertOrReplace(ctx context.Context, entry rentsync.OutboxEntry) error
}

// Marker records that a record needs to be pushed. MarkDirty never blocks on
// storage and never fails the caller: entries go through a buffered channel
// to one background writer, and when the buffer is full the entry is written
// inline. Write failures are logged and dropped.
type Marker struct {
	store EntryWriter
	now   func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan rentsync.OutboxEntry
	done   chan struct{}
}

// NewMarker starts the background writer. buffer is the number of marks that
// may be pending before MarkDirty falls back to writing inline.
func NewMarker(store EntryWriter, buffer int) *Marker {
	if buffer < 0 {
		buffer = 0
	}
	m := &Marker{
		store: store,
		now:   time.Now,
		queue: make(chan rentsync.OutboxEntry, buffer),
		done:  make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Marker) run() {
	defer close(m.done)
	for entry := range m.queue {
		m.write(entry)
	}
}

// MarkDirty records that (entityType, entityID) in tenantID changed now.
func (m *Marker) MarkDirty(tenantID, entityType, entityID string) {
	if entityType == "" || entityID == "" {
		slog.Warn("ignoring dirty mark without entity",
			"component", "outbox",
			"action", "mark_dirty",
			"tenant_id", tenantID,
			"entity_type", entityType,
			"entity_id", entityID,
		)
		return
	}

	entry := rentsync.OutboxEntry{
		TenantID:    tenantID,
		EntityType:  entityType,
		EntityID:    entityID,
		IsDirty:     true,
		LastDirtyAt: m.now().UTC(),
	}

	m.mu.RLock()
	if !m.closed {
		select {
		case m.queue <- entry:
			m.mu.RUnlock()
			metrics.OutboxMarksTotal.WithLabelValues("queued").Inc()
			return
		default:
		}
	}
	m.mu.RUnlock()

	metrics.OutboxMarksTotal.WithLabelValues("inline").Inc()
	m.write(entry)
}

func (m *Marker) write(entry rentsync.OutboxEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), markWriteTimeout)
	defer cancel()

	if err := m.store.InsertOrReplace(ctx, entry); err != nil {
		metrics.OutboxMarksTotal.WithLabelValues("failed").Inc()
		slog.Warn("failed to mark entity dirty",
			"component", "outbox",
			"action", "mark_dirty",
			"tenant_id", entry.TenantID,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// Close stops accepting queued marks and waits until every pending mark has
// been written. Marks issued after Close are written inline.
func (m *Marker) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
	return nil
}
