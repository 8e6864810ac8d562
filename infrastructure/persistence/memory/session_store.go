// Package memory keeps planning sessions in process memory.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/session"
	pkgerrors "mindmap-backend/pkg/errors"
)

const (
	// DefaultMaxSessions bounds the store when no limit is configured
	DefaultMaxSessions = 1000

	// DefaultIdleTTL expires sessions nobody has touched for this long
	DefaultIdleTTL = 2 * time.Hour
)

var (
	_ ports.SessionRepository = (*SessionStore)(nil)
	_ ports.StatsReporter     = (*SessionStore)(nil)
)

// SessionStore is an in-memory session repository with LRU eviction and an
// idle TTL. It is safe for concurrent use.
type SessionStore struct {
	mu          sync.Mutex
	items       map[session.ID]*storeItem
	lruList     *list.List
	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time

	evictions int64
	expired   int64

	stop   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

type storeItem struct {
	session    *session.Session
	lastAccess time.Time
	lruElement *list.Element
}

// NewSessionStore creates a store holding at most maxSessions sessions, each
// expiring after idleTTL without access. Non-positive values take the defaults.
func NewSessionStore(maxSessions int, idleTTL time.Duration, logger *zap.Logger) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		items:       make(map[session.ID]*storeItem),
		lruList:     list.New(),
		maxSessions: maxSessions,
		idleTTL:     idleTTL,
		now:         time.Now,
		stop:        make(chan struct{}),
		logger:      logger,
	}
}

// Save stores s, replacing any session with the same id
func (st *SessionStore) Save(ctx context.Context, s *session.Session) error {
	if s == nil || s.ID() == "" {
		return pkgerrors.NewValidationError("invalid session")
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := st.items[s.ID()]; ok {
		existing.session = s
		existing.lastAccess = st.now()
		st.lruList.MoveToFront(existing.lruElement)
		return nil
	}

	for len(st.items) >= st.maxSessions && st.lruList.Len() > 0 {
		oldest := st.lruList.Back().Value.(*storeItem)
		st.removeItem(oldest)
		st.evictions++
		st.logger.Info("Session evicted", zap.String("session_id", oldest.session.ID().String()))
	}

	item := &storeItem{session: s, lastAccess: st.now()}
	item.lruElement = st.lruList.PushFront(item)
	st.items[s.ID()] = item
	return nil
}

// GetByID returns the session and refreshes its idle timer
func (st *SessionStore) GetByID(ctx context.Context, id session.ID) (*session.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	item, ok := st.items[id]
	if !ok {
		return nil, notFound(id)
	}
	if st.isExpired(item) {
		st.removeItem(item)
		st.expired++
		return nil, notFound(id)
	}
	item.lastAccess = st.now()
	st.lruList.MoveToFront(item.lruElement)
	return item.session, nil
}

// Delete removes a session
func (st *SessionStore) Delete(ctx context.Context, id session.ID) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	item, ok := st.items[id]
	if !ok {
		return notFound(id)
	}
	st.removeItem(item)
	return nil
}

// Count returns the number of stored sessions, expired ones included until swept
func (st *SessionStore) Count(ctx context.Context) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.items)
}

// CleanupExpired drops every session idle for longer than the TTL and
// returns how many were dropped
func (st *SessionStore) CleanupExpired(ctx context.Context) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	var expired []*storeItem
	for _, item := range st.items {
		if st.isExpired(item) {
			expired = append(expired, item)
		}
	}
	for _, item := range expired {
		st.removeItem(item)
	}
	st.expired += int64(len(expired))

	if len(expired) > 0 {
		st.logger.Info("Expired sessions removed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// StartCleanup sweeps expired sessions every interval until Close is called
func (st *SessionStore) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.CleanupExpired(context.Background())
			case <-st.stop:
				return
			}
		}
	}()
}

// Close stops the cleanup goroutine
func (st *SessionStore) Close() error {
	st.once.Do(func() { close(st.stop) })
	return nil
}

// Stats returns store counters
func (st *SessionStore) Stats() ports.StoreStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return ports.StoreStats{
		Sessions:  len(st.items),
		Evictions: st.evictions,
		Expired:   st.expired,
	}
}

func (st *SessionStore) isExpired(item *storeItem) bool {
	return st.now().Sub(item.lastAccess) > st.idleTTL
}

// removeItem must be called with the lock held
func (st *SessionStore) removeItem(item *storeItem) {
	if item.lruElement != nil {
		st.lruList.Remove(item.lruElement)
	}
	delete(st.items, item.session.ID())
}

func notFound(id session.ID) error {
	return pkgerrors.NewNotFoundError("session").WithDetail("session_id", id.String())
}
