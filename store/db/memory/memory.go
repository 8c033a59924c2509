// Package memory is the in-process session history driver. History is lost on
// restart; sessions idle for longer than the configured timeout are dropped.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/store"
)

type sessionData struct {
	lastAccess time.Time
	turns      []*store.ConversationTurn
}

// DB keeps session histories in a map guarded by a mutex.
type DB struct {
	ctx         context.Context
	cancel      context.CancelFunc
	sessions    map[string]*sessionData
	idleTimeout time.Duration
	wg          sync.WaitGroup
	mu          sync.RWMutex
}

// NewDB creates the memory driver and starts its cleanup loop.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	idle := profile.SessionIdleTimeout
	if idle <= 0 {
		idle = time.Hour
	}
	return newDB(idle, 10*time.Minute), nil
}

func newDB(idleTimeout, cleanupInterval time.Duration) *DB {
	ctx, cancel := context.WithCancel(context.Background())
	d := &DB{
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*sessionData),
		idleTimeout: idleTimeout,
	}
	d.wg.Add(1)
	go d.cleanupLoop(cleanupInterval)
	return d
}

func (d *DB) Migrate(context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
func (d *DB) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}

func (d *DB) AppendConversationTurn(_ context.Context, create *store.AppendConversationTurn) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, exists := d.sessions[create.SessionID]
	if !exists {
		session = &sessionData{}
		d.sessions[create.SessionID] = session
	}
	session.turns = append(session.turns, create.NewTurn())
	session.lastAccess = time.Now()

	if create.Limit > 0 && len(session.turns) > create.Limit {
		session.turns = session.turns[len(session.turns)-create.Limit:]
	}
	return nil
}

func (d *DB) ListConversationTurns(_ context.Context, find *store.FindConversationTurns) ([]*store.ConversationTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, exists := d.sessions[find.SessionID]
	if !exists {
		return []*store.ConversationTurn{}, nil
	}
	session.lastAccess = time.Now()

	turns := session.turns
	if find.Limit > 0 && find.Limit < len(turns) {
		turns = turns[len(turns)-find.Limit:]
	}
	result := make([]*store.ConversationTurn, len(turns))
	for i, t := range turns {
		clone := *t
		result[i] = &clone
	}
	return result, nil
}

func (d *DB) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, del.SessionID)
	return nil
}

// SessionCount returns the number of live sessions.
func (d *DB) SessionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

func (d *DB) cleanupLoop(interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.cleanupStaleSessions(time.Now())
		}
	}
}

func (d *DB) cleanupStaleSessions(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cleaned := 0
	for id, session := range d.sessions {
		if now.Sub(session.lastAccess) > d.idleTimeout {
			delete(d.sessions, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("memory store: cleaned stale sessions", "count", cleaned, "remaining", len(d.sessions))
	}
	return cleaned
}
