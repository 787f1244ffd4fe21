// Package presence tracks which users are currently online. Membership is
// ephemeral process state with a TTL; it does not survive restart and
// carries no cross-user coordination.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fairdice/internal/pubsub"
)

// DefaultTTL is how long an entry stays online without a refresh.
const DefaultTTL = 300 * time.Second

// Event is a join/leave record pushed to the broadcast channel.
type Event struct {
	UserID int64     `json:"user_id"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Tracker holds the online set as {userID: lastSeen}. MarkOnline refreshes
// the expiry; a sweep evicts entries whose TTL elapsed without an explicit
// MarkOffline, which covers abrupt disconnects.
type Tracker struct {
	mu        sync.Mutex
	lastSeen  map[int64]time.Time
	ttl       time.Duration
	publisher pubsub.Publisher

	stopOnce sync.Once
	started  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewTracker creates a tracker with the given TTL. A nil publisher disables
// broadcasting; the membership set still works.
func NewTracker(ttl time.Duration, publisher pubsub.Publisher) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		lastSeen:  make(map[int64]time.Time),
		ttl:       ttl,
		publisher: publisher,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// MarkOnline adds a user to the online set or refreshes their expiry.
// A join event is broadcast only on the transition from offline.
func (t *Tracker) MarkOnline(userID int64) {
	t.mu.Lock()
	_, present := t.lastSeen[userID]
	t.lastSeen[userID] = time.Now()
	t.mu.Unlock()

	if !present {
		t.publish(userID, true)
	}
}

// MarkOffline removes a user immediately.
func (t *Tracker) MarkOffline(userID int64) {
	t.mu.Lock()
	_, present := t.lastSeen[userID]
	delete(t.lastSeen, userID)
	t.mu.Unlock()

	if present {
		t.publish(userID, false)
	}
}

// IsOnline reports whether a user is in the set and not expired.
func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.lastSeen[userID]
	return ok && time.Since(seen) < t.ttl
}

// Count returns the number of unexpired entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, seen := range t.lastSeen {
		if time.Since(seen) < t.ttl {
			n++
		}
	}
	return n
}

// Online returns the user IDs of all unexpired entries.
func (t *Tracker) Online() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int64, 0, len(t.lastSeen))
	for id, seen := range t.lastSeen {
		if time.Since(seen) < t.ttl {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sweep evicts expired entries and broadcasts their leave events. Returns
// the number evicted.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	var evicted []int64
	for id, seen := range t.lastSeen {
		if time.Since(seen) >= t.ttl {
			delete(t.lastSeen, id)
			evicted = append(evicted, id)
		}
	}
	t.mu.Unlock()

	for _, id := range evicted {
		t.publish(id, false)
	}
	return len(evicted)
}

// Start runs the periodic eviction sweep until Stop is called or the
// context is cancelled.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = t.ttl / 10
	}
	t.started = true
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := t.Sweep(); n > 0 {
					log.Debug().Int("evicted", n).Msg("Presence sweep")
				}
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	if t.started {
		<-t.done
	}
}

func (t *Tracker) publish(userID int64, online bool) {
	if t.publisher == nil {
		return
	}
	event := Event{UserID: userID, Online: online, At: time.Now()}
	if err := t.publisher.Publish(context.Background(), pubsub.ChannelPresence, event); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to publish presence event")
	}
}
