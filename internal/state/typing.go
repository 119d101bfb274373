package state

import (
	"sort"
	"sync"
	"time"

	"github.com/linguaroom/linguaroom/internal/domain"
)

// DefaultTypingTimeout clears a typing flag after this much inactivity
// even when the explicit stop-typing event is lost.
const DefaultTypingTimeout = 2 * time.Second

// TypingSet is the derived set of users currently flagged as typing.
// Purely a client-side heuristic: entries expire on a local timer
// independent of server confirmation.
type TypingSet struct {
	mu       sync.Mutex
	timeout  time.Duration
	timers   map[domain.UserID]*time.Timer
	onChange func([]domain.UserID)
}

func NewTypingSet(timeout time.Duration) *TypingSet {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingSet{
		timeout: timeout,
		timers:  make(map[domain.UserID]*time.Timer),
	}
}

// OnChange registers a single consumer notified with a fresh snapshot
// after every set mutation, including timer expiries. Must be set
// before the session starts dispatching.
func (t *TypingSet) OnChange(fn func([]domain.UserID)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// MarkTyping adds or removes a user. A repeated true resets the expiry
// timer rather than stacking a second one.
func (t *TypingSet) MarkTyping(userID domain.UserID, isTyping bool) {
	t.mu.Lock()
	changed := false
	if isTyping {
		if timer, ok := t.timers[userID]; ok {
			timer.Reset(t.timeout)
		} else {
			t.timers[userID] = time.AfterFunc(t.timeout, func() {
				t.expire(userID)
			})
			changed = true
		}
	} else if timer, ok := t.timers[userID]; ok {
		timer.Stop()
		delete(t.timers, userID)
		changed = true
	}
	fn, snap := t.notificationLocked(changed)
	t.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (t *TypingSet) expire(userID domain.UserID) {
	t.mu.Lock()
	_, ok := t.timers[userID]
	if ok {
		delete(t.timers, userID)
	}
	fn, snap := t.notificationLocked(ok)
	t.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (t *TypingSet) notificationLocked(changed bool) (func([]domain.UserID), []domain.UserID) {
	if !changed || t.onChange == nil {
		return nil, nil
	}
	return t.onChange, t.snapshotLocked()
}

func (t *TypingSet) Snapshot() []domain.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *TypingSet) snapshotLocked() []domain.UserID {
	out := make([]domain.UserID, 0, len(t.timers))
	for uid := range t.timers {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stop cancels all pending expiry timers. Called on session teardown.
func (t *TypingSet) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for uid, timer := range t.timers {
		timer.Stop()
		delete(t.timers, uid)
	}
}
