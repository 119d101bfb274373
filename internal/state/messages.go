package state

import (
	"sync"

	"github.com/linguaroom/linguaroom/internal/domain"
)

// MessageLog is the append-only message stream of one room session.
// Order is arrival order, not server timestamp order. There is no
// deduplication by message id: a message redelivered after a reconnect
// appears twice. The resync path replaces the log wholesale instead of
// replaying, which is what keeps duplicates rare in practice.
type MessageLog struct {
	mu   sync.RWMutex
	msgs []domain.ChatMessage
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(msg domain.ChatMessage) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

// Reset replaces the whole log from a REST history snapshot.
func (l *MessageLog) Reset(msgs []domain.ChatMessage) {
	l.mu.Lock()
	l.msgs = append([]domain.ChatMessage(nil), msgs...)
	l.mu.Unlock()
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

func (l *MessageLog) Snapshot() []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.ChatMessage(nil), l.msgs...)
}
