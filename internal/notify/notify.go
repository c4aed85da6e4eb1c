// internal/notify/notify.go
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message for the cashier.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier is fire-and-forget.
type Notifier interface {
	Notify(level Level, message string)
}

// Board keeps notifications until they expire. Expired entries are
// dropped lazily, so posting never blocks on timers.
type Board struct {
	mu     sync.Mutex
	ttl    time.Duration
	limit  int
	items  []Notification
	now    func() time.Time
	logger *zap.Logger
}

func NewBoard(ttl time.Duration, logger *zap.Logger) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{
		ttl:    ttl,
		limit:  32,
		now:    time.Now,
		logger: logger,
	}
}

func (b *Board) Notify(level Level, message string) {
	b.mu.Lock()
	now := b.now()
	b.prune(now)
	b.items = append(b.items, Notification{
		ID:        uuid.New(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	})
	if over := len(b.items) - b.limit; over > 0 {
		b.items = append(b.items[:0], b.items[over:]...)
	}
	b.mu.Unlock()

	b.logger.Debug("notification", zap.String("level", string(level)), zap.String("message", message))
}

// Active returns the notifications that have not yet expired, oldest first.
func (b *Board) Active() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.now())
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Dismiss removes a notification before it expires.
func (b *Board) Dismiss(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.items {
		if n.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Board) prune(now time.Time) {
	kept := b.items[:0]
	for _, n := range b.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	b.items = kept
}
