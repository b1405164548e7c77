package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned when another request holds the ticket lock.
	ErrLockHeld = errors.New("ticket is locked by another request")
	// ErrLockLost is returned on release when the lock expired before it
	// was released.
	ErrLockLost = errors.New("ticket lock expired before release")
)

const lockKeyPrefix = "ticket-rules:lock:"

// Deletes the key only while it still carries the caller's token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// TicketLocker serializes mutations of a single ticket across processes
// with a Redis SET NX PX lock.
type TicketLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	newToken func() string
}

// NewTicketLocker builds a locker whose locks expire after ttl.
func NewTicketLocker(client redis.Cmdable, ttl time.Duration) *TicketLocker {
	return &TicketLocker{client: client, ttl: ttl, newToken: uuid.NewString}
}

// Lock acquires the lock for ticketID without waiting. It returns
// ErrLockHeld when the lock is taken.
func (l *TicketLocker) Lock(ctx context.Context, ticketID string) (UnlockFunc, error) {
	key := lockKeyPrefix + ticketID
	token := l.newToken()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", ticketID, err)
	}
	if !acquired {
		return nil, ErrLockHeld
	}

	return func(ctx context.Context) error {
		released, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", ticketID, err)
		}
		if released == 0 {
			return ErrLockLost
		}
		return nil
	}, nil
}
