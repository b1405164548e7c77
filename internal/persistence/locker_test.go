package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*TicketLocker, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	locker := NewTicketLocker(client, 1500*time.Millisecond)
	locker.newToken = func() string { return "token-1" }
	return locker, mock
}

func TestLockAndRelease(t *testing.T) {
	locker, mock := newTestLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("ticket-rules:lock:T-1", "token-1", 1500*time.Millisecond).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"ticket-rules:lock:T-1"}, "token-1").SetVal(int64(1))

	unlock, err := locker.Lock(ctx, "T-1")
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockHeld(t *testing.T) {
	locker, mock := newTestLocker(t)

	mock.ExpectSetNX("ticket-rules:lock:T-1", "token-1", 1500*time.Millisecond).SetVal(false)

	unlock, err := locker.Lock(context.Background(), "T-1")
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Nil(t, unlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRedisError(t *testing.T) {
	locker, mock := newTestLocker(t)

	mock.ExpectSetNX("ticket-rules:lock:T-1", "token-1", 1500*time.Millisecond).SetErr(errors.New("connection refused"))

	_, err := locker.Lock(context.Background(), "T-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestReleaseAfterExpiry(t *testing.T) {
	locker, mock := newTestLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("ticket-rules:lock:T-1", "token-1", 1500*time.Millisecond).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"ticket-rules:lock:T-1"}, "token-1").SetVal(int64(0))

	unlock, err := locker.Lock(ctx, "T-1")
	require.NoError(t, err)
	assert.ErrorIs(t, unlock(ctx), ErrLockLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}
