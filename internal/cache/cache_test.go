package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTokens(tokens ...string) func() string {
	i := 0
	return func() string {
		t := tokens[i]
		i++
		return t
	}
}

func TestLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db)
	store.token = fixedTokens("tok-1")
	ctx := context.Background()
	key := LockKey("mark-complete", uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	assert.Equal(t, "lock:mark-complete:11111111-1111-1111-1111-111111111111", key)

	mock.ExpectSetNX(key, "tok-1", DefaultLockTTL).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "tok-1").SetVal(int64(1))

	release, err := store.Lock(ctx, key, DefaultLockTTL)
	require.NoError(t, err)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockReleaseLeavesNextHolder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db)
	store.token = fixedTokens("tok-stale", "tok-next")
	key := LockKey("release", uuid.New())

	mock.ExpectSetNX(key, "tok-stale", DefaultLockTTL).SetVal(true)
	// the stale holder's TTL lapsed and the next caller took the key
	mock.ExpectSetNX(key, "tok-next", DefaultLockTTL).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "tok-stale").SetVal(int64(0))

	releaseStale, err := store.Lock(context.Background(), key, DefaultLockTTL)
	require.NoError(t, err)
	_, err = store.Lock(context.Background(), key, DefaultLockTTL)
	require.NoError(t, err)
	releaseStale()

	// no DEL was issued; the release only ran the token-guarded script
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTokensDifferPerCall(t *testing.T) {
	store := New(nil)
	assert.NotEqual(t, store.token(), store.token())
}

func TestLockHeldElsewhere(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db)
	store.token = fixedTokens("tok-2")
	key := LockKey("release", uuid.New())

	mock.ExpectSetNX(key, "tok-2", DefaultLockTTL).SetVal(false)

	_, err := store.Lock(context.Background(), key, DefaultLockTTL)
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db)
	store.token = fixedTokens("tok-3")
	key := LockKey("release", uuid.New())

	mock.ExpectSetNX(key, "tok-3", DefaultLockTTL).SetErr(errors.New("connection refused"))

	_, err := store.Lock(context.Background(), key, DefaultLockTTL)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestGetJSON(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db)
	ctx := context.Background()

	type balance struct {
		Amount string `json:"amount"`
	}

	mock.ExpectGet("wallet:a").RedisNil()
	mock.ExpectGet("wallet:b").SetVal(`{"amount":"5000"}`)

	var got balance
	hit, err := store.GetJSON(ctx, "wallet:a", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = store.GetJSON(ctx, "wallet:b", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "5000", got.Amount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetJSONAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db)
	ctx := context.Background()

	mock.ExpectSet("wallet:c", []byte(`{"amount":"10"}`), WalletBalanceTTL).SetVal("OK")
	mock.ExpectDel("wallet:c").SetVal(1)

	require.NoError(t, store.SetJSON(ctx, "wallet:c", map[string]string{"amount": "10"}, WalletBalanceTTL))
	require.NoError(t, store.Delete(ctx, "wallet:c"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *Store
	release, err := store.Lock(context.Background(), "k", DefaultLockTTL)
	require.NoError(t, err)
	release()

	hit, err := store.GetJSON(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
}
