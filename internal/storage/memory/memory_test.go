package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/marketplace/internal/domain/account"
)

func TestLocker_SingleWinner(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := l.TryLock(ctx, "checkout:c1")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestLocker_Release(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, unlock(ctx))

	unlock2, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	// A second release of the first lock must not free the new holder.
	require.NoError(t, unlock(ctx))
	_, ok, err = l.TryLock(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, unlock2(ctx))
}

func TestAuditLog_ListNewestFirst(t *testing.T) {
	a := NewAuditLog()
	ctx := context.Background()

	for _, to := range []account.VendorStatus{account.VendorApproved, account.VendorRejected, account.VendorApproved} {
		require.NoError(t, a.Record(ctx, &account.AuditEntry{VendorID: "v1", AdminID: "a1", To: to}))
	}
	require.NoError(t, a.Record(ctx, &account.AuditEntry{VendorID: "v2", To: account.VendorRejected}))

	got, err := a.List(ctx, "v1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, account.VendorApproved, got[0].To)
	assert.Equal(t, account.VendorRejected, got[1].To)
	assert.NotEmpty(t, got[0].ID)

	all, err := a.List(ctx, "v2", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
