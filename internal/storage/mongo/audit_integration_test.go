//go:build integration

package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/marketplace/internal/domain/account"
)

func TestAuditLog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	client, err := Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	log := NewAuditLog(client, "market_test", "vendor_audit")
	require.NoError(t, log.EnsureIndexes(ctx))
	require.NoError(t, log.Ping(ctx))

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, to := range []account.VendorStatus{account.VendorApproved, account.VendorRejected} {
		require.NoError(t, log.Record(ctx, &account.AuditEntry{
			VendorID:  "v1",
			AdminID:   "a1",
			From:      account.VendorPending,
			To:        to,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := log.List(ctx, "v1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, account.VendorRejected, got[0].To, "newest first")
	assert.Equal(t, "a1", got[1].AdminID)

	none, err := log.List(ctx, "v2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
