package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestResolveOrAssignIsIdempotentPerUsername grounds scenario S6: the
// same (address, username) pair always resolves to the same id,
// whether or not the caller has seen it before.
func TestResolveOrAssignIsIdempotentPerUsername(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	id1, created1, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)
	require.True(t, created1)

	id2, created2, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, id1, id2)
}

func TestResolveOrAssignAssignsDistinctIncreasingIDs(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	aliceID, _, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)
	bobID, _, err := d.ResolveOrAssign(ctx, "market-data", "bob")
	require.NoError(t, err)

	require.NotEqual(t, aliceID, bobID)
	require.Equal(t, aliceID+1, bobID)
}

func TestResolveOrAssignIsolatesDistinctAddresses(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	id1, _, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)
	id2, _, err := d.ResolveOrAssign(ctx, "trade-events", "alice")
	require.NoError(t, err)

	require.Equal(t, id1, id2, "the same username on a different address gets its own fresh id sequence")
}

func TestCountFailsWhenMissing(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	_, err := d.Count(ctx, "nobody-has-joined")
	require.Error(t, err)
}

func TestCountReflectsParticipants(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	_, _, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)
	_, _, err = d.ResolveOrAssign(ctx, "market-data", "bob")
	require.NoError(t, err)

	count, err := d.Count(ctx, "market-data")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestUsernameRoundTrips(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	id, _, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)

	name, err := d.Username(ctx, "market-data", id)
	require.NoError(t, err)
	require.Equal(t, "alice", name)
}

func TestWipeRemovesEveryKeyForAddress(t *testing.T) {
	d := NewTestDirectory(t)
	ctx := context.Background()

	_, _, err := d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)
	_, _, err = d.ResolveOrAssign(ctx, "market-data", "bob")
	require.NoError(t, err)
	otherID, _, err := d.ResolveOrAssign(ctx, "trade-events", "alice")
	require.NoError(t, err)

	require.NoError(t, d.Wipe(ctx, "market-data"))

	_, err = d.Count(ctx, "market-data")
	require.Error(t, err, "count must be gone after wipe")

	_, _, err = d.ResolveOrAssign(ctx, "market-data", "alice")
	require.NoError(t, err)

	// A different address's keys must survive the wipe untouched.
	name, err := d.Username(ctx, "trade-events", otherID)
	require.NoError(t, err)
	require.Equal(t, "alice", name)
}

func TestWipeOfUnknownAddressIsNotAnError(t *testing.T) {
	d := NewTestDirectory(t)
	require.NoError(t, d.Wipe(context.Background(), "never-existed"))
}
