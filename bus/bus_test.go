package bus

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shawwn/disruption/directory"
	"github.com/shawwn/disruption/ring"
)

var testAddressSeq atomic.Int64

func newTestAddress(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("t-%d-%d", os.Getpid(), testAddressSeq.Add(1))
}

func joinTest(t *testing.T, ctx context.Context, dir directory.Directory, address, username string, sendBufferSize int64) *Bus {
	t.Helper()
	b, err := Join(ctx, dir, address, username, sendBufferSize)
	require.NoError(t, err)
	t.Cleanup(func() { b.Leave() })
	return b
}

// TestSingleProducerSingleConsumerDeliversOneMessage grounds scenario
// S1: the simplest possible bus, one message end to end.
func TestSingleProducerSingleConsumerDeliversOneMessage(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewTestDirectory(t)
	address := newTestAddress(t)
	t.Cleanup(func() { Wipe(ctx, dir, address) })

	producer := joinTest(t, ctx, dir, address, "producer", 4096)
	consumer := joinTest(t, ctx, dir, address, "consumer", 4096)

	require.True(t, producer.Send([]byte("hello")))

	msg := consumer.Recv()
	require.NotEqual(t, None, msg)
	require.Equal(t, []byte("hello"), consumer.Data(msg))
	require.EqualValues(t, 0, consumer.Sequence(msg))
	require.Equal(t, "producer", consumer.Sender(msg))
	require.Equal(t, None, consumer.Recv())
}

// TestTwoProducersPreserveGlobalPublishOrder grounds scenario S2: with
// two concurrent producers, the consumer sees every message exactly
// once, in strictly increasing sequence order.
func TestTwoProducersPreserveGlobalPublishOrder(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewTestDirectory(t)
	address := newTestAddress(t)
	t.Cleanup(func() { Wipe(ctx, dir, address) })

	producerA := joinTest(t, ctx, dir, address, "alice", 65536)
	producerB := joinTest(t, ctx, dir, address, "bob", 65536)
	consumer := joinTest(t, ctx, dir, address, "consumer", 4096)

	const perProducer = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			require.True(t, producerA.Send([]byte(fmt.Sprintf("a%d", i))))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			require.True(t, producerB.Send([]byte(fmt.Sprintf("b%d", i))))
		}
	}()
	wg.Wait()

	var lastSeq int64 = -1
	seen := make(map[string]int)
	for i := 0; i < perProducer*2; i++ {
		msg := consumer.Recv()
		require.NotEqual(t, None, msg, "message %d of %d missing", i, perProducer*2)
		seq := consumer.Sequence(msg)
		require.Greater(t, seq, lastSeq, "publish order must be strictly increasing")
		lastSeq = seq
		seen[consumer.Sender(msg)]++
	}
	require.Equal(t, None, consumer.Recv())
	require.Equal(t, perProducer, seen["alice"])
	require.Equal(t, perProducer, seen["bob"])
}

// TestSendFailsWhenArenaIsFull grounds scenario S3: once a producer's
// arena cannot hold another claim, Send reports failure instead of
// overwriting or blocking.
func TestSendFailsWhenArenaIsFull(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewTestDirectory(t)
	address := newTestAddress(t)
	t.Cleanup(func() { Wipe(ctx, dir, address) })

	producer := joinTest(t, ctx, dir, address, "producer", 4096)
	joinTest(t, ctx, dir, address, "consumer", 4096)

	payload := make([]byte, 4096)
	require.True(t, producer.Send(payload), "a claim exactly filling the arena must still succeed")
	require.False(t, producer.Send([]byte("x")), "the arena has no room left for a second message")
}

// TestRejoinPreservesParticipantID grounds scenario S6: leaving and
// rejoining under the same username on the same address returns the
// same participant id, not a freshly assigned one.
func TestRejoinPreservesParticipantID(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewTestDirectory(t)
	address := newTestAddress(t)
	t.Cleanup(func() { Wipe(ctx, dir, address) })

	first, err := Join(ctx, dir, address, "alice", 4096)
	require.NoError(t, err)
	firstID := first.ID()
	require.NoError(t, first.Leave())

	second, err := Join(ctx, dir, address, "alice", 4096)
	require.NoError(t, err)
	defer second.Leave()

	require.Equal(t, firstID, second.ID())
}

// TestSenderIdentityRoundTripsThroughTheDirectory grounds testable
// property #6: a delivered message's sender name always matches what
// the directory has on record for that sender's id.
func TestSenderIdentityRoundTripsThroughTheDirectory(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewTestDirectory(t)
	address := newTestAddress(t)
	t.Cleanup(func() { Wipe(ctx, dir, address) })

	producer := joinTest(t, ctx, dir, address, "alice", 4096)
	consumer := joinTest(t, ctx, dir, address, "consumer", 4096)

	require.True(t, producer.Send([]byte("hi")))
	msg := consumer.Recv()
	require.NotEqual(t, None, msg)

	expected, err := dir.Username(ctx, address, int(consumer.SenderID(msg)))
	require.NoError(t, err)
	require.Equal(t, expected, consumer.Sender(msg))
}

// TestWraparoundSurvivesMoreMessagesThanRingSlots grounds scenario S4:
// publishing past MaxSlots messages must keep working as long as the
// consumer keeps draining, since the ring reuses slot storage but never
// reuses a sequence number.
func TestWraparoundSurvivesMoreMessagesThanRingSlots(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewTestDirectory(t)
	address := newTestAddress(t)
	t.Cleanup(func() { Wipe(ctx, dir, address) })

	const total = ring.MaxSlots + 1
	// The consumer must join first: a participant's count of fellow
	// participants (used to compute the slowest read cursor for
	// backpressure) is captured once at join time, so the producer
	// needs the consumer already registered before it joins in order
	// for backpressure against the consumer's cursor to engage.
	consumer := joinTest(t, ctx, dir, address, "consumer", 4096)
	producer := joinTest(t, ctx, dir, address, "producer", total)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < total; i++ {
			if !producer.Send([]byte{byte(i)}) {
				done <- fmt.Errorf("send %d failed", i)
				return
			}
		}
		done <- nil
	}()

	received := 0
	for received < total {
		msg := consumer.Recv()
		if msg == None {
			continue
		}
		require.EqualValues(t, received, consumer.Sequence(msg))
		received++
	}
	require.NoError(t, <-done)
}
