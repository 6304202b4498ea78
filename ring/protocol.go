package ring

import (
	"math"
	"runtime"
)

// MinReadCursor returns the minimum read cursor (a count of messages
// consumed, not a sequence number — see ReadCursor) across the first
// count participants, excluding self (a publishing participant never
// waits on its own read cursor — only on the participants that might
// actually still need to read the slot it's about to overwrite). It
// returns +infinity if self is the only participant in range, since
// nobody else can ever fall behind a producer with no peers to wait
// for.
func MinReadCursor(rb *RingBuffer, count int, self int) int64 {
	min := int64(math.MaxInt64)
	for i := 0; i < count; i++ {
		if i == self {
			continue
		}
		if v := rb.Connections[i].ReadCursor.Load(); v < min {
			min = v
		}
	}
	return min
}

// ClaimSequence atomically claims the next sequence number, returning
// the value *before* increment (sequences are numbered from 0). Many
// producers may call this concurrently; each receives a unique
// sequence because the increment is a single atomic fetch-add.
func ClaimSequence(rb *RingBuffer) int64 {
	return rb.Claim.Add(1) - 1
}

// AwaitCapacity spins, cooperatively yielding the scheduler, until
// claiming seq would not overwrite a slot some other participant has
// not yet read. self is the publishing participant's own id, excluded
// from the gating computation (MinReadCursor). This is the
// slowest-consumer backpressure wait: producers block here, never in
// Claim itself.
func AwaitCapacity(rb *RingBuffer, seq int64, count int, self int) {
	wrapPoint := seq + 1 - MaxSlots
	for wrapPoint > MinReadCursor(rb, count, self) {
		runtime.Gosched()
	}
}

// WriteSlot writes a slot descriptor's fields. The caller must publish
// (via CommitPublish) only after this returns, and the descriptor's
// fields must all be written before that release store — that
// ordering, not any lock, is what makes the slot safe to read once
// visible.
func WriteSlot(rb *RingBuffer, seq int64, senderID, offset, size, timestamp int64) {
	slot := &rb.Slots[SlotIndex(seq)]
	slot.SenderID = senderID
	slot.Size = size
	slot.Offset = offset
	slot.Timestamp = timestamp
}

// The publish cursor holds a running count of messages published, not
// a 0-based sequence number: seq's predecessors have all published
// exactly once Publish.Load() == seq, and committing seq makes the
// count seq+1. A freshly mapped region's cursor is zero-valued by the
// platform, and zero is the correct "nothing published yet" count —
// unlike a 0-based "last published sequence" encoding, which would
// need an explicit -1 sentinel no region initializer ever writes.
// Read cursors (see ReadCursor) use the same count convention so Recv
// can compare them directly against the publish cursor.

// AwaitPublishOrder spins until every sequence before seq has already
// been published, enforcing strictly in-order, dense publication even
// though slots are written out of order by concurrent producers.
func AwaitPublishOrder(rb *RingBuffer, seq int64) {
	for rb.Publish.Load() != seq {
		runtime.Gosched()
	}
}

// CommitPublish releases seq+1 as the new publish cursor value (the
// count of messages published through and including seq). Every write
// that happened-before this call (in program order) becomes visible to
// any party that subsequently Loads the publish cursor.
func CommitPublish(rb *RingBuffer, seq int64) {
	rb.Publish.Store(seq + 1)
}

// ReadCursor returns participant id's current read cursor: a count of
// messages that participant has fully consumed, directly comparable to
// the publish cursor.
func ReadCursor(rb *RingBuffer, id int) int64 {
	return rb.Connections[id].ReadCursor.Load()
}

// AdvanceReadCursor publishes a new read-cursor value (a consumed
// count, see ReadCursor) for participant id, clamped to never move
// backwards.
func AdvanceReadCursor(rb *RingBuffer, id int, value int64) {
	cur := &rb.Connections[id].ReadCursor
	for {
		old := cur.Load()
		if value <= old {
			return
		}
		if cur.CompareAndSwap(old, value) {
			return
		}
	}
}
