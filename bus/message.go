package bus

import (
	"fmt"

	"github.com/shawwn/disruption/errs"
	"github.com/shawwn/disruption/ring"
)

// Handle identifies a claimed-but-not-yet-published region of the
// caller's own arena — the offset Claim bump-allocated. It is only
// ever valid as an argument to the same Bus's Publish.
type Handle int64

// Message is a delivered message's 1-based wire identifier
// (disruptorMsg): sequence + 1. Zero means "no message" — Recv returns
// it to signal an empty bus, and it is never a valid argument to an
// accessor.
type Message int64

// None is the sentinel "no message available" value.
const None Message = 0

// Claim bump-allocates size bytes in the caller's own payload arena and
// returns a Handle to write into. It never blocks and never touches
// shared ring state; it fails (ok == false) only when the arena cannot
// hold size more bytes, in which case no slot is claimed and no arena
// state changes.
func (b *Bus) Claim(size int64) (Handle, bool) {
	h, ok := b.arenas[b.id].Claim(size)
	return Handle(h), ok
}

// Bytes returns the mutable byte range a successful Claim reserved, for
// the caller to write payload data into before Publish.
func (b *Bus) Bytes(h Handle, size int64) []byte {
	return b.arenas[b.id].Bytes(int64(h), size)
}

// Publish claims a globally unique sequence number, waits for the
// slowest consumer to have read far enough that claiming it cannot
// overwrite unread data, writes the slot descriptor, waits for the
// immediately preceding sequence to publish, and releases this
// sequence as the new publish cursor. It always returns true — the
// only way publish fails is by never returning (backpressure with no
// consumer progress), which is a liveness property the protocol makes
// no promises about bounding.
func (b *Bus) Publish(h Handle) bool {
	self := b.arenas[b.id]
	offset := self.Offset(int64(h))
	size := self.Tail() - int64(h)

	seq := ring.ClaimSequence(b.ring)
	ring.AwaitCapacity(b.ring, seq, b.count, b.id)
	ring.WriteSlot(b.ring, seq, int64(b.id), offset, size, tick())
	ring.AwaitPublishOrder(b.ring, seq)
	ring.CommitPublish(b.ring, seq)
	return true
}

// Send is a convenience wrapper: Claim(len(data)) followed by a copy
// and Publish. It returns false, with no slot published, if the arena
// is full.
func (b *Bus) Send(data []byte) bool {
	h, ok := b.Claim(int64(len(data)))
	if !ok {
		return false
	}
	copy(b.Bytes(h, int64(len(data))), data)
	return b.Publish(h)
}

// Printf formats into a scratch buffer (including the trailing NUL, to
// match the original C convenience helper's contract) and sends it.
// This is a thin shim over Claim/Publish; it is not part of the
// protocol.
func (b *Bus) Printf(format string, args ...any) bool {
	msg := fmt.Appendf(nil, format, args...)
	msg = append(msg, 0)
	return b.Send(msg)
}

// Recv returns the next not-yet-delivered message, or None if the bus
// has nothing new. It never blocks. Internally it caches the half-open
// range of message ids publish has already made visible
// (read_start, read_end], handing them out one at a time and only
// publishing progress on its own read cursor once that range is fully
// drained — so other producers only see backpressure relief after the
// caller has actually consumed every message in the batch it cached.
// read_start and read_end, like the publish and read cursors
// themselves, are counts (read_end equal to the publish cursor's
// value at the moment the batch was opened), not 0-based sequence
// numbers.
func (b *Bus) Recv() Message {
	if b.readEnd > 0 {
		if b.readStart < b.readEnd {
			b.readStart++
			return Message(b.readStart)
		}
		ring.AdvanceReadCursor(b.ring, b.id, b.readEnd)
		b.readStart, b.readEnd = 0, 0
	}

	published := b.ring.Publish.Load()
	cur := ring.ReadCursor(b.ring, b.id)
	if cur >= published {
		return None
	}
	b.readStart = cur + 1
	b.readEnd = published
	return Message(b.readStart)
}

func (b *Bus) slot(msg Message) *ring.SlotDescriptor {
	seq := int64(msg) - 1
	return &b.ring.Slots[ring.SlotIndex(seq)]
}

// validSenderID range-checks a slot's sender_id. An out-of-range value
// means the ring is corrupt or a programming error let a bad write
// through — the spec gives this no recovery path short of wipe and
// rejoin, so it panics rather than returning an error.
func (b *Bus) validSenderID(slot *ring.SlotDescriptor) int {
	if slot.SenderID < 0 || int(slot.SenderID) >= len(b.arenas) {
		panic(&errs.PublishInvariantViolation{
			Reason: fmt.Sprintf("slot sender_id %d out of range [0,%d)", slot.SenderID, len(b.arenas)),
		})
	}
	return int(slot.SenderID)
}

// Data resolves a delivered message's payload bytes in its sender's
// arena.
func (b *Bus) Data(msg Message) []byte {
	slot := b.slot(msg)
	senderID := b.validSenderID(slot)
	return b.arenas[senderID].Data(slot.Offset, slot.Size)
}

// Size returns a delivered message's payload length in bytes.
func (b *Bus) Size(msg Message) int64 { return b.slot(msg).Size }

// Sequence returns a delivered message's zero-based sequence number.
func (b *Bus) Sequence(msg Message) int64 { return int64(msg) - 1 }

// Timestamp returns a delivered message's free-running publish tick.
func (b *Bus) Timestamp(msg Message) int64 { return b.slot(msg).Timestamp }

// SenderID returns a delivered message's sender's participant id.
func (b *Bus) SenderID(msg Message) int64 { return b.slot(msg).SenderID }

// Sender returns a delivered message's sender's username.
func (b *Bus) Sender(msg Message) string {
	slot := b.slot(msg)
	senderID := b.validSenderID(slot)
	return b.names[senderID]
}
