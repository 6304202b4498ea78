// Package arena implements the per-participant payload arena: a
// contiguous shared-memory byte buffer the owning sender bump-allocates
// into with plain pointer arithmetic (no atomics, no syscalls) and
// every other participant maps read-only to resolve (sender_id, offset)
// pairs published in a slot descriptor.
//
// The allocation strategy is adapted from paultag-go-diskring's
// head/tail bookkeeping, but an arena is append-only within a session
// (no wraparound, no reclaiming the head) per the spec's arena
// invariant — claim simply fails once the tail would run past the end.
package arena

import "github.com/shawwn/disruption/shm"

// Arena is one participant's outbound payload buffer. The owner holds
// it read-write; every other participant opens the same region
// read-only (the mapping itself doesn't enforce that — nothing in this
// package ever exposes a mutable view of a peer's arena to callers
// that shouldn't have one).
type Arena struct {
	region *shm.Region
	start  int64
	end    int64
	tail   int64 // local to the owner; never read cross-process
}

// Open wraps an already-opened shared-memory region as an arena. The
// region's full mapped byte range [0, region.Size()) becomes
// [start, end).
func Open(region *shm.Region) *Arena {
	size := region.Size()
	return &Arena{region: region, start: 0, end: size, tail: 0}
}

// Claim bump-allocates size bytes for the caller to write into and
// returns the handle (byte offset from the arena's start) at which to
// write. It fails — returning ok == false — if the arena does not have
// size bytes left; no partial claim is ever made, and the arena's tail
// is left unchanged on failure.
func (a *Arena) Claim(size int64) (handle int64, ok bool) {
	if a.tail+size > a.end {
		return 0, false
	}
	handle = a.tail
	a.tail += size
	return handle, true
}

// Bytes returns a mutable view into [offset, offset+size) for the
// owner to write payload bytes into after a successful Claim.
func (a *Arena) Bytes(offset, size int64) []byte {
	return a.region.Bytes()[offset : offset+size]
}

// Tail returns the arena's current bump-allocation offset — callers
// use this to compute a slot's published size as "bytes written since
// the matching claim" (spec §4.5 step 3).
func (a *Arena) Tail() int64 { return a.tail }

// Offset converts a handle (as returned by Claim) back to an arena
// offset relative to start, which is what gets published in a slot
// descriptor.
func (a *Arena) Offset(handle int64) int64 { return handle - a.start }

// Region returns the underlying shared-memory region, e.g. for Close.
func (a *Arena) Region() *shm.Region { return a.region }

// Data returns a read-only view of [offset, offset+size) — how a peer
// resolves a delivered message's payload bytes from this arena.
func (a *Arena) Data(offset, size int64) []byte {
	return a.region.Bytes()[offset : offset+size]
}
