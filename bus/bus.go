// Package bus wires package directory, package shm, package arena, and
// package ring together into the participant-facing API the spec
// describes in §4.3–§4.8: Join, Leave, Claim, Publish, Recv, the
// message accessors, and Wipe. It is the only package a caller outside
// this module needs to import to use the bus.
package bus

import (
	"context"
	"unsafe"

	gethlog "github.com/ethereum/go-ethereum/log"
	"golang.org/x/sys/unix"

	"github.com/shawwn/disruption/arena"
	"github.com/shawwn/disruption/directory"
	"github.com/shawwn/disruption/errs"
	"github.com/shawwn/disruption/ring"
	"github.com/shawwn/disruption/shm"
)

var logger = gethlog.New("module", "bus")

// Bus is one participant's joined handle onto a named address. It owns
// every shared-memory mapping the participant holds and the private
// (per-instance, not shared) read-cursor cache used by Recv.
type Bus struct {
	address string
	id      int
	count   int

	directory directory.Directory

	headerRegion *shm.Region
	ringRegion   *shm.Region
	ring         *ring.RingBuffer

	arenas       []*arena.Arena
	arenaRegions []*shm.Region
	names        []string

	readStart, readEnd int64
}

// ID returns the caller's own participant id.
func (b *Bus) ID() int { return b.id }

// Address returns the bus address this handle joined.
func (b *Bus) Address() string { return b.address }

// Join validates address and username, resolves (or assigns) the
// caller's participant id through dir, opens the shared header and
// ring-buffer regions, creates the caller's own payload arena on first
// join, and maps every existing peer's arena read-write (nothing in
// this package prevents a caller from writing to a peer's mapping, but
// the protocol never does). Any failure unwinds every mapping made so
// far, in reverse order, before returning.
func Join(ctx context.Context, dir directory.Directory, address, username string, sendBufferSize int64) (*Bus, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	id, created, err := dir.ResolveOrAssign(ctx, address, username)
	if err != nil {
		logger.Error("join failed: directory resolve", "address", address, "username", username, "err", err)
		return nil, err
	}

	count, err := dir.Count(ctx, address)
	if err != nil {
		logger.Error("join failed: directory count", "address", address, "err", err)
		return nil, err
	}

	var opened []*shm.Region
	abort := func(err error) (*Bus, error) {
		for i := len(opened) - 1; i >= 0; i-- {
			opened[i].Close()
		}
		logger.Error("join failed", "address", address, "username", username, "err", err)
		return nil, err
	}

	headerRegion, err := shm.Open(int64(unsafe.Sizeof(ring.Header{})), shm.Default, ring.HeaderRegionName(address))
	if err != nil {
		return abort(errs.Wrap(errs.KindShm, "join.header", address, err))
	}
	opened = append(opened, headerRegion)

	ringRegion, err := shm.Open(int64(unsafe.Sizeof(ring.RingBuffer{})), shm.Default, ring.RingRegionName(address))
	if err != nil {
		return abort(errs.Wrap(errs.KindShm, "join.ring", address, err))
	}
	opened = append(opened, ringRegion)
	rb := (*ring.RingBuffer)(unsafe.Pointer(&ringRegion.Bytes()[0]))

	if created {
		ownRegion, err := shm.Open(sendBufferSize, shm.MustCreate, ring.ArenaRegionName(address, id))
		if err != nil {
			return abort(errs.Wrap(errs.KindShm, "join.arena.create", address, err))
		}
		// The spec creates the arena only to establish it in the
		// namespace, then closes the create handle; the loop below
		// reopens it (along with every peer's) uniformly.
		if err := ownRegion.Close(); err != nil {
			return abort(errs.Wrap(errs.KindShm, "join.arena.create", address, err))
		}
	}

	arenas := make([]*arena.Arena, count)
	arenaRegions := make([]*shm.Region, count)
	names := make([]string, count)
	for i := 0; i < count; i++ {
		region, err := shm.OpenExisting(ring.ArenaRegionName(address, i))
		if err != nil {
			return abort(errs.Wrap(errs.KindMapping, "join.arena.map", address, err))
		}
		opened = append(opened, region)

		name, err := dir.Username(ctx, address, i)
		if err != nil {
			return abort(errs.Wrap(errs.KindMapping, "join.arena.map", address, err))
		}

		arenas[i] = arena.Open(region)
		arenaRegions[i] = region
		names[i] = name
	}

	b := &Bus{
		address:      address,
		id:           id,
		count:        count,
		directory:    dir,
		headerRegion: headerRegion,
		ringRegion:   ringRegion,
		ring:         rb,
		arenas:       arenas,
		arenaRegions: arenaRegions,
		names:        names,
	}

	logger.Info("joined bus", "address", address, "username", username, "id", id, "created", created, "participants", count)
	return b, nil
}

// Leave unmaps every arena and closes the ring-buffer and header
// regions. No cursor updates happen during leave — a participant that
// leaves mid-drain simply stops advancing its read cursor where it
// was.
func (b *Bus) Leave() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, region := range b.arenaRegions {
		record(region.Close())
	}
	record(b.ringRegion.Close())
	record(b.headerRegion.Close())

	logger.Info("left bus", "address", b.address, "id", b.id)
	return firstErr
}

// tick is the free-running monotonic clock the spec asks for: any
// monotonic source is binary-compatible, since a slot's timestamp is
// opaque to consumers (spec §4.5 note, §9).
func tick() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Nano()
}

// Wipe deletes address's directory entries and unlinks its header,
// ring-buffer, and every possible arena region. It is best-effort —
// missing keys or regions are not errors — and does not coordinate
// with live participants; callers must ensure none are joined.
func Wipe(ctx context.Context, dir directory.Directory, address string) error {
	if err := dir.Wipe(ctx, address); err != nil {
		logger.Warn("wipe: directory", "address", address, "err", err)
	}
	if err := shm.Unlink(ring.HeaderRegionName(address)); err != nil {
		logger.Warn("wipe: header", "address", address, "err", err)
	}
	if err := shm.Unlink(ring.RingRegionName(address)); err != nil {
		logger.Warn("wipe: ring", "address", address, "err", err)
	}
	for i := 0; i < ring.MaxConnections; i++ {
		_ = shm.Unlink(ring.ArenaRegionName(address, i))
	}
	logger.Info("wiped bus", "address", address)
	return nil
}
