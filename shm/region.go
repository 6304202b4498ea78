// Package shm is the platform shared-memory provider the ring protocol
// is built on: named POSIX regions under /dev/shm, opened, sized,
// mapped, and unlinked independently of their contents. Callers give it
// a size and a name; it hands back a byte-addressable Region. Nothing
// in this package knows about cursors, slots, or arenas — that
// knowledge lives in package ring and package arena.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mode controls create-vs-open semantics for Open, mirroring the three
// POSIX shm_open dispositions the spec requires.
type Mode int

const (
	// Default creates the region if it does not exist, opens it
	// otherwise.
	Default Mode = iota
	// MustCreate fails if the region already exists.
	MustCreate
	// MustNotCreate fails if the region does not already exist.
	MustNotCreate
)

const dir = "/dev/shm/"

// Region is an open mapping of a named shared-memory segment.
type Region struct {
	name string
	file *os.File
	data []byte
	size int64
}

// path applies the provider's single-separator name prefix. Names must
// not themselves contain path separators.
func path(name string) string {
	return dir + name
}

// Open creates or opens a shared-memory region of at least size bytes
// under name and maps it read-write. If the platform's block-size
// floor exceeds size, the underlying file (and therefore Size()) is
// rounded up to that floor; the mapping is never smaller than what the
// caller asked for.
func Open(size int64, mode Mode, name string) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: open %q: size must be positive, got %d", name, size)
	}

	flags := os.O_RDWR
	switch mode {
	case MustCreate:
		flags |= os.O_CREATE | os.O_EXCL
	case MustNotCreate:
		// no O_CREATE
	default:
		flags |= os.O_CREATE
	}

	p := path(name)
	f, err := os.OpenFile(p, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", name, err)
	}

	actual, err := sizeRegion(f, size)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: size %q: %w", name, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(actual), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %q: %w", name, err)
	}

	return &Region{name: name, file: f, data: data, size: actual}, nil
}

// OpenExisting maps a region whose size was already established by its
// creator — the case of mapping a peer's payload arena during join,
// where the size is whatever that peer originally chose and is not
// known up front. It fails if name does not already exist.
func OpenExisting(name string) (*Region, error) {
	p := path(name)
	f, err := os.OpenFile(p, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %q: %w", name, err)
	}
	size := st.Size()
	if size <= 0 {
		f.Close()
		return nil, fmt.Errorf("shm: open %q: empty region", name)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %q: %w", name, err)
	}
	return &Region{name: name, file: f, data: data, size: size}, nil
}

// sizeRegion truncates f up to at least want bytes, rounded to the
// platform page size, and returns the actual size.
func sizeRegion(f *os.File, want int64) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if st.Size() >= want {
		return st.Size(), nil
	}
	pageSize := int64(unix.Getpagesize())
	actual := ((want + pageSize - 1) / pageSize) * pageSize
	if err := f.Truncate(actual); err != nil {
		return 0, err
	}
	return actual, nil
}

// Close unmaps the region and closes its descriptor. It does not
// unlink the backing name — other participants may still have it
// mapped.
func (r *Region) Close() error {
	if r == nil || r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Size returns the mapped region's actual byte size (which may exceed
// what the caller requested, per the block-size floor).
func (r *Region) Size() int64 { return r.size }

// Bytes returns the raw mapped bytes backing the region. Callers build
// typed views (Cursor, SlotDescriptor, ...) over this slice; the
// provider itself is untyped.
func (r *Region) Bytes() []byte { return r.data }

// Unlink removes name from the shared-memory namespace. Existing
// mappings opened before the unlink remain valid until closed. Missing
// names are not an error — wipe is best-effort.
func Unlink(name string) error {
	if err := unix.Unlink(path(name)); err != nil && err != unix.ENOENT {
		return fmt.Errorf("shm: unlink %q: %w", name, err)
	}
	return nil
}
