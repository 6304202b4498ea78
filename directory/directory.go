// Package directory resolves and persists the durable
// (address, username) -> participant_id mapping and the participant
// census for a bus address. Everything else lives in shared memory,
// which outlasts the last participant's detach but is removed by Wipe
// and does not survive a reboot of the host; the directory keys stay
// until Wipe deletes them.
package directory

import (
	"context"
	"fmt"
)

// Directory is the abstract key-value contract the ring protocol is
// built against (spec §4.1). Production code talks to Redis through
// RedisDirectory; tests substitute a miniredis-backed instance of the
// same type, or any other Directory implementation.
type Directory interface {
	// ResolveOrAssign returns username's participant id for address,
	// assigning and persisting a new one (via an atomic counter
	// increment) on first join. created reports whether this call
	// assigned a new id.
	ResolveOrAssign(ctx context.Context, address, username string) (id int, created bool, err error)

	// Count returns the current participant count for address. It
	// fails if the count is missing or <= 0.
	Count(ctx context.Context, address string) (int, error)

	// Username returns the username registered for id on address.
	Username(ctx context.Context, address string, id int) (string, error)

	// Wipe deletes every directory key for address. Best-effort:
	// missing keys are not an error.
	Wipe(ctx context.Context, address string) error
}

// Key-naming helpers. These are the wire names of spec §6 and must
// never change independent of the protocol version.
func countKey(address string) string {
	return fmt.Sprintf("disruptor:%s:connectionsCount", address)
}

func idKey(address, username string) string {
	return fmt.Sprintf("disruptor:%s:connections:%s:id", address, username)
}

func usernameKey(address string, id int) string {
	return fmt.Sprintf("disruptor:%s:%d:username", address, id)
}

// keyPrefix is the prefix every key for address shares, used by Wipe's
// scan.
func keyPrefix(address string) string {
	return fmt.Sprintf("disruptor:%s:*", address)
}
