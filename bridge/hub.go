// Package bridge is an optional, explicitly non-core adapter: it joins
// a bus as a read-only observer and republishes drained messages as
// JSON frames over websocket connections, so a browser dashboard can
// tail a bus without linking against the shared-memory core. Like the
// CLI in cmd/disruptorctl, this is the "deliberately external" surface
// the spec carves the protocol core away from (spec §6).
package bridge

import (
	"context"
	"sync"
	"time"

	gethlog "github.com/ethereum/go-ethereum/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var logger = gethlog.New("module", "bridge")

// writeTimeout bounds how long a single slow dashboard client can hold
// up a broadcast before the hub gives up on it, the same defensive
// per-write deadline the teacher's ipc.Publisher applies to its own
// socket writes.
const writeTimeout = 2 * time.Second

// hub fans a stream of frames out to every currently connected
// websocket client, mirroring ipc.Publisher's
// mutex-protected-connection-plus-retry shape but for one-to-many
// broadcast instead of one reconnecting upstream link.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// broadcast sends frame to every connected client, dropping (and
// closing) any client whose write doesn't complete within
// writeTimeout rather than letting one slow dashboard stall delivery
// to the rest.
func (h *hub) broadcast(ctx context.Context, frame Frame) {
	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, c, frame)
		cancel()
		if err != nil {
			logger.Warn("bridge: dropping slow or closed client", "err", err)
			c.Close(websocket.StatusInternalError, "broadcast failed")
			h.remove(c)
		}
	}
}
