package bridge

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/shawwn/disruption/bus"
	"github.com/shawwn/disruption/directory"
)

// Frame is one delivered message, JSON-encoded for dashboard clients.
// Data round-trips as a base64 string, the standard encoding/json
// behavior for a []byte field.
type Frame struct {
	Sequence  int64  `json:"sequence"`
	Sender    string `json:"sender"`
	SenderID  int64  `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
	Size      int64  `json:"size"`
	Data      []byte `json:"data"`
}

// Server observes a bus address and serves its traffic to websocket
// clients at /feed.
type Server struct {
	listen         string
	address        string
	username       string
	sendBufferSize int64
	dir            directory.Directory

	hub *hub
}

// NewServer builds a bridge Server. username is the identity the
// bridge itself joins the bus as (a read-only observer still needs a
// participant id and its own, unused, arena).
func NewServer(listen, address, username string, sendBufferSize int64, dir directory.Directory) *Server {
	return &Server{
		listen:         listen,
		address:        address,
		username:       username,
		sendBufferSize: sendBufferSize,
		dir:            dir,
		hub:            newHub(),
	}
}

// Run serves the websocket endpoint and the upstream drain loop until
// ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.handleFeed)
	httpServer := &http.Server{Addr: s.listen, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	go func() { errCh <- runConnectionLoop(ctx, "bridge", s.drain) }()

	select {
	case <-ctx.Done():
		httpServer.Close()
		return ctx.Err()
	case err := <-errCh:
		httpServer.Close()
		return err
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("bridge: accept failed", "err", err)
		return
	}
	s.hub.add(c)
	logger.Info("bridge: client connected", "remote", r.RemoteAddr)

	// Hold the connection open; the hub pushes frames to it from the
	// drain loop. We only need to notice when the client goes away.
	ctx := r.Context()
	defer func() {
		s.hub.remove(c)
		c.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

// drain joins the bus as a read-only observer and forwards every
// delivered message to the hub until ctx is canceled. A failed Join
// returns its error so runConnectionLoop retries; once joined, the loop
// does not detect a wiped or recreated bus.
func (s *Server) drain(ctx context.Context) error {
	b, err := bus.Join(ctx, s.dir, s.address, s.username, s.sendBufferSize)
	if err != nil {
		return err
	}
	defer b.Leave()

	logger.Info("bridge: observing", "address", s.address)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg := b.Recv()
		if msg == bus.None {
			time.Sleep(time.Millisecond)
			continue
		}

		s.hub.broadcast(ctx, Frame{
			Sequence:  b.Sequence(msg),
			Sender:    b.Sender(msg),
			SenderID:  b.SenderID(msg),
			Timestamp: b.Timestamp(msg),
			Size:      b.Size(msg),
			Data:      b.Data(msg),
		})
	}
}
