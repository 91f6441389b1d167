package ws

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"realtime-collab/internal/session"
	"realtime-collab/pkg/metrics"
)

// Options tunes the transport side of the hub
type Options struct {
	SendBuffer   int           // per-connection outbound queue
	PingInterval time.Duration // websocket keepalive
	Origins      []string      // accepted Origin patterns
}

type envelopeKind int

const (
	kindAttach envelopeKind = iota
	kindEvent
	kindRelay
)

// envelope is one unit of work for the hub loop
type envelope struct {
	kind    envelopeKind
	conn    *Conn
	from    session.ConnectionID
	event   session.Inbound
	roomID  session.RoomID
	content string
}

// Hub owns the session coordinator. A single goroutine (Run) applies every
// event in arrival order, so the coordinator needs no locking.
type Hub struct {
	log      *slog.Logger
	bus      Bus
	opts     Options
	instance string

	coord *session.Coordinator
	conns map[session.ConnectionID]*Conn // touched only by Run

	inbox    chan envelope
	outbound chan BusMessage
	done     chan struct{}
}

// NewHub sets up the hub; bus may be nil for a single instance
func NewHub(logger *slog.Logger, bus Bus, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if len(opts.Origins) == 0 {
		opts.Origins = []string{"*"}
	}
	return &Hub{
		log:      logger,
		bus:      bus,
		opts:     opts,
		instance: uuid.NewString(),
		coord:    session.NewCoordinator(),
		conns:    map[session.ConnectionID]*Conn{},
		inbox:    make(chan envelope, 1024),
		outbound: make(chan BusMessage, 1024),
		done:     make(chan struct{}),
	}
}

// Run processes hub work until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.bus != nil {
		go h.bus.Subscribe(ctx, h.onRemote)
		go h.publishLoop(ctx)
	}

	for {
		select {
		case env := <-h.inbox:
			h.handle(env)
		case <-ctx.Done():
			for _, c := range h.conns {
				_ = c.Close()
			}
			h.log.Info("hub.stopped", "connections", len(h.conns))
			return
		}
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} { return h.done }

// submit queues work for Run; it gives up once the hub has stopped
func (h *Hub) submit(env envelope) bool {
	select {
	case h.inbox <- env:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) handle(env envelope) {
	switch env.kind {
	case kindAttach:
		h.conns[env.conn.ID()] = env.conn
		metrics.Connections.Set(float64(len(h.conns)))

	case kindEvent:
		if _, live := h.conns[env.from]; !live {
			// Disconnected is terminal: ignore stragglers
			return
		}
		metrics.Events.WithLabelValues(eventKind(env.event)).Inc()
		h.deliver(h.coord.Dispatch(env.from, env.event))

		switch ev := env.event.(type) {
		case session.ContentChange:
			// relay members only
			if slices.Contains(h.coord.RoomsOf(env.from), ev.RoomID) {
				h.relay(ev)
			}
		case session.Disconnect:
			delete(h.conns, env.from)
			metrics.Connections.Set(float64(len(h.conns)))
		}

	case kindRelay:
		metrics.Relayed.WithLabelValues("in").Inc()
		h.deliver(h.coord.Relay(env.roomID, env.content))
	}

	metrics.Rooms.Set(float64(h.coord.Stats().Rooms))
}

// deliver encodes and queues each delivery for its local connection
func (h *Hub) deliver(ds []session.Delivery) {
	for _, d := range ds {
		c := h.conns[d.To]
		if c == nil {
			continue
		}
		b, err := Encode(d.Event)
		if err != nil {
			h.log.Error("hub.encode", "to", d.To, "err", err)
			continue
		}
		if !c.Enqueue(b) {
			metrics.FramesDropped.Inc()
			h.log.Debug("hub.drop", "to", d.To)
		}
	}
}

// relay hands a local change to the publisher without blocking the loop
func (h *Hub) relay(ev session.ContentChange) {
	if h.bus == nil {
		return
	}
	select {
	case h.outbound <- BusMessage{RoomID: string(ev.RoomID), Content: ev.Content, Origin: h.instance}:
	default:
		h.log.Warn("hub.relay.full", "room", ev.RoomID)
	}
}

func (h *Hub) publishLoop(ctx context.Context) {
	for {
		select {
		case m := <-h.outbound:
			if err := h.bus.Publish(ctx, m); err != nil {
				h.log.Error("bus.publish", "room", m.RoomID, "err", err)
				continue
			}
			metrics.Relayed.WithLabelValues("out").Inc()
		case <-ctx.Done():
			return
		}
	}
}

// onRemote feeds changes from other instances into the loop
func (h *Hub) onRemote(m BusMessage) {
	if m.Origin == h.instance {
		return
	}
	h.submit(envelope{kind: kindRelay, roomID: session.RoomID(m.RoomID), content: m.Content})
}

// ServeWS handles a new /ws connection until the peer goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws, err := Accept(w, r, h.opts.Origins)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(ws, session.ConnectionID(uuid.NewString()), h.opts.SendBuffer)
	if !h.submit(envelope{kind: kindAttach, conn: c}) {
		_ = c.Close()
		return
	}
	h.log.Debug("ws.connected", "conn", c.ID())

	if hello, err := EncodeConnected(c.ID()); err == nil {
		c.Enqueue(hello)
	}

	// Outbound writer
	go c.WriteLoop(ctx, h.opts.PingInterval)

	// Inbound reader: reject bad frames here, forward the rest to the loop
	for {
		payload, ok := c.Read(ctx)
		if !ok {
			break
		}
		ev, err := Decode(payload)
		if err != nil {
			metrics.FramesRejected.Inc()
			h.log.Debug("ws.reject", "conn", c.ID(), "err", err)
			if b, encErr := EncodeError(err); encErr == nil {
				c.Enqueue(b)
			}
			continue
		}
		if !h.submit(envelope{kind: kindEvent, from: c.ID(), event: ev}) {
			break
		}
	}

	h.submit(envelope{kind: kindEvent, from: c.ID(), event: session.Disconnect{}})
	h.log.Debug("ws.disconnected", "conn", c.ID())
	_ = c.Close()
}

func eventKind(ev session.Inbound) string {
	switch ev.(type) {
	case session.Join:
		return "join"
	case session.ContentChange:
		return "content_change"
	case session.Sync:
		return "sync"
	case session.Leave:
		return "leave"
	case session.Disconnect:
		return "disconnect"
	}
	return "unknown"
}
