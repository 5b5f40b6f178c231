// Package transport defines the message-oriented peer boundary the sync core
// runs on, plus two implementations: an in-process hub and a WebSocket
// adapter.
//
// Implementations deliver inbound traffic through Poll rather than
// callbacks: adapter goroutines only enqueue, and the tick-driven caller
// drains everything that has buffered since the last tick. Sends are
// fire-and-forget; the reliable flag is a delivery hint for the underlying
// transport, never a retransmission obligation at this layer.
package transport

import "sync"

// PeerID is the transport-level identity of a remote endpoint. It is
// distinct from the session-local client id.
type PeerID string

type EventKind uint8

const (
	// EventConnect reports a newly reachable peer. Incoming connections are
	// auto-accepted; there is no approval step.
	EventConnect EventKind = iota
	// EventDisconnect reports that a peer is gone, gracefully or not.
	EventDisconnect
	// EventMessage carries one raw inbound packet.
	EventMessage
)

// Event is one inbound occurrence drained by Poll.
type Event struct {
	Kind EventKind
	Peer PeerID
	Data []byte
}

// Transport is the minimum contract the sync core requires from a peer
// network.
type Transport interface {
	// Send delivers one packet to a single peer, reporting whether the
	// transport accepted it. A false return is logged by the caller and
	// never retried here.
	Send(peer PeerID, data []byte, reliable bool) bool

	// Broadcast delivers one packet to every known peer.
	Broadcast(data []byte, reliable bool)

	// Poll drains every event buffered since the previous call, in arrival
	// order.
	Poll() []Event

	Close() error
}

// inbox is the buffered event queue shared by all transport adapters.
// Adapter goroutines push; the tick loop drains.
type inbox struct {
	mu     sync.Mutex
	events []Event
}

func (in *inbox) push(ev Event) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.events = append(in.events, ev)
}

func (in *inbox) drain() []Event {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.events) == 0 {
		return nil
	}
	out := in.events
	in.events = nil
	return out
}
