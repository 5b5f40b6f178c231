package transport

import (
	"fmt"
	"sync"
)

// Hub links in-process endpoints together. It backs unit tests and
// same-process play, with an optional lossy mode that drops unreliable
// sends the way a congested datagram link would.
type Hub struct {
	mu        sync.Mutex
	endpoints map[PeerID]*MemoryEndpoint
	links     map[PeerID]map[PeerID]bool

	// Lossy drops every unreliable send when set.
	Lossy bool
}

func NewHub() *Hub {
	return &Hub{
		endpoints: make(map[PeerID]*MemoryEndpoint),
		links:     make(map[PeerID]map[PeerID]bool),
	}
}

// MemoryEndpoint is one attached peer. It satisfies Transport.
type MemoryEndpoint struct {
	hub *Hub
	id  PeerID
	in  inbox
}

// Attach registers a new endpoint under the given id, replacing any previous
// endpoint with the same id.
func (h *Hub) Attach(id PeerID) *MemoryEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	ep := &MemoryEndpoint{hub: h, id: id}
	h.endpoints[id] = ep
	h.links[id] = make(map[PeerID]bool)
	return ep
}

// Endpoint looks up an attached endpoint by id.
func (h *Hub) Endpoint(id PeerID) *MemoryEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.endpoints[id]
}

func (e *MemoryEndpoint) ID() PeerID { return e.id }

// Dial links this endpoint to a target, surfacing a connect event on both
// sides.
func (e *MemoryEndpoint) Dial(target PeerID) error {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()

	peer, ok := e.hub.endpoints[target]
	if !ok {
		return fmt.Errorf("memory hub: no endpoint %q", target)
	}

	e.hub.links[e.id][target] = true
	e.hub.links[target][e.id] = true

	peer.in.push(Event{Kind: EventConnect, Peer: e.id})
	e.in.push(Event{Kind: EventConnect, Peer: target})
	return nil
}

func (e *MemoryEndpoint) Send(peer PeerID, data []byte, reliable bool) bool {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	return e.sendLocked(peer, data, reliable)
}

func (e *MemoryEndpoint) sendLocked(peer PeerID, data []byte, reliable bool) bool {
	if e.hub.Lossy && !reliable {
		return false
	}
	target, ok := e.hub.endpoints[peer]
	if !ok || !e.hub.links[e.id][peer] {
		return false
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	target.in.push(Event{Kind: EventMessage, Peer: e.id, Data: buf})
	return true
}

func (e *MemoryEndpoint) Broadcast(data []byte, reliable bool) {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	for peer := range e.hub.links[e.id] {
		e.sendLocked(peer, data, reliable)
	}
}

func (e *MemoryEndpoint) Poll() []Event {
	return e.in.drain()
}

// Close detaches the endpoint and surfaces a disconnect event to every
// linked peer.
func (e *MemoryEndpoint) Close() error {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()

	for peer := range e.hub.links[e.id] {
		if target, ok := e.hub.endpoints[peer]; ok {
			target.in.push(Event{Kind: EventDisconnect, Peer: e.id})
			delete(e.hub.links[peer], e.id)
		}
	}
	delete(e.hub.links, e.id)
	delete(e.hub.endpoints, e.id)
	return nil
}
