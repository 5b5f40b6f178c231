// Package relay implements the host-authoritative policy: validate client
// updates, keep the per-client records, and fan accepted traffic out to the
// peers that can see it.
//
// Fan-out is room-scoped: a pose update only reaches clients whose recorded
// room matches the sender's. Room transitions are the one exception; they go
// to the union of the old and new room so observers on either side see the
// entry or exit.
package relay

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ambergale/coopsync/internal/metrics"
	"github.com/ambergale/coopsync/pkg/errors"
	"github.com/ambergale/coopsync/pkg/packets"
	"github.com/ambergale/coopsync/pkg/session"
	"github.com/ambergale/coopsync/pkg/transport"
	"github.com/ambergale/coopsync/pkg/wire"
)

// Bounds is the axis-aligned numeric-sanity box. It is policy, not
// anti-cheat: it exists to keep NaNs and absurd coordinates out of every
// peer's state.
type Bounds struct {
	Min wire.Vec2
	Max wire.Vec2
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Contains reports whether v is finite and inside the box.
func (b Bounds) Contains(v wire.Vec2) bool {
	if !finite(v.X) || !finite(v.Y) {
		return false
	}
	return v.X >= b.Min.X && v.X <= b.Max.X && v.Y >= b.Min.Y && v.Y <= b.Max.Y
}

// ConnectedClient is the host's record of one joined client.
type ConnectedClient struct {
	ID     session.ClientID
	Peer   transport.PeerID
	Name   string
	Pos    wire.Vec2
	Room   string
	Weapon uint8

	ConnectedAt time.Time
	LastActive  time.Time
}

type Config struct {
	Bounds        Bounds
	EntityTimeout time.Duration

	// HostName is announced to joining clients in the roster replay.
	HostName string
}

// Engine applies host policy to decoded client packets. All methods run on
// the tick goroutine; nothing here locks.
type Engine struct {
	log  *zap.Logger
	cfg  Config
	sess *session.Session
	tr   transport.Transport
	met  *metrics.Set

	clients map[session.ClientID]*ConnectedClient

	// The host's own pose, used for room-scoping its updates and for the
	// roster replay sent to late joiners.
	hostState packets.PlayerState
}

func New(cfg Config, sess *session.Session, tr transport.Transport, met *metrics.Set, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if met == nil {
		met = metrics.New(nil)
	}
	return &Engine{
		log:     logger.With(zap.String("component", "relay")),
		cfg:     cfg,
		sess:    sess,
		tr:      tr,
		met:     met,
		clients: make(map[session.ClientID]*ConnectedClient),
	}
}

func (e *Engine) sendTo(id session.ClientID, pkt packets.HostPacket) {
	peer, has := e.sess.PeerFor(id)
	if !has {
		e.log.Warn("No peer mapping for client id", zap.Uint16("clientId", uint16(id)))
		return
	}
	raw, err := packets.EncodeHost(pkt)
	if err != nil {
		e.log.Error("Failed to encode host packet", zap.String("kind", pkt.Kind().String()), zap.Error(err))
		return
	}
	if !e.tr.Send(peer, raw, pkt.Kind().Reliable()) {
		e.met.SendFailures.Inc()
		e.log.Warn("Transport rejected send", zap.String("peer", string(peer)), zap.String("kind", pkt.Kind().String()))
	}
}

// sendToRooms fans a packet out to every client whose recorded room is in
// the accept set, excluding the originator.
func (e *Engine) sendToRooms(pkt packets.HostPacket, except session.ClientID, rooms ...string) {
	raw, err := packets.EncodeHost(pkt)
	if err != nil {
		e.log.Error("Failed to encode host packet", zap.String("kind", pkt.Kind().String()), zap.Error(err))
		return
	}
	reliable := pkt.Kind().Reliable()

	for id, c := range e.clients {
		if id == except {
			continue
		}
		inScope := false
		for _, room := range rooms {
			if c.Room == room {
				inScope = true
				break
			}
		}
		if !inScope {
			continue
		}
		peer, has := e.sess.PeerFor(id)
		if !has {
			continue
		}
		if e.tr.Send(peer, raw, reliable) {
			e.met.PacketsRelayed.Inc()
		} else {
			e.met.SendFailures.Inc()
		}
	}
}

func (e *Engine) broadcastExcept(pkt packets.HostPacket, except session.ClientID) {
	raw, err := packets.EncodeHost(pkt)
	if err != nil {
		e.log.Error("Failed to encode host packet", zap.String("kind", pkt.Kind().String()), zap.Error(err))
		return
	}
	reliable := pkt.Kind().Reliable()
	for id := range e.clients {
		if id == except {
			continue
		}
		peer, has := e.sess.PeerFor(id)
		if !has {
			continue
		}
		if e.tr.Send(peer, raw, reliable) {
			e.met.PacketsRelayed.Inc()
		} else {
			e.met.SendFailures.Inc()
		}
	}
}

// Login handles a login request, allocating a client id on first contact.
// Repeats from a mapped peer are answered with the existing id and change
// nothing else.
func (e *Engine) Login(peer transport.PeerID, req *packets.LoginRequest, now time.Time) (session.ClientID, error) {
	id, isNew, err := e.sess.AssignID(peer)
	if err != nil {
		return 0, err
	}

	// The response is always sent, even on repeats: the client may have
	// missed the first one.
	e.sendTo(id, &packets.LoginResponse{ClientId: uint16(id)})

	if !isNew {
		return id, nil
	}

	e.clients[id] = &ConnectedClient{
		ID:          id,
		Peer:        peer,
		Name:        req.Name,
		Room:        e.hostState.Room,
		ConnectedAt: now,
		LastActive:  now,
	}
	e.log.Info("Client joined", zap.Uint16("clientId", uint16(id)), zap.String("name", req.Name))

	e.sendTo(id, &packets.ServerSettings{
		WorldMin:            e.cfg.Bounds.Min,
		WorldMax:            e.cfg.Bounds.Max,
		EntityTimeoutMillis: int32(e.cfg.EntityTimeout / time.Millisecond),
	})

	// Roster replay: the host itself, then every already-joined client.
	e.sendTo(id, &packets.PlayerConnect{
		ClientId: uint16(session.HostID),
		Name:     e.cfg.HostName,
		Room:     e.hostState.Room,
	})
	ids := make([]session.ClientID, 0, len(e.clients))
	for existing := range e.clients {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, existing := range ids {
		c := e.clients[existing]
		e.sendTo(id, &packets.PlayerConnect{ClientId: uint16(existing), Name: c.Name, Room: c.Room})
	}

	e.broadcastExcept(&packets.PlayerConnect{ClientId: uint16(id), Name: req.Name, Room: e.clients[id].Room}, id)
	return id, nil
}

// PlayerUpdate validates and relays a pose update. A rejected update leaves
// the client record untouched and is not relayed.
func (e *Engine) PlayerUpdate(peer transport.PeerID, upd *packets.PlayerUpdate, now time.Time) (session.ClientID, error) {
	id, has := e.sess.IDFor(peer)
	if !has {
		return 0, &errors.UnmappedPeer{Peer: string(peer)}
	}
	c, has := e.clients[id]
	if !has {
		return 0, &errors.UnmappedClientId{Id: uint16(id)}
	}

	if !e.cfg.Bounds.Contains(upd.State.Pos) {
		e.met.ValidationRejections.Inc()
		return 0, &errors.ValidationRejection{Id: uint16(id), Reason: "position outside world bounds"}
	}
	if !finite(upd.State.Vel.X) || !finite(upd.State.Vel.Y) || !finite(upd.State.AimAngle) {
		e.met.ValidationRejections.Inc()
		return 0, &errors.ValidationRejection{Id: uint16(id), Reason: "non-finite velocity or aim"}
	}

	c.Pos = upd.State.Pos
	if upd.State.Room != "" {
		c.Room = upd.State.Room
	}
	c.LastActive = now

	e.sendToRooms(&packets.HostPlayerUpdate{ClientId: uint16(id), State: upd.State}, id, c.Room)
	return id, nil
}

// RoomEnter relays a room transition to the union of the previous and new
// room before recording the move.
func (e *Engine) RoomEnter(peer transport.PeerID, pkt *packets.RoomEnter, now time.Time) (session.ClientID, error) {
	id, has := e.sess.IDFor(peer)
	if !has {
		return 0, &errors.UnmappedPeer{Peer: string(peer)}
	}
	c, has := e.clients[id]
	if !has {
		return 0, &errors.UnmappedClientId{Id: uint16(id)}
	}
	if !e.cfg.Bounds.Contains(pkt.Pos) {
		e.met.ValidationRejections.Inc()
		return 0, &errors.ValidationRejection{Id: uint16(id), Reason: "entry position outside world bounds"}
	}

	oldRoom := c.Room
	e.sendToRooms(&packets.RoomUpdate{ClientId: uint16(id), Room: pkt.Room, Pos: pkt.Pos}, id, oldRoom, pkt.Room)

	c.Room = pkt.Room
	c.Pos = pkt.Pos
	c.LastActive = now
	return id, nil
}

func (e *Engine) WeaponSwitch(peer transport.PeerID, pkt *packets.WeaponSwitch, now time.Time) (session.ClientID, error) {
	id, has := e.sess.IDFor(peer)
	if !has {
		return 0, &errors.UnmappedPeer{Peer: string(peer)}
	}
	c, has := e.clients[id]
	if !has {
		return 0, &errors.UnmappedClientId{Id: uint16(id)}
	}
	c.Weapon = pkt.Weapon
	c.LastActive = now

	e.sendToRooms(&packets.HostWeaponSwitch{ClientId: uint16(id), Weapon: pkt.Weapon}, id, c.Room)
	return id, nil
}

// Chat resolves the sender and relays the line to every client.
func (e *Engine) Chat(peer transport.PeerID, pkt *packets.Chat, now time.Time) (*packets.HostChat, error) {
	id, has := e.sess.IDFor(peer)
	if !has {
		return nil, &errors.UnmappedPeer{Peer: string(peer)}
	}
	c, has := e.clients[id]
	if !has {
		return nil, &errors.UnmappedClientId{Id: uint16(id)}
	}
	c.LastActive = now

	line := &packets.HostChat{ClientId: uint16(id), Name: c.Name, Text: pkt.Text}
	e.broadcastExcept(line, id)
	return line, nil
}

// ClientGone removes a departed peer (graceful Disconnect packet or
// transport-detected failure) and announces it. The announcement lets
// clients evict immediately instead of waiting out the staleness window.
func (e *Engine) ClientGone(peer transport.PeerID, now time.Time) (session.ClientID, bool) {
	id, has := e.sess.RemovePeer(peer)
	if !has {
		e.log.Warn("Disconnect for unmapped peer", zap.String("peer", string(peer)))
		return 0, false
	}
	delete(e.clients, id)
	e.log.Info("Client left", zap.Uint16("clientId", uint16(id)))
	e.broadcastExcept(&packets.PlayerDisconnect{ClientId: uint16(id)}, id)
	return id, true
}

// SetHostState records the host's own pose and relays it to clients in the
// host's room, exactly as an accepted client update would be.
func (e *Engine) SetHostState(state packets.PlayerState) {
	prevRoom := e.hostState.Room
	e.hostState = state

	if state.Room != "" && state.Room != prevRoom && prevRoom != "" {
		e.sendToRooms(&packets.RoomUpdate{ClientId: uint16(session.HostID), Room: state.Room, Pos: state.Pos}, session.HostID, prevRoom, state.Room)
		return
	}
	e.sendToRooms(&packets.HostPlayerUpdate{ClientId: uint16(session.HostID), State: state}, session.HostID, state.Room)
}

// PublishEnemy pushes host-simulated enemy state to clients in its room.
func (e *Engine) PublishEnemy(u *packets.EnemyUpdate) {
	e.sendToRooms(u, session.HostID, u.Room)
}

// PublishProjectile pushes host-simulated projectile state to clients in
// its room.
func (e *Engine) PublishProjectile(u *packets.ProjectileUpdate) {
	e.sendToRooms(u, session.HostID, u.Room)
}

// PublishItemPickup announces a claimed world item to every client.
func (e *Engine) PublishItemPickup(u *packets.ItemPickup) {
	e.broadcastExcept(u, session.ClientID(u.ClientId))
}

// Clients returns a read-only snapshot of the connected client records,
// ordered by id.
func (e *Engine) Clients() []ConnectedClient {
	out := make([]ConnectedClient, 0, len(e.clients))
	for _, c := range e.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) Client(id session.ClientID) (ConnectedClient, bool) {
	c, has := e.clients[id]
	if !has {
		return ConnectedClient{}, false
	}
	return *c, true
}

// Reset drops every client record.
func (e *Engine) Reset() {
	e.clients = make(map[session.ClientID]*ConnectedClient)
	e.hostState = packets.PlayerState{}
}
