// Package peer drives the sync core from a single tick loop. A Manager owns
// the session, the relay policy when hosting, and the remote entity tables,
// and advances all of them once per call to Update.
//
// All mutation happens on the caller's tick goroutine. Transport adapters
// only buffer; Update drains them. Inbound state is surfaced through
// snapshots and drain calls rather than callbacks.
package peer

import (
	"time"

	"go.uber.org/zap"

	"github.com/ambergale/coopsync/internal/metrics"
	"github.com/ambergale/coopsync/pkg/entities"
	"github.com/ambergale/coopsync/pkg/errors"
	"github.com/ambergale/coopsync/pkg/packets"
	"github.com/ambergale/coopsync/pkg/relay"
	"github.com/ambergale/coopsync/pkg/session"
	"github.com/ambergale/coopsync/pkg/transport"
	"github.com/ambergale/coopsync/pkg/wire"
)

// loginRetryInterval paces login re-sends while a join is outstanding. The
// host answers repeats with the same id, so retries are safe.
const loginRetryInterval = time.Second

type Options struct {
	// Name is announced to other peers at login.
	Name string

	// Bounds is the numeric-sanity box enforced on the host side.
	Bounds relay.Bounds

	// EntityTimeout is the staleness window for remote entity eviction.
	EntityTimeout time.Duration

	// SmoothingRate is the displayed-transform approach rate, 1/second.
	SmoothingRate float64

	// MoveEpsilon is the minimum positional delta that makes the local
	// state worth re-sending.
	MoveEpsilon float32
}

func DefaultOptions() Options {
	return Options{
		Name:          "player",
		Bounds:        relay.Bounds{Min: wire.Vec2{X: -1000, Y: -1000}, Max: wire.Vec2{X: 1000, Y: 1000}},
		EntityTimeout: 5 * time.Second,
		SmoothingRate: 12,
		MoveEpsilon:   0.01,
	}
}

// Manager is the application's one handle on the sync core.
type Manager struct {
	log     *zap.Logger
	baseLog *zap.Logger
	opts    Options
	tr      transport.Transport
	met     *metrics.Set

	sess  *session.Session
	relay *relay.Engine

	players     *entities.PlayerTable
	enemies     *entities.EnemyTable
	projectiles *entities.ProjectileTable

	// Local player pose and the last version that went out.
	localState packets.PlayerState
	lastSent   packets.PlayerState
	sentOnce   bool

	loginSentAt time.Time

	// Host-pushed settings, present once a join handshake completes.
	settings    packets.ServerSettings
	hasSettings bool

	chat    []packets.HostChat
	pickups []packets.ItemPickup
}

func NewManager(opts Options, tr transport.Transport, met *metrics.Set, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if met == nil {
		met = metrics.New(nil)
	}
	if opts.EntityTimeout <= 0 {
		opts.EntityTimeout = DefaultOptions().EntityTimeout
	}
	if opts.SmoothingRate <= 0 {
		opts.SmoothingRate = DefaultOptions().SmoothingRate
	}

	m := &Manager{
		log:     logger.With(zap.String("component", "peer")),
		baseLog: logger,
		opts:    opts,
		tr:      tr,
		met:     met,
		sess:    session.New(logger),
	}
	m.makeTables()
	return m
}

func (m *Manager) makeTables() {
	cfg := entities.Config{Timeout: m.opts.EntityTimeout, SmoothingRate: m.opts.SmoothingRate}
	m.players = entities.NewPlayerTable(session.HostID, cfg, m.baseLog)
	m.enemies = entities.NewEnemyTable(cfg, m.baseLog)
	m.projectiles = entities.NewProjectileTable(cfg, m.baseLog)
}

// StartHosting makes this peer the session authority.
func (m *Manager) StartHosting() error {
	if err := m.sess.StartHosting(); err != nil {
		return err
	}
	m.relay = relay.New(relay.Config{
		Bounds:        m.opts.Bounds,
		EntityTimeout: m.opts.EntityTimeout,
		HostName:      m.opts.Name,
	}, m.sess, m.tr, m.met, m.baseLog)
	return nil
}

// Join starts the handshake toward a host peer. The join completes during a
// later Update, when the login response arrives.
func (m *Manager) Join(target transport.PeerID, now time.Time) error {
	if err := m.sess.BeginJoin(target); err != nil {
		return err
	}
	m.sendLogin(now)
	return nil
}

func (m *Manager) sendLogin(now time.Time) {
	raw, err := packets.EncodeClient(&packets.LoginRequest{Name: m.opts.Name})
	if err != nil {
		m.log.Error("Failed to encode login request", zap.Error(err))
		return
	}
	if !m.tr.Send(m.sess.HostPeer(), raw, true) {
		m.met.SendFailures.Inc()
		m.log.Warn("Login request send failed, will retry")
	}
	m.loginSentAt = now
}

// Update runs one simulation tick: drain the transport, apply inbound
// packets, advance the entity tables, and flush the local pose if it moved.
func (m *Manager) Update(now time.Time, dt float64) {
	for _, ev := range m.tr.Poll() {
		switch m.sess.Role() {
		case session.RoleHost:
			m.handleHostEvent(ev, now)
		case session.RoleClient:
			m.handleClientEvent(ev, now)
		default:
			// Not in a session; inbound traffic has no meaning yet.
		}
	}

	if m.sess.Phase() == session.PhaseJoining && now.Sub(m.loginSentAt) >= loginRetryInterval {
		m.log.Info("Login response outstanding, re-sending request")
		m.sendLogin(now)
	}

	if n := len(m.players.Tick(now, dt)); n > 0 {
		m.met.EntitiesEvicted.WithLabelValues("player").Add(float64(n))
	}
	if n := len(m.enemies.Tick(now, dt)); n > 0 {
		m.met.EntitiesEvicted.WithLabelValues("enemy").Add(float64(n))
	}
	if n := len(m.projectiles.Tick(now, dt)); n > 0 {
		m.met.EntitiesEvicted.WithLabelValues("projectile").Add(float64(n))
	}

	m.flushLocalState()
}

func (m *Manager) handleHostEvent(ev transport.Event, now time.Time) {
	switch ev.Kind {
	case transport.EventConnect:
		m.log.Info("Peer connected", zap.String("peer", string(ev.Peer)))
	case transport.EventDisconnect:
		if id, ok := m.relay.ClientGone(ev.Peer, now); ok {
			m.players.Evict(id)
		}
	case transport.EventMessage:
		m.handleClientPacket(ev.Peer, ev.Data, now)
	}
}

func (m *Manager) handleClientPacket(peer transport.PeerID, data []byte, now time.Time) {
	pkt, err := packets.DecodeClient(data)
	if err != nil {
		m.met.DecodeFailures.Inc()
		m.log.Warn("Dropping undecodable client packet", zap.String("peer", string(peer)), zap.Error(err))
		return
	}
	m.met.PacketsDecoded.WithLabelValues("client").Inc()

	switch p := pkt.(type) {
	case *packets.LoginRequest:
		if _, err := m.relay.Login(peer, p, now); err != nil {
			m.log.Warn("Login rejected", zap.String("peer", string(peer)), zap.Error(err))
		}
	case *packets.PlayerUpdate:
		id, err := m.relay.PlayerUpdate(peer, p, now)
		if err != nil {
			m.log.Debug("Player update dropped", zap.String("peer", string(peer)), zap.Error(err))
			return
		}
		m.players.ApplyUpdate(id, p.State, now)
	case *packets.RoomEnter:
		id, err := m.relay.RoomEnter(peer, p, now)
		if err != nil {
			m.log.Debug("Room enter dropped", zap.String("peer", string(peer)), zap.Error(err))
			return
		}
		m.players.ApplyRoomChange(id, p.Room, p.Pos, now)
	case *packets.WeaponSwitch:
		id, err := m.relay.WeaponSwitch(peer, p, now)
		if err != nil {
			return
		}
		m.players.ApplyWeapon(id, p.Weapon, now)
	case *packets.Chat:
		line, err := m.relay.Chat(peer, p, now)
		if err != nil {
			return
		}
		m.chat = append(m.chat, *line)
	case *packets.Disconnect:
		if id, ok := m.relay.ClientGone(peer, now); ok {
			m.players.Evict(id)
		}
	}
}

func (m *Manager) handleClientEvent(ev transport.Event, now time.Time) {
	if !m.sess.IsHostPeer(ev.Peer) {
		m.log.Warn("Ignoring traffic from non-host peer", zap.String("peer", string(ev.Peer)))
		return
	}

	switch ev.Kind {
	case transport.EventConnect:
		m.log.Info("Host reachable", zap.String("peer", string(ev.Peer)))
	case transport.EventDisconnect:
		// Losing the host ends the session outright; there is no failover.
		m.log.Warn("Host connection lost, leaving session")
		m.teardown()
	case transport.EventMessage:
		m.handleHostPacket(ev.Data, now)
	}
}

func (m *Manager) handleHostPacket(data []byte, now time.Time) {
	pkt, err := packets.DecodeHost(data)
	if err != nil {
		m.met.DecodeFailures.Inc()
		m.log.Warn("Dropping undecodable host packet", zap.Error(err))
		return
	}
	m.met.PacketsDecoded.WithLabelValues("host").Inc()

	switch p := pkt.(type) {
	case *packets.LoginResponse:
		if m.sess.Phase() != session.PhaseJoining {
			// Duplicate response after an earlier one completed the join.
			return
		}
		if err := m.sess.CompleteJoin(session.ClientID(p.ClientId)); err != nil {
			m.log.Error("Join failed", zap.Error(err))
			return
		}
		m.players.SetLocalID(session.ClientID(p.ClientId))
	case *packets.PlayerConnect:
		m.players.ApplyConnect(session.ClientID(p.ClientId), p.Name, p.Room, now)
	case *packets.PlayerDisconnect:
		m.players.Evict(session.ClientID(p.ClientId))
	case *packets.HostPlayerUpdate:
		m.players.ApplyUpdate(session.ClientID(p.ClientId), p.State, now)
	case *packets.RoomUpdate:
		m.players.ApplyRoomChange(session.ClientID(p.ClientId), p.Room, p.Pos, now)
	case *packets.HostWeaponSwitch:
		m.players.ApplyWeapon(session.ClientID(p.ClientId), p.Weapon, now)
	case *packets.EnemyUpdate:
		m.enemies.Apply(p, now)
	case *packets.ProjectileUpdate:
		m.projectiles.Apply(p, now)
	case *packets.ItemPickup:
		m.pickups = append(m.pickups, *p)
	case *packets.HostChat:
		m.chat = append(m.chat, *p)
	case *packets.ServerSettings:
		m.settings = *p
		m.hasSettings = true
		m.log.Info("Adopted host settings",
			zap.Int32("entityTimeoutMillis", p.EntityTimeoutMillis))
	}
}

// SetLocalState records the local player's current pose. It goes out on the
// next Update if it differs materially from the last sent version.
func (m *Manager) SetLocalState(state packets.PlayerState) {
	m.localState = state
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Manager) stateChanged() bool {
	if !m.sentOnce {
		return true
	}
	a, b := m.lastSent, m.localState
	eps := m.opts.MoveEpsilon
	if abs32(a.Pos.X-b.Pos.X) > eps || abs32(a.Pos.Y-b.Pos.Y) > eps {
		return true
	}
	if abs32(a.Vel.X-b.Vel.X) > eps || abs32(a.Vel.Y-b.Vel.Y) > eps {
		return true
	}
	if abs32(a.AimAngle-b.AimAngle) > eps {
		return true
	}
	if a.Animation != b.Animation || a.Room != b.Room {
		return true
	}
	if a.FacingLeft != b.FacingLeft || a.Grounded != b.Grounded || a.Rolling != b.Rolling || a.Shooting != b.Shooting {
		return true
	}
	return false
}

func (m *Manager) flushLocalState() {
	if !m.stateChanged() {
		return
	}

	switch m.sess.Phase() {
	case session.PhaseHosting:
		m.relay.SetHostState(m.localState)
	case session.PhaseConnected:
		raw, err := packets.EncodeClient(&packets.PlayerUpdate{State: m.localState})
		if err != nil {
			m.log.Error("Failed to encode player update", zap.Error(err))
			return
		}
		if !m.tr.Send(m.sess.HostPeer(), raw, false) {
			m.met.SendFailures.Inc()
			return
		}
	default:
		return
	}

	m.lastSent = m.localState
	m.sentOnce = true
}

// EnterRoom records a room transition for the local player and announces it
// reliably, bypassing the material-change filter.
func (m *Manager) EnterRoom(room string, pos wire.Vec2, now time.Time) error {
	m.localState.Room = room
	m.localState.Pos = pos

	switch m.sess.Phase() {
	case session.PhaseHosting:
		m.relay.SetHostState(m.localState)
	case session.PhaseConnected:
		raw, err := packets.EncodeClient(&packets.RoomEnter{Room: room, Pos: pos})
		if err != nil {
			return err
		}
		if !m.tr.Send(m.sess.HostPeer(), raw, true) {
			m.met.SendFailures.Inc()
		}
	default:
		return &errors.InvalidSessionState{Operation: "EnterRoom", State: m.sess.Phase().String()}
	}

	m.lastSent = m.localState
	m.sentOnce = true
	return nil
}

// SwitchWeapon announces the local player's equipped weapon.
func (m *Manager) SwitchWeapon(weapon uint8) error {
	switch m.sess.Phase() {
	case session.PhaseHosting:
		raw, err := packets.EncodeHost(&packets.HostWeaponSwitch{ClientId: uint16(session.HostID), Weapon: weapon})
		if err != nil {
			return err
		}
		m.tr.Broadcast(raw, true)
	case session.PhaseConnected:
		raw, err := packets.EncodeClient(&packets.WeaponSwitch{Weapon: weapon})
		if err != nil {
			return err
		}
		if !m.tr.Send(m.sess.HostPeer(), raw, true) {
			m.met.SendFailures.Inc()
		}
	default:
		return &errors.InvalidSessionState{Operation: "SwitchWeapon", State: m.sess.Phase().String()}
	}
	return nil
}

// SendChat publishes a chat line. The local copy is queued immediately so
// the sender's own log shows it without a network round trip.
func (m *Manager) SendChat(text string) error {
	switch m.sess.Phase() {
	case session.PhaseHosting:
		line := &packets.HostChat{ClientId: uint16(session.HostID), Name: m.opts.Name, Text: text}
		raw, err := packets.EncodeHost(line)
		if err != nil {
			return err
		}
		m.tr.Broadcast(raw, true)
		m.chat = append(m.chat, *line)
	case session.PhaseConnected:
		raw, err := packets.EncodeClient(&packets.Chat{Text: text})
		if err != nil {
			return err
		}
		if !m.tr.Send(m.sess.HostPeer(), raw, true) {
			m.met.SendFailures.Inc()
		}
		m.chat = append(m.chat, packets.HostChat{ClientId: uint16(m.sess.LocalID()), Name: m.opts.Name, Text: text})
	default:
		return &errors.InvalidSessionState{Operation: "SendChat", State: m.sess.Phase().String()}
	}
	return nil
}

// PublishEnemy pushes host-simulated enemy state to clients. Host only.
func (m *Manager) PublishEnemy(u *packets.EnemyUpdate) error {
	if m.sess.Role() != session.RoleHost {
		return &errors.InvalidSessionState{Operation: "PublishEnemy", State: m.sess.Phase().String()}
	}
	m.relay.PublishEnemy(u)
	return nil
}

// PublishProjectile pushes host-simulated projectile state to clients. Host
// only.
func (m *Manager) PublishProjectile(u *packets.ProjectileUpdate) error {
	if m.sess.Role() != session.RoleHost {
		return &errors.InvalidSessionState{Operation: "PublishProjectile", State: m.sess.Phase().String()}
	}
	m.relay.PublishProjectile(u)
	return nil
}

// PublishItemPickup announces a claimed world item to every client. Host
// only.
func (m *Manager) PublishItemPickup(u *packets.ItemPickup) error {
	if m.sess.Role() != session.RoleHost {
		return &errors.InvalidSessionState{Operation: "PublishItemPickup", State: m.sess.Phase().String()}
	}
	m.relay.PublishItemPickup(u)
	return nil
}

// Players returns the remote player snapshot, ordered by client id.
func (m *Manager) Players() []entities.RemotePlayer { return m.players.Snapshot() }

func (m *Manager) Enemies() []entities.RemoteEnemy { return m.enemies.Snapshot() }

func (m *Manager) Projectiles() []entities.RemoteProjectile { return m.projectiles.Snapshot() }

// DrainChat returns the chat lines received since the previous call.
func (m *Manager) DrainChat() []packets.HostChat {
	out := m.chat
	m.chat = nil
	return out
}

// DrainPickups returns the item pickups received since the previous call.
func (m *Manager) DrainPickups() []packets.ItemPickup {
	out := m.pickups
	m.pickups = nil
	return out
}

func (m *Manager) Phase() session.Phase      { return m.sess.Phase() }
func (m *Manager) Role() session.Role        { return m.sess.Role() }
func (m *Manager) LocalID() session.ClientID { return m.sess.LocalID() }

// Settings reports the host-pushed tunables, once a join has adopted them.
func (m *Manager) Settings() (packets.ServerSettings, bool) {
	return m.settings, m.hasSettings
}

// ConnectedClients lists the host's client records. Empty on the client side.
func (m *Manager) ConnectedClients() []relay.ConnectedClient {
	if m.relay == nil {
		return nil
	}
	return m.relay.Clients()
}

// Leave exits the current session. A connected client sends the graceful
// disconnect notice first; the transport stays open for a future session.
func (m *Manager) Leave() {
	if m.sess.Role() == session.RoleClient && m.sess.Phase() == session.PhaseConnected {
		if raw, err := packets.EncodeClient(&packets.Disconnect{}); err == nil {
			m.tr.Send(m.sess.HostPeer(), raw, true)
		}
	}
	m.teardown()
}

func (m *Manager) teardown() {
	if m.relay != nil {
		m.relay.Reset()
		m.relay = nil
	}
	m.sess.Reset()
	m.makeTables()
	m.sentOnce = false
	m.hasSettings = false
	m.settings = packets.ServerSettings{}
	m.localState = packets.PlayerState{}
	m.lastSent = packets.PlayerState{}
	m.chat = nil
	m.pickups = nil
}
