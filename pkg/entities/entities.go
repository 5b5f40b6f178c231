// Package entities keeps the client-side view of remote world state: one
// table per entity kind, fed by authoritative updates and advanced every
// simulation tick.
//
// Displayed transforms chase the authoritative ones with frame-time-scaled
// exponential smoothing rather than snapping, so sparse and out-of-order
// updates still render as continuous motion. Records that stop receiving
// updates are evicted after a staleness window; an explicit disconnect
// notification evicts immediately, which covers lost or reordered
// disconnect packets in either direction.
package entities

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ambergale/coopsync/pkg/packets"
	"github.com/ambergale/coopsync/pkg/session"
	"github.com/ambergale/coopsync/pkg/wire"
)

// Config holds the reconciliation tunables shared by every table.
type Config struct {
	// Timeout is the staleness window after which a silent record is
	// evicted.
	Timeout time.Duration
	// SmoothingRate is the exponential approach rate in units of 1/second.
	SmoothingRate float64
}

func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		SmoothingRate: 12,
	}
}

// smoothingAlpha converts the per-second rate into this frame's blend
// factor. Independent of frame rate: two 1/120s ticks move as far as one
// 1/60s tick.
func smoothingAlpha(rate, dt float64) float32 {
	if rate <= 0 || dt <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-rate*dt))
}

func approach(cur, target wire.Vec2, alpha float32) wire.Vec2 {
	return wire.Vec2{
		X: cur.X + (target.X-cur.X)*alpha,
		Y: cur.Y + (target.Y-cur.Y)*alpha,
	}
}

func approach3(cur, target wire.Vec3, alpha float32) wire.Vec3 {
	return wire.Vec3{
		X: cur.X + (target.X-cur.X)*alpha,
		Y: cur.Y + (target.Y-cur.Y)*alpha,
		Z: cur.Z + (target.Z-cur.Z)*alpha,
	}
}

// RemotePlayer is the rendered view of one remote peer's player entity.
type RemotePlayer struct {
	ID   session.ClientID
	Name string

	// Auth is the last authoritative pose received from the network.
	Auth packets.PlayerState

	// RenderPos is the smoothed position the application draws at.
	RenderPos wire.Vec2

	// Presentation state, refreshed only when the authoritative value
	// changes so the application can restart animations exactly once.
	Animation        string
	AnimationChanged bool
	FacingLeft       bool
	FacingChanged    bool

	Weapon     uint8
	Room       string
	LastUpdate time.Time
}

// PlayerTable owns every RemotePlayer record, keyed by client id. A record
// is never created for the local viewer's own id.
type PlayerTable struct {
	log     *zap.Logger
	cfg     Config
	localID session.ClientID
	players map[session.ClientID]*RemotePlayer
}

func NewPlayerTable(localID session.ClientID, cfg Config, logger *zap.Logger) *PlayerTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayerTable{
		log:     logger.With(zap.String("table", "players")),
		cfg:     cfg,
		localID: localID,
		players: make(map[session.ClientID]*RemotePlayer),
	}
}

// SetLocalID updates the viewer's own id (a client learns it at login).
func (t *PlayerTable) SetLocalID(id session.ClientID) {
	t.localID = id
	delete(t.players, id)
}

func (t *PlayerTable) get(id session.ClientID, now time.Time) *RemotePlayer {
	if p, has := t.players[id]; has {
		return p
	}
	p := &RemotePlayer{ID: id, LastUpdate: now}
	t.players[id] = p
	t.log.Debug("Created remote player record", zap.Uint16("clientId", uint16(id)))
	return p
}

// ApplyConnect registers a newly announced peer.
func (t *PlayerTable) ApplyConnect(id session.ClientID, name, room string, now time.Time) {
	if id == t.localID {
		return
	}
	p := t.get(id, now)
	p.Name = name
	p.Room = room
	p.LastUpdate = now
}

// ApplyUpdate folds an authoritative pose update into the table, creating
// the record lazily on first sight. The displayed position of a brand new
// record starts at the authoritative position; existing records keep their
// smoothed position and chase the new target.
func (t *PlayerTable) ApplyUpdate(id session.ClientID, state packets.PlayerState, now time.Time) {
	if id == t.localID {
		return
	}
	p, has := t.players[id]
	if !has {
		p = t.get(id, now)
		p.RenderPos = state.Pos
	}
	p.Auth = state
	if state.Room != "" {
		p.Room = state.Room
	}
	p.LastUpdate = now
}

// ApplyRoomChange moves a record to its new room and teleports the
// displayed position to the entry point; smoothing across a room boundary
// would sweep the sprite through the level.
func (t *PlayerTable) ApplyRoomChange(id session.ClientID, room string, pos wire.Vec2, now time.Time) {
	if id == t.localID {
		return
	}
	p := t.get(id, now)
	p.Room = room
	p.Auth.Room = room
	p.Auth.Pos = pos
	p.RenderPos = pos
	p.LastUpdate = now
}

func (t *PlayerTable) ApplyWeapon(id session.ClientID, weapon uint8, now time.Time) {
	if id == t.localID {
		return
	}
	p := t.get(id, now)
	p.Weapon = weapon
	p.LastUpdate = now
}

// Evict removes a record immediately, bypassing the staleness window.
func (t *PlayerTable) Evict(id session.ClientID) bool {
	if _, has := t.players[id]; !has {
		return false
	}
	delete(t.players, id)
	t.log.Debug("Evicted remote player record", zap.Uint16("clientId", uint16(id)))
	return true
}

// Tick advances every record's displayed state by dt seconds and evicts
// records whose last update is older than the staleness window. Evicted ids
// are returned so the application can release their presentation resources.
func (t *PlayerTable) Tick(now time.Time, dt float64) []session.ClientID {
	alpha := smoothingAlpha(t.cfg.SmoothingRate, dt)

	var evicted []session.ClientID
	for id, p := range t.players {
		if now.Sub(p.LastUpdate) > t.cfg.Timeout {
			delete(t.players, id)
			evicted = append(evicted, id)
			t.log.Info("Remote player timed out", zap.Uint16("clientId", uint16(id)))
			continue
		}

		p.RenderPos = approach(p.RenderPos, p.Auth.Pos, alpha)

		p.AnimationChanged = p.Auth.Animation != p.Animation
		if p.AnimationChanged {
			p.Animation = p.Auth.Animation
		}
		p.FacingChanged = p.Auth.FacingLeft != p.FacingLeft
		if p.FacingChanged {
			p.FacingLeft = p.Auth.FacingLeft
		}
	}
	return evicted
}

// Snapshot returns a read-only copy of the table, ordered by id.
func (t *PlayerTable) Snapshot() []RemotePlayer {
	out := make([]RemotePlayer, 0, len(t.players))
	for _, p := range t.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *PlayerTable) Get(id session.ClientID) (RemotePlayer, bool) {
	p, has := t.players[id]
	if !has {
		return RemotePlayer{}, false
	}
	return *p, true
}

func (t *PlayerTable) Len() int { return len(t.players) }
