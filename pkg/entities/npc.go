package entities

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ambergale/coopsync/pkg/packets"
	"github.com/ambergale/coopsync/pkg/wire"
)

// RemoteEnemy mirrors one host-simulated enemy.
type RemoteEnemy struct {
	ID         uint16
	Room       string
	Pos        wire.Vec2
	Vel        wire.Vec2
	RenderPos  wire.Vec2
	FacingLeft bool
	Animation  string
	Health     int32
	LastUpdate time.Time
}

type EnemyTable struct {
	log     *zap.Logger
	cfg     Config
	enemies map[uint16]*RemoteEnemy
}

func NewEnemyTable(cfg Config, logger *zap.Logger) *EnemyTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnemyTable{
		log:     logger.With(zap.String("table", "enemies")),
		cfg:     cfg,
		enemies: make(map[uint16]*RemoteEnemy),
	}
}

func (t *EnemyTable) Apply(u *packets.EnemyUpdate, now time.Time) {
	e, has := t.enemies[u.EnemyId]
	if !has {
		e = &RemoteEnemy{ID: u.EnemyId, RenderPos: u.Pos}
		t.enemies[u.EnemyId] = e
	}
	e.Room = u.Room
	e.Pos = u.Pos
	e.Vel = u.Vel
	e.FacingLeft = u.FacingLeft
	e.Animation = u.Animation
	e.Health = u.Health
	e.LastUpdate = now
}

func (t *EnemyTable) Evict(id uint16) bool {
	if _, has := t.enemies[id]; !has {
		return false
	}
	delete(t.enemies, id)
	return true
}

func (t *EnemyTable) Tick(now time.Time, dt float64) []uint16 {
	alpha := smoothingAlpha(t.cfg.SmoothingRate, dt)

	var evicted []uint16
	for id, e := range t.enemies {
		if now.Sub(e.LastUpdate) > t.cfg.Timeout {
			delete(t.enemies, id)
			evicted = append(evicted, id)
			continue
		}
		e.RenderPos = approach(e.RenderPos, e.Pos, alpha)
	}
	return evicted
}

func (t *EnemyTable) Snapshot() []RemoteEnemy {
	out := make([]RemoteEnemy, 0, len(t.enemies))
	for _, e := range t.enemies {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *EnemyTable) Len() int { return len(t.enemies) }

// RemoteProjectile mirrors one host-simulated projectile.
type RemoteProjectile struct {
	ID         uint16
	Room       string
	Pos        wire.Vec3
	Vel        wire.Vec3
	RenderPos  wire.Vec3
	LastUpdate time.Time
}

type ProjectileTable struct {
	log         *zap.Logger
	cfg         Config
	projectiles map[uint16]*RemoteProjectile
}

func NewProjectileTable(cfg Config, logger *zap.Logger) *ProjectileTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectileTable{
		log:         logger.With(zap.String("table", "projectiles")),
		cfg:         cfg,
		projectiles: make(map[uint16]*RemoteProjectile),
	}
}

func (t *ProjectileTable) Apply(u *packets.ProjectileUpdate, now time.Time) {
	p, has := t.projectiles[u.ProjectileId]
	if !has {
		p = &RemoteProjectile{ID: u.ProjectileId, RenderPos: u.Pos}
		t.projectiles[u.ProjectileId] = p
	}
	p.Room = u.Room
	p.Pos = u.Pos
	p.Vel = u.Vel
	p.LastUpdate = now
}

func (t *ProjectileTable) Evict(id uint16) bool {
	if _, has := t.projectiles[id]; !has {
		return false
	}
	delete(t.projectiles, id)
	return true
}

func (t *ProjectileTable) Tick(now time.Time, dt float64) []uint16 {
	alpha := smoothingAlpha(t.cfg.SmoothingRate, dt)

	var evicted []uint16
	for id, p := range t.projectiles {
		if now.Sub(p.LastUpdate) > t.cfg.Timeout {
			delete(t.projectiles, id)
			evicted = append(evicted, id)
			continue
		}
		p.RenderPos = approach3(p.RenderPos, p.Pos, alpha)
	}
	return evicted
}

func (t *ProjectileTable) Snapshot() []RemoteProjectile {
	out := make([]RemoteProjectile, 0, len(t.projectiles))
	for _, p := range t.projectiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *ProjectileTable) Len() int { return len(t.projectiles) }
