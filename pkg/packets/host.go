package packets

import "github.com/ambergale/coopsync/pkg/wire"

// LoginResponse completes the handshake with the assigned session-local id.
type LoginResponse struct {
	ClientId uint16
}

func (p *LoginResponse) Kind() HostKind { return HostKindLoginResponse }

func (p *LoginResponse) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	return nil
}

func (p *LoginResponse) decode(r *wire.Reader) error {
	var err error
	p.ClientId, err = r.Uint16("LoginResponse.ClientId")
	return err
}

// PlayerConnect announces a joined client. The host also replays one of
// these per already-connected client to a newcomer so late joiners see the
// full roster.
type PlayerConnect struct {
	ClientId uint16
	Name     string
	Room     string
}

func (p *PlayerConnect) Kind() HostKind { return HostKindPlayerConnect }

func (p *PlayerConnect) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	if err := w.PutString("PlayerConnect.Name", p.Name); err != nil {
		return err
	}
	return w.PutString("PlayerConnect.Room", p.Room)
}

func (p *PlayerConnect) decode(r *wire.Reader) error {
	var err error
	if p.ClientId, err = r.Uint16("PlayerConnect.ClientId"); err != nil {
		return err
	}
	if p.Name, err = r.String("PlayerConnect.Name"); err != nil {
		return err
	}
	p.Room, err = r.String("PlayerConnect.Room")
	return err
}

type PlayerDisconnect struct {
	ClientId uint16
}

func (p *PlayerDisconnect) Kind() HostKind { return HostKindPlayerDisconnect }

func (p *PlayerDisconnect) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	return nil
}

func (p *PlayerDisconnect) decode(r *wire.Reader) error {
	var err error
	p.ClientId, err = r.Uint16("PlayerDisconnect.ClientId")
	return err
}

// HostPlayerUpdate is a relayed pose update prefixed with the origin client
// id. Unreliable.
type HostPlayerUpdate struct {
	ClientId uint16
	State    PlayerState
}

func (p *HostPlayerUpdate) Kind() HostKind { return HostKindPlayerUpdate }

func (p *HostPlayerUpdate) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	return p.State.encode(w)
}

func (p *HostPlayerUpdate) decode(r *wire.Reader) error {
	var err error
	if p.ClientId, err = r.Uint16("HostPlayerUpdate.ClientId"); err != nil {
		return err
	}
	return p.State.decode(r)
}

// RoomUpdate is the relayed form of RoomEnter.
type RoomUpdate struct {
	ClientId uint16
	Room     string
	Pos      wire.Vec2
}

func (p *RoomUpdate) Kind() HostKind { return HostKindRoomUpdate }

func (p *RoomUpdate) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	if err := w.PutString("RoomUpdate.Room", p.Room); err != nil {
		return err
	}
	w.PutVec2(p.Pos)
	return nil
}

func (p *RoomUpdate) decode(r *wire.Reader) error {
	var err error
	if p.ClientId, err = r.Uint16("RoomUpdate.ClientId"); err != nil {
		return err
	}
	if p.Room, err = r.String("RoomUpdate.Room"); err != nil {
		return err
	}
	p.Pos, err = r.Vec2("RoomUpdate.Pos")
	return err
}

// EnemyUpdate carries host-simulated enemy state. Unreliable.
type EnemyUpdate struct {
	EnemyId    uint16
	Room       string
	Pos        wire.Vec2
	Vel        wire.Vec2
	FacingLeft bool
	Animation  string
	Health     int32
}

func (p *EnemyUpdate) Kind() HostKind { return HostKindEnemyUpdate }

func (p *EnemyUpdate) encode(w *wire.Writer) error {
	w.PutUint16(p.EnemyId)
	if err := w.PutString("EnemyUpdate.Room", p.Room); err != nil {
		return err
	}
	w.PutVec2(p.Pos)
	w.PutVec2(p.Vel)
	w.PutBool(p.FacingLeft)
	if err := w.PutString("EnemyUpdate.Animation", p.Animation); err != nil {
		return err
	}
	w.PutInt32(p.Health)
	return nil
}

func (p *EnemyUpdate) decode(r *wire.Reader) error {
	var err error
	if p.EnemyId, err = r.Uint16("EnemyUpdate.EnemyId"); err != nil {
		return err
	}
	if p.Room, err = r.String("EnemyUpdate.Room"); err != nil {
		return err
	}
	if p.Pos, err = r.Vec2("EnemyUpdate.Pos"); err != nil {
		return err
	}
	if p.Vel, err = r.Vec2("EnemyUpdate.Vel"); err != nil {
		return err
	}
	if p.FacingLeft, err = r.Bool("EnemyUpdate.FacingLeft"); err != nil {
		return err
	}
	if p.Animation, err = r.String("EnemyUpdate.Animation"); err != nil {
		return err
	}
	p.Health, err = r.Int32("EnemyUpdate.Health")
	return err
}

// ItemPickup announces that a client claimed a world item.
type ItemPickup struct {
	ClientId uint16
	ItemId   int32
	Room     string
}

func (p *ItemPickup) Kind() HostKind { return HostKindItemPickup }

func (p *ItemPickup) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	w.PutInt32(p.ItemId)
	return w.PutString("ItemPickup.Room", p.Room)
}

func (p *ItemPickup) decode(r *wire.Reader) error {
	var err error
	if p.ClientId, err = r.Uint16("ItemPickup.ClientId"); err != nil {
		return err
	}
	if p.ItemId, err = r.Int32("ItemPickup.ItemId"); err != nil {
		return err
	}
	p.Room, err = r.String("ItemPickup.Room")
	return err
}

// HostChat is a relayed chat line with the origin identity resolved.
type HostChat struct {
	ClientId uint16
	Name     string
	Text     string
}

func (p *HostChat) Kind() HostKind { return HostKindChat }

func (p *HostChat) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	if err := w.PutString("HostChat.Name", p.Name); err != nil {
		return err
	}
	return w.PutString("HostChat.Text", p.Text)
}

func (p *HostChat) decode(r *wire.Reader) error {
	var err error
	if p.ClientId, err = r.Uint16("HostChat.ClientId"); err != nil {
		return err
	}
	if p.Name, err = r.String("HostChat.Name"); err != nil {
		return err
	}
	p.Text, err = r.String("HostChat.Text")
	return err
}

// ServerSettings pushes the host's tunables so both sides agree on bounds
// and staleness windows.
type ServerSettings struct {
	WorldMin            wire.Vec2
	WorldMax            wire.Vec2
	EntityTimeoutMillis int32
}

func (p *ServerSettings) Kind() HostKind { return HostKindServerSettings }

func (p *ServerSettings) encode(w *wire.Writer) error {
	w.PutVec2(p.WorldMin)
	w.PutVec2(p.WorldMax)
	w.PutInt32(p.EntityTimeoutMillis)
	return nil
}

func (p *ServerSettings) decode(r *wire.Reader) error {
	var err error
	if p.WorldMin, err = r.Vec2("ServerSettings.WorldMin"); err != nil {
		return err
	}
	if p.WorldMax, err = r.Vec2("ServerSettings.WorldMax"); err != nil {
		return err
	}
	p.EntityTimeoutMillis, err = r.Int32("ServerSettings.EntityTimeoutMillis")
	return err
}

// HostWeaponSwitch is the relayed form of a client weapon switch.
type HostWeaponSwitch struct {
	ClientId uint16
	Weapon   uint8
}

func (p *HostWeaponSwitch) Kind() HostKind { return HostKindWeaponSwitch }

func (p *HostWeaponSwitch) encode(w *wire.Writer) error {
	w.PutUint16(p.ClientId)
	w.PutUint8(p.Weapon)
	return nil
}

func (p *HostWeaponSwitch) decode(r *wire.Reader) error {
	var err error
	if p.ClientId, err = r.Uint16("HostWeaponSwitch.ClientId"); err != nil {
		return err
	}
	p.Weapon, err = r.Uint8("HostWeaponSwitch.Weapon")
	return err
}

// ProjectileUpdate carries host-simulated projectile state. Position and
// velocity use the 3-component vector so depth-layered shots keep their
// plane. Unreliable.
type ProjectileUpdate struct {
	ProjectileId uint16
	Room         string
	Pos          wire.Vec3
	Vel          wire.Vec3
}

func (p *ProjectileUpdate) Kind() HostKind { return HostKindProjectileUpdate }

func (p *ProjectileUpdate) encode(w *wire.Writer) error {
	w.PutUint16(p.ProjectileId)
	if err := w.PutString("ProjectileUpdate.Room", p.Room); err != nil {
		return err
	}
	w.PutVec3(p.Pos)
	w.PutVec3(p.Vel)
	return nil
}

func (p *ProjectileUpdate) decode(r *wire.Reader) error {
	var err error
	if p.ProjectileId, err = r.Uint16("ProjectileUpdate.ProjectileId"); err != nil {
		return err
	}
	if p.Room, err = r.String("ProjectileUpdate.Room"); err != nil {
		return err
	}
	if p.Pos, err = r.Vec3("ProjectileUpdate.Pos"); err != nil {
		return err
	}
	p.Vel, err = r.Vec3("ProjectileUpdate.Vel")
	return err
}
