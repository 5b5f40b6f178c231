package packets

import "github.com/ambergale/coopsync/pkg/wire"

// PlayerState is the continuous pose body shared by client- and host-side
// player updates. Room and Animation encode the empty string when absent.
type PlayerState struct {
	Pos        wire.Vec2
	Vel        wire.Vec2
	AimAngle   float32
	FacingLeft bool
	Grounded   bool
	Rolling    bool
	Shooting   bool
	Animation  string
	Room       string
}

func (s *PlayerState) encode(w *wire.Writer) error {
	w.PutVec2(s.Pos)
	w.PutVec2(s.Vel)
	w.PutFloat32(s.AimAngle)
	w.PutBool(s.FacingLeft)
	w.PutBool(s.Grounded)
	w.PutBool(s.Rolling)
	w.PutBool(s.Shooting)
	if err := w.PutString("PlayerState.Animation", s.Animation); err != nil {
		return err
	}
	return w.PutString("PlayerState.Room", s.Room)
}

func (s *PlayerState) decode(r *wire.Reader) error {
	var err error
	if s.Pos, err = r.Vec2("PlayerState.Pos"); err != nil {
		return err
	}
	if s.Vel, err = r.Vec2("PlayerState.Vel"); err != nil {
		return err
	}
	if s.AimAngle, err = r.Float32("PlayerState.AimAngle"); err != nil {
		return err
	}
	if s.FacingLeft, err = r.Bool("PlayerState.FacingLeft"); err != nil {
		return err
	}
	if s.Grounded, err = r.Bool("PlayerState.Grounded"); err != nil {
		return err
	}
	if s.Rolling, err = r.Bool("PlayerState.Rolling"); err != nil {
		return err
	}
	if s.Shooting, err = r.Bool("PlayerState.Shooting"); err != nil {
		return err
	}
	if s.Animation, err = r.String("PlayerState.Animation"); err != nil {
		return err
	}
	s.Room, err = r.String("PlayerState.Room")
	return err
}

// LoginRequest opens the identity handshake with the host.
type LoginRequest struct {
	Name string
}

func (p *LoginRequest) Kind() ClientKind { return ClientKindLoginRequest }

func (p *LoginRequest) encode(w *wire.Writer) error {
	return w.PutString("LoginRequest.Name", p.Name)
}

func (p *LoginRequest) decode(r *wire.Reader) error {
	var err error
	p.Name, err = r.String("LoginRequest.Name")
	return err
}

// PlayerUpdate carries the sender's current pose. Unreliable.
type PlayerUpdate struct {
	State PlayerState
}

func (p *PlayerUpdate) Kind() ClientKind { return ClientKindPlayerUpdate }

func (p *PlayerUpdate) encode(w *wire.Writer) error {
	return p.State.encode(w)
}

func (p *PlayerUpdate) decode(r *wire.Reader) error {
	return p.State.decode(r)
}

// RoomEnter announces a room transition with the entry position.
type RoomEnter struct {
	Room string
	Pos  wire.Vec2
}

func (p *RoomEnter) Kind() ClientKind { return ClientKindRoomEnter }

func (p *RoomEnter) encode(w *wire.Writer) error {
	if err := w.PutString("RoomEnter.Room", p.Room); err != nil {
		return err
	}
	w.PutVec2(p.Pos)
	return nil
}

func (p *RoomEnter) decode(r *wire.Reader) error {
	var err error
	if p.Room, err = r.String("RoomEnter.Room"); err != nil {
		return err
	}
	p.Pos, err = r.Vec2("RoomEnter.Pos")
	return err
}

// WeaponSwitch announces the sender's equipped weapon slot.
type WeaponSwitch struct {
	Weapon uint8
}

func (p *WeaponSwitch) Kind() ClientKind { return ClientKindWeaponSwitch }

func (p *WeaponSwitch) encode(w *wire.Writer) error {
	w.PutUint8(p.Weapon)
	return nil
}

func (p *WeaponSwitch) decode(r *wire.Reader) error {
	var err error
	p.Weapon, err = r.Uint8("WeaponSwitch.Weapon")
	return err
}

type Chat struct {
	Text string
}

func (p *Chat) Kind() ClientKind { return ClientKindChat }

func (p *Chat) encode(w *wire.Writer) error {
	return w.PutString("Chat.Text", p.Text)
}

func (p *Chat) decode(r *wire.Reader) error {
	var err error
	p.Text, err = r.String("Chat.Text")
	return err
}

// Disconnect is the graceful-leave notice. The transport-level disconnect
// event covers the ungraceful path.
type Disconnect struct{}

func (p *Disconnect) Kind() ClientKind { return ClientKindDisconnect }

func (p *Disconnect) encode(*wire.Writer) error { return nil }

func (p *Disconnect) decode(*wire.Reader) error { return nil }
