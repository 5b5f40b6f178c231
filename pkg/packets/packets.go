// Package packets defines the message taxonomy exchanged between host and
// clients, and the encoding of each payload on top of the wire field codec.
//
// A packet on the wire is a single kind byte followed by the payload fields
// in declared order. Two disjoint enumerations share the byte space: the
// receiver always interprets the kind byte against the enumeration matching
// the sender's role (a host reads client kinds, a client reads host kinds).
// There is no version field; the kind-to-schema mapping is append-only and
// existing fields must never be reordered.
package packets

import (
	"github.com/ambergale/coopsync/pkg/errors"
	"github.com/ambergale/coopsync/pkg/wire"
)

type ClientKind uint8

const (
	ClientKindLoginRequest ClientKind = 0x01
	ClientKindPlayerUpdate ClientKind = 0x02
	ClientKindRoomEnter    ClientKind = 0x03
	ClientKindWeaponSwitch ClientKind = 0x04
	ClientKindChat         ClientKind = 0x05
	ClientKindDisconnect   ClientKind = 0x06
)

func (k ClientKind) String() string {
	switch k {
	case ClientKindLoginRequest:
		return "LoginRequest"
	case ClientKindPlayerUpdate:
		return "PlayerUpdate"
	case ClientKindRoomEnter:
		return "RoomEnter"
	case ClientKindWeaponSwitch:
		return "WeaponSwitch"
	case ClientKindChat:
		return "Chat"
	case ClientKindDisconnect:
		return "Disconnect"
	}
	return "Unknown"
}

// Reliable reports the transport delivery hint for the kind. Continuous pose
// updates tolerate loss; everything structural does not.
func (k ClientKind) Reliable() bool {
	return k != ClientKindPlayerUpdate
}

type HostKind uint8

const (
	HostKindLoginResponse    HostKind = 0x01
	HostKindPlayerConnect    HostKind = 0x02
	HostKindPlayerDisconnect HostKind = 0x03
	HostKindPlayerUpdate     HostKind = 0x04
	HostKindRoomUpdate       HostKind = 0x05
	HostKindEnemyUpdate      HostKind = 0x06
	HostKindItemPickup       HostKind = 0x07
	HostKindChat             HostKind = 0x08
	HostKindServerSettings   HostKind = 0x09
	HostKindProjectileUpdate HostKind = 0x0A
	HostKindWeaponSwitch     HostKind = 0x0B
)

func (k HostKind) String() string {
	switch k {
	case HostKindLoginResponse:
		return "LoginResponse"
	case HostKindPlayerConnect:
		return "PlayerConnect"
	case HostKindPlayerDisconnect:
		return "PlayerDisconnect"
	case HostKindPlayerUpdate:
		return "PlayerUpdate"
	case HostKindRoomUpdate:
		return "RoomUpdate"
	case HostKindEnemyUpdate:
		return "EnemyUpdate"
	case HostKindItemPickup:
		return "ItemPickup"
	case HostKindChat:
		return "Chat"
	case HostKindServerSettings:
		return "ServerSettings"
	case HostKindProjectileUpdate:
		return "ProjectileUpdate"
	case HostKindWeaponSwitch:
		return "WeaponSwitch"
	}
	return "Unknown"
}

func (k HostKind) Reliable() bool {
	switch k {
	case HostKindPlayerUpdate, HostKindEnemyUpdate, HostKindProjectileUpdate:
		return false
	}
	return true
}

// ClientPacket is the closed set of client-originated payloads. The relay
// switches over it exhaustively.
type ClientPacket interface {
	Kind() ClientKind
	encode(w *wire.Writer) error
	decode(r *wire.Reader) error
}

// HostPacket is the closed set of host-originated payloads.
type HostPacket interface {
	Kind() HostKind
	encode(w *wire.Writer) error
	decode(r *wire.Reader) error
}

// EncodeClient renders a client-originated packet: kind byte then payload.
func EncodeClient(p ClientPacket) ([]byte, error) {
	w := &wire.Writer{}
	w.PutUint8(uint8(p.Kind()))
	if err := p.encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeHost renders a host-originated packet: kind byte then payload.
func EncodeHost(p HostPacket) ([]byte, error) {
	w := &wire.Writer{}
	w.PutUint8(uint8(p.Kind()))
	if err := p.encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeClient parses bytes received by a host. Unknown kinds, truncated
// payloads and trailing garbage are all decode errors; the caller drops the
// packet and carries on.
func DecodeClient(buf []byte) (ClientPacket, error) {
	if len(buf) == 0 {
		return nil, &errors.EmptyPacket{}
	}

	var p ClientPacket
	switch ClientKind(buf[0]) {
	case ClientKindLoginRequest:
		p = &LoginRequest{}
	case ClientKindPlayerUpdate:
		p = &PlayerUpdate{}
	case ClientKindRoomEnter:
		p = &RoomEnter{}
	case ClientKindWeaponSwitch:
		p = &WeaponSwitch{}
	case ClientKindChat:
		p = &Chat{}
	case ClientKindDisconnect:
		p = &Disconnect{}
	default:
		return nil, &errors.UnknownPacketKind{Direction: "client", KindByte: buf[0]}
	}

	r := wire.NewReader(buf[1:])
	if err := p.decode(r); err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, &errors.TrailingBytes{PacketName: p.Kind().String(), Remaining: r.Remaining()}
	}
	return p, nil
}

// DecodeHost parses bytes received by a client.
func DecodeHost(buf []byte) (HostPacket, error) {
	if len(buf) == 0 {
		return nil, &errors.EmptyPacket{}
	}

	var p HostPacket
	switch HostKind(buf[0]) {
	case HostKindLoginResponse:
		p = &LoginResponse{}
	case HostKindPlayerConnect:
		p = &PlayerConnect{}
	case HostKindPlayerDisconnect:
		p = &PlayerDisconnect{}
	case HostKindPlayerUpdate:
		p = &HostPlayerUpdate{}
	case HostKindRoomUpdate:
		p = &RoomUpdate{}
	case HostKindEnemyUpdate:
		p = &EnemyUpdate{}
	case HostKindItemPickup:
		p = &ItemPickup{}
	case HostKindChat:
		p = &HostChat{}
	case HostKindServerSettings:
		p = &ServerSettings{}
	case HostKindProjectileUpdate:
		p = &ProjectileUpdate{}
	case HostKindWeaponSwitch:
		p = &HostWeaponSwitch{}
	default:
		return nil, &errors.UnknownPacketKind{Direction: "host", KindByte: buf[0]}
	}

	r := wire.NewReader(buf[1:])
	if err := p.decode(r); err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, &errors.TrailingBytes{PacketName: p.Kind().String(), Remaining: r.Remaining()}
	}
	return p, nil
}
