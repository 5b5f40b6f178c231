// Package session tracks the local peer's role and the host-side mapping
// between transport peer identities and session-local client ids.
package session

import (
	"go.uber.org/zap"

	"github.com/ambergale/coopsync/pkg/errors"
	"github.com/ambergale/coopsync/pkg/transport"
)

// ClientID is the compact session-local identity of a peer. Id 0 always
// denotes the host itself and never appears in the peer mapping.
type ClientID uint16

const HostID ClientID = 0

type Role uint8

const (
	RoleNone Role = iota
	RoleHost
	RoleClient
)

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseHosting
	PhaseJoining
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseHosting:
		return "Hosting"
	case PhaseJoining:
		return "Joining"
	case PhaseConnected:
		return "Connected"
	}
	return "Unknown"
}

// Session is the process-wide identity state. It is the only writer to the
// peer-identity mapping; all mutation happens on the tick goroutine.
type Session struct {
	log *zap.Logger

	phase   Phase
	role    Role
	localID ClientID

	// Client side: the peer identity of the host we joined.
	hostPeer transport.PeerID

	// Host side: sequential id allocation and the bidirectional mapping.
	nextID ClientID
	byPeer map[transport.PeerID]ClientID
	byID   map[ClientID]transport.PeerID
}

func New(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		log:    logger.With(zap.String("component", "session")),
		nextID: 1,
		byPeer: make(map[transport.PeerID]ClientID),
		byID:   make(map[ClientID]transport.PeerID),
	}
}

func (s *Session) Phase() Phase     { return s.phase }
func (s *Session) Role() Role       { return s.role }
func (s *Session) LocalID() ClientID { return s.localID }

// HostPeer reports the host's peer identity on the client side.
func (s *Session) HostPeer() transport.PeerID { return s.hostPeer }

func (s *Session) IsHostPeer(peer transport.PeerID) bool {
	return s.role == RoleClient && peer == s.hostPeer
}

// StartHosting transitions Idle -> Hosting with local id 0.
func (s *Session) StartHosting() error {
	if s.phase != PhaseIdle {
		return &errors.InvalidSessionState{Operation: "StartHosting", State: s.phase.String()}
	}
	s.phase = PhaseHosting
	s.role = RoleHost
	s.localID = HostID
	s.log.Info("Hosting started")
	return nil
}

// BeginJoin transitions Idle -> Joining toward the target host peer.
func (s *Session) BeginJoin(target transport.PeerID) error {
	if s.phase != PhaseIdle {
		return &errors.InvalidSessionState{Operation: "BeginJoin", State: s.phase.String()}
	}
	if target == "" {
		return &errors.UnmappedPeer{Peer: ""}
	}
	s.phase = PhaseJoining
	s.role = RoleClient
	s.hostPeer = target
	s.log.Info("Joining session", zap.String("hostPeer", string(target)))
	return nil
}

// CompleteJoin accepts the host-assigned id, finishing Joining -> Connected.
func (s *Session) CompleteJoin(assigned ClientID) error {
	if s.phase != PhaseJoining {
		return &errors.InvalidSessionState{Operation: "CompleteJoin", State: s.phase.String()}
	}
	if assigned == HostID {
		return &errors.UnmappedClientId{Id: uint16(assigned)}
	}
	s.phase = PhaseConnected
	s.localID = assigned
	s.log.Info("Join complete", zap.Uint16("clientId", uint16(assigned)))
	return nil
}

// AssignID allocates (or returns) the client id for a peer. Repeated login
// requests from a mapped peer are idempotent and never reallocate.
func (s *Session) AssignID(peer transport.PeerID) (ClientID, bool, error) {
	if s.role != RoleHost {
		return 0, false, &errors.InvalidSessionState{Operation: "AssignID", State: s.phase.String()}
	}
	if id, has := s.byPeer[peer]; has {
		return id, false, nil
	}

	id := s.nextID
	s.nextID++
	s.byPeer[peer] = id
	s.byID[id] = peer
	s.log.Info("Assigned client id", zap.String("peer", string(peer)), zap.Uint16("clientId", uint16(id)))
	return id, true, nil
}

func (s *Session) IDFor(peer transport.PeerID) (ClientID, bool) {
	id, has := s.byPeer[peer]
	return id, has
}

func (s *Session) PeerFor(id ClientID) (transport.PeerID, bool) {
	peer, has := s.byID[id]
	return peer, has
}

// RemovePeer drops the mapping entry for a departed peer, reporting the id
// it held.
func (s *Session) RemovePeer(peer transport.PeerID) (ClientID, bool) {
	id, has := s.byPeer[peer]
	if !has {
		return 0, false
	}
	delete(s.byPeer, peer)
	delete(s.byID, id)
	s.log.Info("Removed peer mapping", zap.String("peer", string(peer)), zap.Uint16("clientId", uint16(id)))
	return id, true
}

// ClientIDs lists the mapped client ids in no particular order.
func (s *Session) ClientIDs() []ClientID {
	ids := make([]ClientID, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) PeerCount() int { return len(s.byPeer) }

// Reset tears the session back to Idle, clearing the mapping and role.
func (s *Session) Reset() {
	s.phase = PhaseIdle
	s.role = RoleNone
	s.localID = HostID
	s.hostPeer = ""
	s.nextID = 1
	s.byPeer = make(map[transport.PeerID]ClientID)
	s.byID = make(map[ClientID]transport.PeerID)
	s.log.Info("Session reset")
}
