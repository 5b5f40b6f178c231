package session

import (
	"testing"

	cerr "github.com/ambergale/coopsync/pkg/errors"
	"github.com/ambergale/coopsync/pkg/transport"
)

func TestStateMachine(t *testing.T) {
	t.Run("hosting", func(t *testing.T) {
		s := New(nil)
		if err := s.StartHosting(); err != nil {
			t.Fatalf("StartHosting failed: %v", err)
		}
		if s.Phase() != PhaseHosting || s.Role() != RoleHost || s.LocalID() != HostID {
			t.Fatalf("unexpected state after StartHosting: phase=%v role=%v id=%d", s.Phase(), s.Role(), s.LocalID())
		}
		if err := s.StartHosting(); err == nil {
			t.Fatalf("expected StartHosting to fail while active")
		}
		if err := s.BeginJoin("somewhere"); err == nil {
			t.Fatalf("expected BeginJoin to fail while hosting")
		}
	})

	t.Run("joining", func(t *testing.T) {
		s := New(nil)
		if err := s.BeginJoin("host-peer"); err != nil {
			t.Fatalf("BeginJoin failed: %v", err)
		}
		if s.Phase() != PhaseJoining || s.Role() != RoleClient {
			t.Fatalf("unexpected state after BeginJoin: phase=%v role=%v", s.Phase(), s.Role())
		}
		if !s.IsHostPeer("host-peer") {
			t.Fatalf("expected host-peer to be recognized as the host")
		}
		if err := s.CompleteJoin(4); err != nil {
			t.Fatalf("CompleteJoin failed: %v", err)
		}
		if s.Phase() != PhaseConnected || s.LocalID() != 4 {
			t.Fatalf("unexpected state after CompleteJoin: phase=%v id=%d", s.Phase(), s.LocalID())
		}
	})

	t.Run("join target must be valid", func(t *testing.T) {
		s := New(nil)
		if err := s.BeginJoin(""); err == nil {
			t.Fatalf("expected BeginJoin with empty target to fail")
		}
	})

	t.Run("login response with host id is rejected", func(t *testing.T) {
		s := New(nil)
		if err := s.BeginJoin("host-peer"); err != nil {
			t.Fatalf("BeginJoin failed: %v", err)
		}
		if err := s.CompleteJoin(HostID); err == nil {
			t.Fatalf("expected CompleteJoin(0) to fail")
		}
	})

	t.Run("reset returns to idle", func(t *testing.T) {
		s := New(nil)
		if err := s.StartHosting(); err != nil {
			t.Fatalf("StartHosting failed: %v", err)
		}
		if _, _, err := s.AssignID("p1"); err != nil {
			t.Fatalf("AssignID failed: %v", err)
		}
		s.Reset()
		if s.Phase() != PhaseIdle || s.Role() != RoleNone || s.PeerCount() != 0 {
			t.Fatalf("unexpected state after Reset")
		}
		if err := s.StartHosting(); err != nil {
			t.Fatalf("StartHosting after Reset failed: %v", err)
		}
	})
}

func TestIDAssignment(t *testing.T) {
	s := New(nil)
	if err := s.StartHosting(); err != nil {
		t.Fatalf("StartHosting failed: %v", err)
	}

	t.Run("sequential allocation in request order", func(t *testing.T) {
		for i, peer := range []transport.PeerID{"peer-1", "peer-2", "peer-3"} {
			id, isNew, err := s.AssignID(peer)
			if err != nil {
				t.Fatalf("AssignID failed: %v", err)
			}
			if !isNew {
				t.Fatalf("expected fresh allocation for %s", peer)
			}
			if id != ClientID(i+1) {
				t.Fatalf("expected id %d for %s, got %d", i+1, peer, id)
			}
		}
	})

	t.Run("repeated login is idempotent", func(t *testing.T) {
		id, isNew, err := s.AssignID("peer-2")
		if err != nil {
			t.Fatalf("AssignID failed: %v", err)
		}
		if isNew {
			t.Fatalf("expected repeat request to reuse the mapping")
		}
		if id != 2 {
			t.Fatalf("expected id 2 for repeat request, got %d", id)
		}
	})

	t.Run("id zero never appears in the mapping", func(t *testing.T) {
		for _, id := range s.ClientIDs() {
			if id == HostID {
				t.Fatalf("host id found in peer mapping")
			}
		}
		if _, has := s.PeerFor(HostID); has {
			t.Fatalf("host id resolvable to a peer")
		}
	})

	t.Run("bidirectional lookup", func(t *testing.T) {
		id, has := s.IDFor("peer-3")
		if !has || id != 3 {
			t.Fatalf("IDFor(peer-3) = %d, %v", id, has)
		}
		peer, has := s.PeerFor(3)
		if !has || peer != "peer-3" {
			t.Fatalf("PeerFor(3) = %q, %v", peer, has)
		}
	})

	t.Run("removal drops both directions and ids are not reused", func(t *testing.T) {
		id, has := s.RemovePeer("peer-1")
		if !has || id != 1 {
			t.Fatalf("RemovePeer returned %d, %v", id, has)
		}
		if _, has := s.IDFor("peer-1"); has {
			t.Fatalf("peer-1 still mapped")
		}
		if _, has := s.PeerFor(1); has {
			t.Fatalf("id 1 still mapped")
		}
		if _, has := s.RemovePeer("peer-1"); has {
			t.Fatalf("second removal should be a no-op")
		}

		id, isNew, err := s.AssignID("peer-4")
		if err != nil || !isNew {
			t.Fatalf("AssignID failed: %v", err)
		}
		if id != 4 {
			t.Fatalf("expected monotonic id 4, got %d", id)
		}
	})

	t.Run("clients cannot assign ids", func(t *testing.T) {
		c := New(nil)
		if err := c.BeginJoin("host-peer"); err != nil {
			t.Fatalf("BeginJoin failed: %v", err)
		}
		if _, _, err := c.AssignID("someone"); err == nil {
			t.Fatalf("expected AssignID to fail for a client")
		}
	})
}

func TestAssignIDErrorType(t *testing.T) {
	c := New(nil)
	_, _, err := c.AssignID("someone")
	if err == nil {
		t.Fatalf("expected error for idle session")
	}
	if _, ok := err.(*cerr.InvalidSessionState); !ok {
		t.Fatalf("expected InvalidSessionState, got %T", err)
	}
}
