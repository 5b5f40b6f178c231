package peer

import (
	"testing"
	"time"

	"github.com/ambergale/coopsync/pkg/entities"
	"github.com/ambergale/coopsync/pkg/packets"
	"github.com/ambergale/coopsync/pkg/session"
	"github.com/ambergale/coopsync/pkg/transport"
	"github.com/ambergale/coopsync/pkg/wire"
)

const tickDt = 1.0 / 60

type harness struct {
	hub  *transport.Hub
	host *Manager
	all  []*Manager
	now  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hub := transport.NewHub()
	host := NewManager(optsNamed("keeper"), hub.Attach("host"), nil, nil)
	if err := host.StartHosting(); err != nil {
		t.Fatalf("StartHosting failed: %v", err)
	}
	return &harness{hub: hub, host: host, all: []*Manager{host}, now: time.Unix(5000, 0)}
}

func optsNamed(name string) Options {
	opts := DefaultOptions()
	opts.Name = name
	return opts
}

// addClient attaches a new endpoint, dials the host, and starts the join.
func (h *harness) addClient(t *testing.T, name string) *Manager {
	t.Helper()
	ep := h.hub.Attach(transport.PeerID(name))
	if err := ep.Dial("host"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	m := NewManager(optsNamed(name), ep, nil, nil)
	if err := m.Join("host", h.now); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	h.all = append(h.all, m)
	return m
}

// settle runs enough ticks for in-flight handshakes and relays to land.
func (h *harness) settle() {
	for i := 0; i < 4; i++ {
		for _, m := range h.all {
			m.Update(h.now, tickDt)
		}
		h.now = h.now.Add(time.Second / 60)
	}
}

// advance jumps the clock and runs one tick on every manager.
func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
	for _, m := range h.all {
		m.Update(h.now, tickDt)
	}
}

func TestJoinHandshake(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	h.settle()
	c2 := h.addClient(t, "beta")
	h.settle()

	t.Run("join completes with a host-assigned id", func(t *testing.T) {
		if c1.Phase() != session.PhaseConnected {
			t.Fatalf("c1 phase = %v", c1.Phase())
		}
		if c1.LocalID() != 1 || c2.LocalID() != 2 {
			t.Fatalf("expected ids 1 and 2, got %d and %d", c1.LocalID(), c2.LocalID())
		}
	})

	t.Run("host settings are adopted", func(t *testing.T) {
		settings, ok := c1.Settings()
		if !ok {
			t.Fatalf("settings never arrived")
		}
		if settings.EntityTimeoutMillis != 5000 {
			t.Fatalf("unexpected settings: %+v", settings)
		}
	})

	t.Run("roster replay covers the host and earlier clients", func(t *testing.T) {
		players := c2.Players()
		byID := map[session.ClientID]string{}
		for _, p := range players {
			byID[p.ID] = p.Name
		}
		if byID[session.HostID] != "keeper" {
			t.Fatalf("host missing from roster: %v", byID)
		}
		if byID[1] != "alpha" {
			t.Fatalf("earlier client missing from roster: %v", byID)
		}
	})

	t.Run("host tracks connected clients", func(t *testing.T) {
		if got := len(h.host.ConnectedClients()); got != 2 {
			t.Fatalf("expected 2 client records, got %d", got)
		}
	})
}

func TestStateFanOut(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	c2 := h.addClient(t, "beta")
	h.settle()

	for _, m := range h.all {
		if err := m.EnterRoom("R1", wire.Vec2{}, h.now); err != nil {
			t.Fatalf("room enter failed: %v", err)
		}
	}
	h.settle()

	c1.SetLocalState(packets.PlayerState{Pos: wire.Vec2{X: 42, Y: 7}, Animation: "run", Room: "R1"})
	h.settle()

	t.Run("peer in the same room sees the update", func(t *testing.T) {
		p, ok := get(c2.Players(), 1)
		if !ok {
			t.Fatalf("c2 has no record for c1: %+v", c2.Players())
		}
		if p.Auth.Pos.X != 42 || p.Auth.Animation != "run" {
			t.Fatalf("authoritative state did not propagate: %+v", p.Auth)
		}
	})

	t.Run("host sees the update", func(t *testing.T) {
		p, ok := get(h.host.Players(), 1)
		if !ok || p.Auth.Pos.X != 42 {
			t.Fatalf("host record wrong: %+v", p)
		}
	})

	t.Run("host pose reaches clients", func(t *testing.T) {
		h.host.SetLocalState(packets.PlayerState{Pos: wire.Vec2{X: -5, Y: 0}, Room: "R1"})
		h.settle()
		p, ok := get(c1.Players(), session.HostID)
		if !ok || p.Auth.Pos.X != -5 {
			t.Fatalf("host pose missing on c1: %+v", p)
		}
	})
}

func get(players []entities.RemotePlayer, id session.ClientID) (entities.RemotePlayer, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return entities.RemotePlayer{}, false
}

func TestMaterialChangeFilter(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	h.addClient(t, "beta")
	h.settle()
	for _, m := range h.all {
		if err := m.EnterRoom("R1", wire.Vec2{}, h.now); err != nil {
			t.Fatalf("room enter failed: %v", err)
		}
	}
	h.settle()

	c1.SetLocalState(packets.PlayerState{Pos: wire.Vec2{X: 10, Y: 10}, Room: "R1"})
	h.settle()
	p, ok := get(h.host.Players(), 1)
	if !ok || p.Auth.Pos.X != 10 {
		t.Fatalf("baseline update missing: %+v", p)
	}

	t.Run("sub-epsilon movement is not sent", func(t *testing.T) {
		c1.SetLocalState(packets.PlayerState{Pos: wire.Vec2{X: 10.005, Y: 10}, Room: "R1"})
		h.settle()
		p, _ := get(h.host.Players(), 1)
		if p.Auth.Pos.X != 10 {
			t.Fatalf("sub-epsilon delta was sent: %v", p.Auth.Pos.X)
		}
	})

	t.Run("presentation change is sent regardless of distance", func(t *testing.T) {
		c1.SetLocalState(packets.PlayerState{Pos: wire.Vec2{X: 10.005, Y: 10}, Animation: "roll", Room: "R1"})
		h.settle()
		p, _ := get(h.host.Players(), 1)
		if p.Auth.Animation != "roll" {
			t.Fatalf("animation change was filtered: %+v", p.Auth)
		}
	})
}

func TestTimeoutEviction(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	c2 := h.addClient(t, "beta")
	h.settle()
	for _, m := range h.all {
		if err := m.EnterRoom("R1", wire.Vec2{}, h.now); err != nil {
			t.Fatalf("room enter failed: %v", err)
		}
	}
	c1.SetLocalState(packets.PlayerState{Pos: wire.Vec2{X: 1, Y: 1}, Room: "R1"})
	h.settle()
	if _, ok := get(c2.Players(), 1); !ok {
		t.Fatalf("c1 never appeared on c2")
	}

	// c1 goes silent. Just inside the staleness window it must survive;
	// just past it, it must be gone.
	h.advance(4 * time.Second)
	if _, ok := get(c2.Players(), 1); !ok {
		t.Fatalf("record evicted inside the staleness window")
	}
	h.advance(5100 * time.Millisecond)
	if _, ok := get(c2.Players(), 1); ok {
		t.Fatalf("silent record survived past the staleness window")
	}
}

func TestHostDisconnectTearsDownClient(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	h.settle()
	if c1.Phase() != session.PhaseConnected {
		t.Fatalf("setup: c1 not connected")
	}

	h.hub.Endpoint("host").Close()
	c1.Update(h.now, tickDt)

	if c1.Phase() != session.PhaseIdle {
		t.Fatalf("expected teardown to Idle, got %v", c1.Phase())
	}
	if len(c1.Players()) != 0 {
		t.Fatalf("entity tables survived teardown: %+v", c1.Players())
	}
}

func TestLeaveNotifiesPeers(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	c2 := h.addClient(t, "beta")
	h.settle()

	c1.Leave()
	h.settle()

	if c1.Phase() != session.PhaseIdle {
		t.Fatalf("leaver not reset: %v", c1.Phase())
	}
	if _, ok := get(c2.Players(), 1); ok {
		t.Fatalf("peer still sees the departed client")
	}
	if got := len(h.host.ConnectedClients()); got != 1 {
		t.Fatalf("host still holds the departed record: %d", got)
	}
}

func TestChatAndPickups(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	c2 := h.addClient(t, "beta")
	h.settle()
	for _, m := range h.all {
		m.DrainChat()
	}

	if err := c1.SendChat("ready when you are"); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	h.settle()

	t.Run("chat crosses the session", func(t *testing.T) {
		for name, m := range map[string]*Manager{"host": h.host, "c2": c2} {
			lines := m.DrainChat()
			if len(lines) != 1 || lines[0].Text != "ready when you are" {
				t.Fatalf("%s chat log wrong: %+v", name, lines)
			}
			if lines[0].Name != "alpha" {
				t.Fatalf("%s saw unresolved sender: %+v", name, lines[0])
			}
		}
		if lines := c1.DrainChat(); len(lines) != 1 {
			t.Fatalf("sender's own log wrong: %+v", lines)
		}
	})

	t.Run("pickups reach every other client", func(t *testing.T) {
		if err := h.host.PublishItemPickup(&packets.ItemPickup{ClientId: 1, ItemId: 55, Room: "R1"}); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		h.settle()
		got := c2.DrainPickups()
		if len(got) != 1 || got[0].ItemId != 55 {
			t.Fatalf("pickup missing on c2: %+v", got)
		}
		if got := c1.DrainPickups(); len(got) != 0 {
			t.Fatalf("claimant received its own pickup: %+v", got)
		}
	})
}

func TestGarbageTrafficIsDropped(t *testing.T) {
	h := newHarness(t)
	h.addClient(t, "alpha")
	h.settle()

	rogue := h.hub.Attach("rogue")
	if err := rogue.Dial("host"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	rogue.Send("host", []byte{0xFF, 0x01, 0x02}, true)
	h.settle()

	if got := len(h.host.ConnectedClients()); got != 1 {
		t.Fatalf("garbage changed the client set: %d", got)
	}
}

func TestPublishRequiresHostRole(t *testing.T) {
	h := newHarness(t)
	c1 := h.addClient(t, "alpha")
	h.settle()

	if err := c1.PublishEnemy(&packets.EnemyUpdate{EnemyId: 1}); err == nil {
		t.Fatalf("expected client-side publish to fail")
	}
}
