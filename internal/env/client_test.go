package env

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xonecas/zoea-pilot/internal/randomevent"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// fakeEnv accepts one agent, streams observations and records commands.
type fakeEnv struct {
	t        *testing.T
	server   *httptest.Server
	hello    chan HelloMsg
	commands chan CmdMsg
	send     chan Observation
	drop     chan struct{}
}

func newFakeEnv(t *testing.T) *fakeEnv {
	t.Helper()
	f := &fakeEnv{
		t:        t,
		hello:    make(chan HelloMsg, 1),
		commands: make(chan CmdMsg, 16),
		send:     make(chan Observation, 16),
		drop:     make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var hello HelloMsg
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		f.hello <- hello
		if err := conn.WriteJSON(WelcomeMsg{Type: TypeWelcome, AgentID: "A1", TickMs: 600}); err != nil {
			return
		}

		go func() {
			<-f.drop
			_ = conn.Close()
		}()
		go func() {
			for o := range f.send {
				o.Type = TypeObs
				if err := conn.WriteJSON(o); err != nil {
					return
				}
			}
		}()

		for {
			var cmd CmdMsg
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			f.commands <- cmd
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEnv) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	var zero T
	return zero
}

func TestClient_RoundTrip(t *testing.T) {
	f := newFakeEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, f.url(), "Zezima")
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer c.Close()

	if h := receive(t, f.hello); h.Type != TypeHello || h.AgentName != "Zezima" {
		t.Errorf("unexpected hello %+v", h)
	}
	if c.AgentID() != "A1" {
		t.Errorf("expected agent id A1, got %q", c.AgentID())
	}

	f.send <- Observation{
		Tick:         42,
		Hitpoints:    30,
		MaxHitpoints: 99,
		Inventory:    map[string]int{"shark": 3},
		Progress:     map[string]int{"cook": 1},
		Interactions: []randomevent.Interaction{{Source: "Genie", InstanceID: 9, Target: "Zezima"}},
	}
	obs := receive(t, c.Observations())
	if obs.Tick != 42 || obs.Inventory["shark"] != 3 || len(obs.Interactions) != 1 {
		t.Errorf("unexpected observation %+v", obs)
	}

	if err := c.Send(task.Command{Action: task.ActionEat, Target: "shark"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	cmd := receive(t, f.commands)
	if cmd.Type != TypeCmd || cmd.Tick != 42 || cmd.Command.Target != "shark" {
		t.Errorf("unexpected command %+v", cmd)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	f := newFakeEnv(t)
	c, err := Dial(context.Background(), f.url(), "Zezima")
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := c.Send(task.Command{Action: task.ActionClick}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, ok := <-c.Observations(); ok {
		t.Error("expected observations channel closed")
	}
	if c.Err() != nil {
		t.Errorf("local close should not record an error, got %v", c.Err())
	}
}

func TestClient_PeerDisconnect(t *testing.T) {
	f := newFakeEnv(t)
	c, err := Dial(context.Background(), f.url(), "Zezima")
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer c.Close()

	close(f.drop)

	select {
	case _, ok := <-c.Observations():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not notice the disconnect")
	}
	if c.Err() == nil {
		t.Error("expected a connection error")
	}
}

// newWelcomeServer greets every agent and holds the connection until the
// agent hangs up.
func newWelcomeServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var hello HelloMsg
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		if err := conn.WriteJSON(WelcomeMsg{Type: TypeWelcome, AgentID: "A1"}); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_CloseRightAfterDial(t *testing.T) {
	url := newWelcomeServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < 200; i++ {
		c, err := Dial(ctx, url, "Zezima")
		if err != nil {
			t.Fatalf("Dial() error on attempt %d: %v", i, err)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("Close() error on attempt %d: %v", i, err)
		}
		if _, ok := <-c.Observations(); ok {
			t.Fatalf("expected observations closed on attempt %d", i)
		}
	}
}

func TestDial_Refused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/", "Zezima"); err == nil {
		t.Error("expected dial error")
	}
}

func TestSnapshot(t *testing.T) {
	s := NewSnapshot()
	genie := randomevent.Interaction{Source: "Genie", InstanceID: 1, Target: "Zezima"}
	dwarf := randomevent.Interaction{Source: "Drunken Dwarf", InstanceID: 2, Target: "Zezima"}

	fresh := s.Update(Observation{Tick: 1, Idle: true, Interactions: []randomevent.Interaction{genie}})
	if len(fresh) != 1 {
		t.Fatalf("expected genie fresh, got %v", fresh)
	}
	fresh = s.Update(Observation{Tick: 2, Interactions: []randomevent.Interaction{genie, dwarf}})
	if len(fresh) != 1 || fresh[0].InstanceID != 2 {
		t.Errorf("expected only the dwarf fresh, got %v", fresh)
	}

	s.Update(Observation{
		Tick: 3, Hitpoints: 12, MaxHitpoints: 99, Activity: "high",
		Inventory: map[string]int{"lobster": 4}, Progress: map[string]int{"cook": 2},
	})
	if s.CurrentTick() != 3 || s.ItemCount("lobster") != 4 || s.ItemCount("shark") != 0 {
		t.Errorf("unexpected snapshot %+v", s.Observation())
	}
	if cur, max := s.Hitpoints(); cur != 12 || max != 99 {
		t.Errorf("unexpected hitpoints %d/%d", cur, max)
	}
	if v, ok := s.Progress("cook"); !ok || v != 2 {
		t.Errorf("unexpected progress %d %v", v, ok)
	}
	if _, ok := s.Progress("sheep"); ok {
		t.Error("unreported progress key should be absent")
	}
	if s.Activity() != "high" {
		t.Errorf("expected high activity, got %s", s.Activity())
	}

	s.Update(Observation{Tick: 4, Idle: true})
	if s.Activity() != "idle" {
		t.Errorf("expected idle activity, got %s", s.Activity())
	}

	s.Update(Observation{Tick: 5, Idle: true, Activity: "afk_combat"})
	if s.Activity() != "afk_combat" {
		t.Errorf("expected reported activity to win over idle, got %s", s.Activity())
	}
}
