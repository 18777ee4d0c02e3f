package randomevent

import (
	"testing"

	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/task"
)

type fakeContext struct {
	tick   int64
	items  map[string]int
	queued map[string]task.Priority
}

func newFakeContext() *fakeContext {
	return &fakeContext{items: map[string]int{}, queued: map[string]task.Priority{}}
}

func (f *fakeContext) CurrentTick() int64        { return f.tick }
func (f *fakeContext) IsIdle() bool              { return true }
func (f *fakeContext) ItemCount(item string) int { return f.items[item] }
func (f *fakeContext) Hitpoints() (int, int)     { return 10, 10 }
func (f *fakeContext) Activity() activity.Type   { return activity.Medium }
func (f *fakeContext) Send(task.Command) error   { return nil }

func (f *fakeContext) Queue(t task.Task, p task.Priority) {
	f.queued[t.ID()] = p
}

func TestOnInteraction_Filters(t *testing.T) {
	r := NewResponder(Settings{Agent: "Zezima"})
	tc := newFakeContext()

	tests := []struct {
		name string
		ev   Interaction
	}{
		{"other player", Interaction{Source: "Genie", InstanceID: 1, Target: "Lynx Titan"}},
		{"ordinary npc", Interaction{Source: "Hans", InstanceID: 2, Target: "Zezima"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.OnInteraction(tt.ev, tc); got != nil {
				t.Errorf("expected no response, got %s", got.Description())
			}
		})
	}
	if len(tc.queued) != 0 {
		t.Errorf("expected nothing queued, got %d", len(tc.queued))
	}
}

func TestOnInteraction_DismissAtUrgent(t *testing.T) {
	r := NewResponder(Settings{Agent: "Zezima"})
	tc := newFakeContext()

	got := r.OnInteraction(Interaction{Source: "drunken dwarf", InstanceID: 7, Target: "zezima"}, tc)
	if got == nil {
		t.Fatal("expected a response")
	}
	cmd := got.(*task.CommandTask).Command()
	if cmd.Action != task.ActionDismiss || cmd.Args["instance"] != "7" {
		t.Errorf("unexpected command %+v", cmd)
	}
	if p, ok := tc.queued[got.ID()]; !ok || p != task.PriorityUrgent {
		t.Errorf("expected response queued at urgent, got %s (queued=%v)", p, ok)
	}
}

func TestOnInteraction_InstanceCooldown(t *testing.T) {
	r := NewResponder(Settings{Agent: "Zezima", CooldownTicks: 10})
	tc := newFakeContext()
	ev := Interaction{Source: "Drunken Dwarf", InstanceID: 7, Target: "Zezima"}

	if r.OnInteraction(ev, tc) == nil {
		t.Fatal("expected first interaction handled")
	}
	tc.tick = 9
	if r.OnInteraction(ev, tc) != nil {
		t.Error("same instance within cooldown must be ignored")
	}
	other := ev
	other.InstanceID = 8
	if r.OnInteraction(other, tc) == nil {
		t.Error("a different instance is not on cooldown")
	}
	tc.tick = 10
	if r.OnInteraction(ev, tc) == nil {
		t.Error("expected instance handled again after cooldown")
	}
}

func TestOnInteraction_RewardSequence(t *testing.T) {
	r := NewResponder(Settings{Agent: "Zezima", RewardChoice: "Prayer", IdleTimeoutTicks: 5})
	tc := newFakeContext()

	got := r.OnInteraction(Interaction{Source: "Genie", InstanceID: 3, Target: "Zezima"}, tc)
	seq, ok := got.(*task.Composite)
	if !ok {
		t.Fatalf("expected a composite, got %T", got)
	}
	if seq.Mode() != task.ModeSequential || seq.Priority() != task.PriorityUrgent {
		t.Errorf("expected urgent sequence, got %s/%s", seq.Mode(), seq.Priority())
	}

	children := seq.Children()
	if len(children) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(children))
	}
	if _, ok := children[1].(*task.WaitFor); !ok {
		t.Errorf("expected a wait for the lamp, got %T", children[1])
	}
	pick := children[3].(*task.CommandTask).Command()
	if pick.Action != task.ActionSelect || pick.Target != "prayer" {
		t.Errorf("unexpected selection %+v", pick)
	}
}

func TestOnInteraction_InvalidChoiceDismisses(t *testing.T) {
	tests := []struct {
		name   string
		choice string
	}{
		{"missing", ""},
		{"unknown skill", "sailing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResponder(Settings{Agent: "Zezima", RewardChoice: tt.choice})
			got := r.OnInteraction(Interaction{Source: "Genie", InstanceID: 3, Target: "Zezima"}, newFakeContext())
			ct, ok := got.(*task.CommandTask)
			if !ok || ct.Command().Action != task.ActionDismiss {
				t.Errorf("expected dismissal, got %T", got)
			}
		})
	}
}

func TestSetRewardChoice(t *testing.T) {
	r := NewResponder(Settings{Agent: "Zezima"})
	r.SetRewardChoice("magic")

	got := r.OnInteraction(Interaction{Source: "Count Check", InstanceID: 1, Target: "Zezima"}, newFakeContext())
	if _, ok := got.(*task.Composite); !ok {
		t.Errorf("expected reward sequence after choice update, got %T", got)
	}
}
