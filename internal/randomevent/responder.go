// Package randomevent answers transient NPCs that interrupt the agent,
// either dismissing them or collecting the reward they offer.
package randomevent

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/constants"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// Interaction is an NPC engaging some player.
type Interaction struct {
	Source     string `json:"source"`
	InstanceID int64  `json:"instance_id"`
	Target     string `json:"target"`
}

// Trigger is an NPC that counts as a random event. A trigger with a
// RewardItem hands that item over when talked to; using it offers Choices.
type Trigger struct {
	Name       string
	RewardItem string
	Choices    []string
}

func (t Trigger) accepts(choice string) bool {
	if choice == "" {
		return false
	}
	if len(t.Choices) == 0 {
		return true
	}
	for _, c := range t.Choices {
		if strings.EqualFold(c, choice) {
			return true
		}
	}
	return false
}

var skillChoices = []string{
	"attack", "strength", "defence", "ranged", "prayer", "magic",
	"hitpoints", "agility", "herblore", "thieving", "crafting", "fletching",
	"slayer", "mining", "smithing", "fishing", "cooking", "firemaking",
	"woodcutting", "runecraft", "farming", "construction", "hunter",
}

// DefaultTriggers returns the stock random event NPCs.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{Name: "Genie", RewardItem: "lamp", Choices: skillChoices},
		{Name: "Count Check", RewardItem: "lamp", Choices: skillChoices},
		{Name: "Drunken Dwarf"},
		{Name: "Mysterious Old Man"},
		{Name: "Sandwich lady"},
		{Name: "Rick Turpentine"},
		{Name: "Dr Jekyll"},
		{Name: "Cap'n Hand"},
	}
}

// Settings tunes a Responder.
type Settings struct {
	Agent            string
	RewardChoice     string
	CooldownTicks    int64
	IdleTimeoutTicks int
	Triggers         []Trigger
}

// Responder turns interactions into urgent response tasks.
type Responder struct {
	mu sync.Mutex

	agent       string
	choice      string
	cooldown    int64
	idleTimeout int
	triggers    map[string]Trigger
	seen        map[int64]int64 // instance id -> tick handled
}

// NewResponder creates a responder. Zero settings fall back to defaults.
func NewResponder(s Settings) *Responder {
	if s.CooldownTicks <= 0 {
		s.CooldownTicks = constants.RandomEventCooldownTicks
	}
	if s.IdleTimeoutTicks <= 0 {
		s.IdleTimeoutTicks = constants.DefaultWaitTimeoutTicks
	}
	if s.Triggers == nil {
		s.Triggers = DefaultTriggers()
	}

	r := &Responder{
		agent:       s.Agent,
		choice:      s.RewardChoice,
		cooldown:    s.CooldownTicks,
		idleTimeout: s.IdleTimeoutTicks,
		triggers:    make(map[string]Trigger, len(s.Triggers)),
		seen:        make(map[int64]int64),
	}
	for _, t := range s.Triggers {
		r.triggers[strings.ToLower(t.Name)] = t
	}
	return r
}

// SetRewardChoice changes the reward selection for future events.
func (r *Responder) SetRewardChoice(choice string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.choice = choice
}

// OnInteraction queues a response at urgent priority and returns it, or
// returns nil when the interaction is not a random event for this agent or
// its source instance was handled recently.
func (r *Responder) OnInteraction(ev Interaction, tc task.Context) task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !strings.EqualFold(ev.Target, r.agent) {
		return nil
	}
	trig, ok := r.triggers[strings.ToLower(ev.Source)]
	if !ok {
		return nil
	}

	now := tc.CurrentTick()
	r.pruneLocked(now)
	if last, ok := r.seen[ev.InstanceID]; ok && now-last < r.cooldown {
		return nil
	}
	r.seen[ev.InstanceID] = now

	var t task.Task
	if trig.RewardItem != "" && trig.accepts(r.choice) {
		t = r.rewardSequence(ev, trig)
	} else {
		if trig.RewardItem != "" {
			log.Warn().Str("source", ev.Source).Str("choice", r.choice).Msg("No usable reward choice, dismissing")
		}
		t = r.dismiss(ev)
	}

	log.Info().
		Str("source", ev.Source).
		Int64("instance", ev.InstanceID).
		Str("task", t.ID()).
		Str("response", t.Description()).
		Msg("Random event")
	tc.Queue(t, task.PriorityUrgent)
	return t
}

func (r *Responder) dismiss(ev Interaction) task.Task {
	return task.NewCommand("dismiss "+ev.Source, task.PriorityUrgent, task.Command{
		Action: task.ActionDismiss,
		Target: ev.Source,
		Args:   map[string]string{"instance": strconv.FormatInt(ev.InstanceID, 10)},
	}, task.WithActivity(activity.High))
}

func (r *Responder) rewardSequence(ev Interaction, trig Trigger) task.Task {
	item := trig.RewardItem
	talk := task.NewCommand("talk to "+ev.Source, task.PriorityUrgent, task.Command{
		Action: task.ActionTalk,
		Target: ev.Source,
		Args:   map[string]string{"instance": strconv.FormatInt(ev.InstanceID, 10)},
	}, task.WithActivity(activity.High))
	await := task.NewWaitFor("wait for "+item, task.PriorityUrgent, r.idleTimeout, func(tc task.Context) bool {
		return tc.ItemCount(item) > 0
	})
	use := task.NewCommand("use "+item, task.PriorityUrgent, task.Command{
		Action: task.ActionUse,
		Target: item,
	}, task.WithActivity(activity.High))
	pick := task.NewCommand("select "+r.choice, task.PriorityUrgent, task.Command{
		Action: task.ActionSelect,
		Target: strings.ToLower(r.choice),
	}, task.WithActivity(activity.High))
	consumed := task.NewWaitFor(item+" consumed", task.PriorityUrgent, r.idleTimeout, func(tc task.Context) bool {
		return tc.ItemCount(item) == 0
	})

	return task.NewSequence(fmt.Sprintf("%s reward (%s)", ev.Source, r.choice), task.PriorityUrgent,
		talk, await, use, pick, consumed)
}

func (r *Responder) pruneLocked(now int64) {
	for id, at := range r.seen {
		if now-at >= r.cooldown {
			delete(r.seen, id)
		}
	}
}
