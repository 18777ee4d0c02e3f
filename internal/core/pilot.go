package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/zoea-pilot/internal/config"
	"github.com/xonecas/zoea-pilot/internal/emergency"
	"github.com/xonecas/zoea-pilot/internal/env"
	"github.com/xonecas/zoea-pilot/internal/humanize"
	"github.com/xonecas/zoea-pilot/internal/journal"
	"github.com/xonecas/zoea-pilot/internal/quest"
	"github.com/xonecas/zoea-pilot/internal/randomevent"
	"github.com/xonecas/zoea-pilot/internal/store"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// Sender delivers commands to the environment.
type Sender interface {
	Send(cmd task.Command) error
}

// emergencyRun ties an in-flight response task to its condition.
type emergencyRun struct {
	condition string
	rowID     string
}

// Pilot owns every per-tick collaborator and runs them in a fixed order.
type Pilot struct {
	mu sync.Mutex // serializes ticks and session changes

	agent   string
	sender  Sender
	bus     *EventBus
	store   *store.Store
	journal *journal.Writer
	now     func() time.Time

	snapshot    *env.Snapshot
	fatigue     *humanize.Fatigue
	injector    *humanize.Injector
	pacer       *humanize.Pacer
	executor    *task.Executor
	emergencies *emergency.Handler
	responder   *randomevent.Responder
	quests      *quest.StepExecutor

	injectorRNG humanize.Random

	sent      atomic.Int64
	throttled atomic.Int64

	trackMu   sync.Mutex
	sessionID string
	started   map[string]int64 // task id -> tick it became active
	responses map[string]emergencyRun
}

// Option configures a Pilot.
type Option func(*Pilot)

// WithStore records sessions, task runs and emergencies.
func WithStore(s *store.Store) Option {
	return func(p *Pilot) { p.store = s }
}

// WithJournal appends task, emergency, quest and random event entries.
func WithJournal(w *journal.Writer) Option {
	return func(p *Pilot) { p.journal = w }
}

// WithBus publishes events on bus instead of a private one.
func WithBus(bus *EventBus) Option {
	return func(p *Pilot) { p.bus = bus }
}

// WithClock replaces the wall clock used for cooldowns and injection intervals.
func WithClock(now func() time.Time) Option {
	return func(p *Pilot) { p.now = now }
}

// WithRandom replaces the session randomness source.
func WithRandom(rng humanize.Random) Option {
	return func(p *Pilot) { p.injectorRNG = rng }
}

// NewPilot wires a pilot from cfg. sender may be nil until the environment
// is connected; sends then fail with env.ErrNotConnected.
func NewPilot(cfg *config.Config, sender Sender, opts ...Option) *Pilot {
	p := &Pilot{
		agent:     cfg.Env.AgentName,
		sender:    sender,
		now:       time.Now,
		snapshot:  env.NewSnapshot(),
		executor:  task.NewExecutor(),
		quests:    quest.NewStepExecutor(),
		started:   make(map[string]int64),
		responses: make(map[string]emergencyRun),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bus == nil {
		p.bus = NewEventBus(0)
	}
	if p.injectorRNG == nil {
		if cfg.Session.Seed != 0 {
			p.injectorRNG = humanize.NewRandom(cfg.Session.Seed)
		} else {
			p.injectorRNG = humanize.NewSessionRandom()
		}
	}

	h := cfg.Humanize
	p.fatigue = humanize.NewFatigue(h.FatigueIncrease, h.FatigueRecovery)
	p.injector = humanize.NewInjector(humanizeSettings(h), p.injectorRNG,
		humanize.WithFatigue(p.fatigue), humanize.WithClock(p.now))
	p.injector.SetEnabled(h.Enabled)
	p.pacer = humanize.NewPacer(h.ActionsPerMinute, h.Burst)

	p.emergencies = emergency.NewHandler(emergency.WithClock(p.now))
	p.emergencies.SetSuppressed(cfg.Emergency.Suppressed)
	if cfg.Emergency.LowHealthPercent > 0 {
		p.emergencies.RegisterCondition(&emergency.LowHealth{
			Percent:  cfg.Emergency.LowHealthPercent,
			Food:     cfg.Emergency.LowHealthFood,
			Retreat:  cfg.Emergency.RetreatTarget,
			Interval: time.Duration(cfg.Emergency.CooldownMs) * time.Millisecond,
		})
	}

	if cfg.RandomEvents.Enabled {
		p.responder = randomevent.NewResponder(randomevent.Settings{
			Agent:            cfg.Env.AgentName,
			RewardChoice:     cfg.RandomEvents.RewardChoice,
			CooldownTicks:    int64(cfg.RandomEvents.CooldownTicks),
			IdleTimeoutTicks: cfg.RandomEvents.IdleTimeoutTicks,
		})
	}

	p.executor.OnStart(p.taskStarted)
	p.executor.OnFinish(p.taskFinished)
	p.quests.OnChange(p.questChanged)
	return p
}

func humanizeSettings(h config.HumanizeConfig) humanize.Settings {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return humanize.Settings{
		BacktrackProbability:  h.BacktrackProbability,
		BacktrackInterval:     ms(h.BacktrackIntervalMs),
		RedundantProbability:  h.RedundantProbability,
		RedundantInterval:     ms(h.RedundantIntervalMs),
		HesitationProbability: h.HesitationProbability,
		HesitationInterval:    ms(h.HesitationIntervalMs),
		CancelProbability:     h.CancelProbability,
		CancelInterval:        ms(h.CancelIntervalMs),
	}
}

// Bus returns the pilot's event bus.
func (p *Pilot) Bus() *EventBus { return p.bus }

// Emergencies exposes the handler so callers can register conditions.
func (p *Pilot) Emergencies() *emergency.Handler { return p.emergencies }

// Executor exposes the task executor.
func (p *Pilot) Executor() *task.Executor { return p.executor }

// SetSender swaps the environment connection.
func (p *Pilot) SetSender(s Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = s
}

// Tick runs one tick against obs: snapshot, fatigue, random events,
// emergencies or the executor, then the quest step.
func (p *Pilot) Tick(obs env.Observation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := p.snapshot.Update(obs)
	tc := &tickContext{Snapshot: p.snapshot, pilot: p}

	p.fatigue.Update(p.snapshot.Activity())

	if p.responder != nil {
		for _, ev := range fresh {
			if t := p.responder.OnInteraction(ev, tc); t != nil {
				p.randomEvent(obs.Tick, ev, t)
			}
		}
	}

	if response := p.emergencies.CheckEmergencies(tc); response != nil {
		p.emergencyFired(obs.Tick, p.emergencies.ActiveEmergency(), response)
		p.executor.Queue(response, task.PriorityUrgent)
		p.executor.Preempt(tc)
	} else {
		p.executor.Tick(tc)
	}

	p.quests.Tick(tc)

	p.publish(EventTick, obs.Tick, p.statusLocked())
}

// Run ticks on every observation until the channel closes or ctx is done.
func (p *Pilot) Run(ctx context.Context, observations <-chan env.Observation) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obs, ok := <-observations:
			if !ok {
				return nil
			}
			p.Tick(obs)
		}
	}
}

func (p *Pilot) send(cmd task.Command) error {
	if err := p.pacer.Allow(); err != nil {
		p.throttled.Add(1)
		return err
	}
	if p.sender == nil {
		return env.ErrNotConnected
	}
	if err := p.sender.Send(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Action, err)
	}
	p.sent.Add(1)
	return nil
}

func (p *Pilot) randomEvent(tick int64, ev randomevent.Interaction, t task.Task) {
	data := RandomEventData{Source: ev.Source, InstanceID: ev.InstanceID, TaskID: t.ID(), Response: t.Description()}
	p.publish(EventRandomEvent, tick, data)
	p.record(journal.KindRandomEvent, tick, map[string]any{
		"source":   ev.Source,
		"instance": ev.InstanceID,
		"task":     t.ID(),
		"response": t.Description(),
	})
}

func (p *Pilot) emergencyFired(tick int64, condition string, t task.Task) {
	run := emergencyRun{condition: condition}

	p.trackMu.Lock()
	sessionID := p.sessionID
	p.trackMu.Unlock()
	if p.store != nil && sessionID != "" {
		row, err := p.store.RecordEmergency(sessionID, condition, t.ID(), tick)
		if err != nil {
			log.Warn().Err(err).Str("condition", condition).Msg("Failed to record emergency")
		} else {
			run.rowID = row.ID
		}
	}

	p.trackMu.Lock()
	p.responses[t.ID()] = run
	p.trackMu.Unlock()

	p.publish(EventEmergency, tick, EmergencyData{Condition: condition, TaskID: t.ID(), Response: t.Description()})
	p.record(journal.KindEmergency, tick, map[string]any{
		"condition": condition,
		"task":      t.ID(),
		"response":  t.Description(),
	})
}

func (p *Pilot) taskStarted(t task.Task, pr task.Priority) {
	tick := p.snapshot.CurrentTick()
	p.trackMu.Lock()
	p.started[t.ID()] = tick
	p.trackMu.Unlock()

	p.publish(EventTaskStarted, tick, TaskData{
		ID:          t.ID(),
		Description: t.Description(),
		Priority:    pr.String(),
		State:       string(t.State()),
	})
}

func (p *Pilot) taskFinished(t task.Task, pr task.Priority) {
	tick := p.snapshot.CurrentTick()

	p.trackMu.Lock()
	startedTick, wasStarted := p.started[t.ID()]
	delete(p.started, t.ID())
	run, isEmergency := p.responses[t.ID()]
	delete(p.responses, t.ID())
	sessionID := p.sessionID
	p.trackMu.Unlock()

	if !wasStarted {
		startedTick = tick
	}
	data := TaskData{
		ID:          t.ID(),
		Description: t.Description(),
		Priority:    pr.String(),
		State:       string(t.State()),
	}
	if err := t.Err(); err != nil {
		data.Error = err.Error()
	}

	if isEmergency {
		p.emergencyFinished(tick, run, t)
	}

	if p.store != nil && sessionID != "" {
		if _, err := p.store.RecordTaskRun(store.TaskRun{
			SessionID:    sessionID,
			TaskID:       data.ID,
			Description:  data.Description,
			Priority:     data.Priority,
			State:        data.State,
			Error:        data.Error,
			StartedTick:  startedTick,
			FinishedTick: tick,
		}); err != nil {
			log.Warn().Err(err).Str("task", data.ID).Msg("Failed to record task run")
		}
	}

	p.publish(EventTaskFinished, tick, data)
	p.record(journal.KindTask, tick, map[string]any{
		"task":        data.ID,
		"description": data.Description,
		"priority":    data.Priority,
		"state":       data.State,
		"error":       data.Error,
	})
}

// emergencyFinished releases the handler. Only a completed response clears
// the cooldown.
func (p *Pilot) emergencyFinished(tick int64, run emergencyRun, t task.Task) {
	outcome := string(t.State())
	if t.State() == task.StateCompleted {
		p.emergencies.EmergencyResolved(run.condition)
	} else {
		p.emergencies.Release(run.condition)
		log.Warn().Err(t.Err()).Str("condition", run.condition).Str("task", t.ID()).Str("state", outcome).
			Msg("Emergency response did not complete")
	}

	if p.store != nil && run.rowID != "" {
		if err := p.store.ResolveEmergency(run.rowID, outcome); err != nil {
			log.Warn().Err(err).Str("condition", run.condition).Msg("Failed to resolve emergency record")
		}
	}
	p.publish(EventEmergencyDone, tick, EmergencyData{Condition: run.condition, TaskID: t.ID(), Outcome: outcome})
}

func (p *Pilot) questChanged(s quest.Status) {
	tick := p.snapshot.CurrentTick()
	p.publish(EventQuestChanged, tick, s)
	p.record(journal.KindQuest, tick, map[string]any{
		"quest":    s.Quest,
		"state":    string(s.State),
		"step":     s.Step,
		"progress": s.Progress,
		"task":     s.TaskID,
	})
}

// StartQuest begins q, replacing any running quest.
func (p *Pilot) StartQuest(q *quest.Quest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quests.Start(q)
}

// StartQuestDocument compiles doc with the pilot's humanizer and starts it.
func (p *Pilot) StartQuestDocument(doc *quest.Document) error {
	return p.StartQuest(doc.Compile(task.WithHumanizer(p.injector)))
}

// StopQuest abandons the running quest.
func (p *Pilot) StopQuest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quests.Stop()
}

// StartSession resets per-session state and, with a store, records a new
// session. It returns the session id, or "" without a store.
func (p *Pilot) StartSession(questName string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.injector.ResetCounters()
	p.fatigue.Reset()
	p.emergencies.Reset()
	p.sent.Store(0)
	p.throttled.Store(0)

	var id string
	if p.store != nil {
		s, err := p.store.CreateSession(p.agent, questName)
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		id = s.ID
	}

	p.trackMu.Lock()
	p.sessionID = id
	p.trackMu.Unlock()

	tick := p.snapshot.CurrentTick()
	log.Info().Str("session", id).Str("agent", p.agent).Str("quest", questName).Msg("Session started")
	p.publish(EventSession, tick, SessionData{ID: id})
	p.record(journal.KindSession, tick, map[string]any{"session": id, "agent": p.agent, "quest": questName})
	return id, nil
}

// EndSession stops the quest, cancels all tasks and persists the session's
// inefficiency counters.
func (p *Pilot) EndSession(ticks int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.quests.Stop()
	p.executor.Clear()

	p.trackMu.Lock()
	id := p.sessionID
	p.sessionID = ""
	p.trackMu.Unlock()

	tick := p.snapshot.CurrentTick()
	p.publish(EventSession, tick, SessionData{ID: id, Ended: true, Ticks: ticks})
	p.record(journal.KindSession, tick, map[string]any{"session": id, "ended": true, "ticks": ticks})
	log.Info().Str("session", id).Int64("ticks", ticks).Msg("Session ended")

	if p.store == nil || id == "" {
		return nil
	}
	c := p.injector.Counts()
	var errs []error
	if err := p.store.SaveInefficiencyCounts(id, map[string]int64{
		string(humanize.KindBacktrack):       c.Backtrack,
		string(humanize.KindRedundantAction): c.RedundantAction,
		string(humanize.KindHesitation):      c.Hesitation,
		string(humanize.KindActionCancel):    c.ActionCancel,
	}); err != nil {
		errs = append(errs, fmt.Errorf("save inefficiency counts: %w", err))
	}
	if err := p.store.EndSession(id, ticks); err != nil {
		errs = append(errs, fmt.Errorf("end session: %w", err))
	}
	return errors.Join(errs...)
}

// SetInjectorEnabled toggles inefficiency injection.
func (p *Pilot) SetInjectorEnabled(enabled bool) {
	p.injector.SetEnabled(enabled)
	p.admin("injector", fmt.Sprint(enabled))
}

// SetEmergencySuppressed gates emergency evaluation.
func (p *Pilot) SetEmergencySuppressed(suppressed bool) {
	p.emergencies.SetSuppressed(suppressed)
	p.admin("emergency_suppressed", fmt.Sprint(suppressed))
}

// ResetInefficiencyCounters zeroes the injector counters.
func (p *Pilot) ResetInefficiencyCounters() {
	p.injector.ResetCounters()
	p.admin("reset_counters", "")
}

// ClearCooldowns lets every emergency condition fire again immediately.
func (p *Pilot) ClearCooldowns() {
	p.emergencies.ClearAllCooldowns()
	p.admin("clear_cooldowns", "")
}

// SetRewardChoice changes the random event reward selection.
func (p *Pilot) SetRewardChoice(choice string) {
	if p.responder == nil {
		return
	}
	p.responder.SetRewardChoice(choice)
	p.admin("reward_choice", choice)
}

// ApplyConfig applies the runtime-adjustable parts of cfg.
func (p *Pilot) ApplyConfig(cfg *config.Config) {
	if p.injector.Enabled() != cfg.Humanize.Enabled {
		p.SetInjectorEnabled(cfg.Humanize.Enabled)
	}
	if p.emergencies.Suppressed() != cfg.Emergency.Suppressed {
		p.SetEmergencySuppressed(cfg.Emergency.Suppressed)
	}
	if cfg.RandomEvents.RewardChoice != "" {
		p.SetRewardChoice(cfg.RandomEvents.RewardChoice)
	}
}

func (p *Pilot) admin(control, value string) {
	log.Info().Str("control", control).Str("value", value).Msg("Admin control applied")
	p.publish(EventAdmin, p.snapshot.CurrentTick(), AdminData{Control: control, Value: value})
}

// Status returns a summary of the pilot's state.
func (p *Pilot) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Pilot) statusLocked() Status {
	obs := p.snapshot.Observation()
	s := Status{
		Tick:                obs.Tick,
		Hitpoints:           obs.Hitpoints,
		MaxHitpoints:        obs.MaxHitpoints,
		Activity:            p.snapshot.Activity(),
		Pending:             p.executor.Pending(),
		CommandsSent:        p.sent.Load(),
		Throttled:           p.throttled.Load(),
		Quest:               p.quests.Status(),
		EmergencySuppressed: p.emergencies.Suppressed(),
		ActiveEmergency:     p.emergencies.ActiveEmergency(),
		Conditions:          len(p.emergencies.Conditions()),
		InjectorEnabled:     p.injector.Enabled(),
		Inefficiencies:      p.injector.Counts(),
		Fatigue:             p.fatigue.FatigueLevel(),
		DroppedEvents:       p.bus.Dropped(),
	}
	if t := p.executor.Active(); t != nil {
		s.ActiveTask = t.Description()
	}
	if pr, ok := p.executor.ActivePriority(); ok {
		s.ActivePriority = pr.String()
	}
	p.trackMu.Lock()
	s.SessionID = p.sessionID
	p.trackMu.Unlock()
	return s
}

func (p *Pilot) publish(t EventType, tick int64, data interface{}) {
	p.bus.Publish(Event{Type: t, Tick: tick, Data: data, Timestamp: p.now()})
}

func (p *Pilot) record(kind string, tick int64, data map[string]any) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Write(journal.Entry{Time: p.now(), Tick: tick, Kind: kind, Data: data}); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("Journal write failed")
	}
}

// tickContext is the world view tasks see during one tick.
type tickContext struct {
	*env.Snapshot
	pilot *Pilot
}

func (c *tickContext) Send(cmd task.Command) error {
	return c.pilot.send(cmd)
}

func (c *tickContext) Queue(t task.Task, pr task.Priority) {
	c.pilot.executor.Queue(t, pr)
}
