package constants

import "time"

// TickDuration is the environment's nominal tick length.
const TickDuration = 600 * time.Millisecond

// DefaultCommandTimeoutTicks bounds how long a command task waits for the
// agent to become idle again before failing.
const DefaultCommandTimeoutTicks = 30

// DefaultWaitTimeoutTicks is the inactivity timeout for wait-for-state tasks.
const DefaultWaitTimeoutTicks = 20

// RandomEventCooldownTicks suppresses duplicate responses to the same NPC instance.
const RandomEventCooldownTicks = 50

// DefaultEmergencyCooldown applies to stock conditions that do not set their own.
const DefaultEmergencyCooldown = 10 * time.Second

// LowHealthPercent is the default hitpoint threshold for the low-health condition.
const LowHealthPercent = 40

// FatigueIncreasePerTick is the base fatigue gain per tick of Medium activity.
// A full level takes roughly two and a half hours of continuous medium work.
const FatigueIncreasePerTick = 0.00007

// FatigueRecoveryPerTick is the fatigue shed per tick of AFK-style activity.
const FatigueRecoveryPerTick = 0.0002

// DefaultActionsPerMinute caps outgoing commands.
const DefaultActionsPerMinute = 90

// DefaultActionBurst is the pacer's burst size.
const DefaultActionBurst = 5

// MinEventBusBufferSize is the minimum buffer per subscriber channel.
const MinEventBusBufferSize = 256

// JournalPrefix names journal files.
const JournalPrefix = "journal"
