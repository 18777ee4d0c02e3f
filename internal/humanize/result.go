package humanize

import (
	"fmt"
	"time"
)

// Kind identifies an inefficiency.
type Kind string

const (
	KindNone            Kind = "none"
	KindBacktrack       Kind = "backtrack"
	KindRedundantAction Kind = "redundant_action"
	KindHesitation      Kind = "hesitation"
	KindActionCancel    Kind = "action_cancel"
)

// Result is the outcome of a composite inefficiency check.
// Amount is set for backtrack (tiles) and redundant action (repetitions);
// Delay is set for hesitation and action cancel.
type Result struct {
	Kind   Kind
	Amount int
	Delay  time.Duration
}

// None is the neutral result.
var None = Result{Kind: KindNone}

func (r Result) IsNone() bool {
	return r.Kind == KindNone || r.Kind == ""
}

func (r Result) String() string {
	switch r.Kind {
	case KindBacktrack, KindRedundantAction:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Amount)
	case KindHesitation, KindActionCancel:
		return fmt.Sprintf("%s(%s)", r.Kind, r.Delay)
	default:
		return string(KindNone)
	}
}
