package task

// Func is a closure-backed task. fn is called once per tick while running
// and reports completion or failure.
type Func struct {
	*Base
	fn           func(tc Context) (done bool, err error)
	precondition func(tc Context) bool
}

// NewFunc creates a closure-backed task.
func NewFunc(description string, priority Priority, fn func(tc Context) (bool, error)) *Func {
	return &Func{Base: NewBase(description, priority), fn: fn}
}

// WithPrecondition sets the CanExecute predicate.
func (f *Func) WithPrecondition(pred func(tc Context) bool) *Func {
	f.precondition = pred
	return f
}

func (f *Func) CanExecute(tc Context) bool {
	if f.precondition == nil {
		return true
	}
	return f.precondition(tc)
}

func (f *Func) Tick(tc Context) State {
	if s := f.State(); s.IsTerminal() {
		return s
	}
	if f.State() == StatePending {
		if err := f.Start(); err != nil {
			return f.State()
		}
	}

	done, err := f.fn(tc)
	switch {
	case err != nil:
		_ = f.Fail(err)
	case done:
		_ = f.Complete()
	}
	return f.State()
}
