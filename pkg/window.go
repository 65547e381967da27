package builder

import "fmt"

// Action is the decision taken for one hit fed to the assembler.
type Action int

const (
	ActionDrop Action = iota
	ActionUpdateOnly
	ActionAppend
	ActionCloseThenOpen
)

func (a Action) String() string {
	switch a {
	case ActionDrop:
		return "drop"
	case ActionUpdateOnly:
		return "update-only"
	case ActionAppend:
		return "append"
	case ActionCloseThenOpen:
		return "close-then-open"
	default:
		return "unknown"
	}
}

// Window is a time-bounded group of calibrated hits. Immutable once closed.
type Window struct {
	Start int64
	Hits  []CalibratedHit
}

// Bound is the latest corrected time a hit may have and still belong to the
// window.
func (w *Window) Bound(buildWindow int64) int64 {
	return w.Start + buildWindow
}

// Assembler is the event-window state machine. It consumes calibrated hits
// one at a time; the caller holds exactly one pending hit and reports the
// corrected time of the hit after it through Lookahead, so that the boundary
// decision for the buffered hit is made only after the next hit is known.
type Assembler struct {
	cfg    *Configuration
	timing *TimingTracker

	win  *Window
	last int64 // corrected time of the last accepted hit

	Rollbacks   uint64
	Unqualified uint64
}

func NewAssembler(cfg *Configuration, timing *TimingTracker) *Assembler {
	return &Assembler{cfg: cfg, timing: timing}
}

// Open reports whether a window is currently being recorded.
func (a *Assembler) Open() bool { return a.win != nil }

// qualifies reports whether a hit may open a new window: amplitude-bearing,
// above threshold and not from a paused module.
func (a *Assembler) qualifies(h CalibratedHit) bool {
	if h.Hit.Kind == InfoData {
		return false
	}
	if !h.OverThreshold {
		return false
	}
	return !a.timing.Paused(h.Hit.Kind, h.Hit.Module)
}

// decide is the pure transition function of (window state, hit).
func decide(open bool, start int64, last int64, cfg *Configuration, h CalibratedHit, qualifies bool) Action {
	if h.Hit.Kind == InfoData {
		return ActionUpdateOnly
	}
	if h.Time < last-cfg.RollbackTolerance {
		return ActionDrop
	}
	if !open {
		if !qualifies {
			return ActionDrop
		}
		return ActionAppend
	}
	if h.Time <= start+cfg.BuildWindow {
		return ActionAppend
	}
	if !qualifies {
		return ActionDrop
	}
	return ActionCloseThenOpen
}

// Feed processes one hit. The returned window is non-nil when the hit forced
// the previous window to close (ActionCloseThenOpen); the hit itself then
// opens the next window. Hits whose corrected time runs backward beyond the
// tolerance are dropped and counted, never fatal.
func (a *Assembler) Feed(h CalibratedHit) (Action, *Window) {
	var start int64
	if a.win != nil {
		start = a.win.Start
	}
	act := decide(a.win != nil, start, a.last, a.cfg, h, a.qualifies(h))

	switch act {
	case ActionUpdateOnly:
		return act, nil

	case ActionDrop:
		if h.Hit.Kind != InfoData && h.Time < a.last-a.cfg.RollbackTolerance {
			a.Rollbacks++
			message := fmt.Sprintf("corrected time ran backward: %d ns after %d ns, hit dropped", h.Time, a.last)
			logError(message)
		} else {
			a.Unqualified++
		}
		return act, nil

	case ActionAppend:
		a.last = h.Time
		if a.win == nil {
			a.win = &Window{Start: h.Time}
		}
		a.win.Hits = append(a.win.Hits, h)
		return act, nil

	case ActionCloseThenOpen:
		a.last = h.Time
		closed := a.win
		a.win = &Window{Start: h.Time, Hits: []CalibratedHit{h}}
		return act, closed
	}
	return ActionDrop, nil
}

// Lookahead closes the open window if the next hit's corrected time falls
// beyond its bound. next < 0 means end of stream and always closes.
func (a *Assembler) Lookahead(next int64) *Window {
	if a.win == nil {
		return nil
	}
	if next >= 0 && next <= a.win.Bound(a.cfg.BuildWindow) {
		return nil
	}
	closed := a.win
	a.win = nil
	return closed
}
