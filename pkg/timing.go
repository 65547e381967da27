package builder

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// ModuleClock is the timing state of one module. Owned exclusively by the
// TimingTracker; read by finders, never shared across concurrent runs.
type ModuleClock struct {
	LastPulser int64
	PrevPulser int64
	Offset     int64
	hasPulser  bool

	Paused    bool
	PauseTime int64
	DeadTime  int64

	FirstHit int64
	LastHit  int64
	hasHit   bool

	Pulses  uint64
	Pauses  uint64
	Resumes uint64
}

// TimingTracker reconciles the module-local clocks against the common
// reference pulser and accounts for dead time between pause/resume pairs.
type TimingTracker struct {
	cfg *Configuration

	asic map[uint8]*ModuleClock
	caen map[uint8]*ModuleClock

	// Time of the last reference pulser on the absolute timescale.
	reference    int64
	hasReference bool

	EbisTime  int64
	T1Time    int64
	SCTime    int64
	LaserTime int64

	NCaenPulser uint64
	NEbis       uint64
	NT1         uint64
	NSC         uint64
	NLaser      uint64

	LossOfSync      uint64
	DuplicatePause  uint64
	UnmatchedResume uint64
	UnmatchedPause  uint64
}

func NewTimingTracker(cfg *Configuration) *TimingTracker {
	return &TimingTracker{
		cfg:  cfg,
		asic: make(map[uint8]*ModuleClock),
		caen: make(map[uint8]*ModuleClock),
	}
}

// Clock returns the owned state record for one module, allocating on demand.
func (t *TimingTracker) Clock(kind DataKind, module uint8) *ModuleClock {
	clocks := t.asic
	if kind == CaenData {
		clocks = t.caen
	}
	c, ok := clocks[module]
	if !ok {
		c = &ModuleClock{}
		clocks[module] = c
	}
	return c
}

// CorrectTime converts a module-local raw timestamp to the absolute
// timescale. Modules that have not seen a pulser yet keep offset zero;
// missing pulses simply hold the last known offset.
func (t *TimingTracker) CorrectTime(kind DataKind, module uint8, raw int64) int64 {
	return raw + t.Clock(kind, module).Offset
}

// Observe records the first and last corrected hit time seen on a module.
func (t *TimingTracker) Observe(kind DataKind, module uint8, corrected int64) {
	c := t.Clock(kind, module)
	if !c.hasHit {
		c.FirstHit = corrected
		c.hasHit = true
	}
	c.LastHit = corrected
}

// Paused reports whether hits from this module are currently excluded from
// triggering new windows.
func (t *TimingTracker) Paused(kind DataKind, module uint8) bool {
	if kind != AsicData {
		return false
	}
	return t.Clock(kind, module).Paused
}

// ProcessInfo updates the tracker state for one INFO entry.
func (t *TimingTracker) ProcessInfo(h Hit) {
	switch h.Code {
	case InfoCaenPulser:
		t.caenPulser(h)
	case InfoFpgaPulser, InfoAsicPulser:
		t.modulePulser(h)
	case InfoAsicPause:
		t.pause(h)
	case InfoAsicResume:
		t.resume(h)
	case InfoEbis:
		t.EbisTime = h.Time
		t.NEbis++
	case InfoT1:
		t.T1Time = h.Time
		t.NT1++
	case InfoSuperCycle:
		t.SCTime = h.Time
		t.NSC++
	case InfoLaser:
		t.LaserTime = h.Time
		t.NLaser++
	default:
		if configuration.Verbosity > 1 {
			message := fmt.Sprintf("unknown info code %d on module %d", h.Code, h.Module)
			logInfo(message, "timing")
		}
	}
}

// The CAEN DAQ carries the absolute timescale, so its pulser defines the
// reference against which the array modules are reconciled.
func (t *TimingTracker) caenPulser(h Hit) {
	c := t.Clock(CaenData, h.Module)
	c.PrevPulser = c.LastPulser
	c.LastPulser = h.Time
	c.hasPulser = true
	c.Pulses++

	t.reference = h.Time
	t.hasReference = true
	t.NCaenPulser++
}

func (t *TimingTracker) modulePulser(h Hit) {
	c := t.Clock(AsicData, h.Module)
	c.PrevPulser = c.LastPulser
	c.LastPulser = h.Time
	c.Pulses++

	if !t.hasReference {
		// No reference pulser seen yet, leave the offset alone.
		c.hasPulser = true
		return
	}

	offset := t.reference - h.Time
	if c.hasPulser {
		jump := offset - c.Offset
		if jump < 0 {
			jump = -jump
		}
		if jump > t.cfg.SyncTolerance {
			t.LossOfSync++
			message := fmt.Sprintf("module %d lost sync: offset jumped %d ns", h.Module, jump)
			logError(message)
		}
	}
	c.Offset = offset
	c.hasPulser = true
}

func (t *TimingTracker) pause(h Hit) {
	c := t.Clock(AsicData, h.Module)
	c.Pauses++
	if c.Paused {
		// Second pause before the resume: keep the first pause time.
		t.DuplicatePause++
		return
	}
	c.Paused = true
	c.PauseTime = h.Time
}

func (t *TimingTracker) resume(h Hit) {
	c := t.Clock(AsicData, h.Module)
	c.Resumes++
	if !c.Paused {
		t.UnmatchedResume++
		message := fmt.Sprintf("resume without pause on module %d", h.Module)
		logError(message)
		return
	}
	if h.Time > c.PauseTime {
		c.DeadTime += h.Time - c.PauseTime
	}
	c.Paused = false
}

// Finalize closes out dangling pause intervals at the end of the stream.
// Dead time is extended to the module's last observed hit.
func (t *TimingTracker) Finalize() {
	for module, c := range t.asic {
		if !c.Paused {
			continue
		}
		t.UnmatchedPause++
		if c.hasHit && c.LastHit > c.PauseTime {
			c.DeadTime += c.LastHit - c.PauseTime
		}
		c.Paused = false
		message := fmt.Sprintf("pause without resume on module %d", module)
		logError(message)
	}
}

// AsicModules returns the module ids with ASIC timing state, sorted.
func (t *TimingTracker) AsicModules() []uint8 {
	modules := maps.Keys(t.asic)
	sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })
	return modules
}
