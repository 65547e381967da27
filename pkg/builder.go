package builder

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// EventSink receives one PhysicsEvt per non-empty closed window, in strict
// window-close order.
type EventSink interface {
	Write(evt *PhysicsEvt) error
}

// ProgressSink receives percent-complete notifications. Purely observational.
type ProgressSink interface {
	Percent(float64)
}

// Counters is the end-of-run bookkeeping of one pass.
type Counters struct {
	AsicHits uint64
	CaenHits uint64
	InfoHits uint64

	Events     uint64
	WindowHits uint64

	ArrayEvts      uint64
	ArrayPEvts     uint64
	RecoilEvts     uint64
	MwpcEvts       uint64
	ElumEvts       uint64
	ZeroDegreeEvts uint64
	GammaEvts      uint64

	PN11 uint64
	PN12 uint64
	PN21 uint64
	PN22 uint64

	UnknownChannel       uint64
	DuplicateHits        uint64
	RecoilPartialDropped uint64
	MwpcAmbiguous        uint64
	Rollbacks            uint64
	Unqualified          uint64
	MissingCalibration   uint64
	LossOfSync           uint64
	DuplicatePause       uint64
	UnmatchedResume      uint64
	UnmatchedPause       uint64
}

// ModuleSummary is the per-module timing bookkeeping reported at end of run.
type ModuleSummary struct {
	Module   uint8
	DeadTime int64
	FirstHit int64
	LastHit  int64
	Pulses   uint64
	Pauses   uint64
	Resumes  uint64
}

// Summary is returned by Run and forwarded to the logging collaborator.
type Summary struct {
	Counters Counters
	Modules  []ModuleSummary
}

// EventBuilder packages the time-sorted hit stream into physics events.
// Single-threaded: one forward pass, one-hit lookahead, no retries.
type EventBuilder struct {
	cfg    Configuration
	set    *Settings
	cal    Calibrator
	sink   EventSink
	prog   ProgressSink
	timing *TimingTracker
	asm    *Assembler

	counters Counters
	stop     atomic.Bool
}

func NewEventBuilder(cfg Configuration, set *Settings, cal Calibrator, sink EventSink) (*EventBuilder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if set == nil {
		return nil, &ErrInvalidSettings{Table: "settings", Reason: "no settings provided"}
	}
	if err := set.Finalize(); err != nil {
		return nil, err
	}
	if cal == nil {
		cal = NewPassthroughCalibration()
	}
	timing := NewTimingTracker(&cfg)
	b := &EventBuilder{
		cfg:    cfg,
		set:    set,
		cal:    cal,
		sink:   sink,
		timing: timing,
		asm:    NewAssembler(&cfg, timing),
	}
	return b, nil
}

// SetProgressSink attaches an optional progress receiver.
func (b *EventBuilder) SetProgressSink(p ProgressSink) {
	b.prog = p
}

// Stop requests an early stop. It is honored at the next window boundary;
// the currently open window is finalized first.
func (b *EventBuilder) Stop() {
	b.stop.Store(true)
}

// Timing exposes the tracker for read access after a run.
func (b *EventBuilder) Timing() *TimingTracker {
	return b.timing
}

// Run performs the single forward pass over the sorted input. On an upstream
// read error, the currently open window is finalized and emitted before the
// error is returned.
func (b *EventBuilder) Run(src HitSource) (Summary, error) {
	var total int64 = -1
	if c, ok := src.(Counter); ok {
		if n, err := c.Count(); err == nil {
			total = n
		}
	}

	var pending *CalibratedHit
	var entries int64
	var readErr error
	skipped := 0

	for {
		if b.stop.Load() && !b.asm.Open() {
			logInfo("stop requested, halting at window boundary", "builder")
			break
		}

		raw, err := src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = &ErrReadStream{Entry: entries, Err: err}
				logError(readErr.Error())
			}
			break
		}
		entries++
		b.reportProgress(entries, total)

		switch raw.Kind {
		case AsicData:
			b.counters.AsicHits++
		case CaenData:
			b.counters.CaenHits++
		case InfoData:
			b.counters.InfoHits++
		}

		// INFO entries update the timing state only. They never open a
		// window and never force a close by themselves.
		if raw.Kind == InfoData {
			b.timing.ProcessInfo(raw)
			continue
		}

		if skipped < b.cfg.Skip {
			skipped++
			continue
		}
		if b.counters.Events >= uint64(b.cfg.MaxEvents) {
			logInfo("event limit reached, halting at window boundary", "builder")
			// Like an early stop: the buffered hit has not entered a window
			// and must not open a truncated one of its own.
			pending = nil
			break
		}

		ch := b.calibrate(raw)
		b.timing.Observe(raw.Kind, raw.Module, ch.Time)

		if pending == nil {
			pending = &ch
			continue
		}
		if err := b.feed(*pending, ch.Time); err != nil {
			return b.summary(), err
		}
		pending = &ch
	}

	// End of stream: flush the pending hit and close any open window. On an
	// early stop the pending hit has not entered a window yet and is left
	// behind.
	if b.stop.Load() {
		pending = nil
	}
	if pending != nil {
		if err := b.feed(*pending, -1); err != nil {
			return b.summary(), err
		}
	} else if w := b.asm.Lookahead(-1); w != nil {
		if err := b.emit(w); err != nil {
			return b.summary(), err
		}
	}

	b.timing.Finalize()
	summary := b.summary()
	b.logSummary(&summary)
	return summary, readErr
}

func (b *EventBuilder) calibrate(raw Hit) CalibratedHit {
	energy, walk, overThreshold := b.cal.Calibrate(raw.Kind, raw.Module, raw.Asic, raw.Channel, raw.Amplitude)
	corrected := b.timing.CorrectTime(raw.Kind, raw.Module, raw.Time) + walk
	return CalibratedHit{
		Hit:           raw,
		Time:          corrected,
		Energy:        energy,
		Walk:          walk,
		OverThreshold: overThreshold,
	}
}

// feed pushes one buffered hit through the assembler, then applies the
// lookahead decision with the corrected time of the hit after it.
// next < 0 marks the end of the stream.
func (b *EventBuilder) feed(h CalibratedHit, next int64) error {
	act, closed := b.asm.Feed(h)
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("hit %v module %d at %d ns: %v", h.Hit.Kind, h.Hit.Module, h.Time, act)
		logInfo(message, "builder")
	}
	if closed != nil {
		if err := b.emit(closed); err != nil {
			return err
		}
	}
	if closed := b.asm.Lookahead(next); closed != nil {
		if err := b.emit(closed); err != nil {
			return err
		}
	}
	return nil
}

// emit runs the finders over one closed window, in fixed order, assembles
// the physics event and forwards it to the sink.
func (b *EventBuilder) emit(w *Window) error {
	evt := &PhysicsEvt{
		WindowStart: w.Start,
		WindowEnd:   w.Bound(b.cfg.BuildWindow),
		Hits:        len(w.Hits),
		EbisTime:    b.timing.EbisTime,
		T1Time:      b.timing.T1Time,
		SCTime:      b.timing.SCTime,
		LaserTime:   b.timing.LaserTime,
	}

	evt.Array, evt.ArrayP = ArrayFinder(w.Hits, b.set, &b.cfg, &b.counters)
	evt.Recoil = RecoilFinder(w.Hits, b.set, &b.cfg, &b.counters)
	evt.Mwpc = MwpcFinder(w.Hits, b.set, &b.counters)
	evt.Elum = ElumFinder(w.Hits, b.set, &b.cfg, &b.counters)
	evt.ZeroDegree = ZeroDegreeFinder(w.Hits, b.set, &b.cfg, &b.counters)
	evt.Gamma = GammaRayFinder(w.Hits, b.set, &b.cfg, &b.counters)

	b.counters.Events++
	b.counters.WindowHits += uint64(len(w.Hits))
	b.counters.ArrayEvts += uint64(len(evt.Array))
	b.counters.ArrayPEvts += uint64(len(evt.ArrayP))
	b.counters.RecoilEvts += uint64(len(evt.Recoil))
	b.counters.MwpcEvts += uint64(len(evt.Mwpc))
	b.counters.ElumEvts += uint64(len(evt.Elum))
	b.counters.ZeroDegreeEvts += uint64(len(evt.ZeroDegree))
	b.counters.GammaEvts += uint64(len(evt.Gamma))
	for _, a := range evt.Array {
		switch a.Class {
		case PN11:
			b.counters.PN11++
		case PN12:
			b.counters.PN12++
		case PN21:
			b.counters.PN21++
		case PN22:
			b.counters.PN22++
		}
	}

	if b.sink == nil {
		return nil
	}
	return b.sink.Write(evt)
}

func (b *EventBuilder) reportProgress(entries, total int64) {
	if b.prog == nil || total <= 0 || b.cfg.ProgressEvery <= 0 {
		return
	}
	if entries%int64(b.cfg.ProgressEvery) != 0 && entries != total {
		return
	}
	b.prog.Percent(100 * float64(entries) / float64(total))
}

func (b *EventBuilder) summary() Summary {
	c := b.counters
	c.Rollbacks = b.asm.Rollbacks
	c.Unqualified = b.asm.Unqualified
	c.LossOfSync = b.timing.LossOfSync
	c.DuplicatePause = b.timing.DuplicatePause
	c.UnmatchedResume = b.timing.UnmatchedResume
	c.UnmatchedPause = b.timing.UnmatchedPause
	if tc, ok := b.cal.(*TableCalibration); ok {
		c.MissingCalibration = tc.Missing
	}

	s := Summary{Counters: c}
	for _, m := range b.timing.AsicModules() {
		clock := b.timing.asic[m]
		s.Modules = append(s.Modules, ModuleSummary{
			Module:   m,
			DeadTime: clock.DeadTime,
			FirstHit: clock.FirstHit,
			LastHit:  clock.LastHit,
			Pulses:   clock.Pulses,
			Pauses:   clock.Pauses,
			Resumes:  clock.Resumes,
		})
	}
	return s
}

func (b *EventBuilder) logSummary(s *Summary) {
	c := &s.Counters
	logInfo(fmt.Sprintf("Hits: asic %d, caen %d, info %d", c.AsicHits, c.CaenHits, c.InfoHits), "summary")
	logInfo(fmt.Sprintf("Events built: %d (%d hits in windows)", c.Events, c.WindowHits), "summary")
	logInfo(fmt.Sprintf("Sub-events: array %d (p-only %d), recoil %d, mwpc %d, elum %d, zd %d, gamma %d",
		c.ArrayEvts, c.ArrayPEvts, c.RecoilEvts, c.MwpcEvts, c.ElumEvts, c.ZeroDegreeEvts, c.GammaEvts), "summary")
	logInfo(fmt.Sprintf("Array multiplicities: 1p1n %d, 1p2n %d, 2p1n %d, 2p2n %d",
		c.PN11, c.PN12, c.PN21, c.PN22), "summary")
	logInfo(fmt.Sprintf("Anomalies: unknown channel %d, rollback %d, missing calibration %d, loss of sync %d",
		c.UnknownChannel, c.Rollbacks, c.MissingCalibration, c.LossOfSync), "summary")
	logInfo(fmt.Sprintf("Pause/resume: duplicate pause %d, unmatched resume %d, unmatched pause %d",
		c.DuplicatePause, c.UnmatchedResume, c.UnmatchedPause), "summary")
	for _, m := range s.Modules {
		logInfo(fmt.Sprintf("Module %d: dead time %d ns, pulses %d, first %d, last %d",
			m.Module, m.DeadTime, m.Pulses, m.FirstHit, m.LastHit), "summary")
	}
}
