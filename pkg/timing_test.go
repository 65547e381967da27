package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func info(code InfoCode, module uint8, time int64) Hit {
	return Hit{Kind: InfoData, Module: module, Code: code, Time: time}
}

func TestCorrectTimeWithoutPulser(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	// No pulser seen yet: module-local time passes through unchanged.
	assert.Equal(t, int64(1234), tr.CorrectTime(AsicData, 0, 1234))
}

func TestPulserOffsetReconciliation(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	// Reference pulser at 10000 ns, module 1 sees the same pulse at 9980 ns
	// on its local clock: the module runs 20 ns behind.
	tr.ProcessInfo(info(InfoCaenPulser, 0, 10000))
	tr.ProcessInfo(info(InfoFpgaPulser, 1, 9980))

	assert.Equal(t, int64(10020), tr.CorrectTime(AsicData, 1, 10000))
	assert.Equal(t, uint64(1), tr.NCaenPulser)
	assert.Equal(t, uint64(1), tr.Clock(AsicData, 1).Pulses)

	// A missed pulse holds the last known offset.
	assert.Equal(t, int64(20020), tr.CorrectTime(AsicData, 1, 20000))
}

func TestLossOfSyncCounted(t *testing.T) {
	cfg := testConfig()
	cfg.SyncTolerance = 100
	tr := NewTimingTracker(&cfg)

	tr.ProcessInfo(info(InfoCaenPulser, 0, 10000))
	tr.ProcessInfo(info(InfoAsicPulser, 1, 9980))
	assert.Equal(t, uint64(0), tr.LossOfSync)

	// The next pulse pair implies an offset jump of 480 ns.
	tr.ProcessInfo(info(InfoCaenPulser, 0, 20000))
	tr.ProcessInfo(info(InfoAsicPulser, 1, 19500))
	assert.Equal(t, uint64(1), tr.LossOfSync)

	// The new offset is adopted regardless.
	assert.Equal(t, int64(20500), tr.CorrectTime(AsicData, 1, 20000))
}

func TestPauseResumeDeadTime(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.ProcessInfo(info(InfoAsicPause, 3, 1000))
	assert.True(t, tr.Paused(AsicData, 3))

	tr.ProcessInfo(info(InfoAsicResume, 3, 4500))
	assert.False(t, tr.Paused(AsicData, 3))
	assert.Equal(t, int64(3500), tr.Clock(AsicData, 3).DeadTime)
}

func TestDuplicatePauseKeepsFirst(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.ProcessInfo(info(InfoAsicPause, 3, 1000))
	tr.ProcessInfo(info(InfoAsicPause, 3, 2000))
	assert.Equal(t, uint64(1), tr.DuplicatePause)

	tr.ProcessInfo(info(InfoAsicResume, 3, 3000))
	// Dead time counts from the first pause.
	assert.Equal(t, int64(2000), tr.Clock(AsicData, 3).DeadTime)
}

func TestUnmatchedResumeCounted(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.ProcessInfo(info(InfoAsicResume, 0, 500))
	assert.Equal(t, uint64(1), tr.UnmatchedResume)
	assert.Equal(t, int64(0), tr.Clock(AsicData, 0).DeadTime)
}

func TestFinalizeUnmatchedPause(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.ProcessInfo(info(InfoAsicPause, 2, 1000))
	tr.Observe(AsicData, 2, 6000)
	tr.Finalize()

	assert.Equal(t, uint64(1), tr.UnmatchedPause)
	assert.Equal(t, int64(5000), tr.Clock(AsicData, 2).DeadTime)
	assert.False(t, tr.Paused(AsicData, 2))
}

func TestFacilityPulseBookkeeping(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.ProcessInfo(info(InfoEbis, 0, 100))
	tr.ProcessInfo(info(InfoT1, 0, 200))
	tr.ProcessInfo(info(InfoSuperCycle, 0, 300))
	tr.ProcessInfo(info(InfoLaser, 0, 400))

	assert.Equal(t, int64(100), tr.EbisTime)
	assert.Equal(t, int64(200), tr.T1Time)
	assert.Equal(t, int64(300), tr.SCTime)
	assert.Equal(t, int64(400), tr.LaserTime)
	assert.Equal(t, uint64(1), tr.NEbis)
	assert.Equal(t, uint64(1), tr.NT1)
}

func TestAsicModulesSorted(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.Observe(AsicData, 3, 100)
	tr.Observe(AsicData, 0, 110)
	tr.Observe(AsicData, 2, 120)
	tr.Observe(CaenData, 1, 130)

	assert.Equal(t, []uint8{0, 2, 3}, tr.AsicModules())
}

func TestObserveFirstLast(t *testing.T) {
	cfg := testConfig()
	tr := NewTimingTracker(&cfg)

	tr.Observe(AsicData, 1, 100)
	tr.Observe(AsicData, 1, 900)
	c := tr.Clock(AsicData, 1)
	assert.Equal(t, int64(100), c.FirstHit)
	assert.Equal(t, int64(900), c.LastHit)
}
