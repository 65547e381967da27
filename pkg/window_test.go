package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Configuration {
	cfg := DefaultConfiguration()
	cfg.NoDB = true
	return cfg
}

func calHit(kind DataKind, module uint8, time int64, energy float32, over bool) CalibratedHit {
	return CalibratedHit{
		Hit:           Hit{Kind: kind, Module: module, Amplitude: uint16(energy), Time: time},
		Time:          time,
		Energy:        energy,
		OverThreshold: over,
	}
}

func TestAssemblerOpenAndAppend(t *testing.T) {
	cfg := testConfig()
	asm := NewAssembler(&cfg, NewTimingTracker(&cfg))

	act, closed := asm.Feed(calHit(AsicData, 0, 100, 500, true))
	assert.Equal(t, ActionAppend, act)
	assert.Nil(t, closed)
	assert.True(t, asm.Open())

	// Next hit within the bound keeps the window open.
	assert.Nil(t, asm.Lookahead(200))
	act, closed = asm.Feed(calHit(AsicData, 0, 200, 300, true))
	assert.Equal(t, ActionAppend, act)
	assert.Nil(t, closed)

	// Below-threshold hits are appended to an open window.
	assert.Nil(t, asm.Lookahead(300))
	act, _ = asm.Feed(calHit(CaenData, 0, 300, 10, false))
	assert.Equal(t, ActionAppend, act)

	// The next hit beyond the bound closes on lookahead.
	closed = asm.Lookahead(100 + cfg.BuildWindow + 1)
	require.NotNil(t, closed)
	assert.Equal(t, int64(100), closed.Start)
	assert.Len(t, closed.Hits, 3)
	assert.False(t, asm.Open())
}

func TestAssemblerWindowInvariant(t *testing.T) {
	cfg := testConfig()
	cfg.BuildWindow = 1000
	asm := NewAssembler(&cfg, NewTimingTracker(&cfg))

	times := []int64{0, 100, 600, 999, 1000}
	for i, tm := range times {
		act, closed := asm.Feed(calHit(AsicData, 0, tm, 100, true))
		assert.Equal(t, ActionAppend, act)
		assert.Nil(t, closed)
		if i+1 < len(times) {
			assert.Nil(t, asm.Lookahead(times[i+1]))
		}
	}
	closed := asm.Lookahead(-1)
	require.NotNil(t, closed)
	for _, h := range closed.Hits {
		diff := h.Time - closed.Start
		assert.GreaterOrEqual(t, diff, int64(0))
		assert.LessOrEqual(t, diff, cfg.BuildWindow)
	}
}

func TestAssemblerCloseThenOpen(t *testing.T) {
	cfg := testConfig()
	asm := NewAssembler(&cfg, NewTimingTracker(&cfg))

	asm.Feed(calHit(AsicData, 0, 100, 500, true))

	// A qualifying hit past the bound closes the window and reopens on
	// itself. This happens when cross-module skew defeats the lookahead.
	act, closed := asm.Feed(calHit(AsicData, 1, 100+cfg.BuildWindow+500, 400, true))
	assert.Equal(t, ActionCloseThenOpen, act)
	require.NotNil(t, closed)
	assert.Equal(t, int64(100), closed.Start)
	assert.Len(t, closed.Hits, 1)

	assert.True(t, asm.Open())
	reopened := asm.Lookahead(-1)
	require.NotNil(t, reopened)
	assert.Equal(t, 100+cfg.BuildWindow+500, reopened.Start)
}

func TestAssemblerInfoUpdateOnly(t *testing.T) {
	cfg := testConfig()
	asm := NewAssembler(&cfg, NewTimingTracker(&cfg))

	act, closed := asm.Feed(calHit(InfoData, 0, 100, 0, false))
	assert.Equal(t, ActionUpdateOnly, act)
	assert.Nil(t, closed)
	assert.False(t, asm.Open())
}

func TestAssemblerDropsUnqualified(t *testing.T) {
	cfg := testConfig()
	asm := NewAssembler(&cfg, NewTimingTracker(&cfg))

	// Below threshold and no window open: nothing to append to.
	act, _ := asm.Feed(calHit(AsicData, 0, 100, 10, false))
	assert.Equal(t, ActionDrop, act)
	assert.False(t, asm.Open())
	assert.Equal(t, uint64(1), asm.Unqualified)
}

func TestAssemblerPausedModuleCannotOpen(t *testing.T) {
	cfg := testConfig()
	timing := NewTimingTracker(&cfg)
	timing.ProcessInfo(Hit{Kind: InfoData, Module: 2, Code: InfoAsicPause, Time: 50})
	asm := NewAssembler(&cfg, timing)

	act, _ := asm.Feed(calHit(AsicData, 2, 100, 500, true))
	assert.Equal(t, ActionDrop, act)

	// Another module still opens.
	act, _ = asm.Feed(calHit(AsicData, 0, 110, 500, true))
	assert.Equal(t, ActionAppend, act)
}

func TestAssemblerClockRollback(t *testing.T) {
	cfg := testConfig()
	cfg.RollbackTolerance = 50
	asm := NewAssembler(&cfg, NewTimingTracker(&cfg))

	asm.Feed(calHit(AsicData, 0, 1000, 500, true))

	// Slightly out of order within the tolerance is accepted.
	act, _ := asm.Feed(calHit(AsicData, 1, 960, 500, true))
	assert.Equal(t, ActionAppend, act)

	// Beyond the tolerance the hit is dropped and counted.
	act, _ = asm.Feed(calHit(AsicData, 1, 700, 500, true))
	assert.Equal(t, ActionDrop, act)
	assert.Equal(t, uint64(1), asm.Rollbacks)
}
