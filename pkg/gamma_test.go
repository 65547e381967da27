package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGammaRayFinderSingles(t *testing.T) {
	cfg := testConfig()
	set := DefaultSettings()
	var counters Counters

	// Detectors 2 and 5 are not adjacent: singles only.
	hits := []CalibratedHit{
		caenHit(1, 13, 120, 600), // detector 5
		caenHit(1, 10, 100, 400), // detector 2
	}
	evts := GammaRayFinder(hits, set, &cfg, &counters)
	require.Len(t, evts, 2)
	assert.Equal(t, 2, evts[0].Detector)
	assert.Equal(t, GammaSingle, evts[0].Type)
	assert.Equal(t, 1, evts[0].Segments)
	assert.Equal(t, 5, evts[1].Detector)
}

func TestGammaRayFinderAddback(t *testing.T) {
	cfg := testConfig()
	set := DefaultSettings()
	var counters Counters

	// Adjacent detectors 3 and 4 within the prompt window: two singles plus
	// one addback sum carrying the id and time of the larger deposit.
	hits := []CalibratedHit{
		caenHit(1, 11, 100, 300), // detector 3
		caenHit(1, 12, 150, 500), // detector 4
	}
	evts := GammaRayFinder(hits, set, &cfg, &counters)
	require.Len(t, evts, 3)
	assert.Equal(t, GammaSingle, evts[0].Type)
	assert.Equal(t, GammaSingle, evts[1].Type)

	addback := evts[2]
	assert.Equal(t, GammaAddback, addback.Type)
	assert.Equal(t, 4, addback.Detector)
	assert.Equal(t, float32(800), addback.Energy)
	assert.Equal(t, 2, addback.Segments)
	assert.Equal(t, int64(150), addback.Time)
}

func TestGammaRayFinderAddbackOutsidePrompt(t *testing.T) {
	cfg := testConfig()
	cfg.GammaPrompt = 250
	set := DefaultSettings()
	var counters Counters

	hits := []CalibratedHit{
		caenHit(1, 11, 100, 300),
		caenHit(1, 12, 500, 500),
	}
	evts := GammaRayFinder(hits, set, &cfg, &counters)
	require.Len(t, evts, 2)
	for _, e := range evts {
		assert.Equal(t, GammaSingle, e.Type)
	}
}
