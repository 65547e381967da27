package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsValid(t *testing.T) {
	set := DefaultSettings()
	assert.Equal(t, 3, set.ArrayModules)
	assert.Equal(t, 4, set.AsicsPerModule)
	assert.Equal(t, 128, set.ChannelsPerAsic)
	require.NoError(t, set.Finalize())
}

func TestArrayStripLookup(t *testing.T) {
	set := DefaultSettings()

	side, row, strip, ok := set.ArrayStrip(0, 10)
	require.True(t, ok)
	assert.Equal(t, 0, side)
	assert.Equal(t, 0, row)
	assert.Equal(t, 10, strip)

	side, row, strip, ok = set.ArrayStrip(3, 42)
	require.True(t, ok)
	assert.Equal(t, 1, side)
	assert.Equal(t, 1, row)
	assert.Equal(t, 42, strip)

	_, _, _, ok = set.ArrayStrip(4, 0)
	assert.False(t, ok)
	_, _, _, ok = set.ArrayStrip(0, 128)
	assert.False(t, ok)
}

func TestCaenChannelLookup(t *testing.T) {
	set := DefaultSettings()

	a, ok := set.CaenChannel(0, 3)
	require.True(t, ok)
	assert.Equal(t, DetRecoil, a.Class())
	assert.Equal(t, 1, a.Sector)
	assert.Equal(t, 1, a.Layer)

	a, ok = set.CaenChannel(1, 9)
	require.True(t, ok)
	assert.Equal(t, DetGamma, a.Class())
	assert.Equal(t, 1, a.ID)

	_, ok = set.CaenChannel(0, 15)
	assert.False(t, ok)
}

func TestFinalizeRejectsZeroModules(t *testing.T) {
	set := &Settings{}
	err := set.Finalize()
	var serr *ErrInvalidSettings
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "array_modules", serr.Table)
}

func TestFinalizeRejectsBadTableDims(t *testing.T) {
	set := DefaultSettings()
	set.AsicSide = []int{0, 1}
	err := set.Finalize()
	var serr *ErrInvalidSettings
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "asic_side", serr.Table)

	set = DefaultSettings()
	set.ArrayPID[2] = set.ArrayPID[2][:64]
	err = set.Finalize()
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "array_pid", serr.Table)
}

func TestFinalizeRejectsDuplicateCaenChannel(t *testing.T) {
	set := DefaultSettings()
	set.Caen = append(set.Caen, CaenAssignment{Module: 0, Channel: 0, Detector: "recoil"})
	err := set.Finalize()
	var serr *ErrInvalidSettings
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "caen", serr.Table)
}

func TestFinalizeRejectsUnknownDetector(t *testing.T) {
	set := DefaultSettings()
	set.Caen[0].Detector = "scintillator"
	err := set.Finalize()
	var serr *ErrInvalidSettings
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "caen", serr.Table)
}

func TestLoadSettingsFromFile(t *testing.T) {
	content := `
array_modules: 1
asics_per_module: 2
channels_per_asic: 2
caen_modules: 1
caen_channels: 4
recoil_sectors: 1
recoil_layers: 2
recoil_loss_depth: 1
asic_side: [0, 1]
asic_row: [0, 0]
array_pid:
  - [0, 1]
  - [-1, -1]
array_nid:
  - [-1, -1]
  - [0, 1]
caen:
  - {module: 0, channel: 0, detector: recoil, sector: 0, layer: 0}
  - {module: 0, channel: 1, detector: recoil, sector: 0, layer: 1}
`
	filename := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))

	set, err := LoadSettings(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, set.ArrayModules)
	assert.Equal(t, 2, set.RecoilLayers)

	side, _, strip, ok := set.ArrayStrip(1, 1)
	require.True(t, ok)
	assert.Equal(t, 1, side)
	assert.Equal(t, 1, strip)

	a, ok := set.CaenChannel(0, 1)
	require.True(t, ok)
	assert.Equal(t, DetRecoil, a.Class())
	assert.Equal(t, 1, a.Layer)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
