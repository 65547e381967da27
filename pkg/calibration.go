package builder

// Calibrator converts a raw amplitude to calibrated energy, a time-walk
// correction and an above-threshold flag. Implementations are read-only for
// the duration of a run.
type Calibrator interface {
	Calibrate(kind DataKind, module, asic, channel uint8, amplitude uint16) (energy float32, walk int64, overThreshold bool)
}

// CalParams holds the calibration constants for one channel.
type CalParams struct {
	Gain      float32 `db:"Gain"`
	Offset    float32 `db:"Offset"`
	Threshold uint16  `db:"Threshold"`
	Walk      int64   `db:"Walk"`
}

type calKey struct {
	kind    DataKind
	module  uint8
	asic    uint8
	channel uint8
}

// TableCalibration is a map-backed Calibrator. Channels without an entry
// fall back to passthrough energies and are counted, not fatal.
type TableCalibration struct {
	params  map[calKey]CalParams
	Missing uint64
}

func NewTableCalibration() *TableCalibration {
	return &TableCalibration{params: make(map[calKey]CalParams)}
}

func (c *TableCalibration) Set(kind DataKind, module, asic, channel uint8, p CalParams) {
	c.params[calKey{kind: kind, module: module, asic: asic, channel: channel}] = p
}

func (c *TableCalibration) Calibrate(kind DataKind, module, asic, channel uint8, amplitude uint16) (float32, int64, bool) {
	p, ok := c.params[calKey{kind: kind, module: module, asic: asic, channel: channel}]
	if !ok {
		c.Missing++
		return float32(amplitude), 0, amplitude > 0
	}
	energy := p.Gain*float32(amplitude) + p.Offset
	return energy, p.Walk, amplitude > p.Threshold
}

// PassthroughCalibration reports raw amplitudes as energies. Used in no-DB
// mode; a warning is logged once at construction.
type PassthroughCalibration struct{}

func NewPassthroughCalibration() PassthroughCalibration {
	logInfo("no calibration available, using passthrough energies", "calibration")
	return PassthroughCalibration{}
}

func (PassthroughCalibration) Calibrate(kind DataKind, module, asic, channel uint8, amplitude uint16) (float32, int64, bool) {
	return float32(amplitude), 0, amplitude > 0
}
