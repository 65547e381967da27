package builder

// DataKind distinguishes the three entry types in the sorted-hit stream.
type DataKind int

const (
	AsicData DataKind = iota
	CaenData
	InfoData
)

func (k DataKind) String() string {
	switch k {
	case AsicData:
		return "asic"
	case CaenData:
		return "caen"
	case InfoData:
		return "info"
	default:
		return "unknown"
	}
}

// InfoCode identifies the subtype of an INFO entry.
type InfoCode int

const (
	InfoAsicPause  InfoCode = 2
	InfoAsicResume InfoCode = 3
	InfoFpgaPulser InfoCode = 4
	InfoAsicPulser InfoCode = 19
	InfoCaenPulser InfoCode = 20
	InfoEbis       InfoCode = 21
	InfoT1         InfoCode = 22
	InfoSuperCycle InfoCode = 23
	InfoLaser      InfoCode = 24
)

// Hit is one entry of the time-sorted input stream. Immutable once read.
// Time is the raw module-local timestamp in ns; INFO entries carry a Code
// instead of a channel and have no amplitude.
type Hit struct {
	Kind      DataKind
	Module    uint8
	Asic      uint8
	Channel   uint8
	Code      InfoCode
	Amplitude uint16
	Time      int64
}

// CalibratedHit is a Hit with calibrated energy, walk correction and the
// module-clock corrected absolute time. Derived, never mutated after creation.
type CalibratedHit struct {
	Hit           Hit
	Time          int64 // absolute corrected time in ns
	Energy        float32
	Walk          int64
	OverThreshold bool
}
