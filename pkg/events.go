package builder

// PNMultiplicity classifies a p/n pairing by how many hits on either side
// took part in it.
type PNMultiplicity int

const (
	PN11 PNMultiplicity = iota
	PN12
	PN21
	PN22
)

func (m PNMultiplicity) String() string {
	switch m {
	case PN11:
		return "1p1n"
	case PN12:
		return "1p2n"
	case PN21:
		return "2p1n"
	case PN22:
		return "2p2n"
	default:
		return "unknown"
	}
}

// ArrayEvt is one p/n coincidence on the silicon array.
type ArrayEvt struct {
	Module   uint8
	Row      int
	PStrip   int
	NStrip   int
	PEnergy  float32
	NEnergy  float32
	Time     int64 // p-side time, the representative timestamp
	TimeDiff int64 // p minus n
	Class    PNMultiplicity
}

// ArrayPEvt is a p-side hit with no matching n-side signal.
type ArrayPEvt struct {
	Module uint8
	Row    int
	Strip  int
	Energy float32
	Time   int64
}

// RecoilEvt is one recoil sector with its per-layer energies.
type RecoilEvt struct {
	Sector   int
	Layers   []int
	Energies []float32
	Time     int64
	Partial  bool
}

// EnergyLoss sums the energies deposited in the energy-loss layers.
func (r *RecoilEvt) EnergyLoss(set *Settings) float32 {
	var sum float32
	for i, layer := range r.Layers {
		if layer < set.RecoilLossDepth {
			sum += r.Energies[i]
		}
	}
	return sum
}

// EnergyRest sums the energies deposited in the stopping layers.
func (r *RecoilEvt) EnergyRest(set *Settings) float32 {
	var sum float32
	for i, layer := range r.Layers {
		if layer >= set.RecoilLossDepth {
			sum += r.Energies[i]
		}
	}
	return sum
}

// MwpcEvt is one axis of the MWPC. Position holds when both TACs fired;
// a single TAC is retained as a partial hit with no position.
type MwpcEvt struct {
	Axis     int
	Sector   int
	TacDiff  int32
	Position bool
	Time     int64
}

// ElumEvt is a single hit on one ELUM sector.
type ElumEvt struct {
	Sector int
	Energy float32
	Time   int64
}

// ZeroDegreeEvt collects the per-layer energies of the zero-degree detector.
type ZeroDegreeEvt struct {
	Layers   []int
	Energies []float32
	Time     int64
}

// GammaType tags a gamma-ray sub-event as a single hit or an addback sum.
type GammaType int

const (
	GammaSingle GammaType = iota
	GammaAddback
)

// GammaRayEvt is a scintillator-array hit, either a single detector or the
// addback sum over adjacent elements.
type GammaRayEvt struct {
	Detector int
	Energy   float32
	Segments int
	Type     GammaType
	Time     int64
}

// PhysicsEvt is everything found in one closed window, in window-close order.
type PhysicsEvt struct {
	WindowStart int64
	WindowEnd   int64
	Hits        int

	Array      []ArrayEvt
	ArrayP     []ArrayPEvt
	Recoil     []RecoilEvt
	Mwpc       []MwpcEvt
	Elum       []ElumEvt
	ZeroDegree []ZeroDegreeEvt
	Gamma      []GammaRayEvt

	// Facility pulse times as known when the window closed.
	EbisTime  int64
	T1Time    int64
	SCTime    int64
	LaserTime int64
}
