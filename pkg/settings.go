package builder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Detector classes on the CAEN side of the DAQ.
type DetectorClass int

const (
	DetRecoil DetectorClass = iota
	DetMwpc
	DetElum
	DetZeroDegree
	DetGamma
)

func (d DetectorClass) String() string {
	switch d {
	case DetRecoil:
		return "recoil"
	case DetMwpc:
		return "mwpc"
	case DetElum:
		return "elum"
	case DetZeroDegree:
		return "zerodegree"
	case DetGamma:
		return "gamma"
	default:
		return "unknown"
	}
}

// CaenAssignment maps one CAEN channel to a physical detector element.
// Meaning of the id fields depends on the detector: recoils use sector+layer,
// the MWPC uses axis+sector+id, the ELUM uses sector, the zero-degree
// detector uses layer and the scintillator array uses detector id.
type CaenAssignment struct {
	Module   int    `yaml:"module"`
	Channel  int    `yaml:"channel"`
	Detector string `yaml:"detector"`
	Sector   int    `yaml:"sector"`
	Layer    int    `yaml:"layer"`
	Axis     int    `yaml:"axis"`
	ID       int    `yaml:"id"`

	class DetectorClass
}

type caenKey struct {
	module  int
	channel int
}

// Settings encodes the wiring of the detectors: how many modules are
// connected and which strip or detector element each channel corresponds to.
// Tables are read-only for the duration of a run.
type Settings struct {
	ArrayModules    int `yaml:"array_modules"`
	AsicsPerModule  int `yaml:"asics_per_module"`
	ChannelsPerAsic int `yaml:"channels_per_asic"`
	CaenModules     int `yaml:"caen_modules"`
	CaenChannels    int `yaml:"caen_channels"`

	RecoilSectors    int `yaml:"recoil_sectors"`
	RecoilLayers     int `yaml:"recoil_layers"`
	RecoilLossDepth  int `yaml:"recoil_loss_depth"` // layer ids below this measure energy loss
	MwpcAxes         int `yaml:"mwpc_axes"`
	ElumSectors      int `yaml:"elum_sectors"`
	ZeroDegreeLayers int `yaml:"zero_degree_layers"`
	GammaDetectors   int `yaml:"gamma_detectors"`

	// AsicSide holds 0 for p-side and 1 for n-side, indexed by asic number.
	AsicSide []int `yaml:"asic_side"`
	// AsicRow holds the array row covered by each asic.
	AsicRow []int `yaml:"asic_row"`
	// ArrayPID and ArrayNID give each strip a unique id, indexed by asic and
	// channel number. Unused channels hold -1.
	ArrayPID [][]int `yaml:"array_pid"`
	ArrayNID [][]int `yaml:"array_nid"`

	Caen []CaenAssignment `yaml:"caen"`

	caenMap map[caenKey]*CaenAssignment
}

func LoadSettings(filename string) (*Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	set := &Settings{}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, err
	}
	if err := set.Finalize(); err != nil {
		return nil, err
	}
	return set, nil
}

// DefaultSettings returns the standard wiring: three array modules with four
// asics each (p-side even, n-side odd), one CAEN module carrying the recoil
// sectors and the MWPC TACs, and a second carrying ELUM, zero-degree and the
// scintillator array.
func DefaultSettings() *Settings {
	set := &Settings{
		ArrayModules:     3,
		AsicsPerModule:   4,
		ChannelsPerAsic:  128,
		CaenModules:      2,
		CaenChannels:     16,
		RecoilSectors:    4,
		RecoilLayers:     2,
		RecoilLossDepth:  1,
		MwpcAxes:         2,
		ElumSectors:      4,
		ZeroDegreeLayers: 2,
		GammaDetectors:   8,
	}

	set.AsicSide = []int{0, 1, 0, 1}
	set.AsicRow = []int{0, 0, 1, 1}
	set.ArrayPID = make([][]int, set.AsicsPerModule)
	set.ArrayNID = make([][]int, set.AsicsPerModule)
	for asic := 0; asic < set.AsicsPerModule; asic++ {
		set.ArrayPID[asic] = make([]int, set.ChannelsPerAsic)
		set.ArrayNID[asic] = make([]int, set.ChannelsPerAsic)
		for ch := 0; ch < set.ChannelsPerAsic; ch++ {
			if set.AsicSide[asic] == 0 {
				set.ArrayPID[asic][ch] = ch
				set.ArrayNID[asic][ch] = -1
			} else {
				set.ArrayPID[asic][ch] = -1
				set.ArrayNID[asic][ch] = ch
			}
		}
	}

	// CAEN module 0: recoils on ch 0-7 (sector*2 + layer), MWPC TACs on 8-11.
	for sec := 0; sec < set.RecoilSectors; sec++ {
		for layer := 0; layer < set.RecoilLayers; layer++ {
			set.Caen = append(set.Caen, CaenAssignment{
				Module: 0, Channel: sec*set.RecoilLayers + layer,
				Detector: "recoil", Sector: sec, Layer: layer,
			})
		}
	}
	for axis := 0; axis < set.MwpcAxes; axis++ {
		for id := 0; id < 2; id++ {
			set.Caen = append(set.Caen, CaenAssignment{
				Module: 0, Channel: 8 + axis*2 + id,
				Detector: "mwpc", Axis: axis, Sector: 0, ID: id,
			})
		}
	}

	// CAEN module 1: ELUM on ch 0-3, zero-degree on 4-5, scintillators on 8-15.
	for sec := 0; sec < set.ElumSectors; sec++ {
		set.Caen = append(set.Caen, CaenAssignment{
			Module: 1, Channel: sec, Detector: "elum", Sector: sec,
		})
	}
	for layer := 0; layer < set.ZeroDegreeLayers; layer++ {
		set.Caen = append(set.Caen, CaenAssignment{
			Module: 1, Channel: 4 + layer, Detector: "zerodegree", Layer: layer,
		})
	}
	for det := 0; det < set.GammaDetectors; det++ {
		set.Caen = append(set.Caen, CaenAssignment{
			Module: 1, Channel: 8 + det, Detector: "gamma", ID: det,
		})
	}

	if err := set.Finalize(); err != nil {
		// The built-in wiring always validates.
		panic(err)
	}
	return set
}

// Finalize validates the tables and builds the channel lookup maps.
func (s *Settings) Finalize() error {
	if s.ArrayModules <= 0 {
		return &ErrInvalidSettings{Table: "array_modules", Reason: "zero modules configured"}
	}
	if s.CaenModules <= 0 {
		return &ErrInvalidSettings{Table: "caen_modules", Reason: "zero modules configured"}
	}
	if len(s.AsicSide) != s.AsicsPerModule {
		return &ErrInvalidSettings{
			Table:  "asic_side",
			Reason: fmt.Sprintf("got %d entries, want %d", len(s.AsicSide), s.AsicsPerModule),
		}
	}
	if len(s.AsicRow) != s.AsicsPerModule {
		return &ErrInvalidSettings{
			Table:  "asic_row",
			Reason: fmt.Sprintf("got %d entries, want %d", len(s.AsicRow), s.AsicsPerModule),
		}
	}
	for name, table := range map[string][][]int{"array_pid": s.ArrayPID, "array_nid": s.ArrayNID} {
		if len(table) != s.AsicsPerModule {
			return &ErrInvalidSettings{
				Table:  name,
				Reason: fmt.Sprintf("got %d asics, want %d", len(table), s.AsicsPerModule),
			}
		}
		for asic := range table {
			if len(table[asic]) != s.ChannelsPerAsic {
				return &ErrInvalidSettings{
					Table:  name,
					Reason: fmt.Sprintf("asic %d has %d channels, want %d", asic, len(table[asic]), s.ChannelsPerAsic),
				}
			}
		}
	}

	s.caenMap = make(map[caenKey]*CaenAssignment, len(s.Caen))
	for i := range s.Caen {
		a := &s.Caen[i]
		switch a.Detector {
		case "recoil":
			a.class = DetRecoil
		case "mwpc":
			a.class = DetMwpc
		case "elum":
			a.class = DetElum
		case "zerodegree":
			a.class = DetZeroDegree
		case "gamma":
			a.class = DetGamma
		default:
			return &ErrInvalidSettings{
				Table:  "caen",
				Reason: fmt.Sprintf("unknown detector %q on module %d channel %d", a.Detector, a.Module, a.Channel),
			}
		}
		if a.Module < 0 || a.Module >= s.CaenModules {
			return &ErrInvalidSettings{
				Table:  "caen",
				Reason: fmt.Sprintf("module %d out of range", a.Module),
			}
		}
		key := caenKey{module: a.Module, channel: a.Channel}
		if _, dup := s.caenMap[key]; dup {
			return &ErrInvalidSettings{
				Table:  "caen",
				Reason: fmt.Sprintf("module %d channel %d assigned twice", a.Module, a.Channel),
			}
		}
		s.caenMap[key] = a
	}
	return nil
}

// ArrayStrip resolves an asic/channel pair to side, row and strip id.
// Returns ok=false for channels that are not wired to a strip.
func (s *Settings) ArrayStrip(asic, channel int) (side, row, strip int, ok bool) {
	if asic < 0 || asic >= s.AsicsPerModule || channel < 0 || channel >= s.ChannelsPerAsic {
		return 0, 0, 0, false
	}
	side = s.AsicSide[asic]
	row = s.AsicRow[asic]
	if side == 0 {
		strip = s.ArrayPID[asic][channel]
	} else {
		strip = s.ArrayNID[asic][channel]
	}
	if strip < 0 {
		return 0, 0, 0, false
	}
	return side, row, strip, true
}

// CaenChannel resolves a CAEN module/channel pair to its detector assignment.
func (s *Settings) CaenChannel(module, channel int) (CaenAssignment, bool) {
	a, ok := s.caenMap[caenKey{module: module, channel: channel}]
	if !ok {
		return CaenAssignment{}, false
	}
	return *a, true
}

func (a CaenAssignment) Class() DetectorClass { return a.class }
