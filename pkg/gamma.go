package builder

import "sort"

// GammaRayFinder produces scintillator-array singles plus same-window
// addback over adjacent elements. Both the individual hits and the summed
// hits are emitted, tagged for later time-correlation analysis.
func GammaRayFinder(hits []CalibratedHit, set *Settings, cfg *Configuration, counters *Counters) []GammaRayEvt {
	type gammaHit struct {
		detector int
		energy   float32
		time     int64
	}
	var singles []gammaHit

	for _, h := range hits {
		if h.Hit.Kind != CaenData || !h.OverThreshold {
			continue
		}
		a, ok := set.CaenChannel(int(h.Hit.Module), int(h.Hit.Channel))
		if !ok {
			counters.UnknownChannel++
			continue
		}
		if a.Class() != DetGamma {
			continue
		}
		singles = append(singles, gammaHit{detector: a.ID, energy: h.Energy, time: h.Time})
	}

	sort.Slice(singles, func(i, j int) bool { return singles[i].detector < singles[j].detector })

	var evts []GammaRayEvt
	for _, s := range singles {
		evts = append(evts, GammaRayEvt{
			Detector: s.detector,
			Energy:   s.energy,
			Segments: 1,
			Type:     GammaSingle,
			Time:     s.time,
		})
	}

	// Addback: chains of adjacent detectors whose hits are prompt with their
	// neighbour are summed into one logical hit. The sum keeps the detector
	// id and time of its highest-energy member.
	for i := 0; i < len(singles); {
		sum := singles[i]
		best := singles[i]
		n := 1
		j := i + 1
		for ; j < len(singles); j++ {
			prev := singles[j-1]
			cur := singles[j]
			if cur.detector != prev.detector+1 {
				break
			}
			if absDiff(cur.time, prev.time) > cfg.GammaPrompt {
				break
			}
			sum.energy += cur.energy
			n++
			if cur.energy > best.energy {
				best = cur
			}
		}
		if n > 1 {
			evts = append(evts, GammaRayEvt{
				Detector: best.detector,
				Energy:   sum.energy,
				Segments: n,
				Type:     GammaAddback,
				Time:     best.time,
			})
		}
		i = j
	}
	return evts
}
