package builder

import "sort"

// ZeroDegreeFinder collects the zero-degree hits of one closed window, one
// per layer, deduplicated by the configured policy, and packages them into a
// single per-layer sub-event.
func ZeroDegreeFinder(hits []CalibratedHit, set *Settings, cfg *Configuration, counters *Counters) []ZeroDegreeEvt {
	type layerHit struct {
		energy float32
		time   int64
	}
	best := make(map[int]layerHit)

	for _, h := range hits {
		if h.Hit.Kind != CaenData || !h.OverThreshold {
			continue
		}
		a, ok := set.CaenChannel(int(h.Hit.Module), int(h.Hit.Channel))
		if !ok {
			counters.UnknownChannel++
			continue
		}
		if a.Class() != DetZeroDegree {
			continue
		}
		hit := layerHit{energy: h.Energy, time: h.Time}
		prev, dup := best[a.Layer]
		if !dup {
			best[a.Layer] = hit
			continue
		}
		counters.DuplicateHits++
		if cfg.DedupPolicy == DedupHighestEnergy && hit.energy > prev.energy {
			best[a.Layer] = hit
		}
	}

	if len(best) == 0 {
		return nil
	}

	layers := make([]int, 0, len(best))
	for layer := range best {
		layers = append(layers, layer)
	}
	sort.Ints(layers)

	evt := ZeroDegreeEvt{Time: best[layers[0]].time}
	for _, layer := range layers {
		evt.Layers = append(evt.Layers, layer)
		evt.Energies = append(evt.Energies, best[layer].energy)
	}
	return []ZeroDegreeEvt{evt}
}
