package builder

import "sort"

// RecoilFinder groups the recoil hits of one closed window by sector and
// separates energy-loss and stopping layers through the configured layer-id
// ranges. A sector forms a sub-event only when all configured layers are
// present in the window; single-layer leftovers follow the partial policy.
func RecoilFinder(hits []CalibratedHit, set *Settings, cfg *Configuration, counters *Counters) []RecoilEvt {
	type layerHit struct {
		energy float32
		time   int64
	}
	sectors := make(map[int]map[int]layerHit)

	for _, h := range hits {
		if h.Hit.Kind != CaenData || !h.OverThreshold {
			continue
		}
		a, ok := set.CaenChannel(int(h.Hit.Module), int(h.Hit.Channel))
		if !ok {
			counters.UnknownChannel++
			continue
		}
		if a.Class() != DetRecoil {
			continue
		}
		layers, ok := sectors[a.Sector]
		if !ok {
			layers = make(map[int]layerHit)
			sectors[a.Sector] = layers
		}
		if prev, dup := layers[a.Layer]; dup {
			counters.DuplicateHits++
			if cfg.DedupPolicy == DedupFirst || prev.energy >= h.Energy {
				continue
			}
		}
		layers[a.Layer] = layerHit{energy: h.Energy, time: h.Time}
	}

	sectorIDs := make([]int, 0, len(sectors))
	for sec := range sectors {
		sectorIDs = append(sectorIDs, sec)
	}
	sort.Ints(sectorIDs)

	var evts []RecoilEvt
	for _, sec := range sectorIDs {
		layers := sectors[sec]
		evt := RecoilEvt{Sector: sec}

		layerIDs := make([]int, 0, len(layers))
		for layer := range layers {
			layerIDs = append(layerIDs, layer)
		}
		sort.Ints(layerIDs)

		for _, layer := range layerIDs {
			evt.Layers = append(evt.Layers, layer)
			evt.Energies = append(evt.Energies, layers[layer].energy)
		}
		// The representative time comes from the innermost layer present.
		evt.Time = layers[layerIDs[0]].time

		if len(layers) < set.RecoilLayers {
			evt.Partial = true
			if cfg.RecoilPartial == RecoilPartialDrop {
				counters.RecoilPartialDropped++
				continue
			}
		}
		evts = append(evts, evt)
	}
	return evts
}
