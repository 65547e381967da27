package builder

import "sort"

// ElumFinder collects the ELUM hits of one closed window, one per sector.
// Repeated hits on the same sector are resolved by the configured dedup
// policy: highest energy wins, or first hit wins.
func ElumFinder(hits []CalibratedHit, set *Settings, cfg *Configuration, counters *Counters) []ElumEvt {
	best := make(map[int]ElumEvt)

	for _, h := range hits {
		if h.Hit.Kind != CaenData || !h.OverThreshold {
			continue
		}
		a, ok := set.CaenChannel(int(h.Hit.Module), int(h.Hit.Channel))
		if !ok {
			counters.UnknownChannel++
			continue
		}
		if a.Class() != DetElum {
			continue
		}
		evt := ElumEvt{Sector: a.Sector, Energy: h.Energy, Time: h.Time}
		prev, dup := best[a.Sector]
		if !dup {
			best[a.Sector] = evt
			continue
		}
		counters.DuplicateHits++
		if cfg.DedupPolicy == DedupHighestEnergy && evt.Energy > prev.Energy {
			best[a.Sector] = evt
		}
	}

	sectors := make([]int, 0, len(best))
	for sec := range best {
		sectors = append(sectors, sec)
	}
	sort.Ints(sectors)

	evts := make([]ElumEvt, 0, len(best))
	for _, sec := range sectors {
		evts = append(evts, best[sec])
	}
	return evts
}
