package builder

import "sort"

// MwpcFinder pairs the MWPC timing hits of one closed window by axis and
// sector. Multiplicity two on an axis yields a position value proportional
// to the difference of the two amplitudes; a lone hit is retained as a
// partial with no position. Higher multiplicities are ambiguous and counted.
func MwpcFinder(hits []CalibratedHit, set *Settings, counters *Counters) []MwpcEvt {
	type axisKey struct {
		axis   int
		sector int
	}
	type tacHit struct {
		id   int
		amp  uint16
		time int64
	}
	axes := make(map[axisKey][]tacHit)

	for _, h := range hits {
		if h.Hit.Kind != CaenData || !h.OverThreshold {
			continue
		}
		a, ok := set.CaenChannel(int(h.Hit.Module), int(h.Hit.Channel))
		if !ok {
			counters.UnknownChannel++
			continue
		}
		if a.Class() != DetMwpc {
			continue
		}
		key := axisKey{axis: a.Axis, sector: a.Sector}
		axes[key] = append(axes[key], tacHit{id: a.ID, amp: h.Hit.Amplitude, time: h.Time})
	}

	keys := make([]axisKey, 0, len(axes))
	for k := range axes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].axis != keys[j].axis {
			return keys[i].axis < keys[j].axis
		}
		return keys[i].sector < keys[j].sector
	})

	var evts []MwpcEvt
	for _, key := range keys {
		tacs := axes[key]
		switch len(tacs) {
		case 1:
			evts = append(evts, MwpcEvt{
				Axis:   key.axis,
				Sector: key.sector,
				Time:   tacs[0].time,
			})
		case 2:
			// Position is proportional to the difference of the two TAC
			// amplitudes, ordered by TAC id.
			sort.Slice(tacs, func(i, j int) bool { return tacs[i].id < tacs[j].id })
			evts = append(evts, MwpcEvt{
				Axis:     key.axis,
				Sector:   key.sector,
				TacDiff:  int32(tacs[1].amp) - int32(tacs[0].amp),
				Position: true,
				Time:     tacs[0].time,
			})
		default:
			counters.MwpcAmbiguous++
		}
	}
	return evts
}
