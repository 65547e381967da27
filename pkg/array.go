package builder

import "sort"

// stripHit is one array strip after lookup-table resolution, possibly the
// sum of adjacent strips after addback.
type stripHit struct {
	module uint8
	side   int
	row    int
	strip  int
	energy float32
	time   int64
}

// ArrayFinder correlates the silicon-array hits of one closed window into
// p/n coincidences. Adjacent same-side strips are summed before pairing, and
// each p-side hit is paired with the n-side hit of smallest |dt| on the same
// module, accepted only inside the prompt range. Unmatched p-side hits are
// retained as p-only sub-events when configured.
func ArrayFinder(hits []CalibratedHit, set *Settings, cfg *Configuration, counters *Counters) ([]ArrayEvt, []ArrayPEvt) {
	var pside, nside []stripHit
	for _, h := range hits {
		if h.Hit.Kind != AsicData || !h.OverThreshold {
			continue
		}
		side, row, strip, ok := set.ArrayStrip(int(h.Hit.Asic), int(h.Hit.Channel))
		if !ok {
			counters.UnknownChannel++
			continue
		}
		sh := stripHit{
			module: h.Hit.Module,
			side:   side,
			row:    row,
			strip:  strip,
			energy: h.Energy,
			time:   h.Time,
		}
		if side == 0 {
			pside = append(pside, sh)
		} else {
			nside = append(nside, sh)
		}
	}

	pside = addback(pside)
	nside = addback(nside)

	var evts []ArrayEvt
	var pevts []ArrayPEvt
	for _, module := range arrayModules(pside, nside) {
		p := sideOfModule(pside, module)
		n := sideOfModule(nside, module)
		mevts, mpevts := pairModule(p, n, cfg)
		evts = append(evts, mevts...)
		pevts = append(pevts, mpevts...)
	}
	if !cfg.KeepArrayPOnly {
		pevts = nil
	}
	return evts, pevts
}

// addback sums chains of adjacent same-side strips on the same module and
// row. The surviving hit keeps the strip and time of its highest-energy
// member.
func addback(hits []stripHit) []stripHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].module != hits[j].module {
			return hits[i].module < hits[j].module
		}
		if hits[i].row != hits[j].row {
			return hits[i].row < hits[j].row
		}
		return hits[i].strip < hits[j].strip
	})

	var out []stripHit
	for i := 0; i < len(hits); {
		sum := hits[i]
		best := hits[i]
		j := i + 1
		for ; j < len(hits); j++ {
			prev := hits[j-1]
			cur := hits[j]
			if cur.module != prev.module || cur.row != prev.row || cur.strip != prev.strip+1 {
				break
			}
			sum.energy += cur.energy
			if cur.energy > best.energy {
				best = cur
			}
		}
		sum.strip = best.strip
		sum.time = best.time
		out = append(out, sum)
		i = j
	}
	return out
}

func arrayModules(pside, nside []stripHit) []uint8 {
	seen := make(map[uint8]bool)
	var modules []uint8
	for _, h := range pside {
		if !seen[h.module] {
			seen[h.module] = true
			modules = append(modules, h.module)
		}
	}
	for _, h := range nside {
		if !seen[h.module] {
			seen[h.module] = true
			modules = append(modules, h.module)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })
	return modules
}

func sideOfModule(hits []stripHit, module uint8) []stripHit {
	var out []stripHit
	for _, h := range hits {
		if h.module == module {
			out = append(out, h)
		}
	}
	return out
}

// pairModule matches the p and n hits of one module. Each p-side hit claims
// the n-side hit of smallest |dt|; equidistant candidates are resolved by the
// configured tie-break policy.
func pairModule(p, n []stripHit, cfg *Configuration) ([]ArrayEvt, []ArrayPEvt) {
	type claim struct {
		pidx       int
		nidx       int
		candidates int // n-side hits inside the prompt range for this p hit
	}

	var claims []claim
	claimed := make(map[int]int) // n index -> number of p hits claiming it
	for pi, ph := range p {
		best := -1
		candidates := 0
		for ni, nh := range n {
			dt := absDiff(ph.time, nh.time)
			if dt < cfg.ArrayPromptLow || dt > cfg.ArrayPromptHigh {
				continue
			}
			candidates++
			if best < 0 {
				best = ni
				continue
			}
			switch compareCandidates(ph, n[best], nh, cfg) {
			case 1:
				best = ni
			}
		}
		if best < 0 {
			continue
		}
		claims = append(claims, claim{pidx: pi, nidx: best, candidates: candidates})
		claimed[best]++
	}

	var evts []ArrayEvt
	matched := make(map[int]bool)
	for _, c := range claims {
		ph := p[c.pidx]
		nh := n[c.nidx]
		matched[c.pidx] = true
		evts = append(evts, ArrayEvt{
			Module:   ph.module,
			Row:      ph.row,
			PStrip:   ph.strip,
			NStrip:   nh.strip,
			PEnergy:  ph.energy,
			NEnergy:  nh.energy,
			Time:     ph.time,
			TimeDiff: ph.time - nh.time,
			Class:    classify(claimed[c.nidx], c.candidates),
		})
	}

	var pevts []ArrayPEvt
	for pi, ph := range p {
		if matched[pi] {
			continue
		}
		pevts = append(pevts, ArrayPEvt{
			Module: ph.module,
			Row:    ph.row,
			Strip:  ph.strip,
			Energy: ph.energy,
			Time:   ph.time,
		})
	}
	return evts, pevts
}

// compareCandidates decides whether challenger beats the current best n-side
// hit for a given p-side hit. Returns 1 when the challenger wins.
func compareCandidates(p stripHit, best stripHit, challenger stripHit, cfg *Configuration) int {
	dtBest := absDiff(p.time, best.time)
	dtChal := absDiff(p.time, challenger.time)
	if dtChal < dtBest {
		return 1
	}
	if dtChal > dtBest {
		return 0
	}
	// Exactly equidistant: apply the configured policy.
	switch cfg.ArrayTieBreak {
	case TieBreakHighEnergy:
		if challenger.energy > best.energy {
			return 1
		}
	default: // TieBreakLowStrip
		if challenger.strip < best.strip {
			return 1
		}
	}
	return 0
}

// classify maps the pairing neighbourhood of one coincidence to its
// multiplicity class: how many p hits shared the chosen n hit, and how many
// n hits were prompt candidates for the p hit.
func classify(pShared, nCandidates int) PNMultiplicity {
	switch {
	case pShared <= 1 && nCandidates <= 1:
		return PN11
	case pShared <= 1:
		return PN12
	case nCandidates <= 1:
		return PN21
	default:
		return PN22
	}
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
