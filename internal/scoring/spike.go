package scoring

// SpikeParams places detected spikes on the high-rate signal grid.
type SpikeParams struct {
	// Tolerance widens each reference spike to [loc-Tolerance, loc+Tolerance).
	Tolerance int
	// RecordingLength is the grid length in samples.
	RecordingLength int
	// StartLoc drops spikes located before it (baseline warm-up).
	StartLoc int
}

// SpikeScore holds spike-level detection scores.
type SpikeScore struct {
	TP          int     `json:"tp"`
	FP          int     `json:"fp"`
	Sensitivity float64 `json:"sensitivity"`
	Precision   float64 `json:"precision"`
	F1          float64 `json:"f1"`
}

// ScoreSpikes compares detected spike locations against reference locations.
// TP counts hypothesis spike samples inside a widened reference spike and FP
// those outside; sensitivity is relative to the number of reference spikes.
func ScoreSpikes(refLocs, hypLocs []int, p SpikeParams) SpikeScore {
	refMask := spikeMask(refLocs, p.Tolerance, p)
	hypMask := spikeMask(hypLocs, 0, p)

	var s SpikeScore
	for i, h := range hypMask {
		if !h {
			continue
		}
		if refMask[i] {
			s.TP++
		} else {
			s.FP++
		}
	}
	r := Ratios(s.TP, s.FP, len(refLocs), 0)
	s.Sensitivity, s.Precision, s.F1 = r.Sensitivity, r.Precision, r.F1
	return s
}

func spikeMask(locs []int, tolerance int, p SpikeParams) []bool {
	mask := make([]bool, p.RecordingLength)
	for _, loc := range locs {
		if loc < p.StartLoc {
			continue
		}
		if tolerance <= 0 {
			if loc >= 0 && loc < len(mask) {
				mask[loc] = true
			}
			continue
		}
		start, end := loc-tolerance, loc+tolerance
		if start < 0 {
			start = 0
		}
		if end > len(mask) {
			end = len(mask)
		}
		for i := start; i < end; i++ {
			mask[i] = true
		}
	}
	return mask
}
