package recon

// SweepCenters generates the trial rotation centers: a fixed-step sweep
// over [nominal-span, nominal+span). The nominal value must already be in
// binned detector coordinates. The sweep length is constant for a run and
// fixes the leading dimension of every intermediate and output volume.
func SweepCenters(nominal, span, step float64) []float32 {
	if step <= 0 || span <= 0 {
		return []float32{float32(nominal)}
	}
	var out []float32
	for c := nominal - span; c < nominal+span; c += step {
		out = append(out, float32(c))
	}
	return out
}
