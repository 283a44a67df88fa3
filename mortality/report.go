package mortality

// Series is one reported quantity by year
type Series map[int]float64

// Report returns, per fishery, the yearly series of the last run
func (p *Instantaneous) Report() map[string]map[string]Series {
	o := make(map[string]map[string]Series, len(p.fisheries))
	for _, f := range p.fisheries {
		r := map[string]Series{
			"exploitation_rate": copyYears(f.ExploitationByYear),
			"fishing_pressure":  copyYears(f.UObsByYear),
			"catch":             copyYears(f.Catches),
			"actual_catch":      copyYears(f.ActualCatches),
		}
		if p.retained {
			r["retained_catch"] = copyYears(f.RetainedCatches)
			r["actual_retained_catch"] = copyYears(f.ActualRetainedCatches)
			r["discards"] = copyYears(f.Discards)
			r["discards_dead"] = copyYears(f.DiscardsDead)
		}
		o[f.Label] = r
	}
	return o
}
