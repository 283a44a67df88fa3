package mortality

// Removals are numbers removed, keyed year -> fishery -> category, indexed
// by age offset from the model min age
type Removals map[int]map[string]map[string][]float64

func (r Removals) set(year int, fishery, category string, v []float64) {
	if _, ok := r[year]; !ok {
		r[year] = make(map[string]map[string][]float64)
	}
	if _, ok := r[year][fishery]; !ok {
		r[year][fishery] = make(map[string][]float64)
	}
	r[year][fishery][category] = v
}

// Get returns the removals at age, false when the fishery did not take the
// category in that year
func (r Removals) Get(year int, fishery, category string) ([]float64, bool) {
	fm, ok := r[year]
	if !ok {
		return nil, false
	}
	cm, ok := fm[fishery]
	if !ok {
		return nil, false
	}
	v, ok := cm[category]
	return v, ok
}

// Total sums every age of every entry
func (r Removals) Total() (s float64) {
	for _, fm := range r {
		for _, cm := range fm {
			for _, v := range cm {
				for _, x := range v {
					s += x
				}
			}
		}
	}
	return
}

// CatchAt is the removal ledger. Callers must not modify the vectors.
func (p *Instantaneous) CatchAt() Removals { return p.removals }

// RetainedAt, DiscardsAt and DiscardMortalityAt are nil unless the process
// is the retained variant
func (p *Instantaneous) RetainedAt() Removals { return p.retainedAt }

func (p *Instantaneous) DiscardsAt() Removals { return p.discardsAt }

func (p *Instantaneous) DiscardMortalityAt() Removals { return p.discardMortAt }

// ClearLedger empties the ledger and the per-year reports ahead of a new
// model iteration
func (p *Instantaneous) ClearLedger() {
	p.removals = make(Removals)
	if p.retained {
		p.retainedAt = make(Removals)
		p.discardsAt = make(Removals)
		p.discardMortAt = make(Removals)
	}
	for i := range p.fisheries {
		f := &p.fisheries[i]
		f.ExploitationByYear = make(map[int]float64)
		f.UObsByYear = make(map[int]float64)
		if p.retained {
			f.ActualRetainedCatches = copyYears(f.RetainedCatches)
			f.Discards = make(map[int]float64)
			f.DiscardsDead = make(map[int]float64)
		}
		f.ActualCatches = copyYears(f.Catches)
		f.Vulnerability, f.RetainedVulnerability, f.UObs, f.Exploitation = 0., 0., 0., 0.
	}
}

// FisheryTimeStep returns the time step index the fishery operates in
func (p *Instantaneous) FisheryTimeStep(fishery string) (int, bool) {
	if i, ok := p.fxr[fishery]; ok {
		return p.fisheries[i].TimeStepIndex, true
	}
	return -1, false
}

// CheckMethods is true when every method is a fishery of this process
func (p *Instantaneous) CheckMethods(methods []string) bool {
	for _, m := range methods {
		if _, ok := p.fxr[m]; !ok {
			return false
		}
	}
	return true
}

// CheckCategories is true when every method takes every category
func (p *Instantaneous) CheckCategories(methods, categories []string) bool {
	for _, m := range methods {
		fi, ok := p.fxr[m]
		if !ok {
			return false
		}
		for _, c := range categories {
			ci, ok := p.cxr[c]
			if !ok {
				return false
			}
			found := false
			for _, fc := range p.fcs {
				if fc.Fishery == fi && fc.Category == ci {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// CheckYears is true when every method has a positive catch in every year
func (p *Instantaneous) CheckYears(years []int, methods []string) bool {
	for _, m := range methods {
		fi, ok := p.fxr[m]
		if !ok {
			return false
		}
		catches := p.fisheries[fi].Catches
		if p.retained {
			catches = p.fisheries[fi].RetainedCatches
		}
		for _, y := range years {
			if v, ok := catches[y]; !ok || v <= 0. {
				return false
			}
		}
	}
	return true
}
