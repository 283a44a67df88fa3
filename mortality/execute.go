package mortality

import (
	"math"

	"github.com/maseology/casal/mathx"
	"go.uber.org/zap"
)

func (p *Instantaneous) isProcessYear(year int) bool { return p.years[year] }

// Execute runs the process for one time step of one year. While
// initialising only natural mortality is applied.
func (p *Instantaneous) Execute(year, timeStep int, initialising bool) error {
	ratio := p.ratios[timeStep]

	for i := range p.cats {
		c := &p.cats[i]
		c.used = false
		for _, fc := range p.fcs {
			if fc.Category == i && p.fisheries[fc.Fishery].TimeStepIndex == timeStep {
				c.used = true
				break
			}
		}
		for j := range c.Exploitation {
			s := c.sel.GetResult(c.cat.MinAge + j)
			c.Exploitation[j] = 0.
			c.SelectivityValues[j] = s
			c.ExpHalfM[j] = math.Exp(-.5 * ratio * c.M * s)
		}
	}

	if !initialising && !p.skipF[timeStep] && (p.isProcessYear(year) || year > p.finalYear) {
		p.fish(year, timeStep)
	}

	// deplete
	for i := range p.cats {
		c := &p.cats[i]
		for j := range c.cat.Data {
			c.cat.Data[j] *= c.ExpHalfM[j] * c.ExpHalfM[j] * (1. - c.Exploitation[j])
			if c.cat.Data[j] < 0. {
				return &ConsistencyError{
					Process:  p.Label,
					Category: c.Label,
					Year:     year,
					TimeStep: timeStep,
					Age:      c.cat.MinAge + j,
					Value:    c.cat.Data[j],
				}
			}
		}
	}
	return nil
}

func (p *Instantaneous) fish(year, timeStep int) {
	for i := range p.fcs {
		fc := &p.fcs[i]
		if p.fisheries[fc.Fishery].TimeStepIndex != timeStep {
			continue
		}
		minAge := p.cats[fc.Category].cat.MinAge
		for j := range fc.SelectivityValues {
			fc.SelectivityValues[j] = fc.sel.GetResult(minAge + j)
			if p.retained {
				fc.RetainedValues[j] = fc.retSel.GetResult(minAge + j)
				fc.DiscardMortValues[j] = fc.dmSel.GetResult(minAge + j)
			}
		}
	}

	// vulnerability
	for i := range p.fisheries {
		p.fisheries[i].Vulnerability = 0.
		p.fisheries[i].RetainedVulnerability = 0.
	}
	for k := range p.fcs {
		fc := &p.fcs[k]
		f := &p.fisheries[fc.Fishery]
		if f.TimeStepIndex != timeStep {
			continue
		}
		c := &p.cats[fc.Category]
		for j, n := range c.cat.Data {
			v := n * p.weight(fc, c, year, timeStep, j) * fc.SelectivityValues[j] * c.ExpHalfM[j]
			f.Vulnerability += v
			if p.retained {
				f.RetainedVulnerability += v * fc.RetainedValues[j]
			}
		}
	}

	// exploitation = catch / vulnerable
	for i := range p.fisheries {
		f := &p.fisheries[i]
		switch {
		case f.TimeStepIndex == timeStep:
			f.empty = mathx.Floored(f.Vulnerability) || (p.retained && mathx.Floored(f.RetainedVulnerability))
			switch {
			case f.empty:
				f.Exploitation = 0.
				if p.retained {
					f.Catches[year] = f.RetainedCatches[year]
				}
			case p.retained:
				rv := mathx.ZeroFun(f.RetainedVulnerability)
				f.Catches[year] = f.RetainedCatches[year] * f.Vulnerability / rv
				f.Exploitation = f.RetainedCatches[year] / rv
			default:
				f.Exploitation = f.Catches[year] / mathx.ZeroFun(f.Vulnerability)
			}
			p.lg.Debug("exploitation",
				zap.Int("year", year),
				zap.String("fishery", f.Label),
				zap.Float64("vulnerable", f.Vulnerability),
				zap.Float64("exploitation", f.Exploitation),
			)
		case f.TimeStepIndex > timeStep:
			f.Exploitation = 0.
		}
	}
	p.exploitationByAge(timeStep)

	// u_obs and the u_max cap
	for i := range p.fisheries {
		f := &p.fisheries[i]
		if f.TimeStepIndex != timeStep {
			continue
		}
		f.UObs = 0.
		if f.empty {
			continue
		}
		for _, fc := range p.fcs {
			if fc.Fishery != i {
				continue
			}
			for _, e := range p.cats[fc.Category].Exploitation {
				f.UObs = math.Max(f.UObs, e)
			}
		}
	}
	recalc := false
	for i := range p.fisheries {
		f := &p.fisheries[i]
		if f.TimeStepIndex != timeStep {
			continue
		}
		switch {
		case f.empty:
			f.ActualCatches[year] = 0.
			if p.retained {
				f.ActualRetainedCatches[year] = 0.
			}
			if f.penalty != nil && f.Catches[year] > 0. {
				f.penalty.Trigger(f.Label, f.Catches[year], 0.)
			}
			p.lg.Debug("nothing vulnerable, catch not taken",
				zap.Int("year", year),
				zap.String("fishery", f.Label),
				zap.Float64("catch", f.Catches[year]),
			)
		case f.UObs > f.UMax:
			f.Exploitation *= f.UMax / f.UObs
			f.ActualCatches[year] = f.Vulnerability * f.Exploitation
			if p.retained {
				f.ActualRetainedCatches[year] = f.RetainedVulnerability * f.Exploitation
			}
			if f.penalty != nil {
				f.penalty.Trigger(f.Label, f.Catches[year], f.ActualCatches[year])
			}
			p.lg.Debug("exploitation capped at u_max",
				zap.Int("year", year),
				zap.String("fishery", f.Label),
				zap.Float64("u_obs", f.UObs),
				zap.Float64("u_max", f.UMax),
				zap.Float64("exploitation", f.Exploitation),
			)
			recalc = true
		default:
			f.ActualCatches[year] = f.Catches[year]
			if p.retained {
				f.ActualRetainedCatches[year] = f.RetainedCatches[year]
			}
		}
		f.ExploitationByYear[year] = f.Exploitation
		f.UObsByYear[year] = f.UObs
		if p.retained {
			f.Discards[year] = f.ActualCatches[year] - f.ActualRetainedCatches[year]
			f.DiscardsDead[year] = 0.
		}
	}
	if recalc {
		p.exploitationByAge(timeStep)
	}

	if p.isProcessYear(year) {
		p.record(year, timeStep)
	}
}

// exploitationByAge sums the fishery rates into per-age category exploitation
func (p *Instantaneous) exploitationByAge(timeStep int) {
	for i := range p.cats {
		if !p.cats[i].used {
			continue
		}
		for j := range p.cats[i].Exploitation {
			p.cats[i].Exploitation[j] = 0.
		}
	}
	for k := range p.fcs {
		fc := &p.fcs[k]
		f := &p.fisheries[fc.Fishery]
		if f.TimeStepIndex != timeStep {
			continue
		}
		c := &p.cats[fc.Category]
		for j := range c.Exploitation {
			u := f.Exploitation * fc.SelectivityValues[j]
			if p.retained {
				r := fc.RetainedValues[j]
				u *= r + fc.DiscardMortValues[j]*(1.-r)
			}
			c.Exploitation[j] += u
		}
	}
}

// weight converts numbers to the units of the catch
func (p *Instantaneous) weight(fc *FisheryCategoryData, c *CategoryData, year, timeStep, j int) float64 {
	age := c.cat.MinAge + j
	switch {
	case fc.ageWeight != nil:
		return fc.ageWeight.MeanWeightAtAgeByYear(year, age)
	case p.biomass:
		return c.cat.MeanWeightAt(timeStep, age)
	}
	return 1.
}

// record writes the numbers removed by each active fishery to the ledger
func (p *Instantaneous) record(year, timeStep int) {
	for k := range p.fcs {
		fc := &p.fcs[k]
		f := &p.fisheries[fc.Fishery]
		if f.TimeStepIndex != timeStep {
			continue
		}
		c := &p.cats[fc.Category]
		rm := make([]float64, len(c.cat.Data))
		for j, n := range c.cat.Data {
			rm[j] = n * f.Exploitation * fc.SelectivityValues[j] * c.ExpHalfM[j]
		}
		p.removals.set(year, f.Label, c.Label, rm)
		if !p.retained {
			continue
		}
		rt, ds, dm := make([]float64, len(rm)), make([]float64, len(rm)), make([]float64, len(rm))
		for j := range rm {
			rt[j] = rm[j] * fc.RetainedValues[j]
			ds[j] = rm[j] - rt[j]
			dm[j] = fc.DiscardMortValues[j] * ds[j]
			f.DiscardsDead[year] += dm[j] * p.weight(fc, c, year, timeStep, j)
		}
		p.retainedAt.set(year, f.Label, c.Label, rt)
		p.discardsAt.set(year, f.Label, c.Label, ds)
		p.discardMortAt.set(year, f.Label, c.Label, dm)
	}
}
