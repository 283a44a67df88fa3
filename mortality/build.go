package mortality

import (
	"errors"

	"go.uber.org/zap"
)

// Build resolves categories, selectivities, penalties, time steps and age
// weights, and sizes the working vectors. All problems are returned joined.
func (p *Instantaneous) Build(ctx Context) error {
	p.lg = ctx.Logger
	if p.lg == nil {
		p.lg = zap.NewNop()
	}
	p.lg = p.lg.With(zap.String("process", p.Label))
	p.pt = ctx.Partition
	p.finalYear = ctx.FinalYear

	var errs []error
	fail := func(param, format string, a ...interface{}) {
		errs = append(errs, cfgErr(p.Label, param, format, a...))
	}

	for i := range p.cats {
		c := &p.cats[i]
		cat, ok := ctx.Partition.Category(c.Label)
		if !ok {
			fail("categories", "category %s was not found", c.Label)
			continue
		}
		c.cat = cat
		n := cat.AgeSpread()
		c.Exploitation = make([]float64, n)
		c.ExpHalfM = make([]float64, n)
		c.SelectivityValues = make([]float64, n)
		if c.sel, ok = ctx.Selectivities.Get(c.SelectivityLabel); !ok {
			fail("relative_m_by_age", "M-by-age ogive %s was not found", c.SelectivityLabel)
		}
	}

	for i := range p.fcs {
		fc := &p.fcs[i]
		n := ctx.Partition.AgeSpread()
		fc.SelectivityValues = make([]float64, n)
		var ok bool
		if fc.sel, ok = ctx.Selectivities.Get(fc.SelectivityLabel); !ok {
			fail("method", "fishery selectivity %s was not found", fc.SelectivityLabel)
		}
		if fc.AgeWeightLabel != none {
			if fc.ageWeight, ok = ctx.AgeWeights[fc.AgeWeightLabel]; !ok {
				fail("method", "age weight label %s was not found", fc.AgeWeightLabel)
			}
		}
		if p.retained {
			fc.RetainedValues = make([]float64, n)
			fc.DiscardMortValues = make([]float64, n)
			if fc.retSel, ok = ctx.Selectivities.Get(fc.RetainedLabel); !ok {
				fail("method", "retained selectivity %s was not found", fc.RetainedLabel)
			}
			if fc.dmSel, ok = ctx.Selectivities.Get(fc.DiscardMortLabel); !ok {
				fail("method", "discard mortality selectivity %s was not found", fc.DiscardMortLabel)
			}
		}
	}

	for i := range p.fisheries {
		f := &p.fisheries[i]
		if f.PenaltyLabel != none && f.PenaltyLabel != "" {
			pen, ok := ctx.Penalties.Get(f.PenaltyLabel)
			if !ok {
				fail("method", "penalty label %s was not found", f.PenaltyLabel)
			}
			f.penalty = pen
		}
		ts, ok := ctx.TimeSteps.GetTimeStepIndex(f.TimeStepLabel)
		if !ok {
			fail("method", "time step label %s was not found", f.TimeStepLabel)
			continue
		}
		f.TimeStepIndex = ts
	}

	active := ctx.TimeSteps.ActiveFor(p.Label)
	if err := p.buildRatios(active); err != nil {
		errs = append(errs, err)
	}
	for _, f := range p.fisheries {
		if !ctx.TimeSteps.OrderedTimeSteps()[f.TimeStepIndex].HasProcess(p.Label) {
			fail("method", "method %s is assigned to time step %s where this process does not run", f.Label, f.TimeStepLabel)
		}
	}

	// time steps with no fishery only apply M
	p.skipF = make(map[int]bool, len(active))
	for _, ts := range active {
		p.skipF[ts] = true
		for _, f := range p.fisheries {
			if f.TimeStepIndex == ts {
				p.skipF[ts] = false
				break
			}
		}
		if p.skipF[ts] {
			p.lg.Debug("no method in time step, exploitation skipped", zap.Int("time_step", ts))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.ClearLedger()
	return nil
}
