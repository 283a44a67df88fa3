package observation

import (
	"errors"
	"strings"

	"github.com/maseology/casal/agelength"
	"github.com/maseology/casal/mortality"
	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/timestep"
	"gonum.org/v1/gonum/mat"
	"go.uber.org/zap"
)

// Mortality is the part of a mortality process an observation reads
type Mortality interface {
	IsRetained() bool
	CatchAt() mortality.Removals
	RetainedAt() mortality.Removals
	DiscardsAt() mortality.Removals
	FisheryTimeStep(fishery string) (int, bool)
	CheckMethods(methods []string) bool
	CheckCategories(methods, categories []string) bool
	CheckYears(years []int, methods []string) bool
}

type AgeingError interface {
	Label() string
	Apply(v []float64) ([]float64, error)
}

// Context holds the collaborators resolved at Build
type Context struct {
	Processes    map[string]Mortality
	AgeingErrors map[string]AgeingError
	AgeLengths   map[string]*agelength.VonBertalanffy
	Partition    *partition.Partition
	TimeSteps    *timestep.Manager
	Logger       *zap.Logger
}

// Build resolves the mortality process, ageing error and time steps and
// checks the process can supply every method, category and year
func (o *RemovalProportions) Build(ctx Context) error {
	o.lg = ctx.Logger
	if o.lg == nil {
		o.lg = zap.NewNop()
	}
	o.lg = o.lg.With(zap.String("observation", o.Label))

	var errs []error
	fail := func(param, format string, a ...interface{}) {
		errs = append(errs, cfgErr(o.Label, param, format, a...))
	}

	ms, ok := ctx.Processes[o.process]
	if !ok {
		return cfgErr(o.Label, "process", "mortality process %s was not found", o.process)
	}
	if o.needR && !ms.IsRetained() {
		return cfgErr(o.Label, "process", "observation type %s requires a process of type %s; %s is not", o.Type, mortality.TypeRetained, o.process)
	}
	o.ms = ms

	switch {
	case o.ageingLbl != "":
		if o.agg == ByLength {
			fail("ageing_error", "ageing error cannot be applied to a length-based observation")
			break
		}
		ae, ok := ctx.AgeingErrors[o.ageingLbl]
		if !ok {
			fail("ageing_error", "ageing error label %s was not found", o.ageingLbl)
		}
		o.ageErr = ae
	case o.agg == ByAge:
		o.lg.Warn("an age-based observation with no ageing error was provided")
	}

	var split []string
	for _, c := range o.categories {
		for _, s := range strings.Split(c, "+") {
			split = append(split, strings.TrimSpace(s))
		}
	}
	for _, c := range split {
		if !ctx.Partition.IsValid(c) {
			fail("categories", "category %s was not found", c)
		}
	}

	var yrs []int
	for y := range o.years {
		yrs = append(yrs, y)
	}
	if !ms.CheckMethods(o.methods) {
		fail("method_of_removal", "could not find all these methods in the mortality process %s", o.process)
	} else {
		if !ms.CheckCategories(o.methods, split) {
			fail("categories", "could not find all these categories in the methods of mortality process %s", o.process)
		}
		if !ms.CheckYears(yrs, o.methods) {
			fail("years", "mortality process %s does not have a positive catch in every year for every method", o.process)
		}
	}

	o.execStep = -1
	for i, l := range o.tsLabels {
		ts, ok := ctx.TimeSteps.GetTimeStepIndex(l)
		if !ok {
			fail("time_step", "time step label %s was not found", l)
			continue
		}
		if fts, ok := ms.FisheryTimeStep(o.methods[i]); ok && fts != ts {
			fail("time_step", "method %s does not occur in time step %s", o.methods[i], l)
		}
		if ts > o.execStep {
			o.execStep = ts
		}
	}

	if o.agg == ByLength && len(errs) == 0 {
		o.alp = make(map[string]*mat.Dense, len(split))
		for _, c := range split {
			cat, _ := ctx.Partition.Category(c)
			vb, ok := ctx.AgeLengths[cat.AgeLength]
			if !ok {
				fail("categories", "category %s has no age-length relationship", c)
				continue
			}
			p, err := vb.Proportions(o.execStep, o.bins, o.plus)
			if err != nil {
				fail("length_bins", "%v", err)
				continue
			}
			d := mat.NewDense(len(p), o.nbins, nil)
			for i, r := range p {
				d.SetRow(i, r)
			}
			o.alp[c] = d
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	o.Reset()
	return nil
}
