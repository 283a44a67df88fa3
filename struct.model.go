// Package casal is an age-structured fish population model. Each year the
// partition is cycled through recruitment, instantaneous natural and fishing
// mortality and ageing; removals at age are kept in a ledger that the
// observations are scored against.
package casal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maseology/casal/ageing"
	"github.com/maseology/casal/agelength"
	"github.com/maseology/casal/config"
	"github.com/maseology/casal/derived"
	"github.com/maseology/casal/mortality"
	"github.com/maseology/casal/observation"
	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/penalty"
	"github.com/maseology/casal/selectivity"
	"github.com/maseology/casal/timestep"
	"go.uber.org/zap"
)

// Process is one member of the annual cycle
type Process interface {
	Execute(year, timeStep int, initialising bool) error
	Reset()
}

type addressable interface {
	Get(name string) (float64, error)
	Set(name string, v float64) error
}

// block spans the mortality processes of a time step, first to last;
// first is -1 when the step has none
type block struct{ first, last int }

// Model holds everything built from one configuration. A Model is not safe
// for concurrent runs; build one per goroutine.
type Model struct {
	RunID                          string
	StartYear, FinalYear, LastYear int
	InitialisationYears            int

	Partition     *partition.Partition
	TimeSteps     *timestep.Manager
	Selectivities *selectivity.Manager
	Penalties     *penalty.Manager
	AgeingErrors  *ageing.Manager
	AgeLengths    map[string]*agelength.VonBertalanffy
	AgeWeights    map[string]*agelength.AgeWeight
	Mortality     map[string]*mortality.Instantaneous
	Derived       map[string]*derived.Quantity
	Observations  []*observation.RemovalProportions

	processes map[string]Process
	dqs       []*derived.Quantity // in definition order
	blocks    []block             // by time step
	estimates []config.Estimate
	metrics   *Metrics
	lg        *zap.Logger
}

// SetMetrics attaches run metrics; nil detaches
func (m *Model) SetMetrics(mt *Metrics) { m.metrics = mt }

func (m *Model) Estimates() []config.Estimate { return m.estimates }

// Addressable names are "process[<label>].<name>", where name is understood
// by the process, e.g. process[Mortality].m[stock] or process[Recruitment].r0
func (m *Model) resolve(name string) (addressable, string, error) {
	const prfx = "process["
	if !strings.HasPrefix(name, prfx) {
		return nil, "", fmt.Errorf("addressable %s must start with %s", name, prfx)
	}
	i := strings.Index(name, "].")
	if i < 0 {
		return nil, "", fmt.Errorf("addressable %s is not of the form process[label].name", name)
	}
	lbl := name[len(prfx):i]
	p, ok := m.processes[lbl]
	if !ok {
		return nil, "", fmt.Errorf("addressable %s: process %s was not found", name, lbl)
	}
	a, ok := p.(addressable)
	if !ok {
		return nil, "", fmt.Errorf("addressable %s: process %s has no addressable parameters", name, lbl)
	}
	return a, name[i+2:], nil
}

func (m *Model) Get(name string) (float64, error) {
	a, n, err := m.resolve(name)
	if err != nil {
		return 0., err
	}
	return a.Get(n)
}

func (m *Model) Set(name string, v float64) error {
	a, n, err := m.resolve(name)
	if err != nil {
		return err
	}
	return a.Set(n, v)
}

// SetAll applies a parameter set, e.g. one Monte Carlo sample
func (m *Model) SetAll(pars map[string]float64) error {
	ks := make([]string, 0, len(pars))
	for k := range pars {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	for _, k := range ks {
		if err := m.Set(k, pars[k]); err != nil {
			return fmt.Errorf("Model.SetAll() failed: %v", err)
		}
	}
	return nil
}
