package casal

import (
	"context"
	"fmt"
	"time"

	"github.com/maseology/casal/mortality"
	"go.uber.org/zap"
)

// Run executes one model iteration: reset, initialisation, then every year
// from start_year to the last (projection) year. ctx is checked between years.
func (m *Model) Run(ctx context.Context) (*Result, error) {
	return m.run(ctx, nil)
}

func (m *Model) run(ctx context.Context, onYear func(year int)) (*Result, error) {
	tt := time.Now()
	m.reset()

	for i := 0; i < m.InitialisationYears; i++ {
		if err := m.cycle(m.StartYear, true); err != nil {
			return nil, fmt.Errorf("Model.Run() initialisation failed: %w", err)
		}
	}
	for y := m.StartYear; y <= m.LastYear; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.cycle(y, false); err != nil {
			return nil, fmt.Errorf("Model.Run() failed: %w", err)
		}
		if onYear != nil {
			onYear(y)
		}
	}

	r := m.result()
	m.lg.Debug("run complete",
		zap.Float64("objective", r.Objective),
		zap.Int("penalties", m.Penalties.Count()),
		zap.Duration("elapsed", time.Since(tt)),
	)
	if m.metrics != nil {
		m.metrics.observe(r, m.Penalties.Count(), time.Since(tt))
	}
	return r, nil
}

func (m *Model) reset() {
	m.Partition.Clear()
	m.Penalties.Reset()
	for _, p := range m.processes {
		p.Reset()
	}
	for _, ms := range m.Mortality {
		ms.ClearLedger()
	}
	for _, q := range m.dqs {
		q.Reset()
	}
	for _, o := range m.Observations {
		o.Reset()
	}
}

// cycle runs each time step's processes in order, then the observations
// that execute in that step. Derived quantities of the step read the
// partition either side of its mortality, or at the end of the step when
// it has none.
func (m *Model) cycle(year int, initialising bool) error {
	for ts, step := range m.TimeSteps.OrderedTimeSteps() {
		m.TimeSteps.SetCurrent(ts)
		b := m.blocks[ts]
		for i, lbl := range step.Processes {
			if i == b.first {
				m.preDerived(ts)
			}
			if err := m.processes[lbl].Execute(year, ts, initialising); err != nil {
				return err
			}
			if i == b.last {
				m.execDerived(year, ts, initialising)
			}
		}
		if b.first < 0 {
			m.preDerived(ts)
			m.execDerived(year, ts, initialising)
		}
		if initialising {
			continue
		}
		for _, o := range m.Observations {
			if err := o.Execute(year, ts); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) preDerived(ts int) {
	for _, q := range m.dqs {
		if q.TimeStepIndex == ts {
			q.PreExecute(ts)
		}
	}
}

func (m *Model) execDerived(year, ts int, initialising bool) {
	for _, q := range m.dqs {
		if q.TimeStepIndex == ts {
			q.Execute(year, ts, initialising)
		}
	}
}

// result scores the observations and collects the reports of the run
func (m *Model) result() *Result {
	r := Result{
		RunID:     m.RunID,
		Scores:    make(map[string]map[int]float64, len(m.Observations)),
		Penalties: m.Penalties.Scores(),
		Reports:   make(map[string]map[string]map[string]mortality.Series, len(m.Mortality)),
		Ledger:    make(map[string]mortality.Removals, len(m.Mortality)),
		Partition: m.Partition.Snapshot(),
		Derived:   make(map[string]map[int]float64, len(m.dqs)),
	}
	for _, o := range m.Observations {
		r.Objective += o.CalculateScore()
		sc := make(map[int]float64, len(o.Scores()))
		for y, v := range o.Scores() {
			sc[y] = v
		}
		r.Scores[o.Label] = sc
	}
	r.Objective += m.Penalties.Score()
	for _, q := range m.dqs {
		v := make(map[int]float64, len(q.Values()))
		for y, x := range q.Values() {
			v[y] = x
		}
		r.Derived[q.Label] = v
	}
	for k, ms := range m.Mortality {
		r.Reports[k] = ms.Report()
		r.Ledger[k] = ms.CatchAt()
	}
	return &r
}
