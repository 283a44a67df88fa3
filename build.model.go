package casal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
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

const defaultBaseUnits = "tonnes"

// BuildModel constructs and builds every component of the configuration.
// Problems from independent components are returned together.
func BuildModel(cfg *config.Config, lg *zap.Logger) (*Model, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	mc := cfg.Model
	m := Model{
		RunID:               uuid.NewString(),
		StartYear:           mc.StartYear,
		FinalYear:           mc.FinalYear,
		LastYear:            mc.LastYear(),
		InitialisationYears: mc.InitialisationYears,
		AgeLengths:          make(map[string]*agelength.VonBertalanffy, len(cfg.AgeLengths)),
		AgeWeights:          make(map[string]*agelength.AgeWeight, len(cfg.AgeWeights)),
		Mortality:           make(map[string]*mortality.Instantaneous),
		Derived:             make(map[string]*derived.Quantity, len(cfg.Derived)),
		processes:           make(map[string]Process, len(cfg.Processes)),
		estimates:           cfg.Estimates,
	}
	m.lg = lg.With(zap.String("run", m.RunID))

	labels := make([]string, len(cfg.Categories))
	for i, c := range cfg.Categories {
		labels[i] = c.Label
	}
	var err error
	if m.Partition, err = partition.New(mc.MinAge, mc.MaxAge, mc.AgePlus, labels...); err != nil {
		return nil, fmt.Errorf("BuildModel() failed: %v", err)
	}
	steps := make([]timestep.Step, len(mc.TimeSteps))
	for i, ts := range mc.TimeSteps {
		steps[i] = timestep.Step{Label: ts.Label, Processes: ts.Processes}
	}
	if m.TimeSteps, err = timestep.NewManager(steps...); err != nil {
		return nil, fmt.Errorf("BuildModel() failed: %v", err)
	}

	var errs []error
	errs = append(errs, m.buildSelectivities(cfg)...)
	errs = append(errs, m.buildPenalties(cfg)...)
	errs = append(errs, m.buildAgeLengths(cfg)...)
	errs = append(errs, m.buildAgeWeights(cfg)...)
	errs = append(errs, m.buildAgeingErrors(cfg)...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	m.buildBlocks(cfg)
	if errs = m.buildDerived(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if errs = m.buildProcesses(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if errs = m.buildObservations(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	m.lg.Info("model built",
		zap.Int("start_year", m.StartYear),
		zap.Int("final_year", m.FinalYear),
		zap.Int("processes", len(m.processes)),
		zap.Int("observations", len(m.Observations)),
	)
	return &m, nil
}

func (m *Model) buildSelectivities(cfg *config.Config) (errs []error) {
	m.Selectivities = selectivity.NewManager()
	lo, hi := m.Partition.MinAge, m.Partition.MaxAge
	for _, s := range cfg.Selectivities {
		alpha := s.Alpha
		if alpha == 0. {
			alpha = 1.
		}
		var sel selectivity.Selectivity
		var err error
		switch s.Type {
		case "constant":
			sel = selectivity.NewConstant(s.Label, s.C, lo, hi)
		case "logistic":
			sel, err = selectivity.NewLogistic(s.Label, s.A50, s.Ato95, alpha, lo, hi)
		case "double_normal":
			sel, err = selectivity.NewDoubleNormal(s.Label, s.Mu, s.SigmaL, s.SigmaR, alpha, lo, hi)
		case "all_values":
			sel, err = selectivity.NewAllValues(s.Label, s.Values, lo, hi)
		case "all_values_bounded":
			sel, err = selectivity.NewAllValuesBounded(s.Label, s.L, s.H, s.Values, lo, hi)
		default:
			err = fmt.Errorf("selectivity %s: unknown type %s", s.Label, s.Type)
		}
		if err == nil {
			err = m.Selectivities.Add(sel)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return
}

func (m *Model) buildPenalties(cfg *config.Config) (errs []error) {
	m.Penalties = penalty.NewManager()
	for _, p := range cfg.Penalties {
		pp, err := penalty.NewProcess(p.Label, p.Multiplier, p.LogScale)
		if err == nil {
			err = m.Penalties.Add(pp)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// buildAgeLengths builds each growth curve and pushes its mean weights into
// the categories that name it
func (m *Model) buildAgeLengths(cfg *config.Config) (errs []error) {
	base := cfg.Model.BaseWeightUnits
	if base == "" {
		base = defaultBaseUnits
	}
	for _, a := range cfg.AgeLengths {
		mult, err := agelength.BaseUnitsMultiplier(a.LengthWeight.Units, base)
		if err != nil {
			errs = append(errs, fmt.Errorf("age_length %s: %v", a.Label, err))
			continue
		}
		vb := &agelength.VonBertalanffy{
			Label:               a.Label,
			Linf:                a.Linf,
			K:                   a.K,
			T0:                  a.T0,
			CVFirst:             a.CVFirst,
			CVLast:              a.CVLast,
			ByLength:            a.ByLength,
			Distribution:        a.Distribution,
			TimeStepProportions: a.TimeStepProportions,
			LengthWeight:        &agelength.LengthWeight{Label: a.Label, A: a.LengthWeight.A, B: a.LengthWeight.B, Multiplier: mult},
		}
		if err := vb.Build(m.Partition.MinAge, m.Partition.MaxAge, m.TimeSteps.Len()); err != nil {
			errs = append(errs, err)
			continue
		}
		m.AgeLengths[a.Label] = vb
	}
	for _, c := range cfg.Categories {
		if c.AgeLength == "" {
			continue
		}
		vb, ok := m.AgeLengths[c.AgeLength]
		if !ok {
			errs = append(errs, fmt.Errorf("category %s: age_length %s was not found", c.Label, c.AgeLength))
			continue
		}
		cat, _ := m.Partition.Category(c.Label)
		cat.MeanWeight = vb.MeanWeights()
		cat.AgeLength = vb.Label
	}
	return
}

func (m *Model) buildAgeWeights(cfg *config.Config) (errs []error) {
	for _, a := range cfg.AgeWeights {
		aw := agelength.AgeWeight{Label: a.Label, MinAge: a.MinAge, Years: make(map[int][]float64, len(a.Data))}
		if aw.MinAge == 0 {
			aw.MinAge = m.Partition.MinAge
		}
		for _, row := range a.Data {
			if len(row) < 2 {
				errs = append(errs, fmt.Errorf("age_weight %s: rows need a year and at least one weight", a.Label))
				continue
			}
			y, err := strconv.Atoi(strings.TrimSpace(row[0]))
			if err != nil {
				errs = append(errs, fmt.Errorf("age_weight %s: year %s is not an integer", a.Label, row[0]))
				continue
			}
			v := make([]float64, len(row)-1)
			for i, s := range row[1:] {
				if v[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
					errs = append(errs, fmt.Errorf("age_weight %s: value %s could not be converted to a number", a.Label, s))
				}
			}
			aw.Years[y] = v
		}
		m.AgeWeights[a.Label] = &aw
	}
	return
}

func (m *Model) buildAgeingErrors(cfg *config.Config) (errs []error) {
	m.AgeingErrors = ageing.NewManager()
	lo, hi := m.Partition.MinAge, m.Partition.MaxAge
	for _, a := range cfg.AgeingErrors {
		var ae ageing.Error
		var err error
		switch a.Type {
		case "none":
			ae = ageing.NewNone(a.Label, lo, hi)
		case "normal":
			ae, err = ageing.NewNormal(a.Label, a.CV, a.K, lo, hi, m.Partition.AgePlus)
		default:
			err = fmt.Errorf("ageing error %s: unknown type %s", a.Label, a.Type)
		}
		if err == nil {
			err = m.AgeingErrors.Add(ae)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return
}

func (m *Model) buildProcesses(cfg *config.Config) (errs []error) {
	years := cfg.Model.Years()
	for _, p := range cfg.Processes {
		switch p.Type {
		case "recruitment_constant":
			age := p.Age
			if age == 0 {
				age = m.Partition.MinAge
			}
			r, err := newRecruitment(p.Label, p.R0, p.Proportions, age, p.Categories, m.Partition)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.processes[p.Label] = r
		case "recruitment_beverton_holt":
			age := p.Age
			if age == 0 {
				age = m.Partition.MinAge
			}
			rc, err := newRecruitment(p.Label, p.R0, p.Proportions, age, p.Categories, m.Partition)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			dq, ok := m.Derived[p.SSB]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: ssb derived quantity %s was not found", p.Label, p.SSB))
				continue
			}
			offset := m.defaultSSBOffset(cfg, p.Label, age, dq)
			if p.SSBOffset != nil {
				if *p.SSBOffset != offset {
					m.lg.Warn("ssb_offset differs from the annual cycle",
						zap.String("process", p.Label),
						zap.Int("ssb_offset", *p.SSBOffset),
						zap.Int("calculated", offset),
					)
				}
				offset = *p.SSBOffset
			}
			h := p.Steepness
			if h == 0. {
				h = 1.
			}
			r, err := newBevertonHolt(rc, h, offset, p.YCSValues, p.StandardiseYCSYears, years, p.SSB, dq)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.processes[p.Label] = r
		case "mortality_constant_rate":
			mc, err := newConstantRate(p.Label, p.M, p.Selectivities, p.TimeStepRatio, m.TimeSteps.ActiveFor(p.Label), p.Categories, m.Partition, m.Selectivities)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.processes[p.Label] = mc
		case "ageing":
			a, err := newAgeing(p.Label, p.Categories, m.Partition)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.processes[p.Label] = a
		case mortality.TypeInstantaneous, mortality.TypeRetained:
			s := mortality.Settings{
				Label:               p.Label,
				Categories:          p.Categories,
				M:                   p.M,
				RelativeMByAge:      p.RelativeMByAge,
				TimeStepProportions: p.TimeStepProportions,
				Biomass:             p.Biomass,
				Catches:             p.Catches.Header(),
				Method:              p.Method.Header(),
			}
			ctor := mortality.New
			if p.Type == mortality.TypeRetained {
				ctor = mortality.NewRetained
			}
			ms, err := ctor(s, years)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := ms.Build(mortality.Context{
				Partition:     m.Partition,
				Selectivities: m.Selectivities,
				TimeSteps:     m.TimeSteps,
				Penalties:     m.Penalties,
				AgeWeights:    m.AgeWeights,
				FinalYear:     m.FinalYear,
				Logger:        m.lg,
			}); err != nil {
				errs = append(errs, err)
				continue
			}
			m.Mortality[p.Label] = ms
			m.processes[p.Label] = ms
		default:
			errs = append(errs, fmt.Errorf("process %s: unknown type %s", p.Label, p.Type))
		}
	}
	return
}

// buildBlocks finds the span of mortality processes in each time step;
// derived quantities read the partition either side of it
func (m *Model) buildBlocks(cfg *config.Config) {
	mortal := make(map[string]bool, len(cfg.Processes))
	for _, p := range cfg.Processes {
		switch p.Type {
		case "mortality_constant_rate", mortality.TypeInstantaneous, mortality.TypeRetained:
			mortal[p.Label] = true
		}
	}
	m.blocks = make([]block, m.TimeSteps.Len())
	for ts, step := range m.TimeSteps.OrderedTimeSteps() {
		b := block{first: -1, last: -1}
		for i, l := range step.Processes {
			if !mortal[l] {
				continue
			}
			if b.first < 0 {
				b.first = i
			}
			b.last = i
		}
		m.blocks[ts] = b
	}
}

func (m *Model) buildDerived(cfg *config.Config) (errs []error) {
	for _, d := range cfg.Derived {
		s := derived.Settings{
			Label:            d.Label,
			Type:             d.Type,
			TimeStep:         d.TimeStep,
			Categories:       d.Categories,
			Selectivities:    d.Selectivities,
			Proportion:       1.,
			ProportionMethod: d.TimeStepProportionMethod,
		}
		if d.TimeStepProportion != nil {
			s.Proportion = *d.TimeStepProportion
		}
		q, err := derived.New(s, m.Partition, m.Selectivities, m.TimeSteps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Derived[d.Label] = q
		m.dqs = append(m.dqs, q)
	}
	return
}

// defaultSSBOffset is the lag from spawning to recruitment implied by the
// order of recruitment, ageing and the spawning biomass in the annual cycle
func (m *Model) defaultSSBOffset(cfg *config.Config, recruitment string, age int, dq *derived.Quantity) int {
	pos := func(label string) int {
		for ts, step := range m.TimeSteps.OrderedTimeSteps() {
			for i, l := range step.Processes {
				if l == label {
					return ts*1000 + 2*i
				}
			}
		}
		return -1
	}
	b := m.blocks[dq.TimeStepIndex]
	d := dq.TimeStepIndex*1000 + 2*len(m.TimeSteps.OrderedTimeSteps()[dq.TimeStepIndex].Processes)
	if b.first >= 0 {
		d = dq.TimeStepIndex*1000 + 2*b.last + 1
	}
	r, a := pos(recruitment), -1
	for _, p := range cfg.Processes {
		if p.Type == "ageing" {
			a = pos(p.Label)
			break
		}
	}
	switch {
	case a < 0:
		return age
	case r < a && a < d:
		return age + 1
	case d < a && a < r:
		return age - 1
	}
	return age
}

func (m *Model) buildObservations(cfg *config.Config) (errs []error) {
	ms := make(map[string]observation.Mortality, len(m.Mortality))
	for k, v := range m.Mortality {
		ms[k] = v
	}
	aes := make(map[string]observation.AgeingError)
	for _, a := range cfg.AgeingErrors {
		if ae, ok := m.AgeingErrors.Get(a.Label); ok {
			aes[a.Label] = ae
		}
	}
	ctx := observation.Context{
		Processes:    ms,
		AgeingErrors: aes,
		AgeLengths:   m.AgeLengths,
		Partition:    m.Partition,
		TimeSteps:    m.TimeSteps,
		Logger:       m.lg,
	}
	bounds := observation.Model{
		MinAge:    m.Partition.MinAge,
		MaxAge:    m.Partition.MaxAge,
		StartYear: m.StartYear,
		FinalYear: m.FinalYear,
	}
	for _, o := range cfg.Observations {
		ob, err := observation.New(observation.Settings{
			Label:         o.Label,
			Type:          o.Type,
			Process:       o.Process,
			Years:         o.Years,
			Methods:       o.Methods,
			TimeSteps:     o.TimeSteps,
			Categories:    o.Categories,
			MinAge:        o.MinAge,
			MaxAge:        o.MaxAge,
			PlusGroup:     o.PlusGroup,
			LengthBins:    o.LengthBins,
			AgeingError:   o.AgeingError,
			Likelihood:    o.Likelihood,
			Obs:           o.Obs.Rows(),
			ErrorValues:   o.ErrorValues.Rows(),
			ProcessErrors: o.ProcessErrors,
			Delta:         o.Delta,
			Tolerance:     o.Tolerance,
		}, bounds)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := ob.Build(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		m.Observations = append(m.Observations, ob)
	}
	return
}
