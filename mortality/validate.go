package mortality

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/maseology/casal/mathx"
)

const (
	colYear        = "year"
	colMethod      = "method"
	colCategory    = "category"
	colSelectivity = "selectivity"
	colTimeStep    = "time_step"
	colUMax        = "u_max"
	colPenalty     = "penalty"
	colAgeWeight   = "age_weight"
	colRetained    = "retained_selectivity"
	colDiscardMort = "discard_mortality_selectivity"
)

func cfgErr(label, param, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s.%s: %s", ErrConfig, label, param, fmt.Sprintf(format, a...))
}

// New validates the settings of an instantaneous mortality process against
// the model years. Every problem found is returned, joined.
func New(s Settings, modelYears []int) (*Instantaneous, error) {
	return newProcess(s, modelYears, false)
}

// NewRetained is the retained/discard variant: the catches table holds
// retained catch and the method table adds retained and discard mortality
// selectivities.
func NewRetained(s Settings, modelYears []int) (*Instantaneous, error) {
	return newProcess(s, modelYears, true)
}

func newProcess(s Settings, modelYears []int, retained bool) (*Instantaneous, error) {
	p := Instantaneous{
		Label:    s.Label,
		retained: retained,
		biomass:  s.Biomass,
		fxr:      make(map[string]int),
		cxr:      make(map[string]int),
		m:        make(map[string]float64),
		years:    make(map[int]bool),
		tsInput:  append([]float64(nil), s.TimeStepProportions...),
	}
	if err := p.validate(s, modelYears); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Instantaneous) validate(s Settings, modelYears []int) error {
	var errs []error
	fail := func(param, format string, a ...interface{}) {
		errs = append(errs, cfgErr(p.Label, param, format, a...))
	}

	if len(s.Categories) == 0 {
		fail("categories", "at least one category is required")
	}
	for _, v := range s.TimeStepProportions {
		if v < 0. || v > 1. {
			fail("time_step_proportions", "value %v must be between 0.0 and 1.0 (inclusive)", v)
		}
	}

	// catches
	fyc := make(map[string]map[int]float64)
	yi := s.Catches.Index(colYear)
	if yi < 0 {
		fail("catches", "the required column %s was not found", colYear)
	} else {
		isModelYear := make(map[int]bool, len(modelYears))
		for _, y := range modelYears {
			isModelYear[y] = true
		}
		for _, row := range s.Catches.Rows {
			if len(row) != len(s.Catches.Columns) {
				fail("catches", "row %v has %d values, expecting %d", row, len(row), len(s.Catches.Columns))
				continue
			}
			year, err := strconv.Atoi(strings.TrimSpace(row[yi]))
			if err != nil {
				fail("catches", "year value %s could not be converted to an integer", row[yi])
				continue
			}
			if !isModelYear[year] {
				fail("catches", "year %d is not a valid year in this model", year)
			}
			if !p.years[year] {
				p.years[year] = true
				p.yearList = append(p.yearList, year)
			}
			for j, c := range s.Catches.Columns {
				if j == yi {
					continue
				}
				v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
				if err != nil {
					fail("catches", "value %s for method %s could not be converted to a number", row[j], c)
					continue
				}
				if _, ok := fyc[c]; !ok {
					fyc[c] = make(map[int]float64)
				}
				fyc[c][year] = v
			}
		}
		sort.Ints(p.yearList)
	}

	// natural mortality
	sels := append([]string(nil), s.RelativeMByAge...)
	if len(sels) == 1 {
		for len(sels) < len(s.Categories) {
			sels = append(sels, sels[0])
		}
	}
	if len(sels) != len(s.Categories) {
		fail("relative_m_by_age", "the number of M-by-age ogives (%d) is not the same as the number of categories (%d)", len(sels), len(s.Categories))
	}
	ms := append([]float64(nil), s.M...)
	if len(ms) == 1 {
		for len(ms) < len(s.Categories) {
			ms = append(ms, ms[0])
		}
	}
	if len(ms) != len(s.Categories) {
		fail("m", "the number of Ms (%d) is not the same as the number of categories (%d)", len(ms), len(s.Categories))
	}
	for _, v := range ms {
		if v < 0. {
			fail("m", "value %v cannot be less than 0.0", v)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.mInput, p.mSelLabel = ms, sels
	p.cats = make([]CategoryData, len(s.Categories))
	for i, c := range s.Categories {
		if _, ok := p.cxr[c]; ok {
			fail("categories", "category %s listed more than once", c)
			continue
		}
		p.cxr[c] = i
		p.m[c] = ms[i]
		p.cats[i] = CategoryData{Label: c, SelectivityLabel: sels[i], M: ms[i]}
	}

	// methods
	required := []string{colMethod, colCategory, colSelectivity, colTimeStep, colUMax, colPenalty}
	if p.retained {
		required = append(required, colRetained, colDiscardMort)
	}
	idx := make(map[string]int, len(required))
	for _, c := range required {
		if idx[c] = s.Method.Index(c); idx[c] < 0 {
			fail("method", "the required column %s was not found", c)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	iaw := s.Method.Index(colAgeWeight)
	if iaw >= 0 && !s.Biomass {
		fail("biomass", "must be true if an age weight relationship is also used")
	}

	split := func(v string) []string {
		o := strings.Split(v, ",")
		for i := range o {
			o[i] = strings.TrimSpace(o[i])
		}
		return o
	}

	fishTS := make(map[string]string)
	for _, row := range s.Method.Rows {
		if len(row) != len(s.Method.Columns) {
			fail("method", "row %v has %d values, expecting %d", row, len(row), len(s.Method.Columns))
			continue
		}
		lbl := strings.TrimSpace(row[idx[colMethod]])
		tsl := strings.TrimSpace(row[idx[colTimeStep]])
		umax, err := strconv.ParseFloat(strings.TrimSpace(row[idx[colUMax]]), 64)
		if err != nil {
			fail("method", "u_max value %s could not be converted to a number", row[idx[colUMax]])
			continue
		}
		if umax <= 0. || umax > 1. {
			fail("method", "u_max (%v) for method %s must be in (0, 1]", umax, lbl)
		}

		fi, ok := p.fxr[lbl]
		if ok {
			if fishTS[lbl] != tsl {
				fail("method", "the method %s was found in more than one time step; define each time step as a separate method", lbl)
			}
			if p.fisheries[fi].UMax != umax {
				fail("method", "the method %s has more than one u_max", lbl)
			}
		} else {
			catches, ok := fyc[lbl]
			if !ok {
				fail("method", "method %s does not have catch information in the catches table", lbl)
				catches = make(map[int]float64)
			}
			fd := FisheryData{
				Label:              lbl,
				TimeStepLabel:      tsl,
				UMax:               umax,
				PenaltyLabel:       strings.TrimSpace(row[idx[colPenalty]]),
				Catches:            copyYears(catches),
				ActualCatches:      copyYears(catches),
				ExploitationByYear: make(map[int]float64),
				UObsByYear:         make(map[int]float64),
			}
			if p.retained {
				fd.RetainedCatches = copyYears(catches)
				fd.ActualRetainedCatches = copyYears(catches)
				fd.Discards = make(map[int]float64)
				fd.DiscardsDead = make(map[int]float64)
			}
			fi = len(p.fisheries)
			p.fxr[lbl] = fi
			fishTS[lbl] = tsl
			p.fisheries = append(p.fisheries, fd)
		}

		cats, sels := split(row[idx[colCategory]]), split(row[idx[colSelectivity]])
		if len(cats) != len(sels) {
			fail("method", "the number of categories (%d) and selectivities (%d) for method %s must be the same", len(cats), len(sels), lbl)
			continue
		}
		var aws, rets, dms []string
		if iaw >= 0 {
			if aws = split(row[iaw]); len(aws) != len(cats) {
				fail("method", "the number of categories (%d) and age weights (%d) for method %s must be the same", len(cats), len(aws), lbl)
				continue
			}
		}
		if p.retained {
			rets, dms = split(row[idx[colRetained]]), split(row[idx[colDiscardMort]])
			if len(rets) != len(cats) || len(dms) != len(cats) {
				fail("method", "the number of categories (%d), retained selectivities (%d) and discard mortality selectivities (%d) for method %s must be the same", len(cats), len(rets), len(dms), lbl)
				continue
			}
		}
		for i, c := range cats {
			ci, ok := p.cxr[c]
			if !ok {
				fail("method", "the category %s was found in the table but not in categories; every category in the method table must also be subject to natural mortality", c)
				continue
			}
			fc := FisheryCategoryData{Fishery: fi, Category: ci, SelectivityLabel: sels[i], AgeWeightLabel: none}
			if aws != nil && aws[i] != "" {
				fc.AgeWeightLabel = aws[i]
			}
			if p.retained {
				fc.RetainedLabel, fc.DiscardMortLabel = rets[i], dms[i]
			}
			p.fcs = append(p.fcs, fc)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func copyYears(m map[int]float64) map[int]float64 {
	o := make(map[int]float64, len(m))
	for k, v := range m {
		o[k] = v
	}
	return o
}

// buildRatios maps the proportions onto the active time steps of the process
func (p *Instantaneous) buildRatios(active []int) error {
	p.ratios = make(map[int]float64, len(active))
	if len(active) == 0 {
		return cfgErr(p.Label, "time_step", "the process is not assigned to any time step")
	}
	if len(p.tsInput) == 0 {
		for _, i := range active {
			p.ratios[i] = 1. / float64(len(active))
		}
		return nil
	}
	if len(p.tsInput) != len(active) {
		return cfgErr(p.Label, "time_step_proportions", "the length (%d) does not match the number of time steps this process has been assigned to (%d)", len(p.tsInput), len(active))
	}
	s := 0.
	for _, v := range p.tsInput {
		s += v
	}
	if !mathx.IsOne(s) {
		return cfgErr(p.Label, "time_step_proportions", "summed to %v; they must sum to one", s)
	}
	for j, i := range active {
		p.ratios[i] = p.tsInput[j]
	}
	return nil
}
