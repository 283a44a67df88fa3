// Package observation compares the removals recorded by a mortality process
// with observed proportions at age or length.
package observation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/maseology/casal/likelihood"
	"github.com/maseology/casal/mortality"
	"gonum.org/v1/gonum/mat"
	"go.uber.org/zap"
)

type Aggregation int

const (
	ByAge Aggregation = iota
	ByLength
)

// Source selects the ledger an observation reads
type Source int

const (
	Total Source = iota
	Retained
	Discards
)

type kind struct {
	agg      Aggregation
	src      Source
	retained bool // process must be the retained variant
}

var kinds = map[string]kind{
	"process_removals_by_age":                   {ByAge, Total, false},
	"process_removals_by_length":                {ByLength, Total, false},
	"process_removals_by_age_retained":          {ByAge, Retained, true},
	"process_removals_by_length_retained":       {ByLength, Retained, true},
	"process_removals_by_age_retained_total":    {ByAge, Total, true},
	"process_removals_by_length_retained_total": {ByLength, Total, true},
	"process_removals_by_age_discards":          {ByAge, Discards, true},
	"process_removals_by_length_discards":       {ByLength, Discards, true},
}

// Types lists the observation types understood by New
func Types() []string {
	o := make([]string, 0, len(kinds))
	for k := range kinds {
		o = append(o, k)
	}
	return o
}

var (
	ErrConfig          = errors.New("invalid observation configuration")
	ErrMissingRemovals = errors.New("no removals recorded")
)

const defaultTolerance = .001

// Settings are the user inputs of one observation
type Settings struct {
	Label          string
	Type           string
	Process        string // mortality process supplying the removals
	Years          []int
	Methods        []string
	TimeSteps      []string // one per method
	Categories     []string // "a+b" combines categories
	MinAge, MaxAge int
	PlusGroup      bool
	LengthBins     []float64
	AgeingError    string
	Likelihood     string
	Obs            mortality.Table // rows: year, then bins for each category in turn
	ErrorValues    mortality.Table // rows: year, then one value or one per obs value
	ProcessErrors  []float64       // none, one, or one per year
	Delta          float64
	Tolerance      float64
}

// Model bounds the observation is validated against
type Model struct {
	MinAge, MaxAge       int
	StartYear, FinalYear int
}

// RemovalProportions is a proportions observation built from the removal
// ledger of a mortality process
type RemovalProportions struct {
	Label string
	Type  string
	agg   Aggregation
	src   Source
	needR bool

	process    string
	methods    []string
	tsLabels   []string
	categories []string
	years      map[int]bool
	minAge     int
	maxAge     int
	plus       bool
	bins       []float64
	nbins      int
	ageingLbl  string
	delta      float64

	obs map[int][]float64 // year -> category-major bin values
	ev  map[int][]float64
	pe  map[int]float64

	lh       likelihood.Likelihood
	ms       Mortality
	ageErr   AgeingError
	alp      map[string]*mat.Dense // category -> age x length bin proportions
	execStep int
	modelMin int

	comparisons likelihood.Comparisons
	scores      map[int]float64
	lg          *zap.Logger
}

func cfgErr(label, param, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s.%s: %s", ErrConfig, label, param, fmt.Sprintf(format, a...))
}

// New validates the settings; all problems are returned joined
func New(s Settings, m Model) (*RemovalProportions, error) {
	k, ok := kinds[s.Type]
	if !ok {
		return nil, cfgErr(s.Label, "type", "unknown observation type %s", s.Type)
	}
	o := RemovalProportions{
		Label:      s.Label,
		Type:       s.Type,
		agg:        k.agg,
		src:        k.src,
		needR:      k.retained,
		process:    s.Process,
		methods:    s.Methods,
		tsLabels:   s.TimeSteps,
		categories: s.Categories,
		years:      make(map[int]bool, len(s.Years)),
		minAge:     s.MinAge,
		maxAge:     s.MaxAge,
		plus:       s.PlusGroup,
		bins:       s.LengthBins,
		ageingLbl:  s.AgeingError,
		delta:      s.Delta,
		obs:        make(map[int][]float64),
		ev:         make(map[int][]float64),
		pe:         make(map[int]float64),
		modelMin:   m.MinAge,
	}
	if err := o.validate(s, m); err != nil {
		return nil, err
	}
	return &o, nil
}

func (o *RemovalProportions) validate(s Settings, m Model) error {
	var errs []error
	fail := func(param, format string, a ...interface{}) {
		errs = append(errs, cfgErr(o.Label, param, format, a...))
	}

	switch o.agg {
	case ByAge:
		if s.MinAge < m.MinAge {
			fail("min_age", "min_age (%d) is less than the model's min_age (%d)", s.MinAge, m.MinAge)
		}
		if s.MaxAge > m.MaxAge {
			fail("max_age", "max_age (%d) is greater than the model's max_age (%d)", s.MaxAge, m.MaxAge)
		}
		if s.MaxAge < s.MinAge {
			fail("max_age", "max_age (%d) is less than min_age (%d)", s.MaxAge, s.MinAge)
		}
		o.nbins = s.MaxAge - s.MinAge + 1
	case ByLength:
		o.nbins = len(s.LengthBins)
		if !s.PlusGroup {
			o.nbins--
		}
		if o.nbins < 1 {
			fail("length_bins", "at least two length bin edges are required")
		}
		for i := 1; i < len(s.LengthBins); i++ {
			if s.LengthBins[i] <= s.LengthBins[i-1] {
				fail("length_bins", "length bins must be strictly increasing")
				break
			}
		}
	}
	if len(s.Methods) == 0 {
		fail("method_of_removal", "at least one method is required")
	}
	if len(s.TimeSteps) != len(s.Methods) {
		fail("time_step", "specify the same number of time step labels as methods; %d time step labels and %d methods were given", len(s.TimeSteps), len(s.Methods))
	}
	if len(s.Categories) == 0 {
		fail("categories", "at least one category is required")
	}
	if s.Delta < 0. {
		fail("delta", "delta (%v) cannot be less than 0.0", s.Delta)
	}
	lh, err := likelihood.New(s.Likelihood)
	if err != nil {
		fail("likelihood", "%v", err)
	}
	o.lh = lh

	for _, y := range s.Years {
		if y < m.StartYear || y > m.FinalYear {
			fail("years", "year %d is outside start_year (%d) to final_year (%d)", y, m.StartYear, m.FinalYear)
		}
		o.years[y] = true
	}
	switch {
	case len(s.ProcessErrors) == 1:
		for _, y := range s.Years {
			o.pe[y] = s.ProcessErrors[0]
		}
	case len(s.ProcessErrors) == len(s.Years):
		for i, y := range s.Years {
			o.pe[y] = s.ProcessErrors[i]
		}
	case len(s.ProcessErrors) > 0:
		fail("process_errors", "number of values provided (%d) does not match the number of years (%d)", len(s.ProcessErrors), len(s.Years))
	}
	for _, v := range s.ProcessErrors {
		if v < 0. {
			fail("process_errors", "process error (%v) cannot be less than 0.0", v)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	nv := o.nbins * len(s.Categories)
	parse := func(param string, t mortality.Table, dst map[int][]float64, broadcast bool) {
		if len(t.Rows) != len(s.Years) {
			fail(param, "has %d rows defined, but there are %d years", len(t.Rows), len(s.Years))
		}
		for _, row := range t.Rows {
			if len(row) == 0 {
				continue
			}
			y, err := strconv.Atoi(strings.TrimSpace(row[0]))
			if err != nil {
				fail(param, "value %s could not be converted to a year", row[0])
				continue
			}
			if !o.years[y] {
				fail(param, "year %d is not a valid year for this observation", y)
				continue
			}
			if !(len(row)-1 == nv || (broadcast && len(row) == 2)) {
				fail(param, "year %d has %d values defined, but %d (bins * categories) are required", y, len(row)-1, nv)
				continue
			}
			v := make([]float64, 0, nv)
			for _, c := range row[1:] {
				x, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
				if err != nil {
					fail(param, "value (%s) could not be converted to a number", c)
					x = 0.
				}
				if x < 0. {
					fail(param, "value (%v) in year %d cannot be less than 0.0", x, y)
				}
				v = append(v, x)
			}
			for len(v) < nv {
				v = append(v, v[0])
			}
			dst[y] = v
		}
	}
	parse("obs", s.Obs, o.obs, false)
	parse("error_values", s.ErrorValues, o.ev, true)

	tol := s.Tolerance
	if tol <= 0. {
		tol = defaultTolerance
	}
	for y, v := range o.obs {
		t := 0.
		for _, x := range v {
			t += x
		}
		if t < 1.-tol || t > 1.+tol {
			fail("obs", "obs sum total (%v) for year %d exceeds tolerance (%v) from 1.0", t, y, tol)
		}
	}
	if s.Likelihood == likelihood.TypeLogNormal {
		for y, v := range o.ev {
			for _, x := range v {
				if x <= 0. {
					fail("error_values", "error value (%v) in year %d must be greater than 0.0 for the lognormal likelihood", x, y)
					break
				}
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
