package casal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maseology/casal/mathx"
	"github.com/maseology/casal/partition"
)

// RecruitmentConstant adds R0, split by proportion, to the recruitment age
// of each category every year
type RecruitmentConstant struct {
	Label       string
	R0          float64
	Proportions []float64
	Age         int
	cats        []*partition.Category
}

func newRecruitment(label string, r0 float64, props []float64, age int, cats []string, pt *partition.Partition) (*RecruitmentConstant, error) {
	if age < pt.MinAge || age > pt.MaxAge {
		return nil, fmt.Errorf("%s: recruitment age %d is outside the partition ages %d-%d", label, age, pt.MinAge, pt.MaxAge)
	}
	if len(props) == 0 {
		props = make([]float64, len(cats))
		for i := range props {
			props[i] = 1. / float64(len(cats))
		}
	}
	if len(props) != len(cats) {
		return nil, fmt.Errorf("%s: %d proportions for %d categories", label, len(props), len(cats))
	}
	s := 0.
	for _, p := range props {
		s += p
	}
	if !mathx.IsOne(s) {
		return nil, fmt.Errorf("%s: proportions sum to %v, not 1", label, s)
	}
	r := RecruitmentConstant{Label: label, R0: r0, Proportions: props, Age: age}
	for _, l := range cats {
		c, ok := pt.Category(strings.TrimSpace(l))
		if !ok {
			return nil, fmt.Errorf("%s: category %s was not found", label, l)
		}
		r.cats = append(r.cats, c)
	}
	return &r, nil
}

func (r *RecruitmentConstant) Execute(year, timeStep int, initialising bool) error {
	for i, c := range r.cats {
		c.Data[r.Age-c.MinAge] += r.R0 * r.Proportions[i]
	}
	return nil
}

func (r *RecruitmentConstant) Reset() {}

func (r *RecruitmentConstant) Get(name string) (float64, error) {
	if name != "r0" {
		return 0., fmt.Errorf("%s: unknown addressable %s", r.Label, name)
	}
	return r.R0, nil
}

func (r *RecruitmentConstant) Set(name string, v float64) error {
	if name != "r0" {
		return fmt.Errorf("%s: unknown addressable %s", r.Label, name)
	}
	r.R0 = v
	return nil
}

// SSB is the spawning biomass a stock-recruit relationship reads
type SSB interface {
	Value(year, startYear int) (float64, bool)
	LastInitialisationValue() float64
}

// RecruitmentBevertonHolt scales R0 by the year class strength and the
// Beverton-Holt stock-recruit relationship of the spawning biomass
// ssb_offset years earlier. B0 is the spawning biomass at the end of the
// initialisation, where recruitment is R0.
type RecruitmentBevertonHolt struct {
	*RecruitmentConstant
	Steepness float64
	SSBOffset int
	YCS       map[int]float64 // by model year
	Standard  []int           // years the ycs are standardised over
	StartYear int
	ssb       SSB
	ssbLabel  string
	b0        float64
	standYCS  map[int]float64
	recruits  map[int]float64
}

func newBevertonHolt(rc *RecruitmentConstant, steepness float64, offset int, ycs []float64, standard, years []int, ssbLabel string, ssb SSB) (*RecruitmentBevertonHolt, error) {
	if steepness <= 0. || steepness > 1. {
		return nil, fmt.Errorf("%s: steepness (%v) must be in (0,1]", rc.Label, steepness)
	}
	if len(ycs) == 0 {
		ycs = make([]float64, len(years))
		for i := range ycs {
			ycs[i] = 1.
		}
	}
	if len(ycs) != len(years) {
		return nil, fmt.Errorf("%s: %d ycs_values supplied for %d model years", rc.Label, len(ycs), len(years))
	}
	r := RecruitmentBevertonHolt{
		RecruitmentConstant: rc,
		Steepness:           steepness,
		SSBOffset:           offset,
		YCS:                 make(map[int]float64, len(years)),
		Standard:            standard,
		StartYear:           years[0],
		ssb:                 ssb,
		ssbLabel:            ssbLabel,
		standYCS:            make(map[int]float64, len(years)),
		recruits:            make(map[int]float64, len(years)),
	}
	for i, y := range years {
		if ycs[i] < 0. {
			return nil, fmt.Errorf("%s: ycs_values for %d (%v) cannot be less than 0", rc.Label, y, ycs[i])
		}
		r.YCS[y] = ycs[i]
	}
	for i, y := range standard {
		if _, ok := r.YCS[y]; !ok {
			return nil, fmt.Errorf("%s: standardise_ycs_years %d is not a model year", rc.Label, y)
		}
		if i > 0 && standard[i-1] >= y {
			return nil, fmt.Errorf("%s: standardise_ycs_years must be strictly increasing", rc.Label)
		}
	}
	r.Reset()
	return &r, nil
}

// Reset standardises the ycs to a mean of 1 over the standardised years
func (r *RecruitmentBevertonHolt) Reset() {
	r.b0 = 0.
	clear(r.recruits)
	mean := 1.
	if len(r.Standard) > 0 {
		mean = 0.
		for _, y := range r.Standard {
			mean += r.YCS[y]
		}
		mean /= float64(len(r.Standard))
	}
	for y, v := range r.YCS {
		r.standYCS[y] = v
		if len(r.Standard) > 0 && mean > 0. {
			r.standYCS[y] = v / mean
		}
	}
}

func (r *RecruitmentBevertonHolt) Execute(year, timeStep int, initialising bool) error {
	amount := r.R0
	if !initialising {
		if r.b0 == 0. {
			r.b0 = r.ssb.LastInitialisationValue()
			if r.b0 <= 0. {
				return fmt.Errorf("%s: B0 from %s is %v, it must be greater than 0", r.Label, r.ssbLabel, r.b0)
			}
		}
		ycs, ok := r.standYCS[year]
		if !ok {
			ycs = 1.
		}
		ssb, ok := r.ssb.Value(year-r.SSBOffset, r.StartYear)
		if !ok {
			return fmt.Errorf("%s: %s has no value for %d", r.Label, r.ssbLabel, year-r.SSBOffset)
		}
		ratio := ssb / r.b0
		sr := ratio / (1. - ((5.*r.Steepness-1.)/(4.*r.Steepness))*(1.-ratio))
		amount = r.R0 * ycs * sr
		r.recruits[year] = amount
	}
	for i, c := range r.cats {
		c.Data[r.Age-c.MinAge] += amount * r.Proportions[i]
	}
	return nil
}

// Recruits returns the recruitment of each model year of the last run
func (r *RecruitmentBevertonHolt) Recruits() map[int]float64 { return r.recruits }

func (r *RecruitmentBevertonHolt) Get(name string) (float64, error) {
	switch name {
	case "steepness":
		return r.Steepness, nil
	case "b0":
		return r.b0, nil
	}
	if y, ok := yearIndex(name, "ycs_values"); ok {
		v, ok := r.YCS[y]
		if !ok {
			return 0., fmt.Errorf("%s: %d is not a model year", r.Label, y)
		}
		return v, nil
	}
	return r.RecruitmentConstant.Get(name)
}

func (r *RecruitmentBevertonHolt) Set(name string, v float64) error {
	if name == "steepness" {
		r.Steepness = v
		return nil
	}
	if y, ok := yearIndex(name, "ycs_values"); ok {
		if _, ok := r.YCS[y]; !ok {
			return fmt.Errorf("%s: %d is not a model year", r.Label, y)
		}
		r.YCS[y] = v
		r.Reset()
		return nil
	}
	return r.RecruitmentConstant.Set(name, v)
}

// yearIndex parses names of the form prefix[year]
func yearIndex(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix+"[") || !strings.HasSuffix(name, "]") {
		return 0, false
	}
	y, err := strconv.Atoi(name[len(prefix)+1 : len(name)-1])
	return y, err == nil
}
