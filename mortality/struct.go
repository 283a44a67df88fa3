// Package mortality applies natural and fishing mortality to the partition
// using the instantaneous (Baranov half-step) approximation. Requested
// catches are solved into exploitation rates per fishery, capped at u_max,
// and the numbers removed are kept in a ledger read by the observations.
package mortality

import (
	"errors"
	"fmt"

	"github.com/maseology/casal/agelength"
	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/penalty"
	"github.com/maseology/casal/selectivity"
	"github.com/maseology/casal/timestep"
	"go.uber.org/zap"
)

const (
	TypeInstantaneous = "mortality_instantaneous"
	TypeRetained      = "mortality_instantaneous_retained"

	none = "none"
)

// ErrConfig is wrapped by every configuration error returned from New and Build
var ErrConfig = errors.New("invalid mortality configuration")

// ConsistencyError is returned by Execute when depletion leaves a negative
// abundance. It indicates a defect upstream, never a user input problem.
type ConsistencyError struct {
	Process  string
	Category string
	Year     int
	TimeStep int
	Age      int
	Value    float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: fishing caused a negative partition; category %s age %d = %g (year %d, time step %d)", e.Process, e.Category, e.Age, e.Value, e.Year, e.TimeStep)
}

// Table is a configuration table: a header row and string-valued rows
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the column position of col, -1 if absent
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Settings are the user inputs of one mortality process
type Settings struct {
	Label               string
	Categories          []string
	M                   []float64 // one value, or one per category
	RelativeMByAge      []string  // one label, or one per category
	TimeStepProportions []float64 // one per time step the process runs in
	Biomass             bool      // catches are weights rather than numbers
	Catches             Table     // year + one column per fishery
	Method              Table
}

// Context holds the collaborators resolved at Build
type Context struct {
	Partition     *partition.Partition
	Selectivities *selectivity.Manager
	TimeSteps     *timestep.Manager
	Penalties     *penalty.Manager
	AgeWeights    map[string]*agelength.AgeWeight
	FinalYear     int // years beyond are projection years
	Logger        *zap.Logger
}

// FisheryData is one fishing method
type FisheryData struct {
	Label              string
	TimeStepLabel      string
	TimeStepIndex      int
	UMax               float64
	PenaltyLabel       string
	Catches            map[int]float64 // requested; total catch for the retained variant
	ActualCatches      map[int]float64
	ExploitationByYear map[int]float64
	UObsByYear         map[int]float64

	// retained variant
	RetainedCatches       map[int]float64
	ActualRetainedCatches map[int]float64
	Discards              map[int]float64
	DiscardsDead          map[int]float64

	Vulnerability         float64
	RetainedVulnerability float64
	UObs                  float64
	Exploitation          float64

	penalty *penalty.Process
	empty   bool // nothing vulnerable in the current step
}

// CategoryData is one category under natural mortality
type CategoryData struct {
	Label             string
	SelectivityLabel  string // relative M by age
	M                 float64
	Exploitation      []float64 // summed over the fisheries of the current step
	ExpHalfM          []float64 // exp(-0.5*ratio*M*sel)
	SelectivityValues []float64

	cat  *partition.Category
	sel  selectivity.Selectivity
	used bool
}

// FisheryCategoryData joins a fishery to a category by index into the
// owning process's fishery and category slices
type FisheryCategoryData struct {
	Fishery, Category  int
	SelectivityLabel   string
	AgeWeightLabel     string
	SelectivityValues  []float64
	RetainedLabel      string
	DiscardMortLabel   string
	RetainedValues     []float64
	DiscardMortValues  []float64

	sel, retSel, dmSel selectivity.Selectivity
	ageWeight          *agelength.AgeWeight
}

// Instantaneous is the mortality process. A fishery operates in exactly one
// time step; the process may run in several, each taking its proportion of M.
type Instantaneous struct {
	Label    string
	retained bool
	biomass  bool

	fisheries []FisheryData
	cats      []CategoryData
	fcs       []FisheryCategoryData
	fxr, cxr  map[string]int

	m         map[string]float64 // addressable
	mInput    []float64
	mSelLabel []string
	tsInput   []float64
	ratios    map[int]float64
	skipF     map[int]bool
	years     map[int]bool // years with a row in the catches table
	yearList  []int
	finalYear int

	removals, retainedAt, discardsAt, discardMortAt Removals

	pt *partition.Partition
	lg *zap.Logger
}

func (p *Instantaneous) Type() string {
	if p.retained {
		return TypeRetained
	}
	return TypeInstantaneous
}

func (p *Instantaneous) IsRetained() bool { return p.retained }

func (p *Instantaneous) Fisheries() []FisheryData { return p.fisheries }

func (p *Instantaneous) Fishery(label string) (*FisheryData, bool) {
	if i, ok := p.fxr[label]; ok {
		return &p.fisheries[i], true
	}
	return nil, false
}

func (p *Instantaneous) CategoryData(label string) (*CategoryData, bool) {
	if i, ok := p.cxr[label]; ok {
		return &p.cats[i], true
	}
	return nil, false
}

func (p *Instantaneous) FisheryCategories() []FisheryCategoryData { return p.fcs }

// ProcessYears are the years listed in the catches table
func (p *Instantaneous) ProcessYears() []int { return p.yearList }

// Ratio returns the proportion of M applied in the time step
func (p *Instantaneous) Ratio(timeStep int) float64 { return p.ratios[timeStep] }
