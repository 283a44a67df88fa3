// Package config reads a model definition from YAML. Every table is a list of
// rows; for catches and method tables the first row is the header.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/maseology/casal/mortality"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Table is a YAML list of rows; scalars are kept as written
type Table [][]string

// Header splits off the first row as column names
func (t Table) Header() mortality.Table {
	if len(t) == 0 {
		return mortality.Table{}
	}
	cols := make([]string, len(t[0]))
	for i, c := range t[0] {
		cols[i] = strings.TrimSpace(c)
	}
	return mortality.Table{Columns: cols, Rows: t[1:]}
}

// Rows returns the table with no header
func (t Table) Rows() mortality.Table { return mortality.Table{Rows: t} }

type Config struct {
	Model         Model         `yaml:"model" validate:"required"`
	Categories    []Category    `yaml:"categories" validate:"required,min=1,dive"`
	Processes     []Process     `yaml:"processes" validate:"required,min=1,dive"`
	Selectivities []Selectivity `yaml:"selectivities" validate:"dive"`
	Penalties     []Penalty     `yaml:"penalties" validate:"dive"`
	AgeLengths    []AgeLength   `yaml:"age_lengths" validate:"dive"`
	AgeWeights    []AgeWeight   `yaml:"age_weights" validate:"dive"`
	AgeingErrors  []AgeingError `yaml:"ageing_errors" validate:"dive"`
	Derived       []Derived     `yaml:"derived_quantities" validate:"dive"`
	Observations  []Observation `yaml:"observations" validate:"dive"`
	Estimates     []Estimate    `yaml:"estimates" validate:"dive"`
}

type Model struct {
	StartYear           int        `yaml:"start_year" validate:"required"`
	FinalYear           int        `yaml:"final_year" validate:"required,gtefield=StartYear"`
	ProjectionFinalYear int        `yaml:"projection_final_year"`
	MinAge              int        `yaml:"min_age" validate:"gte=0"`
	MaxAge              int        `yaml:"max_age" validate:"gtefield=MinAge"`
	AgePlus             bool       `yaml:"age_plus"`
	BaseWeightUnits     string     `yaml:"base_weight_units" validate:"omitempty,oneof=grams kgs tonnes"`
	InitialisationYears int        `yaml:"initialisation_years" validate:"gte=0"`
	TimeSteps           []TimeStep `yaml:"time_steps" validate:"required,min=1,dive"`
}

type TimeStep struct {
	Label     string   `yaml:"label" validate:"required"`
	Processes []string `yaml:"processes"`
}

type Category struct {
	Label     string `yaml:"label" validate:"required"`
	AgeLength string `yaml:"age_length"`
}

// Process holds the union of the parameters of every process type
type Process struct {
	Label      string   `yaml:"label" validate:"required"`
	Type       string   `yaml:"type" validate:"required,oneof=recruitment_constant recruitment_beverton_holt ageing mortality_constant_rate mortality_instantaneous mortality_instantaneous_retained"`
	Categories []string `yaml:"categories" validate:"required,min=1"`

	// recruitment_constant, recruitment_beverton_holt
	R0          float64   `yaml:"r0" validate:"gte=0"`
	Proportions []float64 `yaml:"proportions"`
	Age         int       `yaml:"age"`

	// recruitment_beverton_holt
	Steepness           float64   `yaml:"steepness" validate:"gte=0,lte=1"`
	SSB                 string    `yaml:"ssb"`
	SSBOffset           *int      `yaml:"ssb_offset" validate:"omitempty,gte=0"`
	YCSValues           []float64 `yaml:"ycs_values" validate:"dive,gte=0"`
	StandardiseYCSYears []int     `yaml:"standardise_ycs_years"`

	// mortality_constant_rate
	Selectivities []string  `yaml:"selectivities"`
	TimeStepRatio []float64 `yaml:"time_step_ratio" validate:"dive,gte=0,lte=1"`

	// mortality_constant_rate, mortality_instantaneous
	M                   []float64 `yaml:"m"`
	RelativeMByAge      []string  `yaml:"relative_m_by_age"`
	TimeStepProportions []float64 `yaml:"time_step_proportions"`
	Biomass             bool      `yaml:"biomass"`
	Catches             Table     `yaml:"catches"`
	Method              Table     `yaml:"method"`
}

type Selectivity struct {
	Label  string    `yaml:"label" validate:"required"`
	Type   string    `yaml:"type" validate:"required,oneof=constant logistic double_normal all_values all_values_bounded"`
	C      float64   `yaml:"c"`
	A50    float64   `yaml:"a50"`
	Ato95  float64   `yaml:"ato95"`
	Mu     float64   `yaml:"mu"`
	SigmaL float64   `yaml:"sigma_l"`
	SigmaR float64   `yaml:"sigma_r"`
	Alpha  float64   `yaml:"alpha"`
	Values []float64 `yaml:"v"`
	L      int       `yaml:"l"`
	H      int       `yaml:"h"`
}

type Penalty struct {
	Label      string  `yaml:"label" validate:"required"`
	Multiplier float64 `yaml:"multiplier" validate:"gte=0"`
	LogScale   bool    `yaml:"log_scale"`
}

type AgeLength struct {
	Label               string       `yaml:"label" validate:"required"`
	Linf                float64      `yaml:"linf" validate:"gt=0"`
	K                   float64      `yaml:"k" validate:"gt=0"`
	T0                  float64      `yaml:"t0"`
	CVFirst             float64      `yaml:"cv_first" validate:"gte=0"`
	CVLast              float64      `yaml:"cv_last" validate:"gte=0"`
	ByLength            bool         `yaml:"by_length"`
	Distribution        string       `yaml:"distribution" validate:"omitempty,oneof=normal lognormal none"`
	TimeStepProportions []float64    `yaml:"time_step_proportions"`
	LengthWeight        LengthWeight `yaml:"length_weight" validate:"required"`
}

type LengthWeight struct {
	A     float64 `yaml:"a" validate:"gt=0"`
	B     float64 `yaml:"b" validate:"gt=0"`
	Units string  `yaml:"units" validate:"required,oneof=grams kgs tonnes"`
}

// AgeWeight rows are year then one weight per age from MinAge
type AgeWeight struct {
	Label  string `yaml:"label" validate:"required"`
	MinAge int    `yaml:"min_age"`
	Data   Table  `yaml:"data" validate:"required,min=1"`
}

type AgeingError struct {
	Label string  `yaml:"label" validate:"required"`
	Type  string  `yaml:"type" validate:"required,oneof=none normal"`
	CV    float64 `yaml:"cv"`
	K     int     `yaml:"k" validate:"gte=0"`
}

// Derived is a quantity, e.g. spawning biomass, recorded once a year from the
// partition in one time step
type Derived struct {
	Label                    string   `yaml:"label" validate:"required"`
	Type                     string   `yaml:"type" validate:"required,oneof=biomass abundance"`
	TimeStep                 string   `yaml:"time_step" validate:"required"`
	Categories               []string `yaml:"categories" validate:"required,min=1"`
	Selectivities            []string `yaml:"selectivities" validate:"required,min=1"`
	TimeStepProportion       *float64 `yaml:"time_step_proportion" validate:"omitempty,gte=0,lte=1"`
	TimeStepProportionMethod string   `yaml:"time_step_proportion_method" validate:"omitempty,oneof=weighted_sum weighted_product"`
}

type Observation struct {
	Label         string    `yaml:"label" validate:"required"`
	Type          string    `yaml:"type" validate:"required"`
	Process       string    `yaml:"mortality_process" validate:"required"`
	Years         []int     `yaml:"years" validate:"required,min=1"`
	Methods       []string  `yaml:"method_of_removal" validate:"required,min=1"`
	TimeSteps     []string  `yaml:"time_step" validate:"required,min=1"`
	Categories    []string  `yaml:"categories" validate:"required,min=1"`
	MinAge        int       `yaml:"min_age"`
	MaxAge        int       `yaml:"max_age"`
	PlusGroup     bool      `yaml:"plus_group"`
	LengthBins    []float64 `yaml:"length_bins"`
	AgeingError   string    `yaml:"ageing_error"`
	Likelihood    string    `yaml:"likelihood" validate:"required"`
	Obs           Table     `yaml:"obs" validate:"required,min=1"`
	ErrorValues   Table     `yaml:"error_values" validate:"required,min=1"`
	ProcessErrors []float64 `yaml:"process_errors"`
	Delta         float64   `yaml:"delta" validate:"gte=0"`
	Tolerance     float64   `yaml:"tolerance" validate:"gte=0"`
}

// Estimate bounds an addressable, e.g. process[Mortality].m[stock]
type Estimate struct {
	Parameter  string  `yaml:"parameter" validate:"required"`
	LowerBound float64 `yaml:"lower_bound"`
	UpperBound float64 `yaml:"upper_bound" validate:"gtfield=LowerBound"`
	LogScale   bool    `yaml:"log_scale"`
}

// Load reads and validates the YAML model definition at fp
func Load(fp string) (*Config, error) {
	b, err := os.ReadFile(fp)
	if err != nil {
		return nil, fmt.Errorf("config.Load() failed: %v", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config.Load() %s: %w", fp, err)
	}
	return c, nil
}

func Parse(b []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("config.Parse() failed: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate runs the struct tag checks and the label cross references that
// need no model
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config.Validate() failed: %w", err)
	}
	if c.Model.ProjectionFinalYear != 0 && c.Model.ProjectionFinalYear < c.Model.FinalYear {
		return fmt.Errorf("config.Validate() failed: projection_final_year (%d) is before final_year (%d)", c.Model.ProjectionFinalYear, c.Model.FinalYear)
	}
	seen := make(map[string]bool, len(c.Processes))
	for _, p := range c.Processes {
		if seen[p.Label] {
			return fmt.Errorf("config.Validate() failed: process %s defined more than once", p.Label)
		}
		seen[p.Label] = true
	}
	dq := make(map[string]bool, len(c.Derived))
	for _, d := range c.Derived {
		if dq[d.Label] {
			return fmt.Errorf("config.Validate() failed: derived quantity %s defined more than once", d.Label)
		}
		dq[d.Label] = true
	}
	for _, ts := range c.Model.TimeSteps {
		for _, p := range ts.Processes {
			if !seen[p] {
				return fmt.Errorf("config.Validate() failed: time step %s refers to unknown process %s", ts.Label, p)
			}
		}
	}
	return nil
}

// Years are the model years start_year..final_year
func (m *Model) Years() []int {
	o := make([]int, 0, m.FinalYear-m.StartYear+1)
	for y := m.StartYear; y <= m.FinalYear; y++ {
		o = append(o, y)
	}
	return o
}

// LastYear is final_year, or projection_final_year when projecting
func (m *Model) LastYear() int {
	if m.ProjectionFinalYear > m.FinalYear {
		return m.ProjectionFinalYear
	}
	return m.FinalYear
}
