// Package partition holds the modelled population: numbers at age for each
// category plus the mean weight at age for every time step.
package partition

import (
	"fmt"
	"strings"
)

// Category is one named slice of the partition
type Category struct {
	Name           string
	MinAge, MaxAge int
	Data           []float64   // numbers at age, index 0 = MinAge
	MeanWeight     [][]float64 // [time step][age index] mean weight of one individual
	AgeLength      string      // label of the growth curve supplying MeanWeight
}

func (c *Category) AgeSpread() int { return c.MaxAge - c.MinAge + 1 }

// MeanWeightAt returns the mean weight at the given time step and absolute age.
// Categories with no weight information weigh 1 (catches in numbers).
func (c *Category) MeanWeightAt(timeStep, age int) float64 {
	if timeStep >= len(c.MeanWeight) {
		return 1.
	}
	return c.MeanWeight[timeStep][age-c.MinAge]
}

func (c *Category) Total() (s float64) {
	for _, v := range c.Data {
		s += v
	}
	return
}

// Partition owns all category abundance arrays. Processes mutate Data in place
// one at a time, in time-step order.
type Partition struct {
	MinAge, MaxAge int
	AgePlus        bool
	cats           []*Category
	xr             map[string]int
}

func New(minAge, maxAge int, agePlus bool, labels ...string) (*Partition, error) {
	if maxAge < minAge {
		return nil, fmt.Errorf("partition.New() failed: max_age (%d) is less than min_age (%d)", maxAge, minAge)
	}
	p := Partition{
		MinAge:  minAge,
		MaxAge:  maxAge,
		AgePlus: agePlus,
		cats:    make([]*Category, 0, len(labels)),
		xr:      make(map[string]int, len(labels)),
	}
	for _, l := range labels {
		if _, ok := p.xr[l]; ok {
			return nil, fmt.Errorf("partition.New() failed: category %s defined more than once", l)
		}
		p.xr[l] = len(p.cats)
		p.cats = append(p.cats, &Category{
			Name:   l,
			MinAge: minAge,
			MaxAge: maxAge,
			Data:   make([]float64, maxAge-minAge+1),
		})
	}
	return &p, nil
}

func (p *Partition) AgeSpread() int { return p.MaxAge - p.MinAge + 1 }

func (p *Partition) IsValid(label string) bool {
	_, ok := p.xr[label]
	return ok
}

func (p *Partition) Category(label string) (*Category, bool) {
	if i, ok := p.xr[label]; ok {
		return p.cats[i], true
	}
	return nil, false
}

// Index returns the position of the category in declaration order, -1 if unknown
func (p *Partition) Index(label string) int {
	if i, ok := p.xr[label]; ok {
		return i
	}
	return -1
}

func (p *Partition) Categories() []*Category { return p.cats }

func (p *Partition) Labels() []string {
	o := make([]string, len(p.cats))
	for i, c := range p.cats {
		o[i] = c.Name
	}
	return o
}

// Combined resolves a "male+female" style label into its member categories
func (p *Partition) Combined(label string) ([]*Category, error) {
	var o []*Category
	for _, s := range strings.Split(label, "+") {
		c, ok := p.Category(strings.TrimSpace(s))
		if !ok {
			return nil, fmt.Errorf("category %s was not found", s)
		}
		o = append(o, c)
	}
	return o, nil
}

// Clear zeroes every abundance value
func (p *Partition) Clear() {
	for _, c := range p.cats {
		for i := range c.Data {
			c.Data[i] = 0.
		}
	}
}

// Snapshot copies the numbers at age of every category, keyed by name
func (p *Partition) Snapshot() map[string][]float64 {
	o := make(map[string][]float64, len(p.cats))
	for _, c := range p.cats {
		o[c.Name] = append([]float64(nil), c.Data...)
	}
	return o
}

// Restore writes a Snapshot back into the partition
func (p *Partition) Restore(s map[string][]float64) error {
	for k, v := range s {
		c, ok := p.Category(k)
		if !ok {
			return fmt.Errorf("partition.Restore() failed: unknown category %s", k)
		}
		if len(v) != len(c.Data) {
			return fmt.Errorf("partition.Restore() failed: category %s has %d ages, snapshot has %d", k, len(c.Data), len(v))
		}
		copy(c.Data, v)
	}
	return nil
}
