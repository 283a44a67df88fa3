package casal

import (
	"fmt"
	"strings"

	"github.com/maseology/casal/partition"
)

// Ageing moves every age class up one year; the oldest class accumulates
// when the partition has a plus group and is lost otherwise
type Ageing struct {
	Label string
	plus  bool
	cats  []*partition.Category
}

func newAgeing(label string, cats []string, pt *partition.Partition) (*Ageing, error) {
	a := Ageing{Label: label, plus: pt.AgePlus}
	for _, l := range cats {
		c, ok := pt.Category(strings.TrimSpace(l))
		if !ok {
			return nil, fmt.Errorf("%s: category %s was not found", label, l)
		}
		a.cats = append(a.cats, c)
	}
	return &a, nil
}

func (a *Ageing) Execute(year, timeStep int, initialising bool) error {
	for _, c := range a.cats {
		n := len(c.Data)
		if n < 2 {
			continue
		}
		last := c.Data[n-1]
		copy(c.Data[1:], c.Data[:n-1])
		c.Data[0] = 0.
		if a.plus {
			c.Data[n-1] += last
		}
	}
	return nil
}

func (a *Ageing) Reset() {}
