package mortality

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Addressable parameter names are "m[<category>]" and
// "method_<fishery>[<year>]"; fishery labels match case-insensitively.
func parseAddressable(name string) (base, key string, err error) {
	i, j := strings.Index(name, "["), strings.LastIndex(name, "]")
	if i < 1 || j != len(name)-1 || j < i+2 {
		return "", "", fmt.Errorf("addressable %s is not of the form name[index]", name)
	}
	return name[:i], name[i+1 : j], nil
}

func (p *Instantaneous) fisheryByLowerLabel(label string) (*FisheryData, bool) {
	for i := range p.fisheries {
		if strings.EqualFold(p.fisheries[i].Label, label) {
			return &p.fisheries[i], true
		}
	}
	return nil, false
}

// requested returns the addressable catch series of the fishery
func (p *Instantaneous) requested(f *FisheryData) map[int]float64 {
	if p.retained {
		return f.RetainedCatches
	}
	return f.Catches
}

func (p *Instantaneous) resolve(name string) (float64, func(float64), error) {
	base, key, err := parseAddressable(name)
	if err != nil {
		return 0., nil, fmt.Errorf("%s: %v", p.Label, err)
	}
	switch {
	case base == "m":
		v, ok := p.m[key]
		if !ok {
			return 0., nil, fmt.Errorf("%s: no M for category %s", p.Label, key)
		}
		return v, func(x float64) { p.SetM(key, x) }, nil
	case strings.HasPrefix(base, "method_"):
		f, ok := p.fisheryByLowerLabel(strings.TrimPrefix(base, "method_"))
		if !ok {
			return 0., nil, fmt.Errorf("%s: unknown method in %s", p.Label, name)
		}
		y, err := strconv.Atoi(key)
		if err != nil {
			return 0., nil, fmt.Errorf("%s: year %s in %s is not an integer", p.Label, key, name)
		}
		return p.requested(f)[y], func(x float64) { p.SetCatch(f.Label, y, x) }, nil
	}
	return 0., nil, fmt.Errorf("%s: unknown addressable %s", p.Label, name)
}

func (p *Instantaneous) Get(name string) (float64, error) {
	v, _, err := p.resolve(name)
	return v, err
}

func (p *Instantaneous) Set(name string, v float64) error {
	_, set, err := p.resolve(name)
	if err != nil {
		return err
	}
	set(v)
	return nil
}

// Addressables lists every addressable name, sorted
func (p *Instantaneous) Addressables() []string {
	var o []string
	for c := range p.m {
		o = append(o, "m["+c+"]")
	}
	for _, f := range p.fisheries {
		for y := range p.requested(&f) {
			o = append(o, fmt.Sprintf("method_%s[%d]", strings.ToLower(f.Label), y))
		}
	}
	sort.Strings(o)
	return o
}

// SetM overwrites natural mortality for the category from the next time step on
func (p *Instantaneous) SetM(category string, v float64) bool {
	i, ok := p.cxr[category]
	if !ok {
		return false
	}
	p.m[category] = v
	p.cats[i].M = v
	return true
}

// SetCatch overwrites the requested (retained, for the retained variant)
// catch of a fishery in a year
func (p *Instantaneous) SetCatch(fishery string, year int, v float64) bool {
	i, ok := p.fxr[fishery]
	if !ok {
		return false
	}
	p.requested(&p.fisheries[i])[year] = v
	return true
}

// Reset copies the addressable M values back into the working categories
func (p *Instantaneous) Reset() {
	for i := range p.cats {
		p.cats[i].M = p.m[p.cats[i].Label]
		p.mInput[i] = p.cats[i].M
	}
}

// RebuildCache is called after time-varying parameters change
func (p *Instantaneous) RebuildCache() { p.Reset() }
