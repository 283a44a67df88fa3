package casal

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/maseology/casal/mortality"
)

// Result is the outcome of one model run
type Result struct {
	RunID     string
	Objective float64
	Scores    map[string]map[int]float64                        // observation -> year -> score
	Penalties map[string]float64                                // penalty label -> score
	Reports   map[string]map[string]map[string]mortality.Series // process -> fishery -> report
	Ledger    map[string]mortality.Removals                     // process -> removals at age
	Partition map[string][]float64                              // numbers at age at the end of the run
	Derived   map[string]map[int]float64                        // derived quantity -> year -> value
}

func (r *Result) SaveGob(fp string) error {
	f, err := os.Create(fp)
	if err != nil {
		return fmt.Errorf(" Result.SaveGob %v", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf(" Result.SaveGob %v", err)
	}
	return nil
}

func LoadGob(fp string) (*Result, error) {
	var r Result
	f, err := os.Open(fp)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
