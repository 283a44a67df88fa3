package casal

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

func writeCSV(fp string, header []string, rows [][]string) error {
	f, err := os.Create(fp)
	if err != nil {
		return fmt.Errorf("writeCSV failed: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writeCSV failed: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writeCSV failed: %v", err)
	}
	return nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func sortedKeys[V any](m map[string]V) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

func sortedYears[V any](m map[int]V) []int {
	o := make([]int, 0, len(m))
	for y := range m {
		o = append(o, y)
	}
	sort.Ints(o)
	return o
}

// WriteReports writes <prfx>reports.csv (process, fishery, report, year,
// value) and <prfx>catch_at.csv (process, year, fishery, category, age, removals)
func (r *Result) WriteReports(prfx string, minAge int) error {
	var rows [][]string
	for _, p := range sortedKeys(r.Reports) {
		for _, f := range sortedKeys(r.Reports[p]) {
			for _, rp := range sortedKeys(r.Reports[p][f]) {
				s := r.Reports[p][f][rp]
				for _, y := range sortedYears(s) {
					rows = append(rows, []string{p, f, rp, strconv.Itoa(y), ftoa(s[y])})
				}
			}
		}
	}
	if err := writeCSV(prfx+"reports.csv", []string{"process", "fishery", "report", "year", "value"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, p := range sortedKeys(r.Ledger) {
		l := r.Ledger[p]
		for _, y := range sortedYears(l) {
			for _, f := range sortedKeys(l[y]) {
				for _, c := range sortedKeys(l[y][f]) {
					for i, v := range l[y][f][c] {
						rows = append(rows, []string{p, strconv.Itoa(y), f, c, strconv.Itoa(minAge + i), ftoa(v)})
					}
				}
			}
		}
	}
	return writeCSV(prfx+"catch_at.csv", []string{"process", "year", "fishery", "category", "age", "removals"}, rows)
}

// WriteScores writes <prfx>scores.csv with one row per observation and year
// plus the penalties and the objective
func (r *Result) WriteScores(prfx string) error {
	var rows [][]string
	for _, o := range sortedKeys(r.Scores) {
		for _, y := range sortedYears(r.Scores[o]) {
			rows = append(rows, []string{"observation", o, strconv.Itoa(y), ftoa(r.Scores[o][y])})
		}
	}
	for _, p := range sortedKeys(r.Penalties) {
		rows = append(rows, []string{"penalty", p, "", ftoa(r.Penalties[p])})
	}
	rows = append(rows, []string{"objective", "", "", ftoa(r.Objective)})
	return writeCSV(prfx+"scores.csv", []string{"component", "label", "year", "score"}, rows)
}

// WriteDerived writes <prfx>derived.csv, one row per derived quantity and year
func (r *Result) WriteDerived(prfx string) error {
	var rows [][]string
	for _, d := range sortedKeys(r.Derived) {
		for _, y := range sortedYears(r.Derived[d]) {
			rows = append(rows, []string{d, strconv.Itoa(y), ftoa(r.Derived[d][y])})
		}
	}
	return writeCSV(prfx+"derived.csv", []string{"label", "year", "value"}, rows)
}

// WriteSamples writes one row per Monte Carlo sample: k, each parameter, objective
func WriteSamples(fp string, smps []Sample) error {
	if len(smps) == 0 {
		return writeCSV(fp, []string{"k", "objective"}, nil)
	}
	pars := sortedKeys(smps[0].Pars)
	header := append(append([]string{"k"}, pars...), "objective")
	rows := make([][]string, len(smps))
	for i, s := range smps {
		row := []string{strconv.Itoa(s.K)}
		for _, p := range pars {
			row = append(row, ftoa(s.Pars[p]))
		}
		rows[i] = append(row, ftoa(s.Objective))
	}
	return writeCSV(fp, header, rows)
}

// WriteReplicates writes every simulated comparison: k, observation, year,
// category, age, length, expected, observed
func WriteReplicates(fp string, reps []Replicate) error {
	var rows [][]string
	for _, r := range reps {
		for _, o := range sortedKeys(r.Observations) {
			cs := r.Observations[o]
			for _, y := range cs.Years() {
				for _, c := range cs[y] {
					rows = append(rows, []string{strconv.Itoa(r.K), o, strconv.Itoa(y), c.Category, strconv.Itoa(c.Age), ftoa(c.Length), ftoa(c.Expected), ftoa(c.Observed)})
				}
			}
		}
	}
	return writeCSV(fp, []string{"k", "observation", "year", "category", "age", "length", "expected", "observed"}, rows)
}
