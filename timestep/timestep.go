// Package timestep keeps the ordered annual cycle and the step currently
// executing.
package timestep

import "fmt"

type Step struct {
	Label     string
	Processes []string // process labels in execution order
}

func (s Step) HasProcess(label string) bool {
	for _, p := range s.Processes {
		if p == label {
			return true
		}
	}
	return false
}

type Manager struct {
	steps   []Step
	xr      map[string]int
	current int
}

func NewManager(steps ...Step) (*Manager, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("timestep.NewManager() failed: no time steps defined")
	}
	m := Manager{steps: steps, xr: make(map[string]int, len(steps))}
	for i, s := range steps {
		if _, ok := m.xr[s.Label]; ok {
			return nil, fmt.Errorf("timestep.NewManager() failed: time step %s defined more than once", s.Label)
		}
		m.xr[s.Label] = i
	}
	return &m, nil
}

func (m *Manager) OrderedTimeSteps() []Step { return m.steps }

func (m *Manager) Len() int { return len(m.steps) }

func (m *Manager) GetTimeStepIndex(label string) (int, bool) {
	i, ok := m.xr[label]
	return i, ok
}

func (m *Manager) Current() int { return m.current }

func (m *Manager) SetCurrent(i int) { m.current = i }

// ActiveFor returns the indices of the time steps in which the process runs
func (m *Manager) ActiveFor(process string) []int {
	var o []int
	for i, s := range m.steps {
		if s.HasProcess(process) {
			o = append(o, i)
		}
	}
	return o
}
