package optim

import "sort"

// Schedule yields the learning rate to use for a given epoch.
type Schedule interface {
	Value(epoch int) float32
}

// Constant is a schedule that never changes.
type Constant float32

// Value returns c for every epoch.
func (c Constant) Value(int) float32 {
	return float32(c)
}

// Milestone sets the learning rate from Epoch onwards.
type Milestone struct {
	Epoch int     `yaml:"epoch"`
	LR    float32 `yaml:"lr"`
}

// StepSchedule is a piecewise-constant schedule: Base until the first
// milestone, then each milestone's rate until the next.
type StepSchedule struct {
	Base       float32
	Milestones []Milestone
}

// NewStepSchedule returns a StepSchedule with milestones sorted by epoch.
func NewStepSchedule(base float32, milestones ...Milestone) *StepSchedule {
	ms := append([]Milestone(nil), milestones...)
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Epoch < ms[j].Epoch })
	return &StepSchedule{Base: base, Milestones: ms}
}

// Add appends a milestone and keeps the list ordered.
func (s *StepSchedule) Add(epoch int, lr float32) *StepSchedule {
	s.Milestones = append(s.Milestones, Milestone{Epoch: epoch, LR: lr})
	sort.SliceStable(s.Milestones, func(i, j int) bool { return s.Milestones[i].Epoch < s.Milestones[j].Epoch })
	return s
}

// Value returns the rate of the last milestone at or before epoch.
func (s *StepSchedule) Value(epoch int) float32 {
	lr := s.Base
	for _, m := range s.Milestones {
		if m.Epoch > epoch {
			break
		}
		lr = m.LR
	}
	return lr
}
