package train

// State is a phase of the training state machine:
//
//	Idle → Training(e) → Validating(e) → CheckpointDecision(e) → Training(e+1) → … → Done
//
// Validating is skipped when no validation source is configured. In the
// evaluator loop Validating is entered from Training on the logging cadence
// and returns to Training.
type State int

// Trainer states.
const (
	StateIdle State = iota
	StateTraining
	StateValidating
	StateCheckpointDecision
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateTraining:
		return "Training"
	case StateValidating:
		return "Validating"
	case StateCheckpointDecision:
		return "CheckpointDecision"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// StateHook observes state transitions. epoch is -1 for Idle and Done.
type StateHook func(state State, epoch int)

func (t *Trainer) setState(s State, epoch int) {
	t.state = s
	t.logger.Debug("train: state", "state", s.String(), "epoch", epoch)
	if t.onState != nil {
		t.onState(s, epoch)
	}
}

// State returns the current state.
func (t *Trainer) State() State {
	return t.state
}
