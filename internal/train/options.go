package train

import (
	"log/slog"

	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/summary"
)

// Retention selects when a loop writes a checkpoint at the end of an epoch.
type Retention int

const (
	// RetainDefault uses the loop's own policy: RetainBest for Fit,
	// RetainEveryEpoch for FitWithEvaluator.
	RetainDefault Retention = iota
	// RetainBest saves only when the epoch improves on every earlier one:
	// a strictly lower loss for Fit, a strictly higher mAP for FitWithEvaluator.
	RetainBest
	// RetainEveryEpoch saves unconditionally, keyed by epoch.
	RetainEveryEpoch
)

// String returns the policy name used in configuration files.
func (r Retention) String() string {
	switch r {
	case RetainBest:
		return "best"
	case RetainEveryEpoch:
		return "every_epoch"
	default:
		return "default"
	}
}

// Defaults for the evaluator loop.
const (
	DefaultValidBatches = 5
	DefaultPrintIter    = 100
)

// Options are the numeric settings of a run.
type Options struct {
	Epochs    int
	Retention Retention

	// Evaluator loop only.
	LogIter      int // Validate and emit summaries every LogIter global steps
	ValidBatches int // Batches per cadence validation (default 5)
	PrintIter    int // Log running losses every PrintIter global steps (default 100)

	// Schedule, when set, sets the optimizer's rate at the start of each epoch.
	Schedule optim.Schedule

	// RunID tags checkpoints; a random UUID when empty.
	RunID string
}

// Components are the collaborators of a Trainer. Valid, Evaluator,
// Checkpointer and Summary are optional for Fit.
type Components struct {
	Network      Network
	Objective    Objective
	Autodiff     Autodiff
	Optimizer    optim.Optimizer
	Train        DataSource
	Valid        DataSource
	Evaluator    Evaluator
	Checkpointer Checkpointer
	Summary      summary.Writer
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) { t.logger = logger }
}

// WithStateHook registers a callback for every state transition.
func WithStateHook(hook StateHook) Option {
	return func(t *Trainer) { t.onState = hook }
}
