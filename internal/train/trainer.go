// Package train drives detector training: per-batch gradient steps,
// per-epoch validation and checkpoint decisions.
//
// Two loops are provided. Fit averages the loss over each epoch, validates
// on a loss basis and by default keeps only the best snapshot. FitWithEvaluator
// validates through a detection evaluator on a fixed global-step cadence,
// reports AP/mAP and running loss means, and by default saves every epoch.
//
// Example:
//
//	tr := train.New(train.Components{
//	    Network:      net,
//	    Objective:    objective,
//	    Autodiff:     ad,
//	    Optimizer:    optim.NewAdam(net.Parameters(), optim.AdamConfig{LR: 1e-4}),
//	    Train:        trainSource,
//	    Valid:        validSource,
//	    Checkpointer: checkpoint.NewBestSaver("weights/yolov3", logger),
//	}, train.Options{Epochs: 500})
//	report, err := tr.Fit(ctx)
package train

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/metrics"
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/summary"
)

// EpochResult is the outcome of one epoch.
type EpochResult struct {
	Epoch     int
	TrainLoss float64 // Mean total loss over the epoch's training steps
	ValidLoss float64 // Mean validation loss, NaN without a validation source (Fit only)
	Loss      float64 // Value used for the checkpoint decision (Fit only)
	MAP       float64 // Most recent mAP, NaN before the first evaluation (FitWithEvaluator only)
	Improved  bool    // Better than every earlier epoch
	Saved     bool    // A checkpoint was written
}

// Report summarises a finished run.
type Report struct {
	Epochs     []EpochResult
	History    []float64 // Per-epoch decision losses (Fit) or mAPs (FitWithEvaluator)
	GlobalStep int64
}

// SavedEpochs returns the epochs at which a checkpoint was written.
func (r *Report) SavedEpochs() []int {
	var out []int
	for _, e := range r.Epochs {
		if e.Saved {
			out = append(out, e.Epoch)
		}
	}
	return out
}

// Trainer runs the training loops. A Trainer is single-use and not safe
// for concurrent use; it is the only writer of the network parameters.
type Trainer struct {
	c       Components
	opts    Options
	logger  *slog.Logger
	onState StateHook

	state      State
	globalStep int64
}

// New creates a Trainer. Configuration is checked when a loop starts.
func New(c Components, opts Options, extra ...Option) *Trainer {
	if opts.ValidBatches == 0 {
		opts.ValidBatches = DefaultValidBatches
	}
	if opts.PrintIter == 0 {
		opts.PrintIter = DefaultPrintIter
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if c.Summary == nil {
		c.Summary = summary.Discard
	}

	t := &Trainer{c: c, opts: opts, logger: slog.Default()}
	for _, opt := range extra {
		opt(t)
	}
	return t
}

// RunID returns the identifier written into every checkpoint.
func (t *Trainer) RunID() string {
	return t.opts.RunID
}

// GlobalStep returns the number of training steps taken.
func (t *Trainer) GlobalStep() int64 {
	return t.globalStep
}

func (t *Trainer) checkCommon() error {
	switch {
	case t.c.Network == nil:
		return configErr("network", "missing")
	case t.c.Objective == nil:
		return configErr("objective", "missing")
	case t.c.Autodiff == nil:
		return configErr("autodiff", "missing")
	case t.c.Optimizer == nil:
		return configErr("optimizer", "missing")
	case t.c.Train == nil:
		return configErr("train", "missing training data source")
	case t.opts.Epochs <= 0:
		return configErr("epochs", "must be positive, got %d", t.opts.Epochs)
	}
	if n := t.c.Train.StepsPerEpoch(); n <= 0 {
		return configErr("train", "steps per epoch must be positive, got %d", n)
	}
	if t.c.Valid != nil {
		if n := t.c.Valid.StepsPerEpoch(); n <= 0 {
			return configErr("valid", "steps per epoch must be positive, got %d", n)
		}
	}
	return nil
}

// Fit runs the loss-driven loop for Options.Epochs epochs.
//
// Each epoch's decision loss is the validation mean when a validation
// source is configured, else the training mean. Under RetainBest (the
// default) a checkpoint is written exactly when that loss is strictly below
// every earlier epoch's.
func (t *Trainer) Fit(ctx context.Context) (*Report, error) {
	if err := t.checkCommon(); err != nil {
		return nil, err
	}
	retention := t.opts.Retention
	if retention == RetainDefault {
		retention = RetainBest
	}

	t.setState(StateIdle, -1)
	report := &Report{}
	var history metrics.History

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		t.applySchedule(epoch)

		t.setState(StateTraining, epoch)
		trainLoss, err := t.trainEpoch(ctx, epoch)
		if err != nil {
			return report, err
		}

		res := EpochResult{Epoch: epoch, TrainLoss: trainLoss, ValidLoss: math.NaN(), Loss: trainLoss, MAP: math.NaN()}
		if t.c.Valid != nil {
			t.setState(StateValidating, epoch)
			validLoss, err := t.validateLoss(ctx, epoch)
			if err != nil {
				return report, err
			}
			res.ValidLoss = validLoss
			res.Loss = validLoss
		}

		t.setState(StateCheckpointDecision, epoch)
		res.Improved = history.Append(res.Loss)
		if retention == RetainEveryEpoch || res.Improved {
			saved, err := t.save(ctx, epoch, res.Loss, fitMetrics(res))
			if err != nil {
				return report, err
			}
			res.Saved = saved
		}
		report.Epochs = append(report.Epochs, res)

		t.logger.Info("epoch finished",
			"epoch", epoch, "loss", res.Loss, "train_loss", trainLoss, "improved", res.Improved, "saved", res.Saved)
	}

	report.History = history.Values()
	report.GlobalStep = t.globalStep
	t.setState(StateDone, -1)
	return report, nil
}

func fitMetrics(res EpochResult) map[string]float64 {
	m := map[string]float64{"train_loss": res.TrainLoss}
	if !math.IsNaN(res.ValidLoss) {
		m["val_loss"] = res.ValidLoss
	}
	return m
}

// trainEpoch runs StepsPerEpoch training steps and returns the mean total loss.
func (t *Trainer) trainEpoch(ctx context.Context, epoch int) (float64, error) {
	steps := t.c.Train.StepsPerEpoch()
	mean := metrics.NewMean("loss")

	for i := 0; i < steps; i++ {
		batch, err := t.nextBatch(ctx, t.c.Train)
		if err != nil {
			return 0, errors.Wrapf(err, "train: epoch %d step %d", epoch, i)
		}
		loss, err := t.trainStep(batch)
		if err != nil {
			return 0, errors.Wrapf(err, "train: epoch %d step %d", epoch, i)
		}
		mean.Update(loss.Total())
	}
	return mean.Result(), nil
}

// validateLoss runs a forward-only pass over one validation epoch.
func (t *Trainer) validateLoss(ctx context.Context, epoch int) (float64, error) {
	steps := t.c.Valid.StepsPerEpoch()
	mean := metrics.NewMean("val_loss")

	for i := 0; i < steps; i++ {
		batch, err := t.nextBatch(ctx, t.c.Valid)
		if err != nil {
			return 0, errors.Wrapf(err, "validate: epoch %d step %d", epoch, i)
		}
		out, err := t.c.Network.Forward(batch.Images, false)
		if err != nil {
			return 0, errors.Wrapf(err, "validate: epoch %d step %d: forward", epoch, i)
		}
		loss, err := t.c.Objective.Loss(out, batch.Targets)
		if err != nil {
			return 0, errors.Wrapf(err, "validate: epoch %d step %d: loss", epoch, i)
		}
		mean.Update(loss.Total())
	}
	return mean.Result(), nil
}

// nextBatch returns ctx.Err() once the context is done, before pulling.
func (t *Trainer) nextBatch(ctx context.Context, src DataSource) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return src.NextBatch(ctx)
}

// trainStep performs forward, loss, gradient and update for one batch.
// The optimizer is only stepped once every stage has succeeded.
func (t *Trainer) trainStep(batch *Batch) (Loss, error) {
	tape := t.c.Autodiff.Record()
	defer tape.Release()

	out, err := t.c.Network.Forward(batch.Images, true)
	if err != nil {
		return Loss{}, errors.Wrap(err, "forward")
	}
	loss, err := t.c.Objective.Loss(out, batch.Targets)
	if err != nil {
		return Loss{}, errors.Wrap(err, "loss")
	}
	grads, err := tape.Gradients(loss, t.c.Network.Parameters())
	if err != nil {
		return Loss{}, errors.Wrap(err, "gradients")
	}

	t.c.Optimizer.Step(grads)
	t.c.Optimizer.ZeroGrad()
	t.globalStep++
	return loss, nil
}

func (t *Trainer) applySchedule(epoch int) {
	if t.opts.Schedule == nil {
		return
	}
	lr := t.opts.Schedule.Value(epoch)
	if lr != t.c.Optimizer.LR() {
		t.logger.Info("learning rate changed", "epoch", epoch, "lr", lr)
	}
	t.c.Optimizer.SetLR(lr)
}

// save writes a snapshot through the Checkpointer. It reports false when no
// Checkpointer is configured.
func (t *Trainer) save(ctx context.Context, epoch int, loss float64, m map[string]float64) (bool, error) {
	if t.c.Checkpointer == nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	snap := checkpoint.Snapshot{
		RunID:          t.opts.RunID,
		Epoch:          epoch,
		Step:           t.globalStep,
		Loss:           loss,
		Metrics:        m,
		Params:         nn.StateDictOf(t.c.Network.Parameters()),
		OptimizerType:  optimizerName(t.c.Optimizer),
		LR:             t.c.Optimizer.LR(),
		OptimizerState: t.c.Optimizer.StateDict(),
	}
	if err := t.c.Checkpointer.Save(ctx, snap); err != nil {
		return false, errors.Wrapf(err, "checkpoint epoch %d", epoch)
	}
	return true, nil
}

func optimizerName(o optim.Optimizer) string {
	switch o.(type) {
	case *optim.SGD:
		return "SGD"
	case *optim.Adam:
		return "Adam"
	default:
		return fmt.Sprintf("%T", o)
	}
}
