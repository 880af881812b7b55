package train

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/metrics"
)

// Summary tags written on every evaluation cycle. Per-class AP is tagged
// "AP@<class name>" and images "detections_<i>".
const (
	TagMAP       = "mAP"
	TagLossBox   = "lossBox"
	TagLossConf  = "lossConf"
	TagLossClass = "lossClass"
)

// lossMeans are the running loss terms reset after every evaluation cycle.
type lossMeans struct {
	box, conf, class *metrics.Mean
}

func newLossMeans() lossMeans {
	return lossMeans{
		box:   metrics.NewMean(TagLossBox),
		conf:  metrics.NewMean(TagLossConf),
		class: metrics.NewMean(TagLossClass),
	}
}

func (m lossMeans) update(l Loss) {
	m.box.Update(l.Box)
	m.conf.Update(l.Conf)
	m.class.Update(l.Class)
}

func (m lossMeans) reset() {
	m.box.Reset()
	m.conf.Reset()
	m.class.Reset()
}

func (m lossMeans) all() []*metrics.Mean {
	return []*metrics.Mean{m.box, m.conf, m.class}
}

func (t *Trainer) checkEvaluator() error {
	if err := t.checkCommon(); err != nil {
		return err
	}
	switch {
	case t.c.Evaluator == nil:
		return configErr("evaluator", "missing")
	case t.c.Valid == nil:
		return configErr("valid", "evaluator loop needs a validation data source")
	case t.opts.LogIter <= 0:
		return configErr("log_iter", "must be positive, got %d", t.opts.LogIter)
	case t.opts.ValidBatches <= 0:
		return configErr("valid_batches", "must be positive, got %d", t.opts.ValidBatches)
	case t.opts.PrintIter <= 0:
		return configErr("print_iter", "must be positive, got %d", t.opts.PrintIter)
	}
	return nil
}

// FitWithEvaluator runs the mAP-driven loop for Options.Epochs epochs.
//
// Every batch is a training step. Every LogIter global steps a validation
// pass of at most ValidBatches batches runs through the Evaluator; per-class
// AP, mAP, the running loss means and the evaluator's images are written to
// the summary writer at the current global step, then the evaluator and the
// loss means are reset. At the end of each epoch the checkpoint decision
// follows Options.Retention, RetainEveryEpoch by default.
func (t *Trainer) FitWithEvaluator(ctx context.Context) (*Report, error) {
	if err := t.checkEvaluator(); err != nil {
		return nil, err
	}
	retention := t.opts.Retention
	if retention == RetainDefault {
		retention = RetainEveryEpoch
	}

	t.setState(StateIdle, -1)
	report := &Report{}
	means := newLossMeans()
	lastMAP, bestMAP := math.NaN(), math.Inf(-1)

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		t.applySchedule(epoch)
		t.setState(StateTraining, epoch)

		epochLoss := metrics.NewMean("loss")
		steps := t.c.Train.StepsPerEpoch()
		for i := 0; i < steps; i++ {
			batch, err := t.nextBatch(ctx, t.c.Train)
			if err != nil {
				return report, errors.Wrapf(err, "train: epoch %d step %d", epoch, i)
			}

			if (t.globalStep+1)%int64(t.opts.PrintIter) == 0 {
				t.logProgress(epoch, t.globalStep+1, means)
			}

			loss, err := t.trainStep(batch)
			if err != nil {
				return report, errors.Wrapf(err, "train: epoch %d step %d", epoch, i)
			}
			means.update(loss)
			epochLoss.Update(loss.Total())

			if t.globalStep%int64(t.opts.LogIter) != 0 {
				continue
			}

			t.setState(StateValidating, epoch)
			mAP, err := t.evaluationCycle(ctx, means)
			if err != nil {
				return report, errors.Wrapf(err, "evaluate: epoch %d step %d", epoch, t.globalStep)
			}
			lastMAP = mAP
			t.setState(StateTraining, epoch)
		}

		t.setState(StateCheckpointDecision, epoch)
		res := EpochResult{Epoch: epoch, TrainLoss: epochLoss.Result(), ValidLoss: math.NaN(), Loss: math.NaN(), MAP: lastMAP}
		if !math.IsNaN(lastMAP) && lastMAP > bestMAP {
			bestMAP = lastMAP
			res.Improved = true
		}
		if retention == RetainEveryEpoch || res.Improved {
			saved, err := t.save(ctx, epoch, res.TrainLoss, evaluatorMetrics(res))
			if err != nil {
				return report, err
			}
			res.Saved = saved
		}
		report.Epochs = append(report.Epochs, res)
		report.History = append(report.History, lastMAP)

		t.logger.Info("epoch finished",
			"epoch", epoch, "train_loss", res.TrainLoss, "mAP", lastMAP, "saved", res.Saved)
	}

	report.GlobalStep = t.globalStep
	t.setState(StateDone, -1)
	return report, nil
}

func evaluatorMetrics(res EpochResult) map[string]float64 {
	m := map[string]float64{"train_loss": res.TrainLoss}
	if !math.IsNaN(res.MAP) {
		m[TagMAP] = res.MAP
	}
	return m
}

func (t *Trainer) logProgress(epoch int, step int64, means lossMeans) {
	attrs := []any{"epoch", epoch, "step", step}
	for _, m := range means.all() {
		attrs = append(attrs, m.Name(), m.Result())
	}
	t.logger.Info("training", attrs...)
}

// evaluationCycle validates, writes summaries at the current global step
// and resets the evaluator and the loss means. It returns the mAP.
func (t *Trainer) evaluationCycle(ctx context.Context, means lossMeans) (float64, error) {
	results, images, err := t.evaluate(ctx)
	if err != nil {
		return 0, err
	}

	names := t.c.Evaluator.ClassNames()
	if len(results) != len(names)+1 {
		return 0, errors.Errorf("evaluator returned %d values for %d classes, want %d",
			len(results), len(names), len(names)+1)
	}

	step := t.globalStep
	w := t.c.Summary
	for i, name := range names {
		if err := w.Scalar("AP@"+name, results[i], step); err != nil {
			return 0, err
		}
	}
	mAP := results[len(names)]
	if err := w.Scalar(TagMAP, mAP, step); err != nil {
		return 0, err
	}
	for _, m := range means.all() {
		if err := w.Scalar(m.Name(), m.Result(), step); err != nil {
			return 0, err
		}
	}
	for i, img := range images {
		if err := w.Image(fmt.Sprintf("detections_%d", i), img, step); err != nil {
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}

	t.logger.Info("evaluation", "step", step, "mAP", mAP)
	t.c.Evaluator.Reset()
	means.reset()
	return mAP, nil
}

// evaluate runs at most ValidBatches forward-only batches through the
// evaluator, starting from the first batch when the source is a Rewinder.
func (t *Trainer) evaluate(ctx context.Context) ([]float64, []image.Image, error) {
	if r, ok := t.c.Valid.(Rewinder); ok {
		if err := r.Rewind(ctx); err != nil {
			return nil, nil, errors.Wrap(err, "rewind validation source")
		}
	}
	n := min(t.opts.ValidBatches, t.c.Valid.StepsPerEpoch())
	for i := 0; i < n; i++ {
		batch, err := t.nextBatch(ctx, t.c.Valid)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "batch %d", i)
		}
		out, err := t.c.Network.Forward(batch.Images, false)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "batch %d: forward", i)
		}
		if err := t.c.Evaluator.Append(out, batch, true); err != nil {
			return nil, nil, errors.Wrapf(err, "batch %d: append", i)
		}
	}

	results, err := t.c.Evaluator.Evaluate()
	if err != nil {
		return nil, nil, errors.Wrap(err, "evaluate")
	}
	return results, t.c.Evaluator.VisualImages(), nil
}
