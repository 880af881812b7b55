package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/summary"
	"github.com/born-ml/yolov3/internal/tensor"
	"github.com/born-ml/yolov3/internal/train"
)

const sample = `
run_id: voc-1
model:
  classes: 20
weights:
  darknet: yolov3.weights
  skip_detector: true
train:
  epochs: 100
  retention: best
  log_iter: 1000
optimizer:
  name: sgd
  lr: 0.01
  momentum: 0.9
  schedule:
    - {epoch: 80, lr: 0.0001}
    - {epoch: 60, lr: 0.001}
checkpoint:
  prefix: weights/yolov3
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "voc-1", cfg.RunID)
	assert.Equal(t, 20, cfg.Model.Classes)
	assert.True(t, cfg.Weights.SkipDetector)
	assert.False(t, cfg.Weights.BackboneOnly)
	assert.Equal(t, 80, cfg.Weights.FileClasses, "defaults survive partial sections")
	assert.Equal(t, 100, cfg.Train.Epochs)
	assert.Equal(t, train.DefaultValidBatches, cfg.Train.ValidBatches, "defaults survive partial sections")
	assert.Equal(t, train.DefaultPrintIter, cfg.Train.PrintIter)

	opts, err := cfg.TrainOptions()
	require.NoError(t, err)
	assert.Equal(t, train.RetainBest, opts.Retention)
	assert.Equal(t, 1000, opts.LogIter)
	assert.Equal(t, "voc-1", opts.RunID)
	require.NotNil(t, opts.Schedule)
	assert.Equal(t, float32(0.01), opts.Schedule.Value(0))
	assert.Equal(t, float32(0.001), opts.Schedule.Value(70))
	assert.Equal(t, float32(0.0001), opts.Schedule.Value(90))
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	opts, err := cfg.TrainOptions()
	require.NoError(t, err)
	assert.Equal(t, train.RetainDefault, opts.Retention)
	assert.Nil(t, opts.Schedule)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("train:\n  epoch: 3\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		yaml string
		key  string
	}{
		{"model: {classes: 0}", "model.classes"},
		{"weights: {file_classes: 0}", "weights.file_classes"},
		{"train: {epochs: -1}", "train.epochs"},
		{"train: {log_iter: -5}", "train.log_iter"},
		{"train: {retention: sometimes}", "train.retention"},
		{"optimizer: {name: rmsprop}", "optimizer.name"},
		{"optimizer: {lr: 0}", "optimizer.lr"},
		{"optimizer: {momentum: 1}", "optimizer.momentum"},
		{"optimizer: {schedule: [{epoch: 3, lr: 0}]}", "optimizer.schedule"},
		{"checkpoint: {dir: ''}", "checkpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var ce *Error
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "weights/yolov3", cfg.Checkpoint.Prefix)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	data, err := cfg.Marshal()
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestCollaborators(t *testing.T) {
	raw, _ := tensor.Full(tensor.Shape{1}, 1)
	params := []*nn.Parameter{nn.NewParameter("p", raw)}

	cfg := Default()
	_, isAdam := cfg.NewOptimizer(params).(*optim.Adam)
	assert.True(t, isAdam)
	_, isManager := cfg.NewCheckpointer(nil).(*checkpoint.Manager)
	assert.True(t, isManager)

	w, closeFn, err := cfg.NewSummary()
	require.NoError(t, err)
	assert.Equal(t, summary.Discard, w)
	assert.NoError(t, closeFn())

	cfg.Optimizer.Name = "SGD"
	sgd, isSGD := cfg.NewOptimizer(params).(*optim.SGD)
	require.True(t, isSGD)
	assert.Equal(t, cfg.Optimizer.LR, sgd.LR())

	cfg.Checkpoint.Prefix = filepath.Join(t.TempDir(), "best")
	best, isBest := cfg.NewCheckpointer(nil).(*checkpoint.BestSaver)
	require.True(t, isBest)
	assert.Equal(t, cfg.Checkpoint.Prefix+".born", best.Path())

	cfg.Summary.Dir = t.TempDir()
	cfg.RunID = "run"
	w, closeFn, err = cfg.NewSummary()
	require.NoError(t, err)
	require.NoError(t, w.Scalar("mAP", 0.5, 1))
	require.NoError(t, closeFn())
	assert.FileExists(t, filepath.Join(cfg.Summary.Dir, "run", "events.jsonl"))
}
