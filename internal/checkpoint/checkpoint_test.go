package checkpoint

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/tensor"
)

// tinyModule is a two-parameter nn.Module.
type tinyModule struct {
	params []*nn.Parameter
}

func newTinyModule(t *testing.T, kernel, bias []float32) *tinyModule {
	t.Helper()
	k, err := tensor.FromSlice(kernel, tensor.Shape{1, 1, 1, len(kernel)})
	require.NoError(t, err)
	b, err := tensor.FromSlice(bias, tensor.Shape{len(bias)})
	require.NoError(t, err)
	return &tinyModule{params: []*nn.Parameter{
		nn.NewParameter("layer_0.kernel", k),
		nn.NewParameter("layer_0.bias", b),
	}}
}

func (m *tinyModule) Parameters() []*nn.Parameter { return m.params }

func (m *tinyModule) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDictOf(m.params)
}

func (m *tinyModule) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	return nn.LoadStateDictInto(m.params, sd)
}

func snapshotOf(m *tinyModule, epoch int, loss float64) Snapshot {
	return Snapshot{
		RunID:   "run-1",
		Epoch:   epoch,
		Step:    int64(epoch * 10),
		Loss:    loss,
		Metrics: map[string]float64{"mAP": 0.5},
		Params:  m.StateDict(),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := newTinyModule(t, []float32{1, -2, 3.5}, []float32{0.25, 0.5, 0.75})
	param := m.params[0]
	opt := optim.NewSGD(m.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	g, _ := tensor.FromSlice([]float32{1, 1, 1}, tensor.Shape{1, 1, 1, 3})
	opt.Step(optim.Gradients{param: g})

	s := snapshotOf(m, 3, 1.5)
	s.OptimizerType = "SGD"
	s.LR = opt.LR()
	s.OptimizerState = opt.StateDict()
	s.Metadata = map[string]string{"classes": "80"}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &s))
	assert.Equal(t, MagicBytes, buf.String()[:4])
	assert.Equal(t, uint32(FlagHasMetadata|FlagHasOptimizer), binary.LittleEndian.Uint32(buf.Bytes()[8:12]))

	got, err := Decode(bytes.NewReader(buf.Bytes()), DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.Epoch)
	assert.Equal(t, int64(30), got.Step)
	assert.Equal(t, 1.5, got.Loss)
	assert.Equal(t, 0.5, got.Metrics["mAP"])
	assert.Equal(t, "SGD", got.OptimizerType)
	assert.Equal(t, float32(0.1), got.LR)
	assert.Equal(t, defaultModelType, got.ModelType)
	assert.Equal(t, "80", got.Metadata["classes"])
	require.Len(t, got.Params, 2)
	assert.Equal(t, param.Tensor().AsFloat32(), got.Params["layer_0.kernel"].AsFloat32())
	assert.Equal(t, tensor.Shape{1, 1, 1, 3}, got.Params["layer_0.kernel"].Shape())
	require.Contains(t, got.OptimizerState, "velocity.0")

	fresh := newTinyModule(t, []float32{0, 0, 0}, []float32{0, 0, 0})
	freshOpt := optim.NewSGD(fresh.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, got.Restore(fresh, freshOpt))
	assert.Equal(t, param.Tensor().AsFloat32(), fresh.params[0].Tensor().AsFloat32())
	assert.Equal(t, []float32{0.25, 0.5, 0.75}, fresh.params[1].Tensor().AsFloat32())
	assert.Contains(t, freshOpt.StateDict(), "velocity.0")
}

func TestEncodeIsDeterministicInLayout(t *testing.T) {
	m := newTinyModule(t, []float32{1}, []float32{2})
	s := snapshotOf(m, 0, 1)

	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, &s))
	require.NoError(t, Encode(&b, &s))

	ha, err := DecodeHeader(bytes.NewReader(a.Bytes()))
	require.NoError(t, err)
	hb, err := DecodeHeader(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ha.Tensors, hb.Tensors)
	assert.Equal(t, "layer_0.bias", ha.Tensors[0].Name)
	assert.Equal(t, a.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize],
		b.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize])
}

func TestDecodeDetectsCorruption(t *testing.T) {
	m := newTinyModule(t, []float32{1, 2, 3, 4}, []float32{5, 6, 7, 8})
	s := snapshotOf(m, 1, 2)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &s))
	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(data), DecodeOptions{})
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	got, err := Decode(bytes.NewReader(data), DecodeOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	assert.Len(t, got.Params, 2)
}

func TestDecodeRejectsBadFixedHeader(t *testing.T) {
	m := newTinyModule(t, []float32{1}, []float32{2})
	s := snapshotOf(m, 0, 1)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &s))

	badMagic := append([]byte(nil), buf.Bytes()...)
	copy(badMagic, "NROB")
	_, err := Decode(bytes.NewReader(badMagic), DecodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidMagic)

	badVersion := append([]byte(nil), buf.Bytes()...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 1)
	_, err = Decode(bytes.NewReader(badVersion), DecodeOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Decode(bytes.NewReader(buf.Bytes()[:40]), DecodeOptions{})
	assert.Error(t, err)
}

func TestEncodeRejectsPathLikeNames(t *testing.T) {
	raw, _ := tensor.Full(tensor.Shape{1}, 1)
	s := &Snapshot{Params: map[string]*tensor.RawTensor{"../escape": raw}}

	err := Encode(&bytes.Buffer{}, s)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, InvalidName, ve.Problem)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		tensors []TensorMeta
		problem Problem
	}{
		{"ok", []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, ""},
		{"unordered", []TensorMeta{{Name: "b", Offset: 8, Size: 8}, {Name: "a", Offset: 0, Size: 8}}, ""},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 12}, {Name: "b", Offset: 8, Size: 8}}, OffsetOverlap},
		{"bounds", []TensorMeta{{Name: "a", Offset: 12, Size: 8}}, OutOfBounds},
		{"negative", []TensorMeta{{Name: "a", Offset: -4, Size: 4}}, NegativeOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTensorOffsets(tt.tensors, 16)
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.problem, ve.Problem)
		})
	}
}

func TestSaveIsAtomicOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.born")
	ctx := context.Background()

	first := newTinyModule(t, []float32{1}, []float32{1})
	s1 := snapshotOf(first, 0, 5)
	require.NoError(t, Save(ctx, path, &s1))

	second := newTinyModule(t, []float32{2}, []float32{2})
	s2 := snapshotOf(second, 1, 3)
	require.NoError(t, Save(ctx, path, &s2))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Epoch)
	assert.Equal(t, []float32{2}, got.Params["layer_0.kernel"].AsFloat32())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "no temporary files are left behind")
	assert.Equal(t, "model.born", files[0].Name())
}

func TestSaveCancelledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newTinyModule(t, []float32{1}, []float32{1})
	s := snapshotOf(m, 0, 1)
	err := Save(ctx, filepath.Join(dir, "model.born"), &s)
	assert.ErrorIs(t, err, context.Canceled)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReadHeaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	m := newTinyModule(t, []float32{1, 2}, []float32{3, 4})
	s := snapshotOf(m, 7, 0.5)
	require.NoError(t, Save(context.Background(), path, &s))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, h.FormatVersion)
	require.NotNil(t, h.CheckpointMeta)
	assert.Equal(t, 7, h.CheckpointMeta.Epoch)
	assert.Len(t, h.Tensors, 2)

	_, err = ReadHeader(filepath.Join(t.TempDir(), "missing.born"))
	assert.Error(t, err)
}

func TestBestSaver(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "yolov3")
	saver := NewBestSaver(prefix, nil)
	assert.Equal(t, prefix+".born", saver.Path())

	m := newTinyModule(t, []float32{1}, []float32{1})
	for epoch, loss := range []float64{5, 3} {
		require.NoError(t, saver.Save(context.Background(), snapshotOf(m, epoch, loss)))
	}
	assert.Equal(t, 2, saver.Saves())

	got, err := saver.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, got.Epoch)
	assert.Equal(t, 3.0, got.Loss)
}

func TestManagerKeysByEpochAndPrunes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ckpts")
	mgr := NewManager(dir, 2, nil)

	_, err := mgr.Latest()
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	m := newTinyModule(t, []float32{1}, []float32{1})
	for epoch := 0; epoch < 4; epoch++ {
		require.NoError(t, mgr.Save(context.Background(), snapshotOf(m, epoch, float64(epoch))))
	}

	entries, err := mgr.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Epoch)
	assert.Equal(t, filepath.Join(dir, "ckpt-3.born"), entries[1].Path)

	latest, err := mgr.Latest()
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Epoch)

	got, err := Load(latest.Path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Epoch)
}

func TestManagerKeepAll(t *testing.T) {
	mgr := NewManager(t.TempDir(), 0, nil)
	m := newTinyModule(t, []float32{1}, []float32{1})
	for epoch := 0; epoch < 3; epoch++ {
		require.NoError(t, mgr.Save(context.Background(), snapshotOf(m, epoch, 0)))
	}
	require.NoError(t, mgr.Save(context.Background(), snapshotOf(m, 1, 0)))

	entries, err := mgr.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3, "saving an epoch twice replaces its file")
}
