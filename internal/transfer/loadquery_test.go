package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/data"
	"github.com/arches-ml/arches/internal/model"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
	"github.com/arches-ml/arches/internal/vae"
)

// savedReference saves a small reference model and returns its path
// together with the live model for weight comparison.
func savedReference(t *testing.T) (string, *model.Model[*cpu.CPUBackend]) {
	t.Helper()

	opts := data.DefaultSyntheticOptions()
	opts.Cells = 40
	opts.Genes = 12
	opts.Batches = 2
	opts.Labels = 2
	opts.Seed = 3
	ds := data.Synthetic(opts)

	registry, err := data.Setup(ds, data.SetupOptions{BatchKey: "batch", LabelsKey: "labels"})
	require.NoError(t, err)

	cfg := model.DefaultConfig(registry)
	cfg.Hidden = 16
	cfg.Latent = 4
	cfg.Dispersion = vae.DispersionGeneBatch
	cfg.EncodeCovariates = true

	m, err := model.New(cfg, registry, cpu.New())
	require.NoError(t, err)
	m.SetTrained(true)

	path := filepath.Join(t.TempDir(), "reference.arcv")
	require.NoError(t, m.Save(path))
	return path, m
}

func querySet(t *testing.T, batches int) *data.Dataset {
	t.Helper()
	opts := data.DefaultSyntheticOptions()
	opts.Cells = 24
	opts.Genes = 12
	opts.Batches = batches
	opts.Labels = 2
	opts.Seed = 11
	return data.Synthetic(opts)
}

func corruptLastByte(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[len(b)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func TestLoadQuery_ExtendsVocabulary(t *testing.T) {
	path, _ := savedReference(t)
	query := querySet(t, 4)

	m, report, err := LoadQueryBackend(query, path, Options{}, cpu.New())
	require.NoError(t, err)

	assert.False(t, m.IsTrained(), "an adapted model needs fine-tuning")
	assert.Equal(t, 4, m.Config().Batches)
	assert.Equal(t, 2, m.Config().Labels)

	cats := m.Registry().Categorical(data.FieldBatch).Categories
	require.Len(t, cats, 4)
	assert.Equal(t, []string{"batch_0", "batch_1"}, cats[:2],
		"reference categories keep their codes")
	assert.Equal(t, []string{"batch_2", "batch_3"}, cats[2:])

	widths := map[string][2]int{}
	for _, g := range report.Grown {
		widths[g.Name] = [2]int{g.OldWidth, g.NewWidth}
	}
	assert.Equal(t, [2]int{14, 16}, widths["z_encoder.encoder.fc_layers.0.linear.weight"])
	assert.Equal(t, [2]int{6, 8}, widths["decoder.px_decoder.fc_layers.0.linear.weight"])
	assert.Equal(t, [2]int{2, 4}, widths["px_r"])
}

func TestLoadQuery_PreservesReferenceColumns(t *testing.T) {
	path, ref := savedReference(t)
	query := querySet(t, 3)

	m, _, err := LoadQueryBackend(query, path, Options{}, cpu.New())
	require.NoError(t, err)

	refW := ref.VAE().ZEncoder().FC().LinearAt(0).Weight().Tensor()
	gotW := m.VAE().ZEncoder().FC().LinearAt(0).Weight().Tensor()
	oldIn, newIn := 14, 15
	require.True(t, gotW.Shape().Equal(tensor.Shape{16, newIn}))
	for row := 0; row < 16; row++ {
		assert.Equal(t,
			refW.Data()[row*oldIn:(row+1)*oldIn],
			gotW.Data()[row*newIn:row*newIn+oldIn],
			"row %d reference columns", row)
	}

	refR := ref.VAE().PxR().Tensor()
	gotR := m.VAE().PxR().Tensor()
	require.True(t, gotR.Shape().Equal(tensor.Shape{12, 3}))
	for gene := 0; gene < 12; gene++ {
		assert.Equal(t,
			refR.Data()[gene*2:gene*2+2],
			gotR.Data()[gene*3:gene*3+2],
			"gene %d dispersion", gene)
	}
}

func TestLoadQuery_IdenticalVocabularyIsVerbatim(t *testing.T) {
	path, ref := savedReference(t)
	query := querySet(t, 2)

	m, report, err := LoadQueryBackend(query, path, Options{}, cpu.New())
	require.NoError(t, err)

	assert.Empty(t, report.Grown, "no new categories means no growth")
	assert.Equal(t, ref.Config(), m.Config())

	want := ref.VAE().StateDict()
	got := m.VAE().StateDict()
	require.Equal(t, len(want), len(got))
	for name, w := range want {
		g, ok := got[name]
		require.True(t, ok, name)
		assert.Equal(t, w.Data(), g.Data(), "%s must round-trip bit for bit", name)
	}
}

func TestLoadQuery_MissingInitParamsRejectedBeforePayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.arcv")

	w, err := serialization.NewArcvWriter(path)
	require.NoError(t, err)
	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	require.NoError(t, w.WriteStateDictWithHeader(
		map[string]*tensor.RawTensor{"w": raw},
		serialization.Header{FormatVersion: serialization.FormatVersionV2, ModelType: "VAE"},
	))
	require.NoError(t, w.Close())

	// Corrupt the payload. If the loader touched it before checking
	// the metadata, the checksum would fail first and this test would
	// see the wrong error.
	corruptLastByte(t, path)

	_, _, err = LoadQueryBackend(querySet(t, 2), path, Options{}, cpu.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingInitParams)
	assert.NotErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestLoadQuery_CorruptPayloadFailsChecksum(t *testing.T) {
	path, _ := savedReference(t)
	corruptLastByte(t, path)

	_, _, err := LoadQueryBackend(querySet(t, 2), path, Options{}, cpu.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestLoadQuery_GeneCountMismatch(t *testing.T) {
	path, _ := savedReference(t)

	opts := data.DefaultSyntheticOptions()
	opts.Cells = 10
	opts.Genes = 9
	opts.Batches = 2
	opts.Labels = 2
	opts.Seed = 5
	query := data.Synthetic(opts)

	_, _, err := LoadQueryBackend(query, path, Options{}, cpu.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrGeneCountMismatch)
}

func TestLoadQuery_AppliesDefaultFreeze(t *testing.T) {
	path, _ := savedReference(t)

	m, _, err := LoadQueryBackend(querySet(t, 3), path, Options{}, cpu.New())
	require.NoError(t, err)
	named := m.VAE().NamedParameters()

	zW := named["z_encoder.encoder.fc_layers.0.linear.weight"]
	assert.True(t, zW.Trainable())
	assert.Equal(t, 14, zW.FrozenColumns(), "mask sits at the old input width")

	assert.False(t, named["z_encoder.encoder.fc_layers.0.linear.bias"].Trainable())
	assert.False(t, named["z_encoder.mean_encoder.weight"].Trainable())
	assert.True(t, named["l_encoder.mean_encoder.weight"].Trainable())
	assert.True(t, named["px_r"].Trainable())
	assert.Equal(t, -1, named["px_r"].FrozenColumns())

	assert.False(t, m.VAE().ZEncoder().FC().BatchNormAt(0).TracksRunningStats())
	assert.True(t, m.VAE().Decoder().PxDecoder().BatchNormAt(0).TracksRunningStats())
}

func TestLoadQuery_CustomFreeze(t *testing.T) {
	path, _ := savedReference(t)

	freeze := FreezeConfig{}
	m, _, err := LoadQueryBackend(querySet(t, 3), path, Options{Freeze: &freeze}, cpu.New())
	require.NoError(t, err)
	named := m.VAE().NamedParameters()

	zW := named["z_encoder.encoder.fc_layers.0.linear.weight"]
	assert.True(t, zW.Trainable())
	assert.Equal(t, -1, zW.FrozenColumns(), "open expression lifts the mask")
	assert.True(t, named["z_encoder.encoder.fc_layers.0.linear.bias"].Trainable())
	assert.True(t, m.VAE().ZEncoder().FC().BatchNormAt(0).TracksRunningStats())
}

func TestLoadQuery_LatentOnQuery(t *testing.T) {
	path, _ := savedReference(t)
	query := querySet(t, 3)

	m, _, err := LoadQueryBackend(query, path, Options{}, cpu.New())
	require.NoError(t, err)

	z, err := m.LatentRepresentation(query)
	require.NoError(t, err)
	assert.True(t, z.Shape().Equal(tensor.Shape{24, 4}))
}

func TestLoadQuery_SelectsBackend(t *testing.T) {
	path, _ := savedReference(t)

	m, _, err := LoadQuery(querySet(t, 2), path, Options{Device: model.DeviceCPU})
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, m.Backend().Device())
}
