package nn_test

import (
	"math"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/tensor"
)

// TestDecoder_Shapes tests the shapes of the likelihood parameters.
func TestDecoder_Shapes(t *testing.T) {
	backend := cpu.New()

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:           5,
		Out:          20,
		Hidden:       16,
		Layers:       1,
		UseBatchNorm: true,
	}, backend)

	z := tensor.Randn[float32](tensor.Shape{4, 5}, backend)
	library := tensor.Zeros[float32](tensor.Shape{4, 1}, backend)

	pxScale, pxR, pxRate, pxDropout := decoder.Forward(z, library)

	want := tensor.Shape{4, 20}
	if !pxScale.Shape().Equal(want) {
		t.Errorf("pxScale shape = %v, want %v", pxScale.Shape(), want)
	}
	if !pxRate.Shape().Equal(want) {
		t.Errorf("pxRate shape = %v, want %v", pxRate.Shape(), want)
	}
	if !pxDropout.Shape().Equal(want) {
		t.Errorf("pxDropout shape = %v, want %v", pxDropout.Shape(), want)
	}
	if pxR != nil {
		t.Error("pxR should be nil without per-cell dispersion")
	}
}

// TestDecoder_ScaleOnSimplex tests that decoded scales are normalized
// proportions over genes.
func TestDecoder_ScaleOnSimplex(t *testing.T) {
	backend := cpu.New()

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:     3,
		Out:    8,
		Hidden: 8,
		Layers: 1,
	}, backend)

	z := tensor.Randn[float32](tensor.Shape{5, 3}, backend)
	library := tensor.Zeros[float32](tensor.Shape{5, 1}, backend)

	pxScale, _, _, _ := decoder.Forward(z, library)

	data := pxScale.Data()
	for row := 0; row < 5; row++ {
		var sum float32
		for col := 0; col < 8; col++ {
			v := data[row*8+col]
			if v < 0 {
				t.Errorf("pxScale[%d,%d] = %v, want >= 0", row, col, v)
			}
			sum += v
		}
		if math.Abs(float64(sum-1)) > 1e-4 {
			t.Errorf("pxScale row %d sums to %v, want 1", row, sum)
		}
	}
}

// TestDecoder_RateScalesWithLibrary tests that the expected rate is the
// scale multiplied by the exponentiated log library size.
func TestDecoder_RateScalesWithLibrary(t *testing.T) {
	backend := cpu.New()

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:     3,
		Out:    6,
		Hidden: 8,
		Layers: 1,
	}, backend)

	z := tensor.Randn[float32](tensor.Shape{2, 3}, backend)

	// With log library size 0 the rate equals the scale.
	zeroLib := tensor.Zeros[float32](tensor.Shape{2, 1}, backend)
	pxScale, _, pxRate, _ := decoder.Forward(z, zeroLib)
	for i := range pxScale.Data() {
		if !floatEqual(pxRate.Data()[i], pxScale.Data()[i], 1e-6) {
			t.Fatalf("pxRate[%d] = %v, want pxScale value %v", i, pxRate.Data()[i], pxScale.Data()[i])
		}
	}

	// With log library size ln(100) the rate is 100x the scale.
	logLib, _ := tensor.FromSlice([]float32{
		float32(math.Log(100)),
		float32(math.Log(100)),
	}, tensor.Shape{2, 1}, backend)
	pxScale, _, pxRate, _ = decoder.Forward(z, logLib)
	for i := range pxScale.Data() {
		want := 100 * pxScale.Data()[i]
		if !floatEqual(pxRate.Data()[i], want, 1e-3) {
			t.Fatalf("pxRate[%d] = %v, want %v", i, pxRate.Data()[i], want)
		}
	}
}

// TestDecoder_PerCellDispersion tests the optional dispersion head.
func TestDecoder_PerCellDispersion(t *testing.T) {
	backend := cpu.New()

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:                3,
		Out:               6,
		Hidden:            8,
		Layers:            1,
		PerCellDispersion: true,
	}, backend)

	z := tensor.Randn[float32](tensor.Shape{4, 3}, backend)
	library := tensor.Zeros[float32](tensor.Shape{4, 1}, backend)

	_, pxR, _, _ := decoder.Forward(z, library)
	if pxR == nil {
		t.Fatal("pxR should be computed with per-cell dispersion")
	}
	if !pxR.Shape().Equal(tensor.Shape{4, 6}) {
		t.Errorf("pxR shape = %v, want [4 6]", pxR.Shape())
	}
}

// TestDecoder_SoftplusScale tests the positive, unnormalized scale link.
func TestDecoder_SoftplusScale(t *testing.T) {
	backend := cpu.New()

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:              3,
		Out:             6,
		Hidden:          8,
		Layers:          1,
		ScaleActivation: nn.ScaleSoftplus,
	}, backend)

	z := tensor.Randn[float32](tensor.Shape{4, 3}, backend)
	library := tensor.Zeros[float32](tensor.Shape{4, 1}, backend)

	pxScale, _, _, _ := decoder.Forward(z, library)
	for i, v := range pxScale.Data() {
		if v <= 0 {
			t.Errorf("pxScale[%d] = %v, want > 0", i, v)
		}
	}
}

// TestDecoder_WithCovariates tests covariate injection through the
// decoder stack.
func TestDecoder_WithCovariates(t *testing.T) {
	backend := cpu.New()

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:            3,
		Out:           6,
		Hidden:        8,
		Layers:        2,
		CovariateDims: []int{4},
		InjectAll:     true,
	}, backend)

	if decoder.PxDecoder().LinearAt(0).InFeatures() != 7 {
		t.Errorf("layer 0 in = %d, want 7", decoder.PxDecoder().LinearAt(0).InFeatures())
	}

	z := tensor.Randn[float32](tensor.Shape{4, 3}, backend)
	library := tensor.Zeros[float32](tensor.Shape{4, 1}, backend)
	batches, _ := tensor.FromSlice([]int64{0, 3, 1, 2}, tensor.Shape{4}, backend)

	pxScale, _, _, _ := decoder.Forward(z, library, batches)
	if !pxScale.Shape().Equal(tensor.Shape{4, 6}) {
		t.Errorf("pxScale shape = %v, want [4 6]", pxScale.Shape())
	}
}

// TestDecoder_StateDict tests state dict keys and the round trip. The
// dispersion head appears in the dict even when Forward skips it, so
// checkpoints stay exchangeable between dispersion modes.
func TestDecoder_StateDict(t *testing.T) {
	backend := cpu.New()

	cfg := nn.DecoderConfig{
		In:           3,
		Out:          6,
		Hidden:       8,
		Layers:       1,
		UseBatchNorm: true,
	}

	src := nn.NewDecoder(cfg, backend)
	stateDict := src.StateDict()

	wantKeys := []string{
		"px_decoder.fc_layers.0.linear.weight",
		"px_decoder.fc_layers.0.batch_norm.running_var",
		"px_scale_decoder.0.weight",
		"px_scale_decoder.0.bias",
		"px_r_decoder.weight",
		"px_dropout_decoder.weight",
		"px_dropout_decoder.bias",
	}
	for _, key := range wantKeys {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("StateDict missing key %q", key)
		}
	}

	dst := nn.NewDecoder(cfg, backend)
	if err := dst.LoadStateDict(stateDict); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	src.SetTraining(false)
	dst.SetTraining(false)

	z := tensor.Randn[float32](tensor.Shape{3, 3}, backend)
	library := tensor.Zeros[float32](tensor.Shape{3, 1}, backend)

	scaleA, _, rateA, _ := src.Forward(z, library)
	scaleB, _, rateB, _ := dst.Forward(z, library)

	for i := range scaleA.Data() {
		if scaleA.Data()[i] != scaleB.Data()[i] {
			t.Fatalf("pxScale diverges at %d", i)
		}
		if rateA.Data()[i] != rateB.Data()[i] {
			t.Fatalf("pxRate diverges at %d", i)
		}
	}
}
