package nn_test

import (
	"math"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/tensor"
)

// TestEncoder_Shapes tests the shapes of the posterior outputs.
func TestEncoder_Shapes(t *testing.T) {
	backend := cpu.New()

	encoder := nn.NewEncoder(nn.EncoderConfig{
		In:           20,
		Out:          5,
		Hidden:       16,
		Layers:       1,
		Dropout:      0.1,
		UseBatchNorm: true,
	}, backend)

	input := tensor.Randn[float32](tensor.Shape{8, 20}, backend)
	qm, qv, z := encoder.Forward(input)

	want := tensor.Shape{8, 5}
	if !qm.Shape().Equal(want) {
		t.Errorf("qm shape = %v, want %v", qm.Shape(), want)
	}
	if !qv.Shape().Equal(want) {
		t.Errorf("qv shape = %v, want %v", qv.Shape(), want)
	}
	if !z.Shape().Equal(want) {
		t.Errorf("z shape = %v, want %v", z.Shape(), want)
	}
}

// TestEncoder_VariancePositive tests that encoded variances stay
// strictly positive.
func TestEncoder_VariancePositive(t *testing.T) {
	backend := cpu.New()

	encoder := nn.NewEncoder(nn.EncoderConfig{
		In:     10,
		Out:    4,
		Hidden: 8,
		Layers: 1,
	}, backend)

	input := tensor.Randn[float32](tensor.Shape{6, 10}, backend)
	_, qv, _ := encoder.Forward(input)

	for i, v := range qv.Data() {
		if v <= 0 {
			t.Errorf("qv[%d] = %v, want > 0", i, v)
		}
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Errorf("qv[%d] = %v, want finite", i, v)
		}
	}
}

// TestEncoder_SampleReparameterization tests that sampling with zero
// variance returns the mean exactly.
func TestEncoder_SampleReparameterization(t *testing.T) {
	backend := cpu.New()

	encoder := nn.NewEncoder(nn.EncoderConfig{
		In:     10,
		Out:    3,
		Hidden: 8,
		Layers: 1,
	}, backend)

	qm, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	qv := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)

	z := encoder.Sample(qm, qv)

	for i, v := range z.Data() {
		if v != qm.Data()[i] {
			t.Errorf("z[%d] = %v, want qm value %v", i, v, qm.Data()[i])
		}
	}
}

// TestEncoder_LogNormalSimplex tests the logistic-normal latent
// transformation.
func TestEncoder_LogNormalSimplex(t *testing.T) {
	backend := cpu.New()

	encoder := nn.NewEncoder(nn.EncoderConfig{
		In:           10,
		Out:          4,
		Hidden:       8,
		Layers:       1,
		Distribution: nn.DistLogNormal,
	}, backend)

	input := tensor.Randn[float32](tensor.Shape{5, 10}, backend)
	_, _, z := encoder.Forward(input)

	data := z.Data()
	for row := 0; row < 5; row++ {
		var sum float32
		for col := 0; col < 4; col++ {
			v := data[row*4+col]
			if v < 0 {
				t.Errorf("z[%d,%d] = %v, want >= 0", row, col, v)
			}
			sum += v
		}
		if math.Abs(float64(sum-1)) > 1e-4 {
			t.Errorf("z row %d sums to %v, want 1", row, sum)
		}
	}
}

// TestEncoder_WithCovariates tests covariate injection through the
// encoder stack.
func TestEncoder_WithCovariates(t *testing.T) {
	backend := cpu.New()

	encoder := nn.NewEncoder(nn.EncoderConfig{
		In:            10,
		Out:           4,
		Hidden:        8,
		Layers:        2,
		CovariateDims: []int{3},
		InjectAll:     true,
		UseBatchNorm:  true,
	}, backend)

	if encoder.FC().LinearAt(0).InFeatures() != 13 {
		t.Errorf("layer 0 in = %d, want 13", encoder.FC().LinearAt(0).InFeatures())
	}

	input := tensor.Randn[float32](tensor.Shape{4, 10}, backend)
	batches, _ := tensor.FromSlice([]int64{0, 1, 2, 1}, tensor.Shape{4}, backend)

	qm, _, _ := encoder.Forward(input, batches)
	if !qm.Shape().Equal(tensor.Shape{4, 4}) {
		t.Errorf("qm shape = %v, want [4 4]", qm.Shape())
	}
}

// TestEncoder_StateDict tests state dict keys and the round trip.
func TestEncoder_StateDict(t *testing.T) {
	backend := cpu.New()

	cfg := nn.EncoderConfig{
		In:           10,
		Out:          4,
		Hidden:       8,
		Layers:       1,
		UseBatchNorm: true,
	}

	src := nn.NewEncoder(cfg, backend)
	stateDict := src.StateDict()

	wantKeys := []string{
		"encoder.fc_layers.0.linear.weight",
		"encoder.fc_layers.0.batch_norm.running_mean",
		"mean_encoder.weight",
		"mean_encoder.bias",
		"var_encoder.weight",
		"var_encoder.bias",
	}
	for _, key := range wantKeys {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("StateDict missing key %q", key)
		}
	}

	dst := nn.NewEncoder(cfg, backend)
	if err := dst.LoadStateDict(stateDict); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	// The posterior parameters must agree after the round trip; the
	// sample itself is stochastic.
	src.SetTraining(false)
	dst.SetTraining(false)

	input := tensor.Randn[float32](tensor.Shape{3, 10}, backend)
	qmA, qvA, _ := src.Forward(input)
	qmB, qvB, _ := dst.Forward(input)

	for i := range qmA.Data() {
		if qmA.Data()[i] != qmB.Data()[i] {
			t.Fatalf("qm diverges at %d", i)
		}
		if qvA.Data()[i] != qvB.Data()[i] {
			t.Fatalf("qv diverges at %d", i)
		}
	}
}
