package nn

import (
	"math"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/tensor"
)

// TestBatchNorm_TrainingNormalizes tests that training mode normalizes
// with batch statistics.
func TestBatchNorm_TrainingNormalizes(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm(2, backend)

	input, err := tensor.FromSlice[float32](
		[]float32{1, 10, 3, 20, 5, 30, 7, 40},
		tensor.Shape{4, 2},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := bn.Forward(input)
	data := output.Data()

	// Per-feature mean ~0 and variance ~1 after normalization.
	for feature := 0; feature < 2; feature++ {
		var sum, sumSq float64
		for row := 0; row < 4; row++ {
			v := float64(data[row*2+feature])
			sum += v
			sumSq += v * v
		}
		mean := sum / 4
		variance := sumSq/4 - mean*mean

		if math.Abs(mean) > 0.01 {
			t.Errorf("feature %d mean = %v, want ~0", feature, mean)
		}
		if math.Abs(variance-1.0) > 0.05 {
			t.Errorf("feature %d variance = %v, want ~1", feature, variance)
		}
	}
}

// TestBatchNorm_RunningStats tests the momentum update of the running
// estimates, including the unbiased variance correction.
func TestBatchNorm_RunningStats(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm(2, backend)

	input, err := tensor.FromSlice[float32](
		[]float32{1, 2, 3, 4},
		tensor.Shape{2, 2},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	_ = bn.Forward(input)

	// batchMean = [2, 3], biasedVar = [1, 1], correction 2/(2-1) = 2.
	// runningMean = 0.99*0 + 0.01*mean, runningVar = 0.99*1 + 0.01*2.
	wantMean := []float32{0.02, 0.03}
	wantVar := []float32{1.01, 1.01}

	rm := bn.RunningMean().Data()
	rv := bn.RunningVar().Data()
	for i := 0; i < 2; i++ {
		if math.Abs(float64(rm[i]-wantMean[i])) > 1e-5 {
			t.Errorf("runningMean[%d] = %v, want %v", i, rm[i], wantMean[i])
		}
		if math.Abs(float64(rv[i]-wantVar[i])) > 1e-5 {
			t.Errorf("runningVar[%d] = %v, want %v", i, rv[i], wantVar[i])
		}
	}

	tracked := bn.StateDict()["num_batches_tracked"].AsInt64()[0]
	if tracked != 1 {
		t.Errorf("num_batches_tracked = %d, want 1", tracked)
	}
}

// TestBatchNorm_EvalUsesRunningStats tests evaluation-mode
// normalization against hand-computed values.
func TestBatchNorm_EvalUsesRunningStats(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm(2, backend)

	copy(bn.RunningMean().Data(), []float32{1, 2})
	copy(bn.RunningVar().Data(), []float32{4, 9})
	copy(bn.Gamma.Tensor().Data(), []float32{2, 1})
	copy(bn.Beta.Tensor().Data(), []float32{1, 0})

	bn.SetTraining(false)

	input, err := tensor.FromSlice[float32]([]float32{3, 5}, tensor.Shape{1, 2}, backend)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := bn.Forward(input)
	data := output.Data()

	// (3-1)/sqrt(4+eps)*2 + 1 ≈ 3.0; (5-2)/sqrt(9+eps)*1 ≈ 1.0
	want := []float32{3.0, 1.0}
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > 0.01 {
			t.Errorf("output[%d] = %v, want ~%v", i, data[i], want[i])
		}
	}

	// Evaluation must not touch the running estimates.
	if bn.RunningMean().Data()[0] != 1 || bn.RunningVar().Data()[0] != 4 {
		t.Error("evaluation forward must not update running statistics")
	}
}

// TestBatchNorm_FreezeStats tests that frozen statistics stop updating
// while normalization still runs on batch statistics.
func TestBatchNorm_FreezeStats(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm(2, backend)

	bn.FreezeStats()
	if bn.TracksRunningStats() {
		t.Fatal("FreezeStats should stop running-statistics tracking")
	}

	input, err := tensor.FromSlice[float32](
		[]float32{1, 2, 3, 4, 5, 6},
		tensor.Shape{3, 2},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := bn.Forward(input)

	if bn.RunningMean().Data()[0] != 0 || bn.RunningVar().Data()[0] != 1 {
		t.Error("frozen running statistics must not change")
	}
	if bn.StateDict()["num_batches_tracked"].AsInt64()[0] != 0 {
		t.Error("frozen batch counter must not change")
	}

	// The forward pass still normalizes with batch statistics.
	data := output.Data()
	var sum float64
	for row := 0; row < 3; row++ {
		sum += float64(data[row*2])
	}
	if math.Abs(sum/3) > 0.01 {
		t.Errorf("feature 0 mean = %v, want ~0", sum/3)
	}
}

// TestBatchNorm_InputPreserved tests that evaluation on a single-row
// batch leaves the input intact.
func TestBatchNorm_InputPreserved(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm(3, backend)
	bn.SetTraining(false)

	original := []float32{1, 2, 3}
	input, err := tensor.FromSlice[float32](append([]float32(nil), original...), tensor.Shape{1, 3}, backend)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	_ = bn.Forward(input)

	data := input.Data()
	for i, want := range original {
		if data[i] != want {
			t.Fatalf("input[%d] = %v after Forward, want %v", i, data[i], want)
		}
	}
}

// TestBatchNorm_StateDict tests the state dict contents and round trip.
func TestBatchNorm_StateDict(t *testing.T) {
	backend := cpu.New()

	src := NewBatchNorm(2, backend)
	copy(src.Gamma.Tensor().Data(), []float32{2, 3})
	copy(src.Beta.Tensor().Data(), []float32{0.5, 1})
	copy(src.RunningMean().Data(), []float32{1, 2})
	copy(src.RunningVar().Data(), []float32{4, 9})
	src.StateDict()["num_batches_tracked"].AsInt64()[0] = 7

	stateDict := src.StateDict()
	for _, key := range []string{"weight", "bias", "running_mean", "running_var", "num_batches_tracked"} {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("StateDict missing key %q", key)
		}
	}

	dst := NewBatchNorm(2, backend)
	if err := dst.LoadStateDict(stateDict); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	if dst.RunningMean().Data()[1] != 2 || dst.RunningVar().Data()[1] != 9 {
		t.Error("running statistics not restored")
	}
	if dst.Gamma.Tensor().Data()[0] != 2 || dst.Beta.Tensor().Data()[1] != 1 {
		t.Error("affine parameters not restored")
	}
	if dst.StateDict()["num_batches_tracked"].AsInt64()[0] != 7 {
		t.Error("batch counter not restored")
	}

	// The counter entry is optional in older artifacts.
	withoutCounter := map[string]*tensor.RawTensor{
		"weight":       stateDict["weight"],
		"bias":         stateDict["bias"],
		"running_mean": stateDict["running_mean"],
		"running_var":  stateDict["running_var"],
	}
	fresh := NewBatchNorm(2, backend)
	if err := fresh.LoadStateDict(withoutCounter); err != nil {
		t.Errorf("LoadStateDict without num_batches_tracked failed: %v", err)
	}
}
