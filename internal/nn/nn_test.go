package nn_test

import (
	"math"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/tensor"
)

// Helper to check if values are approximately equal.
//
//nolint:unparam // epsilon is always 1e-5 in tests, but keeping it as parameter for flexibility
func floatEqual(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

// TestParameter tests Parameter creation and methods.
func TestParameter(t *testing.T) {
	backend := cpu.New()

	data, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("test_param", data)

	if param.Name() != "test_param" {
		t.Errorf("Name() = %s, want test_param", param.Name())
	}

	if param.Tensor() != data {
		t.Error("Tensor() should return the original tensor")
	}

	if param.Grad() != nil {
		t.Error("Grad() should initially be nil")
	}

	if !param.Trainable() {
		t.Error("Parameters should start trainable")
	}

	grad, _ := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	param.SetGrad(grad)
	if param.Grad() != grad {
		t.Error("SetGrad() should set the gradient")
	}

	param.ZeroGrad()
	if param.Grad() != nil {
		t.Error("ZeroGrad() should clear the gradient")
	}
}

// TestParameter_Frozen tests that frozen parameters discard gradients.
func TestParameter_Frozen(t *testing.T) {
	backend := cpu.New()

	data, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("weight", data)

	grad, _ := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	param.SetGrad(grad)

	// Freezing drops the pending gradient.
	param.SetTrainable(false)
	if param.Grad() != nil {
		t.Error("SetTrainable(false) should drop the pending gradient")
	}

	// Gradients assigned while frozen are discarded.
	param.SetGrad(grad)
	if param.Grad() != nil {
		t.Error("frozen parameter should discard gradients")
	}

	param.SetTrainable(true)
	param.SetGrad(grad)
	if param.Grad() == nil {
		t.Error("unfrozen parameter should accept gradients again")
	}
}

// TestParameter_ColumnMask tests partial freezing of trailing columns.
func TestParameter_ColumnMask(t *testing.T) {
	backend := cpu.New()

	data, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 4}, backend)
	param := nn.NewParameter("weight", data)

	if param.FrozenColumns() != -1 {
		t.Errorf("FrozenColumns() = %d, want -1 before masking", param.FrozenColumns())
	}

	// Freeze the first two columns; only columns 2 and 3 stay live.
	param.FreezeColumnsBefore(2)
	if !param.Trainable() {
		t.Error("column-masked parameter must stay trainable")
	}
	if param.FrozenColumns() != 2 {
		t.Errorf("FrozenColumns() = %d, want 2", param.FrozenColumns())
	}

	grad, _ := tensor.FromSlice([]float32{1, 1, 1, 1, 1, 1, 1, 1}, tensor.Shape{2, 4}, backend)
	param.SetGrad(grad)

	want := []float32{0, 0, 1, 1, 0, 0, 1, 1}
	got := param.Grad().Data()
	for i, w := range want {
		if got[i] != w {
			t.Errorf("masked grad[%d] = %f, want %f", i, got[i], w)
		}
	}

	// Clearing the mask restores full gradients.
	param.FreezeColumnsBefore(0)
	if param.FrozenColumns() != -1 {
		t.Errorf("FrozenColumns() = %d, want -1 after clearing", param.FrozenColumns())
	}
}

// TestLinear_Creation tests Linear layer initialization.
func TestLinear_Creation(t *testing.T) {
	backend := cpu.New()

	layer := nn.NewLinear(10, 5, backend)

	if layer.InFeatures() != 10 {
		t.Errorf("InFeatures() = %d, want 10", layer.InFeatures())
	}
	if layer.OutFeatures() != 5 {
		t.Errorf("OutFeatures() = %d, want 5", layer.OutFeatures())
	}

	// Check weight shape: [out_features, in_features]
	weight := layer.Weight().Tensor()
	expectedShape := tensor.Shape{5, 10}
	if !weight.Shape().Equal(expectedShape) {
		t.Errorf("Weight shape = %v, want %v", weight.Shape(), expectedShape)
	}

	// Check bias shape: [out_features]
	bias := layer.Bias().Tensor()
	expectedBiasShape := tensor.Shape{5}
	if !bias.Shape().Equal(expectedBiasShape) {
		t.Errorf("Bias shape = %v, want %v", bias.Shape(), expectedBiasShape)
	}

	// Check bias is zeros
	biasData := bias.Raw().AsFloat32()
	for i, v := range biasData {
		if v != 0 {
			t.Errorf("Bias[%d] = %f, want 0", i, v)
		}
	}

	params := layer.Parameters()
	if len(params) != 2 {
		t.Errorf("Parameters() length = %d, want 2", len(params))
	}
}

// TestLinear_Forward tests Linear layer forward pass.
func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()

	// Create a simple 2x2 linear layer for easy verification
	layer := nn.NewLinear(2, 2, backend)

	// Weight: [[1, 2], [3, 4]] (out=2, in=2)
	weightData := []float32{1, 2, 3, 4}
	copy(layer.Weight().Tensor().Raw().AsFloat32(), weightData)

	// Bias: [0.5, 1.0]
	biasData := []float32{0.5, 1.0}
	copy(layer.Bias().Tensor().Raw().AsFloat32(), biasData)

	// Input: [[1, 1]] (batch=1, in=2)
	input, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)

	output := layer.Forward(input)

	// Expected:
	// y = x @ W.T + b
	// W.T = [[1, 3], [2, 4]]
	// x @ W.T = [1*1+1*2, 1*3+1*4] = [3, 7]
	// y = [3, 7] + [0.5, 1.0] = [3.5, 8.0]
	expected := []float32{3.5, 8.0}
	actual := output.Raw().AsFloat32()

	for i, exp := range expected {
		if !floatEqual(actual[i], exp, 1e-5) {
			t.Errorf("Output[%d] = %f, want %f", i, actual[i], exp)
		}
	}

	expectedShape := tensor.Shape{1, 2}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("Output shape = %v, want %v", output.Shape(), expectedShape)
	}
}

// TestLinear_ForwardBatch tests Linear with batch input.
func TestLinear_ForwardBatch(t *testing.T) {
	backend := cpu.New()

	layer := nn.NewLinear(3, 2, backend)

	input := tensor.Randn[float32](tensor.Shape{4, 3}, backend)

	output := layer.Forward(input)

	expectedShape := tensor.Shape{4, 2}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("Output shape = %v, want %v", output.Shape(), expectedShape)
	}
}

// TestLinear_NoBias tests the bias-free variant.
func TestLinear_NoBias(t *testing.T) {
	backend := cpu.New()

	layer := nn.NewLinearNoBias(3, 2, backend)

	if layer.Bias() != nil {
		t.Error("NewLinearNoBias should not create a bias parameter")
	}
	if len(layer.Parameters()) != 1 {
		t.Errorf("Parameters() length = %d, want 1", len(layer.Parameters()))
	}

	stateDict := layer.StateDict()
	if _, ok := stateDict["bias"]; ok {
		t.Error("bias-free layer should not export a bias entry")
	}

	input := tensor.Randn[float32](tensor.Shape{4, 3}, backend)
	output := layer.Forward(input)
	if !output.Shape().Equal(tensor.Shape{4, 2}) {
		t.Errorf("Output shape = %v, want [4 2]", output.Shape())
	}
}

// TestLinear_LoadStateDict tests state dict round-trip and validation.
func TestLinear_LoadStateDict(t *testing.T) {
	backend := cpu.New()

	src := nn.NewLinear(3, 2, backend)
	dst := nn.NewLinear(3, 2, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	srcWeight := src.Weight().Tensor().Data()
	dstWeight := dst.Weight().Tensor().Data()
	for i := range srcWeight {
		if srcWeight[i] != dstWeight[i] {
			t.Fatalf("weight[%d] = %f, want %f", i, dstWeight[i], srcWeight[i])
		}
	}

	// Shape mismatches must be rejected.
	wrong := nn.NewLinear(4, 2, backend)
	if err := dst.LoadStateDict(wrong.StateDict()); err == nil {
		t.Error("LoadStateDict should reject a weight with the wrong shape")
	}
}

// TestReLU_Forward tests ReLU activation.
func TestReLU_Forward(t *testing.T) {
	backend := cpu.New()

	relu := nn.NewReLU[*cpu.CPUBackend]()

	input, _ := tensor.FromSlice([]float32{-2, -1, 0, 1, 2}, tensor.Shape{5}, backend)

	output := relu.Forward(input)

	expected := []float32{0, 0, 0, 1, 2}
	actual := output.Raw().AsFloat32()

	for i, exp := range expected {
		if actual[i] != exp {
			t.Errorf("ReLU output[%d] = %f, want %f", i, actual[i], exp)
		}
	}

	if len(relu.Parameters()) != 0 {
		t.Error("ReLU should have no parameters")
	}
}

// TestSigmoid_Forward tests Sigmoid activation.
func TestSigmoid_Forward(t *testing.T) {
	backend := cpu.New()

	sigmoid := nn.NewSigmoid[*cpu.CPUBackend]()

	input, _ := tensor.FromSlice([]float32{0, 1, -1}, tensor.Shape{3}, backend)

	output := sigmoid.Forward(input)

	actual := output.Raw().AsFloat32()

	// σ(0) = 0.5, σ(1) ≈ 0.731, σ(-1) ≈ 0.269
	expected := []float32{
		0.5,
		float32(1.0 / (1.0 + math.Exp(-1.0))),
		float32(1.0 / (1.0 + math.Exp(1.0))),
	}

	for i, exp := range expected {
		if !floatEqual(actual[i], exp, 1e-5) {
			t.Errorf("Sigmoid output[%d] = %f, want %f", i, actual[i], exp)
		}
	}

	if len(sigmoid.Parameters()) != 0 {
		t.Error("Sigmoid should have no parameters")
	}
}

// TestSoftplus_Forward tests Softplus activation.
func TestSoftplus_Forward(t *testing.T) {
	backend := cpu.New()

	softplus := nn.NewSoftplus[*cpu.CPUBackend]()

	input, _ := tensor.FromSlice([]float32{0, 1, -1}, tensor.Shape{3}, backend)

	output := softplus.Forward(input)

	actual := output.Raw().AsFloat32()

	// softplus(0) = ln 2, softplus(1) ≈ 1.3133, softplus(-1) ≈ 0.3133
	expected := []float32{
		float32(math.Log(2.0)),
		float32(math.Log(1.0 + math.E)),
		float32(math.Log(1.0 + math.Exp(-1.0))),
	}

	for i, exp := range expected {
		if !floatEqual(actual[i], exp, 1e-4) {
			t.Errorf("Softplus output[%d] = %f, want %f", i, actual[i], exp)
		}
	}

	// Softplus output must be strictly positive.
	for i, v := range actual {
		if v <= 0 {
			t.Errorf("Softplus output[%d] = %f, want > 0", i, v)
		}
	}
}

// TestSoftmax_Forward tests the Softmax module over the last dimension.
func TestSoftmax_Forward(t *testing.T) {
	backend := cpu.New()

	softmax := nn.NewSoftmax[*cpu.CPUBackend](-1)

	input, _ := tensor.FromSlice([]float32{1, 2, 3, 1, 1, 1}, tensor.Shape{2, 3}, backend)

	output := softmax.Forward(input)
	data := output.Raw().AsFloat32()

	// Each row must sum to 1.
	for row := 0; row < 2; row++ {
		var sum float32
		for col := 0; col < 3; col++ {
			sum += data[row*3+col]
		}
		if !floatEqual(sum, 1.0, 1e-5) {
			t.Errorf("row %d sums to %f, want 1", row, sum)
		}
	}

	// Uniform logits give uniform probabilities.
	for col := 0; col < 3; col++ {
		if !floatEqual(data[3+col], 1.0/3.0, 1e-5) {
			t.Errorf("uniform row element %d = %f, want 1/3", col, data[3+col])
		}
	}
}

// TestSequential tests Sequential container.
func TestSequential(t *testing.T) {
	backend := cpu.New()

	// Create a simple network: Linear(3, 2) -> ReLU
	linear := nn.NewLinear(3, 2, backend)
	relu := nn.NewReLU[*cpu.CPUBackend]()

	model := nn.NewSequential[*cpu.CPUBackend](linear, relu)

	if model.Len() != 2 {
		t.Errorf("Sequential.Len() = %d, want 2", model.Len())
	}

	if model.Module(0) != linear {
		t.Error("Module(0) should be the linear layer")
	}
	if model.Module(1) != relu {
		t.Error("Module(1) should be ReLU")
	}

	input := tensor.Randn[float32](tensor.Shape{4, 3}, backend)
	output := model.Forward(input)

	expectedShape := tensor.Shape{4, 2}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("Sequential output shape = %v, want %v", output.Shape(), expectedShape)
	}

	params := model.Parameters()
	if len(params) != 2 {
		t.Errorf("Sequential.Parameters() length = %d, want 2", len(params))
	}
}

// TestSequential_Add tests Sequential.Add method.
func TestSequential_Add(t *testing.T) {
	backend := cpu.New()

	model := nn.NewSequential[*cpu.CPUBackend]()

	if model.Len() != 0 {
		t.Error("Empty Sequential should have length 0")
	}

	model.Add(nn.NewLinear(10, 5, backend))
	model.Add(nn.NewReLU[*cpu.CPUBackend]())
	model.Add(nn.NewLinear(5, 2, backend))

	if model.Len() != 3 {
		t.Errorf("After adding 3 modules, Len() = %d, want 3", model.Len())
	}
}

// TestSequential_StateDict tests index-prefixed state dict keys and
// round-trip loading.
func TestSequential_StateDict(t *testing.T) {
	backend := cpu.New()

	model := nn.NewSequential[*cpu.CPUBackend](
		nn.NewLinear(3, 2, backend),
		nn.NewReLU[*cpu.CPUBackend](),
		nn.NewLinear(2, 1, backend),
	)

	stateDict := model.StateDict()

	wantKeys := []string{"0.weight", "0.bias", "2.weight", "2.bias"}
	for _, key := range wantKeys {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("StateDict missing key %q", key)
		}
	}
	if len(stateDict) != len(wantKeys) {
		t.Errorf("StateDict has %d entries, want %d", len(stateDict), len(wantKeys))
	}

	// Round trip into a fresh model with the same architecture.
	clone := nn.NewSequential[*cpu.CPUBackend](
		nn.NewLinear(3, 2, backend),
		nn.NewReLU[*cpu.CPUBackend](),
		nn.NewLinear(2, 1, backend),
	)
	if err := clone.LoadStateDict(stateDict); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	input := tensor.Randn[float32](tensor.Shape{2, 3}, backend)
	a := model.Forward(input).Data()
	b := clone.Forward(input).Data()
	for i := range a {
		if !floatEqual(a[i], b[i], 1e-6) {
			t.Fatalf("outputs diverge at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

// TestMSELoss tests MSE loss computation.
func TestMSELoss(t *testing.T) {
	backend := cpu.New()

	mse := nn.NewMSELoss(backend)

	predictions, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	targets, _ := tensor.FromSlice([]float32{1, 1, 1}, tensor.Shape{3}, backend)

	loss := mse.Forward(predictions, targets)

	// Expected: mean((1-1)² + (2-1)² + (3-1)²) = 5/3
	expected := float32(5.0 / 3.0)
	actual := loss.Raw().AsFloat32()[0]

	if !floatEqual(actual, expected, 1e-5) {
		t.Errorf("MSE loss = %f, want %f", actual, expected)
	}

	// The caller's predictions must survive the loss computation.
	predData := predictions.Data()
	for i, want := range []float32{1, 2, 3} {
		if predData[i] != want {
			t.Errorf("predictions[%d] = %f after loss, want %f", i, predData[i], want)
		}
	}

	if len(mse.Parameters()) != 0 {
		t.Error("MSE loss should have no parameters")
	}
}

// TestInitialization tests Xavier initialization bounds.
func TestInitialization(t *testing.T) {
	backend := cpu.New()

	w := nn.Xavier(100, 50, tensor.Shape{50, 100}, backend)

	// Expected bound: sqrt(6 / (100 + 50)) ≈ 0.2
	expectedBound := math.Sqrt(6.0 / 150.0)

	data := w.Raw().AsFloat32()

	for i, val := range data {
		if math.Abs(float64(val)) > expectedBound {
			t.Errorf("Xavier init value[%d] = %f exceeds bound %f", i, val, expectedBound)
		}
	}
}

// TestInitialization_He tests the spread of He initialization.
func TestInitialization_He(t *testing.T) {
	backend := cpu.New()

	w := nn.He(100, tensor.Shape{50, 100}, backend)
	data := w.Raw().AsFloat32()

	var sum, sumSq float64
	for _, v := range data {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(len(data))
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	// Expected std: sqrt(2/100) ≈ 0.1414; allow generous sampling slack.
	expectedStd := math.Sqrt(2.0 / 100.0)
	if math.Abs(mean) > 0.02 {
		t.Errorf("He init mean = %f, want ~0", mean)
	}
	if std < expectedStd*0.7 || std > expectedStd*1.3 {
		t.Errorf("He init std = %f, want ~%f", std, expectedStd)
	}
}

// TestInitialization_Normal tests the location of Normal initialization.
func TestInitialization_Normal(t *testing.T) {
	backend := cpu.New()

	w := nn.Normal(2.0, 0.1, tensor.Shape{1000}, backend)
	data := w.Raw().AsFloat32()

	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	mean := sum / float64(len(data))

	if mean < 1.9 || mean > 2.1 {
		t.Errorf("Normal init mean = %f, want ~2.0", mean)
	}
}
