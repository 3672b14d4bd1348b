//go:build windows

package webgpu

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// The Backend satisfies tensor.Backend by splitting the operation set in
// two: float32 compute kernels run on the GPU, everything else routes to
// the embedded CPU host. GPU results are always freshly allocated, so the
// in-place aliasing rules of the CPU backend never apply here.

var _ tensor.Backend = (*Backend)(nil)

// gpuBinaryEligible reports whether a binary op can run on the GPU:
// both operands float32 with identical shapes. Broadcasting stays on
// the host where the strided kernels live.
func gpuBinaryEligible(a, other *tensor.RawTensor) bool {
	return a.DType() == tensor.Float32 &&
		other.DType() == tensor.Float32 &&
		a.Shape().Equal(other.Shape())
}

// Add performs element-wise addition.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !gpuBinaryEligible(a, other) {
		return b.host.Add(a, other)
	}
	result, err := b.runBinaryOp(a, other, "add", addShader)
	if err != nil {
		panic("webgpu: Add: " + err.Error())
	}
	return result
}

// Sub performs element-wise subtraction.
func (b *Backend) Sub(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !gpuBinaryEligible(a, other) {
		return b.host.Sub(a, other)
	}
	result, err := b.runBinaryOp(a, other, "sub", subShader)
	if err != nil {
		panic("webgpu: Sub: " + err.Error())
	}
	return result
}

// Mul performs element-wise multiplication.
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !gpuBinaryEligible(a, other) {
		return b.host.Mul(a, other)
	}
	result, err := b.runBinaryOp(a, other, "mul", mulShader)
	if err != nil {
		panic("webgpu: Mul: " + err.Error())
	}
	return result
}

// Div performs element-wise division.
func (b *Backend) Div(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !gpuBinaryEligible(a, other) {
		return b.host.Div(a, other)
	}
	result, err := b.runBinaryOp(a, other, "div", divShader)
	if err != nil {
		panic("webgpu: Div: " + err.Error())
	}
	return result
}

// MatMul performs 2D matrix multiplication.
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || other.DType() != tensor.Float32 ||
		len(a.Shape()) != 2 || len(other.Shape()) != 2 {
		return b.host.MatMul(a, other)
	}
	result, err := b.runMatMul(a, other)
	if err != nil {
		panic("webgpu: MatMul: " + err.Error())
	}
	return result
}

// AddScalar adds a scalar to every element.
func (b *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s, ok := scalar.(float32)
	if !ok || x.DType() != tensor.Float32 {
		return b.host.AddScalar(x, scalar)
	}
	result, err := b.runScalarOp(x, s, "scalar_add", scalarAddShader)
	if err != nil {
		panic("webgpu: AddScalar: " + err.Error())
	}
	return result
}

// SubScalar subtracts a scalar from every element.
func (b *Backend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s, ok := scalar.(float32)
	if !ok || x.DType() != tensor.Float32 {
		return b.host.SubScalar(x, scalar)
	}
	result, err := b.runScalarOp(x, s, "scalar_sub", scalarSubShader)
	if err != nil {
		panic("webgpu: SubScalar: " + err.Error())
	}
	return result
}

// MulScalar multiplies every element by a scalar.
func (b *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s, ok := scalar.(float32)
	if !ok || x.DType() != tensor.Float32 {
		return b.host.MulScalar(x, scalar)
	}
	result, err := b.runScalarOp(x, s, "scalar_mul", scalarMulShader)
	if err != nil {
		panic("webgpu: MulScalar: " + err.Error())
	}
	return result
}

// DivScalar divides every element by a scalar.
func (b *Backend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s, ok := scalar.(float32)
	if !ok || x.DType() != tensor.Float32 {
		return b.host.DivScalar(x, scalar)
	}
	result, err := b.runScalarOp(x, s, "scalar_div", scalarDivShader)
	if err != nil {
		panic("webgpu: DivScalar: " + err.Error())
	}
	return result
}

// Exp computes the element-wise exponential.
func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.host.Exp(x)
	}
	result, err := b.runUnaryOp(x, "exp", expShader)
	if err != nil {
		panic("webgpu: Exp: " + err.Error())
	}
	return result
}

// Log computes the element-wise natural logarithm. Unlike the CPU
// backend it does not validate positivity; non-positive inputs yield
// -inf or NaN per IEEE semantics.
func (b *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.host.Log(x)
	}
	result, err := b.runUnaryOp(x, "log", logShader)
	if err != nil {
		panic("webgpu: Log: " + err.Error())
	}
	return result
}

// Sqrt computes the element-wise square root.
func (b *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.host.Sqrt(x)
	}
	result, err := b.runUnaryOp(x, "sqrt", sqrtShader)
	if err != nil {
		panic("webgpu: Sqrt: " + err.Error())
	}
	return result
}

// ReLU computes max(0, x) element-wise.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.host.ReLU(x)
	}
	result, err := b.runUnaryOp(x, "relu", reluShader)
	if err != nil {
		panic("webgpu: ReLU: " + err.Error())
	}
	return result
}

// Sigmoid computes 1/(1+exp(-x)) element-wise.
func (b *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.host.Sigmoid(x)
	}
	result, err := b.runUnaryOp(x, "sigmoid", sigmoidShader)
	if err != nil {
		panic("webgpu: Sigmoid: " + err.Error())
	}
	return result
}

// Softplus computes log(1+exp(x)) element-wise.
func (b *Backend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.host.Softplus(x)
	}
	result, err := b.runUnaryOp(x, "softplus", softplusShader)
	if err != nil {
		panic("webgpu: Softplus: " + err.Error())
	}
	return result
}

// Softmax computes softmax along the given dimension. The GPU kernel
// handles the common [batch, classes] row-wise case; other ranks and
// dimensions fall back to the host.
func (b *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	ndim := len(x.Shape())
	if dim < 0 {
		dim += ndim
	}
	if x.DType() != tensor.Float32 || ndim != 2 || dim != 1 {
		return b.host.Softmax(x, dim)
	}
	result, err := b.runSoftmax(x)
	if err != nil {
		panic("webgpu: Softmax: " + err.Error())
	}
	return result
}

// Sum computes the total sum. Reductions stay on the host.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return b.host.Sum(x)
}

// SumDim sums along a dimension on the host.
func (b *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.host.SumDim(x, dim, keepDim)
}

// MeanDim averages along a dimension on the host.
func (b *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.host.MeanDim(x, dim, keepDim)
}

// Reshape changes the logical shape without touching data.
func (b *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return b.host.Reshape(t, newShape)
}

// Transpose permutes axes on the host.
func (b *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return b.host.Transpose(t, axes...)
}

// Expand broadcasts to a larger shape on the host.
func (b *Backend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return b.host.Expand(x, shape)
}

// Cat concatenates tensors along a dimension on the host.
func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.host.Cat(tensors, dim)
}

// OneHot encodes an index vector as a one-hot matrix on the host.
func (b *Backend) OneHot(indices *tensor.RawTensor, numClasses int) *tensor.RawTensor {
	return b.host.OneHot(indices, numClasses)
}

// Cast converts between data types on the host.
func (b *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return b.host.Cast(x, dtype)
}
