package model

import (
	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/backend/webgpu"
	"github.com/arches-ml/arches/internal/tensor"
)

// Device request strings accepted by SelectBackend.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceGPU  = "gpu"
)

// SelectBackend returns the compute backend for a device request.
// "gpu" and "auto" use the WebGPU backend when the platform provides
// one; "cpu" and anything unrecognized use the CPU backend.
//
// A GPU request on a machine without a usable adapter degrades to CPU
// without error. Callers that care which device they got can check
// the returned backend's Device.
func SelectBackend(device string) tensor.Backend {
	if device == DeviceGPU || device == DeviceAuto {
		if webgpu.IsAvailable() {
			if b, err := webgpu.New(); err == nil {
				return b
			}
		}
	}
	return cpu.New()
}
