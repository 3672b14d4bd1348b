//go:build !windows

package webgpu

import "testing"

func TestNewUnavailable(t *testing.T) {
	b, err := New()
	if err == nil {
		t.Fatal("New() should fail on platforms without WebGPU support")
	}
	if b != nil {
		t.Errorf("New() returned non-nil backend with error: %v", b)
	}
}

func TestIsAvailableFalse(t *testing.T) {
	if IsAvailable() {
		t.Error("IsAvailable() should report false on platforms without WebGPU support")
	}
}
