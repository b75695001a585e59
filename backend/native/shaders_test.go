//go:build !nogpu

package native

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

// TestScatterShaderContainsExpectedContent verifies the embedded source.
func TestScatterShaderContainsExpectedContent(t *testing.T) {
	src := ScatterShaderSource()
	if len(src) < 100 {
		t.Fatalf("scatter shader source suspiciously short: %d bytes", len(src))
	}
	for _, req := range []string{
		"@vertex",
		"@fragment",
		"vs_main",
		"fs_main",
		"@location(0) position: vec2<f32>",
		"@location(1) value: vec4<f32>",
	} {
		if !strings.Contains(src, req) {
			t.Errorf("scatter shader missing %q", req)
		}
	}
}

// TestScatterShaderCompiles compiles the scatter shader to SPIR-V.
func TestScatterShaderCompiles(t *testing.T) {
	spirvBytes, err := naga.Compile(ScatterShaderSource())
	if err != nil {
		if strings.Contains(err.Error(), "not yet implemented") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("naga.Compile() error = %v", err)
	}
	if len(spirvBytes) == 0 || len(spirvBytes)%4 != 0 {
		t.Fatalf("SPIR-V length = %d, want non-zero multiple of 4", len(spirvBytes))
	}

	words, err := CompileShaderToSPIRV(ScatterShaderSource())
	if err != nil {
		t.Fatalf("CompileShaderToSPIRV() error = %v", err)
	}
	// SPIR-V magic number.
	if words[0] != 0x07230203 {
		t.Errorf("first word = %#x, want SPIR-V magic 0x07230203", words[0])
	}
}

func TestCompileShaderToSPIRVInvalid(t *testing.T) {
	if _, err := CompileShaderToSPIRV("fn broken( {"); err == nil {
		t.Error("CompileShaderToSPIRV(invalid) expected error")
	}
}

func TestScatterVertexLayout(t *testing.T) {
	layout := scatterVertexLayout()
	if len(layout) != 2 {
		t.Fatalf("len(layout) = %d, want 2", len(layout))
	}
	if layout[0].ArrayStride != 4 {
		t.Errorf("position stride = %d, want 4", layout[0].ArrayStride)
	}
	if layout[1].ArrayStride != 16 {
		t.Errorf("value stride = %d, want 16", layout[1].ArrayStride)
	}
	if layout[1].Attributes[0].ShaderLocation != 1 {
		t.Errorf("value location = %d, want 1", layout[1].Attributes[0].ShaderLocation)
	}
}
