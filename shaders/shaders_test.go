package shaders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandIncludesOnce(t *testing.T) {
	chunks := Chunks{
		"a": "const A: f32 = 1.0;",
		"b": "#include <a>\nconst B: f32 = A;",
	}
	out, err := chunks.Expand("#include <a>\n#include <b>\nfn main() {}")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "const A"))
	assert.Contains(t, out, "const B: f32 = A;")
	assert.NotContains(t, out, "#include")
}

func TestExpandUnknownInclude(t *testing.T) {
	_, err := Chunks{}.Expand("#include <missing>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestExpandCycle(t *testing.T) {
	chunks := Chunks{
		"a": "#include <b>",
		"b": "#include <a>",
	}
	_, err := chunks.Expand("#include <a>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuiltinProgramsExpand(t *testing.T) {
	for name, src := range map[string]string{
		"basic":     Basic(),
		"textured":  Textured(),
		"instanced": Instanced(),
		"text":      Text(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotContains(t, src, "#include")
			assert.Contains(t, src, "struct Camera")
			assert.Contains(t, src, "@group(1) @binding(0) var<uniform> object")
			require.NoError(t, RequireEntryPoints(src, VertexEntry, FragmentEntry))
		})
	}
	require.NoError(t, RequireEntryPoints(WaveWGSL, ComputeEntry))
}

func TestRequireEntryPoints(t *testing.T) {
	src := "@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }"
	assert.NoError(t, RequireEntryPoints(src, "vs_main"))
	assert.Error(t, RequireEntryPoints(src, "fs_main"))
	assert.Error(t, RequireEntryPoints(src, "vs"))
}

func TestValidateRejectsGarbage(t *testing.T) {
	assert.Error(t, Validate("this is not wgsl {"))
}

func TestChunkNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"camera", "lighting", "object"}, DefaultChunks().Names())
}
