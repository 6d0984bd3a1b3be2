// Package shaders assembles the renderer's WGSL programs. Sources may pull
// in shared chunks with `#include <name>` lines, which Expand resolves
// against a Chunks registry.
package shaders

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

//go:embed camera.wgsl
var CameraWGSL string

//go:embed object.wgsl
var ObjectWGSL string

//go:embed lighting.wgsl
var LightingWGSL string

//go:embed basic.wgsl
var basicWGSL string

//go:embed textured.wgsl
var texturedWGSL string

//go:embed instanced.wgsl
var instancedWGSL string

//go:embed text.wgsl
var textWGSL string

//go:embed wave.wgsl
var WaveWGSL string

// Entry points shared by the built-in programs.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
	ComputeEntry  = "cs_main"
)

var includeRe = regexp.MustCompile(`(?m)^[ \t]*#include[ \t]+<([A-Za-z0-9_./-]+)>[ \t]*$`)

// Chunks maps include names to WGSL snippets.
type Chunks map[string]string

// DefaultChunks holds the camera, object and lighting snippets the built-in
// programs include.
func DefaultChunks() Chunks {
	return Chunks{
		"camera":   CameraWGSL,
		"object":   ObjectWGSL,
		"lighting": LightingWGSL,
	}
}

func (c Chunks) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expand replaces every include line with its chunk, recursively. Each
// chunk is emitted at most once per program.
func (c Chunks) Expand(src string) (string, error) {
	seen := map[string]bool{}
	return c.expand(src, seen, nil)
}

func (c Chunks) expand(src string, seen map[string]bool, stack []string) (string, error) {
	var firstErr error
	out := includeRe.ReplaceAllStringFunc(src, func(line string) string {
		if firstErr != nil {
			return ""
		}
		name := includeRe.FindStringSubmatch(line)[1]
		for _, s := range stack {
			if s == name {
				firstErr = fmt.Errorf("shaders: include cycle %s -> %s", strings.Join(stack, " -> "), name)
				return ""
			}
		}
		if seen[name] {
			return ""
		}
		chunk, ok := c[name]
		if !ok {
			firstErr = fmt.Errorf("shaders: unknown include <%s>", name)
			return ""
		}
		seen[name] = true
		body, err := c.expand(chunk, seen, append(stack, name))
		if err != nil {
			firstErr = err
			return ""
		}
		return strings.TrimRight(body, "\n")
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func mustExpand(src string) string {
	out, err := DefaultChunks().Expand(src)
	if err != nil {
		panic(err)
	}
	return out
}

// Basic is the flat-colored lit program: position and normal attributes, a
// vec4 color uniform at group 2.
func Basic() string { return mustExpand(basicWGSL) }

// Textured adds a uv attribute, an albedo texture at binding 1 and its
// sampler at binding 2.
func Textured() string { return mustExpand(texturedWGSL) }

// Instanced reads a vec4 instance attribute (xyz offset, w scale) after
// the position, normal and uv vertex attributes.
func Instanced() string { return mustExpand(instancedWGSL) }

// Text samples coverage from the red channel of a glyph atlas.
func Text() string { return mustExpand(textWGSL) }
