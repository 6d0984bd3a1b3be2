package shaders

import (
	"fmt"
	"regexp"

	"github.com/gogpu/naga"
)

// Validate compiles src with naga and reports the first error. The SPIR-V
// output is discarded; backends compile WGSL themselves.
func Validate(src string) error {
	if _, err := naga.Compile(src); err != nil {
		return fmt.Errorf("shaders: %w", err)
	}
	return nil
}

// RequireEntryPoints checks that every named function is declared in src.
func RequireEntryPoints(src string, names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		re := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`)
		if !re.MatchString(src) {
			return fmt.Errorf("shaders: entry point %q not found", name)
		}
	}
	return nil
}
