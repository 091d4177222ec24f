package scripting

import (
	"context"

	"github.com/dop251/goja"
)

// gojaInspector validates scripts with the goja compiler. Compilation
// builds the AST and bytecode without running anything.
type gojaInspector struct{}

func NewInspector() Inspector { return gojaInspector{} }

func (gojaInspector) Inspect(ctx context.Context, source []byte) (Inspection, error) {
	if err := ctx.Err(); err != nil {
		return Inspection{}, err
	}
	src := string(source)
	insp := Inspection{Findings: matchPatterns(src)}
	if _, err := goja.Compile("embedded.js", src, false); err != nil {
		insp.CompileError = err.Error()
	} else {
		insp.Compiles = true
	}
	return insp, nil
}
