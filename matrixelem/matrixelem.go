package matrixelem

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// ErrUndefinedSymbol is returned when an expression references a symbol
// that is neither s, t, u nor a defined model parameter.
var ErrUndefinedSymbol = fmt.Errorf("matrixelem: undefined symbol")

// ErrBadExpression is returned when an expression does not compile.
var ErrBadExpression = fmt.Errorf("matrixelem: malformed expression")

// MatrixElement is a compiled squared scattering amplitude |M|^2(s,t,u).
// The compiled expression is immutable and shared between copies; the
// argument buffer is private to each copy so that concurrent workers can
// evaluate without contention.
type MatrixElement struct {
	src    string
	expr   *govaluate.EvaluableExpression
	params *Parameters
	args   map[string]interface{}
}

// Compile parses src against the given parameter table. Symbols other than
// s, t, u must be defined in params.
func Compile(src string, params *Parameters) (*MatrixElement, error) {
	// The database uses ^ for powers; govaluate spells it **.
	normalized := strings.ReplaceAll(src, "^", "**")

	expr, err := govaluate.NewEvaluableExpression(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadExpression, src, err)
	}

	m := &MatrixElement{
		src:    src,
		expr:   expr,
		params: params,
		args:   make(map[string]interface{}, params.Len()+3),
	}

	for _, sym := range expr.Vars() {
		switch sym {
		case "s", "t", "u":
			continue
		}
		if !params.Has(sym) {
			return nil, fmt.Errorf("%w: %q in %q", ErrUndefinedSymbol, sym, src)
		}
	}

	m.SyncParameters()
	return m, nil
}

// Source returns the original expression text.
func (m *MatrixElement) Source() string { return m.src }

// SyncParameters refreshes the private argument buffer from the shared
// parameter table. Call it after parameter mutations, before the next
// integration pass.
func (m *MatrixElement) SyncParameters() {
	for _, name := range m.params.Names() {
		v, _ := m.params.Get(name)
		m.args[name] = v
	}
}

// Evaluate computes |M|^2 at the given invariants with the currently synced
// parameter values.
func (m *MatrixElement) Evaluate(s, t, u float64) (float64, error) {
	m.args["s"] = s
	m.args["t"] = t
	m.args["u"] = u

	v, err := m.expr.Evaluate(m.args)
	if err != nil {
		return 0, fmt.Errorf("matrixelem: evaluating %q: %w", m.src, err)
	}
	out, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("matrixelem: %q is not numeric", m.src)
	}
	return out, nil
}

// Clone returns a copy with a private argument buffer, sharing the compiled
// expression and the parameter table.
func (m *MatrixElement) Clone() *MatrixElement {
	args := make(map[string]interface{}, len(m.args))
	for k, v := range m.args {
		args[k] = v
	}
	return &MatrixElement{src: m.src, expr: m.expr, params: m.params, args: args}
}
