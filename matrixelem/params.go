/*package matrixelem evaluates squared matrix elements. Elements are read
from a text database of records of the form

	M[a,b,c,d] -> expression

where a,b,c,d are particle indices and the expression is a function of the
Lorentz invariants s, t, u and of named model parameters. Expressions are
compiled once with govaluate; every free symbol other than s, t, u must be a
previously defined parameter, and a mismatch is a setup error.
*/
package matrixelem

import (
	"fmt"
	"sort"
)

// ErrDuplicateParameter is returned when defining a parameter name twice.
var ErrDuplicateParameter = fmt.Errorf("matrixelem: parameter already defined")

// ErrUnknownParameter is returned when setting a parameter that was never
// defined.
var ErrUnknownParameter = fmt.Errorf("matrixelem: unknown parameter")

// Parameters is the model-parameter table shared by reference between the
// manager and every matrix element. Mutating it propagates to all elements
// on their next parameter sync; it must not be mutated while an integration
// pass is in flight.
type Parameters struct {
	vals map[string]float64
}

// NewParameters creates an empty parameter table.
func NewParameters() *Parameters {
	return &Parameters{vals: make(map[string]float64)}
}

// Define registers a new parameter with an initial value.
func (p *Parameters) Define(name string, value float64) error {
	if _, ok := p.vals[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateParameter, name)
	}
	p.vals[name] = value
	return nil
}

// Set assigns a value to a previously defined parameter.
func (p *Parameters) Set(name string, value float64) error {
	if _, ok := p.vals[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	p.vals[name] = value
	return nil
}

// Has reports whether name is defined.
func (p *Parameters) Has(name string) bool {
	_, ok := p.vals[name]
	return ok
}

// Get returns the value of name, or false if it is not defined.
func (p *Parameters) Get(name string) (float64, bool) {
	v, ok := p.vals[name]
	return v, ok
}

// Len returns the number of defined parameters.
func (p *Parameters) Len() int { return len(p.vals) }

// Names returns the parameter names in sorted order.
func (p *Parameters) Names() []string {
	names := make([]string, 0, len(p.vals))
	for name := range p.vals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the current values into a fresh map, for result metadata.
func (p *Parameters) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(p.vals))
	for name, v := range p.vals {
		out[name] = v
	}
	return out
}
