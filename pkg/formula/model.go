// Package formula holds operator-defined loan formulas: their declared
// variables, the binding of runtime values onto those variables, and a
// sandboxed evaluator for the formula text.
package formula

import (
	"sort"
)

// VariableKind is the declared type of a formula variable.
type VariableKind string

const (
	KindNumeric VariableKind = "numeric"
	KindText    VariableKind = "text"
	KindBoolean VariableKind = "boolean"
)

// Valid reports whether k is a known kind. The empty kind is treated as numeric.
func (k VariableKind) Valid() bool {
	switch k {
	case "", KindNumeric, KindText, KindBoolean:
		return true
	}
	return false
}

// Variable is a declared input of a Formula.
type Variable struct {
	Name        string       `json:"name" yaml:"name"`
	Kind        VariableKind `json:"kind" yaml:"kind"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Default     interface{}  `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool         `json:"required" yaml:"required"`
	Order       int          `json:"order" yaml:"order"`
	Unit        string       `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// EffectiveKind returns the variable kind, defaulting to numeric.
func (v Variable) EffectiveKind() VariableKind {
	if v.Kind == "" {
		return KindNumeric
	}
	return v.Kind
}

// Formula is a named, parameterized expression.
type Formula struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Active      bool       `json:"active" yaml:"active"`
	Expression  string     `json:"expression" yaml:"expression"`
	Variables   []Variable `json:"variables" yaml:"variables"`
}

// OrderedVariables returns the variables sorted by display order, keeping
// declaration order for ties.
func (f Formula) OrderedVariables() []Variable {
	vars := make([]Variable, len(f.Variables))
	copy(vars, f.Variables)
	sort.SliceStable(vars, func(i, j int) bool {
		return vars[i].Order < vars[j].Order
	})
	return vars
}

// Variable looks up a declared variable by name.
func (f Formula) Variable(name string) (Variable, bool) {
	for _, v := range f.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// BindingSource records how a variable received its value.
type BindingSource string

const (
	SourceExact     BindingSource = "exact"
	SourceHeuristic BindingSource = "heuristic"
	SourceDefault   BindingSource = "default"
)

// Binding maps declared variable names to the runtime values used for one
// evaluation. Values are float64, bool or string according to the
// variable kind.
type Binding struct {
	Values  map[string]interface{}   `json:"values"`
	Sources map[string]BindingSource `json:"sources"`
}

func newBinding() Binding {
	return Binding{
		Values:  make(map[string]interface{}),
		Sources: make(map[string]BindingSource),
	}
}

func (b Binding) set(name string, value interface{}, source BindingSource) {
	b.Values[name] = value
	b.Sources[name] = source
}

// EvaluationResult is the scalar output of a formula paired with the binding
// it was computed from.
type EvaluationResult struct {
	Value   float64 `json:"value"`
	Binding Binding `json:"binding"`
}
