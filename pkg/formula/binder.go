package formula

import (
	"math"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/mathutil"
)

// Bind maps caller-supplied values onto declared variables.
//
// Exact, case-sensitive name matches win. Remaining numeric variables are
// filled from unused caller values by inferring loan roles (amount, rate,
// term). A required variable still unbound after that is an error; an
// optional one takes its default, or stays unbound when it has none.
func Bind(declared []Variable, values map[string]interface{}) (Binding, error) {
	binding := newBinding()
	used := make(map[string]bool, len(values))

	for _, v := range declared {
		raw, ok := values[v.Name]
		if !ok || isEmpty(raw) {
			continue
		}
		value, err := coerce(v.EffectiveKind(), v.Name, raw)
		if err != nil {
			return Binding{}, err
		}
		binding.set(v.Name, value, SourceExact)
		used[v.Name] = true
	}

	var unbound []Variable
	for _, v := range declared {
		if _, ok := binding.Values[v.Name]; !ok && v.EffectiveKind() == KindNumeric {
			unbound = append(unbound, v)
		}
	}
	if len(unbound) > 0 {
		for name, c := range assignRoles(unbound, candidates(values, used)) {
			binding.set(name, c.value, SourceHeuristic)
		}
	}

	for _, v := range declared {
		if _, ok := binding.Values[v.Name]; ok {
			continue
		}
		if v.Required {
			return Binding{}, calcerr.New(calcerr.KindMissingRequiredVariable, v.Name, "no value supplied")
		}
		if isEmpty(v.Default) {
			continue
		}
		value, err := coerce(v.EffectiveKind(), v.Name, v.Default)
		if err != nil {
			return Binding{}, err
		}
		binding.set(v.Name, value, SourceDefault)
	}

	return binding, nil
}

// Bind binds values onto the formula's variables in display order.
func (f Formula) Bind(values map[string]interface{}) (Binding, error) {
	return Bind(f.OrderedVariables(), values)
}

// Evaluate binds values and evaluates the formula expression. Binding errors
// are reported before expression errors.
func (f Formula) Evaluate(values map[string]interface{}) (EvaluationResult, error) {
	binding, err := f.Bind(values)
	if err != nil {
		return EvaluationResult{}, err
	}
	program, err := Compile(f.Expression)
	if err != nil {
		return EvaluationResult{}, err
	}
	value, err := program.Eval(binding.Values)
	if err != nil {
		limit, ok := f.evalAtZero(program, binding, err)
		if !ok {
			return EvaluationResult{}, err
		}
		value = limit
	}
	return EvaluationResult{Value: value, Binding: binding}, nil
}

// zeroStep is the offset used to approach a zero-bound variable from both
// sides. The limit is also taken at a tenth of it to tell a removable zero
// from a pole.
const zeroStep = 1e-4

// evalAtZero handles expressions that divide by a variable bound to zero in
// a way that has a finite limit, such as the annuity payment formula at a
// zero rate. The value is the average of the evaluations just above and
// below zero, which for the annuity formula is principal / term. Rate
// variables are tried first.
func (f Formula) evalAtZero(program *Program, binding Binding, cause error) (float64, bool) {
	if calcerr.KindOf(cause) != calcerr.KindInvalidExpression || calcerr.SubjectOf(cause) != "/" {
		return 0, false
	}

	for _, name := range zeroBound(f.OrderedVariables(), binding) {
		coarseAvg, coarseGap, err := straddle(program, binding, name, zeroStep)
		if err != nil {
			continue
		}
		fineAvg, fineGap, err := straddle(program, binding, name, zeroStep/10)
		if err != nil {
			continue
		}
		// Near a pole the two sides drift apart or the average runs off as
		// the step shrinks.
		if fineGap > coarseGap || !mathutil.WithinRelativeTolerance(fineAvg, coarseAvg, 0.01) {
			continue
		}
		return fineAvg, true
	}
	return 0, false
}

// straddle evaluates the program with name set to +step and -step and
// returns the average and the absolute gap of the two results.
func straddle(program *Program, binding Binding, name string, step float64) (float64, float64, error) {
	shifted := make(map[string]interface{}, len(binding.Values))
	for key, value := range binding.Values {
		shifted[key] = value
	}

	shifted[name] = step
	above, err := program.Eval(shifted)
	if err != nil {
		return 0, 0, err
	}
	shifted[name] = -step
	below, err := program.Eval(shifted)
	if err != nil {
		return 0, 0, err
	}
	return (above + below) / 2, math.Abs(above - below), nil
}

// zeroBound lists the numeric variables bound to exactly zero, rate
// variables first, each group in display order.
func zeroBound(vars []Variable, binding Binding) []string {
	var rates, others []string
	for _, v := range vars {
		if value, ok := binding.Values[v.Name].(float64); !ok || value != 0 {
			continue
		}
		if variableRole(v) == RoleRate {
			rates = append(rates, v.Name)
		} else {
			others = append(others, v.Name)
		}
	}
	return append(rates, others...)
}
