package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/conf"
	"github.com/expr-lang/expr/parser"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/mathutil"
)

// Program is a parsed formula expression that passed the syntax whitelist:
// numeric literals, variable identifiers, arithmetic operators, parentheses
// and calls to the financial function library. Nothing else is evaluated.
type Program struct {
	source      string
	root        ast.Node
	identifiers []string
}

// Compile parses and checks an expression without evaluating it.
func Compile(expression string) (program *Program, err error) {
	if strings.TrimSpace(expression) == "" {
		return nil, calcerr.New(calcerr.KindInvalidExpression, "", "expression is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			program = nil
			err = calcerr.Newf(calcerr.KindInvalidExpression, "", "parse aborted: %v", r)
		}
	}()

	tree, err := parser.ParseWithConfig(expression, conf.CreateNew())
	if err != nil {
		return nil, calcerr.New(calcerr.KindInvalidExpression, "", err.Error())
	}

	seen := make(map[string]struct{})
	if err := check(tree.Node, seen); err != nil {
		return nil, err
	}

	identifiers := make([]string, 0, len(seen))
	for name := range seen {
		identifiers = append(identifiers, name)
	}
	sort.Strings(identifiers)

	return &Program{source: expression, root: tree.Node, identifiers: identifiers}, nil
}

// Identifiers returns the sorted variable names the expression references.
// Library function names are not included.
func (p *Program) Identifiers() []string {
	out := make([]string, len(p.identifiers))
	copy(out, p.identifiers)
	return out
}

// Source returns the expression text.
func (p *Program) Source() string {
	return p.source
}

// Eval evaluates the program against a set of variable values. Numbers and
// booleans (as 1 or 0) are accepted; text values cannot take part in
// arithmetic.
func (p *Program) Eval(vars map[string]interface{}) (result float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = 0
			err = calcerr.Newf(calcerr.KindInvalidExpression, "", "evaluation aborted: %v", r)
		}
	}()

	result, err = eval(p.root, vars)
	if err != nil {
		return 0, err
	}
	if !mathutil.IsFinite(result) {
		return 0, calcerr.Newf(calcerr.KindInvalidExpression, p.Source(), "result is not a finite number: %v", result)
	}
	return result, nil
}

// Evaluate parses and evaluates an expression in one step.
func Evaluate(expression string, vars map[string]interface{}) (float64, error) {
	program, err := Compile(expression)
	if err != nil {
		return 0, err
	}
	return program.Eval(vars)
}

// ReferencedIdentifiers returns the variable names an expression uses.
func ReferencedIdentifiers(expression string) ([]string, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Identifiers(), nil
}

var arithmeticOperators = map[string]struct{}{
	"+": {}, "-": {}, "*": {}, "/": {}, "^": {}, "**": {},
}

func nodeName(node ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", node), "*ast.")
}

func unsupported(node ast.Node) error {
	return calcerr.Newf(calcerr.KindInvalidExpression, "", "unsupported syntax: %s", nodeName(node))
}

// check walks the tree rejecting anything outside the whitelist and
// collecting variable identifiers.
func check(node ast.Node, identifiers map[string]struct{}) error {
	switch n := node.(type) {
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode:
		return nil
	case *ast.IdentifierNode:
		identifiers[n.Value] = struct{}{}
		return nil
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			return calcerr.Newf(calcerr.KindInvalidExpression, n.Operator, "operator is not allowed")
		}
		return check(n.Node, identifiers)
	case *ast.BinaryNode:
		if _, ok := arithmeticOperators[n.Operator]; !ok {
			return calcerr.Newf(calcerr.KindInvalidExpression, n.Operator, "operator is not allowed")
		}
		if err := check(n.Left, identifiers); err != nil {
			return err
		}
		return check(n.Right, identifiers)
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return unsupported(node)
		}
		fn, ok := library[callee.Value]
		if !ok {
			return calcerr.Newf(calcerr.KindInvalidExpression, callee.Value, "unknown function")
		}
		if len(n.Arguments) != fn.arity {
			return calcerr.Newf(calcerr.KindInvalidExpression, callee.Value,
				"expects %d arguments, got %d", fn.arity, len(n.Arguments))
		}
		for _, arg := range n.Arguments {
			if err := check(arg, identifiers); err != nil {
				return err
			}
		}
		return nil
	case *ast.BuiltinNode:
		return calcerr.Newf(calcerr.KindInvalidExpression, n.Name, "unknown function")
	}
	return unsupported(node)
}

func eval(node ast.Node, vars map[string]interface{}) (float64, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return float64(n.Value), nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.BoolNode:
		if n.Value {
			return 1, nil
		}
		return 0, nil
	case *ast.IdentifierNode:
		return lookup(n.Value, vars)
	case *ast.UnaryNode:
		v, err := eval(n.Node, vars)
		if err != nil {
			return 0, err
		}
		if n.Operator == "-" {
			return -v, nil
		}
		return v, nil
	case *ast.BinaryNode:
		return evalBinary(n, vars)
	case *ast.CallNode:
		callee := n.Callee.(*ast.IdentifierNode)
		fn := library[callee.Value]
		args := make([]float64, len(n.Arguments))
		for i, arg := range n.Arguments {
			v, err := eval(arg, vars)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return fn.call(args)
	}
	return 0, unsupported(node)
}

func evalBinary(n *ast.BinaryNode, vars map[string]interface{}) (float64, error) {
	left, err := eval(n.Left, vars)
	if err != nil {
		return 0, err
	}
	right, err := eval(n.Right, vars)
	if err != nil {
		return 0, err
	}

	var out float64
	switch n.Operator {
	case "+":
		out = left + right
	case "-":
		out = left - right
	case "*":
		out = left * right
	case "/":
		if right == 0 {
			return 0, calcerr.New(calcerr.KindInvalidExpression, "/", "division by zero")
		}
		out = left / right
	case "^", "**":
		out = math.Pow(left, right)
	default:
		return 0, calcerr.Newf(calcerr.KindInvalidExpression, n.Operator, "operator is not allowed")
	}

	if !mathutil.IsFinite(out) {
		return 0, calcerr.Newf(calcerr.KindInvalidExpression, n.Operator, "result is not a finite number")
	}
	return out, nil
}

func lookup(name string, vars map[string]interface{}) (float64, error) {
	raw, ok := vars[name]
	if !ok || raw == nil {
		return 0, calcerr.New(calcerr.KindUnboundVariable, name, "no value bound")
	}
	if b, ok := raw.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	if _, ok := raw.(string); ok {
		return 0, calcerr.New(calcerr.KindInvalidExpression, name, "text value used in arithmetic")
	}
	n, ok := toNumber(raw)
	if !ok {
		return 0, calcerr.Newf(calcerr.KindInvalidExpression, name, "value %v is not a number", raw)
	}
	return n, nil
}
