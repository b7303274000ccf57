package formula

import (
	"strings"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
)

// Validate checks a formula definition: a name and expression are present,
// variable names are unique and non-empty, kinds are known, and every
// identifier the expression references is declared.
func Validate(f Formula) error {
	if strings.TrimSpace(f.Name) == "" {
		return calcerr.New(calcerr.KindInvalidInput, "name", "formula name is required")
	}

	declared := make(map[string]struct{}, len(f.Variables))
	for i, v := range f.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return calcerr.Newf(calcerr.KindInvalidInput, "variables", "variable %d has no name", i)
		}
		if _, dup := declared[v.Name]; dup {
			return calcerr.New(calcerr.KindInvalidInput, v.Name, "variable declared more than once")
		}
		if !v.Kind.Valid() {
			return calcerr.Newf(calcerr.KindInvalidInput, v.Name, "unknown kind %q", v.Kind)
		}
		if _, isFunc := library[v.Name]; isFunc {
			return calcerr.New(calcerr.KindInvalidInput, v.Name, "variable name shadows a library function")
		}
		if !isEmpty(v.Default) {
			if _, err := coerce(v.EffectiveKind(), v.Name, v.Default); err != nil {
				return err
			}
		}
		declared[v.Name] = struct{}{}
	}

	identifiers, err := ReferencedIdentifiers(f.Expression)
	if err != nil {
		return err
	}
	for _, name := range identifiers {
		if _, ok := declared[name]; !ok {
			return calcerr.New(calcerr.KindUnboundVariable, name, "referenced by the expression but not declared")
		}
	}
	return nil
}
