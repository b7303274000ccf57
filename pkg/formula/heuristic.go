package formula

import (
	"sort"
	"strings"
	"unicode"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/mathutil"
)

// Role is the loan parameter a numeric value is believed to represent.
type Role string

const (
	RoleNone   Role = ""
	RoleAmount Role = "amount"
	RoleRate   Role = "rate"
	RoleTerm   Role = "term"
)

// roleOrder is the order in which roles are filled.
var roleOrder = []Role{RoleAmount, RoleRate, RoleTerm}

var roleWords = map[string]Role{
	"amount": RoleAmount, "monto": RoleAmount, "principal": RoleAmount,
	"capital": RoleAmount, "importe": RoleAmount,

	"rate": RoleRate, "tasa": RoleRate, "interest": RoleRate,
	"interes": RoleRate, "interés": RoleRate,

	"term": RoleTerm, "plazo": RoleTerm, "month": RoleTerm, "months": RoleTerm,
	"mes": RoleTerm, "meses": RoleTerm, "periodo": RoleTerm, "periodos": RoleTerm,
	"period": RoleTerm, "periods": RoleTerm, "cuotas": RoleTerm,
}

// weakWords name a role only when nothing stronger appears, so that
// "loanRate" reads as a rate.
var weakWords = map[string]Role{
	"loan": RoleAmount, "prestamo": RoleAmount, "préstamo": RoleAmount,
}

// words splits an identifier or phrase into lower-case words on case
// changes, digits and punctuation.
func words(s string) []string {
	var out []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return out
}

// roleFromText returns the role named by the words of s. Text that names
// no role, or more than one, yields RoleNone.
func roleFromText(s string) Role {
	found, weak := RoleNone, RoleNone
	for _, w := range words(s) {
		if role, ok := weakWords[w]; ok {
			weak = role
			continue
		}
		role, ok := roleWords[w]
		if !ok {
			continue
		}
		if found != RoleNone && found != role {
			return RoleNone
		}
		found = role
	}
	if found == RoleNone {
		return weak
	}
	return found
}

func roleFromUnit(unit string) Role {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch {
	case u == "":
		return RoleNone
	case strings.Contains(u, "%"), strings.Contains(u, "percent"), strings.Contains(u, "porcentaje"):
		return RoleRate
	case strings.HasPrefix(u, "month"), strings.HasPrefix(u, "mes"), strings.HasPrefix(u, "period"):
		return RoleTerm
	case strings.ContainsAny(u, "$€£"), len(u) == 3 && strings.ToUpper(u) == strings.TrimSpace(unit):
		// currency symbols and ISO 4217 codes such as USD or MXN
		return RoleAmount
	case u == "currency", u == "moneda":
		return RoleAmount
	}
	return RoleNone
}

// magnitudeRoles lists the roles a value's magnitude allows.
func magnitudeRoles(v float64) []Role {
	var roles []Role
	if v >= constants.AmountThreshold {
		roles = append(roles, RoleAmount)
	}
	if v > 0 && v <= constants.MaxRatePercent {
		roles = append(roles, RoleRate)
	}
	if mathutil.IsWholeNumber(v) && v >= constants.MinTermMonths && v <= constants.MaxTermMonths {
		roles = append(roles, RoleTerm)
	}
	return roles
}

// variableRole infers the role of a declared variable from, in order, its
// name, unit, description and default value magnitude.
func variableRole(v Variable) Role {
	if v.EffectiveKind() != KindNumeric {
		return RoleNone
	}
	if role := roleFromText(v.Name); role != RoleNone {
		return role
	}
	if role := roleFromUnit(v.Unit); role != RoleNone {
		return role
	}
	if role := roleFromText(v.Description); role != RoleNone {
		return role
	}
	if n, ok := toNumber(v.Default); ok {
		if roles := magnitudeRoles(n); len(roles) == 1 {
			return roles[0]
		}
	}
	return RoleNone
}

type candidate struct {
	key   string
	value float64
	hint  Role
	roles []Role
}

func (c candidate) allows(role Role) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

// newCandidate qualifies a caller value for the roles its magnitude
// permits. A key that names a role restricts the candidate to that role,
// and a rate key also accepts 0.
func newCandidate(key string, raw interface{}) (candidate, bool) {
	if isEmpty(raw) {
		return candidate{}, false
	}
	value, ok := toNumber(raw)
	if !ok {
		return candidate{}, false
	}

	c := candidate{key: key, value: value, hint: roleFromText(key), roles: magnitudeRoles(value)}
	if c.hint != RoleNone {
		// A key that names the rate may carry a zero rate.
		zeroRate := c.hint == RoleRate && value == 0
		if !c.allows(c.hint) && !zeroRate {
			return candidate{}, false
		}
		c.roles = []Role{c.hint}
	}
	return c, len(c.roles) > 0
}

// candidates builds the sorted candidate list from values, skipping keys in
// exclude.
func candidates(values map[string]interface{}, exclude map[string]bool) []candidate {
	keys := make([]string, 0, len(values))
	for key := range values {
		if !exclude[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]candidate, 0, len(keys))
	for _, key := range keys {
		if c, ok := newCandidate(key, values[key]); ok {
			out = append(out, c)
		}
	}
	return out
}

// better reports whether a should be chosen over b for role.
func better(a, b candidate, role Role) bool {
	aHint, bHint := a.hint == role, b.hint == role
	if aHint != bHint {
		return aHint
	}
	if len(a.roles) != len(b.roles) {
		return len(a.roles) < len(b.roles)
	}
	if role == RoleAmount && a.value != b.value {
		return a.value > b.value
	}
	return a.key < b.key
}

// pick removes and returns the best candidate for role.
func pick(pool []candidate, role Role) (candidate, []candidate, bool) {
	best := -1
	for i, c := range pool {
		if !c.allows(role) {
			continue
		}
		if best < 0 || better(c, pool[best], role) {
			best = i
		}
	}
	if best < 0 {
		return candidate{}, pool, false
	}

	chosen := pool[best]
	rest := make([]candidate, 0, len(pool)-1)
	rest = append(rest, pool[:best]...)
	rest = append(rest, pool[best+1:]...)
	return chosen, rest, true
}

// assignRoles matches unbound variables to caller candidates role by role.
// Each candidate is used at most once.
func assignRoles(vars []Variable, pool []candidate) map[string]candidate {
	assigned := make(map[string]candidate)
	for _, role := range roleOrder {
		for _, v := range vars {
			if variableRole(v) != role {
				continue
			}
			c, rest, ok := pick(pool, role)
			if !ok {
				break
			}
			assigned[v.Name] = c
			pool = rest
		}
	}
	return assigned
}

// LoanTerms are the loan parameters recovered from loosely named values.
type LoanTerms struct {
	Principal         float64         `json:"principal"`
	AnnualRatePercent float64         `json:"rate"`
	TermMonths        int             `json:"term"`
	Keys              map[Role]string `json:"keys"`
}

// GuessLoanTerms picks an amount, a rate and a term out of arbitrary named
// values using the same role heuristic as Bind. Three distinct values must
// qualify.
func GuessLoanTerms(values map[string]interface{}) (LoanTerms, error) {
	pool := candidates(values, nil)
	terms := LoanTerms{Keys: make(map[Role]string, len(roleOrder))}

	var missing []string
	for _, role := range roleOrder {
		c, rest, ok := pick(pool, role)
		if !ok {
			missing = append(missing, string(role))
			continue
		}
		pool = rest
		terms.Keys[role] = c.key
		switch role {
		case RoleAmount:
			terms.Principal = c.value
		case RoleRate:
			terms.AnnualRatePercent = c.value
		case RoleTerm:
			terms.TermMonths = int(c.value)
		}
	}

	if len(missing) > 0 {
		return LoanTerms{}, calcerr.Newf(calcerr.KindInsufficientNumericInputs, strings.Join(missing, ","),
			"found %d of 3 loan values", len(roleOrder)-len(missing))
	}
	return terms, nil
}
