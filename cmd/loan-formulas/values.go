package main

import (
	"fmt"
	"strings"
)

// parseValues reads "name=value,name=value" into a value map. Values stay
// strings; the binder coerces them to each variable's declared kind.
func parseValues(raw string) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	if strings.TrimSpace(raw) == "" {
		return values, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid value %q, expected name=value", pair)
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("value %q given more than once", name)
		}
		values[name] = strings.TrimSpace(value)
	}
	return values, nil
}
