package actions

import (
	"fmt"
	"strings"

	"scriptorium/internal/query"
	"scriptorium/internal/services"
)

// ParameterDescriber is implemented by executors that accept a fixed set of
// parameter keys.
type ParameterDescriber interface {
	Parameters() []string
}

// AcceptedParameters returns the keys executor declares, or nil when it does
// not describe its parameters.
func AcceptedParameters(executor Executor) []string {
	describer, ok := executor.(ParameterDescriber)
	if !ok {
		return nil
	}
	return describer.Parameters()
}

// ParseParameters converts a query-syntax parameter string such as
//
//	require:title,creator message:"Ready for review"
//
// into a parameter map for executor. Keys the executor does not declare and
// stray free-text tokens are validation errors. Executors that do not
// implement ParameterDescriber accept any key. When a key repeats the last
// value wins.
func ParseParameters(executor Executor, raw string) (map[string]string, error) {
	params := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}

	present := query.Keys(raw)
	accepted := AcceptedParameters(executor)
	if _, describes := executor.(ParameterDescriber); describes {
		allowed := make(map[string]struct{}, len(accepted))
		for _, key := range accepted {
			allowed[key] = struct{}{}
		}
		var unknown []string
		for _, key := range present {
			if _, ok := allowed[key]; !ok {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			return nil, services.Wrap(services.ErrValidation, "actions", "parse parameters",
				fmt.Sprintf("unknown parameter %s (accepted: %s)", strings.Join(unknown, ", "), describeKeys(accepted)), nil)
		}
	} else {
		accepted = present
	}

	tokens := query.Parse(raw, accepted...)
	if free := query.FreeText(tokens); len(free) > 0 {
		return nil, services.Wrap(services.ErrValidation, "actions", "parse parameters",
			fmt.Sprintf("parameters must be key:value pairs, got %q", strings.Join(free, " ")), nil)
	}
	for key, value := range query.Fields(tokens) {
		params[key] = value
	}
	return params, nil
}

func describeKeys(keys []string) string {
	if len(keys) == 0 {
		return "none"
	}
	return strings.Join(keys, ", ")
}
