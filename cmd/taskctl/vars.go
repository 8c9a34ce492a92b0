package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cschleiden/go-workflow-tasks/core"
)

// parseVars parses key=value pairs. Values are typed as int, float or bool when they parse as
// such and as strings otherwise. It returns nil when no pairs are given.
func parseVars(pairs []string) (core.Variables, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	vs := make(core.Variables, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", p)
		}

		vs[k] = parseValue(v)
	}

	return vs, nil
}

func parseValue(s string) core.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return core.IntValue(i)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return core.FloatValue(f)
	}

	switch s {
	case "true":
		return core.BoolValue(true)
	case "false":
		return core.BoolValue(false)
	}

	return core.StringValue(s)
}
