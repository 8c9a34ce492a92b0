package main

import (
	"testing"

	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/stretchr/testify/require"
)

func Test_ParseVars(t *testing.T) {
	vs, err := parseVars([]string{"amount=250", "rate=1.5", "approved=true", "note=a=b", "empty="})
	require.NoError(t, err)

	require.Equal(t, core.Variables{
		"amount":   core.IntValue(250),
		"rate":     core.FloatValue(1.5),
		"approved": core.BoolValue(true),
		"note":     core.StringValue("a=b"),
		"empty":    core.StringValue(""),
	}, vs)
}

func Test_ParseVars_None(t *testing.T) {
	vs, err := parseVars(nil)
	require.NoError(t, err)
	require.Nil(t, vs)
}

func Test_ParseVars_Invalid(t *testing.T) {
	_, err := parseVars([]string{"novalue"})
	require.Error(t, err)

	_, err = parseVars([]string{"=x"})
	require.Error(t, err)
}
