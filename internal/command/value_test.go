package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{name: "zero", v: Value{}, want: ""},
		{name: "text", v: Text("main.c"), want: "main.c"},
		{name: "true", v: Bool(true), want: "true"},
		{name: "false", v: Bool(false), want: "false"},
		{name: "int", v: Int(42), want: "42"},
		{name: "negative fraction", v: Number(-0.25), want: "-0.25"},
		{name: "whole float", v: Number(3), want: "3"},
		{name: "large", v: Number(1e21), want: "1000000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(nil)
	require.NoError(t, err)
	require.Equal(t, KindText, v.Kind())
	require.Equal(t, "", v.String())

	v, err = FromAny(float64(7))
	require.NoError(t, err)
	require.Equal(t, KindNumber, v.Kind())
	require.Equal(t, "7", v.String())

	v, err = FromAny(int32(-3))
	require.NoError(t, err)
	require.Equal(t, "-3", v.String())

	v, err = FromAny(true)
	require.NoError(t, err)
	require.Equal(t, KindBool, v.Kind())

	_, err = FromAny([]string{"nope"})
	require.Error(t, err)
}

func TestFromMap(t *testing.T) {
	vars, err := FromMap(map[string]interface{}{"file": "a.c", "n": float64(2), "debug": false})
	require.NoError(t, err)
	require.Equal(t, "gcc a.c -O2 -DDEBUG=false", Resolve("gcc {file} -O{n} -DDEBUG={debug}", vars))

	_, err = FromMap(map[string]interface{}{"bad": map[string]interface{}{}})
	require.ErrorContains(t, err, `variable "bad"`)
}
