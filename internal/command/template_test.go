package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTemplate_ThreeTextVariables(t *testing.T) {
	got := New("{var1} {var2} {var3}").
		Set("var1", Text("Testing")).
		Set("var2", Text("the")).
		Set("var3", Text("variables")).
		Build()
	require.Equal(t, "Testing the variables", got)
}

func TestTemplate_MixedKinds(t *testing.T) {
	tpl := New("{string} {boolean} {number}").
		Set("string", Text("string")).
		Set("boolean", Bool(true)).
		Set("number", Int(42))
	require.Equal(t, "string true 42", tpl.Build())
}

func TestTemplate_AdjacentPlaceholders(t *testing.T) {
	tpl := New("{string}{boolean}{number}").
		Set("string", Text("string")).
		Set("boolean", Bool(true)).
		Set("number", Int(42))
	require.Equal(t, "stringtrue42", tpl.Build())
}

func TestTemplate_MalformedPlaceholders(t *testing.T) {
	vars := map[string]Value{
		"string":  Text("string"),
		"boolean": Bool(true),
		"number":  Int(42),
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "stray closing brace", in: "{strin}g} {boolean} {number}", want: "{strin}g} true 42"},
		{name: "doubled braces", in: "{{string}} {{boolean} number}", want: "{string} {true number}"},
		{name: "unterminated", in: "run {string", want: "run {string"},
		{name: "empty placeholder", in: "test without passed variables {}", want: "test without passed variables {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Resolve(tt.in, vars))
		})
	}
}

func TestTemplate_ZeroValueResolvesEmpty(t *testing.T) {
	got := New("{undefinedVariable}").Set("undefinedVariable", Value{}).Build()
	require.Equal(t, "", got)
}

func TestTemplate_SetMapThenSet(t *testing.T) {
	got := New("{var1} {var2} {var3} {var4}").
		SetMap(map[string]Value{"var1": Text("var1"), "var2": Text("var2")}).
		Set("var3", Text("var3")).
		Set("var4", Text("var4")).
		Build()
	require.Equal(t, "var1 var2 var3 var4", got)
}

func TestTemplate_WithoutVariables(t *testing.T) {
	require.Equal(t, "test without passed variables {}", New("test without passed variables {}").Build())
}

func TestTemplate_SubstitutedTextIsNotRescanned(t *testing.T) {
	got := New("{a} {b}").
		Set("a", Text("{b}")).
		Set("b", Text("B")).
		Build()
	require.Equal(t, "{b} B", got)
}

func TestTemplate_EmptyNameIgnored(t *testing.T) {
	tpl := New("{}").Set("", Text("x"))
	require.Equal(t, "{}", tpl.Build())
}

var (
	nameGen  = rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,8}`)
	plainGen = rapid.StringMatching(`[a-zA-Z0-9 ./_-]{0,24}`)
)

func TestProperty_ResolvedStringsAreFixedPoints(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tpl := rapid.StringMatching(`([a-z ]{0,5}\{[a-z]{1,4}\}){0,5}[a-z ]{0,5}`).Draw(rt, "template")
		vars := rapid.MapOf(rapid.StringMatching(`[a-z]{1,4}`), rapid.Map(plainGen, Text)).Draw(rt, "vars")

		once := Resolve(tpl, vars)
		twice := Resolve(once, vars)
		require.Equal(rt, once, twice)
	})
}

func TestProperty_UnknownPlaceholdersUntouched(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := nameGen.Draw(rt, "name")
		prefix := plainGen.Draw(rt, "prefix")
		suffix := plainGen.Draw(rt, "suffix")
		tpl := prefix + "{" + name + "}" + suffix

		vars := map[string]Value{name + "_other": Text("x")}
		require.Equal(rt, tpl, Resolve(tpl, vars))
	})
}

func TestProperty_LastWriteWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := nameGen.Draw(rt, "name")
		first := plainGen.Draw(rt, "first")
		second := plainGen.Draw(rt, "second")

		got := New("<{"+name+"}>").
			SetMap(map[string]Value{name: Text(first)}).
			Set(name, Text(second)).
			Build()
		require.Equal(rt, "<"+second+">", got)
	})
}

func TestProperty_EveryOccurrenceReplaced(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := nameGen.Draw(rt, "name")
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		value := plainGen.Draw(rt, "value")

		tpl := strings.Repeat("{"+name+"}|", n)
		require.Equal(rt, strings.Repeat(value+"|", n), Resolve(tpl, map[string]Value{name: Text(value)}))
	})
}
