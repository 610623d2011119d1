package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erkao-lang/erkao/internal/value"
)

func TestCheckExhaustiveReportsMissingVariants(t *testing.T) {
	nodes := []*Node{{Kind: Enum, EnumName: "Opt", VariantName: "Some"}}
	missing := CheckExhaustive("Opt", []string{"Some", "None"}, nodes, false)
	require.Equal(t, []string{"None"}, missing)
}

func TestCheckExhaustiveSatisfiedByCatchAll(t *testing.T) {
	nodes := []*Node{
		{Kind: Enum, EnumName: "Opt", VariantName: "Some"},
		{Kind: Wildcard},
	}
	missing := CheckExhaustive("Opt", []string{"Some", "None"}, nodes, false)
	require.Empty(t, missing)
}

func TestCheckExhaustiveSatisfiedByDefault(t *testing.T) {
	nodes := []*Node{{Kind: Enum, EnumName: "Opt", VariantName: "Some"}}
	missing := CheckExhaustive("Opt", []string{"Some", "None"}, nodes, true)
	require.Empty(t, missing)
}

func TestPathStringEscapesStringKeys(t *testing.T) {
	p := []step{{key: "a"}, {isIndex: true, index: 0}, {key: `has"quote`}}
	require.Equal(t, `$["a"][0]["has\"quote"]`, pathString(p))
}

func TestUsedVariantsDedupes(t *testing.T) {
	nodes := []*Node{
		{Kind: Enum, EnumName: "Opt", VariantName: "Some"},
		{Kind: Enum, EnumName: "Opt", VariantName: "Some"},
		{Kind: Literal, Literal: value.Number(1)},
	}
	used := UsedVariants(nodes)
	require.Len(t, used, 1)
	require.True(t, used["Opt.Some"])
}
