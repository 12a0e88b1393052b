package conceptgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSmallSchema(t *testing.T) *Schema {
	t.Helper()
	enc := charEncoder{}
	paramNameEnd, err := enc.EncodeLiteral(`":`)
	require.NoError(t, err)
	schema, err := BuildSchema(smallSchemaSource(), enc, paramNameEnd, nil)
	require.NoError(t, err)
	return schema
}

func TestBuildSchemaResolvesCategoryAndTemplate(t *testing.T) {
	schema := buildSmallSchema(t)
	enc := charEncoder{}

	mugTokens, err := enc.EncodeLiteral("Mug")
	require.NoError(t, err)
	name, ok := schema.ResolveCategory(mugTokens)
	require.True(t, ok)
	require.Equal(t, "Mug", name)

	require.Equal(t, 0, schema.CategoryAllowed(mugTokens).Size(), "a complete category name has no further continuation")

	bodyTokens, err := enc.EncodeLiteral("Body")
	require.NoError(t, err)
	tplName, ok := schema.ResolveTemplate("Mug", bodyTokens)
	require.True(t, ok)
	require.Equal(t, "Body", tplName)
}

func TestParamAllowedExcludesEmittedNames(t *testing.T) {
	schema := buildSmallSchema(t)
	enc := charEncoder{}

	radPrefix, err := enc.EncodeLiteral("rad")
	require.NoError(t, err)

	withoutExclusion := schema.ParamAllowed("Mug", "Body", radPrefix, nil)
	require.Equal(t, 2, withoutExclusion.Size(), "both radius and radon continue from 'rad'")

	withExclusion := schema.ParamAllowed("Mug", "Body", radPrefix, map[string]bool{"radius": true})
	require.ElementsMatch(t, []Token{'o'}, withExclusion.Values())
}

func TestParamDimsUsesArityPolicyMax(t *testing.T) {
	src := SchemaSource{
		Categories: []string{"Mug"},
		Templates: map[string]TemplateSpec{
			"Mug": {
				"Body": ParamSpec{
					"radius": []int{1, 3},
				},
			},
		},
	}
	enc := charEncoder{}
	paramNameEnd, err := enc.EncodeLiteral(`":`)
	require.NoError(t, err)
	schema, err := BuildSchema(src, enc, paramNameEnd, ArityPolicyMax)
	require.NoError(t, err)

	dims, ok := schema.ParamDims("Mug", "Body", "radius")
	require.True(t, ok)
	require.Equal(t, 3, dims)
}

func TestResolveParamNameRoundTrips(t *testing.T) {
	schema := buildSmallSchema(t)
	enc := charEncoder{}

	nameTokens, err := enc.EncodeLiteral("position")
	require.NoError(t, err)
	name, ok := schema.ResolveParamName("Mug", "Handle", nameTokens)
	require.True(t, ok)
	require.Equal(t, "position", name)

	_, ok = schema.ResolveParamName("Mug", "Handle", nameTokens[:len(nameTokens)-1])
	require.False(t, ok, "an incomplete name is not resolvable")
}
