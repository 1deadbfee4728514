package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validatorSchema() Schema {
	return Schema{
		Name:        "get_top_artists",
		Description: "test schema",
		Properties: map[string]Property{
			"year":        {Type: "integer"},
			"limit":       {Type: "integer", Minimum: floatPtr(1), Maximum: floatPtr(50)},
			"granularity": {Type: "string", Enum: []string{"month", "hour"}},
			"verbose":     {Type: "boolean"},
		},
		Required: []string{"year"},
	}
}

func TestValidateCoercesNumericStrings(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{"year": "2024"})
	require.True(t, result.Valid, result.Errors)
	assert.Equal(t, float64(2024), result.Normalized["year"])
}

func TestValidateCanonicalizesEnumCasing(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{
		"year":        float64(2024),
		"granularity": "MONTH",
	})
	require.True(t, result.Valid, result.Errors)
	assert.Equal(t, "month", result.Normalized["granularity"])
}

func TestValidateCoercesBooleanStrings(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{
		"year":    float64(2024),
		"verbose": "true",
	})
	require.True(t, result.Valid, result.Errors)
	assert.Equal(t, true, result.Normalized["verbose"])
}

func TestValidateMissingRequired(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{"limit": float64(5)})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `missing required argument "year"`)
}

func TestValidateWrongTypeFails(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{"year": "twenty-twenty"})
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateRangeViolation(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{
		"year":  float64(2024),
		"limit": float64(500),
	})
	assert.False(t, result.Valid)
}

func TestValidateEnumViolation(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{
		"year":        float64(2024),
		"granularity": "decade",
	})
	assert.False(t, result.Valid)
}

func TestValidateUnknownKeysPassThrough(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validatorSchema(), map[string]interface{}{
		"year":  float64(2024),
		"extra": "kept",
	})
	require.True(t, result.Valid, result.Errors)
	assert.Equal(t, "kept", result.Normalized["extra"])
}

func TestValidateNeverMutatesInput(t *testing.T) {
	v := NewValidator()
	args := map[string]interface{}{
		"year":        "2024",
		"granularity": "HOUR",
	}

	result := v.Validate(validatorSchema(), args)
	require.True(t, result.Valid, result.Errors)

	assert.Equal(t, "2024", args["year"])
	assert.Equal(t, "HOUR", args["granularity"])
}

func TestValidateIsIdempotent(t *testing.T) {
	v := NewValidator()
	schema := validatorSchema()

	first := v.Validate(schema, map[string]interface{}{"year": "2024", "granularity": "Month"})
	require.True(t, first.Valid, first.Errors)

	second := v.Validate(schema, first.Normalized)
	require.True(t, second.Valid, second.Errors)
	assert.Equal(t, first.Normalized, second.Normalized)
}
