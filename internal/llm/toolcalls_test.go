package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToolCallIDs(t *testing.T) {
	calls := []map[string]interface{}{
		{
			"id":       "call_abc",
			"function": map[string]interface{}{"name": "get_top_artists"},
		},
		{
			"function": map[string]interface{}{"name": "get_top_tracks"},
		},
		{
			"call_id":  "call_xyz",
			"function": map[string]interface{}{"name": "get_listening_stats"},
		},
	}

	normalized := NormalizeToolCallIDs(calls)
	require.Len(t, normalized, 3)

	assert.Equal(t, "call_abc", normalized[0]["id"])
	assert.Equal(t, "call_abc", normalized[0]["call_id"])

	// Missing id gets a derived one.
	id, _ := normalized[1]["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, normalized[1]["call_id"])

	// call_id is promoted to id.
	assert.Equal(t, "call_xyz", normalized[2]["id"])
}

func TestDecodeNativeCall(t *testing.T) {
	call, err := DecodeNativeCall(map[string]interface{}{
		"id": "call_1",
		"function": map[string]interface{}{
			"name":      "get_top_artists",
			"arguments": `{"year": 2023, "limit": 5}`,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "get_top_artists", call.Name)
	assert.Equal(t, float64(2023), call.Arguments["year"])
}

func TestDecodeNativeCallObjectArguments(t *testing.T) {
	call, err := DecodeNativeCall(map[string]interface{}{
		"call_id": "call_2",
		"function": map[string]interface{}{
			"name":      "get_listening_stats",
			"arguments": map[string]interface{}{"range": "all_time"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "call_2", call.ID)
	assert.Equal(t, "all_time", call.Arguments["range"])
}

func TestDecodeNativeCallErrors(t *testing.T) {
	_, err := DecodeNativeCall(nil)
	assert.Error(t, err)

	_, err = DecodeNativeCall(map[string]interface{}{"id": "call_3"})
	assert.Error(t, err)

	_, err = DecodeNativeCall(map[string]interface{}{
		"id":       "call_4",
		"function": map[string]interface{}{"arguments": "{}"},
	})
	assert.Error(t, err)
}

func TestParseRawArguments(t *testing.T) {
	args, err := ParseRawArguments(nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseRawArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseRawArguments(`{"year": 2023}`)
	require.NoError(t, err)
	assert.Equal(t, float64(2023), args["year"])

	_, err = ParseRawArguments("not json at all")
	assert.Error(t, err)
}

func TestParseRawArgumentsCodeShaped(t *testing.T) {
	payload := `const data = plays.filter(p => p.year === 2023); return data;`
	_, err := ParseRawArguments(payload)
	require.Error(t, err)

	var codeErr *ErrCodeShapedArguments
	require.ErrorAs(t, err, &codeErr)
	assert.Contains(t, codeErr.Payload, "const data")
}

func TestLooksLikeCode(t *testing.T) {
	assert.True(t, LooksLikeCode(`const x = 1; getTop({year: 2023});`))
	assert.True(t, LooksLikeCode(`def top_artists(year): return stats[year]`))
	assert.True(t, LooksLikeCode(`console.log(plays.length);`))

	assert.False(t, LooksLikeCode(`{"year": 2023}`))
	assert.False(t, LooksLikeCode(""))
	assert.False(t, LooksLikeCode("my favorite artist in 2023"))
}
