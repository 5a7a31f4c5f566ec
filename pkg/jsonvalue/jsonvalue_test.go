package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectField(t *testing.T) {
	v, err := Parse([]byte(`{"disabled":true,"bindings":{"input":[{"type":"queueTrigger"}]}}`))
	require.NoError(t, err)

	disabled, ok := v.Field("disabled")
	require.True(t, ok)
	assert.True(t, disabled.Truthy())

	bindings, ok := v.Path("bindings", "input")
	require.True(t, ok)
	arr, ok := bindings.Array()
	require.True(t, ok)
	require.Len(t, arr, 1)

	typ, ok := arr[0].Field("type")
	require.True(t, ok)
	s, ok := typ.String()
	require.True(t, ok)
	assert.Equal(t, "queueTrigger", s)
}

func TestPathMissingIntermediate(t *testing.T) {
	v, err := Parse([]byte(`{"bindings":null}`))
	require.NoError(t, err)

	_, ok := v.Path("bindings", "input")
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		json string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`null`, false},
		{`0`, false},
		{`1`, true},
		{`""`, false},
		{`"x"`, true},
		{`{}`, true},
		{`[]`, true},
	}
	for _, c := range cases {
		v, err := Parse([]byte(c.json))
		require.NoError(t, err)
		assert.Equal(t, c.want, v.Truthy(), c.json)
	}
}

func TestEmptyRoundTrip(t *testing.T) {
	v := Empty()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	input := `{"type":"queueTrigger","name":"q","connection":"AzureWebJobsStorage","unknownField":{"nested":[1,2,3]}}`
	v, err := Parse([]byte(input))
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestIndexOutOfRange(t *testing.T) {
	v, err := Parse([]byte(`[1,2,3]`))
	require.NoError(t, err)

	_, ok := v.Index(5)
	assert.False(t, ok)
	_, ok = v.Index(-1)
	assert.False(t, ok)

	first, ok := v.Index(0)
	require.True(t, ok)
	n, ok := first.Number()
	require.True(t, ok)
	assert.Equal(t, float64(1), n)
}
