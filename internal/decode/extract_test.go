package decode

import (
	"errors"
	"testing"

	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"```\n[1,2]\n```":                  `[1,2]`,
		"Here you go:\n```JSON\n{}\n```\n": `{}`,
		"```{\"a\":1}```":                  `{"a":1}`,
		"  {\"a\":1}  ":                    `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFences(in), "input %q", in)
	}
}

func TestExtractJSONSkipsBracesInStrings(t *testing.T) {
	got, err := ExtractJSON(`prefix {"text": "a } tricky { value", "n": 1} suffix`, '{')
	require.NoError(t, err)
	assert.Equal(t, `{"text": "a } tricky { value", "n": 1}`, got)
}

func TestExtractJSONPrefersValidSpan(t *testing.T) {
	got, err := ExtractJSON(`I think {maybe} this is it: {"ok": true}`, '{')
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, got)
}

func TestExtractJSONNoValue(t *testing.T) {
	_, err := ExtractJSON("no json here", '{')
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, errNoJSON)
	assert.Equal(t, "no json here", perr.Preview)
}

func TestParseArrayUnwrapsSingleArrayObject(t *testing.T) {
	arr, err := ParseArray(`{"agents": [{"name": "A"}, {"name": "B"}]}`)
	require.NoError(t, err)
	assert.Len(t, arr, 2)
}

func TestParseArrayWrapsLoneObject(t *testing.T) {
	arr, err := ParseArray("```json\n{\"name\": \"A\", \"traits\": [\"calm\"]}\n```")
	require.NoError(t, err)
	require.Len(t, arr, 1)
	assert.Equal(t, "A", arr[0].(map[string]interface{})["name"])
}

func TestParseArrayInProse(t *testing.T) {
	arr, err := ParseArray(`Here are the personas: [{"name": "A"}] Hope this helps!`)
	require.NoError(t, err)
	assert.Len(t, arr, 1)
}

func TestParseObjectKeepsNumbersDistinctFromStrings(t *testing.T) {
	m, err := ParseObject(`{"n": 12.6, "s": "12"}`)
	require.NoError(t, err)

	n, ok := asNumber(m["n"])
	assert.True(t, ok)
	assert.Equal(t, 13, n)

	_, ok = asNumber(m["s"])
	assert.False(t, ok)
	n, ok = asLenientNumber(m["s"])
	assert.True(t, ok)
	assert.Equal(t, 12, n)
}

func TestNumbersSaturateInsteadOfOverflowing(t *testing.T) {
	m, err := ParseObject(`{"big": 1e20, "small": -1e19, "s": "1e20", "inf": "Inf", "nan": "NaN"}`)
	require.NoError(t, err)

	n, ok := asNumber(m["big"])
	require.True(t, ok)
	assert.Equal(t, 100, model.ClampInt(n, 0, 100))

	n, ok = asNumber(m["small"])
	require.True(t, ok)
	assert.Equal(t, -50, model.ClampInt(n, -50, 50))

	n, ok = asLenientNumber(m["s"])
	require.True(t, ok)
	assert.Positive(t, n)

	_, ok = asLenientNumber(m["inf"])
	assert.False(t, ok)
	_, ok = asLenientNumber(m["nan"])
	assert.False(t, ok)
}
