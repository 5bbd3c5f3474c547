package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
	"summary": "A solid week overall.",
	"content": {"activity_score": 78, "key_metrics": {"overdue_tasks": 2}},
	"sections": [
		{"title": "Tasks", "content": "15 of 20 tasks done.", "type": "text"}
	]
}`

func TestParseValidEnvelope(t *testing.T) {
	validator, err := NewEnvelopeValidator()
	require.NoError(t, err)

	envelope, err := validator.Parse(validResponse)
	require.NoError(t, err)

	assert.Equal(t, "A solid week overall.", envelope.Summary)
	assert.Equal(t, float64(78), envelope.Content["activity_score"])
	require.Len(t, envelope.Sections, 1)
	assert.Equal(t, "Tasks", envelope.Sections[0].Title)
	assert.Equal(t, "text", envelope.Sections[0].Type)
}

func TestParseStripsMarkdownFences(t *testing.T) {
	validator, err := NewEnvelopeValidator()
	require.NoError(t, err)

	fenced := "```json\n" + validResponse + "\n```"
	envelope, err := validator.Parse(fenced)
	require.NoError(t, err)
	assert.Equal(t, "A solid week overall.", envelope.Summary)

	bareFence := "```\n" + validResponse + "\n```"
	envelope, err = validator.Parse(bareFence)
	require.NoError(t, err)
	assert.Equal(t, "A solid week overall.", envelope.Summary)
}

func TestParseRejectsNonJSON(t *testing.T) {
	validator, err := NewEnvelopeValidator()
	require.NoError(t, err)

	_, err = validator.Parse("Here is your report: tasks went well!")
	assert.Error(t, err)
}

func TestParseRejectsMissingEnvelopeKeys(t *testing.T) {
	validator, err := NewEnvelopeValidator()
	require.NoError(t, err)

	cases := []string{
		`{"content": {}, "sections": []}`,
		`{"summary": "ok", "sections": []}`,
		`{"summary": "ok", "content": {}}`,
		`{"summary": "", "content": {}, "sections": []}`,
		`{"summary": "ok", "content": "not a map", "sections": []}`,
		`{"summary": "ok", "content": {}, "sections": [{"title": "x"}]}`,
	}
	for _, response := range cases {
		_, err := validator.Parse(response)
		assert.Error(t, err, "response %s should be rejected", response)
	}
}

func TestStripMarkdownFencesPassthrough(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripMarkdownFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, StripMarkdownFences("  {\"a\":1}  "))
}
