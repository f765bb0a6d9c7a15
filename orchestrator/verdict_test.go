package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	response := "Findings in prose.\n\n```json\n{\"score\": 85, \"passed\": true, \"issues\": []}\n```"

	v, err := ParseVerdict(response)
	require.NoError(t, err)
	assert.Equal(t, 85, v.Score)
	assert.True(t, v.Passed)
	assert.Empty(t, v.Issues)
}

func TestParseVerdictTakesLastBlock(t *testing.T) {
	response := "Example shape:\n```json\n{\"score\": 0, \"passed\": false}\n```\n" +
		"Actual verdict:\n```json\n{\"score\": 91, \"passed\": true}\n```"

	v, err := ParseVerdict(response)
	require.NoError(t, err)
	assert.Equal(t, 91, v.Score)
	assert.True(t, v.Passed)
}

func TestParseVerdictIssues(t *testing.T) {
	response := "```json\n{\"score\": 40, \"passed\": false, \"issues\": [" +
		"{\"severity\": \"critical\", \"detail\": \"rating contradicts thesis\"}," +
		"{\"severity\": \"minor\", \"section\": \"Risks\", \"detail\": \"missing FX exposure\"}" +
		"]}\n```"

	v, err := ParseVerdict(response)
	require.NoError(t, err)
	require.Len(t, v.Issues, 2)
	assert.Equal(t, "critical", v.Issues[0].Severity)
	assert.Equal(t, "Risks", v.Issues[1].Section)
}

func TestParseVerdictNoBlock(t *testing.T) {
	_, err := ParseVerdict("just prose, no JSON anywhere")
	assert.Error(t, err)
}

func TestParseVerdictInvalidJSON(t *testing.T) {
	_, err := ParseVerdict("```json\n{\"score\": \n```")
	assert.Error(t, err)
}

func TestParseVerdictWrongShape(t *testing.T) {
	_, err := ParseVerdict("```json\n{\"score\": \"high\", \"passed\": \"yes\"}\n```")
	assert.Error(t, err)
}

func TestParseVerdictScoreOutOfRange(t *testing.T) {
	_, err := ParseVerdict("```json\n{\"score\": 180, \"passed\": true}\n```")
	assert.Error(t, err)
}
