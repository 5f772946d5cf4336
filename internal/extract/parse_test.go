package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenfold/kith/internal/llm"
	"github.com/wrenfold/kith/internal/relation"
)

const validJSON = `{
	"people": [{"name": "Mike Johnson", "isNew": true, "confidence": 0.95}],
	"relations": [{"subjectName": "Mike Johnson", "relationType": "LIKES", "objectLabel": "hiking", "confidence": 0.9}],
	"conflicts": [],
	"ambiguousMatches": []
}`

func TestParseStrictJSON(t *testing.T) {
	resp, warnings, err := ParseResponse(validJSON)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, resp.People, 1)
	require.Len(t, resp.Relations, 1)
	assert.Equal(t, "Mike Johnson", resp.People[0].Name)
	assert.Equal(t, relation.Likes, resp.Relations[0].RelationType)
}

func TestParseFencedJSON(t *testing.T) {
	raw := "Here is the extraction:\n```json\n" + validJSON + "\n```\nDone."
	resp, _, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Len(t, resp.People, 1)
}

func TestParseEmbeddedJSON(t *testing.T) {
	raw := "Sure! The result is " + validJSON + " as requested."
	resp, _, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Len(t, resp.Relations, 1)
}

func TestParseEmptyResponse(t *testing.T) {
	_, _, err := ParseResponse("   \n  ")
	lerr := llm.AsError(err)
	require.NotNil(t, lerr)
	assert.Equal(t, llm.CodeInvalidResponse, lerr.Code)
}

func TestParseNoJSON(t *testing.T) {
	_, _, err := ParseResponse("I could not find any people in this story.")
	lerr := llm.AsError(err)
	require.NotNil(t, lerr)
	assert.Equal(t, llm.CodeValidationError, lerr.Code)
}

func TestParseMalformedJSON(t *testing.T) {
	_, _, err := ParseResponse(`{"people": [{"name": "Mike"], "relations": []}`)
	lerr := llm.AsError(err)
	require.NotNil(t, lerr)
	assert.Equal(t, llm.CodeValidationError, lerr.Code)
}

func TestParseDropsInvalidEntries(t *testing.T) {
	raw := `{
		"people": [{"name": ""}, {"name": "Ola"}],
		"relations": [
			{"subjectName": "Ola", "relationType": "LOVES", "objectLabel": "tea", "confidence": 0.9},
			{"subjectName": "Ola", "relationType": "LIKES", "objectLabel": "", "confidence": 0.9},
			{"subjectName": "Ola", "relationType": "LIKES", "objectLabel": "tea", "confidence": 0.9}
		]
	}`
	resp, warnings, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Len(t, resp.People, 1)
	require.Len(t, resp.Relations, 1)
	assert.Equal(t, "tea", resp.Relations[0].ObjectLabel)
	assert.Len(t, warnings, 3)
}

func TestParseClearsInvalidOptionalEnums(t *testing.T) {
	raw := `{
		"relations": [{"subjectName": "Ola", "relationType": "LIKES", "objectLabel": "tea",
			"intensity": "extreme", "status": "forever", "confidence": 0.9}]
	}`
	resp, warnings, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, resp.Relations, 1)
	assert.Empty(t, string(resp.Relations[0].Intensity))
	assert.Equal(t, relation.StatusCurrent, resp.Relations[0].Status)
	assert.Len(t, warnings, 2)
}

func TestParseClearsInvalidPersonType(t *testing.T) {
	raw := `{
		"people": [
			{"name": "Mike Johnson", "personType": "friend", "confidence": 0.9},
			{"name": "Ola Novak", "personType": "primary", "confidence": 0.9}
		]
	}`
	resp, warnings, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, resp.People, 2)
	assert.Empty(t, resp.People[0].PersonType)
	assert.Equal(t, "primary", resp.People[1].PersonType)
	assert.Len(t, warnings, 1)
}

func TestParseClampsConfidence(t *testing.T) {
	raw := `{
		"relations": [{"subjectName": "Ola", "relationType": "LIKES", "objectLabel": "tea", "confidence": 1.7}]
	}`
	resp, _, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.Relations[0].Confidence)
}

func TestParseDefaultsStatusToCurrent(t *testing.T) {
	raw := `{
		"relations": [{"subjectName": "Ola", "relationType": "LIKES", "objectLabel": "tea", "confidence": 0.9}]
	}`
	resp, _, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, relation.StatusCurrent, resp.Relations[0].Status)
}
