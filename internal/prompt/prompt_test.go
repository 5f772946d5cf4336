package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenfold/kith/internal/relation"
)

func TestBuildRequiresStory(t *testing.T) {
	_, err := Build(Input{Story: "   "})
	require.Error(t, err)
}

func TestBuildRejectsUnknownStrategy(t *testing.T) {
	_, err := Build(Input{Story: "x", Strategy: Strategy("verbose")})
	require.Error(t, err)
}

func TestBuildIncludesFullVocabulary(t *testing.T) {
	p, err := Build(Input{Story: "Lunch with Mike."})
	require.NoError(t, err)
	for _, typ := range relation.All {
		assert.Contains(t, p, string(typ))
	}
}

func TestBuildIncludesRosterAndKnownFacts(t *testing.T) {
	p, err := Build(Input{
		Story:  "Saw David at the gym.",
		Roster: []Person{{ID: "p1", Name: "David Smith"}, {ID: "p2", Name: "Ola Novak"}},
		KnownFacts: []KnownFact{
			{PersonName: "David Smith", RelationType: relation.Likes, ObjectLabel: "weightlifting"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, p, "p1: David Smith")
	assert.Contains(t, p, "p2: Ola Novak")
	assert.Contains(t, p, "David Smith LIKES weightlifting")
}

func TestBuildOmitsEmptySections(t *testing.T) {
	p, err := Build(Input{Story: "Quiet day."})
	require.NoError(t, err)
	assert.NotContains(t, p, "KNOWN PEOPLE")
	assert.NotContains(t, p, "KNOWN FACTS")
	assert.NotContains(t, p, "confirmed")
}

func TestBuildConfirmations(t *testing.T) {
	p, err := Build(Input{
		Story:            "Dinner with David and Falko.",
		Roster:           []Person{{ID: "p1", Name: "David Smith"}},
		ConfirmedPresent: []string{"David Smith"},
		ConfirmedNew:     []string{"Falko"},
	})
	require.NoError(t, err)
	assert.Contains(t, p, "confirmed these people appear in the story")
	assert.Contains(t, p, "David Smith")
	assert.Contains(t, p, "do not match them against the roster")
	assert.Contains(t, p, "Falko")
}

func TestBuildNeverTellsModelToGuessLinks(t *testing.T) {
	p, err := Build(Input{Story: "Saw David today."})
	require.NoError(t, err)
	assert.Contains(t, p, "Never guess the link")
	assert.Contains(t, p, "ambiguousMatches")
}

func TestBuildStrategies(t *testing.T) {
	concise, err := Build(Input{Story: "Lunch with Mike.", Strategy: StrategyConcise})
	require.NoError(t, err)
	detailed, err := Build(Input{Story: "Lunch with Mike.", Strategy: StrategyDetailed})
	require.NoError(t, err)

	assert.NotContains(t, concise, "EXAMPLES:")
	assert.Contains(t, detailed, "EXAMPLES:")
	assert.Greater(t, len(detailed), len(concise))

	// Both strategies carry the same contract.
	for _, p := range []string{concise, detailed} {
		assert.Contains(t, p, "RELATION TYPES")
		assert.Contains(t, p, `"relations"`)
	}
}

func TestBuildEndsWithStory(t *testing.T) {
	story := "Mike brought his sister Anna to the picnic."
	p, err := Build(Input{Story: story})
	require.NoError(t, err)
	idx := strings.Index(p, "STORY:\n")
	require.GreaterOrEqual(t, idx, 0)
	assert.Contains(t, p[idx:], story)
}
