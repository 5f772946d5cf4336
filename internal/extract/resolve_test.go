package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenfold/kith/internal/store"
)

func testRoster() []*store.Person {
	return []*store.Person{
		{ID: "p-david", Name: "David Smith"},
		{ID: "p-ola", Name: "Ola Novak", Nickname: "Ola"},
		{ID: "p-mike", Name: "Mike Johnson", Nickname: "Mike"},
	}
}

func TestResolveExactFullName(t *testing.T) {
	res := ResolveName("David Smith", testRoster(), nil, nil)
	assert.Equal(t, "p-david", res.PersonID)
	assert.False(t, res.Ambiguous)
	assert.False(t, res.IsNew)
}

func TestResolveExactNickname(t *testing.T) {
	res := ResolveName("Mike", testRoster(), nil, nil)
	assert.Equal(t, "p-mike", res.PersonID)
}

func TestResolveCaseInsensitive(t *testing.T) {
	res := ResolveName("david smith", testRoster(), nil, nil)
	assert.Equal(t, "p-david", res.PersonID)
}

// A bare first name with only a partial roster match stays ambiguous
// even when there is exactly one candidate.
func TestResolveBareNameIsAmbiguous(t *testing.T) {
	res := ResolveName("David", testRoster(), nil, nil)
	assert.True(t, res.Ambiguous)
	assert.Empty(t, res.PersonID)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "p-david", res.Candidates[0].ID)
}

func TestResolveUnknownNameIsNew(t *testing.T) {
	res := ResolveName("Falko", testRoster(), nil, nil)
	assert.True(t, res.IsNew)
	assert.False(t, res.Ambiguous)
}

func TestResolveMultipleExactMatchesAmbiguous(t *testing.T) {
	roster := []*store.Person{
		{ID: "p-1", Name: "Anna Lee"},
		{ID: "p-2", Name: "Anna Lee"},
	}
	res := ResolveName("Anna Lee", roster, nil, nil)
	assert.True(t, res.Ambiguous)
	assert.Len(t, res.Candidates, 2)
}

func TestResolveConfirmedNewSkipsRoster(t *testing.T) {
	res := ResolveName("David Smith", testRoster(), nil, []string{"David Smith"})
	assert.True(t, res.IsNew)
	assert.Empty(t, res.PersonID)
}

func TestResolveConfirmedPresentLinksSingleCandidate(t *testing.T) {
	res := ResolveName("David", testRoster(), []string{"David"}, nil)
	assert.Equal(t, "p-david", res.PersonID)
	assert.False(t, res.Ambiguous)
}

func TestScoreNameMatch(t *testing.T) {
	tests := []struct {
		name      string
		mentioned string
		roster    string
		nickname  string
		want      float64
	}{
		{"exact full name", "David Smith", "David Smith", "", 0.5},
		{"nickname only", "Dave", "David Smith", "Dave", 0.4},
		{"substring plus first name", "David", "David Smith", "", 0.5},
		{"substring only", "Smith", "David Smith", "", 0.3},
		{"no relation", "Ola", "David Smith", "", 0.0},
		{"exact plus nickname", "David Smith", "David Smith", "David Smith", 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ScoreNameMatch(tt.mentioned, tt.roster, tt.nickname)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestFlagDuplicate(t *testing.T) {
	roster := testRoster()
	assert.Equal(t, "p-david", FlagDuplicate("David", roster))
	assert.Empty(t, FlagDuplicate("Zbigniew", roster))
}
