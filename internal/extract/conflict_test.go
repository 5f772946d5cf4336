package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenfold/kith/internal/relation"
	"github.com/wrenfold/kith/internal/store"
)

func mention(typ relation.Type, object string) RelationMention {
	return RelationMention{
		SubjectName:  "Mike",
		RelationType: typ,
		ObjectLabel:  object,
		Confidence:   0.9,
	}
}

func fact(id string, typ relation.Type, object string) *store.Fact {
	return &store.Fact{ID: id, RelationType: typ, ObjectLabel: object}
}

func TestDirectContradiction(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.Dislikes, "carrots"),
		[]*store.Fact{fact("f1", relation.Likes, "carrots")},
	)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, ConflictDirect, c.Type)
	assert.Equal(t, SeverityMedium, c.Severity)
	assert.Equal(t, "f1", c.ExistingFactID)
	assert.True(t, c.Supersedes())
}

func TestDirectContradictionNormalizesObjects(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.Dislikes, "Carrots"),
		[]*store.Fact{fact("f1", relation.Likes, "carrot")},
	)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictDirect, conflicts[0].Type)
}

func TestIngredientConflictNewSensitivity(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.SensitiveTo, "potatoes"),
		[]*store.Fact{fact("f1", relation.Likes, "french fries")},
	)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, ConflictIngredient, c.Type)
	assert.Equal(t, SeverityHigh, c.Severity)
	assert.Contains(t, c.Reasoning, "potato")
}

func TestIngredientConflictNewFood(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.Likes, "cheese pizza"),
		[]*store.Fact{fact("f1", relation.SensitiveTo, "milk")},
	)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictIngredient, conflicts[0].Type)
	assert.Equal(t, SeverityHigh, conflicts[0].Severity)
}

func TestNoIngredientConflictWithoutOverlap(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.SensitiveTo, "potatoes"),
		[]*store.Fact{fact("f1", relation.Likes, "sushi")},
	)
	assert.Empty(t, conflicts)
}

func TestDietaryConflictLifestyle(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.Is, "vegan"),
		[]*store.Fact{fact("f1", relation.Likes, "cheese pizza")},
	)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, ConflictDietary, c.Type)
	assert.Equal(t, SeverityMedium, c.Severity)
}

func TestDietaryConflictMedical(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.Likes, "pesto"),
		[]*store.Fact{fact("f1", relation.Is, "nut allergy")},
	)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, ConflictDietary, c.Type)
	assert.Equal(t, SeverityHigh, c.Severity)
	assert.Contains(t, c.Reasoning, "pine nut")
}

func TestTemporalUpdate(t *testing.T) {
	m := mention(relation.Is, "software engineer")
	m.Category = "occupation"
	existing := fact("f1", relation.Is, "student")
	existing.Category = "occupation"

	conflicts := DetectConflicts(m, []*store.Fact{existing})
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, ConflictTemporal, c.Type)
	assert.Equal(t, SeverityLow, c.Severity)
	assert.True(t, c.Supersedes())
}

func TestNoTemporalUpdateAcrossCategories(t *testing.T) {
	m := mention(relation.Is, "vegan")
	m.Category = "diet"
	existing := fact("f1", relation.Is, "student")
	existing.Category = "occupation"

	assert.Empty(t, DetectConflicts(m, []*store.Fact{existing}))
}

func TestNoConflictForUnrelatedFacts(t *testing.T) {
	conflicts := DetectConflicts(
		mention(relation.Likes, "hiking"),
		[]*store.Fact{
			fact("f1", relation.Fears, "heights"),
			fact("f2", relation.Likes, "reading"),
		},
	)
	assert.Empty(t, conflicts)
}
