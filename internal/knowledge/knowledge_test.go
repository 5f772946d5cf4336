package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Potatoes", "potato"},
		{"  TOMATOES ", "tomato"},
		{"carrots", "carrot"},
		{"berries", "berry"},
		{"french fries", "french fry"},
		{"Fries", "fry"},
		{"peaches", "peach"},
		{"dishes", "dish"},
		{"hummus", "hummus"},
		{"couscous", "couscous"},
		{"asparagus", "asparagus"},
		{"swiss", "swiss"},
		{"cheese", "cheese"},
		{"leaves", "leaf"},
		{"egg", "egg"},
		{"eggs", "egg"},
		{"black beans", "black bean"},
		{"Mashed Potatoes", "mashed potato"},
		{"", ""},
		{"   ", ""},
		{"sushi.", "sushi"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestExpandKnownFood(t *testing.T) {
	got := Expand("french fries")
	assert.Contains(t, got, "french fry")
	assert.Contains(t, got, "potato")
	assert.NotContains(t, got, "fish")
}

func TestExpandRecursesThroughIngredientFoods(t *testing.T) {
	// cheese pizza -> cheese -> milk
	got := Expand("cheese pizza")
	assert.Contains(t, got, "cheese")
	assert.Contains(t, got, "milk")
}

func TestExpandUnknownLabelIsItself(t *testing.T) {
	got := Expand("Black Beans")
	assert.Equal(t, []string{"black bean"}, got)
}

func TestDerivativesInvertIngredients(t *testing.T) {
	foods := Derivatives("potatoes")
	assert.Contains(t, foods, "french fry")
	assert.Contains(t, foods, "potato chip")
	assert.NotContains(t, foods, "sushi")
}

func TestSharedIngredientSymmetric(t *testing.T) {
	ing, ok := SharedIngredient("potatoes", "french fries")
	require.True(t, ok)
	assert.Equal(t, "potato", ing)

	ing, ok = SharedIngredient("french fries", "potatoes")
	require.True(t, ok)
	assert.Equal(t, "potato", ing)
}

func TestSharedIngredientNoOverlap(t *testing.T) {
	_, ok := SharedIngredient("potatoes", "sushi")
	assert.False(t, ok)
}

func TestSharedIngredientSkipsCarriers(t *testing.T) {
	// fries and potato chips share salt and oil, but the reported link must be
	// the meaningful one.
	ing, ok := SharedIngredient("french fries", "potato chips")
	require.True(t, ok)
	assert.Equal(t, "potato", ing)

	// cake and beer share only yeast-adjacent carriers via no path at all.
	_, ok = SharedIngredient("guacamole", "sushi")
	assert.False(t, ok)
}

func TestLookupRestriction(t *testing.T) {
	cases := []struct {
		label    string
		wantName string
		found    bool
	}{
		{"vegan", "vegan", true},
		{"Vegan", "vegan", true},
		{"a strict vegan since 2019", "vegan", true},
		{"vegetarian", "vegetarian", true},
		{"pescatarian", "pescatarian", true},
		{"lactose intolerant", "lactose intolerant", true},
		{"lactose-intolerant", "lactose intolerant", true},
		{"gluten-free", "gluten-free", true},
		{"celiac", "gluten-free", true},
		{"kosher", "kosher", true},
		{"halal", "halal", true},
		{"nut allergy", "nut allergy", true},
		{"allergic to nuts", "nut allergy", true},
		{"an engineer", "", false},
		{"tall", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r, ok := LookupRestriction(tc.label)
		assert.Equal(t, tc.found, ok, "LookupRestriction(%q)", tc.label)
		if tc.found {
			assert.Equal(t, tc.wantName, r.Name, "LookupRestriction(%q)", tc.label)
		}
	}
}

func TestVeganViolations(t *testing.T) {
	vegan, ok := LookupRestriction("vegan")
	require.True(t, ok)

	ing, hit := vegan.Violation("cheese pizza")
	require.True(t, hit)
	assert.Contains(t, []string{"cheese", "milk"}, ing)

	_, hit = vegan.Violation("black beans")
	assert.False(t, hit)

	_, hit = vegan.Violation("guacamole")
	assert.False(t, hit)
}

func TestMedicalRestrictions(t *testing.T) {
	for _, label := range []string{"nut allergy", "lactose intolerant", "celiac"} {
		r, ok := LookupRestriction(label)
		require.True(t, ok, label)
		assert.True(t, r.Medical, "%s should be medical", label)
	}
	for _, label := range []string{"vegan", "kosher", "halal"} {
		r, ok := LookupRestriction(label)
		require.True(t, ok, label)
		assert.False(t, r.Medical, "%s should not be medical", label)
	}
}

func TestNutAllergyCatchesHiddenNuts(t *testing.T) {
	nuts, ok := LookupRestriction("nut allergy")
	require.True(t, ok)

	ing, hit := nuts.Violation("pesto")
	require.True(t, hit)
	assert.Equal(t, "pine nut", ing)

	ing, hit = nuts.Violation("pad thai")
	require.True(t, hit)
	assert.Equal(t, "peanut", ing)
}
