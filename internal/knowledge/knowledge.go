// Package knowledge provides the static food, ingredient and dietary lookup
// used by conflict detection.
//
// Three relations are modeled:
//   - food -> component ingredients ("french fry" contains potato)
//   - ingredient -> derivative foods (potato is in fries, chips, gnocchi)
//   - dietary restriction -> excluded ingredient set (vegan excludes dairy)
//
// Everything here is pure lookup over in-memory tables. All keys are stored in
// normalized form (see Normalize) and every query normalizes its input first.
package knowledge

import (
	"sort"
	"strings"
)

// foodIngredients maps a prepared food to its component ingredients.
// Keys and values are normalized (lowercase singular).
var foodIngredients = map[string][]string{
	"french fry":    {"potato", "vegetable oil", "salt"},
	"fry":           {"potato", "vegetable oil", "salt"},
	"potato chip":   {"potato", "vegetable oil", "salt"},
	"crisp":         {"potato", "vegetable oil", "salt"},
	"mashed potato": {"potato", "butter", "milk"},
	"hash brown":    {"potato", "vegetable oil"},
	"gnocchi":       {"potato", "wheat flour", "egg"},
	"vodka":         {"potato", "alcohol"},

	"pizza":           {"wheat flour", "tomato", "cheese", "yeast"},
	"cheese pizza":    {"wheat flour", "tomato", "cheese", "yeast"},
	"pepperoni pizza": {"wheat flour", "tomato", "cheese", "pork"},
	"pasta":           {"wheat flour", "egg"},
	"lasagna":         {"wheat flour", "cheese", "tomato", "beef"},
	"mac and cheese":  {"wheat flour", "cheese", "milk", "butter"},
	"bread":           {"wheat flour", "yeast"},
	"croissant":       {"wheat flour", "butter", "yeast"},
	"cake":            {"wheat flour", "sugar", "egg", "butter"},
	"cookie":          {"wheat flour", "sugar", "butter", "egg"},
	"pancake":         {"wheat flour", "milk", "egg"},
	"beer":            {"barley", "yeast", "alcohol"},
	"wine":            {"grape", "alcohol"},

	"cheese":     {"milk"},
	"butter":     {"milk", "cream"},
	"yogurt":     {"milk"},
	"ice cream":  {"milk", "cream", "sugar"},
	"milkshake":  {"milk", "ice cream", "sugar"},
	"latte":      {"coffee", "milk"},
	"cappuccino": {"coffee", "milk"},
	"tiramisu":   {"coffee", "egg", "cream", "sugar"},

	"omelette":      {"egg", "butter"},
	"mayonnaise":    {"egg", "vegetable oil"},
	"sushi":         {"rice", "fish", "seaweed", "vinegar"},
	"fish and chip": {"fish", "potato", "wheat flour", "vegetable oil"},
	"shrimp":        {"shellfish"},
	"prawn":         {"shellfish"},
	"lobster":       {"shellfish"},
	"crab":          {"shellfish"},
	"bacon":         {"pork"},
	"ham":           {"pork"},
	"sausage":       {"pork"},
	"pepperoni":     {"pork"},
	"hamburger":     {"beef", "wheat flour"},
	"burger":        {"beef", "wheat flour"},
	"hot dog":       {"pork", "beef", "wheat flour"},
	"steak":         {"beef"},
	"meatball":      {"beef", "egg", "wheat flour"},

	"peanut butter": {"peanut"},
	"pad thai":      {"rice noodle", "peanut", "egg", "fish sauce"},
	"fish sauce":    {"fish"},
	"satay":         {"peanut", "chicken"},
	"pesto":         {"basil", "pine nut", "cheese", "olive oil"},
	"marzipan":      {"almond", "sugar"},
	"nutella":       {"hazelnut", "sugar", "milk"},
	"baklava":       {"walnut", "pistachio", "wheat flour", "honey"},
	"hummus":        {"chickpea", "tahini", "sesame"},
	"tahini":        {"sesame"},
	"guacamole":     {"avocado", "lime", "onion"},
	"falafel":       {"chickpea", "onion"},
	"tofu":          {"soy"},
	"soy sauce":     {"soy", "wheat flour"},
}

// extraDerivatives adds ingredient -> food links the inverted food table does
// not cover (foods people name without the base food carrying a full recipe).
var extraDerivatives = map[string][]string{
	"potato":      {"french fry", "potato chip", "hash brown", "mashed potato", "gnocchi", "vodka"},
	"milk":        {"cheese", "butter", "yogurt", "ice cream", "latte", "milkshake"},
	"peanut":      {"peanut butter", "satay", "pad thai"},
	"wheat flour": {"bread", "pasta", "pizza", "cake", "cookie", "croissant"},
}

// derivativeIndex is ingredient -> foods containing it, built once from
// foodIngredients plus extraDerivatives.
var derivativeIndex = buildDerivativeIndex()

func buildDerivativeIndex() map[string][]string {
	idx := make(map[string]map[string]bool)
	add := func(ing, food string) {
		if idx[ing] == nil {
			idx[ing] = make(map[string]bool)
		}
		idx[ing][food] = true
	}
	for food, ings := range foodIngredients {
		for _, ing := range ings {
			add(ing, food)
		}
	}
	for ing, foods := range extraDerivatives {
		for _, food := range foods {
			add(ing, food)
		}
	}

	out := make(map[string][]string, len(idx))
	for ing, foods := range idx {
		list := make([]string, 0, len(foods))
		for f := range foods {
			list = append(list, f)
		}
		sort.Strings(list)
		out[ing] = list
	}
	return out
}

// carrierIngredients are near-universal components excluded from
// shared-ingredient conflict checks. Flagging every pair of foods that both
// contain salt would bury real conflicts in noise.
var carrierIngredients = map[string]bool{
	"salt":          true,
	"water":         true,
	"sugar":         true,
	"vegetable oil": true,
	"yeast":         true,
	"vinegar":       true,
}

// Ingredients returns the component ingredients of a known food, or nil for
// labels the table does not know.
func Ingredients(label string) []string {
	return foodIngredients[Normalize(label)]
}

// Derivatives returns the foods known to contain the given ingredient.
func Derivatives(ingredient string) []string {
	return derivativeIndex[Normalize(ingredient)]
}

// Expand returns the normalized ingredient closure of a label: the label
// itself plus its ingredients, recursively (cheese pizza -> cheese -> milk).
// The result is sorted for stable output.
func Expand(label string) []string {
	seen := make(map[string]bool)
	expandInto(Normalize(label), seen, 0)

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// maxExpandDepth bounds recursive ingredient expansion. The deepest real chain
// in the tables is food -> ingredient-food -> base ingredient.
const maxExpandDepth = 4

func expandInto(norm string, seen map[string]bool, depth int) {
	if norm == "" || seen[norm] || depth > maxExpandDepth {
		return
	}
	seen[norm] = true
	for _, ing := range foodIngredients[norm] {
		expandInto(ing, seen, depth+1)
	}
}

// SharedIngredient reports the first ingredient (alphabetically) common to the
// expansions of two labels, skipping carrier ingredients. The check is
// symmetric: "potato" vs "french fries" matches the same way as the reverse,
// because each label's own name is part of its expansion.
func SharedIngredient(a, b string) (string, bool) {
	ea := Expand(a)
	eb := make(map[string]bool)
	for _, ing := range Expand(b) {
		eb[ing] = true
	}
	for _, ing := range ea {
		if carrierIngredients[ing] {
			continue
		}
		if eb[ing] {
			return ing, true
		}
	}
	return "", false
}

// Restriction is a named dietary restriction with the ingredients it excludes.
type Restriction struct {
	Name     string
	Excluded []string
	// Medical restrictions make any violation a high-severity conflict.
	Medical bool
}

// restrictions keys are normalized labels; aliases point at the same entry.
var restrictions = map[string]*Restriction{
	"vegan": {
		Name: "vegan",
		Excluded: []string{
			"meat", "beef", "pork", "chicken", "fish", "shellfish",
			"milk", "cream", "butter", "cheese", "egg", "honey", "gelatin",
		},
	},
	"vegetarian": {
		Name:     "vegetarian",
		Excluded: []string{"meat", "beef", "pork", "chicken", "fish", "shellfish", "gelatin"},
	},
	"pescatarian": {
		Name:     "pescatarian",
		Excluded: []string{"meat", "beef", "pork", "chicken"},
	},
	"lactose intolerant": {
		Name:     "lactose intolerant",
		Excluded: []string{"milk", "cream", "butter", "cheese", "yogurt", "ice cream"},
		Medical:  true,
	},
	"kosher": {
		Name:     "kosher",
		Excluded: []string{"pork", "shellfish"},
	},
	"halal": {
		Name:     "halal",
		Excluded: []string{"pork", "alcohol"},
	},
	"gluten-free": {
		Name:     "gluten-free",
		Excluded: []string{"gluten", "wheat flour", "wheat", "barley", "rye"},
		Medical:  true,
	},
	"nut allergy": {
		Name:     "nut allergy",
		Excluded: []string{"peanut", "almond", "walnut", "cashew", "hazelnut", "pistachio", "pine nut"},
		Medical:  true,
	},
}

// restrictionAliases maps alternate phrasings found in IS-fact object labels
// to canonical restriction keys.
var restrictionAliases = map[string]string{
	"lactose-intolerant":  "lactose intolerant",
	"lactose intolerance": "lactose intolerant",
	"dairy-free":          "lactose intolerant",
	"dairy free":          "lactose intolerant",
	"gluten free":         "gluten-free",
	"celiac":              "gluten-free",
	"coeliac":             "gluten-free",
	"nut-allergy":         "nut allergy",
	"allergic to nut":     "nut allergy",
	"peanut allergy":      "nut allergy",
}

// LookupRestriction matches an IS-fact object label ("vegan", "a strict
// vegetarian", "lactose intolerant") against the known dietary restrictions.
// The label matches when it normalizes to a restriction name, an alias, or
// contains one as a phrase.
func LookupRestriction(label string) (Restriction, bool) {
	norm := Normalize(label)
	if norm == "" {
		return Restriction{}, false
	}
	if key, ok := restrictionAliases[norm]; ok {
		return *restrictions[key], true
	}
	if r, ok := restrictions[norm]; ok {
		return *r, true
	}

	// Phrase containment: "a strict vegan since 2019" still names the diet.
	padded := " " + norm + " "
	for alias, key := range restrictionAliases {
		if strings.Contains(padded, " "+alias+" ") {
			return *restrictions[key], true
		}
	}
	for key, r := range restrictions {
		if strings.Contains(padded, " "+key+" ") {
			return *r, true
		}
	}
	return Restriction{}, false
}

// Violation reports the first excluded ingredient found in the expansion of
// the given food label, if any.
func (r Restriction) Violation(foodLabel string) (string, bool) {
	expanded := make(map[string]bool)
	for _, ing := range Expand(foodLabel) {
		expanded[ing] = true
	}
	for _, excluded := range r.Excluded {
		if expanded[excluded] {
			return excluded, true
		}
	}
	return "", false
}
