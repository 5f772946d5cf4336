package knowledge

import "strings"

// irregularSingulars maps plural word forms that the suffix rules below would
// fold incorrectly. This is a closed list, not a stemmer; new forms get added
// here when they show up in real stories.
var irregularSingulars = map[string]string{
	"fries":      "fry",
	"leaves":     "leaf",
	"loaves":     "loaf",
	"children":   "child",
	"mice":       "mouse",
	"geese":      "goose",
	"teeth":      "tooth",
	"feet":       "foot",
	"people":     "person",
	"anchovies":  "anchovy",
	"sandwiches": "sandwich",
	"radishes":   "radish",
}

// notPlural lists words that end in "s" but are already singular, so the
// generic s-stripping rule must leave them alone.
var notPlural = map[string]bool{
	"hummus":     true,
	"couscous":   true,
	"asparagus":  true,
	"citrus":     true,
	"molasses":   true,
	"swiss":      true,
	"haggis":     true,
	"grits":      true,
	"oats":       true,
	"octopus":    true,
	"watercress": true,
}

// Normalize folds a food or ingredient label to its canonical lookup form:
// lowercase, trimmed, surrounding punctuation removed, and each word folded
// from plural to singular. It deliberately handles only simple English
// singular/plural forms plus the enumerated irregulars above.
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.Trim(s, ".,;:!?\"'")
	if s == "" {
		return ""
	}

	words := strings.Fields(s)
	for i, w := range words {
		words[i] = singular(w)
	}
	return strings.Join(words, " ")
}

// singular folds one lowercase word from plural to singular form.
func singular(w string) string {
	if s, ok := irregularSingulars[w]; ok {
		return s
	}
	if notPlural[w] || len(w) < 4 {
		return w
	}

	switch {
	case strings.HasSuffix(w, "ies"):
		// berries -> berry
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "oes"):
		// potatoes -> potato, tomatoes -> tomato
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "shes"),
		strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "xes"):
		// peaches -> peach, dishes -> dish, molasses handled above
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case strings.HasSuffix(w, "s"):
		// carrots -> carrot
		return w[:len(w)-1]
	}
	return w
}
