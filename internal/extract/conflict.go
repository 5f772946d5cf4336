package extract

import (
	"fmt"
	"strings"

	"github.com/wrenfold/kith/internal/knowledge"
	"github.com/wrenfold/kith/internal/relation"
	"github.com/wrenfold/kith/internal/store"
)

// Conflict types.
const (
	ConflictDirect     = "direct_contradiction"
	ConflictIngredient = "ingredient_conflict"
	ConflictDietary    = "dietary_conflict"
	ConflictTemporal   = "temporal_update"
)

// Conflict severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Conflict describes a clash between a new extraction and an existing fact.
type Conflict struct {
	Type        string
	Severity    string
	Description string
	Reasoning   string
	// ExistingFactID is the stored fact this clashes with.
	ExistingFactID string
	// New is the incoming extraction.
	New RelationMention
}

// Supersedes reports whether this conflict represents a temporal update
// where the new fact should replace the existing one.
func (c Conflict) Supersedes() bool {
	return c.Type == ConflictTemporal || c.Type == ConflictDirect
}

// DetectConflicts checks a new extraction against a person's current
// facts. Checks run in order of specificity; each existing fact yields at
// most one conflict.
func DetectConflicts(m RelationMention, existing []*store.Fact) []Conflict {
	var out []Conflict
	for _, f := range existing {
		if c, ok := checkFact(m, f); ok {
			out = append(out, c)
		}
	}
	return out
}

func checkFact(m RelationMention, f *store.Fact) (Conflict, bool) {
	// Direct contradiction: likes X vs dislikes X.
	if opposes(m.RelationType, f.RelationType) && sameObject(m.ObjectLabel, f.ObjectLabel) {
		return Conflict{
			Type:     ConflictDirect,
			Severity: SeverityMedium,
			Description: fmt.Sprintf("%s %s %q but an existing fact says %s %q",
				m.SubjectName, m.RelationType, m.ObjectLabel, f.RelationType, f.ObjectLabel),
			Reasoning:      fmt.Sprintf("%s and %s are opposites for the same object", m.RelationType, f.RelationType),
			ExistingFactID: f.ID,
			New:            m,
		}, true
	}

	// Ingredient conflict: a sensitivity against a liked or experienced
	// food that contains the trigger. Checked both directions. Always
	// high severity: sensitivities are medical territory.
	if c, ok := checkIngredient(m, f); ok {
		return c, true
	}

	// Dietary conflict: an identity restriction (vegan, kosher, ...)
	// against a food that violates it.
	if c, ok := checkDietary(m, f); ok {
		return c, true
	}

	// Temporal update: same relation type and object domain, different
	// object. Low severity; the new fact supersedes the old one.
	if m.RelationType == f.RelationType && m.Category != "" && m.Category == f.Category &&
		!sameObject(m.ObjectLabel, f.ObjectLabel) && exclusiveType(m.RelationType) {
		return Conflict{
			Type:     ConflictTemporal,
			Severity: SeverityLow,
			Description: fmt.Sprintf("%s %s %q updates the earlier %q",
				m.SubjectName, m.RelationType, m.ObjectLabel, f.ObjectLabel),
			Reasoning:      "same relation and category with a new object reads as a life update",
			ExistingFactID: f.ID,
			New:            m,
		}, true
	}

	return Conflict{}, false
}

func checkIngredient(m RelationMention, f *store.Fact) (Conflict, bool) {
	var trigger, food string
	var foodFactID string
	switch {
	case m.RelationType == relation.SensitiveTo && likesFood(f.RelationType):
		trigger, food, foodFactID = m.ObjectLabel, f.ObjectLabel, f.ID
	case f.RelationType == relation.SensitiveTo && likesFood(m.RelationType):
		trigger, food, foodFactID = f.ObjectLabel, m.ObjectLabel, f.ID
	default:
		return Conflict{}, false
	}

	shared, ok := knowledge.SharedIngredient(trigger, food)
	if !ok {
		return Conflict{}, false
	}
	return Conflict{
		Type:     ConflictIngredient,
		Severity: SeverityHigh,
		Description: fmt.Sprintf("%s is sensitive to %q but %q is on file as enjoyed",
			m.SubjectName, trigger, food),
		Reasoning:      fmt.Sprintf("%q contains %s, which %q also derives from", food, shared, trigger),
		ExistingFactID: foodFactID,
		New:            m,
	}, true
}

func checkDietary(m RelationMention, f *store.Fact) (Conflict, bool) {
	var restrictionLabel, food string
	switch {
	case m.RelationType == relation.Is && likesFood(f.RelationType):
		restrictionLabel, food = m.ObjectLabel, f.ObjectLabel
	case f.RelationType == relation.Is && likesFood(m.RelationType):
		restrictionLabel, food = f.ObjectLabel, m.ObjectLabel
	default:
		return Conflict{}, false
	}

	r, ok := knowledge.LookupRestriction(restrictionLabel)
	if !ok {
		return Conflict{}, false
	}
	violating, ok := r.Violation(food)
	if !ok {
		return Conflict{}, false
	}

	severity := SeverityMedium
	if r.Medical {
		severity = SeverityHigh
	}
	return Conflict{
		Type:     ConflictDietary,
		Severity: severity,
		Description: fmt.Sprintf("%s is %s but %q is on file as enjoyed",
			m.SubjectName, r.Name, food),
		Reasoning:      fmt.Sprintf("%q contains %s, excluded by a %s diet", food, violating, r.Name),
		ExistingFactID: f.ID,
		New:            m,
	}, true
}

// opposes reports whether two relation types directly contradict each
// other for the same object.
func opposes(a, b relation.Type) bool {
	return (a == relation.Likes && b == relation.Dislikes) ||
		(a == relation.Dislikes && b == relation.Likes)
}

// likesFood reports whether a relation type asserts positive contact
// with its object, making it worth checking against food restrictions.
func likesFood(t relation.Type) bool {
	return t == relation.Likes || t == relation.Experienced || t == relation.RegularlyDoes
}

// exclusiveType reports whether a relation type names something a person
// realistically holds one of per category, so a new value reads as an
// update rather than an addition.
func exclusiveType(t relation.Type) bool {
	return t == relation.Is
}

// sameObject compares object labels through normalization, so "fries"
// and "French Fries" count as the same thing.
func sameObject(a, b string) bool {
	return knowledge.Normalize(a) == knowledge.Normalize(b) ||
		strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
