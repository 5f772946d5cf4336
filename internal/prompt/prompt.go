// Package prompt builds the extraction prompt sent to the model.
//
// There is a single canonical prompt. The strategy parameter only
// controls how much guidance and how many examples it carries, the
// vocabulary, output shape, and disambiguation rules never vary.
package prompt

import (
	"fmt"
	"strings"

	"github.com/wrenfold/kith/internal/relation"
)

// Strategy selects the prompt variant.
type Strategy string

const (
	// StrategyConcise is the default: compact instructions, no examples.
	StrategyConcise Strategy = "concise"
	// StrategyDetailed adds worked examples for models that need them.
	StrategyDetailed Strategy = "detailed"
)

// ValidStrategy reports whether s is a known strategy.
func ValidStrategy(s Strategy) bool {
	return s == StrategyConcise || s == StrategyDetailed
}

// Person is one roster entry given to the model for identity context.
type Person struct {
	ID   string
	Name string
}

// KnownFact is one existing fact given to the model for conflict context.
type KnownFact struct {
	PersonName   string
	RelationType relation.Type
	ObjectLabel  string
}

// Input carries everything the prompt needs.
type Input struct {
	Story      string
	Roster     []Person
	KnownFacts []KnownFact
	// ConfirmedPresent names people the user has confirmed appear in the
	// story; the model must link them, never flag them as ambiguous.
	ConfirmedPresent []string
	// ConfirmedNew names people the user has confirmed are new; the model
	// must mark them new, never match them against the roster.
	ConfirmedNew []string
	Strategy     Strategy
}

// Build renders the extraction prompt for in.
func Build(in Input) (string, error) {
	if strings.TrimSpace(in.Story) == "" {
		return "", fmt.Errorf("story text is empty")
	}
	strategy := in.Strategy
	if strategy == "" {
		strategy = StrategyConcise
	}
	if !ValidStrategy(strategy) {
		return "", fmt.Errorf("unknown prompt strategy %q", strategy)
	}

	var b strings.Builder

	b.WriteString("You extract relationship facts from a personal journal entry.\n")
	b.WriteString("Identify every person mentioned and every typed relation the text supports.\n")
	b.WriteString("Only extract what the text states or strongly implies. Do not invent facts.\n\n")

	b.WriteString("RELATION TYPES (use these exact uppercase values, nothing else):\n")
	for _, t := range relation.All {
		b.WriteString("  ")
		b.WriteString(string(t))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("FIELD VALUES:\n")
	b.WriteString("  personType: primary (the story is about them), mentioned, placeholder\n")
	b.WriteString("  intensity: weak, medium, strong, very_strong (omit if unclear)\n")
	b.WriteString("  status: current, past, future, aspiration (default current)\n")
	b.WriteString("  confidence: 0.0 to 1.0, your certainty that the text supports the fact\n\n")

	if len(in.Roster) > 0 {
		b.WriteString("KNOWN PEOPLE (the user's existing roster):\n")
		for _, p := range in.Roster {
			fmt.Fprintf(&b, "  %s: %s\n", p.ID, p.Name)
		}
		b.WriteString("\n")
	}

	if len(in.KnownFacts) > 0 {
		b.WriteString("KNOWN FACTS (flag contradictions against these in conflicts):\n")
		for _, f := range in.KnownFacts {
			fmt.Fprintf(&b, "  %s %s %s\n", f.PersonName, f.RelationType, f.ObjectLabel)
		}
		b.WriteString("\n")
	}

	b.WriteString("IDENTITY RULES:\n")
	b.WriteString("- A name that exactly matches one known person links to that person's id.\n")
	b.WriteString("- A bare first name that only partially matches known people is AMBIGUOUS:\n")
	b.WriteString("  report it under ambiguousMatches with the candidates. Never guess the link.\n")
	b.WriteString("- A name matching nobody is a new person: set isNew true and omit the id.\n")

	if len(in.ConfirmedPresent) > 0 {
		fmt.Fprintf(&b, "- The user confirmed these people appear in the story, link them directly: %s\n",
			strings.Join(in.ConfirmedPresent, ", "))
	}
	if len(in.ConfirmedNew) > 0 {
		fmt.Fprintf(&b, "- The user confirmed these are new people, do not match them against the roster: %s\n",
			strings.Join(in.ConfirmedNew, ", "))
	}
	b.WriteString("\n")

	if strategy == StrategyDetailed {
		writeExamples(&b)
	}

	b.WriteString("Respond with ONLY a JSON object in this shape, no prose:\n")
	b.WriteString(responseShape)
	b.WriteString("\n")

	b.WriteString("STORY:\n")
	b.WriteString(in.Story)
	b.WriteString("\n")

	return b.String(), nil
}

const responseShape = `{
  "people": [
    {"id": "existing-id-or-omit", "name": "Mike Johnson", "isNew": false, "personType": "primary", "confidence": 0.95}
  ],
  "relations": [
    {"subjectName": "Mike Johnson", "relationType": "LIKES", "objectLabel": "hiking", "objectType": "activity", "intensity": "strong", "status": "current", "confidence": 0.9, "category": "food"}
  ],
  "conflicts": [
    {"personName": "Mike Johnson", "description": "story says he now dislikes carrots but a known fact says he likes them"}
  ],
  "ambiguousMatches": [
    {"nameInStory": "David", "possibleMatches": [{"id": "existing-id", "name": "David Smith", "reason": "first name matches"}]}
  ]
}
`

func writeExamples(b *strings.Builder) {
	b.WriteString("EXAMPLES:\n")
	b.WriteString("Story: \"Mike told me he's started running every morning and can't stand carrots anymore.\"\n")
	b.WriteString("Relations: Mike REGULARLY_DOES running (current, confidence 0.9);\n")
	b.WriteString("Mike DISLIKES carrots (current, confidence 0.9).\n")
	b.WriteString("If a known fact says Mike LIKES carrots, also report a conflict for it.\n\n")
	b.WriteString("Story: \"Had coffee with Sarah. She's terrified of flying.\"\n")
	b.WriteString("Relations: Sarah FEARS flying (strong, confidence 0.95).\n\n")
}
