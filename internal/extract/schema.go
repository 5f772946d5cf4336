// Package extract runs the story extraction pipeline: prompt the model,
// parse and validate its response, resolve identities against the roster,
// detect conflicts with known facts, and route each extraction to
// auto-accept, human review, or rejection.
package extract

import (
	"github.com/wrenfold/kith/internal/relation"
)

// Response is the JSON object the model is asked to return.
type Response struct {
	People           []PersonMention   `json:"people"`
	Relations        []RelationMention `json:"relations"`
	Conflicts        []ConflictMention `json:"conflicts"`
	AmbiguousMatches []AmbiguousMatch  `json:"ambiguousMatches"`
}

// PersonMention is one person the model found in the story.
type PersonMention struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	IsNew                bool    `json:"isNew"`
	PotentialDuplicateOf string  `json:"potentialDuplicateOf"`
	PersonType           string  `json:"personType"`
	Confidence           float64 `json:"confidence"`
}

// RelationMention is one typed fact the model extracted.
type RelationMention struct {
	SubjectID    string             `json:"subjectId"`
	SubjectName  string             `json:"subjectName"`
	RelationType relation.Type      `json:"relationType"`
	ObjectLabel  string             `json:"objectLabel"`
	ObjectType   string             `json:"objectType"`
	Intensity    relation.Intensity `json:"intensity"`
	Status       relation.Status    `json:"status"`
	Confidence   float64            `json:"confidence"`
	Category     string             `json:"category"`
}

// ConflictMention is a contradiction the model itself noticed.
// Local conflict detection runs regardless; these only add context.
type ConflictMention struct {
	PersonName  string `json:"personName"`
	Description string `json:"description"`
}

// AmbiguousMatch reports a name the model could not safely link.
type AmbiguousMatch struct {
	NameInStory     string           `json:"nameInStory"`
	PossibleMatches []CandidateMatch `json:"possibleMatches"`
}

// CandidateMatch is one roster candidate for an ambiguous name.
type CandidateMatch struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score,omitempty"`
}
