// Package relation defines the fixed relation-type vocabulary for kith,
// along with the risk classes and enumerations shared by the prompt builder,
// the extraction pipeline, and the store.
//
// The vocabulary is a wire contract: the strings are case-sensitive and must
// match exactly what the model is instructed to emit.
package relation

// Type is one of the fixed relation types a fact can carry.
type Type string

const (
	Knows             Type = "KNOWS"
	Likes             Type = "LIKES"
	Dislikes          Type = "DISLIKES"
	AssociatedWith    Type = "ASSOCIATED_WITH"
	Experienced       Type = "EXPERIENCED"
	HasSkill          Type = "HAS_SKILL"
	Owns              Type = "OWNS"
	HasImportantDate  Type = "HAS_IMPORTANT_DATE"
	Is                Type = "IS"
	Believes          Type = "BELIEVES"
	Fears             Type = "FEARS"
	WantsToAchieve    Type = "WANTS_TO_ACHIEVE"
	StrugglesWith     Type = "STRUGGLES_WITH"
	CaresFor          Type = "CARES_FOR"
	DependsOn         Type = "DEPENDS_ON"
	RegularlyDoes     Type = "REGULARLY_DOES"
	PrefersOver       Type = "PREFERS_OVER"
	UsedToBe          Type = "USED_TO_BE"
	SensitiveTo       Type = "SENSITIVE_TO"
	UncomfortableWith Type = "UNCOMFORTABLE_WITH"
)

// All lists every relation type in vocabulary order.
var All = []Type{
	Knows, Likes, Dislikes, AssociatedWith, Experienced,
	HasSkill, Owns, HasImportantDate, Is, Believes,
	Fears, WantsToAchieve, StrugglesWith, CaresFor, DependsOn,
	RegularlyDoes, PrefersOver, UsedToBe, SensitiveTo, UncomfortableWith,
}

var valid = func() map[Type]bool {
	m := make(map[Type]bool, len(All))
	for _, t := range All {
		m[t] = true
	}
	return m
}()

// Valid reports whether t is part of the vocabulary. Matching is exact and
// case-sensitive.
func Valid(t Type) bool {
	return valid[t]
}

// RiskClass groups relation types by how much harm a wrong auto-accepted fact
// can do. The acceptance router keys its confidence thresholds off this.
type RiskClass int

const (
	// RiskLow covers everyday observations.
	RiskLow RiskClass = iota
	// RiskSensitive covers facts about a person's vulnerabilities.
	RiskSensitive
	// RiskDependency covers person-to-person dependency claims.
	RiskDependency
	// RiskBelief covers BELIEVES facts, which always need a human.
	RiskBelief
)

// ClassOf returns the risk class for a relation type. Types not explicitly
// classified fall into RiskLow.
func ClassOf(t Type) RiskClass {
	switch t {
	case Fears, StrugglesWith, UncomfortableWith, SensitiveTo:
		return RiskSensitive
	case CaresFor, DependsOn:
		return RiskDependency
	case Believes:
		return RiskBelief
	default:
		return RiskLow
	}
}

// AutoAcceptThreshold returns the minimum confidence at which a fact of the
// given type may be persisted without human review. BELIEVES facts return a
// threshold above 1.0 so no confidence can clear it.
func AutoAcceptThreshold(t Type) float64 {
	switch ClassOf(t) {
	case RiskSensitive:
		return 0.90
	case RiskDependency:
		return 0.95
	case RiskBelief:
		return 1.01
	default:
		return 0.85
	}
}

// Intensity grades how strongly a fact holds.
type Intensity string

const (
	IntensityWeak       Intensity = "weak"
	IntensityMedium     Intensity = "medium"
	IntensityStrong     Intensity = "strong"
	IntensityVeryStrong Intensity = "very_strong"
)

// ValidIntensity reports whether s is a known intensity. Empty is allowed;
// intensity is optional.
func ValidIntensity(s Intensity) bool {
	switch s {
	case "", IntensityWeak, IntensityMedium, IntensityStrong, IntensityVeryStrong:
		return true
	}
	return false
}

// Status is the temporal status of a fact.
type Status string

const (
	StatusCurrent    Status = "current"
	StatusPast       Status = "past"
	StatusFuture     Status = "future"
	StatusAspiration Status = "aspiration"
)

// ValidStatus reports whether s is a known status. Empty is allowed and
// defaults to current downstream.
func ValidStatus(s Status) bool {
	switch s {
	case "", StatusCurrent, StatusPast, StatusFuture, StatusAspiration:
		return true
	}
	return false
}

// Source identifies where a fact came from.
type Source string

const (
	SourceManual       Source = "manual"
	SourceAIExtraction Source = "ai_extraction"
	SourceImport       Source = "import"
	SourceReview       Source = "review"
)
