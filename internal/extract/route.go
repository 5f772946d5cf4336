package extract

import (
	"fmt"

	"github.com/wrenfold/kith/internal/relation"
)

// Fate is where a parsed extraction goes.
type Fate string

const (
	FateAccept Fate = "accept"
	FateReview Fate = "review"
	FateReject Fate = "reject"
)

// rejectFloor is the confidence below which an extraction is discarded
// outright rather than queued for review.
const rejectFloor = 0.2

// Decision routes one extraction.
type Decision struct {
	Fate   Fate
	Reason string
	// SupersedesFactID is set when accepting the fact should retire an
	// existing one.
	SupersedesFactID string
}

// Route decides the fate of one extraction given its conflicts.
//
// Hard rules, in order:
//   - confidence below the reject floor is discarded
//   - BELIEVES always goes to human review regardless of confidence
//   - any high-severity conflict forces review; these are never
//     auto-resolved
//   - medium-severity conflicts force review
//   - otherwise the risk-class threshold for the relation type decides
//
// Low-severity temporal updates do not block acceptance; they ride along
// as a supersession.
func Route(m RelationMention, conflicts []Conflict) Decision {
	if m.Confidence < rejectFloor {
		return Decision{
			Fate:   FateReject,
			Reason: fmt.Sprintf("confidence %.2f below reject floor %.2f", m.Confidence, rejectFloor),
		}
	}

	if m.RelationType == relation.Believes {
		return Decision{
			Fate:   FateReview,
			Reason: "beliefs always require human review",
		}
	}

	var supersedes string
	for _, c := range conflicts {
		switch c.Severity {
		case SeverityHigh:
			return Decision{
				Fate:   FateReview,
				Reason: fmt.Sprintf("high-severity %s: %s", c.Type, c.Description),
			}
		case SeverityMedium:
			return Decision{
				Fate:   FateReview,
				Reason: fmt.Sprintf("%s: %s", c.Type, c.Description),
			}
		case SeverityLow:
			if c.Supersedes() && supersedes == "" {
				supersedes = c.ExistingFactID
			}
		}
	}

	threshold := relation.AutoAcceptThreshold(m.RelationType)
	if m.Confidence >= threshold {
		return Decision{
			Fate:             FateAccept,
			Reason:           fmt.Sprintf("confidence %.2f meets %.2f threshold", m.Confidence, threshold),
			SupersedesFactID: supersedes,
		}
	}
	return Decision{
		Fate: FateReview,
		Reason: fmt.Sprintf("confidence %.2f below %.2f threshold for %s",
			m.Confidence, threshold, m.RelationType),
	}
}
