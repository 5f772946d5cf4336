package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wrenfold/kith/internal/relation"
)

func TestRouteThresholdsByRiskClass(t *testing.T) {
	tests := []struct {
		name       string
		typ        relation.Type
		confidence float64
		want       Fate
	}{
		{"low risk above threshold", relation.Likes, 0.85, FateAccept},
		{"low risk below threshold", relation.Likes, 0.84, FateReview},
		{"sensitive above threshold", relation.Fears, 0.90, FateAccept},
		{"sensitive below threshold", relation.Fears, 0.89, FateReview},
		{"dependency above threshold", relation.DependsOn, 0.95, FateAccept},
		{"dependency below threshold", relation.DependsOn, 0.94, FateReview},
		{"below reject floor", relation.Likes, 0.1, FateReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mention(tt.typ, "something")
			m.Confidence = tt.confidence
			d := Route(m, nil)
			assert.Equal(t, tt.want, d.Fate, d.Reason)
		})
	}
}

func TestRouteBeliefsAlwaysReview(t *testing.T) {
	m := mention(relation.Believes, "the earth is flat")
	m.Confidence = 1.0
	d := Route(m, nil)
	assert.Equal(t, FateReview, d.Fate)
}

func TestRouteHighSeverityConflictForcesReview(t *testing.T) {
	m := mention(relation.Likes, "pesto")
	m.Confidence = 0.99
	d := Route(m, []Conflict{{Type: ConflictIngredient, Severity: SeverityHigh, Description: "nut allergy"}})
	assert.Equal(t, FateReview, d.Fate)
	assert.Contains(t, d.Reason, "high-severity")
}

func TestRouteMediumSeverityConflictForcesReview(t *testing.T) {
	m := mention(relation.Dislikes, "carrots")
	m.Confidence = 0.95
	d := Route(m, []Conflict{{Type: ConflictDirect, Severity: SeverityMedium, Description: "likes carrots"}})
	assert.Equal(t, FateReview, d.Fate)
}

func TestRouteTemporalUpdateAcceptsAndSupersedes(t *testing.T) {
	m := mention(relation.Is, "software engineer")
	m.Confidence = 0.95
	d := Route(m, []Conflict{{
		Type:           ConflictTemporal,
		Severity:       SeverityLow,
		ExistingFactID: "f-old",
	}})
	assert.Equal(t, FateAccept, d.Fate)
	assert.Equal(t, "f-old", d.SupersedesFactID)
}
