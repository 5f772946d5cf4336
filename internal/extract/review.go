package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/wrenfold/kith/internal/relation"
	"github.com/wrenfold/kith/internal/store"
)

// Reviewer applies human decisions to the pending queue.
type Reviewer struct {
	store store.Store
}

// NewReviewer creates a Reviewer backed by s.
func NewReviewer(s store.Store) *Reviewer {
	return &Reviewer{store: s}
}

// Edit carries reviewer corrections applied on approval. Zero-value
// fields keep the pending extraction's original values.
type Edit struct {
	RelationType relation.Type
	ObjectLabel  string
	Intensity    relation.Intensity
	Category     string
}

// Approve promotes a pending extraction to a stored fact. The reviewed
// fact carries full confidence: a human has vouched for it.
func (r *Reviewer) Approve(ctx context.Context, pendingID, note string) (string, error) {
	return r.approve(ctx, pendingID, note, nil)
}

// EditAndApprove applies corrections, then promotes the result.
func (r *Reviewer) EditAndApprove(ctx context.Context, pendingID, note string, edit Edit) (string, error) {
	return r.approve(ctx, pendingID, note, &edit)
}

func (r *Reviewer) approve(ctx context.Context, pendingID, note string, edit *Edit) (string, error) {
	p, err := r.store.GetPending(ctx, pendingID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("pending extraction %s not found", pendingID)
	}
	if p.ReviewStatus != store.ReviewPending {
		return "", fmt.Errorf("pending extraction %s is already %s", pendingID, p.ReviewStatus)
	}

	outcome := store.ReviewApproved
	if edit != nil {
		outcome = store.ReviewEdited
		if edit.RelationType != "" {
			if !relation.Valid(edit.RelationType) {
				return "", fmt.Errorf("invalid relation type %q", edit.RelationType)
			}
			p.RelationType = edit.RelationType
		}
		if strings.TrimSpace(edit.ObjectLabel) != "" {
			p.ObjectLabel = edit.ObjectLabel
		}
		if edit.Intensity != "" {
			if !relation.ValidIntensity(edit.Intensity) {
				return "", fmt.Errorf("invalid intensity %q", edit.Intensity)
			}
			p.Intensity = edit.Intensity
		}
		if edit.Category != "" {
			p.Category = edit.Category
		}
	}

	personID := p.PersonID
	if personID == "" {
		// The subject was never linked; the reviewer approving the fact
		// confirms the person is real.
		personID, err = r.store.AddPerson(ctx, &store.Person{
			Name:         p.PersonName,
			Role:         "mentioned",
			MentionCount: 1,
		})
		if err != nil {
			return "", fmt.Errorf("creating person %s: %w", p.PersonName, err)
		}
	}

	factID, err := r.store.AddFact(ctx, &store.Fact{
		PersonID:     personID,
		RelationType: p.RelationType,
		ObjectLabel:  p.ObjectLabel,
		ObjectType:   p.ObjectType,
		Intensity:    p.Intensity,
		Category:     p.Category,
		Confidence:   1.0,
		Status:       p.Status,
		Source:       relation.SourceReview,
		StoryID:      p.StoryID,
	})
	if err != nil {
		return "", fmt.Errorf("saving approved fact: %w", err)
	}

	if err := r.store.ResolvePending(ctx, pendingID, outcome, note); err != nil {
		return "", err
	}
	return factID, r.store.LogEvent(ctx, &store.ExtractionEvent{
		StoryID:   p.StoryID,
		EventType: store.EventPendingResolved,
		PersonID:  personID,
		FactID:    factID,
		PendingID: pendingID,
		Detail:    outcome,
	})
}

// Reject discards a pending extraction. The record stays as review
// history; no fact is created.
func (r *Reviewer) Reject(ctx context.Context, pendingID, note string) error {
	p, err := r.store.GetPending(ctx, pendingID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("pending extraction %s not found", pendingID)
	}
	if err := r.store.ResolvePending(ctx, pendingID, store.ReviewRejected, note); err != nil {
		return err
	}
	return r.store.LogEvent(ctx, &store.ExtractionEvent{
		StoryID:   p.StoryID,
		EventType: store.EventPendingResolved,
		PersonID:  p.PersonID,
		PendingID: pendingID,
		Detail:    store.ReviewRejected,
	})
}
