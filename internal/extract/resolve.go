package extract

import (
	"sort"
	"strings"

	"github.com/wrenfold/kith/internal/store"
)

// Resolution is the outcome of matching one mentioned name against the
// roster.
type Resolution struct {
	Name string
	// PersonID is set when the name linked to exactly one person.
	PersonID string
	// IsNew is set when the name matched nobody.
	IsNew bool
	// Ambiguous is set when the name could not be safely linked;
	// Candidates holds the roster entries it might be.
	Ambiguous  bool
	Candidates []CandidateMatch
	// PotentialDuplicateOf flags a new person that still resembles an
	// existing one closely enough to surface for the user.
	PotentialDuplicateOf string
}

// duplicateScoreFloor is the similarity above which a new person gets a
// potential-duplicate flag.
const duplicateScoreFloor = 0.4

// candidateScoreFloor is the similarity above which a roster entry counts
// as a candidate for an ambiguous name.
const candidateScoreFloor = 0.2

// ResolveName matches one mentioned name against the roster.
//
// Linking is deliberately conservative: only an exact full-name or
// nickname match against exactly one person links automatically. A bare
// name that merely resembles roster entries is reported ambiguous, even
// with a single candidate, because "David" in a new story is not proof
// it is the David already on file.
func ResolveName(name string, roster []*store.Person, confirmedPresent, confirmedNew []string) Resolution {
	res := Resolution{Name: name}

	if containsFold(confirmedNew, name) {
		res.IsNew = true
		return res
	}

	var exact []*store.Person
	for _, p := range roster {
		if strings.EqualFold(p.Name, name) || (p.Nickname != "" && strings.EqualFold(p.Nickname, name)) {
			exact = append(exact, p)
		}
	}
	if len(exact) == 1 {
		res.PersonID = exact[0].ID
		return res
	}
	if len(exact) > 1 {
		res.Ambiguous = true
		for _, p := range exact {
			res.Candidates = append(res.Candidates, CandidateMatch{
				ID: p.ID, Name: p.Name, Reason: "exact name match", Score: 1.0,
			})
		}
		return res
	}

	// No exact match. Score partial candidates.
	type scored struct {
		person *store.Person
		score  float64
		reason string
	}
	var candidates []scored
	for _, p := range roster {
		score, reason := ScoreNameMatch(name, p.Name, p.Nickname)
		if score >= candidateScoreFloor {
			candidates = append(candidates, scored{p, score, reason})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) == 0 {
		res.IsNew = true
		return res
	}

	// The user confirmed this name refers to someone present; with a
	// single candidate that is enough to link.
	if containsFold(confirmedPresent, name) && len(candidates) == 1 {
		res.PersonID = candidates[0].person.ID
		return res
	}

	res.Ambiguous = true
	for _, c := range candidates {
		res.Candidates = append(res.Candidates, CandidateMatch{
			ID: c.person.ID, Name: c.person.Name, Reason: c.reason, Score: c.score,
		})
	}
	return res
}

// FlagDuplicate returns the id of the closest roster entry when a new
// person's name resembles it enough to warrant a duplicate flag.
func FlagDuplicate(name string, roster []*store.Person) string {
	bestID := ""
	bestScore := 0.0
	for _, p := range roster {
		score, _ := ScoreNameMatch(name, p.Name, p.Nickname)
		if score > bestScore {
			bestScore = score
			bestID = p.ID
		}
	}
	if bestScore >= duplicateScoreFloor {
		return bestID
	}
	return ""
}

// ScoreNameMatch scores how strongly mentioned resembles a roster entry.
// Signals accumulate and cap at 1.0:
//
//	exact full-name match  +0.5
//	nickname match         +0.4
//	substring containment  +0.3
//	shared first name      +0.2
func ScoreNameMatch(mentioned, rosterName, nickname string) (float64, string) {
	m := strings.ToLower(strings.TrimSpace(mentioned))
	full := strings.ToLower(strings.TrimSpace(rosterName))
	nick := strings.ToLower(strings.TrimSpace(nickname))
	if m == "" || full == "" {
		return 0, ""
	}

	score := 0.0
	var reasons []string

	if m == full {
		score += 0.5
		reasons = append(reasons, "exact name match")
	}
	if nick != "" && m == nick {
		score += 0.4
		reasons = append(reasons, "nickname match")
	}
	if m != full && (strings.Contains(full, m) || strings.Contains(m, full)) {
		score += 0.3
		reasons = append(reasons, "partial name match")
	}
	if firstWord(m) == firstWord(full) && m != full {
		score += 0.2
		reasons = append(reasons, "first name matches")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, strings.Join(reasons, ", ")
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
