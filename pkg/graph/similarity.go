package graph

import (
	"time"

	"github.com/litigraph/backend/pkg/extract"
)

// Reuse-confidence weights. The score is a weighted sum of four attribute
// overlaps, each in [0,1]:
//
//	0.40 * Jaccard(normalized party sets)
//	0.30 * Jaccard(normalized claim-type sets)
//	0.20 * key-date range overlap (shared days / union days)
//	0.10 * relief proximity (1 - |a-b| / max(a,b), same currency only)
//
// A component contributes 0 when either side lacks the attribute. The score
// is symmetric, deterministic, and monotonic: growing any overlap never
// lowers it.
const (
	weightParties = 0.40
	weightClaims  = 0.30
	weightDates   = 0.20
	weightRelief  = 0.10
)

// ReuseConfidence scores how much of one case's extracted content plausibly
// applies to the other, in [0,1].
func ReuseConfidence(a, b extract.CaseFacts) float64 {
	score := weightParties * jaccard(partySet(a), partySet(b))
	score += weightClaims * jaccard(claimSet(a), claimSet(b))
	score += weightDates * dateRangeOverlap(a.KeyDates, b.KeyDates)
	score += weightRelief * reliefProximity(a.ReliefAmount, b.ReliefAmount)
	if score > 1 {
		score = 1
	}
	return score
}

func partySet(facts extract.CaseFacts) map[string]bool {
	set := make(map[string]bool, len(facts.Plaintiffs)+len(facts.Defendants))
	for _, party := range facts.Plaintiffs {
		if key := Normalize(party); key != "" {
			set[key] = true
		}
	}
	for _, party := range facts.Defendants {
		if key := Normalize(party); key != "" {
			set[key] = true
		}
	}
	return set
}

func claimSet(facts extract.CaseFacts) map[string]bool {
	set := make(map[string]bool, len(facts.ClaimTypes))
	for _, claim := range facts.ClaimTypes {
		if key := Normalize(claim); key != "" {
			set[key] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for key := range a {
		if b[key] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// dateRangeOverlap compares the [min, max] key-date spans of two documents
// as shared days over union days. Single-date documents span one day.
func dateRangeOverlap(a, b []extract.KeyDate) float64 {
	aMin, aMax, ok := dateSpan(a)
	if !ok {
		return 0
	}
	bMin, bMax, ok := dateSpan(b)
	if !ok {
		return 0
	}

	overlapStart := maxTime(aMin, bMin)
	overlapEnd := minTime(aMax, bMax)
	if overlapEnd.Before(overlapStart) {
		return 0
	}

	day := 24 * time.Hour
	shared := overlapEnd.Sub(overlapStart) + day
	union := maxTime(aMax, bMax).Sub(minTime(aMin, bMin)) + day
	return float64(shared) / float64(union)
}

func dateSpan(dates []extract.KeyDate) (time.Time, time.Time, bool) {
	var minT, maxT time.Time
	found := false
	for _, kd := range dates {
		t, err := time.Parse("2006-01-02", kd.Date)
		if err != nil {
			continue
		}
		if !found {
			minT, maxT = t, t
			found = true
			continue
		}
		minT = minTime(minT, t)
		maxT = maxTime(maxT, t)
	}
	return minT, maxT, found
}

func reliefProximity(a, b *extract.Money) float64 {
	if a == nil || b == nil || a.Currency != b.Currency {
		return 0
	}
	if a.Amount <= 0 || b.Amount <= 0 {
		return 0
	}
	larger := a.Amount
	smaller := b.Amount
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	return 1 - (larger-smaller)/larger
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
