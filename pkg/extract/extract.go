// Package extract pulls structured case facts out of raw legal-document
// text. Extraction is pattern based and deterministic; fields that cannot be
// located stay absent instead of failing the document.
package extract

import (
	"regexp"
	"strings"
)

// KeyDate is one dated event in a document, in the order it appears.
type KeyDate struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// Money is a parsed monetary amount with its inferred currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// CaseFacts is the structured extraction from one document. Zero values mean
// the field was not found in the text.
type CaseFacts struct {
	CaseNumber   string    `json:"case_number,omitempty"`
	Plaintiffs   []string  `json:"plaintiffs,omitempty"`
	Defendants   []string  `json:"defendants,omitempty"`
	Court        string    `json:"court,omitempty"`
	Judge        string    `json:"judge,omitempty"`
	ClaimTypes   []string  `json:"claim_types,omitempty"`
	KeyDates     []KeyDate `json:"key_dates,omitempty"`
	ReliefAmount *Money    `json:"relief_amount,omitempty"`
}

// Empty reports whether nothing at all was extracted.
func (f CaseFacts) Empty() bool {
	return f.CaseNumber == "" &&
		len(f.Plaintiffs) == 0 &&
		len(f.Defendants) == 0 &&
		f.Court == "" &&
		f.Judge == "" &&
		len(f.ClaimTypes) == 0 &&
		len(f.KeyDates) == 0 &&
		f.ReliefAmount == nil
}

var (
	caseNumberPattern = regexp.MustCompile(`(?i)\bcase\s+(?:no\.?|number)[:.\s]*\s*([A-Za-z0-9][A-Za-z0-9:\-./]*[A-Za-z0-9])`)
	plaintiffPattern  = regexp.MustCompile(`(?im)^\s*plaintiffs?\s*[:\-]\s*(.+?)\s*$`)
	defendantPattern  = regexp.MustCompile(`(?im)^\s*defendants?\s*[:\-]\s*(.+?)\s*$`)
	captionPattern    = regexp.MustCompile(`(?im)^\s*(.+?)\s+vs?\.\s+(.+?)\s*,?\s*$`)
	courtPattern      = regexp.MustCompile(`(?im)^\s*((?:in the\s+)?[^\n]*\bcourt\b[^\n]*?)\s*$`)
	judgePattern      = regexp.MustCompile(`(?i)\b(?:honorable|hon\.|judge)\s+([A-Z][A-Za-z.'-]+(?:\s+[A-Z][A-Za-z.'-]+){0,3})`)
)

// Extractor extracts CaseFacts from document text. The claim dictionary is
// fixed at construction so identical inputs always produce identical facts.
type Extractor struct {
	claims []string
}

// NewExtractorParams contains configuration for creating an Extractor.
type NewExtractorParams struct {
	// ExtraClaimTypes extends the built-in claim dictionary.
	ExtraClaimTypes []string
}

// NewExtractor creates a new Extractor.
func NewExtractor(params NewExtractorParams) *Extractor {
	claims := make([]string, 0, len(defaultClaimTypes)+len(params.ExtraClaimTypes))
	claims = append(claims, defaultClaimTypes...)
	for _, claim := range params.ExtraClaimTypes {
		claim = strings.ToLower(strings.TrimSpace(claim))
		if claim != "" && !contains(claims, claim) {
			claims = append(claims, claim)
		}
	}
	return &Extractor{claims: claims}
}

// Extract populates CaseFacts from raw text. Missing sections yield absent
// fields, never an error.
func (e *Extractor) Extract(text string) CaseFacts {
	facts := CaseFacts{}
	if strings.TrimSpace(text) == "" {
		return facts
	}

	if m := caseNumberPattern.FindStringSubmatch(text); m != nil {
		facts.CaseNumber = strings.TrimRight(m[1], ".,;")
	}

	facts.Plaintiffs = extractParties(text, plaintiffPattern)
	facts.Defendants = extractParties(text, defendantPattern)
	if len(facts.Plaintiffs) == 0 && len(facts.Defendants) == 0 {
		if m := captionPattern.FindStringSubmatch(text); m != nil {
			facts.Plaintiffs = splitParties(m[1])
			facts.Defendants = splitParties(m[2])
		}
	}

	if m := courtPattern.FindStringSubmatch(text); m != nil {
		facts.Court = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m[1]), "In the "))
		facts.Court = strings.TrimRight(facts.Court, ".,;")
	}

	if m := judgePattern.FindStringSubmatch(text); m != nil {
		facts.Judge = strings.TrimRight(strings.TrimSpace(m[1]), ".,;")
	}

	facts.ClaimTypes = e.extractClaims(text)
	facts.KeyDates = extractKeyDates(text)
	facts.ReliefAmount = extractRelief(text)

	return facts
}

// extractClaims scans the claim dictionary against the lowercased text.
// Output order follows the dictionary, keeping extraction deterministic.
func (e *Extractor) extractClaims(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, claim := range e.claims {
		if strings.Contains(lower, claim) {
			found = append(found, claim)
		}
	}
	return found
}

func extractParties(text string, pattern *regexp.Regexp) []string {
	var parties []string
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		for _, party := range splitParties(m[1]) {
			if !contains(parties, party) {
				parties = append(parties, party)
			}
		}
	}
	return parties
}

var corporateSuffixes = map[string]bool{
	"inc": true, "inc.": true, "llc": true, "llc.": true,
	"ltd": true, "ltd.": true, "co": true, "co.": true,
	"corp": true, "corp.": true, "l.p.": true, "lp": true,
}

// splitParties breaks a party list on separators while dropping role
// suffixes like "et al." and re-attaching corporate suffixes split off by
// commas ("XYZ, Inc.").
func splitParties(raw string) []string {
	raw = strings.ReplaceAll(raw, " and ", ";")
	raw = strings.ReplaceAll(raw, "&", ";")
	var parties []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "et al.") || strings.EqualFold(part, "et al") {
			continue
		}
		if corporateSuffixes[strings.ToLower(part)] && len(parties) > 0 {
			parties[len(parties)-1] += ", " + part
			continue
		}
		parties = append(parties, part)
	}
	return parties
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
