// File path: internal/analyzer/parse.go
package analyzer

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	jsonSpanPattern = regexp.MustCompile(`(?s)\{.*\}`)

	nameFieldPattern       = regexp.MustCompile(`"knowledge_base_name"\s*:\s*"([^"]*)"`)
	isNewFieldPattern      = regexp.MustCompile(`"is_new_knowledge_base"\s*:\s*(true|false)`)
	docTypeFieldPattern    = regexp.MustCompile(`"document_type"\s*:\s*"([^"]*)"`)
	reasonFieldPattern     = regexp.MustCompile(`"reason"\s*:\s*"([^"]*)"`)
	confidenceFieldPattern = regexp.MustCompile(`"confidence"\s*:\s*([0-9.]+)`)
)

// parseRecommendation recovers a Recommendation from free-text model output.
// Three tiers: strict JSON, then a regex-extracted {...} span, then
// field-by-field regex. Nothing recoverable yields the low-confidence
// default; malformed output is never an error.
func parseRecommendation(reply string) Recommendation {
	trimmed := strings.TrimSpace(reply)

	var rec Recommendation
	if err := json.Unmarshal([]byte(trimmed), &rec); err == nil && rec.KnowledgeBaseName != "" {
		return clampConfidence(rec)
	}

	if span := jsonSpanPattern.FindString(trimmed); span != "" {
		if err := json.Unmarshal([]byte(span), &rec); err == nil && rec.KnowledgeBaseName != "" {
			return clampConfidence(rec)
		}
	}

	if fields, ok := parseFields(trimmed); ok {
		return clampConfidence(fields)
	}
	return lowConfidenceDefault("unparseable model output")
}

func parseFields(text string) (Recommendation, bool) {
	name := nameFieldPattern.FindStringSubmatch(text)
	if name == nil {
		return Recommendation{}, false
	}
	rec := Recommendation{KnowledgeBaseName: name[1]}
	if m := isNewFieldPattern.FindStringSubmatch(text); m != nil {
		rec.IsNew = m[1] == "true"
	}
	if m := docTypeFieldPattern.FindStringSubmatch(text); m != nil {
		rec.DocumentType = m[1]
	}
	if m := reasonFieldPattern.FindStringSubmatch(text); m != nil {
		rec.Reason = m[1]
	}
	if m := confidenceFieldPattern.FindStringSubmatch(text); m != nil {
		if value, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.Confidence = value
		}
	}
	return rec, true
}

func clampConfidence(rec Recommendation) Recommendation {
	if rec.Confidence < 0 {
		rec.Confidence = 0
	}
	if rec.Confidence > 1 {
		rec.Confidence = 1
	}
	return rec
}
