// File path: internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/llm"
)

// PresetKnowledgeBases is the fixed vocabulary the model is steered toward.
// A recommendation outside the list is kept verbatim but flagged as new.
var PresetKnowledgeBases = []string{
	"Technical Documentation",
	"Contracts",
	"Research Papers",
	"Financial Reports",
	"Product Manuals",
	"Meeting Notes",
	"General Reference",
}

// Recommendation is the analyzer's answer for where a document belongs.
type Recommendation struct {
	KnowledgeBaseName string  `json:"knowledge_base_name"`
	IsNew             bool    `json:"is_new_knowledge_base"`
	DocumentType      string  `json:"document_type"`
	Reason            string  `json:"reason"`
	Confidence        float64 `json:"confidence"`
}

// Analyzer reduces a document to a prompt-sized excerpt and asks the chat
// backend to recommend a knowledge base for it. Its output is advisory; the
// caller decides whether to act on it.
type Analyzer struct {
	chat llm.Provider
}

// New constructs an Analyzer over a chat backend.
func New(chat llm.Provider) *Analyzer {
	return &Analyzer{chat: chat}
}

const systemPrompt = `You are a document-classification assistant for a document knowledge hub.
Given a document excerpt, recommend the best knowledge base for it.
Prefer one of the existing knowledge bases when it fits; propose a new name only when none fit.
Respond with a single JSON object:
{"knowledge_base_name": string, "is_new_knowledge_base": bool, "document_type": string, "reason": string, "confidence": number between 0 and 1}`

// Recommend classifies a document into a knowledge base. Malformed model
// output degrades to a low-confidence default rather than an error; only a
// transport failure is returned as an error.
func (a *Analyzer) Recommend(ctx context.Context, content, filename string) (Recommendation, error) {
	if a == nil || a.chat == nil {
		return Recommendation{}, fmt.Errorf("analyzer not configured")
	}
	if strings.TrimSpace(content) == "" {
		return lowConfidenceDefault("empty document"), nil
	}

	excerpt, strategy := Reduce(content)
	userPrompt := fmt.Sprintf(
		"Filename: %s\nProcessing strategy: %s\nExisting knowledge bases: %s\n\nDocument excerpt:\n%s",
		filename, strategy, strings.Join(PresetKnowledgeBases, ", "), excerpt,
	)

	reply, err := a.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommendation chat: %w", err)
	}

	rec := parseRecommendation(reply)
	rec = coercePreset(rec)
	common.Logger().Info("analyzer: recommendation ready",
		"file", filename, "strategy", strategy, "kb", rec.KnowledgeBaseName,
		"new", rec.IsNew, "confidence", rec.Confidence)
	return rec, nil
}

// coercePreset snaps near-matches onto the preset list; genuinely novel names
// stay as given with IsNew forced on.
func coercePreset(rec Recommendation) Recommendation {
	name := strings.TrimSpace(rec.KnowledgeBaseName)
	if name == "" {
		return lowConfidenceDefault("model returned no knowledge base name")
	}
	lowered := strings.ToLower(name)
	for _, preset := range PresetKnowledgeBases {
		presetLower := strings.ToLower(preset)
		if lowered == presetLower ||
			strings.Contains(presetLower, lowered) || strings.Contains(lowered, presetLower) {
			rec.KnowledgeBaseName = preset
			rec.IsNew = false
			return rec
		}
	}
	rec.KnowledgeBaseName = name
	rec.IsNew = true
	return rec
}

func lowConfidenceDefault(reason string) Recommendation {
	return Recommendation{
		KnowledgeBaseName: "General Reference",
		DocumentType:      "unknown",
		Reason:            reason,
		Confidence:        0.1,
	}
}
