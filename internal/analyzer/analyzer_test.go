// File path: internal/analyzer/analyzer_test.go
package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/corpusworks/knowledgehub/internal/llm"
)

type scriptedChat struct {
	reply string
	err   error
	seen  []llm.Message
}

func (s *scriptedChat) Name() string { return "scripted" }

func (s *scriptedChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	s.seen = messages
	return s.reply, s.err
}

func (s *scriptedChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestParseStrictJSON(t *testing.T) {
	rec := parseRecommendation(`{"knowledge_base_name": "Contracts", "is_new_knowledge_base": false, "document_type": "agreement", "reason": "legal language", "confidence": 0.92}`)
	if rec.KnowledgeBaseName != "Contracts" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
	if rec.Confidence != 0.92 {
		t.Fatalf("confidence = %f", rec.Confidence)
	}
}

func TestParseJSONWithSurroundingProse(t *testing.T) {
	reply := "Sure! Here is my recommendation:\n```json\n" +
		`{"knowledge_base_name": "Research Papers", "is_new_knowledge_base": false, "document_type": "paper", "reason": "citations", "confidence": 0.8}` +
		"\n```\nLet me know if you need anything else."
	rec := parseRecommendation(reply)
	if rec.KnowledgeBaseName != "Research Papers" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
}

func TestParseFieldByFieldFallback(t *testing.T) {
	// Trailing comma makes both JSON tiers fail.
	reply := `{"knowledge_base_name": "Contracts", "confidence": 0.7,}`
	rec := parseRecommendation(reply)
	if rec.KnowledgeBaseName != "Contracts" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
	if rec.Confidence != 0.7 {
		t.Fatalf("confidence = %f", rec.Confidence)
	}
}

func TestParseGarbageYieldsDefault(t *testing.T) {
	rec := parseRecommendation("I have no idea what this document is.")
	if rec.KnowledgeBaseName != "General Reference" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
	if rec.Confidence > 0.2 {
		t.Fatalf("garbage output got confidence %f", rec.Confidence)
	}
}

func TestParseClampsConfidence(t *testing.T) {
	rec := parseRecommendation(`{"knowledge_base_name": "Contracts", "confidence": 3.5}`)
	if rec.Confidence != 1 {
		t.Fatalf("confidence = %f, want clamped to 1", rec.Confidence)
	}
}

func TestCoercePresetCaseInsensitive(t *testing.T) {
	rec := coercePreset(Recommendation{KnowledgeBaseName: "contracts", IsNew: true})
	if rec.KnowledgeBaseName != "Contracts" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
	if rec.IsNew {
		t.Fatal("preset match still flagged as new")
	}
}

func TestCoercePresetNearMatch(t *testing.T) {
	rec := coercePreset(Recommendation{KnowledgeBaseName: "Technical Documentation Library"})
	if rec.KnowledgeBaseName != "Technical Documentation" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
}

func TestCoercePresetNovelName(t *testing.T) {
	rec := coercePreset(Recommendation{KnowledgeBaseName: "Quantum Recipes"})
	if rec.KnowledgeBaseName != "Quantum Recipes" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
	if !rec.IsNew {
		t.Fatal("novel name not flagged as new")
	}
}

func TestRecommendBuildsPrompt(t *testing.T) {
	chat := &scriptedChat{reply: `{"knowledge_base_name": "Contracts", "is_new_knowledge_base": false, "document_type": "agreement", "reason": "terms", "confidence": 0.9}`}
	a := New(chat)
	rec, err := a.Recommend(context.Background(), "This services agreement binds both parties.", "agreement.txt")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.KnowledgeBaseName != "Contracts" {
		t.Fatalf("name = %q", rec.KnowledgeBaseName)
	}
	if len(chat.seen) != 2 {
		t.Fatalf("got %d messages, want system + user", len(chat.seen))
	}
	if chat.seen[0].Role != "system" || chat.seen[1].Role != "user" {
		t.Fatalf("roles = %s/%s", chat.seen[0].Role, chat.seen[1].Role)
	}
	if !strings.Contains(chat.seen[1].Content, "agreement.txt") {
		t.Fatal("user prompt missing filename")
	}
	if !strings.Contains(chat.seen[1].Content, StrategyFullText) {
		t.Fatal("user prompt missing strategy label")
	}
}

func TestRecommendEmptyContent(t *testing.T) {
	a := New(&scriptedChat{})
	rec, err := a.Recommend(context.Background(), "   ", "empty.txt")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Confidence > 0.2 {
		t.Fatalf("empty document got confidence %f", rec.Confidence)
	}
}

func TestRecommendChatFailure(t *testing.T) {
	a := New(&scriptedChat{err: errors.New("model offline")})
	if _, err := a.Recommend(context.Background(), "some content", "a.txt"); err == nil {
		t.Fatal("expected error on chat failure")
	}
}
