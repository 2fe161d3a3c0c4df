package source

import (
	"context"
	"strings"
	"testing"

	"sciquiz-service/internal/domain"
)

func TestParseQuestionJSONDirect(t *testing.T) {
	text := `[{"question":"Q1","options":["a","b"],"answer":1,"explanation":"b"}]`
	records := ParseQuestionJSON(text)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["question"] != "Q1" {
		t.Fatalf("unexpected record: %v", records[0])
	}
}

func TestParseQuestionJSONExtractsWrappedArray(t *testing.T) {
	text := "Here are your questions:\n```json\n" +
		`[{"question":"Q1","options":["a","b"],"answer":0},{"question":"Q2","options":["c","d"],"answer":1}]` +
		"\n```\nLet me know if you need more."
	records := ParseQuestionJSON(text)
	if len(records) != 2 {
		t.Fatalf("expected 2 records from wrapped text, got %d", len(records))
	}
}

func TestParseQuestionJSONGarbageYieldsNil(t *testing.T) {
	for _, text := range []string{"", "no json here", "[not, valid, json"} {
		if records := ParseQuestionJSON(text); records != nil {
			t.Fatalf("expected nil for %q, got %v", text, records)
		}
	}
}

func TestBuildPromptRequestsExactCountAndLanguage(t *testing.T) {
	qctx := domain.QuizContext{ClassID: "class6", Level: "Easy", TopicID: 1, Language: "ta"}
	prompt := buildPrompt(qctx, 15)
	for _, want := range []string{"exactly 15", "Class class6", "Level Easy", "Topic Chemistry", "Tamil"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGeminiGenerator(context.Background(), "", ""); err == nil {
		t.Fatalf("expected error without API key")
	}
}
