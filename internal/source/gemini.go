package source

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"google.golang.org/genai"

	"sciquiz-service/internal/domain"
)

// Generator produces raw question records when the question bank and its
// cache are both unavailable.
type Generator interface {
	Generate(ctx context.Context, qctx domain.QuizContext, count int) ([]map[string]any, error)
}

// GeminiGenerator implements Generator against the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

const defaultGeminiModel = "gemini-2.0-flash"

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, qctx domain.QuizContext, count int) ([]map[string]any, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildPrompt(qctx, count)}},
	}}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	records := ParseQuestionJSON(result.Text())
	if len(records) == 0 {
		return nil, fmt.Errorf("gemini returned no parseable questions")
	}
	return records, nil
}

func buildPrompt(qctx domain.QuizContext, count int) string {
	language := "English"
	if qctx.Language == "ta" {
		language = "Tamil"
	}
	return fmt.Sprintf(`Generate exactly %d multiple-choice questions for Class %s, Level %s, Topic %s.
Return a JSON array of objects: { "question": "...", "options": ["..."], "answer": 0, "explanation": "..." }.
Only return JSON if possible; if extra text is included, the JSON array will be extracted.
Language: %s.`, count, qctx.ClassID, qctx.Level, qctx.TopicName(), language)
}

// arrayPattern grabs the first bracketed array substring from free text.
var arrayPattern = regexp.MustCompile(`(?s)(\[.*\])`)

// ParseQuestionJSON parses model output permissively: a direct JSON parse
// first, then a parse of the first bracketed array substring. Unparseable
// text yields nil, never an error; the caller treats that as an empty
// result.
func ParseQuestionJSON(text string) []map[string]any {
	if text == "" {
		return nil
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(text), &records); err == nil {
		return records
	}
	match := arrayPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(match[1]), &records); err != nil {
		return nil
	}
	return records
}
