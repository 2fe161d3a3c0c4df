package question

import (
	"strconv"

	"sciquiz-service/internal/domain"
)

// textFields is the ordered preference list for the question text field.
// A new upstream shape is handled by extending this list, not by new
// branching in consumers.
var textFields = []string{"question", "question_text", "questionText", "q"}

// optionFields is the ordered preference list for the options field.
var optionFields = []string{"options", "opts", "choices"}

// answerFields is the ordered preference list for the correct option index.
var answerFields = []string{"answer", "correct_option_index", "correct", "correctOptionIndex"}

// explanationFields is the ordered preference list for the explanation.
var explanationFields = []string{"explanation", "explain"}

// idFields is the ordered preference list for the record identifier.
var idFields = []string{"id", "_id", "qid"}

// Normalize converts a heterogeneous source record into the canonical
// Question shape. String fields may be flat strings or per-language
// objects; the requested language wins, then "en", then any value.
// A missing or non-numeric correct index becomes domain.UnknownIndex.
func Normalize(raw map[string]any, lang string) domain.Question {
	q := domain.Question{
		ID:           pickString(raw, idFields, lang),
		Text:         pickString(raw, textFields, lang),
		Explanation:  pickString(raw, explanationFields, lang),
		CorrectIndex: pickIndex(raw, answerFields),
		Options:      pickOptions(raw, optionFields, lang),
	}
	if !q.HasAnswer() {
		q.CorrectIndex = domain.UnknownIndex
	}
	return q
}

func pickString(raw map[string]any, fields []string, lang string) string {
	for _, f := range fields {
		if v, ok := raw[f]; ok {
			if s := localizedString(v, lang); s != "" {
				return s
			}
		}
	}
	return ""
}

// localizedString resolves a value that is either a flat string or a
// language-keyed object.
func localizedString(v any, lang string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[lang].(string); ok && s != "" {
			return s
		}
		if s, ok := val["en"].(string); ok && s != "" {
			return s
		}
		for _, inner := range val {
			if s, ok := inner.(string); ok && s != "" {
				return s
			}
		}
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

func pickOptions(raw map[string]any, fields []string, lang string) []string {
	for _, f := range fields {
		arr, ok := raw[f].([]any)
		if !ok {
			continue
		}
		opts := make([]string, 0, len(arr))
		for _, el := range arr {
			opts = append(opts, localizedString(el, lang))
		}
		return opts
	}
	return nil
}

func pickIndex(raw map[string]any, fields []string) int {
	for _, f := range fields {
		switch v := raw[f].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return domain.UnknownIndex
}
