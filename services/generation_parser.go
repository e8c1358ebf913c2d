package services

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/models"
)

const (
	defaultDifficulty   = 3
	defaultQuestionType = "choice"
	minQuestionOptions  = 4
)

type GeneratedVocabularyData struct {
	Word               string
	Phonetic           string
	Translation        string
	Definition         string
	Example            string
	ExampleTranslation string
	Synonyms           []string
	Collocations       []string
	Difficulty         int
}

type GeneratedQuestionData struct {
	QuestionText  string
	QuestionType  string
	Options       []string
	CorrectAnswer int
	Explanation   string
}

type GeneratedContent struct {
	Vocabularies []GeneratedVocabularyData
	Questions    []GeneratedQuestionData
}

type generatedEnvelope struct {
	Vocabularies []json.RawMessage `json:"vocabularies"`
	Questions    []json.RawMessage `json:"questions"`
}

type vocabularyCandidate struct {
	Word               string   `json:"word"`
	Phonetic           string   `json:"phonetic"`
	Translation        string   `json:"translation"`
	Definition         string   `json:"definition"`
	Example            string   `json:"example"`
	ExampleTranslation string   `json:"example_translation"`
	Synonyms           looseStrings `json:"synonyms"`
	Collocations       looseStrings `json:"collocations"`
	Difficulty         looseInt     `json:"difficulty"`
}

type questionCandidate struct {
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	CorrectAnswer looseInt `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// ParseGeneratedContent reads the JSON object embedded in a model reply.
// Only the span from the first '{' to the last '}' is decoded; a reply
// without one, or one that does not decode, fails as a whole. Individual
// entries that do not pass the shape checks are dropped.
func ParseGeneratedContent(reply string, log *logger.Logger) (*GeneratedContent, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		log.Error("no JSON object in model reply", "reply", truncateRunes(reply, 500))
		return nil, NewAppError(http.StatusBadGateway, CodeGenerationDecode, "AI response format error", nil)
	}

	var envelope generatedEnvelope
	if err := json.Unmarshal([]byte(reply[start:end+1]), &envelope); err != nil {
		log.Error("model reply is not valid JSON", "error", err, "reply", truncateRunes(reply, 500))
		return nil, NewAppError(http.StatusBadGateway, CodeGenerationDecode, "AI response could not be parsed", err)
	}

	vocabularies := lo.FilterMap(envelope.Vocabularies, func(raw json.RawMessage, i int) (GeneratedVocabularyData, bool) {
		var c vocabularyCandidate
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Warn("dropping malformed vocabulary entry", "index", i, "error", err)
			return GeneratedVocabularyData{}, false
		}
		v, ok := c.normalize()
		if !ok {
			log.Warn("dropping vocabulary entry without word or translation", "index", i)
		}
		return v, ok
	})

	questions := lo.FilterMap(envelope.Questions, func(raw json.RawMessage, i int) (GeneratedQuestionData, bool) {
		var c questionCandidate
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Warn("dropping malformed question entry", "index", i, "error", err)
			return GeneratedQuestionData{}, false
		}
		q, ok := c.normalize()
		if !ok {
			log.Warn("dropping invalid question entry", "index", i, "options", len(c.Options))
		}
		return q, ok
	})

	log.Info("parsed generated content", "vocabularies", len(vocabularies), "questions", len(questions))
	return &GeneratedContent{Vocabularies: vocabularies, Questions: questions}, nil
}

func (c vocabularyCandidate) normalize() (GeneratedVocabularyData, bool) {
	word := strings.TrimSpace(c.Word)
	translation := strings.TrimSpace(c.Translation)
	if word == "" || translation == "" {
		return GeneratedVocabularyData{}, false
	}

	difficulty := defaultDifficulty
	if d, ok := c.Difficulty.get(); ok && d >= 1 && d <= 5 {
		difficulty = d
	}

	return GeneratedVocabularyData{
		Word:               truncateRunes(word, 100),
		Phonetic:           truncateRunes(strings.TrimSpace(c.Phonetic), 100),
		Translation:        truncateRunes(translation, 500),
		Definition:         strings.TrimSpace(c.Definition),
		Example:            strings.TrimSpace(c.Example),
		ExampleTranslation: strings.TrimSpace(c.ExampleTranslation),
		Synonyms:           nonEmptyStrings(c.Synonyms),
		Collocations:       nonEmptyStrings(c.Collocations),
		Difficulty:         difficulty,
	}, true
}

func (c questionCandidate) normalize() (GeneratedQuestionData, bool) {
	text := strings.TrimSpace(c.QuestionText)
	if text == "" || len(c.Options) < minQuestionOptions {
		return GeneratedQuestionData{}, false
	}

	correct, _ := c.CorrectAnswer.get()
	if correct < 0 || correct >= len(c.Options) {
		return GeneratedQuestionData{}, false
	}

	qType := strings.TrimSpace(c.QuestionType)
	if qType == "" {
		qType = defaultQuestionType
	}

	return GeneratedQuestionData{
		QuestionText:  text,
		QuestionType:  truncateRunes(qType, 20),
		Options:       c.Options,
		CorrectAnswer: correct,
		Explanation:   strings.TrimSpace(c.Explanation),
	}, true
}

// looseInt accepts a JSON integer, an integral float or a numeric string.
// Anything else decodes as absent rather than failing the whole entry.
type looseInt struct {
	value int
	set   bool
}

func (n *looseInt) UnmarshalJSON(data []byte) error {
	*n = looseInt{}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	*n = looseInt{value: int(f), set: true}
	return nil
}

func (n looseInt) get() (int, bool) { return n.value, n.set }

// looseStrings accepts a list of strings or a single string. Non-string
// list items are skipped and any other shape decodes as empty.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(data []byte) error {
	*l = nil
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		*l = looseStrings{v}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				*l = append(*l, s)
			}
		}
	}
	return nil
}

func nonEmptyStrings(in []string) []string {
	out := lo.FilterMap(in, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	if out == nil {
		return []string{}
	}
	return out
}

func (v GeneratedVocabularyData) toModel(materialID uint, sortOrder int) models.GeneratedVocabulary {
	return models.GeneratedVocabulary{
		MaterialID:         materialID,
		Word:               v.Word,
		Phonetic:           v.Phonetic,
		Translation:        v.Translation,
		Definition:         v.Definition,
		Example:            v.Example,
		ExampleTranslation: v.ExampleTranslation,
		Synonyms:           v.Synonyms,
		Collocations:       v.Collocations,
		Difficulty:         v.Difficulty,
		SortOrder:          sortOrder,
	}
}

func (q GeneratedQuestionData) toModel(materialID uint, sortOrder int) models.ReadingQuestion {
	return models.ReadingQuestion{
		MaterialID:    materialID,
		QuestionText:  q.QuestionText,
		QuestionType:  q.QuestionType,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		SortOrder:     sortOrder,
	}
}
