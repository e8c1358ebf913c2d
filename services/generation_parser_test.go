package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/english-mastery/backend/logger"
)

// replyWith builds a model reply holding valid vocabulary and question
// entries followed by the given raw (possibly malformed) entries.
func replyWith(words, questions int, extraVocab ...string) string {
	vocab := make([]string, 0, words+len(extraVocab))
	for i := 0; i < words; i++ {
		vocab = append(vocab, fmt.Sprintf(
			`{"word":"word%d","phonetic":"/w/","translation":"t%d","definition":"d","example":"e","example_translation":"et","synonyms":["a","b"],"collocations":["c"],"difficulty":%d}`,
			i, i, i%5+1))
	}
	vocab = append(vocab, extraVocab...)

	qs := make([]string, 0, questions)
	for i := 0; i < questions; i++ {
		qs = append(qs, fmt.Sprintf(
			`{"question_text":"Question %d?","options":["A","B","C","D"],"correct_answer":%d,"explanation":"because"}`,
			i, i%4))
	}
	return `{"vocabularies":[` + strings.Join(vocab, ",") + `],"questions":[` + strings.Join(qs, ",") + `]}`
}

func TestParseGeneratedContentSkipsMalformedEntries(t *testing.T) {
	reply := replyWith(10, 3,
		`{"word":"","translation":"missing word"}`,
		`{"word":"broken","translation":42}`,
	)
	got, err := ParseGeneratedContent(reply, logger.Nop())
	if err != nil {
		t.Fatalf("ParseGeneratedContent: %v", err)
	}
	if len(got.Vocabularies) != 10 {
		t.Fatalf("vocabularies = %d, want 10", len(got.Vocabularies))
	}
	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(got.Questions))
	}
	if got.Questions[0].QuestionType != "choice" {
		t.Fatalf("question type = %q", got.Questions[0].QuestionType)
	}
}

func TestParseGeneratedContentStripsSurroundingProse(t *testing.T) {
	reply := "Sure! Here you go:\n```json\n" + replyWith(1, 1) + "\n```\nHope this helps."
	got, err := ParseGeneratedContent(reply, logger.Nop())
	if err != nil {
		t.Fatalf("ParseGeneratedContent: %v", err)
	}
	if len(got.Vocabularies) != 1 || got.Vocabularies[0].Word != "word0" {
		t.Fatalf("unexpected vocabularies %+v", got.Vocabularies)
	}
}

func TestParseGeneratedContentWithoutObject(t *testing.T) {
	_, err := ParseGeneratedContent("I cannot help with that.", logger.Nop())
	requireCode(t, err, CodeGenerationDecode)
	if UserMessage(err) != "AI response format error" {
		t.Fatalf("message = %q", UserMessage(err))
	}
}

func TestParseGeneratedContentInvalidJSON(t *testing.T) {
	_, err := ParseGeneratedContent(`{"vocabularies": [ {"word": }`+"}", logger.Nop())
	requireCode(t, err, CodeGenerationDecode)
	if UserMessage(err) != "AI response could not be parsed" {
		t.Fatalf("message = %q", UserMessage(err))
	}
}

func TestParseGeneratedContentMissingArrays(t *testing.T) {
	got, err := ParseGeneratedContent(`{"note":"nothing here"}`, logger.Nop())
	if err != nil {
		t.Fatalf("ParseGeneratedContent: %v", err)
	}
	if len(got.Vocabularies) != 0 || len(got.Questions) != 0 {
		t.Fatalf("expected empty content, got %+v", got)
	}
}

func TestVocabularyNormalization(t *testing.T) {
	reply := `{"vocabularies":[
		{"word":"  resilient ","translation":" kiên cường ","difficulty":9,"synonyms":["tough"," ",""],"collocations":null},
		{"word":"` + strings.Repeat("w", 150) + `","translation":"long"}
	]}`
	got, err := ParseGeneratedContent(reply, logger.Nop())
	if err != nil {
		t.Fatalf("ParseGeneratedContent: %v", err)
	}
	if len(got.Vocabularies) != 2 {
		t.Fatalf("vocabularies = %d", len(got.Vocabularies))
	}
	v := got.Vocabularies[0]
	if v.Word != "resilient" || v.Translation != "kiên cường" {
		t.Fatalf("fields not trimmed: %+v", v)
	}
	if v.Difficulty != 3 {
		t.Fatalf("out-of-range difficulty should default to 3, got %d", v.Difficulty)
	}
	if len(v.Synonyms) != 1 || v.Synonyms[0] != "tough" {
		t.Fatalf("synonyms = %v", v.Synonyms)
	}
	if v.Collocations == nil || len(v.Collocations) != 0 {
		t.Fatalf("collocations = %#v", v.Collocations)
	}
	if n := len([]rune(got.Vocabularies[1].Word)); n != 100 {
		t.Fatalf("word should be cut to the column size, got %d", n)
	}
}

func TestQuestionValidation(t *testing.T) {
	questions := []map[string]any{
		{"question_text": "ok", "options": []string{"a", "b", "c", "d"}, "correct_answer": 3},
		{"question_text": "too few options", "options": []string{"a", "b", "c"}, "correct_answer": 0},
		{"question_text": "index too high", "options": []string{"a", "b", "c", "d"}, "correct_answer": 4},
		{"question_text": "negative index", "options": []string{"a", "b", "c", "d"}, "correct_answer": -1},
		{"question_text": "", "options": []string{"a", "b", "c", "d"}, "correct_answer": 0},
		{"question_text": "missing index", "options": []string{"a", "b", "c", "d", "e"}, "question_type": "inference"},
	}
	raw, err := json.Marshal(map[string]any{"questions": questions})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ParseGeneratedContent(string(raw), logger.Nop())
	if err != nil {
		t.Fatalf("ParseGeneratedContent: %v", err)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("questions = %d, want 2: %+v", len(got.Questions), got.Questions)
	}
	if got.Questions[0].CorrectAnswer != 3 {
		t.Fatalf("correct answer = %d", got.Questions[0].CorrectAnswer)
	}
	last := got.Questions[1]
	if last.CorrectAnswer != 0 || last.QuestionType != "inference" || len(last.Options) != 5 {
		t.Fatalf("unexpected question %+v", last)
	}
}

func TestLooseNumericAndListFields(t *testing.T) {
	reply := `{"vocabularies":[
		{"word":"quoted","translation":"t","difficulty":"4"},
		{"word":"float","translation":"t","difficulty":4.0},
		{"word":"single","translation":"t","synonyms":"one","collocations":[1,"pair",null]},
		{"word":"fraction","translation":"t","difficulty":2.5},
		{"word":"wordy","translation":"t","difficulty":"hard","synonyms":{"a":"b"}}
	],"questions":[
		{"question_text":"Quoted?","options":["A","B","C","D"],"correct_answer":"1"},
		{"question_text":"Float?","options":["A","B","C","D"],"correct_answer":2.0},
		{"question_text":"Unusable?","options":["A","B","C","D"],"correct_answer":true},
		{"question_text":"Quoted too high?","options":["A","B","C","D"],"correct_answer":"7"}
	]}`
	got, err := ParseGeneratedContent(reply, logger.Nop())
	if err != nil {
		t.Fatalf("ParseGeneratedContent: %v", err)
	}
	if len(got.Vocabularies) != 5 {
		t.Fatalf("vocabularies = %d, want 5", len(got.Vocabularies))
	}
	wantDifficulty := []int{4, 4, 3, 3, 3}
	for i, v := range got.Vocabularies {
		if v.Difficulty != wantDifficulty[i] {
			t.Errorf("%s: difficulty = %d, want %d", v.Word, v.Difficulty, wantDifficulty[i])
		}
	}
	single := got.Vocabularies[2]
	if len(single.Synonyms) != 1 || single.Synonyms[0] != "one" {
		t.Fatalf("synonyms = %v", single.Synonyms)
	}
	if len(single.Collocations) != 1 || single.Collocations[0] != "pair" {
		t.Fatalf("collocations = %v", single.Collocations)
	}
	if s := got.Vocabularies[4].Synonyms; s == nil || len(s) != 0 {
		t.Fatalf("object synonyms should decode as empty, got %#v", s)
	}

	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d, want 3: %+v", len(got.Questions), got.Questions)
	}
	wantCorrect := []int{1, 2, 0}
	for i, q := range got.Questions {
		if q.CorrectAnswer != wantCorrect[i] {
			t.Errorf("%s: correct = %d, want %d", q.QuestionText, q.CorrectAnswer, wantCorrect[i])
		}
	}
}
