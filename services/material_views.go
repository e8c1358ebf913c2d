package services

import (
	"time"

	"github.com/samber/lo"

	"github.com/english-mastery/backend/models"
)

type MaterialListItem struct {
	ID                     uint                      `json:"id"`
	Title                  string                    `json:"title"`
	SourceType             models.MaterialSourceType `json:"source_type"`
	SourceURL              *string                   `json:"source_url"`
	ArchiveURL             *string                   `json:"archive_url,omitempty"`
	Status                 models.MaterialStatus     `json:"status"`
	ErrorMessage           *string                   `json:"error_message"`
	WordCount              int                       `json:"word_count"`
	GeneratedVocabCount    int                       `json:"generated_vocab_count"`
	GeneratedQuestionCount int                       `json:"generated_question_count"`
	CreatedAt              time.Time                 `json:"created_at"`
	ProcessedAt            *time.Time                `json:"processed_at"`
}

type MaterialDetail struct {
	MaterialListItem
	UpdatedAt    time.Time        `json:"updated_at"`
	Vocabularies []VocabularyItem `json:"vocabularies"`
	Questions    []QuestionItem   `json:"questions"`
}

type MaterialStatusView struct {
	ID                     uint                  `json:"id"`
	Status                 models.MaterialStatus `json:"status"`
	ErrorMessage           *string               `json:"error_message"`
	GeneratedVocabCount    int                   `json:"generated_vocab_count"`
	GeneratedQuestionCount int                   `json:"generated_question_count"`
}

type MaterialPage struct {
	Items    []MaterialListItem `json:"items"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int64              `json:"total"`
}

type VocabularyItem struct {
	ID                 uint     `json:"id"`
	Word               string   `json:"word"`
	Phonetic           string   `json:"phonetic"`
	Translation        string   `json:"translation"`
	Definition         string   `json:"definition"`
	Example            string   `json:"example"`
	ExampleTranslation string   `json:"example_translation"`
	Synonyms           []string `json:"synonyms"`
	Collocations       []string `json:"collocations"`
	Difficulty         int      `json:"difficulty"`
	IsLearned          bool     `json:"is_learned"`
	IsMastered         bool     `json:"is_mastered"`
	ReviewCount        int      `json:"review_count"`
	SortOrder          int      `json:"sort_order"`
}

type QuestionItem struct {
	ID            uint       `json:"id"`
	QuestionText  string     `json:"question_text"`
	QuestionType  string     `json:"question_type"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"`
	Explanation   string     `json:"explanation"`
	SortOrder     int        `json:"sort_order"`
	UserAnswer    *int       `json:"user_answer"`
	IsCorrect     *bool      `json:"is_correct"`
	AnsweredAt    *time.Time `json:"answered_at"`
}

type QuestionSet struct {
	Content   string         `json:"content"`
	Questions []QuestionItem `json:"questions"`
}

type AnswerResult struct {
	QuestionID    uint   `json:"question_id"`
	UserAnswer    int    `json:"user_answer"`
	CorrectAnswer int    `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation"`
}

func newMaterialListItem(m models.Material) MaterialListItem {
	return MaterialListItem{
		ID:                     m.ID,
		Title:                  m.Title,
		SourceType:             m.SourceType,
		SourceURL:              m.SourceURL,
		ArchiveURL:             m.ArchiveURL,
		Status:                 m.Status,
		ErrorMessage:           m.ErrorMessage,
		WordCount:              m.WordCount,
		GeneratedVocabCount:    m.GeneratedVocabCount,
		GeneratedQuestionCount: m.GeneratedQuestionCount,
		CreatedAt:              m.CreatedAt,
		ProcessedAt:            m.ProcessedAt,
	}
}

func newMaterialDetail(m models.Material) MaterialDetail {
	return MaterialDetail{
		MaterialListItem: newMaterialListItem(m),
		UpdatedAt:        m.UpdatedAt,
		Vocabularies:     lo.Map(m.Vocabularies, func(v models.GeneratedVocabulary, _ int) VocabularyItem { return newVocabularyItem(v) }),
		Questions:        lo.Map(m.Questions, func(q models.ReadingQuestion, _ int) QuestionItem { return newQuestionItem(q) }),
	}
}

func newVocabularyItem(v models.GeneratedVocabulary) VocabularyItem {
	return VocabularyItem{
		ID:                 v.ID,
		Word:               v.Word,
		Phonetic:           v.Phonetic,
		Translation:        v.Translation,
		Definition:         v.Definition,
		Example:            v.Example,
		ExampleTranslation: v.ExampleTranslation,
		Synonyms:           orEmpty(v.Synonyms),
		Collocations:       orEmpty(v.Collocations),
		Difficulty:         v.Difficulty,
		IsLearned:          v.IsLearned,
		IsMastered:         v.IsMastered,
		ReviewCount:        v.ReviewCount,
		SortOrder:          v.SortOrder,
	}
}

func newQuestionItem(q models.ReadingQuestion) QuestionItem {
	return QuestionItem{
		ID:            q.ID,
		QuestionText:  q.QuestionText,
		QuestionType:  q.QuestionType,
		Options:       orEmpty(q.Options),
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		SortOrder:     q.SortOrder,
		UserAnswer:    q.UserAnswer,
		IsCorrect:     q.IsCorrect,
		AnsweredAt:    q.AnsweredAt,
	}
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
