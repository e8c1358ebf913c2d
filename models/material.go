package models

import (
	"time"

	"gorm.io/datatypes"
)

type MaterialSourceType string

const (
	SourceText MaterialSourceType = "text"
	SourceURL  MaterialSourceType = "url"
	SourceFile MaterialSourceType = "file"
)

type MaterialStatus string

const (
	StatusPending    MaterialStatus = "pending"
	StatusProcessing MaterialStatus = "processing"
	StatusCompleted  MaterialStatus = "completed"
	StatusFailed     MaterialStatus = "failed"
)

// ParseMaterialStatus validates a status filter value.
func ParseMaterialStatus(s string) (MaterialStatus, bool) {
	switch st := MaterialStatus(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, true
	default:
		return "", false
	}
}

const (
	MaxTitleLength        = 200
	MaxErrorMessageLength = 500
)

type Material struct {
	ID                     uint               `gorm:"primaryKey" json:"id"`
	UserID                 uint               `gorm:"not null;index:idx_materials_user_created,priority:1" json:"user_id"`
	Title                  string             `gorm:"size:200;not null" json:"title"`
	SourceType             MaterialSourceType `gorm:"type:varchar(10);not null" json:"source_type"`
	SourceContent          string             `gorm:"type:text;not null" json:"-"`
	SourceURL              *string            `gorm:"size:1000" json:"source_url"`
	ArchiveURL             *string            `gorm:"size:1000" json:"archive_url,omitempty"`
	Status                 MaterialStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ErrorMessage           *string            `gorm:"size:500" json:"error_message"`
	WordCount              int                `gorm:"not null;default:0" json:"word_count"`
	GeneratedVocabCount    int                `gorm:"not null;default:0" json:"generated_vocab_count"`
	GeneratedQuestionCount int                `gorm:"not null;default:0" json:"generated_question_count"`
	CreatedAt              time.Time          `gorm:"autoCreateTime;index:idx_materials_user_created,priority:2" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	ProcessedAt            *time.Time         `json:"processed_at"`

	Vocabularies []GeneratedVocabulary `gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE" json:"vocabularies,omitempty"`
	Questions    []ReadingQuestion     `gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

type GeneratedVocabulary struct {
	ID                 uint                        `gorm:"primaryKey" json:"id"`
	MaterialID         uint                        `gorm:"not null;index" json:"material_id"`
	Word               string                      `gorm:"size:100;not null" json:"word"`
	Phonetic           string                      `gorm:"size:100" json:"phonetic"`
	Translation        string                      `gorm:"size:500;not null" json:"translation"`
	Definition         string                      `gorm:"type:text" json:"definition"`
	Example            string                      `gorm:"type:text" json:"example"`
	ExampleTranslation string                      `gorm:"type:text" json:"example_translation"`
	Synonyms           datatypes.JSONSlice[string] `json:"synonyms"`
	Collocations       datatypes.JSONSlice[string] `json:"collocations"`
	Difficulty         int                         `gorm:"not null;default:3" json:"difficulty"`
	IsLearned          bool                        `gorm:"not null;default:false" json:"is_learned"`
	IsMastered         bool                        `gorm:"not null;default:false" json:"is_mastered"`
	ReviewCount        int                         `gorm:"not null;default:0" json:"review_count"`
	SortOrder          int                         `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt          time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

type ReadingQuestion struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	MaterialID    uint                        `gorm:"not null;index" json:"material_id"`
	QuestionText  string                      `gorm:"type:text;not null" json:"question_text"`
	QuestionType  string                      `gorm:"size:20;not null;default:'choice'" json:"question_type"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer int                         `gorm:"not null" json:"correct_answer"`
	Explanation   string                      `gorm:"type:text" json:"explanation"`
	SortOrder     int                         `gorm:"not null;default:0" json:"sort_order"`
	UserAnswer    *int                        `json:"user_answer"`
	IsCorrect     *bool                       `json:"is_correct"`
	AnsweredAt    *time.Time                  `json:"answered_at"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime" json:"created_at"`
}
