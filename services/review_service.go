package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/models"
)

type UpdateVocabularyInput struct {
	IsLearned  *bool `json:"is_learned"`
	IsMastered *bool `json:"is_mastered"`
}

type SubmitAnswerInput struct {
	QuestionID uint `json:"question_id" binding:"required"`
	Answer     *int `json:"answer" binding:"required"`
}

// ReviewService serves the study operations on generated content. Every
// call re-checks ownership of the parent material.
type ReviewService struct {
	db        *gorm.DB
	materials *MaterialService
	log       *logger.Logger
	now       func() time.Time

	speech        SpeechSynthesizer
	speechTimeout time.Duration
}

// PronunciationAudio is an MP3 clip for one vocabulary entry.
type PronunciationAudio struct {
	Text     string
	Data     []byte
	Duration time.Duration
}

func NewReviewService(db *gorm.DB, materials *MaterialService, log *logger.Logger) *ReviewService {
	return &ReviewService{
		db:        db,
		materials: materials,
		log:       log.With("service", "ReviewService"),
		now:       time.Now,
	}
}

// WithSpeech enables pronunciation audio.
func (s *ReviewService) WithSpeech(speech SpeechSynthesizer, timeout time.Duration) *ReviewService {
	s.speech = speech
	s.speechTimeout = timeout
	return s
}

func (s *ReviewService) ListVocabulary(ctx context.Context, userID, materialID uint) ([]VocabularyItem, error) {
	if _, err := s.materials.findOwned(ctx, userID, materialID, "id"); err != nil {
		return nil, err
	}

	var vocab []models.GeneratedVocabulary
	err := s.db.WithContext(ctx).
		Where("material_id = ?", materialID).
		Order("sort_order ASC, id ASC").
		Find(&vocab).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(vocab, func(v models.GeneratedVocabulary, _ int) VocabularyItem { return newVocabularyItem(v) }), nil
}

// UpdateVocabulary applies the given flags and counts one review, whether
// or not any flag was supplied. A mastered word is always learned.
func (s *ReviewService) UpdateVocabulary(ctx context.Context, userID, materialID, vocabID uint, in UpdateVocabularyInput) (*VocabularyItem, error) {
	if _, err := s.materials.findOwned(ctx, userID, materialID, "id"); err != nil {
		return nil, err
	}

	var vocab models.GeneratedVocabulary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND material_id = ?", vocabID, materialID).First(&vocab).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound("vocabulary")
			}
			return err
		}

		if in.IsLearned != nil {
			vocab.IsLearned = *in.IsLearned
		}
		if in.IsMastered != nil {
			vocab.IsMastered = *in.IsMastered
		}
		if vocab.IsMastered {
			vocab.IsLearned = true
		}

		res := tx.Model(&vocab).Updates(map[string]interface{}{
			"is_learned":   vocab.IsLearned,
			"is_mastered":  vocab.IsMastered,
			"review_count": gorm.Expr("review_count + ?", 1),
		})
		if res.Error != nil {
			return fmt.Errorf("update vocabulary: %w", res.Error)
		}
		return tx.First(&vocab, vocab.ID).Error
	})
	if err != nil {
		return nil, err
	}

	item := newVocabularyItem(vocab)
	return &item, nil
}

// ListQuestions returns the material text together with its questions,
// since the reading view needs both.
func (s *ReviewService) ListQuestions(ctx context.Context, userID, materialID uint) (*QuestionSet, error) {
	m, err := s.materials.findOwned(ctx, userID, materialID, "id", "source_content")
	if err != nil {
		return nil, err
	}

	var questions []models.ReadingQuestion
	err = s.db.WithContext(ctx).
		Where("material_id = ?", materialID).
		Order("sort_order ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}

	return &QuestionSet{
		Content:   m.SourceContent,
		Questions: lo.Map(questions, func(q models.ReadingQuestion, _ int) QuestionItem { return newQuestionItem(q) }),
	}, nil
}

// SubmitAnswer grades an answer and overwrites the question's single
// recorded attempt.
func (s *ReviewService) SubmitAnswer(ctx context.Context, userID, materialID uint, in SubmitAnswerInput) (*AnswerResult, error) {
	if in.Answer == nil {
		return nil, ErrInvalidParams("answer is required")
	}
	if _, err := s.materials.findOwned(ctx, userID, materialID, "id"); err != nil {
		return nil, err
	}

	var q models.ReadingQuestion
	if err := s.db.WithContext(ctx).Where("id = ? AND material_id = ?", in.QuestionID, materialID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("question")
		}
		return nil, err
	}

	answer := *in.Answer
	if answer < 0 || answer >= len(q.Options) {
		return nil, ErrInvalidParams(fmt.Sprintf("answer must be between 0 and %d", len(q.Options)-1))
	}

	correct := answer == q.CorrectAnswer
	now := s.now()
	err := s.db.WithContext(ctx).Model(&q).Updates(map[string]interface{}{
		"user_answer": answer,
		"is_correct":  correct,
		"answered_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	return &AnswerResult{
		QuestionID:    q.ID,
		UserAnswer:    answer,
		CorrectAnswer: q.CorrectAnswer,
		IsCorrect:     correct,
		Explanation:   q.Explanation,
	}, nil
}

// Pronounce synthesizes the word of a vocabulary entry, or its example
// sentence when example is set.
func (s *ReviewService) Pronounce(ctx context.Context, userID, materialID, vocabID uint, example bool) (*PronunciationAudio, error) {
	if s.speech == nil {
		return nil, NewAppError(http.StatusServiceUnavailable, CodeSpeechNotConfigured, "pronunciation audio is not available", nil)
	}
	if _, err := s.materials.findOwned(ctx, userID, materialID, "id"); err != nil {
		return nil, err
	}

	var vocab models.GeneratedVocabulary
	err := s.db.WithContext(ctx).Select("id", "word", "example").
		Where("id = ? AND material_id = ?", vocabID, materialID).First(&vocab).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("vocabulary")
		}
		return nil, err
	}

	text := vocab.Word
	if example {
		text = strings.TrimSpace(vocab.Example)
		if text == "" {
			return nil, ErrNotFound("example sentence")
		}
	}

	if s.speechTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.speechTimeout)
		defer cancel()
	}
	data, err := s.speech.Synthesize(ctx, text)
	if err != nil {
		s.log.Warn("speech synthesis failed", "vocabulary_id", vocabID, "error", err)
		return nil, NewAppError(http.StatusBadGateway, CodeSpeechFailed, "could not generate audio, please try again later", err)
	}
	dur, err := mp3Duration(data)
	if err != nil {
		s.log.Warn("speech returned unreadable audio", "vocabulary_id", vocabID, "error", err)
		return nil, NewAppError(http.StatusBadGateway, CodeSpeechFailed, "could not generate audio, please try again later", err)
	}
	return &PronunciationAudio{Text: text, Data: data, Duration: dur}, nil
}
