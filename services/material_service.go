package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/config"
	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/models"
)

const (
	minContentChars = 50
	maxContentChars = 10000
	DefaultPageSize = 20
	maxPageSize     = 100
	insertBatchSize = 100
)

var errMaterialNotProcessing = errors.New("material is no longer processing")

// DocumentArchive keeps the original of an uploaded document.
type DocumentArchive interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

type CreateTextMaterialInput struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type CreateURLMaterialInput struct {
	Title string `json:"title"`
	URL   string `json:"url" binding:"required"`
}

// CreateFileMaterialInput carries an uploaded document already read into memory.
type CreateFileMaterialInput struct {
	Title    string
	Filename string
	Data     []byte
}

type ListMaterialsInput struct {
	Page     int
	PageSize int
	Status   string
}

// MaterialService owns the material state machine:
// pending -> processing -> completed | failed.
type MaterialService struct {
	db        *gorm.DB
	extractor ContentExtractor
	generator ContentGenerator
	runner    *TaskRunner
	notifier  StatusNotifier
	archive   DocumentArchive
	aiCfg     config.AIConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewMaterialService(
	db *gorm.DB,
	extractor ContentExtractor,
	generator ContentGenerator,
	runner *TaskRunner,
	notifier StatusNotifier,
	aiCfg config.AIConfig,
	log *logger.Logger,
) *MaterialService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MaterialService{
		db:        db,
		extractor: extractor,
		generator: generator,
		runner:    runner,
		notifier:  notifier,
		aiCfg:     aiCfg,
		log:       log.With("service", "MaterialService"),
		now:       time.Now,
	}
}

// WithArchive enables archiving of uploaded documents.
func (s *MaterialService) WithArchive(archive DocumentArchive) *MaterialService {
	s.archive = archive
	return s
}

func (s *MaterialService) CreateFromText(ctx context.Context, userID uint, in CreateTextMaterialInput) (*MaterialListItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > models.MaxTitleLength {
		return nil, ErrInvalidParams(fmt.Sprintf("title must be between 1 and %d characters", models.MaxTitleLength))
	}
	if n := utf8.RuneCountInString(in.Content); strings.TrimSpace(in.Content) == "" || n < minContentChars || n > maxContentChars {
		return nil, ErrInvalidParams(fmt.Sprintf("content must be between %d and %d characters", minContentChars, maxContentChars))
	}

	m := &models.Material{
		UserID:        userID,
		Title:         title,
		SourceType:    models.SourceText,
		SourceContent: in.Content,
		Status:        models.StatusPending,
		WordCount:     countWords(in.Content),
	}
	return s.createAndSchedule(ctx, m)
}

// CreateFromURL extracts the page synchronously, so extraction failures
// reach the caller before any material row exists.
func (s *MaterialService) CreateFromURL(ctx context.Context, userID uint, in CreateURLMaterialInput) (*MaterialListItem, error) {
	userTitle := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(userTitle) > models.MaxTitleLength {
		return nil, ErrInvalidParams(fmt.Sprintf("title must be at most %d characters", models.MaxTitleLength))
	}

	page, err := s.extractor.Fetch(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	title := userTitle
	if title == "" {
		title = truncateRunes(page.Title, models.MaxTitleLength)
	}
	sourceURL := strings.TrimSpace(in.URL)

	m := &models.Material{
		UserID:        userID,
		Title:         title,
		SourceType:    models.SourceURL,
		SourceContent: page.Content,
		SourceURL:     &sourceURL,
		Status:        models.StatusPending,
		WordCount:     countWords(page.Content),
	}
	return s.createAndSchedule(ctx, m)
}

// CreateFromFile reads an uploaded document. Long documents are cut at a
// sentence end instead of being rejected.
func (s *MaterialService) CreateFromFile(ctx context.Context, userID uint, in CreateFileMaterialInput) (*MaterialListItem, error) {
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return nil, ErrInvalidParams(fmt.Sprintf("title must be at most %d characters", models.MaxTitleLength))
	}

	text, err := ReadDocument(in.Filename, in.Data)
	if err != nil {
		return nil, err
	}
	content := capAtSentence(collapseWhitespace(text))
	if utf8.RuneCountInString(content) < minContentChars {
		return nil, NewAppError(http.StatusUnprocessableEntity, CodeInsufficientContent, "the document does not contain enough text", nil)
	}

	if title == "" {
		base := filepath.Base(in.Filename)
		title = truncateRunes(strings.TrimSuffix(base, filepath.Ext(base)), models.MaxTitleLength)
	}

	m := &models.Material{
		UserID:        userID,
		Title:         title,
		SourceType:    models.SourceFile,
		SourceContent: content,
		ArchiveURL:    s.archiveDocument(ctx, userID, in),
		Status:        models.StatusPending,
		WordCount:     countWords(content),
	}
	return s.createAndSchedule(ctx, m)
}

// archiveDocument stores the upload when an archive is configured. A
// failed upload only costs the link to the original.
func (s *MaterialService) archiveDocument(ctx context.Context, userID uint, in CreateFileMaterialInput) *string {
	if s.archive == nil {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	name := uuid.NewString()
	if base := slug.Make(strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))); base != "" {
		name += "-" + base
	}
	objectPath := fmt.Sprintf("materials/%d/%s%s", userID, name, ext)
	publicURL, err := s.archive.Upload(ctx, objectPath, in.Data, documentContentTypes[documentKind(ext)])
	if err != nil {
		s.log.Warn("document archive upload failed", "user_id", userID, "error", err)
		return nil
	}
	return &publicURL
}

func (s *MaterialService) createAndSchedule(ctx context.Context, m *models.Material) (*MaterialListItem, error) {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	s.log.Info("material created", "material_id", m.ID, "source_type", m.SourceType, "words", m.WordCount)

	s.notify(ctx, m)
	s.Schedule(ctx, m.ID)

	item := newMaterialListItem(*m)
	return &item, nil
}

// Schedule queues background processing of a material.
func (s *MaterialService) Schedule(ctx context.Context, materialID uint) {
	s.runner.Go(ctx, fmt.Sprintf("process-material-%d", materialID), func(taskCtx context.Context) error {
		return s.Process(taskCtx, materialID)
	})
}

// Process runs generation for one pending material. Each state transition
// is committed on its own; generated rows, counts and the completed status
// are written in a single transaction.
func (s *MaterialService) Process(ctx context.Context, materialID uint) error {
	log := s.log.With("material_id", materialID)

	var m models.Material
	if err := s.db.WithContext(ctx).First(&m, materialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("material not found, skipping processing")
			return nil
		}
		return fmt.Errorf("load material: %w", err)
	}

	claim := s.db.WithContext(ctx).Model(&models.Material{}).
		Where("id = ? AND status = ?", materialID, models.StatusPending).
		Update("status", models.StatusProcessing)
	if claim.Error != nil {
		return fmt.Errorf("mark processing: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		log.Info("material is not pending, skipping", "status", m.Status)
		return nil
	}
	m.Status = models.StatusProcessing
	s.notify(ctx, &m)
	log.Info("material processing started")

	defer func() {
		if rec := recover(); rec != nil {
			s.markFailed(ctx, materialID, fmt.Errorf("unexpected error during processing: %v", rec))
		}
	}()

	content, err := s.generator.Generate(ctx, m.SourceContent, s.aiCfg.MaxWords, s.aiCfg.MaxQuestions)
	if err == nil {
		err = s.complete(ctx, &m, content)
	}
	if err != nil {
		if errors.Is(err, errMaterialNotProcessing) {
			log.Warn("material changed while processing, results discarded")
			return nil
		}
		s.markFailed(ctx, materialID, err)
		return nil
	}

	log.Info("material processing completed", "vocabularies", m.GeneratedVocabCount, "questions", m.GeneratedQuestionCount)
	s.notify(ctx, &m)
	return nil
}

func (s *MaterialService) complete(ctx context.Context, m *models.Material, content *GeneratedContent) error {
	vocabularies := lo.Map(content.Vocabularies, func(v GeneratedVocabularyData, i int) models.GeneratedVocabulary {
		return v.toModel(m.ID, i)
	})
	questions := lo.Map(content.Questions, func(q GeneratedQuestionData, i int) models.ReadingQuestion {
		return q.toModel(m.ID, i)
	})
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(vocabularies) > 0 {
			if err := tx.CreateInBatches(&vocabularies, insertBatchSize).Error; err != nil {
				return fmt.Errorf("insert vocabularies: %w", err)
			}
		}
		if len(questions) > 0 {
			if err := tx.CreateInBatches(&questions, insertBatchSize).Error; err != nil {
				return fmt.Errorf("insert questions: %w", err)
			}
		}

		res := tx.Model(&models.Material{}).
			Where("id = ? AND status = ?", m.ID, models.StatusProcessing).
			Updates(map[string]interface{}{
				"status":                   models.StatusCompleted,
				"processed_at":             now,
				"generated_vocab_count":    len(vocabularies),
				"generated_question_count": len(questions),
				"error_message":            nil,
			})
		if res.Error != nil {
			return fmt.Errorf("mark completed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errMaterialNotProcessing
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.Status = models.StatusCompleted
	m.ProcessedAt = &now
	m.GeneratedVocabCount = len(vocabularies)
	m.GeneratedQuestionCount = len(questions)
	m.ErrorMessage = nil
	return nil
}

// markFailed records the failure in a fresh transaction. If even that
// write fails there is nobody left to report to, so it is only logged.
func (s *MaterialService) markFailed(ctx context.Context, materialID uint, cause error) {
	msg := truncateRunes(strings.TrimSpace(UserMessage(cause)), models.MaxErrorMessageLength)
	if msg == "" {
		msg = "processing failed"
	}
	s.log.Error("material processing failed", "material_id", materialID, "error", cause)

	var failed models.Material
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&failed, materialID).Error; err != nil {
			return err
		}
		res := tx.Model(&failed).
			Where("status = ?", models.StatusProcessing).
			Updates(map[string]interface{}{
				"status":        models.StatusFailed,
				"error_message": msg,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errMaterialNotProcessing
		}
		return nil
	})
	if err != nil {
		s.log.Error("could not record material failure", "material_id", materialID, "error", err)
		return
	}

	failed.Status = models.StatusFailed
	failed.ErrorMessage = &msg
	s.notify(ctx, &failed)
}

func (s *MaterialService) notify(ctx context.Context, m *models.Material) {
	if err := s.notifier.NotifyMaterialStatus(ctx, statusUpdateFor(m)); err != nil {
		s.log.Warn("status notification failed", "material_id", m.ID, "status", m.Status, "error", err)
	}
}

// findOwned loads a material scoped to its owner. Materials owned by
// someone else are reported exactly like missing ones.
func (s *MaterialService) findOwned(ctx context.Context, userID, materialID uint, columns ...string) (*models.Material, error) {
	q := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", materialID, userID)
	if len(columns) > 0 {
		q = q.Select(columns)
	}
	var m models.Material
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("material")
		}
		return nil, err
	}
	return &m, nil
}

func (s *MaterialService) Status(ctx context.Context, userID, materialID uint) (*MaterialStatusView, error) {
	m, err := s.findOwned(ctx, userID, materialID,
		"id", "status", "error_message", "generated_vocab_count", "generated_question_count")
	if err != nil {
		return nil, err
	}
	return &MaterialStatusView{
		ID:                     m.ID,
		Status:                 m.Status,
		ErrorMessage:           m.ErrorMessage,
		GeneratedVocabCount:    m.GeneratedVocabCount,
		GeneratedQuestionCount: m.GeneratedQuestionCount,
	}, nil
}

func (s *MaterialService) Detail(ctx context.Context, userID, materialID uint) (*MaterialDetail, error) {
	var m models.Material
	err := s.db.WithContext(ctx).
		Preload("Vocabularies", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Where("id = ? AND user_id = ?", materialID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("material")
		}
		return nil, err
	}
	detail := newMaterialDetail(m)
	return &detail, nil
}

func (s *MaterialService) List(ctx context.Context, userID uint, in ListMaterialsInput) (*MaterialPage, error) {
	page, pageSize := in.Page, in.PageSize
	if page < 1 {
		return nil, ErrInvalidParams("page must be at least 1")
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return nil, ErrInvalidParams(fmt.Sprintf("page_size must be between 1 and %d", maxPageSize))
	}

	var status models.MaterialStatus
	if in.Status != "" {
		st, ok := models.ParseMaterialStatus(in.Status)
		if !ok {
			return nil, ErrInvalidParams("status must be one of pending, processing, completed, failed")
		}
		status = st
	}
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Material{}).Where("user_id = ?", userID)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, err
	}

	var materials []models.Material
	err := scoped().Omit("source_content").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&materials).Error
	if err != nil {
		return nil, err
	}

	return &MaterialPage{
		Items:    lo.Map(materials, func(m models.Material, _ int) MaterialListItem { return newMaterialListItem(m) }),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Delete removes an owned material. Child rows go with it through the
// foreign key cascade; an archived upload is removed best effort.
func (s *MaterialService) Delete(ctx context.Context, userID, materialID uint) error {
	m, err := s.findOwned(ctx, userID, materialID, "id", "archive_url")
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", materialID, userID).
		Delete(&models.Material{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound("material")
	}
	s.log.Info("material deleted", "material_id", materialID)

	if s.archive != nil && m.ArchiveURL != nil {
		if err := s.archive.Delete(ctx, *m.ArchiveURL); err != nil {
			s.log.Warn("document archive delete failed", "material_id", materialID, "error", err)
		}
	}
	return nil
}

// StalePending returns ids of materials that have waited in pending longer
// than olderThan, e.g. because the process restarted before they ran.
func (s *MaterialService) StalePending(ctx context.Context, olderThan time.Duration) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Material{}).
		Where("status = ? AND created_at < ?", models.StatusPending, s.now().Add(-olderThan)).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// FailStaleProcessing moves materials stuck in processing to failed and
// publishes the transition for each one.
func (s *MaterialService) FailStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	var stale []models.Material
	err := s.db.WithContext(ctx).
		Select("id", "user_id", "generated_vocab_count", "generated_question_count").
		Where("status = ? AND updated_at < ?", models.StatusProcessing, s.now().Add(-olderThan)).
		Order("id ASC").
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	msg := "processing was interrupted, please submit the material again"
	var failed int64
	for i := range stale {
		m := &stale[i]
		res := s.db.WithContext(ctx).Model(&models.Material{}).
			Where("id = ? AND status = ?", m.ID, models.StatusProcessing).
			Updates(map[string]interface{}{
				"status":        models.StatusFailed,
				"error_message": msg,
			})
		if res.Error != nil {
			return failed, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		failed++
		m.Status = models.StatusFailed
		m.ErrorMessage = &msg
		s.notify(ctx, m)
	}
	return failed, nil
}
