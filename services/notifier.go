package services

import (
	"context"

	"github.com/english-mastery/backend/models"
)

// MaterialStatusUpdate is pushed to subscribers on every lifecycle transition.
type MaterialStatusUpdate struct {
	Type                   string                `json:"type"`
	MaterialID             uint                  `json:"material_id"`
	UserID                 uint                  `json:"user_id"`
	Status                 models.MaterialStatus `json:"status"`
	ErrorMessage           *string               `json:"error_message,omitempty"`
	GeneratedVocabCount    int                   `json:"generated_vocab_count"`
	GeneratedQuestionCount int                   `json:"generated_question_count"`
}

const MaterialStatusEvent = "material_status"

// StatusNotifier delivers status updates. Delivery is best effort; callers
// log errors and carry on.
type StatusNotifier interface {
	NotifyMaterialStatus(ctx context.Context, update MaterialStatusUpdate) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyMaterialStatus(context.Context, MaterialStatusUpdate) error { return nil }

func statusUpdateFor(m *models.Material) MaterialStatusUpdate {
	return MaterialStatusUpdate{
		Type:                   MaterialStatusEvent,
		MaterialID:             m.ID,
		UserID:                 m.UserID,
		Status:                 m.Status,
		ErrorMessage:           m.ErrorMessage,
		GeneratedVocabCount:    m.GeneratedVocabCount,
		GeneratedQuestionCount: m.GeneratedQuestionCount,
	}
}
