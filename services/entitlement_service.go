package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/english-mastery/backend/models"
)

type EntitlementService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEntitlementService(db *gorm.DB) *EntitlementService {
	return &EntitlementService{db: db, now: time.Now}
}

// Check verifies the user holds an active membership of at least minLevel.
// Users without a membership row are treated as free members.
func (s *EntitlementService) Check(ctx context.Context, userID uint, minLevel models.MembershipLevel) error {
	if minLevel == "" || minLevel == models.MembershipFree {
		return nil
	}

	var m models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = models.Membership{UserID: userID, Level: models.MembershipFree}
	} else if err != nil {
		return err
	}

	if m.Level.Rank() < minLevel.Rank() {
		return NewAppError(http.StatusForbidden, CodeMembershipRequired, "a "+string(minLevel)+" membership is required", nil)
	}
	if !m.IsActive(s.now()) {
		return NewAppError(http.StatusForbidden, CodeMembershipExpired, "your membership has expired", nil)
	}
	return nil
}
