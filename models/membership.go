package models

import "time"

type MembershipLevel string

const (
	MembershipFree    MembershipLevel = "free"
	MembershipBasic   MembershipLevel = "basic"
	MembershipPremium MembershipLevel = "premium"
)

// Rank orders levels so a capability check can compare them. Unknown
// levels rank below free.
func (l MembershipLevel) Rank() int {
	switch l {
	case MembershipFree:
		return 1
	case MembershipBasic:
		return 2
	case MembershipPremium:
		return 3
	default:
		return 0
	}
}

type Membership struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Level     MembershipLevel `gorm:"type:varchar(20);not null;default:'free'" json:"level"`
	StartDate time.Time       `json:"start_date"`
	EndDate   *time.Time      `json:"end_date"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive: free memberships never lapse, paid ones are active until EndDate.
func (m *Membership) IsActive(now time.Time) bool {
	if m.Level == MembershipFree {
		return true
	}
	return m.EndDate != nil && now.Before(*m.EndDate)
}
