package models

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:150;not null" json:"full_name"`
	Email     string    `gorm:"size:150;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:text;not null" json:"-"`
	Role      UserRole  `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	Status    *bool     `gorm:"default:true" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Membership *Membership `gorm:"constraint:OnDelete:CASCADE" json:"membership,omitempty"`
	Materials  []Material  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the account may authenticate. A nil status is
// treated as active.
func (u *User) IsActive() bool {
	return u.Status == nil || *u.Status
}
