package model

import "time"

const (
	UserStatusPending   = "pending"
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"unique; not null"`
	PasswordHash string `gorm:"not null"`
	Status       string `gorm:"default:pending"`
	Verified     bool   `gorm:"default:false"`

	// Set exactly once, when the first email verification succeeds
	EmailVerifiedAt *time.Time

	// Unverified accounts are deleted past this point
	ExpiresAt *time.Time
	CreatedAt time.Time

	Verifications []Verification `gorm:"foreignKey:UserID"`
	ResendRequest ResendRequest  `gorm:"foreignKey:UserID"`
}
