package model

import "time"

const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

// Verification is the backing record of one issued signed token. The token
// references it by ID and is dead once ConsumedAt is set
type Verification struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index"`
	Identifier string `gorm:"index"` // target email address
	Value      string `gorm:"uniqueIndex"`
	Purpose    string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
	CleanupAt  *time.Time
}

func (v *Verification) Consumed() bool {
	return v.ConsumedAt != nil
}

func (v *Verification) Expired() bool {
	return v.ExpiresAt.Before(time.Now())
}
