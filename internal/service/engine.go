package service

import (
	"time"

	"bitwise74/verify-api/internal/model"
	"bitwise74/verify-api/pkg/security"

	"gorm.io/gorm"
)

const (
	DefaultCooldown   = time.Minute
	DefaultDailyLimit = 5
	DefaultVerifyTTL  = 15 * time.Minute
	DefaultResetTTL   = 30 * time.Minute
)

// Mailer sends the verification link. The SMTP implementation lives in
// verification_mail.go; tests swap in a fake
type Mailer interface {
	SendVerification(to, token, vid string) error
}

// TokenEngine issues and verifies single-use verification tokens and
// enforces the resend policy around them
type TokenEngine struct {
	DB     *gorm.DB
	Signer *security.TokenSigner
	Mailer Mailer

	Cooldown   time.Duration
	DailyLimit int
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
}

func NewTokenEngine(db *gorm.DB, signer *security.TokenSigner, mailer Mailer) *TokenEngine {
	return &TokenEngine{
		DB:         db,
		Signer:     signer,
		Mailer:     mailer,
		Cooldown:   DefaultCooldown,
		DailyLimit: DefaultDailyLimit,
		VerifyTTL:  DefaultVerifyTTL,
		ResetTTL:   DefaultResetTTL,
	}
}

func (e *TokenEngine) ttlFor(purpose string) time.Duration {
	switch purpose {
	case model.PurposePasswordReset:
		return e.ResetTTL
	default:
		return e.VerifyTTL
	}
}
