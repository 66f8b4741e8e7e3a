package service

import (
	"errors"
	"fmt"
	"time"

	"bitwise74/verify-api/internal/model"
	"bitwise74/verify-api/pkg/security"

	"gorm.io/gorm"
)

// VerifyResult is the terminal outcome of a successful token verification
type VerifyResult struct {
	UserID string
	Email  string
	Code   string
}

// Verify walks a signed token through every rejection gate and, if all of
// them pass, consumes it and marks the user verified in one transaction.
// Two concurrent calls with the same token can't both succeed: the
// consuming UPDATE is guarded by consumed_at IS NULL and the loser is
// reported ALREADY_USED.
//
// sessionVID is the realtime session accompanying the link, if any. Its
// verified_at is set inside the same transaction so the fallback poller
// observes success even if the realtime push never lands
func (e *TokenEngine) Verify(token, sessionVID string) (*VerifyResult, error) {
	claims, err := e.Signer.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrInvalidSignature
	}

	var rec model.Verification

	err = e.DB.Where("id = ? AND purpose = ?", claims.VID, claims.Purpose).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}

		return nil, fmt.Errorf("failed to look up verification record, %w", err)
	}

	if rec.Consumed() {
		return nil, ErrAlreadyUsed
	}

	// The record's own expiry is authoritative even if the signed exp
	// hasn't passed yet
	if rec.Expired() {
		return nil, ErrTokenExpired
	}

	var user model.User

	err = e.DB.Where("id = ?", claims.UID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to look up user, %w", err)
	}

	if rec.Identifier != user.Email {
		return nil, ErrEmailMismatch
	}

	now := time.Now()

	err = e.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Verification{}).
			Where("id = ? AND consumed_at IS NULL", rec.ID).
			Update("consumed_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUsed
		}

		updates := map[string]any{
			"verified":   true,
			"expires_at": nil,
		}

		if user.EmailVerifiedAt == nil {
			updates["email_verified_at"] = now
		}

		if user.Status != model.UserStatusSuspended {
			updates["status"] = model.UserStatusActive
		}

		if err := tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Updates(updates).
			Error; err != nil {
			return err
		}

		if sessionVID != "" {
			if err := tx.Model(&model.VerificationSession{}).
				Where("vid = ?", sessionVID).
				Update("verified_at", now).
				Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyUsed) {
			return nil, ErrAlreadyUsed
		}

		return nil, fmt.Errorf("failed to consume verification token, %w", err)
	}

	return &VerifyResult{
		UserID: user.ID,
		Email:  rec.Identifier,
		Code:   CodeVerified,
	}, nil
}
