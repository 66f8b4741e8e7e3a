package service

import (
	"errors"
	"fmt"
	"time"

	"bitwise74/verify-api/internal/model"
	"bitwise74/verify-api/pkg/util"
	"bitwise74/verify-api/pkg/validators"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	recordIDSize  = 16
	recordValSize = 32
	recordCleanup = 60 * 24 * time.Hour // keep consumed rows two months for auditing
)

// Issue creates a new signed verification token for u, addressed to
// targetEmail, and mails out the link. It returns the vid of the realtime
// session created alongside the token so the client can start waiting on it.
//
// Policy order: real-email check, resend cooldown, daily cap. All previously
// unconsumed tokens of the same purpose are invalidated in the same
// transaction that creates the new one, so at most one token per user and
// purpose is ever live. A failed mail send rolls the token back by marking
// it consumed; the caller must not treat the token as live in that case
func (e *TokenEngine) Issue(u *model.User, targetEmail, purpose string) (string, error) {
	if err := validators.EmailValidator(targetEmail); err != nil {
		return "", err
	}

	var resend model.ResendRequest

	err := e.DB.Where("user_id = ?", u.ID).First(&resend).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to check resend cooldown, %w", err)
	}
	if err == nil && time.Since(resend.LastResend) < e.Cooldown {
		return "", ErrRateLimited
	}

	// Daily cap counts issuances for the target address since local midnight
	var sentToday int64

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	err = e.DB.Model(&model.Verification{}).
		Where("identifier = ? AND created_at >= ?", targetEmail, midnight).
		Count(&sentToday).
		Error
	if err != nil {
		return "", fmt.Errorf("failed to count issued tokens, %w", err)
	}

	if sentToday >= int64(e.DailyLimit) {
		return "", ErrDailyLimitExceeded
	}

	recID, err := util.GenerateToken(recordIDSize)
	if err != nil {
		return "", err
	}

	value, err := util.GenerateToken(recordValSize)
	if err != nil {
		return "", err
	}

	vid, err := util.NewVID()
	if err != nil {
		return "", err
	}

	ttl := e.ttlFor(purpose)
	cleanupAt := now.Add(recordCleanup)

	rec := &model.Verification{
		ID:         recID,
		UserID:     u.ID,
		Identifier: targetEmail,
		Value:      value,
		Purpose:    purpose,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		CleanupAt:  &cleanupAt,
	}

	sess := &model.VerificationSession{
		VID:       vid,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err = e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Verification{}).
			Where("user_id = ? AND purpose = ? AND consumed_at IS NULL", u.ID, purpose).
			Update("consumed_at", now).
			Error; err != nil {
			return err
		}

		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		return tx.Create(sess).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to create verification record, %w", err)
	}

	token, err := e.Signer.Sign(rec.ID, u.ID, purpose, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token, %w", err)
	}

	if err := e.Mailer.SendVerification(targetEmail, token, vid); err != nil {
		zap.L().Error("Failed to send verification email", zap.Error(err), zap.String("userID", u.ID))

		// Don't leave a live token behind for an email that never went out
		if rbErr := e.DB.Model(&model.Verification{}).
			Where("id = ?", rec.ID).
			Update("consumed_at", time.Now()).
			Error; rbErr != nil {
			zap.L().Error("Failed to roll back verification record", zap.Error(rbErr))
		}

		if rbErr := e.DB.Where("vid = ?", vid).Delete(&model.VerificationSession{}).Error; rbErr != nil {
			zap.L().Error("Failed to roll back verification session", zap.Error(rbErr))
		}

		return "", ErrResendFailed
	}

	// Only a fully successful issuance counts towards the cooldown
	err = e.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_resend"}),
	}).Create(&model.ResendRequest{
		UserID:     u.ID,
		LastResend: time.Now(),
	}).Error
	if err != nil {
		zap.L().Error("Failed to update resend timestamp", zap.Error(err), zap.String("userID", u.ID))
	}

	return vid, nil
}
