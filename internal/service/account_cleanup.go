package service

import (
	"time"

	"bitwise74/verify-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountCleanup automatically deletes accounts that were registered but
// never verified their email before the registration expiry passed
func AccountCleanup(t time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Account cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			var toClean []string

			err := db.
				Model(&model.User{}).
				Where("expires_at < ? AND verified = ?", time.Now(), false).
				Pluck("id", &toClean).
				Error
			if err != nil {
				zap.L().Error("Failed to query db for users to clean", zap.Error(err))
				continue
			}

			if len(toClean) == 0 {
				continue
			}

			err = db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Where("user_id IN ?", toClean).Delete(&model.Verification{}).Error; err != nil {
					return err
				}

				if err := tx.Where("user_id IN ?", toClean).Delete(&model.VerificationSession{}).Error; err != nil {
					return err
				}

				if err := tx.Where("user_id IN ?", toClean).Delete(&model.ResendRequest{}).Error; err != nil {
					return err
				}

				return tx.Where("id IN ?", toClean).Delete(&model.User{}).Error
			})
			if err != nil {
				zap.L().Error("Failed to delete unverified accounts", zap.Error(err))
				continue
			}

			zap.L().Info("Deleted unverified accounts past their expiry", zap.Int("count", len(toClean)))
		}
	}()
}
