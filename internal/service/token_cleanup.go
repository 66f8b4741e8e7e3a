package service

import (
	"time"

	"bitwise74/verify-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenCleanup defines a function used to periodically cleanup old
// verification records that aren't needed anymore. Expired tokens are kept
// until their cleanup timestamp so duplicate clicks still get a specific
// error instead of a generic not-found
func TokenCleanup(t time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			n, err := sweepTokens(db)
			if err != nil {
				zap.L().Error("Failed to cleanup verification records", zap.Error(err))
				continue
			}

			if n > 0 {
				zap.L().Debug("Cleaned up old verification records", zap.Int64("count", n))
			}
		}
	}()
}

// SessionCleanup removes verification sessions whose expiry passed. Verified
// rows are swept too: if the realtime delivery never landed the session has
// no other terminal path, and the poll window is well within the session TTL
func SessionCleanup(t time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Session cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			n, err := sweepSessions(db)
			if err != nil {
				zap.L().Error("Failed to cleanup verification sessions", zap.Error(err))
				continue
			}

			if n > 0 {
				zap.L().Debug("Cleaned up expired verification sessions", zap.Int64("count", n))
			}
		}
	}()
}

func sweepTokens(db *gorm.DB) (int64, error) {
	res := db.
		Where("cleanup_at < ?", time.Now()).
		Delete(&model.Verification{})

	return res.RowsAffected, res.Error
}

func sweepSessions(db *gorm.DB) (int64, error) {
	res := db.
		Where("expires_at < ?", time.Now()).
		Delete(&model.VerificationSession{})

	return res.RowsAffected, res.Error
}
