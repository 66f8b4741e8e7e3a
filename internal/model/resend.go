package model

import "time"

type ResendRequest struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"uniqueIndex"`
	LastResend time.Time
}
