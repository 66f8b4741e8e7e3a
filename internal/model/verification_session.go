package model

import "time"

// VerificationSession links a browser tab waiting on the realtime channel
// to a pending verification attempt. The VID is handed to the client and
// acts as the lookup key for both the channel and the status poller
type VerificationSession struct {
	VID        string `gorm:"primaryKey;column:vid"`
	UserID     string `gorm:"index"`
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
}

func (s *VerificationSession) Expired() bool {
	return s.ExpiresAt.Before(time.Now())
}
