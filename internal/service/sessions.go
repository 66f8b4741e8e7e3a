package service

import (
	"errors"

	"bitwise74/verify-api/internal/model"

	"gorm.io/gorm"
)

// SessionStore is the gorm-backed verification session store handed to the
// connection registry
type SessionStore struct {
	DB *gorm.DB
}

func (s *SessionStore) Find(vid string) (*model.VerificationSession, error) {
	var sess model.VerificationSession

	err := s.DB.Where("vid = ?", vid).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &sess, nil
}

func (s *SessionStore) Delete(vid string) error {
	return s.DB.Where("vid = ?", vid).Delete(&model.VerificationSession{}).Error
}
