package service

import (
	"testing"
	"time"

	"bitwise74/verify-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepSessions(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	verified := now.Add(-time.Minute)

	sessions := []model.VerificationSession{
		// Expired without ever being verified
		{VID: "expired-waiting", UserID: "u1", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)},
		// Verified but the delivery never landed, only the sweep can end it
		{VID: "expired-verified", UserID: "u2", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute), VerifiedAt: &verified},
		// Still live
		{VID: "live", UserID: "u3", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}

	for i := range sessions {
		require.NoError(t, db.Create(&sessions[i]).Error)
	}

	n, err := sweepSessions(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var remaining []model.VerificationSession
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "live", remaining[0].VID)
}

func TestSweepTokens(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	records := []model.Verification{
		{ID: "old", UserID: "u1", Identifier: "a@example.com", Value: "val1", ExpiresAt: past, CleanupAt: &past},
		{ID: "kept", UserID: "u1", Identifier: "a@example.com", Value: "val2", ExpiresAt: past, CleanupAt: &future},
	}

	for i := range records {
		require.NoError(t, db.Create(&records[i]).Error)
	}

	n, err := sweepTokens(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var remaining []model.Verification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "kept", remaining[0].ID)
}
