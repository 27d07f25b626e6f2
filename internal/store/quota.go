package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/personify-ai/chat-platform/internal/model"
)

// EnsureQuota creates the quota record for a user if missing, seeded with the
// initial allowance. Safe to call on every request: the insert is an upsert
// that affects no rows when the record already exists, so concurrent
// first-ever requests from the same user cannot fail on the unique key.
func (s *Store) EnsureQuota(ctx context.Context, userID string, initial int) error {
	rec := model.QuotaRecord{UserID: userID, Remaining: initial}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&rec).Error
}

// DebitIfRemaining atomically decrements the counter when it is positive.
// The conditional UPDATE is the serialization point: two concurrent requests
// observing remaining=1 cannot both win.
func (s *Store) DebitIfRemaining(ctx context.Context, userID string) (remaining int, debited bool, err error) {
	var row struct{ Remaining int }
	res := s.db.WithContext(ctx).Raw(
		`UPDATE quota_records
		    SET remaining = remaining - 1, updated_at = now()
		  WHERE user_id = ? AND remaining > 0
		 RETURNING remaining`,
		userID,
	).Scan(&row)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return row.Remaining, true, nil
}

// PendingUnlockToken returns the stored pending token, or empty when none.
func (s *Store) PendingUnlockToken(ctx context.Context, userID string) (string, error) {
	var rec model.QuotaRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if rec.UnlockToken == nil {
		return "", nil
	}
	return *rec.UnlockToken, nil
}

// SavePendingUnlockToken records a freshly issued token on the quota record,
// replacing any previous pending token.
func (s *Store) SavePendingUnlockToken(ctx context.Context, userID, token string, issuedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.QuotaRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"unlock_token":    token,
			"token_issued_at": issuedAt,
			"updated_at":      time.Now(),
		}).Error
}

// ConsumeUnlockToken clears the pending token and resets the counter in one
// conditional update. The WHERE clause matching the exact token makes the
// token single-use: a replay finds it already cleared and affects no rows.
func (s *Store) ConsumeUnlockToken(ctx context.Context, userID, token string, resetTo int) (remaining int, consumed bool, err error) {
	var row struct{ Remaining int }
	res := s.db.WithContext(ctx).Raw(
		`UPDATE quota_records
		    SET remaining = ?, unlock_token = NULL, token_issued_at = NULL, updated_at = now()
		  WHERE user_id = ? AND unlock_token = ?
		 RETURNING remaining`,
		resetTo, userID, token,
	).Scan(&row)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return row.Remaining, true, nil
}
