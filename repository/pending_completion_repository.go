package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingCompletionRepositoryImpl implements PendingCompletionRepository interface
type PendingCompletionRepositoryImpl struct {
	*BaseRepository[models.PendingCompletion]
}

// NewPendingCompletionRepository creates a new pending completion repository
func NewPendingCompletionRepository(db *gorm.DB) PendingCompletionRepository {
	return &PendingCompletionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PendingCompletion](db),
	}
}

// ByFeeID finds the marker written for a confirmed fee
func (r *PendingCompletionRepositoryImpl) ByFeeID(ctx context.Context, feeID uint) (*models.PendingCompletion, error) {
	db := r.getDB(ctx)
	var pc models.PendingCompletion
	err := db.Where("fee_id = ?", feeID).First(&pc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pc, nil
}

// ClaimDue selects due PENDING markers FOR UPDATE SKIP LOCKED and pushes their next_attempt_at
// to now+lease in the same transaction. Concurrent relays skip rows another relay holds or leased.
func (r *PendingCompletionRepositoryImpl) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) (markers []*models.PendingCompletion, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
		if err != nil {
			markers = nil
		}
	}()

	query := db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND next_attempt_at <= ?", models.PendingCompletionStatusPending, now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err = query.Find(&markers).Error; err != nil {
		return nil, fmt.Errorf("failed to select due completions: %w", err)
	}
	if len(markers) == 0 {
		return markers, nil
	}

	ids := make([]uint, 0, len(markers))
	for _, m := range markers {
		ids = append(ids, m.ID)
	}
	leasedUntil := now.Add(lease)
	err = db.Model(&models.PendingCompletion{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"next_attempt_at": leasedUntil,
			"updated_at":      utils.UTCNow(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lease due completions: %w", err)
	}
	for _, m := range markers {
		m.NextAttemptAt = leasedUntil
	}
	return markers, nil
}

// MarkDone closes a PENDING marker
func (r *PendingCompletionRepositoryImpl) MarkDone(ctx context.Context, id uint) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
	}()

	now := utils.UTCNow()
	res := db.Model(&models.PendingCompletion{}).
		Where("id = ? AND status = ?", id, models.PendingCompletionStatusPending).
		Updates(map[string]any{
			"status":       models.PendingCompletionStatusDone,
			"completed_at": now,
			"updated_at":   now,
		})
	if err = res.Error; err != nil {
		return fmt.Errorf("failed to mark completion %d done: %w", id, err)
	}
	if res.RowsAffected == 0 {
		err = ErrStaleTransition
		return err
	}
	return nil
}

// MarkAttemptFailed records a failed attempt; exhausted moves the marker to FAILED.
// The update only applies while attempts still equals seenAttempts.
func (r *PendingCompletionRepositoryImpl) MarkAttemptFailed(ctx context.Context, id uint, seenAttempts int, lastError string, nextAttemptAt time.Time, exhausted bool) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
	}()

	updates := map[string]any{
		"attempts":        seenAttempts + 1,
		"last_error":      lastError,
		"next_attempt_at": nextAttemptAt,
		"updated_at":      utils.UTCNow(),
	}
	if exhausted {
		updates["status"] = models.PendingCompletionStatusFailed
	}

	res := db.Model(&models.PendingCompletion{}).
		Where("id = ? AND status = ? AND attempts = ?", id, models.PendingCompletionStatusPending, seenAttempts).
		Updates(updates)
	if err = res.Error; err != nil {
		return fmt.Errorf("failed to record completion attempt %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		err = ErrStaleTransition
		return err
	}
	return nil
}
