package checkout

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository persists checkout attempts. State changes are guarded by
// the expected current state so two callbacks cannot both advance a session.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SessionRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&s).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// BeginCommit moves awaiting -> committing and records the capture id.
// false means another caller got there first.
func (r *SessionRepository) BeginCommit(ctx context.Context, id uuid.UUID, captureID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND state = ?", id, enums.CheckoutStateAwaitingPaymentConfirmation).
		Updates(map[string]any{
			"state":             enums.CheckoutStateCommitting,
			"payment_reference": captureID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCommittedTx finishes a committing session inside the order transaction.
func (r *SessionRepository) MarkCommittedTx(tx *gorm.DB, id, orderID uuid.UUID) error {
	res := tx.Model(&models.CheckoutSession{}).
		Where("id = ? AND state = ?", id, enums.CheckoutStateCommitting).
		Updates(map[string]any{
			"state":    enums.CheckoutStateCommitted,
			"order_id": orderID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is not committing")
	}
	return nil
}

func (r *SessionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason enums.CheckoutFailureReason) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND state = ?", id, enums.CheckoutStateCommitting).
		Updates(map[string]any{
			"state":          enums.CheckoutStateFailed,
			"failure_reason": reason,
		}).Error
}

// ListUnescalated returns sessions whose payment was captured without an
// order and that nobody has been told about yet: failed sessions, and
// committing sessions untouched since staleBefore.
func (r *SessionRepository) ListUnescalated(ctx context.Context, limit int, staleBefore time.Time) ([]models.CheckoutSession, error) {
	var rows []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("state = ? OR (state = ? AND updated_at < ?)",
			enums.CheckoutStateFailed, enums.CheckoutStateCommitting, staleBefore).
		Where("payment_reference IS NOT NULL AND order_id IS NULL AND escalated_at IS NULL").
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FailStaleCommitTx ends a session left committing. false means it moved on
// (committed or failed) since it was listed.
func (r *SessionRepository) FailStaleCommitTx(tx *gorm.DB, id uuid.UUID, reason enums.CheckoutFailureReason) (bool, error) {
	res := tx.Model(&models.CheckoutSession{}).
		Where("id = ? AND state = ?", id, enums.CheckoutStateCommitting).
		Updates(map[string]any{
			"state":          enums.CheckoutStateFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SessionRepository) MarkEscalatedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.CheckoutSession{}).
		Where("id = ? AND escalated_at IS NULL", id).
		UpdateColumn("escalated_at", at).Error
}
