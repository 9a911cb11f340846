package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const (
	defaultUnrecordedBatch = 100
	defaultStaleCommit     = 15 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type unrecordedSessionRepo interface {
	ListUnescalated(ctx context.Context, limit int, staleBefore time.Time) ([]models.CheckoutSession, error)
	FailStaleCommitTx(tx *gorm.DB, id uuid.UUID, reason enums.CheckoutFailureReason) (bool, error)
	MarkEscalatedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type UnrecordedPaymentsJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Sessions  unrecordedSessionRepo
	Outbox    outbox.Emitter
	BatchSize int
	// StaleCommit is how long a session may sit in committing before the
	// sweep treats the commit as lost.
	StaleCommit time.Duration
}

// NewUnrecordedPaymentsJob reports captured payments that never became
// orders. Each failed session, and each session stuck committing, is
// escalated exactly once through the outbox.
func NewUnrecordedPaymentsJob(params UnrecordedPaymentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultUnrecordedBatch
	}
	stale := params.StaleCommit
	if stale <= 0 {
		stale = defaultStaleCommit
	}
	return &unrecordedPaymentsJob{
		logg:     params.Logger,
		db:       params.DB,
		sessions: params.Sessions,
		outbox:   params.Outbox,
		batch:    batch,
		stale:    stale,
		now:      time.Now,
	}, nil
}

type unrecordedPaymentsJob struct {
	logg     *logger.Logger
	db       txRunner
	sessions unrecordedSessionRepo
	outbox   outbox.Emitter
	batch    int
	stale    time.Duration
	now      func() time.Time
}

func (j *unrecordedPaymentsJob) Name() string { return "unrecorded-payments" }

func (j *unrecordedPaymentsJob) Run(ctx context.Context) error {
	rows, err := j.sessions.ListUnescalated(ctx, j.batch, j.now().Add(-j.stale))
	if err != nil {
		return fmt.Errorf("list unrecorded payments: %w", err)
	}

	var errs error
	escalated := 0
	for i := range rows {
		done, err := j.escalate(ctx, &rows[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", rows[i].ID, err))
			continue
		}
		if done {
			escalated++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"escalated":  escalated,
	}), "unrecorded payment sweep complete")
	return errs
}

func (j *unrecordedPaymentsJob) escalate(ctx context.Context, s *models.CheckoutSession) (bool, error) {
	now := j.now().UTC()
	stuck := s.State == enums.CheckoutStateCommitting
	reason := string(enums.FailurePersistFailed)
	if s.FailureReason != nil {
		reason = string(*s.FailureReason)
	}
	failedAt := s.UpdatedAt
	if stuck {
		failedAt = now
	}
	ref := ""
	if s.PaymentReference != nil {
		ref = *s.PaymentReference
	}
	customerID := s.CustomerID

	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentUnrecorded,
		AggregateType: enums.AggregateCheckoutSession,
		AggregateID:   s.ID,
		Actor:         &outbox.ActorRef{CustomerID: &customerID, Source: outbox.SourceCron},
		OccurredAt:    now,
		Data: payloads.PaymentUnrecordedEvent{
			CheckoutSessionID: s.ID,
			CustomerID:        s.CustomerID,
			GatewayOrderID:    s.GatewayOrderID,
			PaymentReference:  ref,
			Amount:            s.Amount,
			Currency:          s.Currency,
			FailureReason:     reason,
			FailedAt:          failedAt,
		},
	}
	done := true
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if stuck {
			failed, err := j.sessions.FailStaleCommitTx(tx, s.ID, enums.FailurePersistFailed)
			if err != nil {
				return err
			}
			if !failed {
				done = false
				return nil
			}
		}
		if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}
		return j.sessions.MarkEscalatedTx(tx, s.ID, now)
	})
	if err != nil {
		return false, err
	}
	return done, nil
}
