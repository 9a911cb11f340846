package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/flash"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type resolver interface {
	Resolve(ctx context.Context, lines []cart.Line) (pricing.Resolution, error)
}

type quoter interface {
	Quote(lines []pricing.PricedLine) pricing.Quote
}

type captureGuard interface {
	Acquire(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type flashWriter interface {
	Put(ctx context.Context, owner string, notice flash.Notice) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Cart       cart.Store
	Pricer     resolver
	Aggregator quoter
	Customers  customers.Reader
	Sessions   *SessionRepository
	Orders     *orders.Repository
	Tx         txRunner
	Reserver   catalog.StockReserver
	Outbox     outboxEmitter
	Gateway    Gateway
	Guard      captureGuard
	Flash      flashWriter
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Currency   string
	Now        func() time.Time
}

type Service struct {
	cart       cart.Store
	pricer     resolver
	aggregator quoter
	customers  customers.Reader
	sessions   *SessionRepository
	orders     *orders.Repository
	tx         txRunner
	reserver   catalog.StockReserver
	outbox     outboxEmitter
	gateway    Gateway
	guard      captureGuard
	flash      flashWriter
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	currency   string
	now        func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Cart == nil:
		return nil, errors.New("cart store required")
	case p.Pricer == nil || p.Aggregator == nil:
		return nil, errors.New("pricer and aggregator required")
	case p.Customers == nil:
		return nil, errors.New("customer reader required")
	case p.Sessions == nil || p.Orders == nil:
		return nil, errors.New("session and order repositories required")
	case p.Tx == nil:
		return nil, errors.New("transaction runner required")
	case p.Outbox == nil:
		return nil, errors.New("outbox required")
	case p.Gateway == nil:
		return nil, errors.New("payment gateway required")
	case p.Guard == nil:
		return nil, errors.New("capture guard required")
	case p.Flash == nil:
		return nil, errors.New("flash store required")
	}
	if p.Reserver == nil {
		p.Reserver = catalog.NoopReserver{}
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		cart:       p.Cart,
		pricer:     p.Pricer,
		aggregator: p.Aggregator,
		customers:  p.Customers,
		sessions:   p.Sessions,
		orders:     p.Orders,
		tx:         p.Tx,
		reserver:   p.Reserver,
		outbox:     p.Outbox,
		gateway:    p.Gateway,
		guard:      p.Guard,
		flash:      p.Flash,
		metrics:    p.Metrics,
		logg:       p.Logger,
		currency:   p.Currency,
		now:        p.Now,
	}, nil
}

// QuoteResult is the priced cart plus its totals. It is never persisted.
type QuoteResult struct {
	State      enums.CheckoutState
	Resolution pricing.Resolution
	Quote      pricing.Quote
	Currency   string
}

// Quote prices owner's cart against the live catalog.
func (s *Service) Quote(ctx context.Context, owner cart.Owner) (*QuoteResult, error) {
	lines, err := s.cart.Enumerate(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
	}
	res, err := s.pricer.Resolve(ctx, lines)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price cart")
	}
	return &QuoteResult{
		State:      enums.CheckoutStateQuoted,
		Resolution: res,
		Quote:      s.aggregator.Quote(res.Lines),
		Currency:   s.currency,
	}, nil
}

// PaymentStart is handed to the browser to complete payment with the gateway.
type PaymentStart struct {
	SessionID      uuid.UUID
	GatewayOrderID string
	AmountCents    int64
	Quote          *QuoteResult
}

// BeginPayment registers the current grand total with the gateway. Nothing
// is charged yet and the cart is untouched.
func (s *Service) BeginPayment(ctx context.Context, customerID uuid.UUID) (*PaymentStart, error) {
	if customerID == uuid.Nil {
		s.metrics.IncPayment(string(enums.FailureNotAuthenticated))
		return nil, ErrNotAuthenticated
	}
	if _, err := s.customers.GetActive(ctx, customerID); err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			s.metrics.IncPayment(string(enums.FailureNotAuthenticated))
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	quote, err := s.Quote(ctx, cart.CustomerOwner(customerID))
	if err != nil {
		return nil, err
	}
	if quote.Resolution.Empty() {
		s.metrics.IncPayment(string(enums.FailureEmptyCart))
		return nil, ErrEmptyCart.WithDetails(map[string]any{
			"reason":    enums.FailureEmptyCart,
			"discarded": len(quote.Resolution.Discarded),
		})
	}
	if !quote.Quote.GrandTotal.IsPositive() {
		s.metrics.IncPayment("zero_amount")
		return nil, ErrZeroAmount
	}
	if err := checkTransition(quote.State, enums.CheckoutStateAwaitingPaymentConfirmation); err != nil {
		return nil, err
	}

	cents, err := types.ToCents(quote.Quote.GrandTotal)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert amount")
	}

	sessionID := uuid.New()
	gatewayOrderID, err := s.gateway.CreateOrder(ctx, GatewayOrder{
		AmountCents:    cents,
		Currency:       s.currency,
		ReferenceID:    sessionID.String(),
		IdempotencyKey: "checkout-" + sessionID.String(),
	})
	if err != nil {
		s.metrics.IncPayment("gateway_error")
		return nil, err
	}

	session := &models.CheckoutSession{
		ID:             sessionID,
		CustomerID:     customerID,
		GatewayOrderID: gatewayOrderID,
		Amount:         quote.Quote.GrandTotal,
		Currency:       s.currency,
		State:          enums.CheckoutStateAwaitingPaymentConfirmation,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record checkout session")
	}

	quote.State = session.State
	s.metrics.IncPayment("started")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"customer_id":      customerID.String(),
		"session_id":       sessionID.String(),
		"gateway_order_id": gatewayOrderID,
		"amount_cents":     cents,
	}), "checkout payment started")

	return &PaymentStart{
		SessionID:      sessionID,
		GatewayOrderID: gatewayOrderID,
		AmountCents:    cents,
		Quote:          quote,
	}, nil
}

// Capture is the gateway's confirmation that a payment went through.
type Capture struct {
	CustomerID     uuid.UUID
	GatewayOrderID string
	CaptureID      string
}

// CommitResult identifies the order for a capture. Duplicate is set when the
// capture had already been committed by an earlier callback.
type CommitResult struct {
	OrderID     uuid.UUID
	OrderNumber string
	Duplicate   bool
}

// ConfirmGatewayCapture is the server-to-server path: the session itself
// names the customer.
func (s *Service) ConfirmGatewayCapture(ctx context.Context, gatewayOrderID, captureID string) (*CommitResult, error) {
	session, err := s.sessions.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return s.ConfirmCapture(ctx, Capture{
		CustomerID:     session.CustomerID,
		GatewayOrderID: gatewayOrderID,
		CaptureID:      captureID,
	})
}

// ConfirmCapture turns a verified capture and the customer's current cart
// into an order. Repeated calls for one capture return the same order.
func (s *Service) ConfirmCapture(ctx context.Context, c Capture) (*CommitResult, error) {
	if c.CaptureID == "" || c.GatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway_order_id and capture_id are required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway_order_id": c.GatewayOrderID,
		"capture_id":       c.CaptureID,
	})

	if res, ok, err := s.existingOrder(ctx, c); ok || err != nil {
		return res, err
	}

	acquired, err := s.guard.Acquire(ctx, c.CaptureID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture guard")
	}
	if !acquired {
		if res, ok, err := s.existingOrder(ctx, c); ok || err != nil {
			return res, err
		}
		return nil, ErrCaptureInProgress
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), c.CaptureID); err != nil {
			s.logg.Warn(ctx, "release capture guard: "+err.Error())
		}
	}()

	// A racing caller may have committed between the first check and the guard.
	if res, ok, err := s.existingOrder(ctx, c); ok || err != nil {
		return res, err
	}

	session, err := s.sessions.FindByGatewayOrderID(ctx, c.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if c.CustomerID != uuid.Nil && session.CustomerID != c.CustomerID {
		return nil, ErrSessionNotFound
	}
	resuming := false
	switch session.State {
	case enums.CheckoutStateFailed:
		return nil, s.unrecorded(session, c.CaptureID, failureReason(session))
	case enums.CheckoutStateCommitted:
		if session.OrderID != nil {
			order, err := s.orders.FindForCustomer(ctx, *session.OrderID, session.CustomerID)
			if err == nil {
				s.metrics.IncCommit("duplicate")
				return &CommitResult{OrderID: order.ID, OrderNumber: order.OrderNumber, Duplicate: true}, nil
			}
		}
	case enums.CheckoutStateCommitting:
		// We hold the guard for this capture, so the attempt that left the
		// session committing is no longer running.
		resuming = session.PaymentReference != nil && *session.PaymentReference == c.CaptureID
	}
	if !resuming {
		if err := checkTransition(session.State, enums.CheckoutStateCommitting); err != nil {
			return nil, err
		}
	}

	status, err := s.gateway.GetCapture(ctx, c.CaptureID)
	if err != nil {
		return nil, err
	}
	if !status.Completed {
		s.metrics.IncCommit("not_captured")
		return nil, ErrPaymentNotCaptured
	}
	if status.GatewayOrderID != session.GatewayOrderID {
		return nil, ErrCaptureMismatch
	}

	if resuming {
		s.metrics.IncCommit("resumed")
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"session_id": session.ID.String(),
		}), "resuming interrupted checkout commit")
		return s.commit(ctx, session, status)
	}

	started, err := s.sessions.BeginCommit(ctx, session.ID, c.CaptureID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance checkout session")
	}
	if !started {
		return nil, ErrCaptureInProgress
	}
	session.State = enums.CheckoutStateCommitting
	ref := c.CaptureID
	session.PaymentReference = &ref

	return s.commit(ctx, session, status)
}

func (s *Service) existingOrder(ctx context.Context, c Capture) (*CommitResult, bool, error) {
	order, err := s.orders.FindByPaymentReference(ctx, c.CaptureID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by payment reference")
	}
	if c.CustomerID != uuid.Nil && order.CustomerID != c.CustomerID {
		return nil, false, ErrSessionNotFound
	}
	s.metrics.IncCommit("duplicate")
	s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "duplicate capture resolved to existing order")
	return &CommitResult{OrderID: order.ID, OrderNumber: order.OrderNumber, Duplicate: true}, true, nil
}

// commit re-validates the cart and writes the order in one transaction.
func (s *Service) commit(ctx context.Context, session *models.CheckoutSession, status *CaptureStatus) (*CommitResult, error) {
	owner := cart.CustomerOwner(session.CustomerID)

	profile, err := s.customers.GetActive(ctx, session.CustomerID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return nil, s.fail(ctx, session, enums.FailureNotAuthenticated, err)
		}
		return nil, s.fail(ctx, session, enums.FailurePersistFailed, err)
	}

	lines, err := s.cart.Enumerate(ctx, owner)
	if err != nil {
		return nil, s.fail(ctx, session, enums.FailurePersistFailed, err)
	}
	if len(lines) == 0 {
		return nil, s.fail(ctx, session, enums.FailureEmptyCart, nil)
	}
	res, err := s.pricer.Resolve(ctx, lines)
	if err != nil {
		return nil, s.fail(ctx, session, enums.FailurePersistFailed, err)
	}
	if reason, ok := revalidate(res); !ok {
		return nil, s.fail(ctx, session, reason, nil)
	}

	quote := s.aggregator.Quote(res.Lines)
	cents, err := types.ToCents(quote.GrandTotal)
	if err != nil || cents != status.AmountCents {
		return nil, s.fail(ctx, session, enums.FailureAmountMismatch,
			fmt.Errorf("captured %d cents, cart now totals %s", status.AmountCents, quote.GrandTotal))
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		number, err := s.nextOrderNumber(ctx, repo)
		if err != nil {
			return err
		}
		order = buildOrder(number, session, profile, res.Lines, quote, s.currency)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		for _, l := range res.Lines {
			if err := s.reserver.Reserve(tx, l.Product.ID, l.Quantity); err != nil {
				return err
			}
		}
		if err := s.outbox.Emit(ctx, tx, orderPaidEvent(order, s.now().UTC())); err != nil {
			return err
		}
		return s.sessions.MarkCommittedTx(tx, session.ID, order.ID)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "ux_orders_payment_reference") {
			c := Capture{CustomerID: session.CustomerID, CaptureID: *session.PaymentReference}
			if res, ok, lookupErr := s.existingOrder(ctx, c); ok {
				return res, nil
			} else if lookupErr != nil {
				return nil, lookupErr
			}
		}
		if errors.Is(err, catalog.ErrInsufficientStock) {
			return nil, s.fail(ctx, session, enums.FailureInsufficientStock, err)
		}
		return nil, s.fail(ctx, session, enums.FailurePersistFailed, err)
	}

	s.metrics.IncCommit(string(enums.CheckoutStateCommitted))
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(ctx, "order committed")

	// The order exists; failures from here on are logged, never returned.
	if err := s.cart.Clear(ctx, owner); err != nil {
		s.logg.Error(ctx, "clear cart after commit", err)
	}
	if err := s.flash.Put(ctx, owner.String(), flash.Notice{OrderID: order.ID, OrderNumber: order.OrderNumber}); err != nil {
		s.logg.Error(ctx, "store order confirmation notice", err)
	}

	return &CommitResult{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func (s *Service) nextOrderNumber(ctx context.Context, repo *orders.Repository) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		number, err := orders.NewOrderNumber(s.now())
		if err != nil {
			return "", err
		}
		taken, err := repo.OrderNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", errors.New("could not allocate a unique order number")
}

// fail ends the session and reports that money moved without an order.
func (s *Service) fail(ctx context.Context, session *models.CheckoutSession, reason enums.CheckoutFailureReason, cause error) error {
	if err := checkTransition(session.State, enums.CheckoutStateFailed); err != nil {
		return err
	}
	// On a write error the session stays committing; the next callback for
	// this capture resumes it and the unrecorded-payments sweep escalates it.
	if err := s.sessions.MarkFailed(context.WithoutCancel(ctx), session.ID, reason); err != nil {
		s.logg.Error(ctx, "mark checkout session failed", err)
	}
	session.State = enums.CheckoutStateFailed
	session.FailureReason = &reason

	s.metrics.IncCommit(string(reason))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"session_id":     session.ID.String(),
		"customer_id":    session.CustomerID.String(),
		"failure_reason": reason,
	})
	if cause == nil {
		cause = errors.New(string(reason))
	}
	s.logg.Error(logCtx, "captured payment could not be recorded", cause)

	ref := ""
	if session.PaymentReference != nil {
		ref = *session.PaymentReference
	}
	return s.unrecorded(session, ref, reason)
}

func (s *Service) unrecorded(session *models.CheckoutSession, captureID string, reason enums.CheckoutFailureReason) error {
	return ErrPaymentUnrecorded.WithDetails(map[string]any{
		"reason":           "payment_unrecorded",
		"failure_reason":   reason,
		"gateway_order_id": session.GatewayOrderID,
		"capture_id":       captureID,
	})
}

func failureReason(session *models.CheckoutSession) enums.CheckoutFailureReason {
	if session.FailureReason == nil {
		return enums.FailurePersistFailed
	}
	return *session.FailureReason
}

// revalidate requires every cart line to still be purchasable in full.
func revalidate(res pricing.Resolution) (enums.CheckoutFailureReason, bool) {
	for _, d := range res.Discarded {
		if d.Reason == pricing.DiscardOutOfStock {
			return enums.FailureInsufficientStock, false
		}
		return enums.FailureProductUnavailable, false
	}
	if res.Empty() {
		return enums.FailureEmptyCart, false
	}
	for _, l := range res.Lines {
		if l.LowStock {
			return enums.FailureInsufficientStock, false
		}
	}
	return "", true
}
