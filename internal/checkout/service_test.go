package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/flash"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type fakeGateway struct {
	mu        sync.Mutex
	created   []GatewayOrder
	captures  map[string]*CaptureStatus
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{captures: map[string]*CaptureStatus{}}
}

func (g *fakeGateway) CreateOrder(_ context.Context, order GatewayOrder) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.created = append(g.created, order)
	return fmt.Sprintf("sq-order-%d", len(g.created)), nil
}

func (g *fakeGateway) GetCapture(_ context.Context, captureID string) (*CaptureStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.captures[captureID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return status, nil
}

// pay simulates the shopper completing payment for the most recent gateway order.
func (g *fakeGateway) pay(captureID string, completed bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	orderID := fmt.Sprintf("sq-order-%d", len(g.created))
	g.captures[captureID] = &CaptureStatus{
		CaptureID:      captureID,
		GatewayOrderID: orderID,
		Completed:      completed,
		AmountCents:    g.created[len(g.created)-1].AmountCents,
		Currency:       "USD",
	}
	return orderID
}

func (g *fakeGateway) createCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

type fixedQuoter struct{ quote pricing.Quote }

func (f fixedQuoter) Quote([]pricing.PricedLine) pricing.Quote { return f.quote }

type harness struct {
	svc      *Service
	db       *gorm.DB
	mr       *miniredis.Miniredis
	cart     *cart.Repository
	flash    *flash.Store
	gateway  *fakeGateway
	customer uuid.UUID
	product  models.Product
}

type harnessOption func(*ServiceParams)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	gdb := dbtest.Open(t, models.All()...)
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	rc := redis.Wrap(raw)

	customer := models.Customer{Email: "ada@example.com", PasswordHash: "x", FullName: "Ada Shopper"}
	require.NoError(t, gdb.Create(&customer).Error)
	product := models.Product{
		SKU:       "TEE-1",
		Name:      "Cotton Tee",
		Category:  "tops",
		Gender:    "women",
		Price:     decimal.RequireFromString("20.00"),
		CostPrice: decimal.RequireFromString("8.00"),
		Stock:     5,
	}
	require.NoError(t, gdb.Create(&product).Error)

	carts := cart.NewRepository(rc, time.Hour, logger.Nop())
	flashes := flash.NewStore(rc, time.Minute)
	guard, err := idempotency.NewGuard(rc, time.Minute, "capture")
	require.NoError(t, err)
	gateway := newFakeGateway()

	shipping := pricing.FlatShipping{Amount: decimal.RequireFromString("5.00")}

	params := ServiceParams{
		Cart:       carts,
		Pricer:     pricing.NewPricer(catalog.NewRepository(gdb)),
		Aggregator: pricing.NewAggregator(shipping, nil, nil),
		Customers:  customers.NewRepository(gdb),
		Sessions:   NewSessionRepository(gdb),
		Orders:     orders.NewRepository(gdb),
		Tx:         db.FromGorm(gdb),
		Outbox:     outbox.NewService(outbox.NewRepository(gdb), logger.Nop()),
		Gateway:    gateway,
		Guard:      guard,
		Flash:      flashes,
		Logger:     logger.Nop(),
		Currency:   "USD",
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &harness{
		svc:      svc,
		db:       gdb,
		mr:       mr,
		cart:     carts,
		flash:    flashes,
		gateway:  gateway,
		customer: customer.ID,
		product:  product,
	}
}

func (h *harness) owner() cart.Owner { return cart.CustomerOwner(h.customer) }

func (h *harness) addToCart(t *testing.T, qty int) {
	t.Helper()
	key, err := cart.NewVariantKey(h.product.ID, "black", "M")
	require.NoError(t, err)
	require.NoError(t, h.cart.AddOrIncrement(context.Background(), h.owner(), key, qty))
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func (h *harness) session(t *testing.T, gatewayOrderID string) models.CheckoutSession {
	t.Helper()
	var s models.CheckoutSession
	require.NoError(t, h.db.Where("gateway_order_id = ?", gatewayOrderID).First(&s).Error)
	return s
}

func failureReasonOf(t *testing.T, err error) enums.CheckoutFailureReason {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok, "expected map details, got %T", typed.Details())
	reason, _ := details["failure_reason"].(enums.CheckoutFailureReason)
	return reason
}

func TestCheckoutHappyPathCommitsOrderAndClearsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 2)

	start, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	assert.EqualValues(t, 4500, start.AmountCents)
	assert.Equal(t, enums.CheckoutStateAwaitingPaymentConfirmation, start.Quote.State)
	require.Equal(t, 1, h.gateway.createCalls())
	assert.Equal(t, "checkout-"+start.SessionID.String(), h.gateway.created[0].IdempotencyKey)

	gatewayOrderID := h.gateway.pay("cap-1", true)
	require.Equal(t, start.GatewayOrderID, gatewayOrderID)

	res, err := h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-1"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Regexp(t, `^SF-\d{8}-[A-Z2-9]{6}$`, res.OrderNumber)

	var order models.Order
	require.NoError(t, h.db.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, "cap-1", order.PaymentReference)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, "Ada Shopper", order.ContactName)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("40")))
	assert.True(t, order.Shipping.Equal(decimal.RequireFromString("5")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("45")))
	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "Cotton Tee", item.ProductName)
	assert.Equal(t, "black", item.Color)
	assert.Equal(t, "M", item.Size)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.LineCost.Equal(decimal.RequireFromString("16")))

	assert.Equal(t, enums.CheckoutStateCommitted, h.session(t, gatewayOrderID).State)
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}))

	lines, err := h.cart.Enumerate(ctx, h.owner())
	require.NoError(t, err)
	assert.Empty(t, lines)

	notice, err := h.flash.Take(ctx, h.owner().String())
	require.NoError(t, err)
	require.NotNil(t, notice)
	assert.Equal(t, res.OrderNumber, notice.OrderNumber)
}

func TestQuoteRepricesSaleWithoutTouchingCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", h.product.ID).Update("price", decimal.RequireFromString("50.00")).Error)
	key, err := cart.NewVariantKey(h.product.ID, "red", "M")
	require.NoError(t, err)
	require.NoError(t, h.cart.AddOrIncrement(ctx, h.owner(), key, 2))

	before, err := h.svc.Quote(ctx, h.owner())
	require.NoError(t, err)
	assert.Equal(t, "100.00", before.Quote.Subtotal.StringFixed(2))
	assert.Equal(t, "105.00", before.Quote.GrandTotal.StringFixed(2))

	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", h.product.ID).Updates(map[string]any{
		"on_sale":    true,
		"sale_price": decimal.RequireFromString("40.00"),
	}).Error)

	after, err := h.svc.Quote(ctx, h.owner())
	require.NoError(t, err)
	assert.Equal(t, "80.00", after.Quote.Subtotal.StringFixed(2))
	assert.Equal(t, "85.00", after.Quote.GrandTotal.StringFixed(2))

	lines, err := h.cart.Enumerate(ctx, h.owner())
	require.NoError(t, err)
	assert.Equal(t, []cart.Line{{Key: key, Quantity: 2}}, lines)
}

func TestConfirmCaptureTwiceReturnsSameOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-dup", true)
	capture := Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-dup"}

	first, err := h.svc.ConfirmCapture(ctx, capture)
	require.NoError(t, err)
	second, err := h.svc.ConfirmCapture(ctx, capture)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.EqualValues(t, 1, h.count(t, &models.Order{}))
	assert.EqualValues(t, 1, h.count(t, &models.OrderItem{}))
}

func TestConfirmGatewayCaptureUsesSessionCustomer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-hook", true)

	res, err := h.svc.ConfirmGatewayCapture(ctx, gatewayOrderID, "cap-hook")
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, h.db.First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, h.customer, order.CustomerID)

	// The browser return arriving afterwards resolves to the same order.
	again, err := h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-hook"})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.OrderNumber, again.OrderNumber)
}

func TestBeginPaymentRequiresAuthenticatedCustomer(t *testing.T) {
	h := newHarness(t)
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(context.Background(), uuid.Nil)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, err = h.svc.BeginPayment(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotAuthenticated))

	require.NoError(t, h.db.Model(&models.Customer{}).Where("id = ?", h.customer).Update("is_active", false).Error)
	_, err = h.svc.BeginPayment(context.Background(), h.customer)
	assert.True(t, errors.Is(err, ErrNotAuthenticated))

	assert.Zero(t, h.gateway.createCalls())
	assert.Zero(t, h.count(t, &models.CheckoutSession{}))
}

func TestBeginPaymentRejectsEmptyCart(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.BeginPayment(context.Background(), h.customer)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeEmptyCart, pkgerrors.CodeOf(err))
	assert.Zero(t, h.gateway.createCalls())
}

func TestBeginPaymentTreatsUnavailableOnlyCartAsEmpty(t *testing.T) {
	h := newHarness(t)
	h.addToCart(t, 1)
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", h.product.ID).Update("stock", 0).Error)

	_, err := h.svc.BeginPayment(context.Background(), h.customer)
	assert.Equal(t, pkgerrors.CodeEmptyCart, pkgerrors.CodeOf(err))
	assert.Zero(t, h.gateway.createCalls())
}

func TestBeginPaymentRejectsZeroTotal(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Aggregator = fixedQuoter{quote: pricing.Quote{GrandTotal: decimal.Zero, ItemCount: 1}}
	})
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(context.Background(), h.customer)
	assert.True(t, errors.Is(err, ErrZeroAmount))
	assert.Zero(t, h.gateway.createCalls())
}

func TestBeginPaymentSurfacesGatewayError(t *testing.T) {
	h := newHarness(t)
	h.addToCart(t, 1)
	h.gateway.createErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway down")

	_, err := h.svc.BeginPayment(context.Background(), h.customer)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Zero(t, h.count(t, &models.CheckoutSession{}))
}

func TestConfirmCaptureDeclinedPaymentLeavesSessionAwaiting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-declined", false)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-declined"})
	assert.True(t, errors.Is(err, ErrPaymentNotCaptured))
	assert.Equal(t, enums.CheckoutStateAwaitingPaymentConfirmation, h.session(t, gatewayOrderID).State)
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestConfirmCaptureRejectsCaptureForAnotherGatewayOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	start, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	h.gateway.pay("cap-x", true)
	h.gateway.captures["cap-x"].GatewayOrderID = "sq-order-other"

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: start.GatewayOrderID, CaptureID: "cap-x"})
	assert.True(t, errors.Is(err, ErrCaptureMismatch))
	assert.Equal(t, enums.CheckoutStateAwaitingPaymentConfirmation, h.session(t, start.GatewayOrderID).State)
}

func TestConfirmCaptureHidesOtherCustomersSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-other", true)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: uuid.New(), GatewayOrderID: gatewayOrderID, CaptureID: "cap-other"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestConfirmCaptureStockDropFailsWithoutTouchingCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 3)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-stock", true)
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", h.product.ID).Update("stock", 1).Error)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-stock"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentUnrecorded))
	assert.Equal(t, enums.FailureInsufficientStock, failureReasonOf(t, err))

	session := h.session(t, gatewayOrderID)
	assert.Equal(t, enums.CheckoutStateFailed, session.State)
	require.NotNil(t, session.PaymentReference)
	assert.Equal(t, "cap-stock", *session.PaymentReference)
	assert.Zero(t, h.count(t, &models.Order{}))

	lines, err := h.cart.Enumerate(ctx, h.owner())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	// Retrying the same capture reports the recorded failure again.
	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-stock"})
	assert.Equal(t, enums.FailureInsufficientStock, failureReasonOf(t, err))
}

func TestConfirmCaptureDetectsAmountChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-amount", true)
	h.addToCart(t, 1)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-amount"})
	assert.Equal(t, enums.FailureAmountMismatch, failureReasonOf(t, err))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestConfirmCaptureEmptiedCartFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-empty", true)
	require.NoError(t, h.cart.Clear(ctx, h.owner()))

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-empty"})
	assert.Equal(t, enums.FailureEmptyCart, failureReasonOf(t, err))
}

func TestConfirmCaptureDeactivatedCustomerFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-inactive", true)
	require.NoError(t, h.db.Model(&models.Customer{}).Where("id = ?", h.customer).Update("is_active", false).Error)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-inactive"})
	assert.Equal(t, enums.FailureNotAuthenticated, failureReasonOf(t, err))
}

func TestConfirmCaptureRollsBackOnMidTransactionFailure(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) { p.Outbox = failingEmitter{} })
	ctx := context.Background()
	h.addToCart(t, 2)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-rollback", true)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-rollback"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePaymentUnrecorded, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.FailurePersistFailed, failureReasonOf(t, err))

	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Zero(t, h.count(t, &models.OrderItem{}))
	assert.Equal(t, enums.CheckoutStateFailed, h.session(t, gatewayOrderID).State)

	lines, err := h.cart.Enumerate(ctx, h.owner())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)

	notice, err := h.flash.Take(ctx, h.owner().String())
	require.NoError(t, err)
	assert.Nil(t, notice)
}

func TestConfirmCaptureWithStrictReserverDecrementsStock(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) { p.Reserver = catalog.NewReserver(true) })
	ctx := context.Background()
	h.addToCart(t, 2)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-strict", true)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-strict"})
	require.NoError(t, err)

	var product models.Product
	require.NoError(t, h.db.First(&product, h.product.ID).Error)
	assert.Equal(t, 3, product.Stock)
}

func TestConfirmCaptureReportsInFlightCapture(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	_, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-busy", true)
	require.NoError(t, h.mr.Set("sf:idempotency:capture:cap-busy", "1"))

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-busy"})
	assert.Equal(t, pkgerrors.CodeIdempotency, pkgerrors.CodeOf(err))
	assert.Zero(t, h.count(t, &models.Order{}))
}

// interruptCommit leaves the session the way a crash after BeginCommit does.
func (h *harness) interruptCommit(t *testing.T, start *PaymentStart, captureID string) {
	t.Helper()
	started, err := h.svc.sessions.BeginCommit(context.Background(), start.SessionID, captureID)
	require.NoError(t, err)
	require.True(t, started)
}

func TestConfirmCaptureResumesInterruptedCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 2)

	start, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-crash", true)
	h.interruptCommit(t, start, "cap-crash")

	res, err := h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-crash"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.EqualValues(t, 1, h.count(t, &models.Order{}))

	session := h.session(t, gatewayOrderID)
	assert.Equal(t, enums.CheckoutStateCommitted, session.State)
	require.NotNil(t, session.OrderID)
	assert.Equal(t, res.OrderID, *session.OrderID)

	again, err := h.svc.ConfirmGatewayCapture(ctx, gatewayOrderID, "cap-crash")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.OrderNumber, again.OrderNumber)
}

func TestConfirmGatewayCaptureResumesInterruptedCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	start, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-crash-hook", true)
	h.interruptCommit(t, start, "cap-crash-hook")

	res, err := h.svc.ConfirmGatewayCapture(ctx, gatewayOrderID, "cap-crash-hook")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, enums.CheckoutStateCommitted, h.session(t, gatewayOrderID).State)
}

func TestConfirmCaptureInterruptedCommitThatCannotFinishIsUnrecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	start, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-crash-empty", true)
	h.interruptCommit(t, start, "cap-crash-empty")
	require.NoError(t, h.cart.Clear(ctx, h.owner()))

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-crash-empty"})
	assert.Equal(t, pkgerrors.CodePaymentUnrecorded, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.FailureEmptyCart, failureReasonOf(t, err))
	assert.Equal(t, enums.CheckoutStateFailed, h.session(t, gatewayOrderID).State)
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestConfirmCaptureOtherCaptureOnCommittingSessionConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addToCart(t, 1)

	start, err := h.svc.BeginPayment(ctx, h.customer)
	require.NoError(t, err)
	gatewayOrderID := h.gateway.pay("cap-first", true)
	h.interruptCommit(t, start, "cap-first")
	h.gateway.pay("cap-second", true)

	_, err = h.svc.ConfirmCapture(ctx, Capture{CustomerID: h.customer, GatewayOrderID: gatewayOrderID, CaptureID: "cap-second"})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.CheckoutStateCommitting, h.session(t, gatewayOrderID).State)
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestConfirmCaptureValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ConfirmCapture(context.Background(), Capture{CustomerID: h.customer})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCheckoutStateTransitions(t *testing.T) {
	cases := []struct {
		from, to enums.CheckoutState
		ok       bool
	}{
		{enums.CheckoutStateQuoted, enums.CheckoutStateAwaitingPaymentConfirmation, true},
		{enums.CheckoutStateAwaitingPaymentConfirmation, enums.CheckoutStateCommitting, true},
		{enums.CheckoutStateCommitting, enums.CheckoutStateCommitted, true},
		{enums.CheckoutStateCommitting, enums.CheckoutStateFailed, true},
		{enums.CheckoutStateQuoted, enums.CheckoutStateCommitted, false},
		{enums.CheckoutStateAwaitingPaymentConfirmation, enums.CheckoutStateCommitted, false},
		{enums.CheckoutStateCommitted, enums.CheckoutStateFailed, false},
		{enums.CheckoutStateFailed, enums.CheckoutStateCommitting, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
	err := checkTransition(enums.CheckoutStateCommitted, enums.CheckoutStateCommitting)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
