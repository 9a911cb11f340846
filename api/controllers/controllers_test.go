package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/flash"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type stubAuthService struct {
	guest    cart.Owner
	revoked  string
	loginErr error
}

func (s *stubAuthService) Login(_ context.Context, req auth.LoginRequest, guest cart.Owner) (*auth.LoginResponse, error) {
	s.guest = guest
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.LoginResponse{
		AccessToken: "token",
		ExpiresAt:   time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC),
		Customer:    &auth.CustomerDTO{ID: uuid.New(), Email: req.Email},
	}, nil
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body.Error.Code
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, stubPinger{}, stubPinger{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, stubPinger{}, stubPinger{err: errors.New("down")}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestAuthLoginMergesGuestCartAndExpiresCookie(t *testing.T) {
	svc := &stubAuthService{}
	guestID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ana@example.com","password":"hunter22"}`))
	req.AddCookie(&http.Cookie{Name: middleware.GuestCartCookie, Value: guestID.String()})

	rec := httptest.NewRecorder()
	AuthLogin(svc, config.CartConfig{TTL: time.Hour}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.guest != cart.GuestOwner(guestID.String()) {
		t.Fatalf("expected guest owner forwarded, got %q", svc.guest)
	}
	if rec.Header().Get("X-SF-Token") != "token" {
		t.Fatal("expected token header")
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.GuestCartCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected guest cookie to be expired")
	}
}

func TestAuthLoginKeepsCookieOnFailure(t *testing.T) {
	svc := &stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`))
	req.AddCookie(&http.Cookie{Name: middleware.GuestCartCookie, Value: uuid.NewString()})

	rec := httptest.NewRecorder()
	AuthLogin(svc, config.CartConfig{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("failed login must not touch the guest cookie")
	}
}

func TestAuthLoginValidatesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthLogin(&stubAuthService{}, config.CartConfig{}, nil).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"nope"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAuthLogoutRevokesSession(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}
}

type stubCheckout struct {
	start      *checkoutsvc.PaymentStart
	startErr   error
	customer   uuid.UUID
	capture    checkoutsvc.Capture
	commit     *checkoutsvc.CommitResult
	captureErr error
}

func (s *stubCheckout) BeginPayment(_ context.Context, customerID uuid.UUID) (*checkoutsvc.PaymentStart, error) {
	s.customer = customerID
	return s.start, s.startErr
}

func (s *stubCheckout) ConfirmCapture(_ context.Context, c checkoutsvc.Capture) (*checkoutsvc.CommitResult, error) {
	s.capture = c
	return s.commit, s.captureErr
}

func TestCheckoutPaymentReturnsGatewayOrder(t *testing.T) {
	customerID := uuid.New()
	svc := &stubCheckout{start: &checkoutsvc.PaymentStart{
		SessionID:      uuid.New(),
		GatewayOrderID: "sq-order-1",
		AmountCents:    24500,
		Quote:          &checkoutsvc.QuoteResult{Currency: "USD"},
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payment", nil)
	req = req.WithContext(middleware.WithCustomerID(req.Context(), customerID))

	rec := httptest.NewRecorder()
	CheckoutPayment(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.customer != customerID {
		t.Fatalf("payment started for wrong customer")
	}
	var envelope struct {
		Data paymentResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.GatewayOrderID != "sq-order-1" || envelope.Data.AmountCents != 24500 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestCheckoutPaymentEmptyCart(t *testing.T) {
	svc := &stubCheckout{startErr: checkoutsvc.ErrEmptyCart}
	rec := httptest.NewRecorder()
	CheckoutPayment(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payment", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if code := decodeError(t, rec); code != string(pkgerrors.CodeEmptyCart) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestCheckoutCaptureStatusReflectsDuplicate(t *testing.T) {
	customerID := uuid.New()
	body := `{"gateway_order_id":"sq-order-1","capture_id":"pay-1"}`

	for _, tc := range []struct {
		duplicate bool
		status    int
	}{{false, http.StatusCreated}, {true, http.StatusOK}} {
		svc := &stubCheckout{commit: &checkoutsvc.CommitResult{OrderID: uuid.New(), OrderNumber: "SF-0001", Duplicate: tc.duplicate}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/capture", strings.NewReader(body))
		req = req.WithContext(middleware.WithCustomerID(req.Context(), customerID))

		rec := httptest.NewRecorder()
		CheckoutCapture(svc, nil).ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("duplicate=%v: expected %d got %d", tc.duplicate, tc.status, rec.Code)
		}
		want := checkoutsvc.Capture{CustomerID: customerID, GatewayOrderID: "sq-order-1", CaptureID: "pay-1"}
		if svc.capture != want {
			t.Fatalf("unexpected capture %+v", svc.capture)
		}
	}
}

func TestCheckoutCaptureUnrecordedPayment(t *testing.T) {
	svc := &stubCheckout{captureErr: checkoutsvc.ErrPaymentUnrecorded.WithDetails(map[string]any{"reason": "payment_unrecorded"})}
	rec := httptest.NewRecorder()
	CheckoutCapture(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/capture",
		bytes.NewBufferString(`{"gateway_order_id":"sq-order-1","capture_id":"pay-1"}`)))

	if code := decodeError(t, rec); code != string(pkgerrors.CodePaymentUnrecorded) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestFlashNoticeIsReadOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	store := flash.NewStore(pkgredis.Wrap(raw), time.Minute)

	customerID := uuid.New()
	notice := flash.Notice{OrderID: uuid.New(), OrderNumber: "SF-0007"}
	if err := store.Put(context.Background(), cart.CustomerOwner(customerID).String(), notice); err != nil {
		t.Fatalf("put: %v", err)
	}

	read := func() *flash.Notice {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notices/flash", nil)
		req = req.WithContext(middleware.WithCustomerID(req.Context(), customerID))
		rec := httptest.NewRecorder()
		FlashNotice(store, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		var envelope struct {
			Data flashResponse `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return envelope.Data.Notice
	}

	first := read()
	if first == nil || first.OrderNumber != "SF-0007" {
		t.Fatalf("expected notice on first read, got %+v", first)
	}
	if second := read(); second != nil {
		t.Fatalf("expected nil on second read, got %+v", second)
	}
}
