package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "storefront",
	ExpirationMinutes: 30,
}

func TestServiceLoginMintsTokenAndMergesGuestCart(t *testing.T) {
	password := "shopper-secret"
	customer := activeCustomer(t, password)
	svc, sessions, carts := buildTestService(t, customer)

	guest := cart.GuestOwner("abc")
	resp, err := svc.Login(context.Background(), LoginRequest{Email: "Ada@Example.com ", Password: password}, guest)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.CustomerID != customer.ID {
		t.Fatalf("expected customer claim %s, got %s", customer.ID, claims.CustomerID)
	}
	if sessions.registered[claims.ID] != customer.ID {
		t.Fatalf("expected session registered for jti %q", claims.ID)
	}
	if resp.Customer == nil || resp.Customer.Email != customer.Email {
		t.Fatalf("unexpected customer payload %+v", resp.Customer)
	}
	if len(carts.merges) != 1 || carts.merges[0] != [2]cart.Owner{guest, cart.CustomerOwner(customer.ID)} {
		t.Fatalf("expected guest cart merge, got %v", carts.merges)
	}
	if customer.LastLoginAt == nil {
		t.Fatal("expected last login recorded")
	}
}

func TestServiceLoginWithoutGuestCartSkipsMerge(t *testing.T) {
	customer := activeCustomer(t, "pw")
	svc, _, carts := buildTestService(t, customer)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: "pw"}, ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(carts.merges) != 0 {
		t.Fatalf("expected no merge, got %v", carts.merges)
	}
}

func TestServiceLoginSurvivesMergeFailure(t *testing.T) {
	customer := activeCustomer(t, "pw")
	svc, _, carts := buildTestService(t, customer)
	carts.err = errors.New("redis down")

	if _, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: "pw"}, cart.GuestOwner("g")); err != nil {
		t.Fatalf("merge failure should not fail login: %v", err)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	customer := activeCustomer(t, "right")
	svc, sessions, _ := buildTestService(t, customer)

	cases := map[string]LoginRequest{
		"wrong password": {Email: customer.Email, Password: "wrong"},
		"blank email":    {Email: " ", Password: "right"},
		"unknown email":  {Email: "nobody@example.com", Password: "right"},
	}
	for name, req := range cases {
		_, err := svc.Login(context.Background(), req, "")
		if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
	if len(sessions.registered) != 0 {
		t.Fatalf("no session should be registered, got %v", sessions.registered)
	}
}

func TestServiceLoginRejectsInactiveCustomer(t *testing.T) {
	customer := activeCustomer(t, "pw")
	customer.IsActive = false
	svc, _, _ := buildTestService(t, customer)

	_, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: "pw"}, "")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	svc, sessions, _ := buildTestService(t, activeCustomer(t, "pw"))
	sessions.registered["jti-1"] = uuid.New()

	if err := svc.Logout(context.Background(), "jti-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.registered["jti-1"]; ok {
		t.Fatal("expected session revoked")
	}
	if err := svc.Logout(context.Background(), ""); pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for blank access id, got %v", err)
	}
}

func buildTestService(t *testing.T, customer *models.Customer) (Service, *stubSessionManager, *stubCartMerger) {
	t.Helper()
	sessions := &stubSessionManager{registered: map[string]uuid.UUID{}}
	carts := &stubCartMerger{}
	svc, err := NewService(ServiceParams{
		CustomerRepo:   &stubCustomerRepo{customer: customer},
		SessionManager: sessions,
		Carts:          carts,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions, carts
}

func activeCustomer(t *testing.T, password string) *models.Customer {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    64,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.Customer{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: hash,
		FullName:     "Ada Shopper",
		IsActive:     true,
	}
}

type stubCustomerRepo struct {
	customer *models.Customer
}

func (s *stubCustomerRepo) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	if s.customer == nil || email == "" || !strings.EqualFold(s.customer.Email, email) {
		return nil, customers.ErrCustomerNotFound
	}
	return s.customer, nil
}

func (s *stubCustomerRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.customer != nil && s.customer.ID == id {
		s.customer.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	registered map[string]uuid.UUID
}

func (s *stubSessionManager) Register(_ context.Context, accessID string, customerID uuid.UUID) error {
	s.registered[accessID] = customerID
	return nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.registered, accessID)
	return nil
}

type stubCartMerger struct {
	merges [][2]cart.Owner
	err    error
}

func (s *stubCartMerger) Merge(_ context.Context, from, into cart.Owner) error {
	if s.err != nil {
		return s.err
	}
	s.merges = append(s.merges, [2]cart.Owner{from, into})
	return nil
}
