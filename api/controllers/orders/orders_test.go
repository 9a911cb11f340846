package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubHistory struct {
	listParams  internalorders.ListParams
	listCaller  uuid.UUID
	detailOrder uuid.UUID
	detail      *internalorders.Detail
	detailErr   error
}

func (s *stubHistory) List(_ context.Context, customerID uuid.UUID, params internalorders.ListParams) (pagination.Page[internalorders.Summary], error) {
	s.listCaller = customerID
	s.listParams = params
	return pagination.Page[internalorders.Summary]{
		Items:      []internalorders.Summary{{ID: uuid.New(), OrderNumber: "SF-0001", Status: enums.OrderStatusPaid}},
		NextCursor: "next",
	}, nil
}

func (s *stubHistory) Detail(_ context.Context, orderID, _ uuid.UUID) (*internalorders.Detail, error) {
	s.detailOrder = orderID
	return s.detail, s.detailErr
}

func routed(pattern string, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Get(pattern, h)
	return r
}

func TestListParsesFilters(t *testing.T) {
	svc := &stubHistory{}
	customerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=PAID&q=%20SF-00%20&limit=5&cursor=abc", nil)
	req = req.WithContext(middleware.WithCustomerID(req.Context(), customerID))

	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.listCaller != customerID {
		t.Fatalf("listed for wrong customer %s", svc.listCaller)
	}
	p := svc.listParams
	if p.Status == nil || *p.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid filter, got %v", p.Status)
	}
	if p.Search != "SF-00" || p.Limit != 5 || p.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", p)
	}

	var envelope struct {
		Data pagination.Page[internalorders.Summary] `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=lost", nil)
	resp := httptest.NewRecorder()
	List(&stubHistory{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListRejectsOversizedLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=1000", nil)
	resp := httptest.NewRecorder()
	List(&stubHistory{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDetailReturnsOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubHistory{detail: &internalorders.Detail{ID: orderID, OrderNumber: "SF-0042"}}

	resp := httptest.NewRecorder()
	routed("/api/v1/orders/{orderId}", Detail(svc, nil)).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.detailOrder != orderID {
		t.Fatalf("looked up wrong order %s", svc.detailOrder)
	}
}

func TestDetailHidesForeignOrders(t *testing.T) {
	svc := &stubHistory{detailErr: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}

	resp := httptest.NewRecorder()
	routed("/api/v1/orders/{orderId}", Detail(svc, nil)).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestDetailRejectsMalformedID(t *testing.T) {
	resp := httptest.NewRecorder()
	routed("/api/v1/orders/{orderId}", Detail(&stubHistory{}, nil)).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
