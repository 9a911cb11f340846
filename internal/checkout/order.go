package checkout

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func buildOrder(number string, session *models.CheckoutSession, profile *customers.Profile, lines []pricing.PricedLine, quote pricing.Quote, currency string) *models.Order {
	order := &models.Order{
		OrderNumber:      number,
		CustomerID:       session.CustomerID,
		ContactName:      profile.FullName,
		ContactEmail:     profile.Email,
		ContactPhone:     profile.Phone,
		AddressLine1:     profile.AddressLine1,
		AddressLine2:     profile.AddressLine2,
		City:             profile.City,
		Region:           profile.Region,
		PostalCode:       profile.PostalCode,
		Country:          profile.Country,
		Subtotal:         quote.Subtotal,
		Discount:         quote.Discount,
		Shipping:         quote.Shipping,
		Tax:              quote.Tax,
		Total:            quote.GrandTotal,
		Currency:         currency,
		Status:           enums.OrderStatusPaid,
		PaymentMethod:    enums.PaymentMethodSquare,
		PaymentReference: *session.PaymentReference,
		Items:            make([]models.OrderItem, 0, len(lines)),
	}
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			SKU:         l.Product.SKU,
			Category:    l.Product.Category,
			Gender:      l.Product.Gender,
			Size:        l.Key.Size,
			Color:       l.Key.Color,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			UnitCost:    types.RoundMoney(l.Product.CostPrice),
			LineTotal:   l.LineTotal,
			LineCost:    types.RoundMoney(l.Product.CostPrice.Mul(qty)),
		})
	}
	return order
}

func orderPaidEvent(order *models.Order, paidAt time.Time) outbox.DomainEvent {
	items := make([]payloads.OrderPaidItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, payloads.OrderPaidItem{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.ProductName,
			Color:     it.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	customerID := order.CustomerID
	return outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{CustomerID: &customerID, Source: outbox.SourceCheckout},
		OccurredAt:    paidAt,
		Data: payloads.OrderPaidEvent{
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			CustomerID:       order.CustomerID,
			ContactEmail:     order.ContactEmail,
			Total:            order.Total,
			Currency:         order.Currency,
			PaymentReference: order.PaymentReference,
			Items:            items,
			PaidAt:           paidAt,
		},
	}
}
