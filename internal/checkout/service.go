package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/order"
	"github.com/tienda-labs/backend-tienda/internal/pricing"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
	"github.com/tienda-labs/backend-tienda/internal/voucher"
)

// Addr is the shipping address frozen into the order.
type Addr struct {
	ReceiverName string `json:"receiverName"`
	Phone        string `json:"phone"`
	Country      string `json:"country"`
	Province     string `json:"province"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
}

// Input is the checkout request payload.
type Input struct {
	Address Addr `json:"address"`
}

// Output is the checkout response payload.
type Output struct {
	OrderID string      `json:"orderId"`
	Status  string      `json:"status"`
	Total   promo.Money `json:"total"`
}

// Service turns the authenticated user's cart into an immutable order.
// Line prices, payable units, and promotion labels are snapshotted into
// order items; later promotion or price changes never touch an order.
type Service struct {
	Store    *store.Store
	TaxBps   int
	Shipping promo.Money
	Bus      *events.Bus
	Now      func() time.Time
	Log      zerolog.Logger
}

// Create places an order from the user's cart: stock is decremented and
// the snapshot written in one transaction, then the cart is emptied and
// an order.created event emitted.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Output, error) {
	if s == nil || s.Store == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if userID == "" {
		return Output{}, common.BadRequest("user is required for checkout", nil)
	}
	uid, err := store.UUIDValue(userID)
	if err != nil {
		return Output{}, common.BadRequest("invalid user id", nil)
	}
	user, err := s.Store.GetUserByID(ctx, uid)
	if err != nil {
		return Output{}, err
	}
	cartRow, err := s.Store.GetCartByUser(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Output{}, common.BadRequest("cart is empty", nil)
		}
		return Output{}, err
	}
	lines, err := s.Store.ListCartLines(ctx, cartRow.ID)
	if err != nil {
		return Output{}, err
	}
	if len(lines) == 0 {
		return Output{}, common.BadRequest("cart is empty", nil)
	}

	var voucherCode *string
	var voucherDiscount promo.Money
	if cartRow.VoucherCode.Valid && cartRow.VoucherCode.String != "" {
		code := cartRow.VoucherCode.String
		if row, err := s.Store.GetVoucherByCode(ctx, code); err == nil {
			if d, err := voucher.Evaluate(row, promotedSubtotal(lines), s.now()); err == nil {
				voucherCode = &code
				voucherDiscount = d
			}
		}
	}

	items, summary := Snapshot(lines, voucherDiscount, s.TaxBps, s.Shipping)
	addr, err := json.Marshal(in.Address)
	if err != nil {
		return Output{}, common.BadRequest("invalid address", nil)
	}

	var orderID pgtype.UUID
	err = s.Store.InTx(ctx, func(tx pgx.Tx) error {
		for _, l := range lines {
			if err := store.DecrementStock(ctx, tx, l.Product.ID, l.Qty); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return common.Conflict("INSUFFICIENT_STOCK", "not enough stock for "+l.Product.Title)
				}
				return err
			}
		}
		id, err := store.InsertOrderTx(ctx, tx, store.InsertOrderParams{
			UserID:          uid,
			Email:           user.Email,
			Subtotal:        summary.Subtotal,
			PromoDiscount:   summary.PromoDiscount,
			VoucherCode:     voucherCode,
			VoucherDiscount: summary.Voucher,
			Tax:             summary.Tax,
			ShippingFee:     summary.Shipping,
			Total:           summary.Total,
			ShippingAddress: addr,
		})
		if err != nil {
			return err
		}
		orderID = id
		for _, item := range items {
			if err := store.InsertOrderItemTx(ctx, tx, id, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues("error").Inc()
		}
		return Output{}, err
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("ok").Inc()
	}

	if err := s.Store.ClearCart(ctx, cartRow.ID); err != nil {
		s.Log.Warn().Err(err).Str("cart_id", store.UUIDString(cartRow.ID)).Msg("clear cart after checkout")
	}
	if err := s.Store.SetCartVoucher(ctx, cartRow.ID, nil); err != nil {
		s.Log.Warn().Err(err).Str("cart_id", store.UUIDString(cartRow.ID)).Msg("detach voucher after checkout")
	}

	if s.Bus != nil {
		payload := map[string]any{
			"orderId": store.UUIDString(orderID),
			"userId":  userID,
			"email":   user.Email,
			"total":   summary.Total,
		}
		if _, err := s.Bus.Emit(ctx, events.TopicOrderCreated, payload); err != nil {
			s.Log.Warn().Err(err).Str("order_id", store.UUIDString(orderID)).Msg("emit order.created")
		}
	}

	return Output{
		OrderID: store.UUIDString(orderID),
		Status:  order.StatusPendingPayment,
		Total:   summary.Total,
	}, nil
}

// Snapshot prices every cart line through the promotion engine and
// freezes the result into order item parameters plus the cart summary.
func Snapshot(lines []store.CartLine, voucherDiscount promo.Money, taxBps int, shipping promo.Money) ([]store.InsertOrderItemParams, pricing.Summary) {
	items := make([]store.InsertOrderItemParams, 0, len(lines))
	engineLines := make([]promo.LineItem, 0, len(lines))
	for _, l := range lines {
		li := l.PricingLine()
		engineLines = append(engineLines, li)
		item := store.InsertOrderItemParams{
			ProductID:    l.Product.ID,
			Title:        l.Product.Title,
			Selector:     l.Selector,
			UnitPrice:    l.Product.Price,
			Qty:          l.Qty,
			PayableUnits: int32(li.PayableUnits()),
			LineTotal:    li.Total(),
		}
		if li.Promo != nil {
			if label := li.Promo.Label(l.Product.Price); label != "" {
				item.PromoLabel = &label
			}
			if obs.PromotionAppliedTotal != nil {
				obs.PromotionAppliedTotal.WithLabelValues(string(li.Promo.Kind)).Inc()
			}
		}
		items = append(items, item)
	}
	return items, pricing.Compute(engineLines, voucherDiscount, taxBps, shipping)
}

func promotedSubtotal(lines []store.CartLine) promo.Money {
	engineLines := make([]promo.LineItem, 0, len(lines))
	for _, l := range lines {
		engineLines = append(engineLines, l.PricingLine())
	}
	return promo.CartTotal(engineLines)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
