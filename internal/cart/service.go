package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/pricing"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
	"github.com/tienda-labs/backend-tienda/internal/voucher"
)

type querier interface {
	GetCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	GetCartByToken(ctx context.Context, token string) (store.Cart, error)
	CreateCart(ctx context.Context, userID pgtype.UUID, token *string, ttl time.Duration) (store.Cart, error)
	TouchCart(ctx context.Context, cartID pgtype.UUID, ttl time.Duration) error
	SetCartVoucher(ctx context.Context, cartID pgtype.UUID, code *string) error
	UpsertCartItem(ctx context.Context, cartID, productID pgtype.UUID, selector string, qty int32) error
	AddCartItemQty(ctx context.Context, cartID, productID pgtype.UUID, selector string, qty int32) error
	RemoveCartItem(ctx context.Context, cartID, productID pgtype.UUID, selector string) error
	ClearCart(ctx context.Context, cartID pgtype.UUID) error
	DeleteCart(ctx context.Context, cartID pgtype.UUID) error
	ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]store.CartLine, error)
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.ProductWithPromo, error)
	GetVoucherByCode(ctx context.Context, code string) (store.Voucher, error)
}

// Service owns cart state: lines hold only product and quantity, prices
// are recomputed on every read from the catalog and its effective
// promotions. Nothing in the cart can go stale when a promotion flips.
type Service struct {
	Q        querier
	GuestTTL time.Duration
	UserTTL  time.Duration
	TaxBps   int
	Shipping promo.Money
	Now      func() time.Time
}

// Identity tells the service who owns the cart being operated on.
// Authenticated requests carry a user ID; guests carry an opaque token.
type Identity struct {
	UserID string
	Token  string
}

// LineView is one priced cart line.
type LineView struct {
	ProductID    string      `json:"productId"`
	Slug         string      `json:"slug"`
	Title        string      `json:"title"`
	Selector     string      `json:"selector,omitempty"`
	Thumbnail    *string     `json:"thumbnail,omitempty"`
	UnitPrice    promo.Money `json:"unitPrice"`
	Qty          int         `json:"qty"`
	PayableUnits int         `json:"payableUnits"`
	LineTotal    promo.Money `json:"lineTotal"`
	PromoLabel   string      `json:"promoLabel,omitempty"`
}

// SummaryView mirrors pricing.Summary for JSON output.
type SummaryView struct {
	Subtotal        promo.Money `json:"subtotal"`
	PromoDiscount   promo.Money `json:"promoDiscount"`
	VoucherDiscount promo.Money `json:"voucherDiscount"`
	Tax             promo.Money `json:"tax"`
	Shipping        promo.Money `json:"shipping"`
	Total           promo.Money `json:"total"`
}

// View is the full cart payload returned to clients.
type View struct {
	ID      string      `json:"id"`
	Token   string      `json:"token,omitempty"`
	Voucher *string     `json:"voucher"`
	Items   []LineView  `json:"items"`
	Summary SummaryView `json:"summary"`
}

// Ensure resolves the caller's cart, creating one when absent. Guest
// callers without a token get a fresh token minted for them; the
// handler echoes it back so the client can persist it.
func (s *Service) Ensure(ctx context.Context, id Identity) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	if id.UserID != "" {
		uid, err := store.UUIDValue(id.UserID)
		if err != nil {
			return store.Cart{}, common.BadRequest("invalid user id", nil)
		}
		cart, err := s.Q.GetCartByUser(ctx, uid)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, err
		}
		return s.Q.CreateCart(ctx, uid, nil, s.userTTL())
	}

	token := strings.TrimSpace(id.Token)
	if token != "" {
		cart, err := s.Q.GetCartByToken(ctx, token)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, err
		}
	}
	token = uuid.NewString()
	return s.Q.CreateCart(ctx, pgtype.UUID{}, &token, s.guestTTL())
}

// View loads and prices the cart. Line totals come from the promotion
// engine; the applied voucher is re-evaluated against the current
// subtotal and silently drops to zero when no longer eligible.
func (s *Service) View(ctx context.Context, cart store.Cart) (View, error) {
	lines, err := s.Q.ListCartLines(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}

	items := make([]LineView, 0, len(lines))
	engineLines := make([]promo.LineItem, 0, len(lines))
	for _, l := range lines {
		li := l.PricingLine()
		engineLines = append(engineLines, li)
		items = append(items, toLineView(l, li))
	}

	var discount promo.Money
	if cart.VoucherCode.Valid && cart.VoucherCode.String != "" {
		discount = s.voucherDiscount(ctx, cart.VoucherCode.String, promo.CartTotal(engineLines))
	}
	summary := pricing.Compute(engineLines, discount, s.TaxBps, s.shippingFee(lines))

	out := View{
		ID:    store.UUIDString(cart.ID),
		Items: items,
		Summary: SummaryView{
			Subtotal:        summary.Subtotal,
			PromoDiscount:   summary.PromoDiscount,
			VoucherDiscount: summary.Voucher,
			Tax:             summary.Tax,
			Shipping:        summary.Shipping,
			Total:           summary.Total,
		},
	}
	if cart.Token.Valid {
		out.Token = cart.Token.String
	}
	if cart.VoucherCode.Valid && cart.VoucherCode.String != "" {
		code := cart.VoucherCode.String
		out.Voucher = &code
	}
	return out, nil
}

// AddItem sets the quantity for a line. The selector (color or variant)
// distinguishes lines of the same product and plays no role in pricing.
// The product must exist, be published, and have enough stock to cover
// the requested quantity.
func (s *Service) AddItem(ctx context.Context, cart store.Cart, productID, selector string, qty int) error {
	if qty <= 0 {
		return common.BadRequest("qty must be positive", nil)
	}
	pid, err := store.UUIDValue(productID)
	if err != nil {
		return common.BadRequest("invalid product id", nil)
	}
	product, err := s.Q.GetProductByID(ctx, pid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NotFound("product not found")
		}
		return err
	}
	if !product.Published {
		return common.NotFound("product not found")
	}
	if int32(qty) > product.Stock {
		return common.Conflict("INSUFFICIENT_STOCK", "not enough stock for requested quantity")
	}
	if err := s.Q.UpsertCartItem(ctx, cart.ID, pid, normalizeSelector(selector), int32(qty)); err != nil {
		return err
	}
	return s.touch(ctx, cart)
}

// UpdateQty changes a line's quantity; zero or negative removes it.
func (s *Service) UpdateQty(ctx context.Context, cart store.Cart, productID, selector string, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, cart, productID, selector)
	}
	return s.AddItem(ctx, cart, productID, selector, qty)
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cart store.Cart, productID, selector string) error {
	pid, err := store.UUIDValue(productID)
	if err != nil {
		return common.BadRequest("invalid product id", nil)
	}
	if err := s.Q.RemoveCartItem(ctx, cart.ID, pid, normalizeSelector(selector)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NotFound("cart item not found")
		}
		return err
	}
	return s.touch(ctx, cart)
}

// Clear empties the cart and detaches any applied voucher.
func (s *Service) Clear(ctx context.Context, cart store.Cart) error {
	if err := s.Q.ClearCart(ctx, cart.ID); err != nil {
		return err
	}
	if err := s.Q.SetCartVoucher(ctx, cart.ID, nil); err != nil {
		return err
	}
	return s.touch(ctx, cart)
}

// ApplyVoucher validates the code against the cart's current promoted
// subtotal and persists it. The returned discount is informational; it
// is recomputed on every subsequent view.
func (s *Service) ApplyVoucher(ctx context.Context, cart store.Cart, code string) (promo.Money, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, common.BadRequest("code is required", nil)
	}
	row, err := s.Q.GetVoucherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.NotFound("voucher not found")
		}
		return 0, err
	}
	subtotal, err := s.subtotal(ctx, cart)
	if err != nil {
		return 0, err
	}
	discount, err := voucher.Evaluate(row, subtotal, s.now())
	if err != nil {
		return 0, common.NewAppError("NOT_ELIGIBLE", err.Error(), 422, err)
	}
	if err := s.Q.SetCartVoucher(ctx, cart.ID, &code); err != nil {
		return 0, err
	}
	return discount, s.touch(ctx, cart)
}

// RemoveVoucher detaches the applied voucher, if any.
func (s *Service) RemoveVoucher(ctx context.Context, cart store.Cart) error {
	if err := s.Q.SetCartVoucher(ctx, cart.ID, nil); err != nil {
		return err
	}
	return s.touch(ctx, cart)
}

// Merge folds a guest cart into the authenticated user's cart after
// login. Quantities for shared products add up; the guest cart is
// deleted afterwards. The guest voucher carries over only when the user
// cart has none.
func (s *Service) Merge(ctx context.Context, token, userID string) (store.Cart, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return store.Cart{}, common.BadRequest("token is required", nil)
	}
	guest, err := s.Q.GetCartByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, common.NotFound("guest cart not found")
		}
		return store.Cart{}, err
	}
	target, err := s.Ensure(ctx, Identity{UserID: userID})
	if err != nil {
		return store.Cart{}, err
	}
	if guest.ID == target.ID {
		return target, nil
	}
	lines, err := s.Q.ListCartLines(ctx, guest.ID)
	if err != nil {
		return store.Cart{}, err
	}
	for _, l := range lines {
		if err := s.Q.AddCartItemQty(ctx, target.ID, l.Product.ID, l.Selector, l.Qty); err != nil {
			return store.Cart{}, err
		}
	}
	if guest.VoucherCode.Valid && guest.VoucherCode.String != "" && !target.VoucherCode.Valid {
		code := guest.VoucherCode.String
		if err := s.Q.SetCartVoucher(ctx, target.ID, &code); err != nil {
			return store.Cart{}, err
		}
	}
	if err := s.Q.DeleteCart(ctx, guest.ID); err != nil {
		return store.Cart{}, err
	}
	if err := s.touch(ctx, target); err != nil {
		return store.Cart{}, err
	}
	return target, nil
}

func (s *Service) subtotal(ctx context.Context, cart store.Cart) (promo.Money, error) {
	lines, err := s.Q.ListCartLines(ctx, cart.ID)
	if err != nil {
		return 0, err
	}
	engineLines := make([]promo.LineItem, 0, len(lines))
	for _, l := range lines {
		engineLines = append(engineLines, l.PricingLine())
	}
	return promo.CartTotal(engineLines), nil
}

func (s *Service) voucherDiscount(ctx context.Context, code string, subtotal promo.Money) promo.Money {
	row, err := s.Q.GetVoucherByCode(ctx, code)
	if err != nil {
		return 0
	}
	discount, err := voucher.Evaluate(row, subtotal, s.now())
	if err != nil {
		return 0
	}
	return discount
}

func (s *Service) shippingFee(lines []store.CartLine) promo.Money {
	if len(lines) == 0 {
		return 0
	}
	return s.Shipping
}

func (s *Service) touch(ctx context.Context, cart store.Cart) error {
	ttl := s.guestTTL()
	if cart.UserID.Valid {
		ttl = s.userTTL()
	}
	return s.Q.TouchCart(ctx, cart.ID, ttl)
}

func (s *Service) guestTTL() time.Duration {
	if s.GuestTTL > 0 {
		return s.GuestTTL
	}
	return 7 * 24 * time.Hour
}

func (s *Service) userTTL() time.Duration {
	if s.UserTTL > 0 {
		return s.UserTTL
	}
	return 30 * 24 * time.Hour
}

func normalizeSelector(selector string) string {
	return strings.TrimSpace(selector)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func toLineView(l store.CartLine, li promo.LineItem) LineView {
	view := LineView{
		ProductID:    store.UUIDString(l.Product.ID),
		Slug:         l.Product.Slug,
		Title:        l.Product.Title,
		Selector:     l.Selector,
		UnitPrice:    l.Product.Price,
		Qty:          int(l.Qty),
		PayableUnits: li.PayableUnits(),
		LineTotal:    li.Total(),
	}
	if l.Product.Thumbnail.Valid {
		t := l.Product.Thumbnail.String
		view.Thumbnail = &t
	}
	if li.Promo != nil {
		view.PromoLabel = li.Promo.Label(l.Product.Price)
	}
	return view
}
