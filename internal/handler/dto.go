package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// Response shapes. Money is rendered as a fixed two-decimal string so
// clients never parse a float; percentages keep their exact value.

func money(d decimal.Decimal) string { return d.StringFixed(2) }

type itemResponse struct {
	MenuItemID string `json:"menu_item_id,omitempty"`
	Name       string `json:"name"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	LineTotal  string `json:"line_total"`
	Note       string `json:"note,omitempty"`
}

func toItems(items []model.OrderItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemResponse{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  money(it.UnitPrice),
			Quantity:   it.Quantity,
			LineTotal:  money(it.LineTotal()),
			Note:       it.Note,
		})
	}
	return out
}

type taxResponse struct {
	Split       bool   `json:"split"`
	TaxPercent  string `json:"tax_percent,omitempty"`
	SGSTPercent string `json:"sgst_percent,omitempty"`
	CGSTPercent string `json:"cgst_percent,omitempty"`
}

func toTax(t model.TaxModel) taxResponse {
	if t.Split {
		return taxResponse{Split: true, SGSTPercent: t.SGSTPercent.String(), CGSTPercent: t.CGSTPercent.String()}
	}
	return taxResponse{TaxPercent: t.TaxPercent.String()}
}

type orderResponse struct {
	ID              string         `json:"id"`
	ShortID         string         `json:"short_id"`
	TableID         uint64         `json:"table_id"`
	Status          string         `json:"status"`
	NextStatuses    []string       `json:"next_statuses"`
	PaymentStatus   string         `json:"payment_status"`
	PaymentMode     string         `json:"payment_mode,omitempty"`
	Items           []itemResponse `json:"items"`
	Subtotal        string         `json:"subtotal"`
	DiscountPercent string         `json:"discount_percent"`
	DiscountAmount  string         `json:"discount_amount"`
	Tax             taxResponse    `json:"tax"`
	SGSTAmount      string         `json:"sgst_amount"`
	CGSTAmount      string         `json:"cgst_amount"`
	TaxAmount       string         `json:"tax_amount"`
	TotalAmount     string         `json:"total_amount"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	IsBillGenerated bool           `json:"is_bill_generated"`
	PlacedBy        string         `json:"placed_by"`
	OrderPlacedAt   time.Time      `json:"order_placed_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	BillGeneratedAt *time.Time     `json:"bill_generated_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

func toOrder(o *model.Order) orderResponse {
	next := []string{}
	for _, s := range model.NextStatuses(o.Status) {
		next = append(next, string(s))
	}
	return orderResponse{
		ID:              o.ID,
		ShortID:         o.ShortID(),
		TableID:         o.TableID,
		Status:          string(o.Status),
		NextStatuses:    next,
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMode:     string(o.PaymentMode),
		Items:           toItems(o.Items),
		Subtotal:        money(o.Subtotal),
		DiscountPercent: o.DiscountPercent.String(),
		DiscountAmount:  money(o.DiscountAmount),
		Tax:             toTax(o.Tax),
		SGSTAmount:      money(o.SGSTAmount),
		CGSTAmount:      money(o.CGSTAmount),
		TaxAmount:       money(o.TaxAmount),
		TotalAmount:     money(o.TotalAmount),
		CouponCode:      o.CouponCode,
		IsBillGenerated: o.IsBillGenerated,
		PlacedBy:        o.PlacedBy,
		OrderPlacedAt:   o.OrderPlacedAt,
		UpdatedAt:       o.UpdatedAt,
		BillGeneratedAt: o.BillGeneratedAt,
		CompletedAt:     o.CompletedAt,
	}
}

type billResponse struct {
	OrderID         string         `json:"order_id"`
	ShortID         string         `json:"short_id"`
	TableID         uint64         `json:"table_id"`
	Items           []itemResponse `json:"items"`
	Subtotal        string         `json:"subtotal"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	DiscountPercent string         `json:"discount_percent"`
	DiscountAmount  string         `json:"discount_amount"`
	DiscountedTotal string         `json:"discounted_total"`
	Tax             taxResponse    `json:"tax"`
	SGSTAmount      string         `json:"sgst_amount"`
	CGSTAmount      string         `json:"cgst_amount"`
	TaxAmount       string         `json:"tax_amount"`
	Total           string         `json:"total"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Replayed        bool           `json:"replayed"`
}

func toBill(b model.Bill) billResponse {
	f := b.Figures
	return billResponse{
		OrderID:         b.OrderID,
		ShortID:         b.ShortID,
		TableID:         b.TableID,
		Items:           toItems(b.Items),
		Subtotal:        money(f.Subtotal),
		CouponCode:      b.CouponCode,
		DiscountPercent: f.DiscountPercent.String(),
		DiscountAmount:  money(f.DiscountAmount),
		DiscountedTotal: money(f.Discounted),
		Tax:             toTax(b.Tax),
		SGSTAmount:      money(f.SGSTAmount),
		CGSTAmount:      money(f.CGSTAmount),
		TaxAmount:       money(f.TaxAmount),
		Total:           money(f.Total),
		GeneratedAt:     b.GeneratedAt,
		Replayed:        b.Replayed,
	}
}

type historyResponse struct {
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

func toHistory(log []model.StatusChange) []historyResponse {
	out := make([]historyResponse, 0, len(log))
	for _, e := range log {
		out = append(out, historyResponse{
			From:      string(e.From),
			To:        string(e.To),
			ActorID:   e.ActorID,
			ActorRole: e.ActorRole,
			Note:      e.Note,
			ChangedAt: e.ChangedAt,
		})
	}
	return out
}

type couponResponse struct {
	Code            string     `json:"code"`
	DiscountPercent string     `json:"discount_percent"`
	TotalUsageLimit *int       `json:"total_usage_limit"`
	UsageCount      int        `json:"usage_count"`
	IsActive        bool       `json:"is_active"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toCoupon(c *model.Coupon) couponResponse {
	return couponResponse{
		Code:            c.Code,
		DiscountPercent: c.DiscountPercent.String(),
		TotalUsageLimit: c.TotalUsageLimit,
		UsageCount:      c.UsageCount,
		IsActive:        c.IsActive,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		UpdatedAt:       c.UpdatedAt,
	}
}

type tableResponse struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTable(t model.Table) tableResponse {
	return tableResponse{ID: t.ID, Name: t.Name, Capacity: t.Capacity, Status: string(t.Status), UpdatedAt: t.UpdatedAt}
}
