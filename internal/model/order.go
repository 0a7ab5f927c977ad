package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShortIDLen is the length of the display form of an order id.
const ShortIDLen = 8

// OrderItem is one line of an order. UnitPrice is captured when the
// order is placed so later menu price changes never alter a bill.
//
// Fields:
//  ID         – order_items.id
//  OrderID    – owning order.
//  MenuItemID – reference into the menu service, opaque here.
//  Name       – item name at order time.
//  UnitPrice  – price per unit at order time.
//  Quantity   – number of units, at least 1.
//  Note       – free-form kitchen note.
type OrderItem struct {
	ID         uint64          // order_items.id
	OrderID    string          // order_items.order_id
	MenuItemID string          // order_items.menu_item_id
	Name       string          // order_items.name
	UnitPrice  decimal.Decimal // order_items.unit_price
	Quantity   int             // order_items.quantity
	Note       string          // order_items.note
}

// LineTotal is UnitPrice times Quantity, unrounded.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a guest order bound to a single table. Status only moves along
// the edges accepted by CanTransition; the monetary fields are always the
// output of ComputeBill over Subtotal, DiscountPercent and Tax.
type Order struct {
	ID              string          // orders.id (UUID)
	TableID         uint64          // orders.table_id
	Items           []OrderItem     // order_items rows
	Subtotal        decimal.Decimal // orders.subtotal
	DiscountPercent decimal.Decimal // orders.discount_percent
	Tax             TaxModel        // orders.tax_split, tax_percent, sgst_percent, cgst_percent
	DiscountAmount  decimal.Decimal // orders.discount_amount
	SGSTAmount      decimal.Decimal // orders.sgst_amount
	CGSTAmount      decimal.Decimal // orders.cgst_amount
	TaxAmount       decimal.Decimal // orders.tax_amount
	TotalAmount     decimal.Decimal // orders.total_amount
	CouponCode      string          // orders.coupon_code, empty when none applied
	Status          OrderStatus     // orders.status
	PaymentStatus   PaymentStatus   // orders.payment_status
	PaymentMode     PaymentMode     // orders.payment_mode, empty until paid
	IsBillGenerated bool            // orders.is_bill_generated
	PlacedBy        string          // orders.placed_by (actor id)
	CreatedAt       time.Time       // orders.created_at
	OrderPlacedAt   time.Time       // orders.order_placed_at
	UpdatedAt       time.Time       // orders.updated_at
	BillGeneratedAt *time.Time      // orders.bill_generated_at (nullable)
	CompletedAt     *time.Time      // orders.completed_at (nullable)
}

// ShortID is the truncated id printed on tickets. It is for display only
// and never used for lookups.
func (o *Order) ShortID() string {
	if len(o.ID) <= ShortIDLen {
		return o.ID
	}
	return o.ID[:ShortIDLen]
}

// Figures recomputes the invoice lines from the stored inputs.
func (o *Order) Figures() BillFigures {
	return ComputeBill(o.Subtotal, o.DiscountPercent, o.Tax)
}

// ApplyFigures copies computed figures onto the order.
func (o *Order) ApplyFigures(f BillFigures) {
	o.Subtotal = f.Subtotal
	o.DiscountPercent = f.DiscountPercent
	o.DiscountAmount = f.DiscountAmount
	o.SGSTAmount = f.SGSTAmount
	o.CGSTAmount = f.CGSTAmount
	o.TaxAmount = f.TaxAmount
	o.TotalAmount = f.Total
}

// Bill returns the invoice view of the stored figures.
func (o *Order) Bill() Bill {
	b := Bill{
		OrderID:    o.ID,
		ShortID:    o.ShortID(),
		TableID:    o.TableID,
		Items:      append([]OrderItem(nil), o.Items...),
		Tax:        o.Tax,
		CouponCode: o.CouponCode,
		Figures: BillFigures{
			Subtotal:        o.Subtotal,
			DiscountPercent: o.DiscountPercent,
			DiscountAmount:  o.DiscountAmount,
			Discounted:      o.Figures().Discounted,
			SGSTAmount:      o.SGSTAmount,
			CGSTAmount:      o.CGSTAmount,
			TaxAmount:       o.TaxAmount,
			Total:           o.TotalAmount,
		},
	}
	if o.BillGeneratedAt != nil {
		b.GeneratedAt = *o.BillGeneratedAt
	}
	return b
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.BillGeneratedAt != nil {
		t := *o.BillGeneratedAt
		c.BillGeneratedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Bill is the invoice of a served order.
type Bill struct {
	OrderID     string
	ShortID     string
	TableID     uint64
	Items       []OrderItem
	Tax         TaxModel
	CouponCode  string
	Figures     BillFigures
	GeneratedAt time.Time
	// Replayed is set when the bill was already generated and the stored
	// figures were returned unchanged.
	Replayed bool
}
