package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// CouponRepo provides access to the coupons table. Codes are stored
// normalized (trimmed, upper-case); callers normalize before calling.
type CouponRepo struct{}

// NewCouponRepo returns a CouponRepo.
func NewCouponRepo() *CouponRepo { return &CouponRepo{} }

const couponColumns = `code, discount_percent, total_usage_limit, usage_count, is_active, start_date, end_date, created_at, updated_at`

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var (
		c          model.Coupon
		limit      sql.NullInt64
		start, end sql.NullTime
	)
	err := row.Scan(&c.Code, &c.DiscountPercent, &limit, &c.UsageCount, &c.IsActive, &start, &end, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if limit.Valid {
		l := int(limit.Int64)
		c.TotalUsageLimit = &l
	}
	if start.Valid {
		t := start.Time
		c.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		c.EndDate = &t
	}
	return &c, nil
}

func nullLimit(l *int) sql.NullInt64 {
	if l == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*l), Valid: true}
}

// GetByCodeTx returns ErrNotFound for unknown codes.
func (r *CouponRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Coupon, error) {
	return scanCoupon(tx.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code))
}

// CreateTx inserts a coupon; a taken code yields ErrDuplicate.
func (r *CouponRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Coupon) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO coupons (`+couponColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.DiscountPercent, nullLimit(c.TotalUsageLimit), c.UsageCount, c.IsActive,
		nullTime(c.StartDate), nullTime(c.EndDate), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateTx rewrites the administrative fields of a coupon. The usage
// counter is only ever changed by IncrementUsageTx.
func (r *CouponRepo) UpdateTx(ctx context.Context, tx *sql.Tx, c *model.Coupon) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE coupons
            SET discount_percent = ?, total_usage_limit = ?, is_active = ?, start_date = ?, end_date = ?, updated_at = ?
          WHERE code = ?`,
		c.DiscountPercent, nullLimit(c.TotalUsageLimit), c.IsActive, nullTime(c.StartDate), nullTime(c.EndDate),
		c.UpdatedAt.UTC(), c.Code,
	)
	if err := expectOneRow(res, err); err != ErrConflict {
		return err
	}
	// MySQL reports zero affected rows when nothing changed, so tell an
	// unknown code apart from a no-op update.
	if _, err := r.GetByCodeTx(ctx, tx, c.Code); err != nil {
		return err
	}
	return nil
}

// IncrementUsageTx is the atomic check-and-increment of the ledger: the
// redeemability conditions are part of the WHERE clause so two
// concurrent redemptions of the last use cannot both succeed.
func (r *CouponRepo) IncrementUsageTx(ctx context.Context, tx *sql.Tx, code string, now time.Time) error {
	now = now.UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE coupons
            SET usage_count = usage_count + 1, updated_at = ?
          WHERE code = ?
            AND is_active = 1
            AND (start_date IS NULL OR start_date <= ?)
            AND (end_date IS NULL OR end_date >= ?)
            AND (total_usage_limit IS NULL OR usage_count < total_usage_limit)`,
		now, code, now, now,
	)
	return expectOneRow(res, err)
}
