package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_number, buyer_id, seller_id, listing_ref,
	       unit_price, quantity, subtotal, discount, platform_fee, seller_earnings, final_amount,
	       status, escrow_status, cancel_reason,
	       created_at, paid_at, delivered_at, completed_at, cancelled_at, updated_at`

type OrderRepo struct {
	db Querier
}

func NewOrderRepo(db Querier) *OrderRepo {
	return &OrderRepo{db: db}
}

// WithTx returns a view of the repository scoped to a transaction.
func (r *OrderRepo) WithTx(tx pgx.Tx) *OrderRepo {
	return &OrderRepo{db: tx}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.BuyerID, &o.SellerID, &o.ListingRef,
		&o.UnitPrice, &o.Quantity, &o.Subtotal, &o.Discount, &o.PlatformFee, &o.SellerEarnings, &o.FinalAmount,
		&o.Status, &o.EscrowStatus, &o.CancelReason,
		&o.CreatedAt, &o.PaidAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO orders (order_number, buyer_id, seller_id, listing_ref,
		                    unit_price, quantity, subtotal, discount, platform_fee, seller_earnings, final_amount,
		                    status, escrow_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`, o.OrderNumber, o.BuyerID, o.SellerID, o.ListingRef,
		o.UnitPrice, o.Quantity, o.Subtotal, o.Discount, o.PlatformFee, o.SellerEarnings, o.FinalAmount,
		o.Status, o.EscrowStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetByIDForUpdate locks the order row, serializing concurrent transitions
// on the same order.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	return scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number))
}

type OrderFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *string
	Limit    int
	Offset   int
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.BuyerID != nil {
		where = append(where, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, *f.BuyerID)
		argIdx++
	}
	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// The status writes below embed the legal source set in the WHERE clause.
// A zero rows-affected result means a concurrent transition won the race;
// the caller reports INVALID_STATE instead of applying ledger effects twice.

func (r *OrderRepo) MarkPaid(ctx context.Context, id uuid.UUID, from []string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, escrow_status = $2, paid_at = now(), updated_at = now()
		WHERE id = $3 AND status = ANY($4)
	`, models.OrderStatusActive, models.EscrowStatusHeld, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepo) MarkDelivered(ctx context.Context, id uuid.UUID, from []string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, delivered_at = now(), updated_at = now()
		WHERE id = $2 AND status = ANY($3)
	`, models.OrderStatusDelivered, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepo) MarkCompleted(ctx context.Context, id uuid.UUID, from []string, escrowStatus string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, escrow_status = $2, completed_at = now(), updated_at = now()
		WHERE id = $3 AND status = ANY($4)
	`, models.OrderStatusCompleted, escrowStatus, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepo) MarkCancelled(ctx context.Context, id uuid.UUID, from []string, toStatus, escrowStatus, reason string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, escrow_status = $2, cancel_reason = $3, cancelled_at = now(), updated_at = now()
		WHERE id = $4 AND status = ANY($5)
	`, toStatus, escrowStatus, reason, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepo) MarkDisputed(ctx context.Context, id uuid.UUID, from []string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)
	`, models.OrderStatusDisputed, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListUnpaidBefore returns pending orders created before the cutoff,
// candidates for automatic cancellation.
func (r *OrderRepo) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return r.listByStatusBefore(ctx, models.OrderStatusPending, "created_at", cutoff, limit)
}

// ListDeliveredBefore returns paid delivered orders unconfirmed since the
// cutoff, candidates for automatic completion.
func (r *OrderRepo) ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return r.listByStatusBefore(ctx, models.OrderStatusDelivered, "delivered_at", cutoff, limit)
}

func (r *OrderRepo) listByStatusBefore(ctx context.Context, status, stampCol string, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND `+stampCol+` < $2
		ORDER BY `+stampCol+` LIMIT $3
	`, status, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
