package repositories

import (
	"context"

	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DisputeRepo struct {
	db Querier
}

func NewDisputeRepo(db Querier) *DisputeRepo {
	return &DisputeRepo{db: db}
}

func (r *DisputeRepo) WithTx(tx pgx.Tx) *DisputeRepo {
	return &DisputeRepo{db: tx}
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO disputes (order_id, buyer_id, seller_id, initiator_id, reason, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, d.OrderID, d.BuyerID, d.SellerID, d.InitiatorID, d.Reason, d.Description, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DisputeRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, buyer_id, seller_id, initiator_id, reason, description, status, created_at, updated_at
		FROM disputes WHERE order_id = $1
	`, orderID).Scan(&d.ID, &d.OrderID, &d.BuyerID, &d.SellerID, &d.InitiatorID,
		&d.Reason, &d.Description, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Resolve marks an open dispute with its terminal resolution; only open
// disputes are affected.
func (r *DisputeRepo) Resolve(ctx context.Context, orderID uuid.UUID, resolution string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE disputes SET status = $1, updated_at = now()
		WHERE order_id = $2 AND status = $3
	`, resolution, orderID, models.DisputeStatusOpen)
	return err
}

func (r *DisputeRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, buyer_id, seller_id, initiator_id, reason, description, status, created_at, updated_at
		FROM disputes WHERE status = $1
		ORDER BY created_at LIMIT $2 OFFSET $3
	`, models.DisputeStatusOpen, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.OrderID, &d.BuyerID, &d.SellerID, &d.InitiatorID,
			&d.Reason, &d.Description, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}
