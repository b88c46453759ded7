package repositories

import (
	"context"

	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ReviewRepo struct {
	db Querier
}

func NewReviewRepo(db Querier) *ReviewRepo {
	return &ReviewRepo{db: db}
}

func (r *ReviewRepo) WithTx(tx pgx.Tx) *ReviewRepo {
	return &ReviewRepo{db: tx}
}

// Upsert creates the order's review or updates the existing one; at most one
// review exists per order.
func (r *ReviewRepo) Upsert(ctx context.Context, rev *models.Review) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO reviews (order_id, buyer_id, seller_id, rating, content)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			content = EXCLUDED.content,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`, rev.OrderID, rev.BuyerID, rev.SellerID, rev.Rating, rev.Content,
	).Scan(&rev.ID, &rev.CreatedAt, &rev.UpdatedAt)
}

func (r *ReviewRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	var rev models.Review
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, buyer_id, seller_id, rating, content, created_at, updated_at
		FROM reviews WHERE order_id = $1
	`, orderID).Scan(&rev.ID, &rev.OrderID, &rev.BuyerID, &rev.SellerID,
		&rev.Rating, &rev.Content, &rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// RecomputeSellerRating recalculates the seller's denormalized aggregate from
// all reviews targeting them. O(review count) per call; acceptable while
// reviews stay infrequent relative to orders.
func (r *ReviewRepo) RecomputeSellerRating(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, int, error) {
	var avg decimal.Decimal
	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE users SET
			rating_avg = COALESCE(agg.avg_rating, 0),
			rating_count = agg.cnt
		FROM (
			SELECT COALESCE(ROUND(AVG(rating), 2), 0) AS avg_rating, COUNT(*) AS cnt
			FROM reviews WHERE seller_id = $1
		) agg
		WHERE users.id = $1
		RETURNING users.rating_avg, users.rating_count
	`, sellerID).Scan(&avg, &count)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return avg, count, nil
}

func (r *ReviewRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, buyer_id, seller_id, rating, content, created_at, updated_at
		FROM reviews WHERE seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.OrderID, &rev.BuyerID, &rev.SellerID,
			&rev.Rating, &rev.Content, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}
