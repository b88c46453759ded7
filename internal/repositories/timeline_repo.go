package repositories

import (
	"context"

	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TimelineRepo persists the append-only order timeline. No update or delete
// path exists here; immutability is enforced at this layer, not by convention.
type TimelineRepo struct {
	db Querier
}

func NewTimelineRepo(db Querier) *TimelineRepo {
	return &TimelineRepo{db: db}
}

func (r *TimelineRepo) WithTx(tx pgx.Tx) *TimelineRepo {
	return &TimelineRepo{db: tx}
}

func (r *TimelineRepo) Append(ctx context.Context, orderID uuid.UUID, kind, description string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO order_timeline (order_id, kind, description) VALUES ($1, $2, $3)
	`, orderID, kind, description)
	return err
}

func (r *TimelineRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, kind, description, created_at
		FROM order_timeline WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.TimelineEvent
	for rows.Next() {
		var e models.TimelineEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
