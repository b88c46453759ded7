package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/rbac"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxReviewContent = 4000

type ReviewService struct {
	db           repositories.DB
	orderRepo    *repositories.OrderRepo
	reviewRepo   *repositories.ReviewRepo
	timelineRepo *repositories.TimelineRepo
	publisher    events.Publisher
	log          *zap.Logger
}

func NewReviewService(
	db repositories.DB,
	orderRepo *repositories.OrderRepo,
	reviewRepo *repositories.ReviewRepo,
	timelineRepo *repositories.TimelineRepo,
	publisher events.Publisher,
	log *zap.Logger,
) *ReviewService {
	return &ReviewService{
		db:           db,
		orderRepo:    orderRepo,
		reviewRepo:   reviewRepo,
		timelineRepo: timelineRepo,
		publisher:    publisher,
		log:          log,
	}
}

// SubmitReview records the buyer's rating for a completed order and refreshes
// the seller's denormalized rating aggregate. Resubmitting replaces the
// earlier review rather than adding a second one.
func (s *ReviewService) SubmitReview(ctx context.Context, orderID, actorID uuid.UUID, role string, rating int, content string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	if len(content) > maxReviewContent {
		return nil, apperr.Validation("review content exceeds %d characters", maxReviewContent)
	}

	var review *models.Review
	ev, err := withTx(ctx, s.db, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.orderRepo.WithTx(tx).GetByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("order %s not found", orderID)
			}
			return nil, apperr.Storage(err)
		}

		actor := rbac.ActorFor(o, actorID, role)
		if actor == "" {
			return nil, apperr.Unauthorized("user is not a party to this order")
		}
		if !rbac.IsAllowed(rbac.OpSubmitReview, actor) {
			return nil, apperr.Unauthorized("%s is not permitted to review this order", actor)
		}
		if o.Status != models.OrderStatusCompleted {
			return nil, apperr.InvalidState("order is %s", o.Status)
		}

		review = &models.Review{
			OrderID:  o.ID,
			BuyerID:  o.BuyerID,
			SellerID: o.SellerID,
			Rating:   rating,
			Content:  strings.TrimSpace(content),
		}
		rr := s.reviewRepo.WithTx(tx)
		if err := rr.Upsert(ctx, review); err != nil {
			return nil, apperr.Storage(err)
		}
		avg, count, err := rr.RecomputeSellerRating(ctx, o.SellerID)
		if err != nil {
			return nil, apperr.Storage(err)
		}

		desc := fmt.Sprintf("buyer rated the order %d/5", rating)
		if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, models.TimelineReviewSubmitted, desc); err != nil {
			return nil, apperr.Storage(err)
		}

		return &events.Event{
			Type:    events.EventReviewSubmitted,
			OrderID: o.ID,
			Payload: map[string]any{
				"order_number":        o.OrderNumber,
				"buyer_id":            o.BuyerID,
				"seller_id":           o.SellerID,
				"rating":              rating,
				"seller_avg":          avg,
				"seller_rating_count": count,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, s.publisher, s.log, ev)
	return review, nil
}

func (s *ReviewService) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Review, error) {
	reviews, err := s.reviewRepo.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return reviews, nil
}
