package services

import (
	"context"
	"errors"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserService struct {
	userRepo   *repositories.UserRepo
	reviewRepo *repositories.ReviewRepo
}

func NewUserService(userRepo *repositories.UserRepo, reviewRepo *repositories.ReviewRepo) *UserService {
	return &UserService{userRepo: userRepo, reviewRepo: reviewRepo}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user %s not found", id)
		}
		return nil, apperr.Storage(err)
	}
	return u, nil
}

// SellerRating returns the denormalized aggregate plus the latest reviews.
type SellerRating struct {
	SellerID    uuid.UUID       `json:"seller_id"`
	RatingAvg   string          `json:"rating_avg"`
	RatingCount int             `json:"rating_count"`
	Reviews     []models.Review `json:"reviews"`
}

func (s *UserService) SellerRating(ctx context.Context, sellerID uuid.UUID, limit, offset int) (*SellerRating, error) {
	u, err := s.GetByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviewRepo.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &SellerRating{
		SellerID:    u.ID,
		RatingAvg:   u.RatingAvg.StringFixed(2),
		RatingCount: u.RatingCount,
		Reviews:     reviews,
	}, nil
}
