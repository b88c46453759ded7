package services

import (
	"context"
	"time"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/repositories"
)

type FinanceService struct {
	financeRepo *repositories.FinanceRepo
}

func NewFinanceService(financeRepo *repositories.FinanceRepo) *FinanceService {
	return &FinanceService{financeRepo: financeRepo}
}

func (s *FinanceService) Summary(ctx context.Context, from, to *time.Time) (*repositories.FinanceSummary, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperr.Validation("window end precedes its start")
	}
	sum, err := s.financeRepo.Summary(ctx, from, to)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return sum, nil
}
