package services

import (
	"context"
	"errors"
	"strings"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/auth"
	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

type AuthService struct {
	db         repositories.DB
	userRepo   *repositories.UserRepo
	walletRepo *repositories.WalletRepo
	cfg        *config.Config
	log        *zap.Logger
}

func NewAuthService(db repositories.DB, userRepo *repositories.UserRepo, walletRepo *repositories.WalletRepo, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{db: db, userRepo: userRepo, walletRepo: walletRepo, cfg: cfg, log: log}
}

// Register creates the user together with their empty wallet so every user
// has a wallet row from the first request on.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", apperr.Validation("a valid email is required")
	}
	if len(password) < 8 {
		return nil, "", apperr.Validation("password must be at least 8 characters")
	}
	if displayName == "" {
		return nil, "", apperr.Validation("display name is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeStorageFailure, err, "hash password")
	}

	var user *models.User
	_, err = withTx(ctx, s.db, func(tx pgx.Tx) (*events.Event, error) {
		u, err := s.userRepo.WithTx(tx).Create(ctx, email, hash, displayName)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return nil, apperr.Validation("email is already registered")
			}
			return nil, apperr.Storage(err)
		}
		if err := s.walletRepo.WithTx(tx).Create(ctx, u.ID); err != nil {
			return nil, apperr.Storage(err)
		}
		user = u
		return nil, nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, user.ID, user.Role, s.cfg.JWTExpiration)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeStorageFailure, err, "sign token")
	}
	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperr.Unauthorized("invalid email or password")
		}
		return nil, "", apperr.Storage(err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", apperr.Unauthorized("invalid email or password")
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, user.ID, user.Role, s.cfg.JWTExpiration)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeStorageFailure, err, "sign token")
	}
	if err := s.userRepo.UpdateLastActive(ctx, user.ID); err != nil {
		s.log.Warn("update last active failed", zap.Error(err))
	}
	return user, token, nil
}
