package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PromoterService struct {
	store  database.Catalog
	logger *zap.Logger
}

func NewPromoterService(store database.Catalog, logger *zap.Logger) *PromoterService {
	return &PromoterService{store: store, logger: logger}
}

// RegisterPromoter gives userID a unique affiliate code. A user holds at
// most one code.
func (s *PromoterService) RegisterPromoter(ctx context.Context, userID uuid.UUID) (*models.Promoter, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, err
	}

	existing, err := s.store.GetPromoterByUser(ctx, userID)
	if err == nil {
		return existing, fmt.Errorf("%w: %s", ErrAlreadyPromoter, existing.Code)
	}
	if !errors.Is(err, database.ErrRecordNotFound) {
		return nil, err
	}

	code, err := utils.GenerateUniquePromoterCode(ctx, func(ctx context.Context, code string) (bool, error) {
		_, err := s.store.GetPromoterByCode(ctx, code)
		if errors.Is(err, database.ErrRecordNotFound) {
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate promoter code: %w", err)
	}

	promoter := &models.Promoter{UserID: user.ID, Code: code, IsActive: true}
	if err := s.store.CreatePromoter(ctx, promoter); err != nil {
		return nil, fmt.Errorf("failed to create promoter: %w", err)
	}

	s.logger.Info("promoter registered", zap.String("user_id", userID.String()), zap.String("code", code))
	return promoter, nil
}

// resolvePromoter returns the promoter behind code when it may earn a
// commission on a sale between buyer and seller, or nil otherwise.
func resolvePromoter(ctx context.Context, store database.Catalog, code string, buyerID, sellerID uuid.UUID) (*models.Promoter, error) {
	if code == "" {
		return nil, nil
	}
	p, err := store.GetPromoterByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !p.IsActive || p.UserID == buyerID || p.UserID == sellerID {
		return nil, nil
	}
	return p, nil
}
