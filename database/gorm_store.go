package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/creator_market/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

func (s *GormStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetSeller(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := s.db.WithContext(ctx).Preload("User").First(&seller, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &seller, nil
}

func (s *GormStore) GetPromoterByCode(ctx context.Context, code string) (*models.Promoter, error) {
	var promoter models.Promoter
	if err := s.db.WithContext(ctx).First(&promoter, "code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return &promoter, nil
}

func (s *GormStore) GetPromoterByUser(ctx context.Context, userID uuid.UUID) (*models.Promoter, error) {
	var promoter models.Promoter
	if err := s.db.WithContext(ctx).First(&promoter, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &promoter, nil
}

func (s *GormStore) CreatePromoter(ctx context.Context, p *models.Promoter) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *GormStore) GetTransactionBySession(ctx context.Context, sessionID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).First(&t, "session_id = ?", sessionID).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *GormStore) GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).First(&t, "payment_intent_id = ?", paymentIntentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *GormStore) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *GormStore) CreatePayout(ctx context.Context, p *models.Payout) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var p models.Payout
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) SavePayout(ctx context.Context, p *models.Payout) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) ListPayoutsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at desc").Find(&payouts).Error
	return payouts, err
}

func (s *GormStore) ListPayoutsByStatus(ctx context.Context, status string) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at asc").Find(&payouts).Error
	return payouts, err
}

func (s *GormStore) SellerTotals(ctx context.Context, sellerID uuid.UUID) (SellerTotals, error) {
	var totals SellerTotals
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Transaction{}).
		Where("seller_id = ? AND status = ?", sellerID, models.TransactionCompleted).
		Select("COALESCE(SUM(seller_net_amount), 0)").
		Scan(&totals.Earned).Error; err != nil {
		return SellerTotals{}, fmt.Errorf("sum earnings: %w", err)
	}

	if err := db.Model(&models.Payout{}).
		Where("seller_id = ? AND status IN ?", sellerID, models.ReservingPayoutStatuses).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totals.Reserved).Error; err != nil {
		return SellerTotals{}, fmt.Errorf("sum payouts: %w", err)
	}

	return totals, nil
}

func (s *GormStore) RaiseSellerLevel(ctx context.Context, sellerID uuid.UUID, level int) error {
	return s.db.WithContext(ctx).
		Model(&models.Seller{}).
		Where("user_id = ? AND level < ?", sellerID, level).
		Update("level", level).Error
}

func (s *GormStore) WithinSellerTx(ctx context.Context, sellerID uuid.UUID, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seller models.Seller
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&seller, "user_id = ?", sellerID).Error; err != nil {
			return notFound(err)
		}
		return fn(&GormStore{db: tx})
	})
}
