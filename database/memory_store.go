package database

import (
	"context"
	"sort"
	"sync"

	"github.com/anjiri1684/creator_market/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local runs without
// postgres. Every getter returns a copy so callers never alias stored rows.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	sellers      map[uuid.UUID]models.Seller
	products     map[uuid.UUID]models.Product
	promoters    map[uuid.UUID]models.Promoter
	transactions map[uuid.UUID]models.Transaction
	payouts      map[uuid.UUID]models.Payout

	rowLocks sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]models.User),
		sellers:      make(map[uuid.UUID]models.Seller),
		products:     make(map[uuid.UUID]models.Product),
		promoters:    make(map[uuid.UUID]models.Promoter),
		transactions: make(map[uuid.UUID]models.Transaction),
		payouts:      make(map[uuid.UUID]models.Payout),
	}
}

func (m *MemoryStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryStore) AddSeller(s models.Seller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sellers[s.UserID] = s
}

func (m *MemoryStore) AddProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemoryStore) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetSeller(_ context.Context, userID uuid.UUID) (*models.Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sellers[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if u, ok := m.users[userID]; ok {
		s.User = u
	}
	return &s, nil
}

func (m *MemoryStore) GetPromoterByCode(_ context.Context, code string) (*models.Promoter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.promoters {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) GetPromoterByUser(_ context.Context, userID uuid.UUID) (*models.Promoter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.promoters {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) CreatePromoter(_ context.Context, p *models.Promoter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.promoters[p.ID] = *p
	return nil
}

func (m *MemoryStore) CreateTransaction(_ context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.transactions[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &t, nil
}

func (m *MemoryStore) GetTransactionBySession(_ context.Context, sessionID string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transactions {
		if t.SessionID != nil && *t.SessionID == sessionID {
			return &t, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) GetTransactionByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transactions {
		if t.PaymentIntentID != nil && *t.PaymentIntentID == paymentIntentID {
			return &t, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) SaveTransaction(_ context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = *t
	return nil
}

func (m *MemoryStore) CreatePayout(_ context.Context, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.payouts[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPayout(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SavePayout(_ context.Context, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payouts[p.ID] = *p
	return nil
}

func (m *MemoryStore) ListPayoutsBySeller(_ context.Context, sellerID uuid.UUID) ([]models.Payout, error) {
	return m.listPayouts(func(p models.Payout) bool { return p.SellerID == sellerID }, true), nil
}

func (m *MemoryStore) ListPayoutsByStatus(_ context.Context, status string) ([]models.Payout, error) {
	return m.listPayouts(func(p models.Payout) bool { return p.Status == status }, false), nil
}

func (m *MemoryStore) listPayouts(keep func(models.Payout) bool, newestFirst bool) []models.Payout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Payout, 0)
	for _, p := range m.payouts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) SellerTotals(_ context.Context, sellerID uuid.UUID) (SellerTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var totals SellerTotals
	for _, t := range m.transactions {
		if t.SellerID == sellerID && t.Status == models.TransactionCompleted {
			totals.Earned += t.SellerNetAmount
		}
	}
	for _, p := range m.payouts {
		if p.SellerID == sellerID && p.Reserves() {
			totals.Reserved += p.Amount
		}
	}
	return totals, nil
}

func (m *MemoryStore) RaiseSellerLevel(_ context.Context, sellerID uuid.UUID, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sellers[sellerID]
	if !ok {
		return ErrRecordNotFound
	}
	if s.Level < level {
		s.Level = level
		m.sellers[sellerID] = s
	}
	return nil
}

func (m *MemoryStore) WithinSellerTx(_ context.Context, sellerID uuid.UUID, fn func(Store) error) error {
	m.mu.RLock()
	_, ok := m.sellers[sellerID]
	m.mu.RUnlock()
	if !ok {
		return ErrRecordNotFound
	}

	v, _ := m.rowLocks.LoadOrStore(sellerID, &sync.Mutex{})
	row := v.(*sync.Mutex)
	row.Lock()
	defer row.Unlock()

	return fn(m)
}
