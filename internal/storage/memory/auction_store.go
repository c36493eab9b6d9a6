package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/storage"
)

// AuctionStore is an in-memory implementation of storage.AuctionStore.
type AuctionStore struct {
	mu          sync.RWMutex
	data        map[string]*domain.Auction    // keyed by auction id
	settlements map[string]*domain.Settlement // keyed by auction id
}

// NewAuctionStore creates a new in-memory auction store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		data:        make(map[string]*domain.Auction),
		settlements: make(map[string]*domain.Settlement),
	}
}

// Insert adds a new auction with Version 1. Returns ErrDuplicateKey if id exists.
func (s *AuctionStore) Insert(_ context.Context, a *domain.Auction) error {
	if a == nil || a.ID == "" || a.Authority == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	now := time.Now().UnixMilli()
	auctionCopy := a.Clone()
	auctionCopy.Version = 1
	auctionCopy.CreatedAt = now
	auctionCopy.UpdatedAt = now
	s.data[a.ID] = auctionCopy
	return nil
}

// GetByID retrieves an auction by its ID. Returns ErrNotFound if not exists.
func (s *AuctionStore) GetByID(_ context.Context, id string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return a.Clone(), nil
}

// GetByAuthority retrieves all auctions created by a seller, ordered by start_time ASC.
func (s *AuctionStore) GetByAuthority(_ context.Context, authority string) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Auction
	for _, a := range s.data {
		if a.Authority == authority {
			result = append(result, a.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// MarkEnded sets is_ended if the stored version equals expectedVersion.
func (s *AuctionStore) MarkEnded(_ context.Context, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markEndedLocked(id, expectedVersion)
}

// Settle marks the auction ended and records the settlement under one lock.
func (s *AuctionStore) Settle(_ context.Context, st *domain.Settlement, expectedVersion int64) error {
	if st == nil || st.AuctionID == "" || st.Buyer == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.settlements[st.AuctionID]; exists {
		return storage.ErrDuplicateKey
	}
	if err := s.markEndedLocked(st.AuctionID, expectedVersion); err != nil {
		return err
	}

	settlementCopy := *st
	settlementCopy.CreatedAt = time.Now().UnixMilli()
	s.settlements[st.AuctionID] = &settlementCopy
	return nil
}

func (s *AuctionStore) markEndedLocked(id string, expectedVersion int64) error {
	a, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if a.Version != expectedVersion {
		return storage.ErrConflict
	}

	a.IsEnded = true
	a.Version++
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// GetSettlement retrieves the settlement of an auction. Returns ErrNotFound if not settled.
func (s *AuctionStore) GetSettlement(_ context.Context, auctionID string) (*domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.settlements[auctionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	settlementCopy := *st
	return &settlementCopy, nil
}

// GetSettlementsByBuyer retrieves all settlements won by a buyer, ordered by settled_at ASC.
func (s *AuctionStore) GetSettlementsByBuyer(_ context.Context, buyer string) ([]*domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Settlement
	for _, st := range s.settlements {
		if st.Buyer == buyer {
			settlementCopy := *st
			result = append(result, &settlementCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SettledAt != result[j].SettledAt {
			return result[i].SettledAt < result[j].SettledAt
		}
		return result[i].AuctionID < result[j].AuctionID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AuctionStore = (*AuctionStore)(nil)
