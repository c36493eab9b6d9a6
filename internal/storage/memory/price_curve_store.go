package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/storage"
)

// PriceCurveStore is an in-memory implementation of storage.PriceCurveStore.
type PriceCurveStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (auction_id, timestamp)
}

// NewPriceCurveStore creates a new in-memory price curve store.
func NewPriceCurveStore() *PriceCurveStore {
	return &PriceCurveStore{
		data: make(map[string]*domain.PricePoint),
	}
}

func pointKey(auctionID string, ts int64) string {
	return fmt.Sprintf("%s|%d", auctionID, ts)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PriceCurveStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.AuctionID == "" {
			return storage.ErrInvalidInput
		}
		key := pointKey(p.AuctionID, p.Timestamp)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[pointKey(p.AuctionID, p.Timestamp)] = &pointCopy
	}

	return nil
}

// GetByAuctionID retrieves all points for an auction, ordered by timestamp ASC.
func (s *PriceCurveStore) GetByAuctionID(_ context.Context, auctionID string) ([]*domain.PricePoint, error) {
	return s.filter(auctionID, func(*domain.PricePoint) bool { return true }), nil
}

// GetByTimeRange retrieves points for an auction within [start, end] (inclusive).
func (s *PriceCurveStore) GetByTimeRange(_ context.Context, auctionID string, start, end int64) ([]*domain.PricePoint, error) {
	return s.filter(auctionID, func(p *domain.PricePoint) bool {
		return p.Timestamp >= start && p.Timestamp <= end
	}), nil
}

func (s *PriceCurveStore) filter(auctionID string, keep func(*domain.PricePoint) bool) []*domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.AuctionID == auctionID && keep(p) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result
}

var _ storage.PriceCurveStore = (*PriceCurveStore)(nil)
