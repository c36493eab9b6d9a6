package storage

import (
	"context"

	"solana-dutch-auction/internal/domain"
)

// AuctionStore provides access to auctions and settlements storage.
type AuctionStore interface {
	// Insert adds a new auction with Version 1. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, a *domain.Auction) error

	// GetByID retrieves an auction by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Auction, error)

	// GetByAuthority retrieves all auctions created by a seller, ordered by start_time ASC.
	GetByAuthority(ctx context.Context, authority string) ([]*domain.Auction, error)

	// MarkEnded sets is_ended if the stored version equals expectedVersion
	// and bumps the version. Returns ErrConflict on a stale version and
	// ErrNotFound if the auction does not exist.
	MarkEnded(ctx context.Context, id string, expectedVersion int64) error

	// Settle atomically marks the auction ended (same version rules as
	// MarkEnded) and records its settlement. Returns ErrDuplicateKey if a
	// settlement already exists.
	Settle(ctx context.Context, s *domain.Settlement, expectedVersion int64) error

	// GetSettlement retrieves the settlement of an auction. Returns ErrNotFound if not settled.
	GetSettlement(ctx context.Context, auctionID string) (*domain.Settlement, error)

	// GetSettlementsByBuyer retrieves all settlements won by a buyer, ordered by settled_at ASC.
	GetSettlementsByBuyer(ctx context.Context, buyer string) ([]*domain.Settlement, error)
}

// PriceCurveStore provides access to price_curve storage.
type PriceCurveStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (auction_id, timestamp).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByAuctionID retrieves all points for an auction, ordered by timestamp ASC.
	GetByAuctionID(ctx context.Context, auctionID string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points for an auction within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, auctionID string, start, end int64) ([]*domain.PricePoint, error)
}
