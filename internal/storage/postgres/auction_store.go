package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/storage"
)

// AuctionStore implements storage.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *Pool
}

// NewAuctionStore creates a new AuctionStore.
func NewAuctionStore(pool *Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuctionStore = (*AuctionStore)(nil)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const auctionColumns = `
	id, authority, mint, start_time, end_time, start_price, reserve_price,
	slope_num, slope_den, y_intercept, is_ended, version, created_at, updated_at
`

// Insert adds a new auction with Version 1. Returns ErrDuplicateKey if id exists.
func (s *AuctionStore) Insert(ctx context.Context, a *domain.Auction) error {
	if a == nil || a.ID == "" || a.Authority == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO auctions (
			id, authority, mint, start_time, end_time, start_price, reserve_price,
			slope_num, slope_den, y_intercept, is_ended, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.Authority,
		a.Mint,
		a.StartTime,
		a.EndTime,
		a.StartPrice,
		a.ReservePrice,
		a.SlopeNum,
		a.SlopeDen,
		a.YIntercept,
		a.IsEnded,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isAllocationError(err) {
			return fmt.Errorf("%w: %v", storage.ErrAllocationFailed, err)
		}
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by its ID. Returns ErrNotFound if not exists.
func (s *AuctionStore) GetByID(ctx context.Context, id string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get auction by id: %w", err)
	}
	return a, nil
}

// GetByAuthority retrieves all auctions created by a seller, ordered by start_time ASC.
func (s *AuctionStore) GetByAuthority(ctx context.Context, authority string) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + `
		FROM auctions
		WHERE authority = $1
		ORDER BY start_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, authority)
	if err != nil {
		return nil, fmt.Errorf("get auctions by authority: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction row: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auction rows: %w", err)
	}

	return auctions, nil
}

// MarkEnded sets is_ended if the stored version equals expectedVersion.
func (s *AuctionStore) MarkEnded(ctx context.Context, id string, expectedVersion int64) error {
	return markEnded(ctx, s.pool, id, expectedVersion)
}

// Settle marks the auction ended and records the settlement in one transaction.
func (s *AuctionStore) Settle(ctx context.Context, st *domain.Settlement, expectedVersion int64) error {
	if st == nil || st.AuctionID == "" || st.Buyer == "" {
		return storage.ErrInvalidInput
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := markEnded(ctx, tx, st.AuctionID, expectedVersion); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO settlements (auction_id, buyer, seller, mint, price, settled_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, st.AuctionID, st.Buyer, st.Seller, st.Mint, int64(st.Price), st.SettledAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert settlement: %w", err)
		}
		return nil
	})
}

// markEnded runs the versioned update and tells a stale version apart from a missing row.
func markEnded(ctx context.Context, q querier, id string, expectedVersion int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE auctions
		SET is_ended = TRUE,
		    version = version + 1,
		    updated_at = (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
		WHERE id = $1 AND version = $2
	`, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("mark auction ended: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check auction exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// GetSettlement retrieves the settlement of an auction. Returns ErrNotFound if not settled.
func (s *AuctionStore) GetSettlement(ctx context.Context, auctionID string) (*domain.Settlement, error) {
	query := `
		SELECT auction_id, buyer, seller, mint, price, settled_at, created_at
		FROM settlements
		WHERE auction_id = $1
	`

	st, err := scanSettlement(s.pool.QueryRow(ctx, query, auctionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return st, nil
}

// GetSettlementsByBuyer retrieves all settlements won by a buyer, ordered by settled_at ASC.
func (s *AuctionStore) GetSettlementsByBuyer(ctx context.Context, buyer string) ([]*domain.Settlement, error) {
	query := `
		SELECT auction_id, buyer, seller, mint, price, settled_at, created_at
		FROM settlements
		WHERE buyer = $1
		ORDER BY settled_at ASC, auction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, buyer)
	if err != nil {
		return nil, fmt.Errorf("get settlements by buyer: %w", err)
	}
	defer rows.Close()

	var settlements []*domain.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}

	return settlements, nil
}

// scanAuction scans a single row into an Auction.
func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var a domain.Auction
	err := row.Scan(
		&a.ID,
		&a.Authority,
		&a.Mint,
		&a.StartTime,
		&a.EndTime,
		&a.StartPrice,
		&a.ReservePrice,
		&a.SlopeNum,
		&a.SlopeDen,
		&a.YIntercept,
		&a.IsEnded,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// scanSettlement scans a single row into a Settlement.
func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	var st domain.Settlement
	var price int64
	err := row.Scan(
		&st.AuctionID,
		&st.Buyer,
		&st.Seller,
		&st.Mint,
		&price,
		&st.SettledAt,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, errors.New("negative settlement price in storage")
	}
	st.Price = uint64(price)
	return &st, nil
}
