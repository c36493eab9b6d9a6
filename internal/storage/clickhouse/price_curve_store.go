package clickhouse

import (
	"context"
	"fmt"

	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/storage"
)

// PriceCurveStore implements storage.PriceCurveStore using ClickHouse.
type PriceCurveStore struct {
	conn *Conn
}

// NewPriceCurveStore creates a new PriceCurveStore.
func NewPriceCurveStore(conn *Conn) *PriceCurveStore {
	return &PriceCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceCurveStore = (*PriceCurveStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (auction_id, timestamp).
func (s *PriceCurveStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		auctionID string
		timestamp int64
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.AuctionID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.AuctionID, p.Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows first.
	for _, p := range points {
		exists, err := s.exists(ctx, p.AuctionID, p.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_curve (auction_id, timestamp, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.AuctionID, p.Timestamp, p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAuctionID retrieves all points for an auction, ordered by timestamp ASC.
func (s *PriceCurveStore) GetByAuctionID(ctx context.Context, auctionID string) ([]*domain.PricePoint, error) {
	query := `
		SELECT auction_id, timestamp, price
		FROM price_curve FINAL
		WHERE auction_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query by auction id: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves points for an auction within [start, end] (inclusive).
func (s *PriceCurveStore) GetByTimeRange(ctx context.Context, auctionID string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT auction_id, timestamp, price
		FROM price_curve FINAL
		WHERE auction_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, auctionID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// exists checks if a point with the given key exists.
func (s *PriceCurveStore) exists(ctx context.Context, auctionID string, timestamp int64) (bool, error) {
	query := `
		SELECT count(*) FROM price_curve
		WHERE auction_id = ? AND timestamp = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, auctionID, timestamp).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.AuctionID, &p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price curve row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price curve rows: %w", err)
	}

	return points, nil
}
