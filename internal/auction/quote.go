package auction

import (
	"context"
	"fmt"

	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/pricing"
)

// Status is the phase of an auction at a given time.
type Status string

// Auction phases.
const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusOpen       Status = "OPEN"
	StatusExpired    Status = "EXPIRED" // past EndTime, not yet marked ended
	StatusEnded      Status = "ENDED"
)

// Quote is the read-only view of an auction's price at one instant.
type Quote struct {
	AuctionID string
	Status    Status
	Timestamp int64
	// Price is the claimable price. For NotStarted it is the start price,
	// for Expired and Ended it is zero.
	Price   uint64
	Reserve int64
	EndTime int64
}

// Quote reports the current price and phase without changing state.
func (s *Service) Quote(ctx context.Context, auctionID string) (*Quote, error) {
	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	return QuoteAt(a, now)
}

// QuoteAt evaluates an auction at now.
func QuoteAt(a *domain.Auction, now int64) (*Quote, error) {
	q := &Quote{
		AuctionID: a.ID,
		Timestamp: now,
		Reserve:   a.Reserve(),
		EndTime:   a.EndTime,
	}

	switch {
	case a.IsEnded:
		q.Status = StatusEnded
		return q, nil
	case now > a.EndTime:
		q.Status = StatusExpired
		return q, nil
	case now < a.StartTime:
		q.Status = StatusNotStarted
		q.Price = uint64(a.StartPrice)
		return q, nil
	}

	price, err := pricing.PriceAt(now, a.YIntercept, a.SlopeNum, a.SlopeDen)
	if err != nil {
		return nil, fmt.Errorf("price at %d: %w", now, err)
	}
	q.Status = StatusOpen
	q.Price = price
	return q, nil
}

// Curve returns the price schedule of an auction. Stored samples are used
// when present; otherwise the schedule is computed from the record.
func (s *Service) Curve(ctx context.Context, auctionID string) ([]*domain.PricePoint, error) {
	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}

	if s.curves != nil {
		points, err := s.curves.GetByAuctionID(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("load price curve: %w", err)
		}
		if len(points) > 0 {
			return points, nil
		}
	}

	line := pricing.Line{SlopeNum: a.SlopeNum, SlopeDen: a.SlopeDen, YIntercept: a.YIntercept}
	sampled, err := line.Curve(a.StartTime, a.EndTime, s.curveStep)
	if err != nil {
		return nil, fmt.Errorf("sample price curve: %w", err)
	}

	points := make([]*domain.PricePoint, len(sampled))
	for i, p := range sampled {
		points[i] = &domain.PricePoint{AuctionID: a.ID, Timestamp: p.Time, Price: p.Price}
	}
	return points, nil
}
