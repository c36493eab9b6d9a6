// Package auction runs descending-price auctions: it creates the auction
// record and mints its token, and settles the first claim that meets the
// current price.
package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-dutch-auction/internal/address"
	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/ledger"
	"solana-dutch-auction/internal/observability"
	"solana-dutch-auction/internal/pricing"
	"solana-dutch-auction/internal/storage"
)

// DefaultCurveStep is the spacing in seconds of stored curve samples.
const DefaultCurveStep int64 = 60

// InitializeParams are the seller's auction parameters.
type InitializeParams struct {
	Seller       string
	StartTime    int64
	EndTime      int64
	StartPrice   int64
	ReservePrice *int64
}

// ClaimResult describes a claim that did not fail.
type ClaimResult struct {
	Outcome   domain.ClaimOutcome
	AuctionID string
	Buyer     string
	Seller    string
	Timestamp int64  // clock reading used for the decision
	Price     uint64 // set when the price was evaluated
	Balance   uint64 // buyer balance, set for InsufficientFunds

	Settlement *domain.Settlement // set for Settled
}

// Service orchestrates auctions over a store, a ledger and a clock.
type Service struct {
	store     storage.AuctionStore
	curves    storage.PriceCurveStore
	ledger    ledger.Ledger
	clock     Clock
	programID address.PublicKey
	curveStep int64
	newID     func() uuid.UUID
	log       *zap.Logger
	locks     *keyedMutex
}

// Option configures Service.
type Option func(*Service)

// WithCurveStore stores a sampled price curve for each new auction.
func WithCurveStore(curves storage.PriceCurveStore) Option {
	return func(s *Service) {
		s.curves = curves
	}
}

// WithCurveStep sets the spacing of curve samples in seconds.
func WithCurveStep(step int64) Option {
	return func(s *Service) {
		if step > 0 {
			s.curveStep = step
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithIDGenerator overrides auction ID generation.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

// NewService creates a Service. programID scopes the derived mint addresses.
func NewService(store storage.AuctionStore, l ledger.Ledger, clock Clock, programID address.PublicKey, opts ...Option) *Service {
	s := &Service{
		store:     store,
		ledger:    l,
		clock:     clock,
		programID: programID,
		curveStep: DefaultCurveStep,
		newID:     uuid.New,
		log:       zap.NewNop(),
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates an auction and mints its fixed token supply to the seller.
// The mint and the record are committed together or not at all.
func (s *Service) Initialize(ctx context.Context, p InitializeParams) (*domain.Auction, error) {
	start := time.Now()
	defer func() {
		observability.RecordOperation("initialize", time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := address.ParsePublicKey(p.Seller); err != nil {
		return nil, fmt.Errorf("%w: seller: %w", ErrInvalidAddress, err)
	}

	line, err := pricing.NewLine(p.StartPrice, p.StartTime, p.ReservePrice, p.EndTime)
	if err != nil {
		return nil, fmt.Errorf("derive price line: %w", err)
	}

	id := s.newID()
	mint, _, err := address.MintAddress(s.programID, id)
	if err != nil {
		return nil, fmt.Errorf("derive mint address: %w", err)
	}

	a := &domain.Auction{
		ID:         id.String(),
		Authority:  p.Seller,
		Mint:       mint.String(),
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
		StartPrice: p.StartPrice,
		SlopeNum:   line.SlopeNum,
		SlopeDen:   line.SlopeDen,
		YIntercept: line.YIntercept,
	}
	if p.ReservePrice != nil {
		r := *p.ReservePrice
		a.ReservePrice = &r
	}

	err = s.ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		// The mint PDA is its own issuing authority until settlement.
		if err := tx.MintFungibleUnit(ctx, a.Mint, a.Mint, a.Authority, domain.MintQuantity); err != nil {
			return fmt.Errorf("mint tokens: %w", err)
		}
		if err := s.store.Insert(ctx, a); err != nil {
			return fmt.Errorf("create auction record: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("auction initialization failed",
			zap.String("seller", p.Seller),
			zap.String("reason", Reason(err)),
			zap.Error(err))
		return nil, err
	}

	s.storeCurve(ctx, a.ID, line, a.StartTime, a.EndTime)

	observability.RecordAuctionInitialized()
	s.log.Info("auction initialized",
		zap.String("auction_id", a.ID),
		zap.String("seller", a.Authority),
		zap.String("mint", a.Mint),
		zap.Int64("start_time", a.StartTime),
		zap.Int64("end_time", a.EndTime),
		zap.Int64("start_price", a.StartPrice),
		zap.Int64("reserve_price", a.Reserve()))

	return s.store.GetByID(ctx, a.ID)
}

// storeCurve samples the schedule into the curve store. Failures are logged:
// the curve is derived data and can be recomputed from the record.
func (s *Service) storeCurve(ctx context.Context, auctionID string, line pricing.Line, startTime, endTime int64) {
	if s.curves == nil {
		return
	}

	points, err := line.Curve(startTime, endTime, s.curveStep)
	if err != nil {
		s.log.Warn("sample price curve", zap.String("auction_id", auctionID), zap.Error(err))
		return
	}

	rows := make([]*domain.PricePoint, len(points))
	for i, p := range points {
		rows[i] = &domain.PricePoint{AuctionID: auctionID, Timestamp: p.Time, Price: p.Price}
	}
	if err := s.curves.InsertBulk(ctx, rows); err != nil {
		s.log.Warn("store price curve", zap.String("auction_id", auctionID), zap.Error(err))
	}
}

// Claim attempts to buy the auctioned mint authority at the current price.
// Non-failing results are reported through ClaimResult.Outcome with a nil error.
func (s *Service) Claim(ctx context.Context, auctionID, seller, buyer string) (*ClaimResult, error) {
	start := time.Now()
	defer func() {
		observability.RecordOperation("claim", time.Since(start).Seconds())
	}()

	res, err := s.claim(ctx, auctionID, seller, buyer)
	if err != nil {
		reason := Reason(err)
		observability.RecordClaimError(reason)
		s.log.Warn("claim failed",
			zap.String("auction_id", auctionID),
			zap.String("buyer", buyer),
			zap.String("reason", reason),
			zap.Error(err))
		return nil, err
	}

	observability.RecordClaim(string(res.Outcome))
	fields := []zap.Field{
		zap.String("auction_id", auctionID),
		zap.String("buyer", buyer),
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("timestamp", res.Timestamp),
	}
	if res.Outcome == domain.OutcomeSettled {
		observability.RecordSettlement(res.Price)
		s.log.Info("auction settled", append(fields, zap.Uint64("price", res.Price))...)
	} else {
		s.log.Debug("claim outcome", fields...)
	}
	return res, nil
}

func (s *Service) claim(ctx context.Context, auctionID, seller, buyer string) (*ClaimResult, error) {
	if _, err := address.ParsePublicKey(seller); err != nil {
		return nil, fmt.Errorf("%w: seller: %w", ErrInvalidAddress, err)
	}
	if _, err := address.ParsePublicKey(buyer); err != nil {
		return nil, fmt.Errorf("%w: buyer: %w", ErrInvalidAddress, err)
	}
	if buyer == seller {
		return nil, ErrSelfClaim
	}

	unlock := s.locks.Lock(auctionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	if a.Authority != seller {
		return nil, ErrUnauthorized
	}

	res := &ClaimResult{AuctionID: a.ID, Buyer: buyer, Seller: seller}

	if a.IsEnded {
		res.Outcome = domain.OutcomeAlreadyEnded
		return res, nil
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	res.Timestamp = now

	if now > a.EndTime {
		if err := s.store.MarkEnded(ctx, a.ID, a.Version); err != nil {
			return nil, fmt.Errorf("mark auction ended: %w", err)
		}
		res.Outcome = domain.OutcomeExpired
		return res, nil
	}

	if now < a.StartTime {
		res.Outcome = domain.OutcomeNotStarted
		return res, nil
	}

	price, err := pricing.PriceAt(now, a.YIntercept, a.SlopeNum, a.SlopeDen)
	if err != nil {
		return nil, fmt.Errorf("price at %d: %w", now, err)
	}
	res.Price = price

	settlement := &domain.Settlement{
		AuctionID: a.ID,
		Buyer:     buyer,
		Seller:    seller,
		Mint:      a.Mint,
		Price:     price,
		SettledAt: now,
	}

	var balance uint64
	err = s.ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		balance, err = tx.Balance(ctx, buyer)
		if err != nil {
			return fmt.Errorf("read buyer balance: %w", err)
		}
		if balance < price {
			return errInsufficientFunds
		}
		if err := tx.TransferValue(ctx, buyer, seller, price); err != nil {
			return fmt.Errorf("transfer payment: %w", err)
		}
		// The mint PDA has held its own authority since Initialize.
		if err := tx.ReassignAuthority(ctx, a.Mint, a.Mint, buyer); err != nil {
			return fmt.Errorf("reassign mint authority: %w", err)
		}
		if err := s.store.Settle(ctx, settlement, a.Version); err != nil {
			return fmt.Errorf("record settlement: %w", err)
		}
		return nil
	})
	if errors.Is(err, errInsufficientFunds) {
		res.Outcome = domain.OutcomeInsufficientFunds
		res.Balance = balance
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	res.Outcome = domain.OutcomeSettled
	res.Settlement = settlement
	return res, nil
}

// Auction returns the stored auction record.
func (s *Service) Auction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	return a, nil
}

// AuctionsBySeller returns the auctions created by a seller.
func (s *Service) AuctionsBySeller(ctx context.Context, seller string) ([]*domain.Auction, error) {
	return s.store.GetByAuthority(ctx, seller)
}

// Settlement returns the receipt of a settled auction.
func (s *Service) Settlement(ctx context.Context, auctionID string) (*domain.Settlement, error) {
	return s.store.GetSettlement(ctx, auctionID)
}

// Balance returns an account's lamport balance on the ledger.
func (s *Service) Balance(ctx context.Context, account string) (uint64, error) {
	return s.ledger.Balance(ctx, account)
}

// SettlementsByBuyer returns every auction a buyer has won.
func (s *Service) SettlementsByBuyer(ctx context.Context, buyer string) ([]*domain.Settlement, error) {
	return s.store.GetSettlementsByBuyer(ctx, buyer)
}
