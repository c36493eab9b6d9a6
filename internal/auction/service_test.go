package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dutch-auction/internal/address"
	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/ledger"
	ledgermem "solana-dutch-auction/internal/ledger/memory"
	"solana-dutch-auction/internal/pricing"
	"solana-dutch-auction/internal/storage"
	"solana-dutch-auction/internal/storage/memory"
)

const (
	sellerKey = "C3nuLmBXJxkW4j8Ynx75KhSm5p5eDQ7jELM55oJteMfP"
	buyerKey  = "8PNeMNJQFFAU5phCnn12MVHk6sAorobNqatfvDvRpVkG"
	otherKey  = "FciD4i2WPEYinnKaCzFZAPTUsRxTCpJM6FyQmezmkkoj"
)

var testProgramID = address.MustParsePublicKey("4zs7e3yCWCb9SzuCvCDEJgd6qeLC695BUyuJZWptu5GU")

// testClock is a settable clock.
type testClock struct {
	now atomic.Int64
}

func (c *testClock) Now(_ context.Context) (int64, error) { return c.now.Load(), nil }
func (c *testClock) Set(t int64)                          { c.now.Store(t) }

type fixture struct {
	svc    *Service
	store  *memory.AuctionStore
	curves *memory.PriceCurveStore
	ledger *ledgermem.Ledger
	clock  *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewAuctionStore(),
		curves: memory.NewPriceCurveStore(),
		ledger: ledgermem.New(),
		clock:  &testClock{},
	}
	opts = append([]Option{WithCurveStore(f.curves), WithCurveStep(25)}, opts...)
	f.svc = NewService(f.store, f.ledger, f.clock, testProgramID, opts...)
	return f
}

// scenarioA is start 1000, reserve 100, over [0, 100].
func scenarioA() InitializeParams {
	reserve := int64(100)
	return InitializeParams{
		Seller:       sellerKey,
		StartTime:    0,
		EndTime:      100,
		StartPrice:   1000,
		ReservePrice: &reserve,
	}
}

func (f *fixture) initialize(t *testing.T, p InitializeParams) *domain.Auction {
	t.Helper()
	a, err := f.svc.Initialize(context.Background(), p)
	require.NoError(t, err)
	return a
}

func (f *fixture) fund(t *testing.T, account string, lamports uint64) {
	t.Helper()
	_, err := f.ledger.Airdrop(context.Background(), account, lamports)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, account string) uint64 {
	t.Helper()
	bal, err := f.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return bal
}

func TestInitialize(t *testing.T) {
	id := uuid.MustParse("6f1c2b8e-3d4a-4b5c-9e7f-0a1b2c3d4e5f")
	f := newFixture(t, WithIDGenerator(func() uuid.UUID { return id }))
	ctx := context.Background()

	a := f.initialize(t, scenarioA())

	assert.Equal(t, id.String(), a.ID)
	assert.Equal(t, sellerKey, a.Authority)
	assert.Equal(t, "4h8WL5oqASpaH51G1PhWHkADt6NULqhz2V1uq2K3rFUu", a.Mint)
	assert.Equal(t, int64(-900), a.SlopeNum)
	assert.Equal(t, int64(100), a.SlopeDen)
	assert.Equal(t, int64(1000), a.YIntercept)
	assert.False(t, a.IsEnded)
	assert.Equal(t, int64(1), a.Version)

	mint, err := f.ledger.Mint(ctx, a.Mint)
	require.NoError(t, err)
	assert.Equal(t, a.Mint, mint.Authority)
	assert.Equal(t, domain.MintQuantity, mint.Supply)
	assert.Equal(t, domain.MintQuantity, f.ledger.TokenBalance(ctx, a.Mint, sellerKey))

	curve, err := f.curves.GetByAuctionID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, curve, 5)
	want := []uint64{1000, 775, 550, 325, 100}
	for i, p := range curve {
		assert.Equal(t, int64(i*25), p.Timestamp)
		assert.Equal(t, want[i], p.Price)
	}
}

func TestInitialize_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*InitializeParams)
		want   error
	}{
		{"end equals start", func(p *InitializeParams) { p.EndTime = p.StartTime }, pricing.ErrInvalidConfiguration},
		{"end before start", func(p *InitializeParams) { p.EndTime = -10 }, pricing.ErrInvalidConfiguration},
		{"reserve above start", func(p *InitializeParams) { r := int64(2000); p.ReservePrice = &r }, pricing.ErrInvalidConfiguration},
		{"negative start price", func(p *InitializeParams) { p.StartPrice = -1 }, pricing.ErrInvalidConfiguration},
		{"bad seller", func(p *InitializeParams) { p.Seller = "not-a-key" }, ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scenarioA()
			tt.mutate(&p)
			_, err := f.svc.Initialize(ctx, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	auctions, err := f.store.GetByAuthority(ctx, sellerKey)
	require.NoError(t, err)
	assert.Empty(t, auctions)
}

func TestInitialize_NoReserve(t *testing.T) {
	f := newFixture(t)

	p := scenarioA()
	p.ReservePrice = nil
	a := f.initialize(t, p)

	assert.Nil(t, a.ReservePrice)
	assert.Equal(t, int64(-1000), a.SlopeNum)

	f.clock.Set(100)
	q, err := f.svc.Quote(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), q.Price)
}

// failingStore fails selected writes.
type failingStore struct {
	storage.AuctionStore
	insertErr error
	settleErr error
}

func (s *failingStore) Insert(ctx context.Context, a *domain.Auction) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.AuctionStore.Insert(ctx, a)
}

func (s *failingStore) Settle(ctx context.Context, st *domain.Settlement, v int64) error {
	if s.settleErr != nil {
		return s.settleErr
	}
	return s.AuctionStore.Settle(ctx, st, v)
}

func TestInitialize_AllocationFailureRollsBackMint(t *testing.T) {
	id := uuid.MustParse("6f1c2b8e-3d4a-4b5c-9e7f-0a1b2c3d4e5f")
	store := &failingStore{AuctionStore: memory.NewAuctionStore(), insertErr: storage.ErrAllocationFailed}
	l := ledgermem.New()
	svc := NewService(store, l, FixedClock(0), testProgramID, WithIDGenerator(func() uuid.UUID { return id }))
	ctx := context.Background()

	_, err := svc.Initialize(ctx, scenarioA())
	assert.ErrorIs(t, err, storage.ErrAllocationFailed)

	mint, _, err := address.MintAddress(testProgramID, id)
	require.NoError(t, err)
	_, err = l.Mint(ctx, mint.String())
	assert.ErrorIs(t, err, ledger.ErrUnknownMint)
	assert.Zero(t, l.TokenBalance(ctx, mint.String(), sellerKey))
}

func TestInitialize_DuplicateID(t *testing.T) {
	id := uuid.MustParse("6f1c2b8e-3d4a-4b5c-9e7f-0a1b2c3d4e5f")
	f := newFixture(t, WithIDGenerator(func() uuid.UUID { return id }))

	f.initialize(t, scenarioA())

	// Same ID means same mint; the existing authority is the mint itself so
	// minting succeeds and the record insert must undo it.
	_, err := f.svc.Initialize(context.Background(), scenarioA())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	mint, err := f.ledger.Mint(context.Background(), "4h8WL5oqASpaH51G1PhWHkADt6NULqhz2V1uq2K3rFUu")
	require.NoError(t, err)
	assert.Equal(t, domain.MintQuantity, mint.Supply)
}

func TestClaim_ScenarioB_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.initialize(t, scenarioA())
	f.fund(t, buyerKey, 1000)

	f.clock.Set(150)
	res, err := f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExpired, res.Outcome)
	assert.Equal(t, int64(150), res.Timestamp)

	got, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnded)
	assert.Equal(t, uint64(1000), f.balance(t, buyerKey))
	assert.Zero(t, f.balance(t, sellerKey))

	// One-way: even a later in-window clock cannot reopen it.
	f.clock.Set(50)
	res, err = f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyEnded, res.Outcome)
}

func TestClaim_ScenarioC_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.initialize(t, scenarioA())
	f.fund(t, buyerKey, 549)

	f.clock.Set(50)
	res, err := f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientFunds, res.Outcome)
	assert.Equal(t, uint64(550), res.Price)
	assert.Equal(t, uint64(549), res.Balance)

	got, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnded)
	assert.Equal(t, uint64(549), f.balance(t, buyerKey))

	// Price keeps falling; the same buyer can win later.
	f.clock.Set(51)
	res, err = f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, res.Outcome)
	assert.Equal(t, uint64(541), res.Price)
}

func TestClaim_ScenarioD_Settled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.initialize(t, scenarioA())
	f.fund(t, buyerKey, 1000)

	f.clock.Set(50)
	res, err := f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, res.Outcome)
	assert.Equal(t, uint64(550), res.Price)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, int64(50), res.Settlement.SettledAt)

	assert.Equal(t, uint64(450), f.balance(t, buyerKey))
	assert.Equal(t, uint64(550), f.balance(t, sellerKey))

	mint, err := f.ledger.Mint(ctx, a.Mint)
	require.NoError(t, err)
	assert.Equal(t, buyerKey, mint.Authority)

	got, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnded)

	st, err := f.svc.Settlement(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, buyerKey, st.Buyer)
	assert.Equal(t, uint64(550), st.Price)

	// Repeated claims, from anyone, are AlreadyEnded with no effect.
	f.fund(t, otherKey, 1000)
	for _, who := range []string{buyerKey, otherKey} {
		res, err := f.svc.Claim(ctx, a.ID, sellerKey, who)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAlreadyEnded, res.Outcome)
	}
	assert.Equal(t, uint64(450), f.balance(t, buyerKey))
	assert.Equal(t, uint64(1000), f.balance(t, otherKey))
	assert.Equal(t, uint64(550), f.balance(t, sellerKey))
}

func TestClaim_AtEndTimeUsesReserve(t *testing.T) {
	f := newFixture(t)
	a := f.initialize(t, scenarioA())
	f.fund(t, buyerKey, 100)

	f.clock.Set(100)
	res, err := f.svc.Claim(context.Background(), a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, res.Outcome)
	assert.Equal(t, uint64(100), res.Price)
}

func TestClaim_NotStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := scenarioA()
	p.StartTime, p.EndTime = 100, 200
	a := f.initialize(t, p)
	f.fund(t, buyerKey, 5000)

	f.clock.Set(99)
	res, err := f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotStarted, res.Outcome)

	got, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnded)
	assert.Equal(t, uint64(5000), f.balance(t, buyerKey))

	f.clock.Set(100)
	res, err = f.svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, res.Outcome)
	assert.Equal(t, uint64(1000), res.Price)
}

func TestClaim_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.initialize(t, scenarioA())
	f.clock.Set(50)

	_, err := f.svc.Claim(ctx, a.ID, otherKey, buyerKey)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Claim(ctx, "missing", sellerKey, buyerKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.Claim(ctx, a.ID, sellerKey, "bad")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.svc.Claim(cancelled, a.ID, sellerKey, buyerKey)
	assert.ErrorIs(t, err, context.Canceled)

	got, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnded)
}

func TestClaim_SelfClaimRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.initialize(t, scenarioA())
	f.clock.Set(50)
	f.fund(t, sellerKey, 1000)

	_, err := f.svc.Claim(ctx, a.ID, sellerKey, sellerKey)
	require.ErrorIs(t, err, ErrSelfClaim)
	assert.Equal(t, "self_claim", Reason(err))

	got, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnded)
	assert.Equal(t, uint64(1000), f.balance(t, sellerKey))

	mint, err := f.ledger.Mint(ctx, a.Mint)
	require.NoError(t, err)
	assert.Equal(t, a.Mint, mint.Authority)
}

func TestInitialize_HugeWindowBoundsCurve(t *testing.T) {
	windows := []int64{1 << 60, math.MaxInt64, 10_000_000_000}

	for _, end := range windows {
		t.Run(fmt.Sprint(end), func(t *testing.T) {
			f := newFixture(t, WithCurveStep(DefaultCurveStep))
			ctx := context.Background()

			var a *domain.Auction
			require.NotPanics(t, func() {
				a = f.initialize(t, InitializeParams{
					Seller:     sellerKey,
					StartTime:  0,
					EndTime:    end,
					StartPrice: 1000,
				})
			})

			stored, err := f.curves.GetByAuctionID(ctx, a.ID)
			require.NoError(t, err)
			require.NotEmpty(t, stored)
			assert.LessOrEqual(t, len(stored), pricing.MaxCurvePoints)
			assert.Equal(t, int64(0), stored[0].Timestamp)
			assert.Equal(t, end, stored[len(stored)-1].Timestamp)
			assert.Equal(t, uint64(0), stored[len(stored)-1].Price)

			curve, err := f.svc.Curve(ctx, a.ID)
			require.NoError(t, err)
			assert.Len(t, curve, len(stored))
		})
	}
}

func TestCurve_ComputedFallbackIsBounded(t *testing.T) {
	svc := NewService(memory.NewAuctionStore(), ledgermem.New(), &testClock{}, testProgramID)
	ctx := context.Background()

	a, err := svc.Initialize(ctx, InitializeParams{
		Seller:     sellerKey,
		StartTime:  0,
		EndTime:    math.MaxInt64,
		StartPrice: 1000,
	})
	require.NoError(t, err)

	var curve []*domain.PricePoint
	require.NotPanics(t, func() {
		curve, err = svc.Curve(ctx, a.ID)
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(curve), pricing.MaxCurvePoints)
	assert.Equal(t, int64(math.MaxInt64), curve[len(curve)-1].Timestamp)
}

// faultyLedger wraps a ledger and fails authority reassignment on demand.
type faultyLedger struct {
	ledger.Ledger
	failReassign atomic.Bool
}

func (l *faultyLedger) Atomic(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return l.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, l: l})
	})
}

type faultyTx struct {
	ledger.Tx
	l *faultyLedger
}

func (t *faultyTx) ReassignAuthority(ctx context.Context, mint, current, next string) error {
	if t.l.failReassign.Load() {
		return ledger.ErrUnauthorized
	}
	return t.Tx.ReassignAuthority(ctx, mint, current, next)
}

func TestClaim_FailedReassignmentRollsBackTransfer(t *testing.T) {
	inner := ledgermem.New()
	l := &faultyLedger{Ledger: inner}
	store := memory.NewAuctionStore()
	clock := &testClock{}
	svc := NewService(store, l, clock, testProgramID)
	ctx := context.Background()

	a, err := svc.Initialize(ctx, scenarioA())
	require.NoError(t, err)
	_, err = inner.Airdrop(ctx, buyerKey, 1000)
	require.NoError(t, err)

	l.failReassign.Store(true)
	clock.Set(50)
	_, err = svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	buyer, _ := inner.Balance(ctx, buyerKey)
	seller, _ := inner.Balance(ctx, sellerKey)
	assert.Equal(t, uint64(1000), buyer)
	assert.Zero(t, seller)

	got, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnded)
	_, err = store.GetSettlement(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Still claimable once the ledger recovers.
	l.failReassign.Store(false)
	res, err := svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, res.Outcome)
}

func TestClaim_FailedSettlementWriteRollsBackLedger(t *testing.T) {
	l := ledgermem.New()
	store := &failingStore{AuctionStore: memory.NewAuctionStore()}
	svc := NewService(store, l, FixedClock(50), testProgramID)
	ctx := context.Background()

	a, err := svc.Initialize(ctx, scenarioA())
	require.NoError(t, err)
	_, err = l.Airdrop(ctx, buyerKey, 1000)
	require.NoError(t, err)

	store.settleErr = storage.ErrConflict
	_, err = svc.Claim(ctx, a.ID, sellerKey, buyerKey)
	assert.ErrorIs(t, err, storage.ErrConflict)

	buyer, _ := l.Balance(ctx, buyerKey)
	assert.Equal(t, uint64(1000), buyer)
	mint, err := l.Mint(ctx, a.Mint)
	require.NoError(t, err)
	assert.Equal(t, a.Mint, mint.Authority)
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.initialize(t, scenarioA())
	f.clock.Set(50)

	const buyers = 10
	keys := make([]string, buyers)
	for i := range keys {
		var pk address.PublicKey
		pk[0] = byte(i + 1)
		keys[i] = pk.String()
		f.fund(t, keys[i], 1000)
	}

	var wg sync.WaitGroup
	outcomes := make(chan domain.ClaimOutcome, buyers)
	for _, key := range keys {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			res, err := f.svc.Claim(ctx, a.ID, sellerKey, buyer)
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}(key)
	}
	wg.Wait()
	close(outcomes)

	counts := map[domain.ClaimOutcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[domain.OutcomeSettled])
	assert.Equal(t, buyers-1, counts[domain.OutcomeAlreadyEnded])
	assert.Equal(t, uint64(550), f.balance(t, sellerKey))
}

func TestClaim_ClockFailure(t *testing.T) {
	f := newFixture(t)
	a := f.initialize(t, scenarioA())

	boom := errors.New("rpc down")
	svc := NewService(f.store, f.ledger, clockFunc(func(context.Context) (int64, error) { return 0, boom }), testProgramID)

	_, err := svc.Claim(context.Background(), a.ID, sellerKey, buyerKey)
	assert.ErrorIs(t, err, boom)
}

type clockFunc func(context.Context) (int64, error)

func (f clockFunc) Now(ctx context.Context) (int64, error) { return f(ctx) }
