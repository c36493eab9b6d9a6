package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"solana-dutch-auction/internal/ledger"
)

// Ledger is an in-memory implementation of ledger.Ledger.
// Atomic units are serialized and roll back by restoring a snapshot.
type Ledger struct {
	mu    sync.Mutex
	state state
}

type state struct {
	balances map[string]uint64
	mints    map[string]ledger.MintInfo
	holdings map[holdingKey]uint64
}

type holdingKey struct {
	mint  string
	owner string
}

// Compile-time interface check.
var _ ledger.Ledger = (*Ledger)(nil)

// New creates an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{state: newState()}
}

func newState() state {
	return state{
		balances: make(map[string]uint64),
		mints:    make(map[string]ledger.MintInfo),
		holdings: make(map[holdingKey]uint64),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.mints {
		c.mints[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	return c
}

// Atomic runs fn against a working copy and commits it only if fn succeeds.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{state: l.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	l.state = tx.state
	return nil
}

// Balance returns the committed lamport balance of an account.
func (l *Ledger) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.balances[account], nil
}

// Airdrop credits lamports to an account outside any unit.
func (l *Ledger) Airdrop(_ context.Context, account string, lamports uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.state.balances[account]
	if bal > math.MaxUint64-lamports {
		return bal, fmt.Errorf("%w: balance overflow", ledger.ErrTransferRejected)
	}
	l.state.balances[account] = bal + lamports
	return bal + lamports, nil
}

// Mint returns the committed state of a mint.
func (l *Ledger) Mint(_ context.Context, mint string) (ledger.MintInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.state.mints[mint]
	if !ok {
		return ledger.MintInfo{}, fmt.Errorf("%w: %s", ledger.ErrUnknownMint, mint)
	}
	return info, nil
}

// TokenBalance returns how many tokens of mint an owner holds.
func (l *Ledger) TokenBalance(_ context.Context, mint, owner string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.holdings[holdingKey{mint: mint, owner: owner}]
}

// memTx applies effects to a private copy of the ledger state.
type memTx struct {
	state state
}

func (t *memTx) Balance(_ context.Context, account string) (uint64, error) {
	return t.state.balances[account], nil
}

func (t *memTx) MintFungibleUnit(_ context.Context, mint, issuer, recipient string, quantity uint64) error {
	if mint == "" || issuer == "" || recipient == "" {
		return fmt.Errorf("%w: empty address", ledger.ErrMintFailed)
	}

	info, ok := t.state.mints[mint]
	if !ok {
		info = ledger.MintInfo{Address: mint, Authority: issuer}
	}
	if info.Authority != issuer {
		return fmt.Errorf("%w: %w: %s is not the authority of %s", ledger.ErrMintFailed, ledger.ErrUnauthorized, issuer, mint)
	}
	if info.Supply > math.MaxUint64-quantity {
		return fmt.Errorf("%w: supply overflow", ledger.ErrMintFailed)
	}

	info.Supply += quantity
	t.state.mints[mint] = info
	t.state.holdings[holdingKey{mint: mint, owner: recipient}] += quantity
	return nil
}

func (t *memTx) TransferValue(_ context.Context, from, to string, amount uint64) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: empty address", ledger.ErrTransferRejected)
	}
	if from == to {
		return fmt.Errorf("%w: sender and recipient are the same account", ledger.ErrTransferRejected)
	}

	fromBal := t.state.balances[from]
	if fromBal < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ledger.ErrInsufficientBalance, from, fromBal, amount)
	}
	toBal := t.state.balances[to]
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("%w: recipient balance overflow", ledger.ErrTransferRejected)
	}

	t.state.balances[from] = fromBal - amount
	t.state.balances[to] = toBal + amount
	return nil
}

func (t *memTx) ReassignAuthority(_ context.Context, mint, current, next string) error {
	info, ok := t.state.mints[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownMint, mint)
	}
	if info.Authority != current {
		return fmt.Errorf("%w: %s is not the authority of %s", ledger.ErrUnauthorized, current, mint)
	}
	if next == "" {
		return fmt.Errorf("%w: empty next authority", ledger.ErrUnauthorized)
	}

	info.Authority = next
	t.state.mints[mint] = info
	return nil
}
