// Package ledger defines the collaborator that holds lamport balances,
// token mints and their issuing authorities.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrMintFailed is returned when tokens cannot be issued.
	ErrMintFailed = errors.New("mint failed")

	// ErrTransferRejected is returned when the ledger refuses a transfer.
	ErrTransferRejected = errors.New("transfer rejected")

	// ErrInsufficientBalance is returned when the sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnauthorized is returned when the caller does not hold the authority it claims.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownMint is returned for operations on a mint the ledger has never seen.
	ErrUnknownMint = errors.New("unknown mint")
)

// Ledger runs groups of effects atomically.
type Ledger interface {
	// Atomic executes fn as one unit. If fn returns an error every effect
	// made through tx is rolled back and the error is returned unchanged.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Balance returns the lamport balance of an account outside any unit.
	Balance(ctx context.Context, account string) (uint64, error)
}

// Tx is the set of effects available inside an atomic unit.
type Tx interface {
	// Balance returns the lamport balance of an account.
	Balance(ctx context.Context, account string) (uint64, error)

	// MintFungibleUnit issues quantity tokens of mint to recipient. The mint is
	// created on first use with issuer as its authority. Returns ErrMintFailed
	// (wrapping ErrUnauthorized) when an existing mint has a different authority.
	MintFungibleUnit(ctx context.Context, mint, issuer, recipient string, quantity uint64) error

	// TransferValue moves amount lamports from one account to another.
	TransferValue(ctx context.Context, from, to string, amount uint64) error

	// ReassignAuthority hands the issuing authority of mint from current to next.
	ReassignAuthority(ctx context.Context, mint, current, next string) error
}

// MintInfo describes a token mint.
type MintInfo struct {
	Address   string
	Authority string
	Supply    uint64
}
