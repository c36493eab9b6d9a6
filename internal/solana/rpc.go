package solana

import (
	"context"
	"errors"
)

// ErrBlockTimeUnavailable is returned when the cluster has no timestamp for a slot.
var ErrBlockTimeUnavailable = errors.New("block time unavailable")

// RPCClient is the subset of the Solana JSON-RPC API used for cluster time and balances.
type RPCClient interface {
	// GetSlot returns the slot that has reached the configured commitment.
	GetSlot(ctx context.Context) (int64, error)

	// GetBlockTime returns the estimated unix time of a slot, nil if unknown.
	GetBlockTime(ctx context.Context, slot int64) (*int64, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Commitment levels accepted by the cluster.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)
