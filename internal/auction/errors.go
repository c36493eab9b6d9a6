package auction

import (
	"context"
	"errors"

	"solana-dutch-auction/internal/address"
	"solana-dutch-auction/internal/ledger"
	"solana-dutch-auction/internal/pricing"
	"solana-dutch-auction/internal/storage"
)

var (
	// ErrUnauthorized is returned when the named seller is not the auction authority.
	ErrUnauthorized = errors.New("seller is not the auction authority")

	// ErrInvalidAddress is returned when a seller or buyer is not a valid public key.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrSelfClaim is returned when the buyer is the seller.
	ErrSelfClaim = errors.New("buyer cannot be the seller")

	// errInsufficientFunds aborts the settlement unit; it surfaces as an outcome.
	errInsufficientFunds = errors.New("buyer balance below price")
)

// Reason classifies an error into a short label for metrics and API responses.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ledger.ErrMintFailed):
		return "mint_failed"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, address.ErrInvalidPublicKey):
		return "invalid_address"
	case errors.Is(err, ErrSelfClaim):
		return "self_claim"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrConflict):
		return "conflict"
	case errors.Is(err, storage.ErrDuplicateKey):
		return "duplicate"
	case errors.Is(err, storage.ErrAllocationFailed):
		return "allocation_failed"
	case errors.Is(err, pricing.ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, pricing.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, pricing.ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, pricing.ErrNegativePrice):
		return "negative_price"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrTransferRejected):
		return "transfer_rejected"
	case errors.Is(err, ledger.ErrUnknownMint):
		return "unknown_mint"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
