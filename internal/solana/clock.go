package solana

import (
	"context"
	"fmt"
)

// ChainClock reads the cluster's unix time from the block time of the latest slot.
type ChainClock struct {
	client RPCClient
}

// NewChainClock creates a clock backed by the given RPC client.
func NewChainClock(client RPCClient) *ChainClock {
	return &ChainClock{client: client}
}

// Now returns the block time of the current slot in unix seconds.
func (c *ChainClock) Now(ctx context.Context) (int64, error) {
	slot, err := c.client.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}

	blockTime, err := c.client.GetBlockTime(ctx, slot)
	if err != nil {
		return 0, fmt.Errorf("get block time for slot %d: %w", slot, err)
	}
	if blockTime == nil {
		return 0, fmt.Errorf("slot %d: %w", slot, ErrBlockTimeUnavailable)
	}

	return *blockTime, nil
}
