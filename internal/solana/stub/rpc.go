package stub

import (
	"context"
	"sync"

	"solana-dutch-auction/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu         sync.Mutex
	Slot       int64
	BlockTimes map[int64]int64
	Balances   map[string]uint64
	// Err, when set, is returned by every call.
	Err error
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		BlockTimes: make(map[int64]int64),
		Balances:   make(map[string]uint64),
	}
}

// Advance moves the stub to a new slot produced at blockTime.
func (c *RPCClient) Advance(slot, blockTime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Slot = slot
	c.BlockTimes[slot] = blockTime
}

// GetSlot returns the current stub slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Slot, nil
}

// GetBlockTime returns the recorded block time, nil if the slot is unknown.
func (c *RPCClient) GetBlockTime(_ context.Context, slot int64) (*int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	bt, ok := c.BlockTimes[slot]
	if !ok {
		return nil, nil
	}
	return &bt, nil
}

// GetBalance returns the recorded balance, zero for unknown accounts.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Balances[pubkey], nil
}
