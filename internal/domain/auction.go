package domain

// Auction is the persistent record of one descending-price auction.
// Derived fields (SlopeNum, SlopeDen, YIntercept, Mint) are set once at initialization.
type Auction struct {
	ID        string // uuid
	Authority string // seller pubkey (base58), immutable
	Mint      string // auctioned token mint (base58 PDA)

	StartTime    int64  // unix seconds
	EndTime      int64  // unix seconds
	StartPrice   int64  // lamports at StartTime
	ReservePrice *int64 // lamports at EndTime (nullable, nil means 0)

	// Line: price(t) = SlopeNum*t/SlopeDen + YIntercept
	SlopeNum   int64
	SlopeDen   int64
	YIntercept int64

	IsEnded bool

	Version   int64 // optimistic concurrency counter
	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms
}

// Reserve returns the reserve price, treating an absent reserve as zero.
func (a *Auction) Reserve() int64 {
	if a.ReservePrice == nil {
		return 0
	}
	return *a.ReservePrice
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	c := *a
	if a.ReservePrice != nil {
		r := *a.ReservePrice
		c.ReservePrice = &r
	}
	return &c
}

// MintQuantity is the fixed supply minted to the seller at initialization.
const MintQuantity uint64 = 100
