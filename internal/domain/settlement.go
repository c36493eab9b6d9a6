package domain

// Settlement is the receipt of a successful claim.
// At most one exists per auction.
type Settlement struct {
	AuctionID string
	Buyer     string // new mint authority
	Seller    string
	Mint      string
	Price     uint64 // lamports transferred buyer -> seller
	SettledAt int64  // clock reading (unix seconds) used for pricing
	CreatedAt int64  // unix ms
}
