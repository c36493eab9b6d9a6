package domain

// PricePoint is one sample of an auction's price schedule.
type PricePoint struct {
	AuctionID string
	Timestamp int64  // unix seconds
	Price     uint64 // lamports
}
