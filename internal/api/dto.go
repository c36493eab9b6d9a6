package api

import (
	"math/big"

	"github.com/shopspring/decimal"

	"solana-dutch-auction/internal/auction"
	"solana-dutch-auction/internal/domain"
)

// lamportsPerSOLExp is the decimal exponent of one lamport in SOL.
const lamportsPerSOLExp = -9

// toSOL renders lamports as a SOL decimal string.
func toSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), lamportsPerSOLExp).String()
}

func toSOLSigned(lamports int64) string {
	return decimal.New(lamports, lamportsPerSOLExp).String()
}

type initializeRequest struct {
	Seller       string `json:"seller"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	StartPrice   int64  `json:"start_price"`
	ReservePrice *int64 `json:"reserve_price"`
}

type claimRequest struct {
	Seller string `json:"seller"`
	Buyer  string `json:"buyer"`
}

type airdropRequest struct {
	Lamports uint64 `json:"lamports"`
}

type auctionResponse struct {
	ID            string `json:"id"`
	Authority     string `json:"authority"`
	Mint          string `json:"mint"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	StartPrice    int64  `json:"start_price"`
	StartPriceSOL string `json:"start_price_sol"`
	ReservePrice  *int64 `json:"reserve_price"`
	ReserveSOL    string `json:"reserve_price_sol"`
	SlopeNum      int64  `json:"slope_num"`
	SlopeDen      int64  `json:"slope_den"`
	YIntercept    int64  `json:"y_intercept"`
	IsEnded       bool   `json:"is_ended"`
	Version       int64  `json:"version"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

func newAuctionResponse(a *domain.Auction) auctionResponse {
	return auctionResponse{
		ID:            a.ID,
		Authority:     a.Authority,
		Mint:          a.Mint,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		StartPrice:    a.StartPrice,
		StartPriceSOL: toSOLSigned(a.StartPrice),
		ReservePrice:  a.ReservePrice,
		ReserveSOL:    toSOLSigned(a.Reserve()),
		SlopeNum:      a.SlopeNum,
		SlopeDen:      a.SlopeDen,
		YIntercept:    a.YIntercept,
		IsEnded:       a.IsEnded,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type quoteResponse struct {
	AuctionID string `json:"auction_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Price     uint64 `json:"price"`
	PriceSOL  string `json:"price_sol"`
	EndTime   int64  `json:"end_time"`
}

func newQuoteResponse(q *auction.Quote) quoteResponse {
	return quoteResponse{
		AuctionID: q.AuctionID,
		Status:    string(q.Status),
		Timestamp: q.Timestamp,
		Price:     q.Price,
		PriceSOL:  toSOL(q.Price),
		EndTime:   q.EndTime,
	}
}

type settlementResponse struct {
	AuctionID string `json:"auction_id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Mint      string `json:"mint"`
	Price     uint64 `json:"price"`
	PriceSOL  string `json:"price_sol"`
	SettledAt int64  `json:"settled_at"`
}

func newSettlementResponse(s *domain.Settlement) *settlementResponse {
	if s == nil {
		return nil
	}
	return &settlementResponse{
		AuctionID: s.AuctionID,
		Buyer:     s.Buyer,
		Seller:    s.Seller,
		Mint:      s.Mint,
		Price:     s.Price,
		PriceSOL:  toSOL(s.Price),
		SettledAt: s.SettledAt,
	}
}

type claimResponse struct {
	Outcome    string              `json:"outcome"`
	AuctionID  string              `json:"auction_id"`
	Buyer      string              `json:"buyer"`
	Timestamp  int64               `json:"timestamp"`
	Price      uint64              `json:"price,omitempty"`
	PriceSOL   string              `json:"price_sol,omitempty"`
	Balance    uint64              `json:"balance,omitempty"`
	Settlement *settlementResponse `json:"settlement,omitempty"`
}

func newClaimResponse(r *auction.ClaimResult) claimResponse {
	resp := claimResponse{
		Outcome:    string(r.Outcome),
		AuctionID:  r.AuctionID,
		Buyer:      r.Buyer,
		Timestamp:  r.Timestamp,
		Price:      r.Price,
		Balance:    r.Balance,
		Settlement: newSettlementResponse(r.Settlement),
	}
	if r.Price > 0 {
		resp.PriceSOL = toSOL(r.Price)
	}
	return resp
}

type pricePointResponse struct {
	Timestamp int64  `json:"timestamp"`
	Price     uint64 `json:"price"`
}

type balanceResponse struct {
	Account    string `json:"account"`
	Lamports   uint64 `json:"lamports"`
	BalanceSOL string `json:"balance_sol"`
}

func newBalanceResponse(account string, lamports uint64) balanceResponse {
	return balanceResponse{Account: account, Lamports: lamports, BalanceSOL: toSOL(lamports)}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}
