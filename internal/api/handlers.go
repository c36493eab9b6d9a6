package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"solana-dutch-auction/internal/address"
	"solana-dutch-auction/internal/auction"
)

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	a, err := s.svc.Initialize(r.Context(), auction.InitializeParams{
		Seller:       req.Seller,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		StartPrice:   req.StartPrice,
		ReservePrice: req.ReservePrice,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAuctionResponse(a))
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Auction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuctionResponse(a))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(q))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	res, err := s.svc.Claim(r.Context(), chi.URLParam(r, "id"), req.Seller, req.Buyer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newClaimResponse(res))
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	points, err := s.svc.Curve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]pricePointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, pricePointResponse{Timestamp: p.Timestamp, Price: p.Price})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Settlement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementResponse(st))
}

func (s *Server) handleAuctionsBySeller(w http.ResponseWriter, r *http.Request) {
	auctions, err := s.svc.AuctionsBySeller(r.Context(), chi.URLParam(r, "pubkey"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, newAuctionResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "pubkey")
	lamports, err := s.svc.Balance(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(account, lamports))
}

func (s *Server) handleSettlementsByBuyer(w http.ResponseWriter, r *http.Request) {
	settlements, err := s.svc.SettlementsByBuyer(r.Context(), chi.URLParam(r, "pubkey"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]*settlementResponse, 0, len(settlements))
	for _, st := range settlements {
		out = append(out, newSettlementResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Lamports == 0 {
		writeBadRequest(w, "lamports must be positive")
		return
	}

	account := chi.URLParam(r, "pubkey")
	if _, err := address.ParsePublicKey(account); err != nil {
		s.writeError(w, err)
		return
	}
	lamports, err := s.airdrop.Airdrop(r.Context(), account, req.Lamports)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(account, lamports))
}
