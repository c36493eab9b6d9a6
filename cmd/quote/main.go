// Package main prints the price schedule of a Dutch auction and, optionally,
// the live quote against a Solana cluster clock.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"solana-dutch-auction/internal/address"
	"solana-dutch-auction/internal/auction"
	"solana-dutch-auction/internal/domain"
	"solana-dutch-auction/internal/pricing"
	"solana-dutch-auction/internal/solana"
)

func main() {
	startPrice := flag.Int64("start-price", 0, "Start price in lamports")
	reserve := flag.Int64("reserve", -1, "Reserve price in lamports (negative for none)")
	startTime := flag.Int64("start", 0, "Start time (unix seconds)")
	endTime := flag.Int64("end", 0, "End time (unix seconds)")
	step := flag.Int64("step", auction.DefaultCurveStep, "Sample spacing in seconds")
	at := flag.Int64("at", 0, "Quote at this unix time (0 for now)")
	rpcURL := flag.String("rpc", "", "Solana RPC endpoint; when set the cluster clock supplies now")
	buyer := flag.String("buyer", "", "Buyer public key; with --rpc, checks whether the balance covers the quote")
	flag.Parse()

	var reservePrice *int64
	if *reserve >= 0 {
		reservePrice = reserve
	}

	line, err := pricing.NewLine(*startPrice, *startTime, reservePrice, *endTime)
	if err != nil {
		fail("invalid auction parameters: %v", err)
	}

	points, err := line.Curve(*startTime, *endTime, *step)
	if err != nil {
		fail("sample curve: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUTC\tLAMPORTS\tSOL")
	for _, p := range points {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.Time, time.Unix(p.Time, 0).UTC().Format(time.RFC3339), p.Price, toSOL(p.Price))
	}
	w.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var rpc *solana.HTTPClient
	var clock auction.Clock = auction.SystemClock{}
	if *rpcURL != "" {
		rpc = solana.NewHTTPClient(*rpcURL)
		clock = solana.NewChainClock(rpc)
	}
	if *at != 0 {
		clock = auction.FixedClock(*at)
	}

	now, err := clock.Now(ctx)
	if err != nil {
		fail("read clock: %v", err)
	}

	a := &domain.Auction{
		StartTime:    *startTime,
		EndTime:      *endTime,
		StartPrice:   *startPrice,
		ReservePrice: reservePrice,
		SlopeNum:     line.SlopeNum,
		SlopeDen:     line.SlopeDen,
		YIntercept:   line.YIntercept,
	}
	q, err := auction.QuoteAt(a, now)
	if err != nil {
		fail("quote: %v", err)
	}

	fmt.Printf("\nslope: %d/%d  intercept: %d\n", line.SlopeNum, line.SlopeDen, line.YIntercept)
	fmt.Printf("at %d: %s", now, q.Status)
	if q.Status == auction.StatusOpen || q.Status == auction.StatusNotStarted {
		fmt.Printf(", price %d lamports (%s SOL)", q.Price, toSOL(q.Price))
	}
	fmt.Println()

	if *buyer == "" {
		return
	}
	if rpc == nil {
		fail("--buyer requires --rpc")
	}
	if _, err := address.ParsePublicKey(*buyer); err != nil {
		fail("buyer: %v", err)
	}
	balance, err := rpc.GetBalance(ctx, *buyer)
	if err != nil {
		fail("get balance: %v", err)
	}
	verdict := "not claimable"
	switch {
	case q.Status != auction.StatusOpen:
	case balance >= q.Price:
		verdict = "can claim"
	default:
		verdict = "insufficient funds"
	}
	fmt.Printf("buyer %s: %s SOL, %s\n", *buyer, toSOL(balance), verdict)
}

func toSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
