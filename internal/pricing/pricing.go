// Package pricing implements the linear price decay of a descending-price auction.
//
// The line is stored as a rational slope (num/den) plus an integer y-intercept.
// Every product of slope and time is computed in a widened integer, truncated
// toward zero by the denominator and narrowed back to int64 with a range check,
// so evaluation is deterministic and never silently wraps.
package pricing

import (
	"errors"
	"fmt"
	"math/big"
)

// Pricing errors.
var (
	// ErrArithmeticOverflow is returned when a checked operation leaves the int64 range.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrInvalidConfiguration is returned when auction parameters cannot describe a valid line.
	ErrInvalidConfiguration = errors.New("invalid auction configuration")

	// ErrDivisionByZero is returned when the price window has zero length.
	ErrDivisionByZero = fmt.Errorf("%w: zero-length price window", ErrInvalidConfiguration)

	// ErrNegativePrice is returned when the line evaluates below zero.
	ErrNegativePrice = errors.New("negative price")
)

// Line is the price function price(t) = SlopeNum*t/SlopeDen + YIntercept.
type Line struct {
	SlopeNum   int64
	SlopeDen   int64
	YIntercept int64
}

// ValidateParams checks auction parameters before a line is derived.
// A nil reserve is treated as zero.
func ValidateParams(startPrice, startTime int64, reservePrice *int64, endTime int64) error {
	if endTime <= startTime {
		return fmt.Errorf("%w: end time %d must be after start time %d", ErrInvalidConfiguration, endTime, startTime)
	}
	if startPrice < 0 {
		return fmt.Errorf("%w: start price %d is negative", ErrInvalidConfiguration, startPrice)
	}
	reserve := reserveOrZero(reservePrice)
	if reserve < 0 {
		return fmt.Errorf("%w: reserve price %d is negative", ErrInvalidConfiguration, reserve)
	}
	if reserve > startPrice {
		return fmt.Errorf("%w: reserve price %d exceeds start price %d", ErrInvalidConfiguration, reserve, startPrice)
	}
	return nil
}

// NewLine validates the parameters and derives slope and intercept once.
func NewLine(startPrice, startTime int64, reservePrice *int64, endTime int64) (Line, error) {
	if err := ValidateParams(startPrice, startTime, reservePrice, endTime); err != nil {
		return Line{}, err
	}

	num, den, err := DeriveSlope(startPrice, startTime, reservePrice, endTime)
	if err != nil {
		return Line{}, err
	}

	intercept, err := DeriveIntercept(startPrice, startTime, num, den)
	if err != nil {
		return Line{}, err
	}

	return Line{SlopeNum: num, SlopeDen: den, YIntercept: intercept}, nil
}

// At evaluates the line at currentTime.
func (l Line) At(currentTime int64) (uint64, error) {
	return PriceAt(currentTime, l.YIntercept, l.SlopeNum, l.SlopeDen)
}

// DeriveSlope returns the slope as (reserve - startPrice) / (endTime - startTime).
// The denominator is not checked for zero here; consumers reject it on use.
func DeriveSlope(startPrice, startTime int64, reservePrice *int64, endTime int64) (num, den int64, err error) {
	num, err = checkedSub(reserveOrZero(reservePrice), startPrice)
	if err != nil {
		return 0, 0, fmt.Errorf("slope numerator: %w", err)
	}
	den, err = checkedSub(endTime, startTime)
	if err != nil {
		return 0, 0, fmt.Errorf("slope denominator: %w", err)
	}
	return num, den, nil
}

// DeriveIntercept returns startPrice - num*startTime/den.
func DeriveIntercept(startPrice, startTime, num, den int64) (int64, error) {
	offset, err := mulDiv(num, startTime, den)
	if err != nil {
		return 0, fmt.Errorf("intercept: %w", err)
	}
	intercept, err := checkedSub(startPrice, offset)
	if err != nil {
		return 0, fmt.Errorf("intercept: %w", err)
	}
	return intercept, nil
}

// PriceAt returns num*currentTime/den + intercept as an unsigned price.
// A negative result is an error, never reinterpreted.
func PriceAt(currentTime, intercept, num, den int64) (uint64, error) {
	offset, err := mulDiv(num, currentTime, den)
	if err != nil {
		return 0, fmt.Errorf("price at %d: %w", currentTime, err)
	}
	price, err := checkedAdd(offset, intercept)
	if err != nil {
		return 0, fmt.Errorf("price at %d: %w", currentTime, err)
	}
	if price < 0 {
		return 0, fmt.Errorf("price at %d: %w: %d", currentTime, ErrNegativePrice, price)
	}
	return uint64(price), nil
}

// mulDiv computes a*b/den in a widened integer, truncating toward zero.
func mulDiv(a, b, den int64) (int64, error) {
	if den == 0 {
		return 0, ErrDivisionByZero
	}
	wide := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	wide.Quo(wide, big.NewInt(den))
	if !wide.IsInt64() {
		return 0, ErrArithmeticOverflow
	}
	return wide.Int64(), nil
}

func checkedSub(a, b int64) (int64, error) {
	r := a - b
	if (b > 0 && r > a) || (b < 0 && r < a) {
		return 0, ErrArithmeticOverflow
	}
	return r, nil
}

func checkedAdd(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, ErrArithmeticOverflow
	}
	return r, nil
}

func reserveOrZero(reservePrice *int64) int64 {
	if reservePrice == nil {
		return 0
	}
	return *reservePrice
}
