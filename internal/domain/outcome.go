package domain

// ClaimOutcome is the result of a claim attempt that did not fail.
// Outcomes are not errors: failures are reported separately.
type ClaimOutcome string

// Claim outcomes.
const (
	// OutcomeAlreadyEnded: the auction had already ended; nothing happened.
	OutcomeAlreadyEnded ClaimOutcome = "ALREADY_ENDED"
	// OutcomeExpired: the claim arrived after EndTime; the auction is now ended.
	OutcomeExpired ClaimOutcome = "EXPIRED"
	// OutcomeNotStarted: the claim arrived before StartTime; nothing happened.
	OutcomeNotStarted ClaimOutcome = "NOT_STARTED"
	// OutcomeInsufficientFunds: the buyer cannot pay the current price; retry later.
	OutcomeInsufficientFunds ClaimOutcome = "INSUFFICIENT_FUNDS"
	// OutcomeSettled: funds moved to the seller and mint authority moved to the buyer.
	OutcomeSettled ClaimOutcome = "SETTLED"
)

// Terminal reports whether the outcome leaves the auction ended.
func (o ClaimOutcome) Terminal() bool {
	switch o {
	case OutcomeAlreadyEnded, OutcomeExpired, OutcomeSettled:
		return true
	default:
		return false
	}
}
