package ledger

import "strings"

// Direction distinguishes entry fills from exit fills when applying slippage.
type Direction int

const (
	Entry Direction = iota
	Exit
)

// FeePolicy selects which notionals a round-turn fee is charged on.
// The reinvestment ledger historically charges both legs while the margin
// ledger charges the exit leg only; keeping the choice explicit avoids
// silently unifying the two models.
type FeePolicy int

const (
	// FeeRoundTrip charges feeRate on entry notional plus exit notional.
	FeeRoundTrip FeePolicy = iota
	// FeeExitOnly charges feeRate on the exit notional only.
	FeeExitOnly
)

func (p FeePolicy) String() string {
	switch p {
	case FeeRoundTrip:
		return "round_trip"
	case FeeExitOnly:
		return "exit_only"
	default:
		return "unknown"
	}
}

// ParseFeePolicy maps a config string to a FeePolicy. Unrecognized values
// fall back to FeeRoundTrip, the stricter of the two.
func ParseFeePolicy(s string) FeePolicy {
	switch strings.ToUpper(s) {
	case "EXIT_ONLY":
		return FeeExitOnly
	default:
		return FeeRoundTrip
	}
}

// FillPrice returns the slippage-adjusted execution price for a fill.
// Slippage always moves the price against the trader: buys (LONG entry,
// SHORT exit) fill above market, sells (SHORT entry, LONG exit) fill below.
func FillPrice(marketPrice float64, side Side, direction Direction, slippage float64) float64 {
	isBuy := (side == Long && direction == Entry) || (side == Short && direction == Exit)
	if isBuy {
		return marketPrice * (1 + slippage)
	}
	return marketPrice * (1 - slippage)
}

// GrossPnL returns the pre-fee profit of a round turn.
func GrossPnL(side Side, entryPrice, exitPrice, quantity float64) float64 {
	if side == Long {
		return (exitPrice - entryPrice) * quantity
	}
	return (entryPrice - exitPrice) * quantity
}

// TradeFee returns the total fee for a round turn under the given policy.
func TradeFee(entryNotional, exitNotional, feeRate float64, policy FeePolicy) float64 {
	if policy == FeeExitOnly {
		return exitNotional * feeRate
	}
	return (entryNotional + exitNotional) * feeRate
}
