package strategy

// Action is the trading action a strategy recommends.
type Action int

const (
	Hold Action = iota
	EnterLong
	EnterShort
	ExitLong
	ExitShort
)

func (a Action) String() string {
	switch a {
	case EnterLong:
		return "ENTER_LONG"
	case EnterShort:
		return "ENTER_SHORT"
	case ExitLong:
		return "EXIT_LONG"
	case ExitShort:
		return "EXIT_SHORT"
	default:
		return "HOLD"
	}
}

// Signal is a strategy's verdict for the latest candle. Metadata is
// diagnostic only; the accounting layers never read it.
type Signal struct {
	Action    Action
	Price     float64
	Timestamp int64
	Metadata  map[string]any
}
