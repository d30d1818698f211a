package backend

import "context"

// Backend is the capability set a runner needs from a trading venue. Two
// implementations exist: the backtest ledger (ledger.Session) and the live
// broker adapter, which lives outside this repository and binds the real
// order-routing surface.
//
// Live adapters resolve qty 0 on ClosePosition as "close the full held
// quantity" via a balance lookup. The backtest ledger always receives an
// explicit qty.
type Backend interface {
	// InstrumentName resolves the display name for an instrument code.
	// Returns ErrUnknownInstrument when the code has no resolvable name.
	InstrumentName(code string) (string, error)

	// CurrentPrice returns the instrument's current price. The backtest
	// ledger advances its replay cursor one tick per call and returns
	// ErrReplayExhausted once the series ends; callers must treat that as
	// end-of-data, not failure.
	CurrentPrice(ctx context.Context, code string) (float64, error)

	// LatestTradePrice returns the trade price of the most recent active
	// position for the instrument. ok is false when no active position
	// exists.
	LatestTradePrice(ctx context.Context, code string) (price float64, ok bool, err error)

	OpenPosition(ctx context.Context, accNo, code string, qty int) error

	// ClosePosition sells qty of the most recent active position and
	// returns the realized profit net of fees, exactly as booked.
	ClosePosition(ctx context.Context, accNo, code string, qty int) (profit float64, err error)
}
