package backend

import "errors"

var (
	// ErrUnknownInstrument means a code has no resolvable name or config.
	// Fatal to the owning runner's startup.
	ErrUnknownInstrument = errors.New("backend: unknown instrument")

	// ErrNoActivePosition means a close was attempted with nothing open.
	// Runners recover from it locally.
	ErrNoActivePosition = errors.New("backend: no active position")

	// ErrPriceUnavailable means no price could be obtained this cycle.
	ErrPriceUnavailable = errors.New("backend: price unavailable")

	// ErrReplayExhausted is the backtest end-of-data signal, returned by
	// CurrentPrice once the historical series for an instrument runs out.
	ErrReplayExhausted = errors.New("backend: replay exhausted")

	// ErrLedgerWrite means a transactional ledger write failed and was
	// rolled back.
	ErrLedgerWrite = errors.New("backend: ledger write failed")
)
