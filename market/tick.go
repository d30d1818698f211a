package market

import "math"

// Tick is one historical price observation for an instrument, keyed by
// (Code, TransactionTime). Transaction times are non-decreasing per
// instrument. The adjustment metadata columns are carried through from the
// upstream data feed unchanged.
type Tick struct {
	Code            string
	Price           float64 // signed upstream, see NormalizePrice
	Volume          int64
	TransactionTime string // TimeLayout, total order key per instrument
	Open            float64
	High            float64
	Low             float64
	CorrectionKind  int
	CorrectionRatio float64
	MajorIndustry   string
	MinorIndustry   string
	Info            string
	CorrectionEvent string
	PrevClose       float64
}

// TimeLayout is the transaction-time format shared by the history and ledger
// stores. Lexicographic order equals chronological order.
const TimeLayout = "2006-01-02 15:04:05"

// FeeRate is the venue's commission-and-tax deduction applied to realized
// profit on every close.
const FeeRate = 0.015

// NormalizePrice strips the direction sign some feeds encode into the price
// field. Every price exposed by a trading backend is absolute.
func NormalizePrice(p float64) float64 {
	return math.Abs(p)
}
