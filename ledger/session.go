package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rustyeddy/ats/backend"
	"github.com/rustyeddy/ats/market"
)

// Session is one consumer's view of the replay: a per-instrument cursor over
// the tick history plus the last price it has seen. Sessions deliberately do
// not share cursors; two runners replaying the same instrument each see the
// full series from the start, which keeps replays independent and
// reproducible.
//
// A Session belongs to a single runner goroutine and is not safe for
// concurrent use. It implements backend.Backend.
type Session struct {
	store  *Store
	cursor map[string]string  // code -> last consumed transaction time
	last   map[string]float64 // code -> last price returned by CurrentPrice
}

var _ backend.Backend = (*Session)(nil)

func (s *Session) InstrumentName(code string) (string, error) {
	return s.store.InstrumentName(code)
}

// CurrentPrice advances the replay cursor: each call returns the tick
// strictly after the last-consumed transaction time, sign-normalized.
// ErrReplayExhausted signals the end of the series.
func (s *Session) CurrentPrice(ctx context.Context, code string) (float64, error) {
	var price float64
	var txnTime string

	err := s.store.history.QueryRowContext(ctx, `
		SELECT current_price, transaction_time
		FROM back_testing_stock_data
		WHERE stock_code = ? AND transaction_time > ?
		ORDER BY transaction_time ASC
		LIMIT 1`, code, s.cursor[code],
	).Scan(&price, &txnTime)

	switch {
	case err == sql.ErrNoRows:
		return 0, fmt.Errorf("%w: %s", backend.ErrReplayExhausted, code)
	case err != nil:
		return 0, fmt.Errorf("read tick for %s: %w", code, err)
	}

	price = market.NormalizePrice(price)
	s.cursor[code] = txnTime
	s.last[code] = price
	return price, nil
}

// LatestTradePrice returns the trade price of the most recent active
// position for code, ok=false when none is open.
func (s *Session) LatestTradePrice(ctx context.Context, code string) (float64, bool, error) {
	var price float64
	err := s.store.trading.QueryRowContext(ctx, `
		SELECT trade_price FROM trading_active_stocks
		WHERE stock_code = ?
		ORDER BY _id DESC
		LIMIT 1`, code,
	).Scan(&price)

	switch {
	case err == sql.ErrNoRows:
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("latest trade price for %s: %w", code, err)
	}
	return price, true, nil
}

// OpenPosition fills at the next replay price (advancing this session's
// cursor) and inserts a new active record in one transaction.
func (s *Session) OpenPosition(ctx context.Context, accNo, code string, qty int) error {
	price, err := s.CurrentPrice(ctx, code)
	if err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	tx, err := s.store.trading.Begin()
	if err != nil {
		return fmt.Errorf("open position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}

	tid, err := nextTradeID(tx)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("open position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}

	_, err = tx.Exec(`
		INSERT INTO trading_active_stocks
		(_id, transaction_time, stock_code, trade_price, qty, acc_no)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tid, s.store.now().Format(market.TimeLayout), code, price, qty, accNo,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("open position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("open position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}
	return nil
}

// ClosePosition consumes the most recent active record for (code, accNo),
// computing profit against this session's current replay price. The closed
// insert and the active delete commit together or not at all. The booked
// profit is returned so callers never have to recompute it.
func (s *Session) ClosePosition(ctx context.Context, accNo, code string, qty int) (float64, error) {
	current, ok := s.last[code]
	if !ok {
		return 0, fmt.Errorf("close position %s: %w", code, backend.ErrPriceUnavailable)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	tx, err := s.store.trading.Begin()
	if err != nil {
		return 0, fmt.Errorf("close position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}

	var rec TradeRecord
	err = tx.QueryRow(`
		SELECT _id, transaction_time, stock_code, trade_price, qty, acc_no
		FROM trading_active_stocks
		WHERE stock_code = ? AND acc_no = ?
		ORDER BY _id DESC
		LIMIT 1`, code, accNo,
	).Scan(&rec.ID, &rec.TransactionTime, &rec.Code, &rec.Price, &rec.Qty, &rec.AccNo)

	switch {
	case err == sql.ErrNoRows:
		tx.Rollback()
		return 0, fmt.Errorf("close position %s/%s: %w", code, accNo, backend.ErrNoActivePosition)
	case err != nil:
		tx.Rollback()
		return 0, fmt.Errorf("close position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}

	profit := (current*float64(qty) - rec.Price*float64(rec.Qty)) * (1 - market.FeeRate)

	_, err = tx.Exec(`
		INSERT INTO closed_trades
		(_id, transaction_time, stock_code, trade_price, qty, acc_no, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, s.store.now().Format(market.TimeLayout), code, current, qty, accNo, profit,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("close position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}

	if _, err := tx.Exec(`DELETE FROM trading_active_stocks WHERE _id = ?`, rec.ID); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("close position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("close position %s: %w: %v", code, backend.ErrLedgerWrite, err)
	}
	return profit, nil
}
