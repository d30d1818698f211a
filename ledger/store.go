// Package ledger implements the backtest side of the trading backend: a
// deterministic replay of historical ticks plus an append-only trade ledger
// with fee-adjusted realized profit.
package ledger

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/ats/backend"
	"github.com/rustyeddy/ats/market"
)

// TradeRecord is one active (open) position.
type TradeRecord struct {
	ID              int64
	TransactionTime string
	Code            string
	Price           float64
	Qty             int
	AccNo           string
}

// ClosedTrade is a TradeRecord moved to the closed set with its realized
// profit. It keeps the ID it was opened with.
type ClosedTrade struct {
	TradeRecord
	Profit float64
}

// Store owns the two sqlite handles behind the backtest ledger: the
// read-only tick history and the read-write trade ledger. One Store is
// shared by every runner; each runner replays through its own Session.
//
// A single mutex serializes ledger mutations. Replay cursors live in
// sessions, so reads on the history side never contend.
type Store struct {
	history *sql.DB
	trading *sql.DB

	mu sync.Mutex // guards open/close transactions on the trade ledger

	namesMu sync.RWMutex
	names   map[string]string

	now func() time.Time
}

// Open opens (and if needed initializes) the history and trade databases.
// Both paths may point at the same file.
func Open(historyPath, tradingPath string) (*Store, error) {
	history, err := sql.Open("sqlite3", historyPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := history.Exec(historySchema); err != nil {
		history.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	trading, err := sql.Open("sqlite3", tradingPath)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("open trading db: %w", err)
	}
	if _, err := trading.Exec(tradingSchema); err != nil {
		history.Close()
		trading.Close()
		return nil, fmt.Errorf("init trading schema: %w", err)
	}

	return &Store{
		history: history,
		trading: trading,
		names:   make(map[string]string),
		now:     time.Now,
	}, nil
}

// RegisterInstrument records the display name for a code. Fed from the
// instrument configuration at startup; InstrumentName fails for anything
// not registered.
func (s *Store) RegisterInstrument(code, name string) {
	s.namesMu.Lock()
	s.names[code] = name
	s.namesMu.Unlock()
}

func (s *Store) InstrumentName(code string) (string, error) {
	s.namesMu.RLock()
	name, ok := s.names[code]
	s.namesMu.RUnlock()
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s", backend.ErrUnknownInstrument, code)
	}
	return name, nil
}

// Session returns a fresh replay consumer. Sessions are not safe for
// concurrent use; every runner owns exactly one.
func (s *Store) Session() *Session {
	return &Session{
		store:  s,
		cursor: make(map[string]string),
		last:   make(map[string]float64),
	}
}

// SeedTicks loads tick rows into the history table. Used by the CLI's data
// loader and by tests.
func (s *Store) SeedTicks(ticks []market.Tick) error {
	htx, err := s.history.Begin()
	if err != nil {
		return err
	}
	stmt, err := htx.Prepare(`
		INSERT INTO back_testing_stock_data
		(stock_code, current_price, volume, transaction_time,
		 open_price, high_price, low_price,
		 price_correction_division, correction_ratio,
		 major_industry_division, minor_industry_division,
		 stock_info, price_correction_event, previous_day_closing_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		htx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		if _, err := stmt.Exec(
			t.Code, t.Price, t.Volume, t.TransactionTime,
			t.Open, t.High, t.Low,
			t.CorrectionKind, t.CorrectionRatio,
			t.MajorIndustry, t.MinorIndustry,
			t.Info, t.CorrectionEvent, t.PrevClose,
		); err != nil {
			htx.Rollback()
			return err
		}
	}
	return htx.Commit()
}

// ListActive returns the active positions for an instrument, oldest first.
func (s *Store) ListActive(code string) ([]TradeRecord, error) {
	rows, err := s.trading.Query(`
		SELECT _id, transaction_time, stock_code, trade_price, qty, acc_no
		FROM trading_active_stocks
		WHERE stock_code = ?
		ORDER BY _id ASC`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		if err := rows.Scan(&r.ID, &r.TransactionTime, &r.Code, &r.Price, &r.Qty, &r.AccNo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListClosed returns the closed trades for an instrument, oldest first.
func (s *Store) ListClosed(code string) ([]ClosedTrade, error) {
	rows, err := s.trading.Query(`
		SELECT _id, transaction_time, stock_code, trade_price, qty, acc_no, profit
		FROM closed_trades
		WHERE stock_code = ?
		ORDER BY _id ASC`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClosedTrade
	for rows.Next() {
		var r ClosedTrade
		if err := rows.Scan(&r.ID, &r.TransactionTime, &r.Code, &r.Price, &r.Qty, &r.AccNo, &r.Profit); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	herr := s.history.Close()
	terr := s.trading.Close()
	if herr != nil {
		return herr
	}
	return terr
}

// nextTradeID assigns ids as total row count across both sets plus one.
// Closing moves a row rather than removing it from the count, so ids are
// never reused, even across restarts on the same ledger.
func nextTradeID(tx *sql.Tx) (int64, error) {
	var n int64
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT _id FROM trading_active_stocks
			UNION ALL
			SELECT _id FROM closed_trades
		)`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}
