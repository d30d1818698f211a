package config

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const resumeSchema = `
CREATE TABLE IF NOT EXISTS unfinished_trading (
	stock_code TEXT PRIMARY KEY,
	stock_name TEXT NOT NULL DEFAULT '',
	b1_price REAL NOT NULL,
	b1_qty INTEGER NOT NULL,
	s1_price REAL NOT NULL,
	s1_qty INTEGER NOT NULL,
	state INTEGER NOT NULL
);
`

// ResumeStore persists instruments that stopped with a position still open so
// the next session can pick them up where they left off.
type ResumeStore struct {
	db *sql.DB
}

func OpenResumeStore(path string) (*ResumeStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(resumeSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &ResumeStore{db: db}, nil
}

// SaveUnfinished upserts a stopped instrument's snapshot. Rules are written
// on first save; later saves only move the state.
func (s *ResumeStore) SaveUnfinished(in Instrument) error {
	if in.State == nil {
		return fmt.Errorf("resume: instrument %s has no state snapshot", in.Code)
	}

	var existing string
	err := s.db.QueryRow(
		`SELECT stock_code FROM unfinished_trading WHERE stock_code = ?`, in.Code,
	).Scan(&existing)

	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`
			INSERT INTO unfinished_trading
			(stock_code, stock_name, b1_price, b1_qty, s1_price, s1_qty, state)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.Code, in.Name, in.B1.Price, in.B1.Qty, in.S1.Price, in.S1.Qty, *in.State,
		)
		return err
	case err != nil:
		return err
	default:
		_, err = s.db.Exec(
			`UPDATE unfinished_trading SET state = ? WHERE stock_code = ?`,
			*in.State, in.Code,
		)
		return err
	}
}

// Remove drops a finished instrument from the resume table.
func (s *ResumeStore) Remove(code string) error {
	_, err := s.db.Exec(`DELETE FROM unfinished_trading WHERE stock_code = ?`, code)
	return err
}

// LoadUnfinished returns every instrument persisted by a prior session.
func (s *ResumeStore) LoadUnfinished() ([]Instrument, error) {
	rows, err := s.db.Query(`
		SELECT stock_code, stock_name, b1_price, b1_qty, s1_price, s1_qty, state
		FROM unfinished_trading`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var in Instrument
		var state int
		if err := rows.Scan(
			&in.Code, &in.Name,
			&in.B1.Price, &in.B1.Qty,
			&in.S1.Price, &in.S1.Qty,
			&state,
		); err != nil {
			return nil, err
		}
		in.State = &state
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *ResumeStore) Close() error {
	return s.db.Close()
}
