package ledger

// History store: one row per historical tick, carried through from the data
// downloader unchanged. (stock_code, transaction_time) is the replay key.
const historySchema = `
CREATE TABLE IF NOT EXISTS back_testing_stock_data (
	stock_code TEXT NOT NULL,
	current_price REAL NOT NULL,
	volume INTEGER NOT NULL DEFAULT 0,
	transaction_time TEXT NOT NULL,
	open_price REAL NOT NULL DEFAULT 0,
	high_price REAL NOT NULL DEFAULT 0,
	low_price REAL NOT NULL DEFAULT 0,
	price_correction_division INTEGER NOT NULL DEFAULT 0,
	correction_ratio REAL NOT NULL DEFAULT 0,
	major_industry_division TEXT NOT NULL DEFAULT '',
	minor_industry_division TEXT NOT NULL DEFAULT '',
	stock_info TEXT NOT NULL DEFAULT '',
	price_correction_event TEXT NOT NULL DEFAULT '',
	previous_day_closing_price REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_history_code_time
	ON back_testing_stock_data(stock_code, transaction_time);
`

// Trade ledger: active positions move to closed_trades on close, keeping
// their _id. Rows are append-only otherwise.
const tradingSchema = `
CREATE TABLE IF NOT EXISTS trading_active_stocks (
	_id INTEGER PRIMARY KEY,
	transaction_time DATETIME NOT NULL,
	stock_code TEXT NOT NULL,
	trade_price REAL NOT NULL,
	qty INTEGER NOT NULL,
	acc_no TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_trades (
	_id INTEGER PRIMARY KEY,
	transaction_time DATETIME NOT NULL,
	stock_code TEXT NOT NULL,
	trade_price REAL NOT NULL,
	qty INTEGER NOT NULL,
	acc_no TEXT NOT NULL,
	profit REAL NOT NULL
);
`
