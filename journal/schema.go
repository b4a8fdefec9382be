package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	instrument TEXT NOT NULL,
	seed INTEGER NOT NULL,
	start DATETIME NOT NULL,
	end DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	net_pl REAL NOT NULL,
	commission REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_drawdown REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	order_id TEXT NOT NULL,
	trade_id TEXT,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	role TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	time DATETIME NOT NULL,
	slippage REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	commission REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_trade ON fills(trade_id);
CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(close_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
