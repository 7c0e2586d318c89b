package fanout

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Trade is one row to insert into the trades table (spec §6).
type Trade struct {
	TokenID      string
	Side         string // BUY, SELL
	Price        float64
	Size         float64
	OrderID      string
	Status       string // FILLED, "FAILED: <reason>"
	Strategy     string
	SignalReason string
	IsPaper      bool
}

// ArbTrade is one row to insert into the arb_trades table (spec §6).
type ArbTrade struct {
	MarketID    string
	YesTokenID  string
	NoTokenID   string
	YesPrice    float64
	NoPrice     float64
	Size        float64
	TotalCost   float64
	Fees        float64
	GrossProfit float64
	NetProfit   float64
	YesOrderID  string
	NoOrderID   string
	Status      string
	Strategy    string
	IsPaper     bool
}

// Store is the persistent sink for trades/arb_trades, backed by SQLite
// (the only SQL driver in the retrieved pack). Every insert is
// fire-and-forget, matching the original repository's spawn-and-return
// stance so a slow disk never stalls the engine loop.
type Store struct {
	db      *sql.DB
	enabled bool
	logger  *slog.Logger
}

// Open opens (or creates) the SQLite database at path and runs the
// schema migration. An empty path disables the store: every insert
// becomes a no-op, matching the original's DATABASE_URL-unset stance.
func Open(path string, logger *slog.Logger) (*Store, error) {
	logger = logger.With("component", "fanout-store")
	if path == "" {
		logger.Info("persistent store disabled (no path configured)")
		return &Store{enabled: false, logger: logger}, nil
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := &Store{db: db, enabled: true, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	logger.Info("persistent store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			token_id      TEXT NOT NULL,
			side          TEXT NOT NULL,
			price         REAL NOT NULL,
			size          REAL NOT NULL,
			order_id      TEXT,
			status        TEXT NOT NULL,
			strategy      TEXT NOT NULL,
			signal_reason TEXT,
			is_paper      INTEGER NOT NULL,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_token ON trades(token_id);
		CREATE INDEX IF NOT EXISTS idx_trades_created ON trades(created_at);

		CREATE TABLE IF NOT EXISTS arb_trades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			market_id     TEXT NOT NULL,
			yes_token_id  TEXT NOT NULL,
			no_token_id   TEXT NOT NULL,
			yes_price     REAL NOT NULL,
			no_price      REAL NOT NULL,
			size          REAL NOT NULL,
			total_cost    REAL NOT NULL,
			fees          REAL NOT NULL,
			gross_profit  REAL NOT NULL,
			net_profit    REAL NOT NULL,
			yes_order_id  TEXT,
			no_order_id   TEXT,
			status        TEXT NOT NULL,
			strategy      TEXT NOT NULL,
			is_paper      INTEGER NOT NULL,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_arb_trades_market ON arb_trades(market_id);
		CREATE INDEX IF NOT EXISTS idx_arb_trades_created ON arb_trades(created_at);
	`)
	return err
}

// Close closes the underlying database connection. No-op if disabled.
func (s *Store) Close() error {
	if !s.enabled {
		return nil
	}
	return s.db.Close()
}

// IsEnabled reports whether a database path was configured.
func (s *Store) IsEnabled() bool { return s.enabled }

// InsertTrade inserts a trade row on a detached goroutine.
func (s *Store) InsertTrade(t Trade) {
	if !s.enabled {
		return
	}
	go func() {
		_, err := s.db.Exec(
			`INSERT INTO trades (token_id, side, price, size, order_id, status, strategy, signal_reason, is_paper, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TokenID, t.Side, t.Price, t.Size, nullableString(t.OrderID), t.Status, t.Strategy,
			nullableString(t.SignalReason), t.IsPaper, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			s.logger.Warn("insert trade failed", "error", err)
		}
	}()
}

// InsertArbTrade inserts an arbitrage-trade row on a detached goroutine.
func (s *Store) InsertArbTrade(t ArbTrade) {
	if !s.enabled {
		return
	}
	go func() {
		_, err := s.db.Exec(
			`INSERT INTO arb_trades (market_id, yes_token_id, no_token_id, yes_price, no_price, size,
			 total_cost, fees, gross_profit, net_profit, yes_order_id, no_order_id, status, strategy, is_paper, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.MarketID, t.YesTokenID, t.NoTokenID, t.YesPrice, t.NoPrice, t.Size,
			t.TotalCost, t.Fees, t.GrossProfit, t.NetProfit,
			nullableString(t.YesOrderID), nullableString(t.NoOrderID), t.Status, t.Strategy, t.IsPaper,
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			s.logger.Warn("insert arb trade failed", "error", err)
		}
	}()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
