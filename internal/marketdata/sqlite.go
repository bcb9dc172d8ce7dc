package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore keeps candle windows in a local SQLite file. It serves as an
// offline MarketData source and as the sink for recorded windows.
// Prices are stored as TEXT so decimals round-trip exactly.
type SQLiteStore struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// OpenSQLite opens (or creates) the database with WAL mode and schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Single writer; readers share the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     TEXT    NOT NULL,
			high     TEXT    NOT NULL,
			low      TEXT    NOT NULL,
			close    TEXT    NOT NULL,
			volume   TEXT    NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);
	`)
	return err
}

// FetchWindow returns the newest limit stored candles for pair, oldest first.
func (s *SQLiteStore) FetchWindow(ctx context.Context, pair model.Pair, limit int) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND interval = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, pair.Symbol, pair.Interval.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var (
			c                    model.Candle
			tsUnix               int64
			open, high, low, cls string
			volume               string
		)
		if err := rows.Scan(&tsUnix, &open, &high, &low, &cls, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.Time = time.Unix(tsUnix, 0).UTC()
		if c.Open, err = decimal.NewFromString(open); err != nil {
			return nil, fmt.Errorf("sqlite open price: %w", err)
		}
		if c.High, err = decimal.NewFromString(high); err != nil {
			return nil, fmt.Errorf("sqlite high price: %w", err)
		}
		if c.Low, err = decimal.NewFromString(low); err != nil {
			return nil, fmt.Errorf("sqlite low price: %w", err)
		}
		if c.Close, err = decimal.NewFromString(cls); err != nil {
			return nil, fmt.Errorf("sqlite close price: %w", err)
		}
		if c.Volume, err = decimal.NewFromString(volume); err != nil {
			return nil, fmt.Errorf("sqlite volume: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// SaveWindow upserts candles for pair in a single transaction. A bar that is
// still forming is overwritten on the next save.
func (s *SQLiteStore) SaveWindow(ctx context.Context, pair model.Pair, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, pair.Symbol, pair.Interval.Name, c.Time.Unix(),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String())
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LastTimestamp returns the newest stored candle time for pair, or the zero
// time when nothing is stored.
func (s *SQLiteStore) LastTimestamp(ctx context.Context, pair model.Pair) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND interval = ?`,
		pair.Symbol, pair.Interval.Name,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Recording wraps a source and stores every fetched window. Store errors are
// logged; they never fail the fetch.
type Recording struct {
	source model.MarketData
	store  *SQLiteStore
}

// NewRecording creates a recording decorator.
func NewRecording(source model.MarketData, store *SQLiteStore) *Recording {
	return &Recording{source: source, store: store}
}

func (r *Recording) FetchWindow(ctx context.Context, pair model.Pair, limit int) ([]model.Candle, error) {
	candles, err := r.source.FetchWindow(ctx, pair, limit)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := r.store.SaveWindow(ctx, pair, candles); err != nil {
		log.Printf("[sqlite] record %s failed: %v", pair, err)
	} else {
		log.Printf("[sqlite] recorded %d candles for %s in %v", len(candles), pair, time.Since(start))
	}
	return candles, nil
}

func (r *Recording) Ping(ctx context.Context) error {
	return r.source.Ping(ctx)
}
