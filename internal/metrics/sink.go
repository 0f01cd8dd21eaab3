// Package metrics publishes grid snapshots to an external sink.
package metrics

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"grid_trader/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS grid_metrics (
	venue             TEXT NOT NULL,
	account           TEXT NOT NULL,
	symbol            TEXT NOT NULL,
	timestamp         INTEGER NOT NULL,
	match_profit      TEXT NOT NULL,
	number_of_matches INTEGER NOT NULL,
	net_position      INTEGER NOT NULL,
	total_volume      TEXT NOT NULL,
	PRIMARY KEY (venue, account, symbol)
)`

const upsertQuery = `
INSERT INTO grid_metrics (venue, account, symbol, timestamp, match_profit, number_of_matches, net_position, total_volume)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (venue, account, symbol) DO UPDATE SET
	timestamp         = excluded.timestamp,
	match_profit      = excluded.match_profit,
	number_of_matches = excluded.number_of_matches,
	net_position      = excluded.net_position,
	total_volume      = excluded.total_volume`

// SQLiteSink upserts one row per (venue, account, symbol). The
// connection is opened per publish and closed promptly; publish
// cadence is minutes, not milliseconds.
type SQLiteSink struct {
	path string
}

func NewSQLiteSink(path string) *SQLiteSink {
	return &SQLiteSink{path: path}
}

func (s *SQLiteSink) Upsert(ctx context.Context, rec core.MetricsRecord) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open metrics db: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure metrics schema: %w", err)
	}

	_, err = db.ExecContext(ctx, upsertQuery,
		rec.Venue,
		rec.Account,
		rec.Symbol,
		rec.Timestamp,
		rec.MatchProfit,
		rec.NumberOfMatches,
		rec.NetPosition,
		rec.TotalVolume,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics record: %w", err)
	}
	return nil
}
