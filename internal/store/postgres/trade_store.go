package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `opportunity_id, platform, event, return_frac, pnl, stake, reserved, won, settled_at`

// Insert stores a settled trade outcome.
func (s *TradeStore) Insert(ctx context.Context, outcome domain.TradeOutcome) error {
	const query = `
		INSERT INTO trades (
			opportunity_id, platform, event, return_frac, pnl, stake, reserved, won, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		outcome.OpportunityID, outcome.Platform, outcome.Event,
		outcome.Return, outcome.PnL, outcome.Stake, outcome.Reserved, outcome.Won, outcome.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", outcome.OpportunityID, err)
	}
	return nil
}

// ListRecent returns the most recently settled trades.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeOutcome, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades ORDER BY settled_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// ListBefore returns trades settled before the cutoff, oldest first, with
// pagination. The cold-storage archiver uses it to page through rows that are
// about to be pruned.
func (s *TradeStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.TradeOutcome, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE settled_at < $1 ORDER BY settled_at ASC`
	args := []any{cutoff}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// DeleteBefore removes trades settled before the cutoff and returns the
// number of rows removed.
func (s *TradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE settled_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// SumPnL returns the total realized PnL of trades settled at or after the
// given time.
func (s *TradeStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE settled_at >= $1`,
		since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum pnl: %w", err)
	}
	return total, nil
}

func collectTrades(rows pgx.Rows) ([]domain.TradeOutcome, error) {
	var outcomes []domain.TradeOutcome
	for rows.Next() {
		var o domain.TradeOutcome
		if err := rows.Scan(
			&o.OpportunityID, &o.Platform, &o.Event,
			&o.Return, &o.PnL, &o.Stake, &o.Reserved, &o.Won, &o.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades rows: %w", err)
	}
	return outcomes, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
