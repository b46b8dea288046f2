package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// PerformanceStore implements domain.PerformanceStore using PostgreSQL.
// Snapshots are append-only; Latest reads the newest row so the risk
// controller can recover its state after a restart.
type PerformanceStore struct {
	pool *pgxpool.Pool
}

// NewPerformanceStore creates a new PerformanceStore backed by the given
// connection pool.
func NewPerformanceStore(pool *pgxpool.Pool) *PerformanceStore {
	return &PerformanceStore{pool: pool}
}

const perfSelectCols = `bankroll, exposure, cumulative_pnl, peak_pnl, max_drawdown,
	streak, total_trades, wins, losses, state, halt_reason, updated_at`

// Save appends a performance snapshot.
func (s *PerformanceStore) Save(ctx context.Context, snap domain.PerformanceSnapshot) error {
	const query = `
		INSERT INTO performance_snapshots (
			bankroll, exposure, cumulative_pnl, peak_pnl, max_drawdown,
			streak, total_trades, wins, losses, state, halt_reason, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		snap.Bankroll, snap.Exposure, snap.CumulativePnL, snap.PeakPnL, snap.MaxDrawdown,
		snap.Streak, snap.TotalTrades, snap.Wins, snap.Losses,
		string(snap.State), snap.HaltReason, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save performance snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent performance snapshot.
// It returns domain.ErrNotFound when no snapshots exist.
func (s *PerformanceStore) Latest(ctx context.Context) (domain.PerformanceSnapshot, error) {
	query := `SELECT ` + perfSelectCols + ` FROM performance_snapshots ORDER BY updated_at DESC LIMIT 1`

	snap, err := scanPerformance(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PerformanceSnapshot{}, domain.ErrNotFound
		}
		return domain.PerformanceSnapshot{}, fmt.Errorf("postgres: latest performance snapshot: %w", err)
	}
	return snap, nil
}

// ListSince returns snapshots taken at or after the given time, oldest first.
func (s *PerformanceStore) ListSince(ctx context.Context, since time.Time) ([]domain.PerformanceSnapshot, error) {
	query := `SELECT ` + perfSelectCols + ` FROM performance_snapshots WHERE updated_at >= $1 ORDER BY updated_at ASC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list performance snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.PerformanceSnapshot
	for rows.Next() {
		snap, err := scanPerformance(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan performance snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list performance snapshots rows: %w", err)
	}
	return snaps, nil
}

func scanPerformance(row pgx.Row) (domain.PerformanceSnapshot, error) {
	var snap domain.PerformanceSnapshot
	var state string
	if err := row.Scan(
		&snap.Bankroll, &snap.Exposure, &snap.CumulativePnL, &snap.PeakPnL, &snap.MaxDrawdown,
		&snap.Streak, &snap.TotalTrades, &snap.Wins, &snap.Losses,
		&state, &snap.HaltReason, &snap.UpdatedAt,
	); err != nil {
		return domain.PerformanceSnapshot{}, err
	}
	snap.State = domain.RiskState(state)
	return snap, nil
}

// Compile-time interface check.
var _ domain.PerformanceStore = (*PerformanceStore)(nil)
