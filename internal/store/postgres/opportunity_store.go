package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, kind, event, legs, direction,
	total_cost, profit, roi, annualized_roi,
	confidence, execution_risk, liquidity,
	detected_at, executed, executed_at`

// Insert stores a new detected opportunity. Legs are stored as JSONB.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	legsJSON, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity legs: %w", err)
	}

	const query = `
		INSERT INTO opportunities (
			id, kind, event, legs, direction,
			total_cost, profit, roi, annualized_roi,
			confidence, execution_risk, liquidity,
			detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13
		)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, string(opp.Kind), opp.Event, legsJSON, string(opp.Direction),
		opp.TotalCost, opp.Profit, opp.ROI, opp.AnnualizedROI,
		opp.Confidence, opp.ExecutionRisk, opp.Liquidity,
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// MarkExecuted sets the executed flag and executed_at timestamp for a given
// opportunity.
func (s *OpportunityStore) MarkExecuted(ctx context.Context, id string) error {
	const query = `
		UPDATE opportunities SET
			executed    = TRUE,
			executed_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: mark opportunity executed %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single opportunity by its ID.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return collectOpportunities(rows)
}

// ListByKind returns opportunities of a single kind with pagination and
// optional time filtering.
func (s *OpportunityStore) ListByKind(ctx context.Context, kind domain.OpportunityKind, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE kind = $1`
	args := []any{string(kind)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY detected_at DESC"

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
		return nil, fmt.Errorf("postgres: list opportunities by kind %s: %w", kind, err)
	}
	defer rows.Close()

	return collectOpportunities(rows)
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		opp       domain.Opportunity
		kind      string
		direction string
		legsJSON  []byte
		executed  bool
		execAt    any
	)
	if err := row.Scan(
		&opp.ID, &kind, &opp.Event, &legsJSON, &direction,
		&opp.TotalCost, &opp.Profit, &opp.ROI, &opp.AnnualizedROI,
		&opp.Confidence, &opp.ExecutionRisk, &opp.Liquidity,
		&opp.DetectedAt, &executed, &execAt,
	); err != nil {
		return domain.Opportunity{}, err
	}

	opp.Kind = domain.OpportunityKind(kind)
	opp.Direction = domain.SyntheticDirection(direction)
	if legsJSON != nil {
		if err := json.Unmarshal(legsJSON, &opp.Legs); err != nil {
			return domain.Opportunity{}, fmt.Errorf("unmarshal legs: %w", err)
		}
	}
	return opp, nil
}

func collectOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
