package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. Rows are
// append-only: risk gate rejections, abandoned executions, halts, resumes,
// and archive sweeps all land here with a JSONB detail payload.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one audit entry.
func (s *AuditStore) Log(ctx context.Context, event domain.AuditEvent, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`,
		string(event), payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest-first, filtered and paginated per opts.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(`SELECT id, event, detail, created_at FROM audit_log`)

	var conds []string
	if opts.Since != nil {
		args = append(args, *opts.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	q.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&q, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (domain.AuditEntry, error) {
	var (
		entry   domain.AuditEntry
		event   string
		payload []byte
	)
	if err := row.Scan(&entry.ID, &event, &payload, &entry.CreatedAt); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("postgres: scan audit entry: %w", err)
	}
	entry.Event = domain.AuditEvent(event)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entry.Detail); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
		}
	}
	return entry, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
