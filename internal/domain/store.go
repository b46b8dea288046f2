package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists detected opportunity history.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	MarkExecuted(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Opportunity, error)
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	ListByKind(ctx context.Context, kind OpportunityKind, opts ListOpts) ([]Opportunity, error)
}

// TradeStore persists settled trade outcomes.
type TradeStore interface {
	Insert(ctx context.Context, outcome TradeOutcome) error
	ListRecent(ctx context.Context, limit int) ([]TradeOutcome, error)
	ListBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]TradeOutcome, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SumPnL(ctx context.Context, since time.Time) (float64, error)
}

// PerformanceStore persists performance snapshots for restart recovery and
// historical review.
type PerformanceStore interface {
	Save(ctx context.Context, snap PerformanceSnapshot) error
	Latest(ctx context.Context) (PerformanceSnapshot, error)
	ListSince(ctx context.Context, since time.Time) ([]PerformanceSnapshot, error)
}

// AuditEvent names one kind of append-only audit record. The vocabulary is
// closed: every auditable action the engine or the archiver takes has a
// constant here.
type AuditEvent string

const (
	// AuditSizingGated records a sizing decision rejected by the risk gate.
	AuditSizingGated AuditEvent = "sizing_gated"
	// AuditExecutionAbandoned records a plan that placed no orders; its
	// reservation was released without settling a trade.
	AuditExecutionAbandoned AuditEvent = "execution_abandoned"
	// AuditEmergencyStop records a manual or automatic trading halt.
	AuditEmergencyStop AuditEvent = "emergency_stop"
	// AuditResume records trading being re-enabled after a halt.
	AuditResume AuditEvent = "resume"
	// AuditArchiveTrades, AuditArchiveOpportunities, and
	// AuditArchivePerformance record completed cold-storage uploads.
	AuditArchiveTrades        AuditEvent = "archive.trades"
	AuditArchiveOpportunities AuditEvent = "archive.opportunities"
	AuditArchivePerformance   AuditEvent = "archive.performance"
)

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     AuditEvent
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event AuditEvent, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
