package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// archivePageSize bounds how many rows each archival query pulls at once.
const archivePageSize = 5000

// ArchiveImpl implements domain.Archiver by querying the domain stores for
// aged rows, serializing them to JSONL, and uploading the result to S3.
// Trades are pruned from the primary store only after the upload succeeds;
// opportunities and performance snapshots are copied without deletion so the
// recent-history queries keep working.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades domain.TradeStore
	opps   domain.OpportunityStore
	perf   domain.PerformanceStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	trades domain.TradeStore,
	opps domain.OpportunityStore,
	perf domain.PerformanceStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
		opps:   opps,
		perf:   perf,
		audit:  audit,
	}
}

// ArchiveTrades pages through all trades settled before the cutoff, uploads
// them as JSONL to archive/trades/YYYY-MM.jsonl, deletes the archived rows,
// and records the event in the audit log. It returns the number of archived
// rows.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	var all []domain.TradeOutcome
	for offset := 0; ; offset += archivePageSize {
		page, err := a.trades.ListBefore(ctx, before, domain.ListOpts{Limit: archivePageSize, Offset: offset})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
		}
		all = append(all, page...)
		if len(page) < archivePageSize {
			break
		}
	}
	if len(all) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(all)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	// Prune only after the upload is durable.
	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(all)), fmt.Errorf("s3blob: archive trades prune: %w", err)
	}

	if err := a.audit.Log(ctx, domain.AuditArchiveTrades, map[string]any{
		"path":    path,
		"count":   int64(len(all)),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return int64(len(all)), fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}

	return int64(len(all)), nil
}

// ArchiveOpportunities copies opportunities detected before the cutoff to
// archive/opportunities/YYYY-MM.jsonl and records the event in the audit log.
// It returns the number of archived rows.
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	var all []domain.Opportunity
	for _, kind := range []domain.OpportunityKind{
		domain.OpportunityDutchBook, domain.OpportunitySynthetic, domain.OpportunityEndgame,
	} {
		for offset := 0; ; offset += archivePageSize {
			page, err := a.opps.ListByKind(ctx, kind, domain.ListOpts{
				Limit:  archivePageSize,
				Offset: offset,
				Until:  &before,
			})
			if err != nil {
				return 0, fmt.Errorf("s3blob: archive opportunities query %s: %w", kind, err)
			}
			all = append(all, page...)
			if len(page) < archivePageSize {
				break
			}
		}
	}
	if len(all) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(all)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	count := int64(len(all))
	if err := a.audit.Log(ctx, domain.AuditArchiveOpportunities, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive opportunities audit log: %w", err)
	}

	return count, nil
}

// ArchivePerformance copies performance snapshots for the month containing
// the cutoff to archive/performance/YYYY-MM.jsonl and records the event in
// the audit log. It returns the number of archived rows.
func (a *ArchiveImpl) ArchivePerformance(ctx context.Context, before time.Time) (int64, error) {
	monthStart := time.Date(before.Year(), before.Month(), 1, 0, 0, 0, 0, before.Location())

	snaps, err := a.perf.ListSince(ctx, monthStart)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive performance query: %w", err)
	}

	kept := snaps[:0]
	for _, snap := range snaps {
		if snap.UpdatedAt.Before(before) {
			kept = append(kept, snap)
		}
	}
	if len(kept) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(kept)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive performance marshal: %w", err)
	}

	path := archivePath("performance", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive performance upload: %w", err)
	}

	count := int64(len(kept))
	if err := a.audit.Log(ctx, domain.AuditArchivePerformance, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive performance audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2025-01.jsonl
//	archive/opportunities/2025-01.jsonl
//	archive/performance/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
