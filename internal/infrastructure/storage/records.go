package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

var _ ports.RecordStore = (*SQLStore)(nil)

// keyBatchSize stays under SQLite's bound-parameter limit.
const keyBatchSize = 500

var recordColumns = []string{
	"id", "tenant_id", "execution_id", "full_text", "brands", "summary", "sentiment", "topic",
	"estimated_reach", "provider_name", "source", "title", "link", "metadata", "dedupe_key", "created_at",
}

// ExistingKeys returns the subset of keys already stored for the tenant.
func (s *SQLStore) ExistingKeys(ctx context.Context, tenantID string, keys []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for start := 0; start < len(keys); start += keyBatchSize {
		end := min(start+keyBatchSize, len(keys))

		rows, err := s.query(ctx, s.sb.Select("dedupe_key").From("processed_records").
			Where(sq.Eq{"tenant_id": tenantID, "dedupe_key": keys[start:end]}))
		if err != nil {
			return nil, fmt.Errorf("query processed: %w", err)
		}

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return nil, closeRows(rows, fmt.Errorf("scan key: %w", err))
			}
			result[key] = true
		}
		if err := rows.Err(); err != nil {
			return nil, closeRows(rows, fmt.Errorf("rows iteration: %w", err))
		}
		if err := closeRows(rows, nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// InsertRecord stores a record. A (tenant, dedupe key) conflict returns
// domain.ErrDuplicate and leaves the stored row untouched.
func (s *SQLStore) InsertRecord(ctx context.Context, record domain.ProcessedRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Brands == nil {
		record.Brands = []string{}
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}

	brands, err := json.Marshal(record.Brands)
	if err != nil {
		return fmt.Errorf("marshal brands: %w", err)
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var executionID *string
	if record.ExecutionID != "" {
		executionID = &record.ExecutionID
	}

	res, err := s.exec(ctx, s.sb.Insert("processed_records").Columns(recordColumns...).Values(
		record.ID, record.TenantID, nullString(executionID), record.FullText, string(brands), record.Summary,
		string(record.Sentiment), record.Topic, record.EstimatedReach, record.ProviderName, record.Source,
		record.Title, record.Link, string(metadata), record.DedupeKey, record.CreatedAt.UTC(),
	).Suffix("ON CONFLICT (tenant_id, dedupe_key) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// ListRecords returns the newest records of a tenant.
func (s *SQLStore) ListRecords(ctx context.Context, tenantID string, limit int) ([]domain.ProcessedRecord, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}

	rows, err := s.query(ctx, s.sb.Select(recordColumns...).From("processed_records").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	out := make([]domain.ProcessedRecord, 0)
	for rows.Next() {
		var (
			r           domain.ProcessedRecord
			executionID *string
			brands      string
			metadata    string
			sentiment   string
		)
		if err := rows.Scan(
			&r.ID, &r.TenantID, &executionID, &r.FullText, &brands, &r.Summary, &sentiment, &r.Topic,
			&r.EstimatedReach, &r.ProviderName, &r.Source, &r.Title, &r.Link, &metadata, &r.DedupeKey, &r.CreatedAt,
		); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan record: %w", err))
		}
		if executionID != nil {
			r.ExecutionID = *executionID
		}
		r.Sentiment = domain.Sentiment(sentiment)
		r.CreatedAt = r.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(brands), &r.Brands); err != nil {
			return nil, closeRows(rows, fmt.Errorf("decode brands: %w", err))
		}
		if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			return nil, closeRows(rows, fmt.Errorf("decode metadata: %w", err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, closeRows(rows, fmt.Errorf("rows iteration: %w", err))
	}
	return out, closeRows(rows, nil)
}

// CountRecords returns how many records a tenant has.
func (s *SQLStore) CountRecords(ctx context.Context, tenantID string) (int64, error) {
	row, err := s.queryRow(ctx, s.sb.Select("COUNT(*)").From("processed_records").Where(sq.Eq{"tenant_id": tenantID}))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
