package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"syncq/common"
	"syncq/configs"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

type SyncRepo struct {
	db         *sql.DB
	appConfigs *configs.AppConfigs
}

func NewSQLiteRepo(dbPath string, appConfigs *configs.AppConfigs) (*SyncRepo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SyncRepo{
		db:         db,
		appConfigs: appConfigs,
	}, nil
}

func (sr *SyncRepo) InsertItem(newItem *NewQueueItem, ctx context.Context) error {
	query := `
		INSERT INTO sync_queue (id, destination, payload, priority, form_id, entry_id, status, attempts, created_at, scheduled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?);
	`

	_, err := sr.db.ExecContext(ctx, query,
		newItem.Id,           // id
		newItem.Destination,  // destination
		newItem.Payload,      // payload
		newItem.Priority,     // priority
		newItem.FormId,       // form_id
		newItem.EntryId,      // entry_id
		common.PendingStatus, // status
		newItem.CreatedAt,    // created_at
		newItem.ScheduledAt,  // scheduled_at
	)
	if err != nil {
		log.Error().Err(err).Str("destination", newItem.Destination).Msg("failed to insert queue item")
		return common.ErrInternal
	}
	return nil
}

// ClaimNextDue atomically claims the single most urgent due item:
// pending, scheduled_at in the past, lowest priority number first,
// FIFO within a priority class. The claim increments attempts, so a
// returned item already counts the attempt about to be made.
func (sr *SyncRepo) ClaimNextDue(ctx context.Context) (*ClaimedItem, error) {
	nowMs := time.Now().UnixMilli()

	query := `
		UPDATE sync_queue
        SET
            status = ?,
            attempts = attempts + 1,
            processed_at = ?
        WHERE id = (
            SELECT id
            FROM sync_queue
            WHERE status = ?
              AND scheduled_at <= ?
            ORDER BY priority ASC, created_at ASC
            LIMIT 1
        )
        RETURNING id, destination, payload, priority, attempts, form_id, entry_id, created_at;`

	var item ClaimedItem
	err := sr.db.QueryRowContext(ctx, query,
		common.ProcessingStatus, // SET status = ?
		nowMs,                   // processed_at = ?
		common.PendingStatus,    // WHERE status = ?
		nowMs,                   // AND scheduled_at <= ?
	).Scan(&item.Id, &item.Destination, &item.Payload, &item.Priority, &item.Attempts, &item.FormId, &item.EntryId, &item.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to claim queue item")
		return nil, common.ErrInternal
	}
	return &item, nil
}

func (sr *SyncRepo) CompleteItem(itemId string, resultMessage string, ctx context.Context) error {
	nowMs := time.Now().UnixMilli()

	query := `
        UPDATE sync_queue
        SET
            status = ?,
            completed_at = ?,
            result_message = ?
        WHERE id = ? AND status = ?;`

	result, err := sr.db.ExecContext(ctx, query,
		common.CompletedStatus,  // status = ?
		nowMs,                   // completed_at = ?
		resultMessage,           // result_message = ?
		itemId,                  // WHERE id = ?
		common.ProcessingStatus, // AND status = ?
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to complete queue item")
		return common.ErrInternal
	}
	return sr.expectOneRow(result, itemId)
}

func (sr *SyncRepo) FailItem(itemId string, resultMessage string, ctx context.Context) error {
	nowMs := time.Now().UnixMilli()

	query := `
        UPDATE sync_queue
        SET
            status = ?,
            failed_at = ?,
            result_message = ?
        WHERE id = ? AND status = ?;`

	result, err := sr.db.ExecContext(ctx, query,
		common.FailedStatus,     // status = ?
		nowMs,                   // failed_at = ?
		resultMessage,           // result_message = ?
		itemId,                  // WHERE id = ?
		common.ProcessingStatus, // AND status = ?
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to mark queue item as failed")
		return common.ErrInternal
	}
	return sr.expectOneRow(result, itemId)
}

// RescheduleItem returns a claimed item to pending with a new
// scheduled_at, keeping the attempt counted by the claim.
func (sr *SyncRepo) RescheduleItem(itemId string, scheduledAt int64, resultMessage string, ctx context.Context) error {
	query := `
        UPDATE sync_queue
        SET
            status = ?,
            scheduled_at = ?,
            processed_at = NULL,
            result_message = ?
        WHERE id = ? AND status = ?;`

	result, err := sr.db.ExecContext(ctx, query,
		common.PendingStatus,    // status = ?
		scheduledAt,             // scheduled_at = ?
		resultMessage,           // result_message = ?
		itemId,                  // WHERE id = ?
		common.ProcessingStatus, // AND status = ?
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to reschedule queue item")
		return common.ErrInternal
	}
	return sr.expectOneRow(result, itemId)
}

// ReclaimStaleItems reconciles items stuck in processing longer than
// MaxProcessingTimeMs, e.g. after a crash mid-dispatch. Items with
// attempts left go back to pending; exhausted ones become failed.
// Returns (reclaimed, failed) counts.
func (sr *SyncRepo) ReclaimStaleItems(ctx context.Context) (int64, int64, error) {
	nowMs := time.Now().UnixMilli()
	staleBefore := nowMs - sr.appConfigs.Queue.MaxProcessingTimeMs

	failQuery := `
        UPDATE sync_queue
        SET
            status = ?,
            failed_at = ?,
            processed_at = NULL,
            result_message = ?
        WHERE status = ? AND processed_at < ? AND attempts >= ?;`

	failResult, err := sr.db.ExecContext(ctx, failQuery,
		common.FailedStatus,                        // status = ?
		nowMs,                                      // failed_at = ?
		"processing timed out",                     // result_message = ?
		common.ProcessingStatus,                    // WHERE status = ?
		staleBefore,                                // AND processed_at < ?
		sr.appConfigs.Queue.MaxDeliveryAttempts,    // AND attempts >= ?
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to fail exhausted stale items")
		return 0, 0, common.ErrInternal
	}
	failed, _ := failResult.RowsAffected()

	reclaimQuery := `
        UPDATE sync_queue
        SET
            status = ?,
            scheduled_at = ?,
            processed_at = NULL,
            result_message = ?
        WHERE status = ? AND processed_at < ?;`

	reclaimResult, err := sr.db.ExecContext(ctx, reclaimQuery,
		common.PendingStatus,    // status = ?
		nowMs,                   // scheduled_at = ?
		"processing timed out",  // result_message = ?
		common.ProcessingStatus, // WHERE status = ?
		staleBefore,             // AND processed_at < ?
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to reclaim stale items")
		return 0, failed, common.ErrInternal
	}
	reclaimed, _ := reclaimResult.RowsAffected()

	return reclaimed, failed, nil
}

func (sr *SyncRepo) QueueStats(ctx context.Context) (*common.QueueStatsResponse, error) {
	query := `
        SELECT
            COUNT(*) as total,
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as pending,
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as processing,
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as completed,
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as failed
        FROM sync_queue;`

	var stats common.QueueStatsResponse
	err := sr.db.QueryRowContext(ctx, query,
		common.PendingStatus,
		common.ProcessingStatus,
		common.CompletedStatus,
		common.FailedStatus,
	).Scan(&stats.Total, &stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch queue stats")
		return nil, common.ErrInternal
	}
	return &stats, nil
}

// PurgeTerminalItems deletes completed and failed items whose terminal
// timestamp is older than the cutoff. Returns the number deleted.
func (sr *SyncRepo) PurgeTerminalItems(olderThanMs int64, ctx context.Context) (int64, error) {
	cutoff := time.Now().UnixMilli() - olderThanMs

	query := `
        DELETE FROM sync_queue
        WHERE (status = ? AND completed_at < ?)
           OR (status = ? AND failed_at < ?);`

	result, err := sr.db.ExecContext(ctx, query,
		common.CompletedStatus, // status = ?
		cutoff,                 // completed_at < ?
		common.FailedStatus,    // status = ?
		cutoff,                 // failed_at < ?
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to purge terminal queue items")
		return 0, common.ErrInternal
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, common.ErrInternal
	}
	return deleted, nil
}

func (sr *SyncRepo) SelectItem(itemId string, ctx context.Context) (*ItemDetails, error) {
	query := `
		SELECT id, destination, payload, priority, status, attempts, created_at, scheduled_at, processed_at, completed_at, failed_at, result_message
		FROM sync_queue
		WHERE id = ?;`

	var item ItemDetails
	err := sr.db.QueryRowContext(ctx, query, itemId).Scan(
		&item.Id, &item.Destination, &item.Payload, &item.Priority, &item.Status, &item.Attempts,
		&item.CreatedAt, &item.ScheduledAt, &item.ProcessedAt, &item.CompletedAt, &item.FailedAt, &item.ResultMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to select queue item")
		return nil, common.ErrInternal
	}
	return &item, nil
}

func (sr *SyncRepo) InsertLogEntry(entry *NewLogEntry, ctx context.Context) error {
	query := `
		INSERT INTO sync_logs (timestamp, sync_type, form_id, entry_id, status, message)
		VALUES (?, ?, ?, ?, ?, ?);`

	_, err := sr.db.ExecContext(ctx, query,
		entry.Timestamp, // timestamp
		entry.SyncType,  // sync_type
		entry.FormId,    // form_id
		entry.EntryId,   // entry_id
		entry.Status,    // status
		entry.Message,   // message
	)
	if err != nil {
		log.Error().Err(err).Str("sync_type", entry.SyncType).Msg("failed to insert activity log entry")
		return common.ErrInternal
	}
	return nil
}

func (sr *SyncRepo) SelectLogEntries(filter *LogFilter, ctx context.Context) (*common.LogPage, error) {
	var conditions []string
	var args []any

	if filter.SyncType != "" {
		conditions = append(conditions, "sync_type = ?")
		args = append(args, filter.SyncType)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, "message LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.SinceMs > 0 {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.SinceMs)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	err := sr.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_logs"+where, args...).Scan(&total)
	if err != nil {
		log.Error().Err(err).Msg("failed to count activity log entries")
		return nil, common.ErrInternal
	}

	query := "SELECT id, timestamp, sync_type, form_id, entry_id, status, message FROM sync_logs" + where +
		" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := sr.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("failed to select activity log entries")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	entries := make([]common.LogEntry, 0)
	for rows.Next() {
		var entry common.LogEntry
		if err := rows.Scan(&entry.Id, &entry.Timestamp, &entry.SyncType, &entry.FormId, &entry.EntryId, &entry.Status, &entry.Message); err != nil {
			log.Error().Err(err).Msg("failed to scan activity log entry")
			return nil, common.ErrInternal
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate activity log entries")
		return nil, common.ErrInternal
	}

	return &common.LogPage{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func (sr *SyncRepo) PurgeLogEntries(olderThanMs int64, ctx context.Context) (int64, error) {
	cutoff := time.Now().UnixMilli() - olderThanMs

	result, err := sr.db.ExecContext(ctx, "DELETE FROM sync_logs WHERE timestamp < ?", cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to purge activity log entries")
		return 0, common.ErrInternal
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, common.ErrInternal
	}
	return deleted, nil
}

// AggregateLogStats buckets activity log entries by (sync_type, status, day)
// since the given timestamp.
func (sr *SyncRepo) AggregateLogStats(sinceMs int64, ctx context.Context) ([]LogStatsRow, error) {
	query := `
        SELECT
            sync_type,
            status,
            COUNT(*) as count,
            date(timestamp / 1000, 'unixepoch') as day
        FROM sync_logs
        WHERE timestamp >= ?
        GROUP BY sync_type, status, day
        ORDER BY day DESC, sync_type, status;`

	rows, err := sr.db.QueryContext(ctx, query, sinceMs)
	if err != nil {
		log.Error().Err(err).Msg("failed to aggregate activity log stats")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var stats []LogStatsRow
	for rows.Next() {
		var row LogStatsRow
		if err := rows.Scan(&row.SyncType, &row.Status, &row.Count, &row.Day); err != nil {
			log.Error().Err(err).Msg("failed to scan activity log stats row")
			return nil, common.ErrInternal
		}
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate activity log stats")
		return nil, common.ErrInternal
	}
	return stats, nil
}

func (sr *SyncRepo) UpsertFieldMapping(mapping *FieldMapping, ctx context.Context) error {
	query := `
		INSERT INTO field_mappings (form_id, field_id, platform, mapped_type, confidence, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (form_id, field_id, platform) DO UPDATE SET
		    mapped_type = excluded.mapped_type,
		    confidence = excluded.confidence,
		    is_active = excluded.is_active,
		    updated_at = excluded.updated_at;`

	_, err := sr.db.ExecContext(ctx, query,
		mapping.FormId,
		mapping.FieldId,
		mapping.Platform,
		mapping.MappedType,
		mapping.Confidence,
		mapping.IsActive,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Int64("form_id", mapping.FormId).Str("platform", mapping.Platform).Msg("failed to upsert field mapping")
		return common.ErrInternal
	}
	return nil
}

func (sr *SyncRepo) SelectFieldMappings(formId int64, platform string, ctx context.Context) ([]FieldMapping, error) {
	query := `
		SELECT form_id, field_id, platform, mapped_type, confidence, is_active, created_at, updated_at
		FROM field_mappings
		WHERE form_id = ? AND platform = ?
		ORDER BY confidence DESC, field_id;`

	rows, err := sr.db.QueryContext(ctx, query, formId, platform)
	if err != nil {
		log.Error().Err(err).Int64("form_id", formId).Msg("failed to select field mappings")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var mappings []FieldMapping
	for rows.Next() {
		var m FieldMapping
		if err := rows.Scan(&m.FormId, &m.FieldId, &m.Platform, &m.MappedType, &m.Confidence, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			log.Error().Err(err).Msg("failed to scan field mapping")
			return nil, common.ErrInternal
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate field mappings")
		return nil, common.ErrInternal
	}
	return mappings, nil
}

func (sr *SyncRepo) Ping(ctx context.Context) error {
	return sr.db.PingContext(ctx)
}

func (sr *SyncRepo) Optimize(ctx context.Context) {
	if _, err := sr.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		log.Warn().Err(err).Msg("failed to run PRAGMA optimize")
	}
}

func (sr *SyncRepo) Close() error {
	return sr.db.Close()
}

func (sr *SyncRepo) expectOneRow(result sql.Result, itemId string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return common.ErrInternal
	}
	if rowsAffected == 0 {
		log.Warn().Str("item_id", itemId).Msg("no rows updated, item is not in processing state")
		return common.ErrNotFoundItem
	}
	return nil
}
