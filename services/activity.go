package services

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/configs"
	"syncq/db"
	"syncq/metrics"
)

const (
	defaultLogsPageSize = 50
	maxLogsPageSize     = 500
	exportPageSize      = 1000
)

// ActivityService reads and maintains the sync activity log.
type ActivityService struct {
	syncRepo       *db.SyncRepo
	appConfigs     *configs.AppConfigs
	metricsService metrics.Service
}

func NewActivityService(syncRepo *db.SyncRepo, appConfigs *configs.AppConfigs, metricsService metrics.Service) *ActivityService {
	return &ActivityService{
		syncRepo:       syncRepo,
		appConfigs:     appConfigs,
		metricsService: metricsService,
	}
}

func (as *ActivityService) GetLogs(filter *db.LogFilter, ctx context.Context) (*common.LogPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLogsPageSize
	}
	if filter.Limit > maxLogsPageSize {
		filter.Limit = maxLogsPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return as.syncRepo.SelectLogEntries(filter, ctx)
}

// GetStats aggregates the activity log over the trailing N days into
// overall, per-destination and per-day success/error counts. Retry and
// rate-limit entries are informational and excluded from the totals.
func (as *ActivityService) GetStats(days int, ctx context.Context) (*common.SyncStats, error) {
	if days <= 0 {
		days = 7
	}
	sinceMs := time.Now().AddDate(0, 0, -days).UnixMilli()

	rows, err := as.syncRepo.AggregateLogStats(sinceMs, ctx)
	if err != nil {
		return nil, err
	}

	stats := &common.SyncStats{
		ByDestination: make(map[string]*common.DestinationStats),
		ByDate:        make(map[string]*common.DailyStats),
	}

	for _, row := range rows {
		if row.Status != common.SuccessLogStatus && row.Status != common.ErrorLogStatus {
			continue
		}

		stats.Summary.TotalSyncs += row.Count
		if row.Status == common.SuccessLogStatus {
			stats.Summary.SuccessfulSyncs += row.Count
		} else {
			stats.Summary.FailedSyncs += row.Count
		}

		byDestination := stats.ByDestination[row.SyncType]
		if byDestination == nil {
			byDestination = &common.DestinationStats{}
			stats.ByDestination[row.SyncType] = byDestination
		}
		byDestination.Total += row.Count
		if row.Status == common.SuccessLogStatus {
			byDestination.Success += row.Count
		} else {
			byDestination.Error += row.Count
		}

		byDate := stats.ByDate[row.Day]
		if byDate == nil {
			byDate = &common.DailyStats{}
			stats.ByDate[row.Day] = byDate
		}
		byDate.Total += row.Count
		if row.Status == common.SuccessLogStatus {
			byDate.Success += row.Count
		} else {
			byDate.Error += row.Count
		}
	}

	stats.Summary.SuccessRate = successRate(stats.Summary.SuccessfulSyncs, stats.Summary.TotalSyncs)
	for _, byDestination := range stats.ByDestination {
		byDestination.SuccessRate = successRate(byDestination.Success, byDestination.Total)
	}

	return stats, nil
}

// ExportCSV streams the activity log for the trailing N days as CSV,
// newest entries first.
func (as *ActivityService) ExportCSV(w io.Writer, days int, ctx context.Context) error {
	if days <= 0 {
		days = 7
	}
	sinceMs := time.Now().AddDate(0, 0, -days).UnixMilli()

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "timestamp", "sync_type", "form_id", "entry_id", "status", "message"}); err != nil {
		return common.ErrInternal
	}

	for offset := 0; ; offset += exportPageSize {
		page, err := as.syncRepo.SelectLogEntries(&db.LogFilter{SinceMs: sinceMs, Limit: exportPageSize, Offset: offset}, ctx)
		if err != nil {
			return err
		}

		for _, entry := range page.Entries {
			record := []string{
				strconv.FormatInt(entry.Id, 10),
				time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339),
				entry.SyncType,
				formIdString(entry.FormId),
				entryIdString(entry.EntryId),
				entry.Status,
				entry.Message,
			}
			if err := writer.Write(record); err != nil {
				log.Error().Err(err).Msg("failed to write activity log CSV record")
				return common.ErrInternal
			}
		}

		if len(page.Entries) < exportPageSize {
			break
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Error().Err(err).Msg("failed to flush activity log CSV")
		return common.ErrInternal
	}
	return nil
}

func (as *ActivityService) PurgeLogs(ctx context.Context) (int64, error) {
	deleted, err := as.syncRepo.PurgeLogEntries(as.appConfigs.LogsRetentionMs, ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		as.metricsService.IncItemsPurgedTotalBy(deleted, metrics.LogsPurgeKind)
	}
	return deleted, nil
}

func successRate(success int, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(success)/float64(total)*10000) / 100
}

func formIdString(formId *int64) string {
	if formId == nil {
		return ""
	}
	return strconv.FormatInt(*formId, 10)
}

func entryIdString(entryId *string) string {
	if entryId == nil {
		return ""
	}
	return *entryId
}
