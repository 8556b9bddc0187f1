package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"syncq/adapters"
	"syncq/common"
	"syncq/configs"
	"syncq/db"
	"syncq/metrics"
	"syncq/transform"
)

// QueueService owns the sync queue lifecycle: accepting items,
// dispatching them to destination adapters and applying the
// retry/failure policy to each attempt's outcome.
type QueueService struct {
	syncRepo       *db.SyncRepo
	registry       map[string]adapters.Adapter
	appConfigs     *configs.AppConfigs
	metricsService metrics.Service
}

func NewQueueService(syncRepo *db.SyncRepo, registry map[string]adapters.Adapter, appConfigs *configs.AppConfigs, metricsService metrics.Service) *QueueService {
	return &QueueService{
		syncRepo:       syncRepo,
		registry:       registry,
		appConfigs:     appConfigs,
		metricsService: metricsService,
	}
}

// Enqueue validates and persists one item for later dispatch, returning
// its ID. A zero priority means "use the default"; out-of-range values
// are clamped, not rejected.
func (qs *QueueService) Enqueue(destination string, payload map[string]any, priority int, ctx context.Context) (string, error) {
	if !common.KnownDestinations[destination] {
		log.Error().Str("destination", destination).Msg("unknown destination")
		return "", common.ErrBadRequestUnknownDestination
	}
	if len(payload) == 0 {
		return "", common.ErrBadRequestEmptyPayload
	}

	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to serialize payload")
		return "", common.ErrBadRequestInvalidBody
	}

	itemId, err := uuid.NewV7()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate new item ID")
		return "", common.ErrInternal
	}

	nowMs := time.Now().UnixMilli()
	newItem := db.NewQueueItem{
		Id:          itemId.String(),
		Destination: destination,
		Payload:     string(payloadJson),
		Priority:    clampPriority(priority),
		FormId:      formIdOf(payload),
		EntryId:     entryIdOf(payload),
		CreatedAt:   nowMs,
		ScheduledAt: nowMs,
	}

	if err := qs.syncRepo.InsertItem(&newItem, ctx); err != nil {
		return "", err
	}

	qs.metricsService.IncItemsEnqueuedTotalBy(1, destination)
	return newItem.Id, nil
}

// DispatchBatch claims and processes due items one at a time until the
// batch is full, the queue runs dry or the context is cancelled.
func (qs *QueueService) DispatchBatch(batchSize int, ctx context.Context) (*common.DispatchResponse, error) {
	response := &common.DispatchResponse{}

	for i := 0; i < batchSize; i++ {
		select {
		case <-ctx.Done():
			return response, nil
		default:
		}

		item, err := qs.syncRepo.ClaimNextDue(ctx)
		if err != nil {
			return response, err
		}
		if item == nil {
			// queue is dry
			break
		}

		response.Claimed++
		switch qs.processItem(item, ctx) {
		case metrics.CompletedDispatchResult:
			response.Completed++
		case metrics.RetriedDispatchResult:
			response.Retried++
		case metrics.FailedDispatchResult:
			response.Failed++
		}
	}

	return response, nil
}

// processItem runs one delivery attempt for a claimed item and settles
// it according to the outcome: completed on success, rescheduled with
// exponential backoff while attempts remain, failed otherwise.
func (qs *QueueService) processItem(item *db.ClaimedItem, ctx context.Context) string {
	outcome := qs.deliver(item, ctx)

	if outcome.RateLimited {
		qs.metricsService.IncRateLimitHitsTotalBy(1, item.Destination)
		qs.logActivity(common.RateLimitSyncType, item, common.RateLimitLogStatus, outcome.Message, ctx)
	}

	if outcome.OK {
		if err := qs.syncRepo.CompleteItem(item.Id, outcome.Message, ctx); err != nil {
			return metrics.FailedDispatchResult
		}
		qs.metricsService.IncItemsDispatchedTotalBy(1, item.Destination, metrics.CompletedDispatchResult)
		qs.logActivity(item.Destination, item, common.SuccessLogStatus, outcome.Message, ctx)
		return metrics.CompletedDispatchResult
	}

	if item.Attempts >= qs.appConfigs.Queue.MaxDeliveryAttempts {
		if err := qs.syncRepo.FailItem(item.Id, outcome.Message, ctx); err != nil {
			return metrics.FailedDispatchResult
		}
		qs.metricsService.IncItemsDispatchedTotalBy(1, item.Destination, metrics.FailedDispatchResult)
		qs.logActivity(item.Destination, item, common.ErrorLogStatus, outcome.Message, ctx)
		return metrics.FailedDispatchResult
	}

	delayMs := qs.retryDelayMs(item.Attempts)
	retryMessage := fmt.Sprintf("attempt %d failed: %s. Retrying in %d minutes.", item.Attempts, outcome.Message, delayMs/60_000)
	if err := qs.syncRepo.RescheduleItem(item.Id, time.Now().UnixMilli()+delayMs, retryMessage, ctx); err != nil {
		return metrics.FailedDispatchResult
	}
	qs.metricsService.IncItemsDispatchedTotalBy(1, item.Destination, metrics.RetriedDispatchResult)
	qs.logActivity(item.Destination, item, common.RetryLogStatus, retryMessage, ctx)
	return metrics.RetriedDispatchResult
}

// deliver transforms the stored payload and hands it to the adapter. A
// panicking adapter must not take down the dispatch loop, so the
// attempt is converted into an error outcome instead.
func (qs *QueueService) deliver(item *db.ClaimedItem, ctx context.Context) (outcome common.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("item_id", item.Id).Msg("panic while processing queue item")
			outcome = common.Outcome{OK: false, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	var payload map[string]any
	if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
		log.Error().Err(err).Str("item_id", item.Id).Msg("failed to deserialize stored payload")
		return common.Outcome{OK: false, Message: "stored payload is not valid JSON: " + err.Error()}
	}

	transformed, err := transform.ForDestination(payload, item.Destination)
	if err != nil {
		return common.Outcome{OK: false, Message: "transformation failed: " + err.Error()}
	}
	if err := transform.Validate(transformed, item.Destination); err != nil {
		return common.Outcome{OK: false, Message: "validation failed: " + err.Error()}
	}

	adapter, ok := qs.registry[item.Destination]
	if !ok {
		return common.Outcome{OK: false, Message: "no adapter registered for destination " + item.Destination}
	}
	return adapter.Send(ctx, transformed)
}

func (qs *QueueService) Stats(ctx context.Context) (*common.QueueStatsResponse, error) {
	return qs.syncRepo.QueueStats(ctx)
}

func (qs *QueueService) ItemDetails(itemId string, ctx context.Context) (*db.ItemDetails, error) {
	item, err := qs.syncRepo.SelectItem(itemId, ctx)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, common.ErrNotFoundItem
	}
	return item, nil
}

func (qs *QueueService) PurgeTerminal(ctx context.Context) (int64, error) {
	deleted, err := qs.syncRepo.PurgeTerminalItems(qs.appConfigs.Queue.RetentionMs, ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		qs.metricsService.IncItemsPurgedTotalBy(deleted, metrics.TerminalPurgeKind)
	}
	return deleted, nil
}

func (qs *QueueService) ReclaimStale(ctx context.Context) (int64, int64, error) {
	reclaimed, failed, err := qs.syncRepo.ReclaimStaleItems(ctx)
	if err != nil {
		return 0, 0, err
	}
	if reclaimed+failed > 0 {
		qs.metricsService.IncItemsStaleReclaimedTotalBy(reclaimed + failed)
		log.Warn().Int64("reclaimed", reclaimed).Int64("failed", failed).Msg("reclaimed stale processing items")
	}
	return reclaimed, failed, nil
}

// retryDelayMs doubles per attempt already made: 2x base after the
// first attempt, then 4x, then 8x.
func (qs *QueueService) retryDelayMs(attempts int) int64 {
	return (int64(1) << attempts) * qs.appConfigs.Queue.BaseRetryDelayMs
}

// logActivity is best-effort: a failed log write must never change the
// fate of the queue item it describes.
func (qs *QueueService) logActivity(syncType string, item *db.ClaimedItem, status string, message string, ctx context.Context) {
	entry := db.NewLogEntry{
		Timestamp: time.Now().UnixMilli(),
		SyncType:  syncType,
		FormId:    item.FormId,
		EntryId:   item.EntryId,
		Status:    status,
		Message:   message,
	}
	if err := qs.syncRepo.InsertLogEntry(&entry, ctx); err != nil {
		log.Warn().Str("item_id", item.Id).Msg("failed to record activity log entry")
	}
}

func clampPriority(priority int) int {
	if priority == 0 {
		return common.DefaultPriority
	}
	if priority < common.HighestPriority {
		return common.HighestPriority
	}
	if priority > common.LowestPriority {
		return common.LowestPriority
	}
	return priority
}

func formIdOf(payload map[string]any) *int64 {
	switch v := payload[common.FormIdKey].(type) {
	case int64:
		return &v
	case int:
		id := int64(v)
		return &id
	case float64:
		id := int64(v)
		return &id
	default:
		return nil
	}
}

func entryIdOf(payload map[string]any) *string {
	switch v := payload[common.EntryIdKey].(type) {
	case string:
		if v == "" {
			return nil
		}
		return &v
	case float64:
		id := fmt.Sprintf("%.0f", v)
		return &id
	default:
		return nil
	}
}
