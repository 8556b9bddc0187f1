package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/configs"
	"syncq/db"
)

// IngestService turns inbound submission events and relayed webhook
// callbacks into queue items, one per configured destination.
type IngestService struct {
	queueService *QueueService
	syncRepo     *db.SyncRepo
	appConfigs   *configs.AppConfigs
}

func NewIngestService(queueService *QueueService, syncRepo *db.SyncRepo, appConfigs *configs.AppConfigs) *IngestService {
	return &IngestService{
		queueService: queueService,
		syncRepo:     syncRepo,
		appConfigs:   appConfigs,
	}
}

// ProcessSubmissionEvent fans one form submission out to every
// configured destination and returns the created item IDs.
func (is *IngestService) ProcessSubmissionEvent(event *common.SubmissionEvent, priority int, ctx context.Context) ([]string, error) {
	if len(event.Fields) == 0 {
		return nil, common.ErrBadRequestEmptyPayload
	}

	destinations := is.configuredDestinations()
	if len(destinations) == 0 {
		log.Error().Msg("no destinations are configured")
		return nil, common.ErrConfigurationIncomplete
	}

	payload := payloadFromEvent(event)

	itemIds := make([]string, 0, len(destinations))
	for _, destination := range destinations {
		itemId, err := is.queueService.Enqueue(destination, payload, priority, ctx)
		if err != nil {
			return itemIds, err
		}
		itemIds = append(itemIds, itemId)
	}
	return itemIds, nil
}

// ProcessWebhookCallback handles payloads relayed back by the webhook
// destination. Relayed data is forwarded to the non-webhook
// destinations only, otherwise a callback would loop forever.
func (is *IngestService) ProcessWebhookCallback(payload map[string]any, ctx context.Context) ([]string, error) {
	if len(payload) == 0 {
		return nil, common.ErrBadRequestEmptyPayload
	}

	is.logWebhook(payload, "webhook callback received", ctx)

	var itemIds []string
	for _, destination := range is.configuredDestinations() {
		if destination == common.ZapierDestination {
			continue
		}
		itemId, err := is.queueService.Enqueue(destination, payload, common.DefaultPriority, ctx)
		if err != nil {
			return itemIds, err
		}
		itemIds = append(itemIds, itemId)
	}
	return itemIds, nil
}

func (is *IngestService) configuredDestinations() []string {
	var destinations []string
	cfg := is.appConfigs.Destinations

	if cfg.Zapier.WebhookURL != "" {
		destinations = append(destinations, common.ZapierDestination)
	}
	if cfg.CampaignMonitor.ApiKey != "" && cfg.CampaignMonitor.ListId != "" {
		destinations = append(destinations, common.CampaignMonitorDestination)
	}
	if cfg.Quickbase.RealmHostname != "" && cfg.Quickbase.UserToken != "" && cfg.Quickbase.TableId != "" {
		destinations = append(destinations, common.QuickbaseDestination)
	}
	return destinations
}

func (is *IngestService) logWebhook(payload map[string]any, message string, ctx context.Context) {
	entry := db.NewLogEntry{
		Timestamp: time.Now().UnixMilli(),
		SyncType:  common.WebhookSyncType,
		FormId:    formIdOf(payload),
		EntryId:   entryIdOf(payload),
		Status:    common.SuccessLogStatus,
		Message:   message,
	}
	if err := is.syncRepo.InsertLogEntry(&entry, ctx); err != nil {
		log.Warn().Msg("failed to record webhook activity log entry")
	}
}

// payloadFromEvent flattens a submission event into the queue payload
// shape: event metadata, the raw fields collection, and a label->value
// projection of the fields for the mapper.
func payloadFromEvent(event *common.SubmissionEvent) map[string]any {
	fields := make([]any, 0, len(event.Fields))
	for _, field := range event.Fields {
		fields = append(fields, map[string]any{
			"id":    field.Id,
			"label": field.Label,
			"value": field.Value,
		})
	}

	payload := map[string]any{
		common.FormIdKey:      event.FormId,
		common.FormTitleKey:   event.FormTitle,
		common.EntryIdKey:     event.EntryId,
		common.DateCreatedKey: event.DateCreated,
		common.FieldsKey:      fields,
	}
	return payload
}
