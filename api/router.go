package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/configs"
	"syncq/db"
	"syncq/services"
)

type Router struct {
	queueService      *services.QueueService
	ingestService     *services.IngestService
	activityService   *services.ActivityService
	mappingsService   *services.MappingsService
	monitoringService *services.MonitoringService
	testService       *services.TestService
	appConfigs        *configs.AppConfigs
	authSecret        string
}

func NewRouter(
	queueService *services.QueueService,
	ingestService *services.IngestService,
	activityService *services.ActivityService,
	mappingsService *services.MappingsService,
	monitoringService *services.MonitoringService,
	testService *services.TestService,
	appConfigs *configs.AppConfigs,
	authSecret string,
) *Router {
	return &Router{
		queueService:      queueService,
		ingestService:     ingestService,
		activityService:   activityService,
		mappingsService:   mappingsService,
		monitoringService: monitoringService,
		testService:       testService,
		appConfigs:        appConfigs,
		authSecret:        authSecret,
	}
}

func (ar *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Get("/healthcheck", ar.healthcheck)
	if ar.appConfigs.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	// webhook callbacks carry no API key, the relay endpoint is open
	router.Post("/webhooks/relay", ar.relayWebhook)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyTokenAuth(ar.authSecret))

		r.Post("/events", ar.acceptEvent)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/stats", ar.queueStats)
			r.Post("/dispatch", ar.dispatchNow)
			r.Post("/purge", ar.purgeQueue)
			r.Get("/items/{itemId}", ar.itemDetails)
		})

		r.Get("/logs", ar.listLogs)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/", ar.syncStats)
			r.Get("/export", ar.exportStats)
		})

		r.Route("/forms/{formId}", func(r chi.Router) {
			r.Post("/suggestions", ar.generateSuggestions)
			r.Get("/mappings", ar.listMappings)
		})

		r.Post("/destinations/{destination}/test", ar.testDestination)
	})

	return router
}

func (ar *Router) acceptEvent(w http.ResponseWriter, req *http.Request) {
	var event common.SubmissionEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		log.Error().Err(err).Msg("failed to decode submission event")
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	priority, _ := strconv.Atoi(req.URL.Query().Get("priority"))

	itemIds, err := ar.ingestService.ProcessSubmissionEvent(&event, priority, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusAccepted, common.EnqueueResponse{ItemIds: itemIds})
}

func (ar *Router) relayWebhook(w http.ResponseWriter, req *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		log.Error().Err(err).Msg("failed to decode webhook payload")
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	itemIds, err := ar.ingestService.ProcessWebhookCallback(payload, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusAccepted, common.EnqueueResponse{ItemIds: itemIds})
}

func (ar *Router) queueStats(w http.ResponseWriter, req *http.Request) {
	stats, err := ar.queueService.Stats(req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, stats)
}

// dispatchNow runs one ad-hoc dispatch batch. The limit query param is
// capped so a manual run can't monopolize the destinations' rate budget.
func (ar *Router) dispatchNow(w http.ResponseWriter, req *http.Request) {
	batchSize, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if batchSize <= 0 {
		batchSize = ar.appConfigs.Queue.DispatchBatchSize
	}
	if batchSize > ar.appConfigs.Queue.MaxAdHocBatchSize {
		batchSize = ar.appConfigs.Queue.MaxAdHocBatchSize
	}

	response, err := ar.queueService.DispatchBatch(batchSize, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, response)
}

func (ar *Router) purgeQueue(w http.ResponseWriter, req *http.Request) {
	deleted, err := ar.queueService.PurgeTerminal(req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, common.PurgeResponse{Deleted: deleted})
}

func (ar *Router) itemDetails(w http.ResponseWriter, req *http.Request) {
	itemId := chi.URLParam(req, "itemId")

	item, err := ar.queueService.ItemDetails(itemId, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, itemDetailsResponse(item))
}

func (ar *Router) listLogs(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	filter := db.LogFilter{
		SyncType: query.Get("sync_type"),
		Status:   query.Get("status"),
		Search:   query.Get("search"),
		Limit:    limit,
		Offset:   offset,
	}

	page, err := ar.activityService.GetLogs(&filter, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, page)
}

func (ar *Router) syncStats(w http.ResponseWriter, req *http.Request) {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	stats, err := ar.activityService.GetStats(days, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, stats)
}

func (ar *Router) exportStats(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	days, _ := strconv.Atoi(query.Get("days"))

	switch strings.ToLower(query.Get("format")) {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="sync-activity.csv"`)
		if err := ar.activityService.ExportCSV(w, days, req.Context()); err != nil {
			log.Error().Err(err).Msg("failed to export activity log as CSV")
		}
	case "json":
		stats, err := ar.activityService.GetStats(days, req.Context())
		if err != nil {
			ar.sendResponseFromError(w, err)
			return
		}
		ar.sendJsonResponse(w, http.StatusOK, stats)
	default:
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
	}
}

func (ar *Router) generateSuggestions(w http.ResponseWriter, req *http.Request) {
	formId, err := strconv.ParseInt(chi.URLParam(req, "formId"), 10, 64)
	if err != nil {
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	var body struct {
		Platform string                   `json:"platform"`
		Fields   []common.SubmissionField `json:"fields"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		log.Error().Err(err).Msg("failed to decode suggestions request")
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	suggestions, err := ar.mappingsService.GenerateSuggestions(formId, body.Platform, body.Fields, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, suggestions)
}

func (ar *Router) listMappings(w http.ResponseWriter, req *http.Request) {
	formId, err := strconv.ParseInt(chi.URLParam(req, "formId"), 10, 64)
	if err != nil {
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	mappings, err := ar.mappingsService.ListMappings(formId, req.URL.Query().Get("platform"), req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, mappings)
}

func (ar *Router) testDestination(w http.ResponseWriter, req *http.Request) {
	destination := chi.URLParam(req, "destination")

	outcome, err := ar.testService.TestDestination(destination, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, outcome)
}

func (ar *Router) healthcheck(w http.ResponseWriter, req *http.Request) {
	if !ar.monitoringService.IsHealthy(req.Context()) {
		ar.sendErrorResponse(w, http.StatusServiceUnavailable, common.ErrCodeInternal)
		return
	}
	ar.sendNoContentEmptyResponse(w)
}

func (ar *Router) sendNoContentEmptyResponse(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (ar *Router) sendJsonResponse(w http.ResponseWriter, httpCode int, payload any) {
	respBody, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling response body")
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(respBody)
}

func (ar *Router) sendErrorResponse(w http.ResponseWriter, httpCode int, errCode string) {
	ar.sendJsonResponse(w, httpCode, common.ErrorResponse{Code: errCode})
}

func (ar *Router) sendResponseFromError(w http.ResponseWriter, err error) {
	var se common.SyncError
	if errors.As(err, &se) {
		ar.sendErrorResponse(w, httpStatusOf(se.Code), se.Code)
	} else {
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
	}
}

func httpStatusOf(errCode string) int {
	switch {
	case strings.HasPrefix(errCode, "bad_request"):
		return http.StatusBadRequest
	case errCode == common.ErrCodeMissingRequiredEmail, errCode == common.ErrCodeConfigurationIncomplete:
		return http.StatusUnprocessableEntity
	case errCode == common.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errCode == common.ErrCodeNotFoundItem:
		return http.StatusNotFound
	case errCode == common.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type itemResponse struct {
	Id            string  `json:"id"`
	Destination   string  `json:"destination"`
	Priority      int     `json:"priority"`
	Status        string  `json:"status"`
	Attempts      int     `json:"attempts"`
	CreatedAt     int64   `json:"created_at"`
	ScheduledAt   int64   `json:"scheduled_at"`
	ProcessedAt   *int64  `json:"processed_at,omitempty"`
	CompletedAt   *int64  `json:"completed_at,omitempty"`
	FailedAt      *int64  `json:"failed_at,omitempty"`
	ResultMessage *string `json:"result_message,omitempty"`
}

func itemDetailsResponse(item *db.ItemDetails) itemResponse {
	return itemResponse{
		Id:            item.Id,
		Destination:   item.Destination,
		Priority:      item.Priority,
		Status:        common.StatusName(item.Status),
		Attempts:      item.Attempts,
		CreatedAt:     item.CreatedAt,
		ScheduledAt:   item.ScheduledAt,
		ProcessedAt:   item.ProcessedAt,
		CompletedAt:   item.CompletedAt,
		FailedAt:      item.FailedAt,
		ResultMessage: item.ResultMessage,
	}
}
