package metrics

const (
	CompletedDispatchResult = "completed"
	RetriedDispatchResult   = "retried"
	FailedDispatchResult    = "failed"

	TerminalPurgeKind = "terminal"
	LogsPurgeKind     = "logs"
)

type Service interface {
	IncItemsEnqueuedTotalBy(count int64, destination string)
	IncItemsDispatchedTotalBy(count int64, destination string, result string)
	IncRateLimitHitsTotalBy(count int64, apiName string)
	SetQueueDepth(status string, depth int64)
	IncItemsPurgedTotalBy(count int64, kind string)
	IncItemsStaleReclaimedTotalBy(count int64)
}

func NewMetricsService(metricsEnabled bool) Service {
	if metricsEnabled {
		return newPrometheusMetricsService()
	}
	return newNoopMetricsService()
}
