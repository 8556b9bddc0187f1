package metrics

type NoopMetricsService struct {
}

func newNoopMetricsService() *NoopMetricsService {
	return &NoopMetricsService{}
}

func (nms *NoopMetricsService) IncItemsEnqueuedTotalBy(count int64, destination string) {
	// no-op
}

func (nms *NoopMetricsService) IncItemsDispatchedTotalBy(count int64, destination string, result string) {
	// no-op
}

func (nms *NoopMetricsService) IncRateLimitHitsTotalBy(count int64, apiName string) {
	// no-op
}

func (nms *NoopMetricsService) SetQueueDepth(status string, depth int64) {
	// no-op
}

func (nms *NoopMetricsService) IncItemsPurgedTotalBy(count int64, kind string) {
	// no-op
}

func (nms *NoopMetricsService) IncItemsStaleReclaimedTotalBy(count int64) {
	// no-op
}
