package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/db"
	"syncq/metrics"
)

type QueueDepthMetricsJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewQueueDepthMetricsJob(metricsService metrics.Service, syncRepo *db.SyncRepo, intervalMs int64) *QueueDepthMetricsJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				stats, err := syncRepo.QueueStats(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to fetch queue stats by QueueDepthMetricsJob")
				} else {
					metricsService.SetQueueDepth(common.StatusName(common.PendingStatus), int64(stats.Pending))
					metricsService.SetQueueDepth(common.StatusName(common.ProcessingStatus), int64(stats.Processing))
					metricsService.SetQueueDepth(common.StatusName(common.CompletedStatus), int64(stats.Completed))
					metricsService.SetQueueDepth(common.StatusName(common.FailedStatus), int64(stats.Failed))
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &QueueDepthMetricsJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *QueueDepthMetricsJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
