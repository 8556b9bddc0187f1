package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/configs"
	"syncq/services"
)

// QueueDispatchJob periodically drains one batch of due queue items.
// Manual dispatch through the API works regardless; this job only
// covers the recurring schedule and honors the processing toggle.
type QueueDispatchJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewQueueDispatchJob(queueService *services.QueueService, appConfigs *configs.AppConfigs) *QueueDispatchJob {
	intervalMs := appConfigs.JobsIntervals.DispatchMs
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if !appConfigs.Queue.ProcessingEnabled {
					continue
				}
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				response, err := queueService.DispatchBatch(appConfigs.Queue.DispatchBatchSize, ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to dispatch queue batch")
				} else if response.Claimed > 0 {
					log.Info().
						Int("claimed", response.Claimed).
						Int("completed", response.Completed).
						Int("retried", response.Retried).
						Int("failed", response.Failed).
						Msg("dispatched queue batch")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &QueueDispatchJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *QueueDispatchJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
