package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/services"
)

// StaleItemsReclaimJob returns items stuck in processing (e.g. after a
// crash mid-dispatch) to the queue, or fails them when their attempts
// are exhausted.
type StaleItemsReclaimJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewStaleItemsReclaimJob(queueService *services.QueueService, intervalMs int64) *StaleItemsReclaimJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				if _, _, err := queueService.ReclaimStale(ctx); err != nil {
					log.Error().Err(err).Msg("failed to reclaim stale queue items")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &StaleItemsReclaimJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *StaleItemsReclaimJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
