package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/services"
)

// TerminalItemsPurgeJob removes completed and failed queue items once
// they age past the retention window.
type TerminalItemsPurgeJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewTerminalItemsPurgeJob(queueService *services.QueueService, intervalMs int64) *TerminalItemsPurgeJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				deleted, err := queueService.PurgeTerminal(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to purge terminal queue items")
				} else if deleted > 0 {
					log.Info().Int64("deleted", deleted).Msg("purged terminal queue items")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &TerminalItemsPurgeJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *TerminalItemsPurgeJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
