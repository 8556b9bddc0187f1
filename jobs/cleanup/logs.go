package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/services"
)

// LogsPurgeJob removes activity log entries older than the logs
// retention window.
type LogsPurgeJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewLogsPurgeJob(activityService *services.ActivityService, intervalMs int64) *LogsPurgeJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				deleted, err := activityService.PurgeLogs(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to purge activity log entries")
				} else if deleted > 0 {
					log.Info().Int64("deleted", deleted).Msg("purged activity log entries")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &LogsPurgeJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *LogsPurgeJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
