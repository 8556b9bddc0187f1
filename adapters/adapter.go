// Package adapters contains the destination clients. Each adapter
// turns one queue item payload into one outbound API call and reports
// the result as a common.Outcome, never as an error: delivery failures
// are data for the queue engine, not exceptional control flow.
package adapters

import (
	"context"
	"io"
	"net/http"
	"strings"

	"syncq/common"
	"syncq/configs"
	"syncq/ratelimit"
)

type Adapter interface {
	Name() string
	// Send delivers an already-transformed payload to the destination.
	Send(ctx context.Context, payload map[string]any) common.Outcome
	// Test performs a lightweight connectivity check against the destination.
	Test(ctx context.Context) common.Outcome
}

// NewRegistry builds all destination adapters over a shared HTTP client
// and rate limiter.
func NewRegistry(appConfigs *configs.AppConfigs, limiter *ratelimit.Limiter) map[string]Adapter {
	httpClient := &http.Client{Timeout: appConfigs.Destinations.CallTimeout}

	return map[string]Adapter{
		common.ZapierDestination:          NewZapierAdapter(appConfigs, limiter, httpClient),
		common.CampaignMonitorDestination: NewCampaignMonitorAdapter(appConfigs, limiter, httpClient),
		common.QuickbaseDestination:       NewQuickbaseAdapter(appConfigs, limiter, httpClient),
	}
}

func errorOutcome(message string) common.Outcome {
	return common.Outcome{OK: false, Message: message}
}

func rateLimitedOutcome(apiName string, retryInSeconds int64) common.Outcome {
	return common.Outcome{
		OK:          false,
		RateLimited: true,
		Message:     rateLimitMessage(apiName, retryInSeconds),
	}
}

// destination responses are stored in result messages and activity
// logs, so only a short excerpt is kept
const responseExcerptMaxLen = 255

func readBodyExcerpt(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseExcerptMaxLen))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
