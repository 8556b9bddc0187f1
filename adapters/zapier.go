package adapters

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/configs"
	"syncq/ratelimit"
)

// ZapierAdapter posts payloads to a configured Zapier webhook URL.
// Identical consecutive deliveries within the cache TTL are served from
// a response cache without an outbound call, so retries of the same
// payload don't burn webhook quota.
type ZapierAdapter struct {
	appConfigs *configs.AppConfigs
	limiter    *ratelimit.Limiter
	httpClient *http.Client

	cacheMu sync.Mutex
	cache   map[string]cachedResponse
	now     func() time.Time
}

type cachedResponse struct {
	outcome  common.Outcome
	cachedAt time.Time
}

func NewZapierAdapter(appConfigs *configs.AppConfigs, limiter *ratelimit.Limiter, httpClient *http.Client) *ZapierAdapter {
	if webhookURL := appConfigs.Destinations.Zapier.WebhookURL; webhookURL != "" {
		if parsed, err := url.Parse(webhookURL); err != nil || !strings.HasSuffix(parsed.Hostname(), "zapier.com") {
			log.Warn().Str("webhook_url", webhookURL).Msg("zapier: webhook URL does not point to a zapier.com host")
		}
	}
	return &ZapierAdapter{
		appConfigs: appConfigs,
		limiter:    limiter,
		httpClient: httpClient,
		cache:      make(map[string]cachedResponse),
		now:        time.Now,
	}
}

func (za *ZapierAdapter) Name() string {
	return common.ZapierDestination
}

func (za *ZapierAdapter) Send(ctx context.Context, payload map[string]any) common.Outcome {
	webhookURL := za.appConfigs.Destinations.Zapier.WebhookURL
	if webhookURL == "" {
		return errorOutcome("zapier webhook URL is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("zapier: failed to marshal payload")
		return errorOutcome("failed to serialize payload: " + err.Error())
	}

	cacheKey := responseCacheKey(webhookURL, body)
	if outcome, ok := za.cachedOutcome(cacheKey); ok {
		return outcome
	}

	if allowed, retryIn := za.limiter.Allow(common.ZapierDestination); !allowed {
		return rateLimitedOutcome(common.ZapierDestination, retryInSeconds(retryIn))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("zapier: failed to create request")
		return errorOutcome("failed to create request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := za.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("zapier: webhook call failed")
		return errorOutcome("webhook call failed: " + err.Error())
	}
	defer resp.Body.Close()

	outcome := outcomeFromResponse(resp, "webhook delivered")
	if outcome.OK {
		za.storeOutcome(cacheKey, outcome)
	}
	return outcome
}

func (za *ZapierAdapter) Test(ctx context.Context) common.Outcome {
	return za.Send(ctx, map[string]any{
		"test":      true,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (za *ZapierAdapter) cachedOutcome(cacheKey string) (common.Outcome, bool) {
	ttl := time.Duration(za.appConfigs.RelayCacheTtlMs) * time.Millisecond

	za.cacheMu.Lock()
	defer za.cacheMu.Unlock()

	cached, ok := za.cache[cacheKey]
	if !ok {
		return common.Outcome{}, false
	}
	if za.now().Sub(cached.cachedAt) >= ttl {
		delete(za.cache, cacheKey)
		return common.Outcome{}, false
	}

	outcome := cached.outcome
	outcome.Cached = true
	outcome.Message = "(cached) " + outcome.Message
	return outcome, true
}

func (za *ZapierAdapter) storeOutcome(cacheKey string, outcome common.Outcome) {
	za.cacheMu.Lock()
	defer za.cacheMu.Unlock()
	za.cache[cacheKey] = cachedResponse{outcome: outcome, cachedAt: za.now()}
}

func responseCacheKey(url string, body []byte) string {
	sum := md5.Sum(append([]byte(url), body...))
	return hex.EncodeToString(sum[:])
}

func outcomeFromResponse(resp *http.Response, successMessage string) common.Outcome {
	body := readBodyExcerpt(resp)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		message := successMessage
		if body != "" {
			message = fmt.Sprintf("%s: %s", successMessage, body)
		}
		return common.Outcome{OK: true, Message: message}
	}
	return errorOutcome(fmt.Sprintf("destination responded with status %d: %s", resp.StatusCode, body))
}

func retryInSeconds(retryIn time.Duration) int64 {
	seconds := int64(retryIn.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func rateLimitMessage(apiName string, retryInSeconds int64) string {
	return fmt.Sprintf("Rate limit exceeded for %s API. Limit will reset in %d seconds.", apiName, retryInSeconds)
}
