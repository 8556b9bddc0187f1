package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/configs"
	"syncq/ratelimit"
)

// QuickbaseAdapter inserts records into a configured Quickbase table
// via the v1 records API, authenticating with a user token.
type QuickbaseAdapter struct {
	appConfigs *configs.AppConfigs
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	baseURL    string // overridable in tests, derived from the realm otherwise
}

func NewQuickbaseAdapter(appConfigs *configs.AppConfigs, limiter *ratelimit.Limiter, httpClient *http.Client) *QuickbaseAdapter {
	return &QuickbaseAdapter{
		appConfigs: appConfigs,
		limiter:    limiter,
		httpClient: httpClient,
	}
}

func (qba *QuickbaseAdapter) Name() string {
	return common.QuickbaseDestination
}

func (qba *QuickbaseAdapter) Send(ctx context.Context, payload map[string]any) common.Outcome {
	cfg := qba.appConfigs.Destinations.Quickbase
	if cfg.RealmHostname == "" || cfg.UserToken == "" || cfg.AppId == "" || cfg.TableId == "" {
		return errorOutcome("quickbase realm, token, app ID or table ID is not configured")
	}

	if allowed, retryIn := qba.limiter.Allow(common.QuickbaseDestination); !allowed {
		return rateLimitedOutcome(common.QuickbaseDestination, retryInSeconds(retryIn))
	}

	body, err := json.Marshal(map[string]any{
		"to":   cfg.TableId,
		"data": []map[string]any{payload},
	})
	if err != nil {
		log.Error().Err(err).Msg("quickbase: failed to marshal record")
		return errorOutcome("failed to serialize record: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qba.recordsURL(), bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("quickbase: failed to create request")
		return errorOutcome("failed to create request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("QB-Realm-Hostname", realmHost(cfg.RealmHostname))
	req.Header.Set("Authorization", "QB-USER-TOKEN "+cfg.UserToken)

	resp, err := qba.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("quickbase: records call failed")
		return errorOutcome("records call failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorOutcome(fmt.Sprintf("quickbase responded with status %d: %s", resp.StatusCode, readBodyExcerpt(resp)))
	}

	var result struct {
		Metadata struct {
			CreatedRecordIds []int64 `json:"createdRecordIds"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && len(result.Metadata.CreatedRecordIds) > 0 {
		return common.Outcome{OK: true, Message: fmt.Sprintf("record created: %d", result.Metadata.CreatedRecordIds[0])}
	}
	return common.Outcome{OK: true, Message: "record created"}
}

// Test fetches app details, which validates the realm, token and app ID.
func (qba *QuickbaseAdapter) Test(ctx context.Context) common.Outcome {
	cfg := qba.appConfigs.Destinations.Quickbase
	if cfg.RealmHostname == "" || cfg.UserToken == "" || cfg.AppId == "" {
		return errorOutcome("quickbase realm, token or app ID is not configured")
	}

	url := fmt.Sprintf("%s/api/v1/apps/%s", qba.apiBaseURL(), cfg.AppId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errorOutcome("failed to create request: " + err.Error())
	}
	req.Header.Set("QB-Realm-Hostname", realmHost(cfg.RealmHostname))
	req.Header.Set("Authorization", "QB-USER-TOKEN "+cfg.UserToken)

	resp, err := qba.httpClient.Do(req)
	if err != nil {
		return errorOutcome("app lookup failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return common.Outcome{OK: true, Message: "quickbase connection verified"}
	}
	return errorOutcome(fmt.Sprintf("quickbase responded with status %d: %s", resp.StatusCode, readBodyExcerpt(resp)))
}

func (qba *QuickbaseAdapter) recordsURL() string {
	return qba.apiBaseURL() + "/api/v1/records"
}

func (qba *QuickbaseAdapter) apiBaseURL() string {
	if qba.baseURL != "" {
		return qba.baseURL
	}
	realm := qba.appConfigs.Destinations.Quickbase.RealmHostname
	if !strings.HasPrefix(realm, "https://") && !strings.HasPrefix(realm, "http://") {
		realm = "https://" + realm
	}
	return strings.TrimRight(realm, "/")
}

func realmHost(realm string) string {
	realm = strings.TrimPrefix(realm, "https://")
	realm = strings.TrimPrefix(realm, "http://")
	return strings.TrimRight(realm, "/")
}
