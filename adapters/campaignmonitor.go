package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"syncq/common"
	"syncq/configs"
	"syncq/ratelimit"
)

const campaignMonitorBaseURL = "https://api.createsend.com/api/v3.2"

// CampaignMonitorAdapter adds subscribers to a configured Campaign
// Monitor list via the createsend API, authenticating with HTTP Basic
// auth (API key as username).
type CampaignMonitorAdapter struct {
	appConfigs *configs.AppConfigs
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	baseURL    string
}

func NewCampaignMonitorAdapter(appConfigs *configs.AppConfigs, limiter *ratelimit.Limiter, httpClient *http.Client) *CampaignMonitorAdapter {
	return &CampaignMonitorAdapter{
		appConfigs: appConfigs,
		limiter:    limiter,
		httpClient: httpClient,
		baseURL:    campaignMonitorBaseURL,
	}
}

func (cma *CampaignMonitorAdapter) Name() string {
	return common.CampaignMonitorDestination
}

func (cma *CampaignMonitorAdapter) Send(ctx context.Context, payload map[string]any) common.Outcome {
	cfg := cma.appConfigs.Destinations.CampaignMonitor
	if cfg.ApiKey == "" || cfg.ListId == "" {
		return errorOutcome("campaign monitor API key or list ID is not configured")
	}

	if allowed, retryIn := cma.limiter.Allow(common.CampaignMonitorDestination); !allowed {
		return rateLimitedOutcome(common.CampaignMonitorDestination, retryInSeconds(retryIn))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("campaignmonitor: failed to marshal subscriber")
		return errorOutcome("failed to serialize subscriber: " + err.Error())
	}

	url := fmt.Sprintf("%s/subscribers/%s.json", cma.baseURL, cfg.ListId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("campaignmonitor: failed to create request")
		return errorOutcome("failed to create request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cfg.ApiKey, "x")

	resp, err := cma.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("campaignmonitor: subscriber call failed")
		return errorOutcome("subscriber call failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		email, _ := payload["EmailAddress"].(string)
		return common.Outcome{OK: true, Message: "subscriber added: " + email}
	}
	return errorOutcome(fmt.Sprintf("campaign monitor responded with status %d: %s", resp.StatusCode, apiErrorMessage(resp)))
}

// Test fetches list details, which exercises both the API key and the
// list ID without mutating the list.
func (cma *CampaignMonitorAdapter) Test(ctx context.Context) common.Outcome {
	cfg := cma.appConfigs.Destinations.CampaignMonitor
	if cfg.ApiKey == "" || cfg.ListId == "" {
		return errorOutcome("campaign monitor API key or list ID is not configured")
	}

	url := fmt.Sprintf("%s/lists/%s.json", cma.baseURL, cfg.ListId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errorOutcome("failed to create request: " + err.Error())
	}
	req.SetBasicAuth(cfg.ApiKey, "x")

	resp, err := cma.httpClient.Do(req)
	if err != nil {
		return errorOutcome("list lookup failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return common.Outcome{OK: true, Message: "campaign monitor connection verified"}
	}
	return errorOutcome(fmt.Sprintf("campaign monitor responded with status %d: %s", resp.StatusCode, apiErrorMessage(resp)))
}

// apiErrorMessage extracts the {"Message": ...} body Campaign Monitor
// returns on errors, falling back to a raw excerpt.
func apiErrorMessage(resp *http.Response) string {
	excerpt := readBodyExcerpt(resp)

	var apiError struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(excerpt), &apiError); err == nil && apiError.Message != "" {
		return apiError.Message
	}
	return excerpt
}
