package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"syncq/adapters"
	"syncq/common"
	"syncq/configs"
	"syncq/db"
	"syncq/metrics"
	"syncq/services"
)

const testApiKey = "test-secret"

type stubAdapter struct {
	name string
}

func (sa stubAdapter) Name() string { return sa.name }

func (sa stubAdapter) Send(ctx context.Context, payload map[string]any) common.Outcome {
	return common.Outcome{OK: true, Message: "delivered"}
}

func (sa stubAdapter) Test(ctx context.Context) common.Outcome {
	return common.Outcome{OK: true, Message: "connection verified"}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "syncq-test.db")
	applyTestSchema(t, dbPath)

	appConfigs := configs.NewAppConfig()
	appConfigs.MetricsEnabled = false
	appConfigs.Destinations.Zapier.WebhookURL = "https://hooks.zapier.test/1"
	appConfigs.Destinations.CampaignMonitor.ApiKey = "key"
	appConfigs.Destinations.CampaignMonitor.ListId = "list-1"

	syncRepo, err := db.NewSQLiteRepo(dbPath, appConfigs)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { syncRepo.Close() })

	registry := map[string]adapters.Adapter{
		common.ZapierDestination:          stubAdapter{name: common.ZapierDestination},
		common.CampaignMonitorDestination: stubAdapter{name: common.CampaignMonitorDestination},
		common.QuickbaseDestination:       stubAdapter{name: common.QuickbaseDestination},
	}

	metricsService := metrics.NewMetricsService(false)
	queueService := services.NewQueueService(syncRepo, registry, appConfigs, metricsService)
	ingestService := services.NewIngestService(queueService, syncRepo, appConfigs)
	activityService := services.NewActivityService(syncRepo, appConfigs, metricsService)
	mappingsService := services.NewMappingsService(syncRepo)
	monitoringService := services.NewMonitoringService(syncRepo)
	testService := services.NewTestService(registry)

	router := NewRouter(queueService, ingestService, activityService, mappingsService, monitoringService, testService, appConfigs, testApiKey)
	server := httptest.NewServer(router.NewRouter())
	t.Cleanup(server.Close)
	return server
}

func applyTestSchema(t *testing.T, dbPath string) {
	t.Helper()

	schema, err := os.ReadFile(filepath.Join("..", "db", "migrations", "0001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer conn.Close()

	for _, statement := range strings.Split(string(schema), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := conn.Exec(statement); err != nil {
			t.Fatalf("failed to apply schema statement %q: %v", statement, err)
		}
	}
}

func doRequest(t *testing.T, method string, url string, body any, apiKey string) *http.Response {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatal(err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func eventBody() map[string]any {
	return map[string]any{
		"form_id":      12,
		"form_title":   "Contact Us",
		"entry_id":     "345",
		"date_created": "2026-08-20 10:30:00",
		"fields": []map[string]any{
			{"id": "1", "label": "Email", "value": "jane@acme.test"},
		},
	}
}

func TestHealthcheck(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/healthcheck", nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestApiRequiresApiKey(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/queue/stats", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without API key, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/queue/stats", nil, "wrong-key")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong API key, got %d", resp.StatusCode)
	}
}

func TestAcceptEventAndDispatch(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodPost, server.URL+"/api/v1/events", eventBody(), testApiKey)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var enqueued common.EnqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&enqueued); err != nil {
		t.Fatal(err)
	}
	// zapier and campaign monitor are configured in the test fixture
	if len(enqueued.ItemIds) != 2 {
		t.Fatalf("expected 2 items, got %v", enqueued.ItemIds)
	}

	resp = doRequest(t, http.MethodPost, server.URL+"/api/v1/queue/dispatch?limit=10", nil, testApiKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var dispatched common.DispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&dispatched); err != nil {
		t.Fatal(err)
	}
	if dispatched.Claimed != 2 || dispatched.Completed != 2 {
		t.Errorf("expected both items completed, got %+v", dispatched)
	}

	resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/queue/stats", nil, testApiKey)
	var stats common.QueueStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Completed != 2 {
		t.Errorf("unexpected queue stats %+v", stats)
	}

	resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/logs", nil, testApiKey)
	var page common.LogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Errorf("expected 2 activity log entries, got %d", page.Total)
	}
}

func TestAcceptEventRejectsInvalidBody(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/events", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-API-Key", testApiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	var errResp common.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != common.ErrCodeBadRequestInvalidBody {
		t.Errorf("unexpected error code %s", errResp.Code)
	}
}

func TestRelayWebhookIsOpen(t *testing.T) {
	server := newTestServer(t)

	payload := map[string]any{"form_id": 12, "entry_id": "345", "Email": "jane@acme.test"}
	resp := doRequest(t, http.MethodPost, server.URL+"/webhooks/relay", payload, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 without API key, got %d", resp.StatusCode)
	}

	var enqueued common.EnqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&enqueued); err != nil {
		t.Fatal(err)
	}
	// only campaign monitor is configured besides the webhook destination
	if len(enqueued.ItemIds) != 1 {
		t.Errorf("expected 1 relayed item, got %v", enqueued.ItemIds)
	}
}

func TestItemDetailsNotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/queue/items/nope", nil, testApiKey)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDestinationTest(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodPost, server.URL+"/api/v1/destinations/zapier/test", nil, testApiKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var outcome common.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatal(err)
	}
	if !outcome.OK || outcome.Message != "connection verified" {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	resp = doRequest(t, http.MethodPost, server.URL+"/api/v1/destinations/bogus/test", nil, testApiKey)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown destination, got %d", resp.StatusCode)
	}
}

func TestSuggestionsAndMappings(t *testing.T) {
	server := newTestServer(t)

	body := map[string]any{
		"platform": common.ZapierDestination,
		"fields": []map[string]any{
			{"id": "1", "label": "Email", "value": "jane@acme.test"},
			{"id": "2", "label": "Notes", "value": "free text"},
		},
	}
	resp := doRequest(t, http.MethodPost, server.URL+"/api/v1/forms/12/suggestions", body, testApiKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var suggestions []common.MappingSuggestion
	if err := json.NewDecoder(resp.Body).Decode(&suggestions); err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 1 || suggestions[0].SuggestedType != "email" {
		t.Fatalf("unexpected suggestions %+v", suggestions)
	}

	resp = doRequest(t, http.MethodGet, server.URL+fmt.Sprintf("/api/v1/forms/12/mappings?platform=%s", common.ZapierDestination), nil, testApiKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var mappings []db.FieldMapping
	if err := json.NewDecoder(resp.Body).Decode(&mappings); err != nil {
		t.Fatal(err)
	}
	if len(mappings) != 1 || mappings[0].MappedType != "email" {
		t.Errorf("unexpected mappings %+v", mappings)
	}
}

func TestSyncStatsEndpoint(t *testing.T) {
	server := newTestServer(t)

	// enqueue and dispatch so there is something to aggregate
	doRequest(t, http.MethodPost, server.URL+"/api/v1/events", eventBody(), testApiKey)
	doRequest(t, http.MethodPost, server.URL+"/api/v1/queue/dispatch", nil, testApiKey)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/stats?days=7", nil, testApiKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats common.SyncStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Summary.TotalSyncs != 2 || stats.Summary.SuccessRate != 100 {
		t.Errorf("unexpected stats %+v", stats.Summary)
	}

	resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/stats/export?format=csv", nil, testApiKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/csv" {
		t.Errorf("expected text/csv, got %s", got)
	}
}
