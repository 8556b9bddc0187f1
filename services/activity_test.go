package services

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"syncq/common"
	"syncq/db"
	"syncq/metrics"
)

func newTestActivityService(t *testing.T) (*ActivityService, *db.SyncRepo) {
	t.Helper()
	queueService, syncRepo := newTestQueueService(t, &fakeAdapter{name: common.ZapierDestination})
	return NewActivityService(syncRepo, queueService.appConfigs, metrics.NewMetricsService(false)), syncRepo
}

func seedLogEntries(t *testing.T, syncRepo *db.SyncRepo) {
	t.Helper()
	nowMs := time.Now().UnixMilli()

	entries := []db.NewLogEntry{
		{Timestamp: nowMs - 4000, SyncType: common.ZapierDestination, Status: common.SuccessLogStatus, Message: "webhook delivered"},
		{Timestamp: nowMs - 3000, SyncType: common.ZapierDestination, Status: common.ErrorLogStatus, Message: "webhook call failed"},
		{Timestamp: nowMs - 2000, SyncType: common.QuickbaseDestination, Status: common.SuccessLogStatus, Message: "record created"},
		{Timestamp: nowMs - 1000, SyncType: common.ZapierDestination, Status: common.RetryLogStatus, Message: "attempt 1 failed"},
	}
	for i := range entries {
		if err := syncRepo.InsertLogEntry(&entries[i], context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGetStatsExcludesRetries(t *testing.T) {
	activityService, syncRepo := newTestActivityService(t)
	seedLogEntries(t, syncRepo)

	stats, err := activityService.GetStats(7, context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// retry entries are informational only
	if stats.Summary.TotalSyncs != 3 {
		t.Errorf("expected 3 counted syncs, got %d", stats.Summary.TotalSyncs)
	}
	if stats.Summary.SuccessfulSyncs != 2 || stats.Summary.FailedSyncs != 1 {
		t.Errorf("unexpected summary %+v", stats.Summary)
	}
	if stats.Summary.SuccessRate != 66.67 {
		t.Errorf("expected success rate 66.67, got %v", stats.Summary.SuccessRate)
	}

	zapier := stats.ByDestination[common.ZapierDestination]
	if zapier == nil || zapier.Total != 2 || zapier.Success != 1 || zapier.SuccessRate != 50 {
		t.Errorf("unexpected zapier stats %+v", zapier)
	}

	if len(stats.ByDate) == 0 {
		t.Error("expected per-day buckets")
	}
}

func TestExportCSV(t *testing.T) {
	activityService, syncRepo := newTestActivityService(t)
	seedLogEntries(t, syncRepo)

	var sb strings.Builder
	if err := activityService.ExportCSV(&sb, 7, context.Background()); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header plus 4 entries, got %d rows", len(records))
	}
	if records[0][2] != "sync_type" {
		t.Errorf("unexpected header %v", records[0])
	}
	// newest first
	if records[1][6] != "attempt 1 failed" {
		t.Errorf("expected newest entry first, got %v", records[1])
	}
}

func TestPurgeLogs(t *testing.T) {
	activityService, syncRepo := newTestActivityService(t)
	ctx := context.Background()
	nowMs := time.Now().UnixMilli()

	old := db.NewLogEntry{Timestamp: nowMs - 40*24*60*60*1000, SyncType: common.ZapierDestination, Status: common.SuccessLogStatus, Message: "ancient"}
	recent := db.NewLogEntry{Timestamp: nowMs - 1000, SyncType: common.ZapierDestination, Status: common.SuccessLogStatus, Message: "recent"}
	if err := syncRepo.InsertLogEntry(&old, ctx); err != nil {
		t.Fatal(err)
	}
	if err := syncRepo.InsertLogEntry(&recent, ctx); err != nil {
		t.Fatal(err)
	}

	deleted, err := activityService.PurgeLogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 purged entry, got %d", deleted)
	}

	page, _ := syncRepo.SelectLogEntries(&db.LogFilter{Limit: 10}, ctx)
	if page.Total != 1 || page.Entries[0].Message != "recent" {
		t.Errorf("expected only the recent entry to survive, got %+v", page)
	}
}
