package configs

import (
	"os"
	"strconv"
	"time"
)

// AppConfigs is built once at startup and passed into every component.
// Nothing reads configuration ambiently after this point.
type AppConfigs struct {
	Destinations    DestinationsConfig
	RateLimit       RateLimitConfig
	Queue           QueueConfig
	LogsRetentionMs int64 // activity log entries older than this are purged
	RelayCacheTtlMs int64 // TTL for the relay response cache
	JobsIntervals   JobsIntervals
	ServerConfig    ServerConfig
	MetricsEnabled  bool
}

type DestinationsConfig struct {
	Zapier          ZapierConfig
	CampaignMonitor CampaignMonitorConfig
	Quickbase       QuickbaseConfig
	CallTimeout     time.Duration // per outbound HTTP call
}

type ZapierConfig struct {
	WebhookURL string
}

type CampaignMonitorConfig struct {
	ApiKey string
	ListId string
}

type QuickbaseConfig struct {
	RealmHostname string
	UserToken     string
	AppId         string
	TableId       string
}

type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	PeriodMs    int64
}

type QueueConfig struct {
	ProcessingEnabled   bool
	MaxDeliveryAttempts int
	BaseRetryDelayMs    int64 // retry delay for attempt N is 2^N * base
	DispatchBatchSize   int
	MaxAdHocBatchSize   int   // cap for manual "process now" requests
	MaxProcessingTimeMs int64 // processing items older than this are considered stale
	RetentionMs         int64 // terminal items older than this are purged
}

type JobsIntervals struct {
	DispatchMs           int64 // recurring queue dispatch
	StaleItemsReclaimMs  int64
	TerminalItemsPurgeMs int64
	LogsPurgeMs          int64
	QueueDepthMetricsMs  int64
	DbOptimizationMs     int64
}

type ServerConfig struct {
	Addr     string
	Timeouts ServerTimeouts
}

type ServerTimeouts struct {
	Handle     time.Duration
	Write      time.Duration
	Read       time.Duration
	ReadHeader time.Duration
	Idle       time.Duration
}

func NewAppConfig() *AppConfigs {
	return &AppConfigs{
		Destinations: DestinationsConfig{
			Zapier: ZapierConfig{
				WebhookURL: os.Getenv("SYNCQ_ZAPIER_WEBHOOK_URL"),
			},
			CampaignMonitor: CampaignMonitorConfig{
				ApiKey: os.Getenv("SYNCQ_CAMPAIGN_MONITOR_API_KEY"),
				ListId: os.Getenv("SYNCQ_CAMPAIGN_MONITOR_LIST_ID"),
			},
			Quickbase: QuickbaseConfig{
				RealmHostname: os.Getenv("SYNCQ_QUICKBASE_REALM_HOSTNAME"),
				UserToken:     os.Getenv("SYNCQ_QUICKBASE_USER_TOKEN"),
				AppId:         os.Getenv("SYNCQ_QUICKBASE_APP_ID"),
				TableId:       os.Getenv("SYNCQ_QUICKBASE_TABLE_ID"),
			},
			CallTimeout: time.Duration(envInt64("SYNCQ_CALL_TIMEOUT_MS", 30*1000)) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:     envBool("SYNCQ_RATE_LIMIT_ENABLED", true),
			MaxRequests: envInt("SYNCQ_RATE_LIMIT_MAX_REQUESTS", 10),
			PeriodMs:    envInt64("SYNCQ_RATE_LIMIT_PERIOD_MS", 60*1000),
		},
		Queue: QueueConfig{
			ProcessingEnabled:   envBool("SYNCQ_QUEUE_PROCESSING_ENABLED", true),
			MaxDeliveryAttempts: envInt("SYNCQ_MAX_DELIVERY_ATTEMPTS", 3),
			BaseRetryDelayMs:    envInt64("SYNCQ_BASE_RETRY_DELAY_MS", 60*1000), // 2, 4, 8 minutes for attempts 1, 2, 3
			DispatchBatchSize:   envInt("SYNCQ_DISPATCH_BATCH_SIZE", 10),
			MaxAdHocBatchSize:   20,
			MaxProcessingTimeMs: envInt64("SYNCQ_MAX_PROCESSING_TIME_MS", 60*1000),
			RetentionMs:         int64(envInt("SYNCQ_QUEUE_RETENTION_DAYS", 7)) * 24 * 60 * 60 * 1000,
		},
		LogsRetentionMs: int64(envInt("SYNCQ_LOG_RETENTION_DAYS", 30)) * 24 * 60 * 60 * 1000,
		RelayCacheTtlMs: 5 * 60 * 1000,
		JobsIntervals: JobsIntervals{
			DispatchMs:           envInt64("SYNCQ_DISPATCH_INTERVAL_MS", 5*60*1000),
			StaleItemsReclaimMs:  1 * 60 * 1000,
			TerminalItemsPurgeMs: 60 * 60 * 1000,
			LogsPurgeMs:          6 * 60 * 60 * 1000,
			QueueDepthMetricsMs:  30 * 1000,
			DbOptimizationMs:     24 * 60 * 60 * 1000,
		},
		ServerConfig: ServerConfig{
			Addr: envString("SYNCQ_ADDR", "localhost:8080"),
			Timeouts: ServerTimeouts{
				Handle:     60 * time.Second,
				Write:      65 * time.Second,
				Read:       65 * time.Second,
				ReadHeader: 10 * time.Second,
				Idle:       5 * time.Minute,
			},
		},
		MetricsEnabled: envBool("SYNCQ_METRICS_ENABLED", true),
	}
}

func envString(key string, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func envInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func envBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
