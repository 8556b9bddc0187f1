package common

const (
	Version = "1.2.0"

	// destinations:
	ZapierDestination          = "zapier"
	CampaignMonitorDestination = "campaign_monitor"
	QuickbaseDestination       = "quickbase"

	// queue item statuses:
	PendingStatus    = 0
	ProcessingStatus = 1
	CompletedStatus  = 2
	FailedStatus     = 3

	// activity log statuses:
	SuccessLogStatus   = "success"
	ErrorLogStatus     = "error"
	RetryLogStatus     = "retry"
	RateLimitLogStatus = "rate_limit"

	// activity log sync types that are not destinations:
	WebhookSyncType   = "webhook"
	RateLimitSyncType = "rate_limit"

	// priorities: lower value is dispatched first
	HighestPriority = 1
	LowestPriority  = 10
	DefaultPriority = 5

	// OS names as reported by runtime.GOOS:
	WindowsOS = "windows"
	MacOS     = "darwin"
	LinuxOS   = "linux"

	// payload metadata keys:
	FormIdKey      = "form_id"
	FormTitleKey   = "form_title"
	EntryIdKey     = "entry_id"
	DateCreatedKey = "date_created"
	FieldsKey      = "fields"
)

var KnownDestinations = map[string]bool{
	ZapierDestination:          true,
	CampaignMonitorDestination: true,
	QuickbaseDestination:       true,
}

func StatusName(status int) string {
	switch status {
	case PendingStatus:
		return "pending"
	case ProcessingStatus:
		return "processing"
	case CompletedStatus:
		return "completed"
	case FailedStatus:
		return "failed"
	default:
		return "unknown"
	}
}
