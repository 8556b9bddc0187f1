package common

// SubmissionField is one captured form field, in form order.
type SubmissionField struct {
	Id    string `json:"id"`
	Label string `json:"label"`
	Value any    `json:"value"`
}

// SubmissionEvent is the inbound event produced by the form-capture system.
type SubmissionEvent struct {
	FormId      int64             `json:"form_id"`
	FormTitle   string            `json:"form_title"`
	EntryId     string            `json:"entry_id"`
	DateCreated string            `json:"date_created"`
	Fields      []SubmissionField `json:"fields"`
}

// Outcome is the result contract between a destination adapter and the queue engine.
type Outcome struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message"`
	Cached      bool   `json:"cached,omitempty"`       // served from the relay response cache, no outbound call made
	RateLimited bool   `json:"rate_limited,omitempty"` // denied by the rate limiter before any outbound call
}

type EnqueueResponse struct {
	ItemIds []string `json:"item_ids"`
}

type QueueStatsResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

type DispatchResponse struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}

type LogEntry struct {
	Id        int64   `json:"id"`
	Timestamp int64   `json:"timestamp"`
	SyncType  string  `json:"sync_type"`
	FormId    *int64  `json:"form_id,omitempty"`
	EntryId   *string `json:"entry_id,omitempty"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
}

type LogPage struct {
	Entries []LogEntry `json:"entries"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

type StatsSummary struct {
	TotalSyncs      int     `json:"total_syncs"`
	SuccessfulSyncs int     `json:"successful_syncs"`
	FailedSyncs     int     `json:"failed_syncs"`
	SuccessRate     float64 `json:"success_rate"`
}

type DestinationStats struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Error       int     `json:"error"`
	SuccessRate float64 `json:"success_rate"`
}

type DailyStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Error   int `json:"error"`
}

type SyncStats struct {
	Summary       StatsSummary                 `json:"summary"`
	ByDestination map[string]*DestinationStats `json:"by_destination"`
	ByDate        map[string]*DailyStats       `json:"by_date"`
}

// MappingSuggestion is a human-reviewable field mapping candidate.
// Confidence never drives runtime mapping decisions.
type MappingSuggestion struct {
	FieldId       string  `json:"field_id"`
	OriginalName  string  `json:"original_name"`
	SuggestedType string  `json:"suggested_type"`
	Confidence    float64 `json:"confidence"`
}

type ErrorResponse struct {
	Code string `json:"code"`
}
