package db

type NewQueueItem struct {
	Id          string
	Destination string
	Payload     string
	Priority    int
	FormId      *int64
	EntryId     *string
	CreatedAt   int64
	ScheduledAt int64
}

// ClaimedItem is a queue item atomically flipped to processing,
// with attempts already counting the claim.
type ClaimedItem struct {
	Id          string
	Destination string
	Payload     string
	Priority    int
	Attempts    int
	FormId      *int64
	EntryId     *string
	CreatedAt   int64
}

type ItemDetails struct {
	Id            string
	Destination   string
	Payload       string
	Priority      int
	Status        int
	Attempts      int
	CreatedAt     int64
	ScheduledAt   int64
	ProcessedAt   *int64
	CompletedAt   *int64
	FailedAt      *int64
	ResultMessage *string
}

type NewLogEntry struct {
	Timestamp int64
	SyncType  string
	FormId    *int64
	EntryId   *string
	Status    string
	Message   string
}

type LogFilter struct {
	SyncType string // empty matches all
	Status   string // empty matches all
	Search   string // substring match on message
	SinceMs  int64  // zero matches all
	Limit    int
	Offset   int
}

// LogStatsRow is one (sync_type, status, day) bucket of the activity log.
type LogStatsRow struct {
	SyncType string
	Status   string
	Count    int
	Day      string // YYYY-MM-DD
}

type FieldMapping struct {
	FormId     int64   `json:"form_id"`
	FieldId    string  `json:"field_id"`
	Platform   string  `json:"platform"`
	MappedType string  `json:"mapped_type"`
	Confidence float64 `json:"confidence"`
	IsActive   bool    `json:"is_active"`
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
}
