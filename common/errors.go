package common

const (
	ErrCodeBadRequestEmptyPayload       = "bad_request.payload.empty"
	ErrCodeBadRequestUnknownDestination = "bad_request.destination.unknown"
	ErrCodeBadRequestInvalidBody        = "bad_request.body.invalid"
	ErrCodeMissingRequiredEmail         = "transform.missing_required_field.email"
	ErrCodeConfigurationIncomplete      = "configuration.incomplete"
	ErrCodeRateLimited                  = "rate_limited"
	ErrCodeUnauthorized                 = "unauthorized"
	ErrCodeNotFoundItem                 = "not_found.item"
	ErrCodeInternal                     = "internal"
)

var (
	ErrBadRequestEmptyPayload       = SyncError{Code: ErrCodeBadRequestEmptyPayload}
	ErrBadRequestUnknownDestination = SyncError{Code: ErrCodeBadRequestUnknownDestination}
	ErrBadRequestInvalidBody        = SyncError{Code: ErrCodeBadRequestInvalidBody}
	ErrMissingRequiredEmail         = SyncError{Code: ErrCodeMissingRequiredEmail}
	ErrConfigurationIncomplete      = SyncError{Code: ErrCodeConfigurationIncomplete}
	ErrNotFoundItem                 = SyncError{Code: ErrCodeNotFoundItem}
	ErrInternal                     = SyncError{Code: ErrCodeInternal}
)

type SyncError struct {
	Code string
}

func (se SyncError) Error() string {
	return se.Code
}
