package services

import (
	"context"
	"time"

	"syncq/common"
	"syncq/db"
	"syncq/mapper"
)

// MappingsService produces and persists field mapping suggestions for
// human review.
type MappingsService struct {
	syncRepo *db.SyncRepo
}

func NewMappingsService(syncRepo *db.SyncRepo) *MappingsService {
	return &MappingsService{syncRepo: syncRepo}
}

// GenerateSuggestions runs field detection over a form's fields,
// records the candidates for the given platform and returns them sorted
// by confidence. Suggestions are advisory and never alter how payloads
// are mapped at dispatch time.
func (ms *MappingsService) GenerateSuggestions(formId int64, platform string, fields []common.SubmissionField, ctx context.Context) ([]common.MappingSuggestion, error) {
	if len(fields) == 0 {
		return nil, common.ErrBadRequestEmptyPayload
	}
	if !common.KnownDestinations[platform] {
		return nil, common.ErrBadRequestUnknownDestination
	}

	suggestions := mapper.Suggestions(fields)

	nowMs := time.Now().UnixMilli()
	for _, suggestion := range suggestions {
		mapping := db.FieldMapping{
			FormId:     formId,
			FieldId:    suggestion.FieldId,
			Platform:   platform,
			MappedType: suggestion.SuggestedType,
			Confidence: suggestion.Confidence,
			IsActive:   true,
			CreatedAt:  nowMs,
			UpdatedAt:  nowMs,
		}
		if err := ms.syncRepo.UpsertFieldMapping(&mapping, ctx); err != nil {
			return nil, err
		}
	}

	return suggestions, nil
}

func (ms *MappingsService) ListMappings(formId int64, platform string, ctx context.Context) ([]db.FieldMapping, error) {
	if !common.KnownDestinations[platform] {
		return nil, common.ErrBadRequestUnknownDestination
	}
	return ms.syncRepo.SelectFieldMappings(formId, platform, ctx)
}
