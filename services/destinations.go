package services

import (
	"context"

	"syncq/adapters"
	"syncq/common"
)

// TestService runs on-demand connectivity checks against destinations.
type TestService struct {
	registry map[string]adapters.Adapter
}

func NewTestService(registry map[string]adapters.Adapter) *TestService {
	return &TestService{registry: registry}
}

func (ts *TestService) TestDestination(destination string, ctx context.Context) (*common.Outcome, error) {
	adapter, ok := ts.registry[destination]
	if !ok {
		return nil, common.ErrBadRequestUnknownDestination
	}
	outcome := adapter.Test(ctx)
	return &outcome, nil
}
