package services

import (
	"context"

	"syncq/db"
)

type MonitoringService struct {
	syncRepo *db.SyncRepo
}

func NewMonitoringService(syncRepo *db.SyncRepo) *MonitoringService {
	return &MonitoringService{
		syncRepo: syncRepo,
	}
}

func (ms *MonitoringService) IsHealthy(ctx context.Context) bool {
	err := ms.syncRepo.Ping(ctx)
	return err == nil
}
