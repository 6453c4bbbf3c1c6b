package store

import (
	"context"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

// AlarmStore is the persistence contract consumed by the alarm cache.
type AlarmStore interface {
	SaveSnapshot(ctx context.Context, records map[string]*models.AlarmRecord, removed []string) error
	LoadRecords(ctx context.Context) (map[string]*models.AlarmRecord, error)
}

// AlertStore is the persistence contract consumed by the rules engine.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
	ResolveAlert(ctx context.Context, alert *models.Alert) error
	LoadActiveAlerts(ctx context.Context) ([]*models.Alert, error)
	ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error)
}
