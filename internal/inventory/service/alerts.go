package service

import (
	"context"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// AlertService exposes raised alerts to operators
type AlertService struct {
	alertRepo *repository.AlertRepository
}

// NewAlertService creates a new alert service
func NewAlertService(alertRepo *repository.AlertRepository) *AlertService {
	return &AlertService{alertRepo: alertRepo}
}

// List lists alerts, most severe first
func (s *AlertService) List(ctx context.Context, filter repository.AlertFilter) ([]repository.InventoryAlert, int64, error) {
	switch filter.AlertType {
	case "", repository.AlertTypeLowStock, repository.AlertTypeExpiring:
	default:
		return nil, 0, errors.Validation(map[string]string{"type": "must be one of: low_stock, expiring"})
	}
	return s.alertRepo.List(ctx, filter)
}

// Acknowledge marks an alert as handled and returns it
func (s *AlertService) Acknowledge(ctx context.Context, id int64) (*repository.InventoryAlert, error) {
	if err := s.alertRepo.Acknowledge(ctx, id); err != nil {
		return nil, err
	}
	return s.alertRepo.GetByID(ctx, id)
}

// CountOpen counts unacknowledged alerts
func (s *AlertService) CountOpen(ctx context.Context) (int64, error) {
	return s.alertRepo.GetUnacknowledgedCount(ctx)
}
