package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/events"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// acknowledgedAlertRetention is how long acknowledged alerts are kept
const acknowledgedAlertRetention = 90 * 24 * time.Hour

var twoDec = decimal.NewFromInt(2)

// AlertScanner raises low-stock and expiry alerts. Duplicates are suppressed
// by the store while an unacknowledged alert of the same kind exists.
type AlertScanner struct {
	reportRepo       *repository.ReportRepository
	alertRepo        *repository.AlertRepository
	publisher        *events.StockEventPublisher
	expiryWindowDays int
	now              func() time.Time
	logger           *logger.Logger
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	reportRepo *repository.ReportRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.StockEventPublisher,
	expiryWindowDays int,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		reportRepo:       reportRepo,
		alertRepo:        alertRepo,
		publisher:        publisher,
		expiryWindowDays: expiryWindowDays,
		now:              time.Now,
		logger:           log.WithComponent("alert_scanner"),
	}
}

// ScanAll runs all alert scans. Logs errors but continues scanning.
func (s *AlertScanner) ScanAll(ctx context.Context) error {
	scanners := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"low_stock", s.scanLowStock},
		{"expiring", s.scanExpiring},
		{"resolve_cleared", s.resolveCleared},
		{"purge_acknowledged", s.purgeAcknowledged},
	}

	var lastErr error
	for _, scanner := range scanners {
		if err := scanner.fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("scanner", scanner.name).Msg("alert scan failed")
			lastErr = err
		}
	}

	return lastErr
}

// LowStockSeverity grades how far below its reorder point an item is
func LowStockSeverity(b *repository.StockBalance) string {
	switch {
	case b.QuantityOnHand.IsZero():
		return repository.SeverityCritical
	case b.QuantityOnHand.Mul(twoDec).LessThan(b.ReorderPoint):
		return repository.SeverityHigh
	default:
		return repository.SeverityMedium
	}
}

// ExpirySeverity grades an expiring line by the days left until it expires
func ExpirySeverity(daysUntil int) string {
	switch {
	case daysUntil < 0:
		return repository.SeverityCritical
	case daysUntil <= 2:
		return repository.SeverityHigh
	default:
		return repository.SeverityMedium
	}
}

// CheckLowStock raises alerts for balances a ledger write has just left at
// or below their reorder point. It is safe on a nil scanner.
func (s *AlertScanner) CheckLowStock(ctx context.Context, balances []repository.StockBalance) {
	if s == nil {
		return
	}
	for i := range balances {
		if balances[i].IsLow() {
			s.raiseLowStock(ctx, &balances[i])
		}
	}
}

func (s *AlertScanner) raiseLowStock(ctx context.Context, b *repository.StockBalance) {
	alert := &repository.InventoryAlert{
		AlertType: repository.AlertTypeLowStock,
		ItemID:    b.ItemID,
		ItemName:  b.ItemName,
		Severity:  LowStockSeverity(b),
		Message: fmt.Sprintf("%s is low on stock (%s on hand, reorder point %s)",
			b.ItemName, b.QuantityOnHand.String(), b.ReorderPoint.String()),
	}
	s.raise(ctx, alert)
}

func (s *AlertScanner) raise(ctx context.Context, alert *repository.InventoryAlert) {
	created, err := s.alertRepo.CreateIfAbsent(ctx, alert)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("item_id", alert.ItemID).
			Str("alert_type", alert.AlertType).
			Msg("failed to create alert")
		return
	}
	if !created {
		return
	}

	s.logger.Info().
		Int64("alert_id", alert.ID).
		Int64("item_id", alert.ItemID).
		Str("alert_type", alert.AlertType).
		Str("severity", alert.Severity).
		Msg("alert raised")
	s.publisher.PublishAlertRaised(ctx, alert)
}

// scanLowStock raises an alert for every item at or below its reorder point
func (s *AlertScanner) scanLowStock(ctx context.Context) error {
	items, err := s.reportRepo.LowStock(ctx)
	if err != nil {
		return fmt.Errorf("scanLowStock: list low stock: %w", err)
	}

	for _, item := range items {
		s.raiseLowStock(ctx, &repository.StockBalance{
			ItemID:         item.ItemID,
			ItemName:       item.ItemName,
			QuantityOnHand: item.QuantityOnHand,
			ReorderPoint:   item.ReorderPoint,
		})
	}

	return nil
}

// scanExpiring raises an alert for every delivery line inside the expiry
// window, past-due lines included
func (s *AlertScanner) scanExpiring(ctx context.Context) error {
	today := repository.NewDate(s.now())

	lines, err := s.reportRepo.Expirations(ctx, today, s.expiryWindowDays, true)
	if err != nil {
		return fmt.Errorf("scanExpiring: list expirations: %w", err)
	}

	for _, line := range lines {
		daysUntil := int(line.ExpirationDate.Sub(today.Time).Hours() / 24)

		var msg string
		if daysUntil < 0 {
			msg = fmt.Sprintf("%s from delivery %d expired on %s", line.ItemName, line.DeliveryID, line.ExpirationDate)
		} else {
			msg = fmt.Sprintf("%s from delivery %d expires in %d days (%s)", line.ItemName, line.DeliveryID, daysUntil, line.ExpirationDate)
		}

		lineID := line.DeliveryLineID
		s.raise(ctx, &repository.InventoryAlert{
			AlertType:      repository.AlertTypeExpiring,
			ItemID:         line.ItemID,
			ItemName:       line.ItemName,
			DeliveryLineID: &lineID,
			Severity:       ExpirySeverity(daysUntil),
			Message:        msg,
		})
	}

	return nil
}

// resolveCleared acknowledges low-stock alerts whose item has been restocked
func (s *AlertScanner) resolveCleared(ctx context.Context) error {
	resolved, err := s.alertRepo.ResolveLowStock(ctx)
	if err != nil {
		return fmt.Errorf("resolveCleared: %w", err)
	}
	if resolved > 0 {
		s.logger.Info().Int64("resolved", resolved).Msg("cleared low stock alerts resolved")
	}
	return nil
}

func (s *AlertScanner) purgeAcknowledged(ctx context.Context) error {
	if _, err := s.alertRepo.DeleteOld(ctx, acknowledgedAlertRetention); err != nil {
		return fmt.Errorf("purgeAcknowledged: %w", err)
	}
	return nil
}
