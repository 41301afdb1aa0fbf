package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/pkg/cache"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// ReportCacheNamespace groups every cached report. Ledger and catalog writes
// invalidate it as a whole.
const ReportCacheNamespace = "reports"

// Expiration report window bounds, in days
const (
	DefaultExpiryDays = 7
	MaxExpiryDays     = 365
)

// ReportingService serves the read-only projections over the ledger
type ReportingService struct {
	reports          *repository.ReportRepository
	deliveries       *repository.DeliveryRepository
	usage            *repository.UsageRepository
	cache            *cache.Client
	ttl              time.Duration
	expiryWindowDays int
	now              func() time.Time
	logger           *logger.Logger
}

// NewReportingService creates a new reporting service. cache may be nil.
func NewReportingService(
	reports *repository.ReportRepository,
	deliveries *repository.DeliveryRepository,
	usage *repository.UsageRepository,
	cache *cache.Client,
	ttl time.Duration,
	expiryWindowDays int,
	log *logger.Logger,
) *ReportingService {
	return &ReportingService{
		reports:          reports,
		deliveries:       deliveries,
		usage:            usage,
		cache:            cache,
		ttl:              ttl,
		expiryWindowDays: expiryWindowDays,
		now:              time.Now,
		logger:           log.WithComponent("reporting"),
	}
}

// cached serves name from the report cache, loading and storing it on a
// miss. Cache failures fall back to the store.
func cached[T any](ctx context.Context, s *ReportingService, name string, load func() (T, error)) (T, error) {
	var out T
	slot, hit, err := s.cache.GetJSON(ctx, ReportCacheNamespace, name, &out)
	if err != nil {
		s.logger.Warn().Err(err).Str("report", name).Msg("report cache read failed")
	}
	if hit {
		return out, nil
	}

	out, err = load()
	if err != nil {
		return out, err
	}

	if err := s.cache.SetJSON(ctx, slot, out, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("report", name).Msg("report cache write failed")
	}
	return out, nil
}

func (s *ReportingService) today() repository.Date {
	return repository.NewDate(s.now())
}

// LowStock lists items at or below their reorder point
func (s *ReportingService) LowStock(ctx context.Context) ([]repository.LowStockItem, error) {
	return cached(ctx, s, "low-stock", func() ([]repository.LowStockItem, error) {
		return s.reports.LowStock(ctx)
	})
}

// Expirations lists delivery lines expiring within days of today
func (s *ReportingService) Expirations(ctx context.Context, days int, includePastDue bool) ([]repository.ExpiringLine, error) {
	if days < 0 || days > MaxExpiryDays {
		return nil, errors.Validation(map[string]string{
			"days": fmt.Sprintf("must be an integer between 0 and %d", MaxExpiryDays),
		})
	}

	today := s.today()
	key := fmt.Sprintf("expirations:%s:%d:%t", today, days, includePastDue)
	return cached(ctx, s, key, func() ([]repository.ExpiringLine, error) {
		return s.reports.Expirations(ctx, today, days, includePastDue)
	})
}

// Waste lists waste records filtered by item and an inclusive date range
func (s *ReportingService) Waste(ctx context.Context, filter repository.WasteFilter) ([]repository.WasteRecord, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(filter.From.Time) {
		return nil, errors.Validation(map[string]string{"endDate": "must not be before startDate"})
	}

	key := "waste:" + optKey(filter.ItemID) + ":" + optDateKey(filter.From) + ":" + optDateKey(filter.To)
	return cached(ctx, s, key, func() ([]repository.WasteRecord, error) {
		return s.reports.Waste(ctx, filter)
	})
}

// Dashboard returns the headline counts for today
func (s *ReportingService) Dashboard(ctx context.Context) (*repository.DashboardCounts, error) {
	today := s.today()
	return cached(ctx, s, "dashboard:"+today.String(), func() (*repository.DashboardCounts, error) {
		return s.reports.Dashboard(ctx, today, s.expiryWindowDays)
	})
}

// ListUsage lists usage records, newest first
func (s *ReportingService) ListUsage(ctx context.Context, filter repository.UsageFilter) ([]repository.UsageRecord, int64, error) {
	if filter.Type != nil && *filter.Type != repository.UsageTypeManual && *filter.Type != repository.UsageTypeSale {
		return nil, 0, errors.Validation(map[string]string{"type": "must be one of: manual, sale"})
	}
	return s.usage.List(ctx, filter)
}

// ListDeliveries lists deliveries, newest first
func (s *ReportingService) ListDeliveries(ctx context.Context, filter repository.DeliveryFilter) ([]repository.Delivery, int64, error) {
	return s.deliveries.List(ctx, filter)
}

// GetDelivery gets a delivery with its lines
func (s *ReportingService) GetDelivery(ctx context.Context, id int64) (*repository.Delivery, error) {
	return s.deliveries.GetByID(ctx, id)
}

// Reconcile compares stored balances with the ledger. When itemID is set
// the item's movement history is also replayed in order.
func (s *ReportingService) Reconcile(ctx context.Context, itemID *int64) (*ReconciliationReport, error) {
	totals, err := s.reports.ReconciliationTotals(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if itemID != nil && len(totals) == 0 {
		return nil, errors.NotFound("inventory item")
	}

	report := reconcileTotals(totals)

	if itemID != nil {
		item := &report.Items[0]
		movements, err := s.reports.ItemMovements(ctx, *itemID)
		if err != nil {
			return nil, err
		}
		if _, err := ReplayBalance(item.OpeningQuantity, movements); err != nil {
			item.ReplayError = err.Error()
			if item.Consistent {
				report.ItemsDrifting++
			}
			item.Consistent = false
			report.Consistent = false
		}
	}

	if !report.Consistent {
		s.logger.Warn().Int("items_drifting", report.ItemsDrifting).Msg("stock balances drift from the ledger")
	}
	return report, nil
}

func optKey(id *int64) string {
	if id == nil {
		return "*"
	}
	return fmt.Sprintf("%d", *id)
}

func optDateKey(d *repository.Date) string {
	if d == nil {
		return "*"
	}
	return d.String()
}
