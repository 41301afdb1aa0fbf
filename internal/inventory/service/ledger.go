package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/events"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/pkg/cache"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// DeliveryLineInput is one line of a delivery to record
type DeliveryLineInput struct {
	ItemID           int64            `json:"itemId" validate:"required,gt=0"`
	QuantityReceived decimal.Decimal  `json:"quantityReceived" validate:"gt=0"`
	UnitID           int64            `json:"unitId" validate:"required,gt=0"`
	ExpirationDate   *string          `json:"expirationDate,omitempty" validate:"omitempty,date"`
	CostPerUnit      *decimal.Decimal `json:"costPerUnit,omitempty" validate:"omitempty,gte=0"`
}

// RecordDeliveryInput is the request to record a delivery
type RecordDeliveryInput struct {
	SupplierID    *int64              `json:"supplierId,omitempty" validate:"omitempty,gt=0"`
	DeliveryDate  string              `json:"deliveryDate" validate:"required,date"`
	InvoiceNumber *string             `json:"invoiceNumber,omitempty" validate:"omitempty,max=100"`
	Lines         []DeliveryLineInput `json:"items" validate:"required,min=1,dive"`
}

// RecordManualUsageInput is the request to record manual usage
type RecordManualUsageInput struct {
	ItemID       int64           `json:"itemId" validate:"required,gt=0"`
	QuantityUsed decimal.Decimal `json:"quantityUsed" validate:"gt=0"`
	UnitID       int64           `json:"unitId" validate:"required,gt=0"`
	UsageDate    *string         `json:"usageDate,omitempty" validate:"omitempty,datetime_or_date"`
}

// RecordSaleInput is the request to record a menu item sale
type RecordSaleInput struct {
	MenuItemID   int64   `json:"-"`
	QuantitySold *int    `json:"quantitySold,omitempty" validate:"omitempty,min=1"`
	UsageDate    *string `json:"usageDate,omitempty" validate:"omitempty,datetime_or_date"`
}

// RecordWasteInput is the request to record waste
type RecordWasteInput struct {
	ItemID         int64           `json:"itemId" validate:"required,gt=0"`
	QuantityWasted decimal.Decimal `json:"quantityWasted" validate:"gt=0"`
	UnitID         int64           `json:"unitId" validate:"required,gt=0"`
	WasteDate      *string         `json:"wasteDate,omitempty" validate:"omitempty,date"`
	Reason         *string         `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// ManualUsageResult is the outcome of RecordManualUsage
type ManualUsageResult struct {
	UsageRecord *repository.UsageRecord  `json:"usageRecord"`
	UpdatedItem *repository.StockBalance `json:"updatedItem"`
}

// WasteResult is the outcome of RecordWaste
type WasteResult struct {
	WasteRecord *repository.WasteRecord  `json:"wasteRecord"`
	UpdatedItem *repository.StockBalance `json:"updatedItem"`
}

// SaleDeduction is one ingredient consumed by a sale
type SaleDeduction struct {
	ItemID           int64           `json:"itemId"`
	ItemName         string          `json:"itemName"`
	QuantityDeducted decimal.Decimal `json:"quantityDeducted"`
	QuantityOnHand   decimal.Decimal `json:"quantityOnHand"`
	UnitID           int64           `json:"unitId"`
	StockUnitID      int64           `json:"stockUnitId"`
}

// SaleSummary describes a recorded sale
type SaleSummary struct {
	MenuItemID   int64                    `json:"menuItemId"`
	MenuItemName string                   `json:"menuItemName"`
	QuantitySold int                      `json:"quantitySold"`
	Deductions   []SaleDeduction          `json:"deductions"`
	UsageRecords []repository.UsageRecord `json:"usageRecords"`
}

// SaleResult is the outcome of RecordSale
type SaleResult struct {
	Message string       `json:"message"`
	Sale    *SaleSummary `json:"sale"`
}

// StockLedgerService records every movement of stock. Each operation runs in
// a single transaction: either all balances and ledger rows are written or
// none are.
type StockLedgerService struct {
	ledger    *repository.LedgerRepository
	publisher *events.StockEventPublisher
	cache     *cache.Client
	alerts    *AlertScanner
	logger    *logger.Logger
}

// NewStockLedgerService creates a new stock ledger service. publisher, cache
// and alerts may be nil.
func NewStockLedgerService(
	ledger *repository.LedgerRepository,
	publisher *events.StockEventPublisher,
	cache *cache.Client,
	alerts *AlertScanner,
	log *logger.Logger,
) *StockLedgerService {
	return &StockLedgerService{
		ledger:    ledger,
		publisher: publisher,
		cache:     cache,
		alerts:    alerts,
		logger:    log.WithComponent("stock_ledger"),
	}
}

// RecordDelivery records a delivery and raises the balance of every item on it
func (s *StockLedgerService) RecordDelivery(ctx context.Context, in *RecordDeliveryInput) (*repository.Delivery, error) {
	delivery, lines, err := s.prepareDelivery(in)
	if err != nil {
		return nil, err
	}

	var result *repository.Delivery
	balances := make([]repository.StockBalance, 0, len(lines))

	err = s.ledger.WithinTx(ctx, func(tx *repository.LedgerTx) error {
		if err := tx.InsertDelivery(ctx, delivery); err != nil {
			return err
		}

		for i := range lines {
			line := &lines[i]
			line.DeliveryID = delivery.ID
			if err := tx.InsertDeliveryLine(ctx, line); err != nil {
				return withLine(err, i)
			}

			balance, err := tx.IncreaseStock(ctx, line.ItemID, line.QuantityReceived)
			if err != nil {
				return withLine(err, i)
			}
			s.warnUnitMismatch(balance, line.UnitID, "delivery")
			balances = append(balances, *balance)
		}

		result, err = tx.GetDelivery(ctx, delivery.ID)
		return err
	})
	if err != nil {
		return nil, s.ledgerError(err, "record delivery")
	}

	s.logger.Info().
		Int64("delivery_id", result.ID).
		Int("lines", len(result.Lines)).
		Msg("delivery recorded")

	s.afterCommit(ctx, nil)
	s.publisher.PublishDelivered(ctx, result, balances)

	return result, nil
}

func (s *StockLedgerService) prepareDelivery(in *RecordDeliveryInput) (*repository.Delivery, []repository.DeliveryLine, error) {
	details := map[string]string{}

	if len(in.Lines) == 0 {
		details["items"] = "at least one line is required"
	}
	deliveryDate, err := repository.ParseDate(in.DeliveryDate)
	if err != nil {
		details["deliveryDate"] = "must be a date in YYYY-MM-DD format"
	}
	if in.SupplierID != nil && *in.SupplierID <= 0 {
		details["supplierId"] = "must be a positive integer"
	}

	lines := make([]repository.DeliveryLine, len(in.Lines))
	for i, l := range in.Lines {
		field := fmt.Sprintf("items[%d].", i)
		if l.ItemID <= 0 {
			details[field+"itemId"] = "must be a positive integer"
		}
		if l.UnitID <= 0 {
			details[field+"unitId"] = "must be a positive integer"
		}
		if msg := quantityError(l.QuantityReceived, false); msg != "" {
			details[field+"quantityReceived"] = msg
		}
		if l.CostPerUnit != nil && l.CostPerUnit.IsNegative() {
			details[field+"costPerUnit"] = "must not be negative"
		}

		lines[i] = repository.DeliveryLine{
			ItemID:           l.ItemID,
			UnitID:           l.UnitID,
			QuantityReceived: l.QuantityReceived,
			UnitCost:         l.CostPerUnit,
		}
		if l.ExpirationDate != nil {
			exp, err := repository.ParseDate(*l.ExpirationDate)
			if err != nil {
				details[field+"expirationDate"] = "must be a date in YYYY-MM-DD format"
				continue
			}
			lines[i].ExpirationDate = &exp
		}
	}

	if len(details) > 0 {
		return nil, nil, errors.Validation(details)
	}

	return &repository.Delivery{
		SupplierID:    in.SupplierID,
		DeliveryDate:  deliveryDate,
		InvoiceNumber: in.InvoiceNumber,
	}, lines, nil
}

// RecordManualUsage deducts stock consumed outside of a sale
func (s *StockLedgerService) RecordManualUsage(ctx context.Context, in *RecordManualUsageInput) (*ManualUsageResult, error) {
	details := map[string]string{}
	checkMovement(details, in.ItemID, in.UnitID, in.QuantityUsed, "quantityUsed")
	usageDate, err := optionalTimestamp(in.UsageDate)
	if err != nil {
		details["usageDate"] = "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	itemID, unitID := in.ItemID, in.UnitID
	record := &repository.UsageRecord{
		ItemID:       &itemID,
		QuantityUsed: in.QuantityUsed,
		UnitID:       &unitID,
		UsageDate:    usageDate,
		UsageType:    repository.UsageTypeManual,
	}

	var balance *repository.StockBalance
	err = s.ledger.WithinTx(ctx, func(tx *repository.LedgerTx) error {
		var err error
		balance, err = tx.DecreaseStock(ctx, in.ItemID, in.QuantityUsed)
		if err != nil {
			return err
		}
		return tx.InsertUsage(ctx, record)
	})
	if err != nil {
		return nil, s.ledgerError(err, "record manual usage")
	}

	s.warnUnitMismatch(balance, in.UnitID, "manual usage")
	s.logger.Info().
		Int64("item_id", in.ItemID).
		Str("quantity", in.QuantityUsed.String()).
		Str("quantity_on_hand", balance.QuantityOnHand.String()).
		Msg("manual usage recorded")

	s.afterCommit(ctx, []repository.StockBalance{*balance})
	s.publisher.PublishUsed(ctx, record, balance)

	return &ManualUsageResult{UsageRecord: record, UpdatedItem: balance}, nil
}

// RecordSale expands a menu item's recipe into ingredient deductions. The
// sale fails as a whole if any ingredient is short. A menu item without a
// recipe is logged as sold without touching any balance.
func (s *StockLedgerService) RecordSale(ctx context.Context, in *RecordSaleInput) (*SaleResult, error) {
	details := map[string]string{}
	if in.MenuItemID <= 0 {
		details["menuItemId"] = "must be a positive integer"
	}
	quantitySold := 1
	if in.QuantitySold != nil {
		quantitySold = *in.QuantitySold
		if quantitySold < 1 {
			details["quantitySold"] = "must be a positive integer"
		}
	}
	usageDate, err := optionalTimestamp(in.UsageDate)
	if err != nil {
		details["usageDate"] = "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	menuItemID := in.MenuItemID
	sold := decimal.NewFromInt(int64(quantitySold))
	summary := &SaleSummary{
		MenuItemID:   menuItemID,
		QuantitySold: quantitySold,
		Deductions:   []SaleDeduction{},
		UsageRecords: []repository.UsageRecord{},
	}
	var balances []repository.StockBalance

	err = s.ledger.WithinTx(ctx, func(tx *repository.LedgerTx) error {
		name, err := tx.GetMenuItemName(ctx, menuItemID)
		if err != nil {
			return err
		}
		summary.MenuItemName = name

		recipe, err := tx.RecipeFor(ctx, menuItemID)
		if err != nil {
			return err
		}

		if len(recipe) == 0 {
			record := repository.UsageRecord{
				QuantityUsed: sold,
				UsageDate:    usageDate,
				UsageType:    repository.UsageTypeSale,
				MenuItemID:   &menuItemID,
			}
			if err := tx.InsertUsage(ctx, &record); err != nil {
				return err
			}
			summary.UsageRecords = append(summary.UsageRecords, record)
			return nil
		}

		// Recipe lines come ordered by item id so that concurrent sales lock
		// item rows in the same order.
		for _, ingredient := range recipe {
			deduction := ingredient.QuantityRequired.Mul(sold)
			if msg := quantityError(deduction, false); msg != "" {
				return errors.Validation(map[string]string{
					"quantitySold": fmt.Sprintf("deducts %s of item %d; the deduction %s", deduction, ingredient.ItemID, msg),
				})
			}

			balance, err := tx.DecreaseStock(ctx, ingredient.ItemID, deduction)
			if err != nil {
				return err
			}

			itemID, unitID := ingredient.ItemID, ingredient.UnitID
			record := repository.UsageRecord{
				ItemID:       &itemID,
				QuantityUsed: deduction,
				UnitID:       &unitID,
				UsageDate:    usageDate,
				UsageType:    repository.UsageTypeSale,
				MenuItemID:   &menuItemID,
			}
			if err := tx.InsertUsage(ctx, &record); err != nil {
				return err
			}

			balances = append(balances, *balance)
			summary.UsageRecords = append(summary.UsageRecords, record)
			summary.Deductions = append(summary.Deductions, SaleDeduction{
				ItemID:           balance.ItemID,
				ItemName:         balance.ItemName,
				QuantityDeducted: deduction,
				QuantityOnHand:   balance.QuantityOnHand,
				UnitID:           unitID,
				StockUnitID:      balance.StockUnitID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err, "record sale")
	}

	if len(summary.Deductions) == 0 {
		s.logger.Warn().
			Int64("menu_item_id", menuItemID).
			Str("menu_item", summary.MenuItemName).
			Int("quantity_sold", quantitySold).
			Msg("menu item has no recipe; sale logged without deducting stock")
	} else {
		for i := range balances {
			s.warnUnitMismatch(&balances[i], summary.Deductions[i].UnitID, "sale")
		}
		s.logger.Info().
			Int64("menu_item_id", menuItemID).
			Int("quantity_sold", quantitySold).
			Int("ingredients", len(summary.Deductions)).
			Msg("sale recorded")
	}

	s.afterCommit(ctx, balances)
	s.publisher.PublishSaleRecorded(ctx, menuItemID, summary.MenuItemName, quantitySold, summary.UsageRecords, balances)

	return &SaleResult{
		Message: saleMessage(summary),
		Sale:    summary,
	}, nil
}

func saleMessage(summary *SaleSummary) string {
	msg := fmt.Sprintf("Recorded sale of %d x %s", summary.QuantitySold, summary.MenuItemName)
	if len(summary.Deductions) == 0 {
		return msg + "; no recipe is defined, so no stock was deducted"
	}
	names := make([]string, len(summary.Deductions))
	for i, d := range summary.Deductions {
		names[i] = d.ItemName
	}
	return msg + "; deducted " + strings.Join(names, ", ")
}

// RecordWaste deducts discarded stock
func (s *StockLedgerService) RecordWaste(ctx context.Context, in *RecordWasteInput) (*WasteResult, error) {
	details := map[string]string{}
	checkMovement(details, in.ItemID, in.UnitID, in.QuantityWasted, "quantityWasted")
	var wasteDate repository.Date
	if in.WasteDate != nil {
		d, err := repository.ParseDate(*in.WasteDate)
		if err != nil {
			details["wasteDate"] = "must be a date in YYYY-MM-DD format"
		}
		wasteDate = d
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	record := &repository.WasteRecord{
		ItemID:         in.ItemID,
		QuantityWasted: in.QuantityWasted,
		UnitID:         in.UnitID,
		WasteDate:      wasteDate,
		Reason:         in.Reason,
	}

	var balance *repository.StockBalance
	err := s.ledger.WithinTx(ctx, func(tx *repository.LedgerTx) error {
		var err error
		balance, err = tx.DecreaseStock(ctx, in.ItemID, in.QuantityWasted)
		if err != nil {
			return err
		}
		return tx.InsertWaste(ctx, record)
	})
	if err != nil {
		return nil, s.ledgerError(err, "record waste")
	}

	s.warnUnitMismatch(balance, in.UnitID, "waste")
	s.logger.Info().
		Int64("item_id", in.ItemID).
		Str("quantity", in.QuantityWasted.String()).
		Str("quantity_on_hand", balance.QuantityOnHand.String()).
		Msg("waste recorded")

	s.afterCommit(ctx, []repository.StockBalance{*balance})
	s.publisher.PublishWasted(ctx, record, balance)

	return &WasteResult{WasteRecord: record, UpdatedItem: balance}, nil
}

// Stored quantities are NUMERIC(14,3).
const QuantityScale = 3

// MaxQuantity is the exclusive upper bound of a stored quantity.
var MaxQuantity = decimal.New(1, 11)

// quantityError describes why qty cannot be stored exactly, or returns "".
func quantityError(qty decimal.Decimal, allowZero bool) string {
	switch {
	case qty.IsNegative() || (!allowZero && qty.IsZero()):
		if allowZero {
			return "must not be negative"
		}
		return "must be greater than zero"
	case !qty.Equal(qty.Truncate(QuantityScale)):
		return fmt.Sprintf("must have at most %d decimal places", QuantityScale)
	case qty.GreaterThanOrEqual(MaxQuantity):
		return "must be less than " + MaxQuantity.String()
	}
	return ""
}

func checkMovement(details map[string]string, itemID, unitID int64, qty decimal.Decimal, qtyField string) {
	if itemID <= 0 {
		details["itemId"] = "must be a positive integer"
	}
	if unitID <= 0 {
		details["unitId"] = "must be a positive integer"
	}
	if msg := quantityError(qty, false); msg != "" {
		details[qtyField] = msg
	}
}

// optionalTimestamp parses an RFC 3339 timestamp or a calendar date. A nil
// input yields the zero time, which the store replaces with now.
func optionalTimestamp(s *string) (time.Time, error) {
	if s == nil {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		return t, nil
	}
	d, err := repository.ParseDate(*s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

// withLine tags a reference failure with the delivery line that caused it
func withLine(err error, index int) error {
	if appErr, ok := errors.AsAppError(err); ok && errors.Is(err, errors.ErrInvalidReference) {
		if appErr.Details == nil {
			appErr.Details = map[string]string{}
		}
		appErr.Details["line"] = fmt.Sprintf("%d", index+1)
	}
	return err
}

// ledgerError passes domain failures through and hides anything else behind
// a transaction failure. The transaction has already been rolled back.
func (s *StockLedgerService) ledgerError(err error, op string) error {
	if appErr, ok := errors.AsAppError(err); ok {
		if errors.Is(err, errors.ErrInsufficientStock) {
			s.logger.Warn().Str("operation", op).Interface("details", appErr.Details).Msg("insufficient stock")
		}
		return appErr
	}
	s.logger.Error().Err(err).Str("operation", op).Msg("ledger transaction failed")
	return errors.TransactionFailed(err)
}

// warnUnitMismatch flags movements recorded in a unit other than the item's
// stocking unit. Quantities are applied as given; no conversion happens.
func (s *StockLedgerService) warnUnitMismatch(b *repository.StockBalance, unitID int64, op string) {
	if b == nil || b.StockUnitID == unitID {
		return
	}
	s.logger.Warn().
		Str("operation", op).
		Int64("item_id", b.ItemID).
		Int64("unit_id", unitID).
		Int64("stock_unit_id", b.StockUnitID).
		Msg("movement unit differs from stocking unit; quantity applied without conversion")
}

// afterCommit runs the best-effort follow-ups of a committed ledger write
func (s *StockLedgerService) afterCommit(ctx context.Context, deducted []repository.StockBalance) {
	if err := s.cache.Invalidate(ctx, ReportCacheNamespace); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate report cache")
	}
	s.alerts.CheckLowStock(ctx, deducted)
}
