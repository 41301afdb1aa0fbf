package events

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
	"github.com/stockwatch/stockwatch-backend/pkg/messaging"
)

// EventSink delivers an event payload under its routing key.
// *messaging.Publisher is the production implementation.
type EventSink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// StockEventPublisher publishes ledger and alert events. A nil publisher
// drops every event, which is how the service runs with RabbitMQ disabled.
type StockEventPublisher struct {
	publisher EventSink
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "stockwatch-service", log)
	if err != nil {
		return nil, err
	}

	return NewStockEventPublisherWithSink(publisher, log), nil
}

// NewStockEventPublisherWithSink creates a publisher that writes to sink
func NewStockEventPublisherWithSink(sink EventSink, log *logger.Logger) *StockEventPublisher {
	return &StockEventPublisher{
		publisher: sink,
		logger:    log,
	}
}

func movement(b *repository.StockBalance, qty decimal.Decimal, unitID int64) messaging.StockMovement {
	return messaging.StockMovement{
		ItemID:      b.ItemID,
		ItemName:    b.ItemName,
		Quantity:    qty,
		NewQuantity: b.QuantityOnHand,
		UnitID:      unitID,
	}
}

// PublishDelivered publishes a stock delivered event. balances holds the
// balance after each line, in line order.
func (p *StockEventPublisher) PublishDelivered(ctx context.Context, d *repository.Delivery, balances []repository.StockBalance) {
	if p == nil {
		return
	}

	movements := make([]messaging.StockMovement, 0, len(d.Lines))
	for i, line := range d.Lines {
		if i >= len(balances) {
			break
		}
		movements = append(movements, movement(&balances[i], line.QuantityReceived, line.UnitID))
	}

	data := messaging.StockDeliveredEvent{
		DeliveryID:    d.ID,
		SupplierID:    d.SupplierID,
		DeliveryDate:  d.DeliveryDate.String(),
		InvoiceNumber: d.InvoiceNumber,
		Movements:     movements,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockDelivered, data); err != nil {
		p.logger.Error().Err(err).Int64("delivery_id", d.ID).Msg("failed to publish stock delivered event")
	}
}

// PublishUsed publishes a stock used event for manual usage
func (p *StockEventPublisher) PublishUsed(ctx context.Context, u *repository.UsageRecord, b *repository.StockBalance) {
	if p == nil {
		return
	}

	var unitID int64
	if u.UnitID != nil {
		unitID = *u.UnitID
	}

	data := messaging.StockUsedEvent{
		UsageID:  u.ID,
		Movement: movement(b, u.QuantityUsed, unitID),
		UsedAt:   u.UsageDate,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockUsed, data); err != nil {
		p.logger.Error().Err(err).Int64("usage_id", u.ID).Msg("failed to publish stock used event")
	}
}

// PublishSaleRecorded publishes a sale recorded event. A sale of a menu item
// without a recipe carries no movements.
func (p *StockEventPublisher) PublishSaleRecorded(ctx context.Context, menuItemID int64, menuItemName string, quantitySold int, records []repository.UsageRecord, balances []repository.StockBalance) {
	if p == nil {
		return
	}

	movements := make([]messaging.StockMovement, 0, len(balances))
	for i := range balances {
		if i >= len(records) || records[i].UnitID == nil {
			break
		}
		movements = append(movements, movement(&balances[i], records[i].QuantityUsed, *records[i].UnitID))
	}

	data := messaging.SaleRecordedEvent{
		MenuItemID:   menuItemID,
		MenuItemName: menuItemName,
		QuantitySold: quantitySold,
		Movements:    movements,
	}
	if len(records) > 0 {
		data.SoldAt = records[0].UsageDate
	}

	if err := p.publisher.Publish(ctx, messaging.EventSaleRecorded, data); err != nil {
		p.logger.Error().Err(err).Int64("menu_item_id", menuItemID).Msg("failed to publish sale recorded event")
	}
}

// PublishWasted publishes a stock wasted event
func (p *StockEventPublisher) PublishWasted(ctx context.Context, w *repository.WasteRecord, b *repository.StockBalance) {
	if p == nil {
		return
	}

	data := messaging.StockWastedEvent{
		WasteID:   w.ID,
		Movement:  movement(b, w.QuantityWasted, w.UnitID),
		WasteDate: w.WasteDate.String(),
		Reason:    w.Reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockWasted, data); err != nil {
		p.logger.Error().Err(err).Int64("waste_id", w.ID).Msg("failed to publish stock wasted event")
	}
}

// PublishAlertRaised publishes an alert raised event
func (p *StockEventPublisher) PublishAlertRaised(ctx context.Context, alert *repository.InventoryAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertRaisedEvent{
		AlertID:        alert.ID,
		AlertType:      alert.AlertType,
		Severity:       alert.Severity,
		Message:        alert.Message,
		ItemID:         alert.ItemID,
		DeliveryLineID: alert.DeliveryLineID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertRaised, data); err != nil {
		p.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to publish alert raised event")
	}
}
