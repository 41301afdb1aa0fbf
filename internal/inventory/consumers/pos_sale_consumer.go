package consumers

import (
	"context"
	"time"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
	"github.com/stockwatch/stockwatch-backend/pkg/messaging"
)

// POSSaleQueue is the durable queue the ledger reads POS sales from
const POSSaleQueue = "stockwatch-service.pos-sales"

type saleRecorder interface {
	RecordSale(ctx context.Context, in *service.RecordSaleInput) (*service.SaleResult, error)
}

// POSSaleConsumer records sales published by the point-of-sale system
type POSSaleConsumer struct {
	consumer *messaging.Consumer
	ledger   saleRecorder
	logger   *logger.Logger
}

// NewPOSSaleConsumer creates a new POS sale consumer
func NewPOSSaleConsumer(rmq *messaging.RabbitMQ, ledger *service.StockLedgerService, log *logger.Logger) (*POSSaleConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, POSSaleQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangePOSEvents, messaging.EventPOSSaleCompleted); err != nil {
		return nil, err
	}

	c := &POSSaleConsumer{
		consumer: consumer,
		ledger:   ledger,
		logger:   log.WithComponent("pos-consumer"),
	}

	consumer.RegisterHandler(messaging.EventPOSSaleCompleted, c.handleSaleCompleted)

	return c, nil
}

// Start starts consuming messages
func (c *POSSaleConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleSaleCompleted records one POS sale. Requests the ledger rejects are
// dead-lettered; only transaction failures are retried.
func (c *POSSaleConsumer) handleSaleCompleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.POSSaleCompletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return messaging.Permanent(err)
	}

	qty := data.QuantitySold
	if qty == 0 {
		qty = 1
	}
	in := &service.RecordSaleInput{MenuItemID: data.MenuItemID, QuantitySold: &qty}
	if data.SoldAt != nil {
		soldAt := data.SoldAt.UTC().Format(time.RFC3339)
		in.UsageDate = &soldAt
	}

	c.logger.Info().
		Str("event_id", event.ID).
		Int64("menu_item_id", data.MenuItemID).
		Int("quantity_sold", qty).
		Msg("received POS sale")

	if _, err := c.ledger.RecordSale(ctx, in); err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.StatusCode < 500 {
			return messaging.Permanent(err)
		}
		return err
	}
	return nil
}
