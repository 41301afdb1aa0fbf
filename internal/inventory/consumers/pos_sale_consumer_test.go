package consumers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	apperrors "github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
	"github.com/stockwatch/stockwatch-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	got *service.RecordSaleInput
	err error
}

func (f *fakeLedger) RecordSale(_ context.Context, in *service.RecordSaleInput) (*service.SaleResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.SaleResult{}, nil
}

func saleEvent(t *testing.T, data messaging.POSSaleCompletedEvent) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventPOSSaleCompleted, "pos", "corr-1", data)
	require.NoError(t, err)
	return event
}

func TestHandleSaleCompleted_RecordsSale(t *testing.T) {
	ledger := &fakeLedger{}
	c := &POSSaleConsumer{ledger: ledger, logger: logger.Nop()}

	soldAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	err := c.handleSaleCompleted(context.Background(), saleEvent(t, messaging.POSSaleCompletedEvent{
		MenuItemID:   7,
		QuantitySold: 3,
		SoldAt:       &soldAt,
	}))

	require.NoError(t, err)
	require.NotNil(t, ledger.got)
	assert.Equal(t, int64(7), ledger.got.MenuItemID)
	assert.Equal(t, 3, *ledger.got.QuantitySold)
	require.NotNil(t, ledger.got.UsageDate)
	assert.Equal(t, "2024-03-01T12:30:00Z", *ledger.got.UsageDate)
}

func TestHandleSaleCompleted_DefaultsQuantityToOne(t *testing.T) {
	ledger := &fakeLedger{}
	c := &POSSaleConsumer{ledger: ledger, logger: logger.Nop()}

	err := c.handleSaleCompleted(context.Background(), saleEvent(t, messaging.POSSaleCompletedEvent{MenuItemID: 7}))

	require.NoError(t, err)
	assert.Equal(t, 1, *ledger.got.QuantitySold)
	assert.Nil(t, ledger.got.UsageDate)
}

func TestHandleSaleCompleted_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{
			name:      "insufficient stock is dead-lettered",
			err:       apperrors.InsufficientStock(4, "Flour", "5", "2"),
			permanent: true,
		},
		{
			name:      "unknown menu item is dead-lettered",
			err:       apperrors.InvalidReference("menu item", 99),
			permanent: true,
		},
		{
			name:      "transaction failure is retried",
			err:       apperrors.TransactionFailed(errors.New("deadlock detected")),
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &POSSaleConsumer{ledger: &fakeLedger{err: tt.err}, logger: logger.Nop()}

			err := c.handleSaleCompleted(context.Background(), saleEvent(t, messaging.POSSaleCompletedEvent{MenuItemID: 1, QuantitySold: 1}))

			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, messaging.ErrPermanent))
		})
	}
}

func TestHandleSaleCompleted_MalformedPayload(t *testing.T) {
	c := &POSSaleConsumer{ledger: &fakeLedger{}, logger: logger.Nop()}
	event := &messaging.Event{Type: messaging.EventPOSSaleCompleted, Data: []byte(`{"menu_item_id":"seven"}`)}

	err := c.handleSaleCompleted(context.Background(), event)

	assert.True(t, errors.Is(err, messaging.ErrPermanent))
}
