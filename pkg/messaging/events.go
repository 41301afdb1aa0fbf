package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Ledger events, published after the owning transaction commits
	EventStockDelivered = "inventory.stock.delivered"
	EventStockUsed      = "inventory.stock.used"
	EventSaleRecorded   = "inventory.sale.recorded"
	EventStockWasted    = "inventory.stock.wasted"

	// Alert events
	EventAlertRaised = "inventory.alert.raised"

	// Point-of-sale events consumed by the ledger
	EventPOSSaleCompleted = "pos.sale.completed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangePOSEvents       = "pos.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockMovement is one balance change inside a ledger event.
type StockMovement struct {
	ItemID      int64           `json:"item_id"`
	ItemName    string          `json:"item_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	UnitID      int64           `json:"unit_id"`
}

// StockDeliveredEvent is published when a delivery is recorded
type StockDeliveredEvent struct {
	DeliveryID    int64           `json:"delivery_id"`
	SupplierID    *int64          `json:"supplier_id,omitempty"`
	DeliveryDate  string          `json:"delivery_date"`
	InvoiceNumber *string         `json:"invoice_number,omitempty"`
	Movements     []StockMovement `json:"movements"`
}

// StockUsedEvent is published when manual usage is recorded
type StockUsedEvent struct {
	UsageID  int64         `json:"usage_id"`
	Movement StockMovement `json:"movement"`
	UsedAt   time.Time     `json:"used_at"`
}

// SaleRecordedEvent is published when a menu item sale is recorded
type SaleRecordedEvent struct {
	MenuItemID   int64           `json:"menu_item_id"`
	MenuItemName string          `json:"menu_item_name"`
	QuantitySold int             `json:"quantity_sold"`
	SoldAt       time.Time       `json:"sold_at"`
	Movements    []StockMovement `json:"movements"`
}

// StockWastedEvent is published when waste is recorded
type StockWastedEvent struct {
	WasteID   int64         `json:"waste_id"`
	Movement  StockMovement `json:"movement"`
	WasteDate string        `json:"waste_date"`
	Reason    *string       `json:"reason,omitempty"`
}

// AlertRaisedEvent is published when the scanner raises a new alert
type AlertRaisedEvent struct {
	AlertID        int64  `json:"alert_id"`
	AlertType      string `json:"alert_type"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	ItemID         int64  `json:"item_id"`
	DeliveryLineID *int64 `json:"delivery_line_id,omitempty"`
}

// POSSaleCompletedEvent is emitted by the point-of-sale system for each
// menu line sold.
type POSSaleCompletedEvent struct {
	MenuItemID   int64      `json:"menu_item_id"`
	QuantitySold int        `json:"quantity_sold"`
	SoldAt       *time.Time `json:"sold_at,omitempty"`
}
