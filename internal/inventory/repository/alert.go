package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// Alert types
const (
	AlertTypeLowStock = "low_stock"
	AlertTypeExpiring = "expiring"
)

// Alert severities
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// InventoryAlert represents an inventory alert
type InventoryAlert struct {
	ID             int64      `db:"alert_id" json:"alertId"`
	AlertType      string     `db:"alert_type" json:"alertType"`
	ItemID         int64      `db:"item_id" json:"itemId"`
	ItemName       string     `db:"item_name" json:"itemName"`
	DeliveryLineID *int64     `db:"delivery_line_id" json:"deliveryLineId,omitempty"`
	Severity       string     `db:"severity" json:"severity"`
	Message        string     `db:"message" json:"message"`
	IsAcknowledged bool       `db:"is_acknowledged" json:"isAcknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

// AlertFilter holds filter options for listing alerts
type AlertFilter struct {
	Acknowledged *bool
	AlertType    string
	Page         int
	PerPage      int
}

const alertSelect = `
	SELECT a.alert_id, a.alert_type, a.item_id, i.item_name, a.delivery_line_id, a.severity,
		a.message, a.is_acknowledged, a.acknowledged_at, a.created_at
	FROM inventory_alerts a
	JOIN inventory_items i ON i.item_id = a.item_id
`

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateIfAbsent inserts an alert unless an open alert of the same type
// already exists for the item and delivery line. It reports whether a row
// was written.
func (r *AlertRepository) CreateIfAbsent(ctx context.Context, alert *InventoryAlert) (bool, error) {
	query := `
		INSERT INTO inventory_alerts (alert_type, item_id, delivery_line_id, severity, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (alert_type, item_id, (COALESCE(delivery_line_id, 0))) WHERE NOT is_acknowledged
		DO NOTHING
		RETURNING alert_id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		alert.AlertType, alert.ItemID, alert.DeliveryLineID, alert.Severity, alert.Message,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapWriteError(err)
	}
	return true, nil
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id int64) (*InventoryAlert, error) {
	var alert InventoryAlert
	if err := r.db.GetContext(ctx, &alert, alertSelect+` WHERE a.alert_id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &alert, nil
}

// List lists alerts with filtering, most severe first
func (r *AlertRepository) List(ctx context.Context, filter AlertFilter) ([]InventoryAlert, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		conditions = append(conditions, fmt.Sprintf("a.is_acknowledged = $%d", len(args)))
	}
	if filter.AlertType != "" {
		args = append(args, filter.AlertType)
		conditions = append(conditions, fmt.Sprintf("a.alert_type = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM inventory_alerts a`+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.PerPage, offset(filter.Page, filter.PerPage))
	query := alertSelect + where + fmt.Sprintf(`
		ORDER BY CASE a.severity WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			a.created_at DESC, a.alert_id DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	alerts := []InventoryAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// ListOpen returns unacknowledged alerts of one type
func (r *AlertRepository) ListOpen(ctx context.Context, alertType string) ([]InventoryAlert, error) {
	alerts := []InventoryAlert{}
	err := r.db.SelectContext(ctx, &alerts,
		alertSelect+` WHERE a.alert_type = $1 AND NOT a.is_acknowledged ORDER BY a.alert_id`, alertType)
	return alerts, err
}

// Acknowledge acknowledges an alert. Acknowledging twice is a no-op.
func (r *AlertRepository) Acknowledge(ctx context.Context, id int64) error {
	query := `
		UPDATE inventory_alerts
		SET is_acknowledged = TRUE, acknowledged_at = COALESCE(acknowledged_at, NOW())
		WHERE alert_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// ResolveLowStock acknowledges open low-stock alerts of items that are back
// above their reorder point and returns how many were closed.
func (r *AlertRepository) ResolveLowStock(ctx context.Context) (int64, error) {
	query := `
		UPDATE inventory_alerts a
		SET is_acknowledged = TRUE, acknowledged_at = NOW()
		FROM inventory_items i
		WHERE a.item_id = i.item_id
			AND a.alert_type = 'low_stock'
			AND NOT a.is_acknowledged
			AND NOT (i.reorder_point > 0 AND i.quantity_on_hand <= i.reorder_point)
	`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteOld deletes acknowledged alerts older than the given age
func (r *AlertRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM inventory_alerts WHERE is_acknowledged AND acknowledged_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetUnacknowledgedCount gets the count of unacknowledged alerts
func (r *AlertRepository) GetUnacknowledgedCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM inventory_alerts WHERE NOT is_acknowledged`); err != nil {
		return 0, err
	}
	return count, nil
}
