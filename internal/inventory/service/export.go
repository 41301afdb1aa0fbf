package service

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sheet is one worksheet of an export
type sheet struct {
	name    string
	headers []string
	rows    [][]interface{}
}

func writeWorkbook(w io.Writer, sh sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sh.name); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return err
	}

	for i, h := range sh.headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sh.name, cell, h); err != nil {
			return err
		}
	}
	if len(sh.headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(sh.headers), 1)
		if err := f.SetCellStyle(sh.name, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range sh.rows {
		start, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, start, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportLowStock writes the low stock report as a workbook
func (s *ReportingService) ExportLowStock(ctx context.Context, w io.Writer) error {
	items, err := s.LowStock(ctx)
	if err != nil {
		return err
	}

	sh := sheet{
		name:    "Low Stock",
		headers: []string{"Item ID", "Item", "Category", "On Hand", "Reorder Point", "Unit"},
	}
	for _, it := range items {
		sh.rows = append(sh.rows, []interface{}{
			it.ItemID, it.ItemName, str(it.CategoryName), num(it.QuantityOnHand), num(it.ReorderPoint), it.UnitAbbrev,
		})
	}
	return writeWorkbook(w, sh)
}

// ExportExpirations writes the expiration report as a workbook
func (s *ReportingService) ExportExpirations(ctx context.Context, days int, includePastDue bool, w io.Writer) error {
	lines, err := s.Expirations(ctx, days, includePastDue)
	if err != nil {
		return err
	}

	sh := sheet{
		name:    fmt.Sprintf("Expiring %dd", days),
		headers: []string{"Delivery", "Delivered", "Item", "Quantity", "Unit", "Expires", "Supplier"},
	}
	for _, l := range lines {
		sh.rows = append(sh.rows, []interface{}{
			l.DeliveryID, l.DeliveryDate.String(), l.ItemName, num(l.QuantityReceived), l.UnitAbbrev,
			l.ExpirationDate.String(), str(l.SupplierName),
		})
	}
	return writeWorkbook(w, sh)
}

// ExportWaste writes the waste report as a workbook
func (s *ReportingService) ExportWaste(ctx context.Context, filter repository.WasteFilter, w io.Writer) error {
	records, err := s.Waste(ctx, filter)
	if err != nil {
		return err
	}

	sh := sheet{
		name:    "Waste",
		headers: []string{"Waste ID", "Date", "Item", "Quantity", "Unit", "Reason"},
	}
	for _, rec := range records {
		sh.rows = append(sh.rows, []interface{}{
			rec.ID, rec.WasteDate.String(), rec.ItemName, num(rec.QuantityWasted), rec.UnitAbbrev, str(rec.Reason),
		})
	}
	return writeWorkbook(w, sh)
}
