// Package report renders bookkeeping exports.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/digkill/photostudio/internal/models"
)

const PaymentsSheet = "Payments"

var paymentHeader = []any{
	"ID", "User ID", "Amount", "Crystals", "Payer phone", "Payer name",
	"Status", "Paid by", "Admin note", "Created", "Paid", "Confirmed", "Rejected",
}

// WritePayments writes payment requests as an XLSX workbook.
func WritePayments(w io.Writer, payments []models.PaymentRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), PaymentsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(PaymentsSheet, "A1", &paymentHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, p := range payments {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		amount, _ := p.Amount.Float64()
		row := []any{
			p.ID, p.UserID, amount, p.Crystals, p.PayerPhone, p.PayerName,
			string(p.Status), string(p.PaidBy), p.AdminNote,
			formatTime(&p.CreatedAt), formatTime(p.PaidAt), formatTime(p.ConfirmedAt), formatTime(p.RejectedAt),
		}
		if err := f.SetSheetRow(PaymentsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", p.ID, err)
		}
	}

	if err := f.SetColWidth(PaymentsSheet, "E", "F", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(PaymentsSheet, "J", "M", 20); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
