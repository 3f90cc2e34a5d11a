package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/digkill/photostudio/internal/models"
)

func TestWritePayments(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	confirmed := created.Add(time.Hour)
	payments := []models.PaymentRequest{
		{
			ID: 7, UserID: 3, Amount: decimal.RequireFromString("5000.00"), Crystals: 200,
			PayerPhone: "+77001234567", PayerName: "Aigerim", Status: models.PaymentConfirmed,
			PaidBy: models.ActorUser, CreatedAt: created, PaidAt: &created, ConfirmedAt: &confirmed,
		},
		{ID: 8, UserID: 4, Amount: decimal.NewFromInt(990), Crystals: 30, Status: models.PaymentPending, CreatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePayments(&buf, payments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(PaymentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "ID", rows[0][0])
	require.Equal(t, []string{"7", "3", "5000", "200", "+77001234567", "Aigerim", "confirmed", "user", "",
		"2024-05-01 10:30:00", "2024-05-01 10:30:00", "2024-05-01 11:30:00"}, rows[1])
	require.Equal(t, "pending", rows[2][6])
}

func TestWritePaymentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePayments(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(PaymentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
