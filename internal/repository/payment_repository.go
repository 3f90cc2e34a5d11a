package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/photostudio/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, amount, crystals, payer_phone, payer_name, status, COALESCE(paid_by, ''), COALESCE(admin_note, ''),
created_at, paid_at, confirmed_at, rejected_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	var paidAt, confirmedAt, rejectedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Crystals, &p.PayerPhone, &p.PayerName, &p.Status, &p.PaidBy, &p.AdminNote,
		&p.CreatedAt, &paidAt, &confirmedAt, &rejectedAt); err != nil {
		return nil, err
	}
	p.PaidAt = nullTime(paidAt)
	p.ConfirmedAt = nullTime(confirmedAt)
	p.RejectedAt = nullTime(rejectedAt)
	return &p, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentRequest) error {
	const query = `
INSERT INTO payment_requests (user_id, amount, crystals, payer_phone, payer_name, status)
VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, p.UserID, p.Amount, p.Crystals, p.PayerPhone, p.PayerName, p.Status)
	if err != nil {
		return fmt.Errorf("insert payment request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment request: %w", err)
	}
	return p, nil
}

// MarkPaid moves a pending request to paid and records who did it.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id int64, by models.Actor, at time.Time) (bool, error) {
	return transition(ctx, r.db, id, models.PaymentPaid, "paid_at = ?, paid_by = ?", at, by)
}

// ConfirmAndCredit moves a paid request to confirmed and adds its crystals to
// the owner in one transaction. Exactly one caller can win it; if the credit
// fails the request stays paid.
func (r *PaymentRepository) ConfirmAndCredit(ctx context.Context, id int64, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := transition(ctx, tx, id, models.PaymentConfirmed, "confirmed_at = ?", at)
	if err != nil || !ok {
		return false, err
	}

	const credit = `
UPDATE users u JOIN payment_requests p ON p.user_id = u.id
SET u.credits = u.credits + p.crystals, u.updated_at = NOW()
WHERE p.id = ?`
	res, err := tx.ExecContext(ctx, credit, id)
	if err != nil {
		return false, fmt.Errorf("credit payment owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit rows affected: %w", err)
	}
	if affected != 1 {
		return false, fmt.Errorf("payment %d owner not found", id)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit confirm tx: %w", err)
	}
	return true, nil
}

func (r *PaymentRepository) Reject(ctx context.Context, id int64, note string, at time.Time) (bool, error) {
	return transition(ctx, r.db, id, models.PaymentRejected, "rejected_at = ?, admin_note = NULLIF(?, '')", at, note)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func transition(ctx context.Context, db execer, id int64, to models.PaymentStatus, set string, args ...any) (bool, error) {
	from := models.PaymentSources(to)
	if len(from) == 0 {
		return false, fmt.Errorf("no transition into %s", to)
	}
	query := fmt.Sprintf(`UPDATE payment_requests SET status = ?, %s WHERE id = ? AND status IN (%s)`, set, placeholders(len(from)))

	params := make([]any, 0, len(args)+len(from)+2)
	params = append(params, to)
	params = append(params, args...)
	params = append(params, id)
	for _, s := range from {
		params = append(params, s)
	}

	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return false, fmt.Errorf("update payment request to %s: %w", to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteOpen removes a request that has not reached a terminal state.
func (r *PaymentRepository) DeleteOpen(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM payment_requests WHERE id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, query, id, models.PaymentPending, models.PaymentPaid)
	if err != nil {
		return false, fmt.Errorf("delete payment request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.PaymentRequest, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payment_requests WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, userID, limit)
}

// List returns requests newest first, optionally restricted to one status.
func (r *PaymentRepository) List(ctx context.Context, status models.PaymentStatus, limit int) ([]models.PaymentRequest, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+paymentColumns+` FROM payment_requests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	}
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`, status, limit)
}

// Oldest returns the longest-waiting request in the given status.
func (r *PaymentRepository) Oldest(ctx context.Context, status models.PaymentStatus) (*models.PaymentRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`, status)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan oldest payment request: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]models.PaymentRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment request list: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Stats aggregates payment counts per status plus confirmed totals.
func (r *PaymentRepository) Stats(ctx context.Context) (models.PaymentStats, error) {
	var stats models.PaymentStats
	rows, err := r.db.QueryContext(ctx, `
SELECT status, COUNT(*), COALESCE(SUM(crystals), 0), COALESCE(SUM(amount), 0)
FROM payment_requests GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("payment stats: %w", err)
	}
	defer rows.Close()

	stats.TotalRevenue = decimal.Zero
	for rows.Next() {
		var status models.PaymentStatus
		var count, crystals int
		var amount decimal.Decimal
		if err := rows.Scan(&status, &count, &crystals, &amount); err != nil {
			return stats, fmt.Errorf("scan payment stats: %w", err)
		}
		stats.TotalPayments += count
		switch status {
		case models.PaymentPending:
			stats.PendingPayments = count
		case models.PaymentPaid:
			stats.PaidPayments = count
		case models.PaymentConfirmed:
			stats.ConfirmedPayments = count
			stats.TotalCrystalsSold = crystals
			stats.TotalRevenue = amount
		case models.PaymentRejected:
			stats.RejectedPayments = count
		}
	}
	return stats, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
