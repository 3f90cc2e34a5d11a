package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/photostudio/internal/models"
)

// PaymentService drives the manual bank-transfer workflow:
// pending -> paid -> confirmed, with rejection from either open state.
// Crystals are credited only when a request enters confirmed.
type PaymentService struct {
	log      *slog.Logger
	payments PaymentStore
	users    UserStore
	settings *SettingsService
	notifier Notifier
	now      func() time.Time
}

type CreatePaymentInput struct {
	Amount     decimal.Decimal `json:"amount"`
	Crystals   int             `json:"crystals"`
	PayerPhone string          `json:"kaspiPhone"`
	PayerName  string          `json:"kaspiName"`
}

func NewPaymentService(log *slog.Logger, payments PaymentStore, users UserStore, settings *SettingsService, notifier Notifier) *PaymentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PaymentService{
		log:      log,
		payments: payments,
		users:    users,
		settings: settings,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *PaymentService) Create(ctx context.Context, userID int64, input CreatePaymentInput) (*models.PaymentRequest, error) {
	enabled, err := s.settings.PaymentsEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrPaymentsDisabled
	}

	input.PayerPhone = strings.TrimSpace(input.PayerPhone)
	input.PayerName = strings.TrimSpace(input.PayerName)
	switch {
	case !input.Amount.IsPositive():
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case input.Crystals <= 0:
		return nil, fmt.Errorf("%w: crystals must be positive", ErrValidation)
	case input.PayerPhone == "":
		return nil, fmt.Errorf("%w: payer phone is required", ErrValidation)
	case input.PayerName == "":
		return nil, fmt.Errorf("%w: payer name is required", ErrValidation)
	}

	p := &models.PaymentRequest{
		UserID:     userID,
		Amount:     input.Amount.Round(2),
		Crystals:   input.Crystals,
		PayerPhone: input.PayerPhone,
		PayerName:  input.PayerName,
		Status:     models.PaymentPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}

	if err := s.notifier.PaymentCreated(ctx, p, s.owner(ctx, userID)); err != nil {
		s.log.Warn("payment notification failed", "payment_id", p.ID, "event", "created", "err", err)
	}
	return p, nil
}

// MarkPaid records the owner's claim that the transfer was sent.
func (s *PaymentService) MarkPaid(ctx context.Context, userID, id int64) (*models.PaymentRequest, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		s.log.Warn("payment ownership mismatch", "payment_id", id, "owner_id", p.UserID, "user_id", userID)
		return nil, fmt.Errorf("payment %d: %w", id, ErrForbidden)
	}
	return s.markPaid(ctx, p, models.ActorUser)
}

// MarkSent records that the administrator sent the invoice.
func (s *PaymentService) MarkSent(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, p, models.ActorAdmin)
}

func (s *PaymentService) markPaid(ctx context.Context, p *models.PaymentRequest, by models.Actor) (*models.PaymentRequest, error) {
	ok, err := s.payments.MarkPaid(ctx, p.ID, by, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payment %d is %s: %w", p.ID, p.Status, ErrInvalidTransition)
	}
	updated, err := s.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.PaymentMarked(ctx, updated, s.owner(ctx, updated.UserID)); err != nil {
		s.log.Warn("payment notification failed", "payment_id", p.ID, "event", "marked", "err", err)
	}
	return updated, nil
}

// Confirm moves a paid request to confirmed and credits its crystals. Both
// happen in one store transaction, so crystals land exactly once and a
// failed credit leaves the request paid for a retry.
func (s *PaymentService) Confirm(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.payments.ConfirmAndCredit(ctx, id, s.now().UTC())
	if err != nil {
		s.log.Error("payment confirmation failed", "payment_id", id, "user_id", p.UserID, "crystals", p.Crystals, "err", err)
		return nil, fmt.Errorf("confirm payment %d: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("payment %d is %s: %w", id, p.Status, ErrInvalidTransition)
	}
	s.log.Info("payment confirmed", "payment_id", id, "user_id", p.UserID, "crystals", p.Crystals)
	return s.Get(ctx, id)
}

func (s *PaymentService) Reject(ctx context.Context, id int64, note string) (*models.PaymentRequest, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.payments.Reject(ctx, id, strings.TrimSpace(note), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payment %d is %s: %w", id, p.Status, ErrInvalidTransition)
	}
	s.log.Info("payment rejected", "payment_id", id, "user_id", p.UserID)
	return s.Get(ctx, id)
}

// Delete hard-removes an open request.
func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.payments.DeleteOpen(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("payment %d is %s: %w", id, p.Status, ErrInvalidTransition)
	}
	s.log.Info("payment deleted", "payment_id", id, "user_id", p.UserID, "status", p.Status)
	return nil
}

func (s *PaymentService) Get(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *PaymentService) ListForUser(ctx context.Context, userID int64) ([]models.PaymentRequest, error) {
	return s.payments.ListByUser(ctx, userID, userListLimit)
}

// List returns requests for the admin, optionally filtered by status.
func (s *PaymentService) List(ctx context.Context, status models.PaymentStatus) ([]models.PaymentRequest, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.payments.List(ctx, status, adminListLimit)
}

// Next returns the oldest request waiting for confirmation, or nil.
func (s *PaymentService) Next(ctx context.Context) (*models.PaymentRequest, error) {
	return s.payments.Oldest(ctx, models.PaymentPaid)
}

func (s *PaymentService) Stats(ctx context.Context) (models.PaymentStats, error) {
	stats, err := s.payments.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.TotalUsers, err = s.users.Count(ctx)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Owner looks up the requester for display. Lookup failures yield nil.
func (s *PaymentService) Owner(ctx context.Context, userID int64) *models.User {
	return s.owner(ctx, userID)
}

func (s *PaymentService) owner(ctx context.Context, userID int64) *models.User {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn("payment owner lookup failed", "user_id", userID, "err", err)
		return nil
	}
	return user
}
