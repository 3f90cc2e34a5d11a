package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/photostudio/internal/models"
	"github.com/digkill/photostudio/internal/service"
)

type PaymentService interface {
	MarkSent(ctx context.Context, id int64) (*models.PaymentRequest, error)
	Confirm(ctx context.Context, id int64) (*models.PaymentRequest, error)
	Reject(ctx context.Context, id int64, note string) (*models.PaymentRequest, error)
	Next(ctx context.Context) (*models.PaymentRequest, error)
	Stats(ctx context.Context) (models.PaymentStats, error)
	Owner(ctx context.Context, userID int64) *models.User
}

type SettingsService interface {
	SetPaymentsEnabled(ctx context.Context, enabled bool) error
}

// Bot is the admin console. Updates from any chat other than the admin's
// are refused.
type Bot struct {
	api      API
	log      *slog.Logger
	adminID  int64
	notifier *Notifier
	payments PaymentService
	settings SettingsService
	reasons  *ReasonState
}

func NewBot(api API, log *slog.Logger, adminChatID int64, payments PaymentService, settings SettingsService) *Bot {
	return &Bot{
		api:      api,
		log:      log,
		adminID:  adminChatID,
		notifier: NewNotifier(api, adminChatID),
		payments: payments,
		settings: settings,
		reasons:  NewReasonState(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram admin bot started", "admin_chat_id", b.adminID)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				b.log.Warn("telegram updates channel closed")
				return nil
			}
			b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if msg.Chat.ID != b.adminID {
		b.log.Warn("telegram message from foreign chat", "chat_id", msg.Chat.ID)
		b.sendTo(msg.Chat.ID, "❌ Доступ запрещён. Это бот для администратора.")
		return
	}

	if msg.IsCommand() && msg.Command() != "skip" {
		b.reasons.Clear(msg.Chat.ID)
		b.handleCommand(ctx, msg)
		return
	}

	if id, ok := b.reasons.Take(msg.Chat.ID); ok {
		note := strings.TrimSpace(msg.Text)
		if msg.IsCommand() {
			note = ""
		}
		b.reject(ctx, id, note)
		return
	}
	b.send("Нажмите /next, чтобы получить следующую заявку.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.send("👋 Привет, админ!\n\nКоманды:\n/next — следующая оплаченная заявка\n/stats — статистика\n/payments_on — включить приём заявок\n/payments_off — выключить приём заявок")
	case "next":
		b.sendNext(ctx)
	case "stats":
		stats, err := b.payments.Stats(ctx)
		if err != nil {
			b.log.Error("telegram stats", "err", err)
			b.send("Не удалось получить статистику.")
			return
		}
		b.send(formatStats(stats))
	case "payments_on":
		b.setPayments(ctx, true)
	case "payments_off":
		b.setPayments(ctx, false)
	default:
		b.send("Неизвестная команда. Используйте /start.")
	}
}

func (b *Bot) setPayments(ctx context.Context, enabled bool) {
	if err := b.settings.SetPaymentsEnabled(ctx, enabled); err != nil {
		b.log.Error("telegram toggle payments", "enabled", enabled, "err", err)
		b.send("Не удалось изменить настройку.")
		return
	}
	b.log.Info("payments toggled from telegram", "enabled", enabled)
	if enabled {
		b.send("✅ Приём заявок включён.")
	} else {
		b.send("⛔ Приём заявок выключен.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.adminID {
		b.answer(cb.ID, "Доступ запрещён")
		return
	}

	action, id, ok := parseCallback(cb.Data)
	if !ok {
		b.answer(cb.ID, "Неизвестное действие")
		return
	}
	b.answer(cb.ID, "")
	b.clearButtons(cb.Message)

	switch action {
	case actionApprove:
		p, err := b.payments.Confirm(ctx, id)
		if err != nil {
			b.reportFailure(id, err)
			return
		}
		b.send(fmt.Sprintf("✅ Заявка #%d подтверждена: +%d 💎 (%s)", p.ID, p.Crystals, p.PayerName))
		b.sendNext(ctx)
	case actionReject:
		b.reasons.Await(cb.Message.Chat.ID, id)
		b.send(fmt.Sprintf("Укажите причину отклонения заявки #%d или отправьте /skip.", id))
	case actionSent:
		p, err := b.payments.MarkSent(ctx, id)
		if err != nil {
			b.reportFailure(id, err)
			return
		}
		b.send(fmt.Sprintf("📨 Заявка #%d отмечена: счёт отправлен, ожидает подтверждения.", p.ID))
	}
}

func (b *Bot) reject(ctx context.Context, id int64, note string) {
	p, err := b.payments.Reject(ctx, id, note)
	if err != nil {
		b.reportFailure(id, err)
		return
	}
	text := fmt.Sprintf("❌ Заявка #%d отклонена (%s).", p.ID, p.PayerName)
	if note != "" {
		text += "\nПричина: " + note
	}
	b.send(text)
	b.sendNext(ctx)
}

func (b *Bot) sendNext(ctx context.Context) {
	p, err := b.payments.Next(ctx)
	if err != nil {
		b.log.Error("telegram next payment", "err", err)
		b.send("Ошибка при поиске заявки.")
		return
	}
	if p == nil {
		b.send("🎉 Все заявки обработаны! Новых нет.")
		return
	}
	msg := tgbotapi.NewMessage(b.adminID, "💰 Ожидает подтверждения\n\n"+formatPayment(p, b.payments.Owner(ctx, p.UserID)))
	msg.ReplyMarkup = decisionKeyboard(p.ID)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("telegram send", "err", err)
	}
}

func (b *Bot) reportFailure(id int64, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		b.send(fmt.Sprintf("❌ Заявка #%d не найдена.", id))
	case errors.Is(err, service.ErrInvalidTransition):
		b.send(fmt.Sprintf("⚠️ Заявка #%d уже обработана.", id))
	default:
		b.log.Error("telegram payment action", "payment_id", id, "err", err)
		b.send(fmt.Sprintf("Ошибка при обработке заявки #%d.", id))
	}
}

func (b *Bot) clearButtons(msg *tgbotapi.Message) {
	edit := tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		b.log.Warn("telegram clear buttons", "err", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("telegram callback ack", "err", err)
	}
}

func (b *Bot) send(text string) {
	if err := b.notifier.sendText(text); err != nil {
		b.log.Error("telegram send", "err", err)
	}
}

func (b *Bot) sendTo(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("telegram send", "chat_id", chatID, "err", err)
	}
}
