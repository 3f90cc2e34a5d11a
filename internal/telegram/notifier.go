package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/photostudio/internal/models"
)

// API is the subset of *tgbotapi.BotAPI the admin console uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

const (
	actionApprove = "approve"
	actionReject  = "reject"
	actionSent    = "sent"
)

// Notifier pushes payment events to the admin chat.
type Notifier struct {
	api    API
	chatID int64
}

func NewNotifier(api API, adminChatID int64) *Notifier {
	return &Notifier{api: api, chatID: adminChatID}
}

// PaymentCreated announces a fresh request so the admin can send an invoice.
func (n *Notifier) PaymentCreated(_ context.Context, p *models.PaymentRequest, user *models.User) error {
	text := "🆕 Новая заявка на пополнение\n\n" + formatPayment(p, user) + "\n\nВыставьте счёт и нажмите «Счёт отправлен»."
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📨 Счёт отправлен", callbackData(actionSent, p.ID))),
	)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// PaymentMarked announces a request waiting for confirmation.
func (n *Notifier) PaymentMarked(_ context.Context, p *models.PaymentRequest, user *models.User) error {
	text := "🔔 Поступила оплата\n\n" + formatPayment(p, user) + "\n\nНажмите /next или кнопку ниже, чтобы обработать."
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = decisionKeyboard(p.ID)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (n *Notifier) sendText(text string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(n.chatID, text))
	return err
}

func decisionKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", callbackData(actionApprove, id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", callbackData(actionReject, id)),
		),
	)
}

func callbackData(action string, id int64) string {
	return action + "_" + strconv.FormatInt(id, 10)
}

// parseCallback splits "<action>_<id>" button data.
func parseCallback(data string) (string, int64, bool) {
	action, raw, ok := strings.Cut(data, "_")
	if !ok {
		return "", 0, false
	}
	switch action {
	case actionApprove, actionReject, actionSent:
	default:
		return "", 0, false
	}
	id, err := models.ParseID(raw)
	if err != nil {
		return "", 0, false
	}
	return action, id, true
}

func formatPayment(p *models.PaymentRequest, user *models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Заявка #%d\n", p.ID)
	fmt.Fprintf(&b, "👤 Имя: %s\n", p.PayerName)
	fmt.Fprintf(&b, "📱 Телефон: %s\n", p.PayerPhone)
	fmt.Fprintf(&b, "💸 Сумма: %s ₸\n", p.Amount.StringFixed(2))
	fmt.Fprintf(&b, "💎 Кристаллов: %d", p.Crystals)
	if user != nil {
		fmt.Fprintf(&b, "\n📧 Аккаунт: %s (id %d)", user.Email, user.ID)
	}
	return b.String()
}

func formatStats(s models.PaymentStats) string {
	return fmt.Sprintf(
		"📊 Статистика\n\nПользователей: %d\nЗаявок: %d\nОжидают счёта: %d\nОжидают подтверждения: %d\nПодтверждено: %d\nОтклонено: %d\nПродано кристаллов: %d\nВыручка: %s ₸",
		s.TotalUsers, s.TotalPayments, s.PendingPayments, s.PaidPayments,
		s.ConfirmedPayments, s.RejectedPayments, s.TotalCrystalsSold, s.TotalRevenue.StringFixed(2),
	)
}
