package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/digkill/photostudio/internal/models"
	"github.com/digkill/photostudio/internal/service"
)

const adminChat int64 = 777

type fakeAPI struct {
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	return f.sent[len(f.sent)-1]
}

type fakePayments struct {
	queue     []*models.PaymentRequest
	confirmed []int64
	rejected  map[int64]string
	sent      []int64
	err       error
}

func (f *fakePayments) MarkSent(_ context.Context, id int64) (*models.PaymentRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, id)
	return &models.PaymentRequest{ID: id, Status: models.PaymentPaid}, nil
}

func (f *fakePayments) Confirm(_ context.Context, id int64) (*models.PaymentRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.confirmed = append(f.confirmed, id)
	f.pop(id)
	return &models.PaymentRequest{ID: id, Crystals: 100, PayerName: "Aru", Status: models.PaymentConfirmed}, nil
}

func (f *fakePayments) Reject(_ context.Context, id int64, note string) (*models.PaymentRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.rejected == nil {
		f.rejected = make(map[int64]string)
	}
	f.rejected[id] = note
	f.pop(id)
	return &models.PaymentRequest{ID: id, PayerName: "Aru", Status: models.PaymentRejected, AdminNote: note}, nil
}

func (f *fakePayments) pop(id int64) {
	for i, p := range f.queue {
		if p.ID == id {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return
		}
	}
}

func (f *fakePayments) Next(context.Context) (*models.PaymentRequest, error) {
	if len(f.queue) == 0 {
		return nil, nil
	}
	return f.queue[0], nil
}

func (f *fakePayments) Stats(context.Context) (models.PaymentStats, error) {
	return models.PaymentStats{TotalUsers: 3, PaidPayments: 1, TotalRevenue: decimal.NewFromInt(5000)}, nil
}

func (f *fakePayments) Owner(_ context.Context, userID int64) *models.User {
	return &models.User{ID: userID, Email: "user@example.com"}
}

type fakeSettings struct {
	enabled []bool
}

func (f *fakeSettings) SetPaymentsEnabled(_ context.Context, enabled bool) error {
	f.enabled = append(f.enabled, enabled)
	return nil
}

func newTestBot() (*Bot, *fakeAPI, *fakePayments, *fakeSettings) {
	api := &fakeAPI{}
	payments := &fakePayments{}
	settings := &fakeSettings{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBot(api, log, adminChat, payments, settings), api, payments, settings
}

func command(chatID int64, text string) *tgbotapi.Message {
	name := text
	for i, r := range text {
		if r == ' ' {
			name = text[:i]
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func press(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: adminChat}},
	}
}

func queued(id int64) *models.PaymentRequest {
	return &models.PaymentRequest{ID: id, UserID: 1, Amount: decimal.NewFromInt(2500), Crystals: 100, PayerName: "Aru", PayerPhone: "+77001234567", Status: models.PaymentPaid}
}

func TestForeignChatRefused(t *testing.T) {
	bot, api, payments, settings := newTestBot()
	payments.queue = []*models.PaymentRequest{queued(1)}

	bot.handleMessage(context.Background(), command(42, "/payments_off"))
	bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{ID: "x", Data: "approve_1", Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}}})

	require.Empty(t, settings.enabled)
	require.Empty(t, payments.confirmed)
	require.Len(t, api.sent, 1)
	require.Equal(t, int64(42), api.sent[0].ChatID)
}

func TestNextShowsOldestWithButtons(t *testing.T) {
	bot, api, payments, _ := newTestBot()

	bot.handleMessage(context.Background(), command(adminChat, "/next"))
	require.Contains(t, api.last().Text, "Все заявки обработаны")

	payments.queue = []*models.PaymentRequest{queued(4), queued(5)}
	bot.handleMessage(context.Background(), command(adminChat, "/next"))
	msg := api.last()
	require.Contains(t, msg.Text, "Заявка #4")
	require.Contains(t, msg.Text, "2500.00")
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Equal(t, "approve_4", *markup.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "reject_4", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestApproveShowsNext(t *testing.T) {
	bot, api, payments, _ := newTestBot()
	payments.queue = []*models.PaymentRequest{queued(4), queued(5)}

	bot.handleCallback(context.Background(), press("approve_4"))
	require.Equal(t, []int64{4}, payments.confirmed)
	require.Contains(t, api.sent[0].Text, "подтверждена")
	require.Contains(t, api.last().Text, "Заявка #5")
}

func TestApproveTwiceReportsProcessed(t *testing.T) {
	bot, api, payments, _ := newTestBot()
	payments.err = fmt.Errorf("payment 4 is confirmed: %w", service.ErrInvalidTransition)

	bot.handleCallback(context.Background(), press("approve_4"))
	require.Contains(t, api.last().Text, "уже обработана")
}

func TestRejectAsksForReason(t *testing.T) {
	bot, api, payments, _ := newTestBot()
	payments.queue = []*models.PaymentRequest{queued(4), queued(5)}

	bot.handleCallback(context.Background(), press("reject_4"))
	require.Empty(t, payments.rejected)
	require.Contains(t, api.last().Text, "/skip")

	bot.handleMessage(context.Background(), &tgbotapi.Message{Text: "wrong amount", Chat: &tgbotapi.Chat{ID: adminChat}})
	require.Equal(t, map[int64]string{4: "wrong amount"}, payments.rejected)
	require.Contains(t, api.last().Text, "Заявка #5")

	bot.handleCallback(context.Background(), press("reject_5"))
	bot.handleMessage(context.Background(), command(adminChat, "/skip"))
	require.Equal(t, "", payments.rejected[5])
}

func TestOtherCommandCancelsPendingReason(t *testing.T) {
	bot, _, payments, _ := newTestBot()

	bot.handleCallback(context.Background(), press("reject_4"))
	bot.handleMessage(context.Background(), command(adminChat, "/stats"))
	bot.handleMessage(context.Background(), &tgbotapi.Message{Text: "late reason", Chat: &tgbotapi.Chat{ID: adminChat}})
	require.Empty(t, payments.rejected)
}

func TestSentButton(t *testing.T) {
	bot, api, payments, _ := newTestBot()

	bot.handleCallback(context.Background(), press("sent_9"))
	require.Equal(t, []int64{9}, payments.sent)
	require.Contains(t, api.last().Text, "счёт отправлен")
}

func TestPaymentsToggle(t *testing.T) {
	bot, _, _, settings := newTestBot()

	bot.handleMessage(context.Background(), command(adminChat, "/payments_off"))
	bot.handleMessage(context.Background(), command(adminChat, "/payments_on"))
	require.Equal(t, []bool{false, true}, settings.enabled)
}

func TestStats(t *testing.T) {
	bot, api, _, _ := newTestBot()

	bot.handleMessage(context.Background(), command(adminChat, "/stats"))
	require.Contains(t, api.last().Text, "Пользователей: 3")
	require.Contains(t, api.last().Text, "5000.00")
}

func TestParseCallback(t *testing.T) {
	action, id, ok := parseCallback("approve_12")
	require.True(t, ok)
	require.Equal(t, actionApprove, action)
	require.Equal(t, int64(12), id)

	for _, bad := range []string{"", "approve", "approve_", "approve_x", "delete_3", "reject_-1"} {
		_, _, ok := parseCallback(bad)
		require.False(t, ok, bad)
	}
}

func TestNotifier(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, adminChat)
	p := queued(3)
	user := &models.User{ID: 1, Email: "user@example.com"}

	require.NoError(t, n.PaymentCreated(context.Background(), p, user))
	created := api.last()
	require.Equal(t, adminChat, created.ChatID)
	require.Contains(t, created.Text, "user@example.com")
	markup := created.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Equal(t, "sent_3", *markup.InlineKeyboard[0][0].CallbackData)

	require.NoError(t, n.PaymentMarked(context.Background(), p, nil))
	marked := api.last()
	require.NotContains(t, marked.Text, "Аккаунт")
	markup = marked.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Equal(t, "approve_3", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestReasonState(t *testing.T) {
	s := NewReasonState()
	_, ok := s.Take(1)
	require.False(t, ok)

	s.Await(1, 5)
	s.Await(1, 6)
	id, ok := s.Take(1)
	require.True(t, ok)
	require.Equal(t, int64(6), id)
	_, ok = s.Take(1)
	require.False(t, ok)
}

type closedUpdatesAPI struct {
	fakeAPI
}

func (closedUpdatesAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func TestRunReturnsWhenUpdatesClose(t *testing.T) {
	api := &closedUpdatesAPI{}
	bot := NewBot(api, slog.New(slog.NewTextHandler(io.Discard, nil)), adminChat, &fakePayments{}, &fakeSettings{})

	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept looping on a closed updates channel")
	}
	require.Empty(t, api.sent)
}
