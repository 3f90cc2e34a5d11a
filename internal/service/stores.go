package service

import (
	"context"
	"time"

	"github.com/digkill/photostudio/internal/astria"
	"github.com/digkill/photostudio/internal/models"
)

// The store interfaces are satisfied by the repositories in internal/repository.

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	FindByGoogleSub(ctx context.Context, sub string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, userID int64, email, name, picture string) error
	DebitCredits(ctx context.Context, userID int64, amount int) (bool, error)
	AddCredits(ctx context.Context, userID int64, amount int) (bool, error)
	List(ctx context.Context, limit int) ([]models.User, error)
	Count(ctx context.Context) (int, error)
}

type GenerationStore interface {
	Create(ctx context.Context, g *models.Generation) error
	GetByID(ctx context.Context, id int64) (*models.Generation, error)
	SetProviderID(ctx context.Context, id int64, providerID string) error
	Complete(ctx context.Context, id int64, imageURL string, at time.Time) (bool, error)
	Fail(ctx context.Context, id int64, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Generation, error)
	Delete(ctx context.Context, id int64) error
}

type ModelStore interface {
	Create(ctx context.Context, m *models.TrainedModel) error
	GetByID(ctx context.Context, id int64) (*models.TrainedModel, error)
	SetProviderID(ctx context.Context, id int64, tuneID string) error
	Finish(ctx context.Context, id int64, status models.ModelStatus, tuneID string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.TrainedModel, error)
	Delete(ctx context.Context, id int64) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.PaymentRequest) error
	GetByID(ctx context.Context, id int64) (*models.PaymentRequest, error)
	MarkPaid(ctx context.Context, id int64, by models.Actor, at time.Time) (bool, error)
	// ConfirmAndCredit applies paid -> confirmed and the owner's credit
	// atomically; false means the request was not in paid.
	ConfirmAndCredit(ctx context.Context, id int64, at time.Time) (bool, error)
	Reject(ctx context.Context, id int64, note string, at time.Time) (bool, error)
	DeleteOpen(ctx context.Context, id int64) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.PaymentRequest, error)
	List(ctx context.Context, status models.PaymentStatus, limit int) ([]models.PaymentRequest, error)
	Oldest(ctx context.Context, status models.PaymentStatus) (*models.PaymentRequest, error)
	Stats(ctx context.Context) (models.PaymentStats, error)
}

type SettingsStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
}

type TemplateStore interface {
	List(ctx context.Context, limit int) ([]models.Template, error)
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	Create(ctx context.Context, t *models.Template) (*models.Template, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// ImageProvider queues generation and fine-tuning jobs.
type ImageProvider interface {
	CreatePrompt(ctx context.Context, req astria.PromptRequest) (string, error)
	CreateTune(ctx context.Context, req astria.TuneRequest) (string, error)
}

// PromptEnhancer rewrites a raw user prompt. It is optional.
type PromptEnhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

// Notifier relays payment events to the administrator. Errors are logged by
// the caller and never fail the transition that fired them.
type Notifier interface {
	PaymentCreated(ctx context.Context, p *models.PaymentRequest, user *models.User) error
	PaymentMarked(ctx context.Context, p *models.PaymentRequest, user *models.User) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) PaymentCreated(context.Context, *models.PaymentRequest, *models.User) error {
	return nil
}

func (NopNotifier) PaymentMarked(context.Context, *models.PaymentRequest, *models.User) error {
	return nil
}
