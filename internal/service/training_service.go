package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/photostudio/internal/astria"
	"github.com/digkill/photostudio/internal/callback"
	"github.com/digkill/photostudio/internal/models"
)

type TrainingService struct {
	log       *slog.Logger
	ledger    *Ledger
	models    ModelStore
	provider  ImageProvider
	callbacks *callback.Builder
}

type TrainingRequest struct {
	Name         string              `json:"name"`
	SubjectClass models.SubjectClass `json:"gender"`
	ImageURLs    []string            `json:"images"`
}

type TrainingResult struct {
	Model   *models.TrainedModel `json:"model"`
	Credits int                  `json:"credits"`
}

func NewTrainingService(log *slog.Logger, ledger *Ledger, trained ModelStore, provider ImageProvider, callbacks *callback.Builder) *TrainingService {
	return &TrainingService{
		log:       log,
		ledger:    ledger,
		models:    trained,
		provider:  provider,
		callbacks: callbacks,
	}
}

// Submit charges the flat training cost and queues fine-tuning. If the
// provider refuses the job, the record created here is deleted by id and
// the cost is refunded.
func (s *TrainingService) Submit(ctx context.Context, userID int64, req TrainingRequest) (*TrainingResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrValidation)
	}
	class := req.SubjectClass
	if class == "" {
		class = models.SubjectPerson
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: unsupported subject class %q", ErrValidation, class)
	}
	images := make([]string, 0, len(req.ImageURLs))
	for _, u := range req.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: at least one training image is required", ErrValidation)
	}

	if _, err := s.ledger.Debit(ctx, userID, TrainingCost); err != nil {
		return nil, err
	}
	dctx := context.WithoutCancel(ctx)

	model := &models.TrainedModel{
		UserID:         userID,
		Name:           name,
		SubjectClass:   class,
		TrainingImages: images,
		Status:         models.ModelProcessing,
	}
	if err := s.models.Create(dctx, model); err != nil {
		s.refund(dctx, userID)
		return nil, fmt.Errorf("create trained model: %w", err)
	}

	tuneID, err := s.provider.CreateTune(dctx, astria.TuneRequest{
		Title:       fmt.Sprintf("user-%d-model-%d", userID, model.ID),
		ClassName:   string(class),
		ImageURLs:   images,
		CallbackURL: s.callbacks.Training(model.ID),
	})
	if err != nil {
		s.log.Error("training dispatch failed", "model_id", model.ID, "user_id", userID, "err", err)
		if delErr := s.models.Delete(dctx, model.ID); delErr != nil {
			s.log.Error("failed to remove undispatched model", "model_id", model.ID, "err", delErr)
		}
		s.refund(dctx, userID)
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	model.ProviderTuneID = tuneID
	if err := s.models.SetProviderID(dctx, model.ID, tuneID); err != nil {
		s.log.Error("failed to store provider tune id", "model_id", model.ID, "tune_id", tuneID, "err", err)
	}

	balance, err := s.ledger.Balance(dctx, userID)
	if err != nil {
		return nil, err
	}
	return &TrainingResult{Model: model, Credits: balance}, nil
}

func (s *TrainingService) refund(ctx context.Context, userID int64) {
	if _, err := s.ledger.Credit(ctx, userID, TrainingCost); err != nil {
		s.log.Error("refund failed", "user_id", userID, "amount", TrainingCost, "err", err)
	}
}

func (s *TrainingService) List(ctx context.Context, userID int64) ([]models.TrainedModel, error) {
	return s.models.ListByUser(ctx, userID, userListLimit)
}

func (s *TrainingService) Delete(ctx context.Context, userID, id int64) error {
	m, err := s.models.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if m.UserID != userID {
		s.log.Warn("model ownership mismatch", "model_id", id, "owner_id", m.UserID, "user_id", userID)
		return fmt.Errorf("model %d: %w", id, ErrForbidden)
	}
	return s.models.Delete(ctx, id)
}
