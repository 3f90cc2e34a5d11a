package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/digkill/photostudio/internal/astria"
	"github.com/digkill/photostudio/internal/callback"
	"github.com/digkill/photostudio/internal/models"
)

// WebhookService finalizes jobs from provider callbacks. Every finalization
// is conditional on the record still being in processing, so a repeated
// callback changes nothing.
type WebhookService struct {
	log         *slog.Logger
	callbacks   *callback.Builder
	generations GenerationStore
	models      ModelStore
	now         func() time.Time
}

func NewWebhookService(log *slog.Logger, callbacks *callback.Builder, generations GenerationStore, trained ModelStore) *WebhookService {
	return &WebhookService{
		log:         log,
		callbacks:   callbacks,
		generations: generations,
		models:      trained,
		now:         time.Now,
	}
}

// Handle processes one callback. The returned error is for logging only;
// the provider is acknowledged either way.
func (s *WebhookService) Handle(ctx context.Context, query url.Values, body []byte) error {
	target, err := s.callbacks.Parse(query)
	if err != nil {
		return fmt.Errorf("callback query: %w", err)
	}
	payload, err := astria.ParseCallback(body)
	if err != nil {
		return fmt.Errorf("callback body: %w", err)
	}

	switch target.Kind {
	case callback.KindTraining:
		return s.finishTraining(ctx, target, payload)
	case callback.KindGeneration:
		return s.finishGeneration(ctx, target, payload)
	default:
		return fmt.Errorf("unknown callback kind %q", target.Kind)
	}
}

func (s *WebhookService) finishTraining(ctx context.Context, target callback.Target, payload astria.CallbackPayload) error {
	m, err := s.models.GetByID(ctx, target.ModelID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("training callback for model %d: %w", target.ModelID, ErrNotFound)
	}

	status := models.ModelReady
	if payload.Failed {
		status = models.ModelFailed
	}
	ok, err := s.models.Finish(ctx, m.ID, status, payload.ID, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("duplicate training callback ignored", "model_id", m.ID, "status", m.Status)
		return nil
	}
	s.log.Info("model training finished", "model_id", m.ID, "user_id", m.UserID, "status", status, "reason", payload.Reason)
	return nil
}

func (s *WebhookService) finishGeneration(ctx context.Context, target callback.Target, payload astria.CallbackPayload) error {
	gen, err := s.generations.GetByID(ctx, target.GenerationID)
	if err != nil {
		return err
	}
	if gen == nil {
		return fmt.Errorf("generation callback for %d: %w", target.GenerationID, ErrNotFound)
	}
	if gen.UserID != target.UserID || gen.ModelRef() != target.ModelRef {
		return fmt.Errorf("generation %d: callback identifiers do not match record", gen.ID)
	}

	now := s.now().UTC()
	if payload.Failed {
		ok, err := s.generations.Fail(ctx, gen.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Info("duplicate generation callback ignored", "generation_id", gen.ID, "status", gen.Status)
			return nil
		}
		s.log.Warn("generation failed at provider", "generation_id", gen.ID, "user_id", gen.UserID, "reason", payload.Reason)
		return nil
	}

	if len(payload.Images) == 0 {
		s.log.Info("generation callback without images", "generation_id", gen.ID)
		return nil
	}

	ok, err := s.generations.Complete(ctx, gen.ID, payload.Images[0], now)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("duplicate generation callback ignored", "generation_id", gen.ID, "status", gen.Status)
		return nil
	}

	if gen.ProviderPromptID == "" && payload.ID != "" {
		gen.ProviderPromptID = payload.ID
		if err := s.generations.SetProviderID(ctx, gen.ID, payload.ID); err != nil {
			s.log.Error("failed to store provider prompt id", "generation_id", gen.ID, "err", err)
		}
	}

	var errs []error
	for _, img := range payload.Images[1:] {
		completedAt := now
		extra := &models.Generation{
			UserID:           gen.UserID,
			ModelID:          gen.ModelID,
			ModelName:        gen.ModelName,
			Prompt:           gen.Prompt,
			OriginalPrompt:   gen.OriginalPrompt,
			ImageURL:         img,
			ProviderPromptID: gen.ProviderPromptID,
			Status:           models.GenerationCompleted,
			AspectRatio:      gen.AspectRatio,
			CompletedAt:      &completedAt,
		}
		if err := s.generations.Create(ctx, extra); err != nil {
			errs = append(errs, fmt.Errorf("store extra image: %w", err))
		}
	}
	s.log.Info("generation completed", "generation_id", gen.ID, "user_id", gen.UserID, "images", len(payload.Images))
	return errors.Join(errs...)
}
