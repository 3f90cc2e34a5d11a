package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digkill/photostudio/internal/astria"
	"github.com/digkill/photostudio/internal/callback"
	"github.com/digkill/photostudio/internal/config"
	"github.com/digkill/photostudio/internal/models"
)

const (
	DefaultAspectRatio = "2:3"
	// PlaceholderImageURL is shown until the provider delivers the image.
	PlaceholderImageURL = "/img/generating.svg"
	demoModelName       = "Demo"
	userListLimit       = 50
)

var aspectRatios = map[string]bool{
	"1:1": true, "2:3": true, "3:2": true, "3:4": true,
	"4:3": true, "4:5": true, "9:16": true, "16:9": true,
}

type GenerationService struct {
	log         *slog.Logger
	ledger      *Ledger
	generations GenerationStore
	models      ModelStore
	provider    ImageProvider
	enhancer    PromptEnhancer
	callbacks   *callback.Builder
	demoTuneID  string
	maxImages   int
	now         func() time.Time
}

type GenerationRequest struct {
	ModelRef        string `json:"modelId"`
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspectRatio"`
	NumImages       int    `json:"numImages"`
	InputImageURL   string `json:"inputImageUrl"`
	SuperResolution bool   `json:"superResolution"`
	FilmGrain       bool   `json:"filmGrain"`
	InpaintFaces    bool   `json:"inpaintFaces"`
}

type GenerationResult struct {
	Generation *models.Generation `json:"generation"`
	Credits    int                `json:"credits"`
}

// NewGenerationService wires the dispatcher. enhancer may be nil.
func NewGenerationService(cfg config.Config, log *slog.Logger, ledger *Ledger, generations GenerationStore, trained ModelStore, provider ImageProvider, enhancer PromptEnhancer, callbacks *callback.Builder) *GenerationService {
	maxImages := cfg.AstriaMaxImages
	if maxImages <= 0 {
		maxImages = 8
	}
	return &GenerationService{
		log:         log,
		ledger:      ledger,
		generations: generations,
		models:      trained,
		provider:    provider,
		enhancer:    enhancer,
		callbacks:   callbacks,
		demoTuneID:  cfg.AstriaDemoTune,
		maxImages:   maxImages,
		now:         time.Now,
	}
}

type resolvedModel struct {
	tuneID string
	id     *int64
	name   string
	class  models.SubjectClass
}

// Submit debits the user, records a placeholder and queues the job. A failed
// dispatch marks the placeholder failed and refunds before returning.
func (s *GenerationService) Submit(ctx context.Context, userID int64, req GenerationRequest) (*GenerationResult, error) {
	rawPrompt := strings.TrimSpace(req.Prompt)
	if rawPrompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if req.NumImages < 1 {
		return nil, fmt.Errorf("%w: at least one image must be requested", ErrValidation)
	}
	if req.AspectRatio == "" {
		req.AspectRatio = DefaultAspectRatio
	}
	if !aspectRatios[req.AspectRatio] {
		return nil, fmt.Errorf("%w: unsupported aspect ratio %q", ErrValidation, req.AspectRatio)
	}

	model, err := s.resolveModel(ctx, userID, req.ModelRef)
	if err != nil {
		return nil, err
	}

	cost := GenerationCost(req.NumImages)
	if _, err := s.ledger.Debit(ctx, userID, cost); err != nil {
		return nil, err
	}
	// Once charged, the job is seen through to processing or failed even if
	// the caller goes away.
	dctx := context.WithoutCancel(ctx)

	prompt := s.enhance(ctx, rawPrompt)

	gen := &models.Generation{
		UserID:         userID,
		ModelID:        model.id,
		ModelName:      model.name,
		Prompt:         prompt,
		OriginalPrompt: rawPrompt,
		ImageURL:       PlaceholderImageURL,
		Status:         models.GenerationProcessing,
		AspectRatio:    req.AspectRatio,
	}
	if err := s.generations.Create(dctx, gen); err != nil {
		s.refund(dctx, userID, cost)
		return nil, fmt.Errorf("create generation: %w", err)
	}

	providerText := prompt
	if model.id != nil {
		providerText = fmt.Sprintf("sks %s, %s", model.class, prompt)
	}

	promptID, err := s.provider.CreatePrompt(dctx, astria.PromptRequest{
		TuneID:          model.tuneID,
		Text:            providerText,
		NumImages:       min(req.NumImages, s.maxImages),
		AspectRatio:     req.AspectRatio,
		InputImageURL:   strings.TrimSpace(req.InputImageURL),
		SuperResolution: req.SuperResolution,
		FilmGrain:       req.FilmGrain,
		InpaintFaces:    req.InpaintFaces,
		CallbackURL:     s.callbacks.Generation(gen.ID, userID, gen.ModelRef()),
	})
	if err != nil {
		s.log.Error("generation dispatch failed", "generation_id", gen.ID, "user_id", userID, "err", err)
		if _, failErr := s.generations.Fail(dctx, gen.ID, s.now().UTC()); failErr != nil {
			s.log.Error("failed to mark generation failed", "generation_id", gen.ID, "err", failErr)
		}
		gen.Status = models.GenerationFailed
		s.refund(dctx, userID, cost)
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	gen.ProviderPromptID = promptID
	if err := s.generations.SetProviderID(dctx, gen.ID, promptID); err != nil {
		// The callback URL carries our ids, so the job still completes.
		s.log.Error("failed to store provider prompt id", "generation_id", gen.ID, "prompt_id", promptID, "err", err)
	}

	balance, err := s.ledger.Balance(dctx, userID)
	if err != nil {
		return nil, err
	}
	return &GenerationResult{Generation: gen, Credits: balance}, nil
}

func (s *GenerationService) resolveModel(ctx context.Context, userID int64, ref string) (resolvedModel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == models.DemoModelRef {
		if s.demoTuneID == "" {
			return resolvedModel{}, fmt.Errorf("%w: demo model is not configured", ErrValidation)
		}
		return resolvedModel{tuneID: s.demoTuneID, name: demoModelName}, nil
	}

	id, err := models.ParseID(ref)
	if err != nil {
		return resolvedModel{}, fmt.Errorf("model %q: %w", ref, ErrNotFound)
	}
	m, err := s.models.GetByID(ctx, id)
	if err != nil {
		return resolvedModel{}, err
	}
	if m == nil {
		return resolvedModel{}, fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if m.UserID != userID {
		s.log.Warn("model ownership mismatch", "model_id", id, "owner_id", m.UserID, "user_id", userID)
		return resolvedModel{}, fmt.Errorf("model %d: %w", id, ErrForbidden)
	}
	if !m.Usable() {
		return resolvedModel{}, fmt.Errorf("%w: model is not ready", ErrValidation)
	}
	return resolvedModel{tuneID: m.ProviderTuneID, id: &m.ID, name: m.Name, class: m.SubjectClass}, nil
}

func (s *GenerationService) enhance(ctx context.Context, prompt string) string {
	if s.enhancer == nil {
		return prompt
	}
	enhanced, err := s.enhancer.Enhance(ctx, prompt)
	if err != nil {
		s.log.Warn("prompt enhancement skipped", "err", err)
		return prompt
	}
	return enhanced
}

func (s *GenerationService) refund(ctx context.Context, userID int64, amount int) {
	if _, err := s.ledger.Credit(ctx, userID, amount); err != nil {
		s.log.Error("refund failed", "user_id", userID, "amount", amount, "err", err)
	}
}

func (s *GenerationService) List(ctx context.Context, userID int64) ([]models.Generation, error) {
	return s.generations.ListByUser(ctx, userID, userListLimit)
}

// Delete removes one of the caller's own generations.
func (s *GenerationService) Delete(ctx context.Context, userID, id int64) error {
	gen, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if gen == nil {
		return fmt.Errorf("generation %d: %w", id, ErrNotFound)
	}
	if gen.UserID != userID {
		s.log.Warn("generation ownership mismatch", "generation_id", id, "owner_id", gen.UserID, "user_id", userID)
		return fmt.Errorf("generation %d: %w", id, ErrForbidden)
	}
	return s.generations.Delete(ctx, id)
}
