package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/digkill/photostudio/internal/models"
)

const templateListLimit = 200

type TemplateService struct {
	repo TemplateStore
}

type CreateTemplateInput struct {
	Name     string
	Prompt   string
	Category string
	ImageURL string
	IsHit    bool
}

func NewTemplateService(repo TemplateStore) *TemplateService {
	return &TemplateService{repo: repo}
}

func (s *TemplateService) List(ctx context.Context) ([]models.Template, error) {
	return s.repo.List(ctx, templateListLimit)
}

func (s *TemplateService) Create(ctx context.Context, input CreateTemplateInput) (*models.Template, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Prompt = strings.TrimSpace(input.Prompt)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if input.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if input.ImageURL == "" {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = "general"
	}
	return s.repo.Create(ctx, &models.Template{
		Name:     input.Name,
		Prompt:   input.Prompt,
		Category: category,
		ImageURL: input.ImageURL,
		IsHit:    input.IsHit,
	})
}

func (s *TemplateService) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	return nil
}
