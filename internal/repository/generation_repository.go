package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/photostudio/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

const generationColumns = `id, user_id, model_id, model_name, prompt, COALESCE(original_prompt, ''), image_url,
COALESCE(provider_prompt_id, ''), status, aspect_ratio, created_at, completed_at`

func scanGeneration(row interface{ Scan(...any) error }) (*models.Generation, error) {
	var g models.Generation
	var modelID sql.NullInt64
	var completedAt sql.NullTime
	if err := row.Scan(&g.ID, &g.UserID, &modelID, &g.ModelName, &g.Prompt, &g.OriginalPrompt, &g.ImageURL,
		&g.ProviderPromptID, &g.Status, &g.AspectRatio, &g.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	if modelID.Valid {
		id := modelID.Int64
		g.ModelID = &id
	}
	if completedAt.Valid {
		t := completedAt.Time
		g.CompletedAt = &t
	}
	return &g, nil
}

func (r *GenerationRepository) Create(ctx context.Context, g *models.Generation) error {
	const query = `
INSERT INTO generations (user_id, model_id, model_name, prompt, original_prompt, image_url, provider_prompt_id, status, aspect_ratio, completed_at)
VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?)`
	var modelID sql.NullInt64
	if g.ModelID != nil {
		modelID = sql.NullInt64{Int64: *g.ModelID, Valid: true}
	}
	var completedAt sql.NullTime
	if g.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *g.CompletedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, query, g.UserID, modelID, g.ModelName, g.Prompt, g.OriginalPrompt, g.ImageURL,
		g.ProviderPromptID, g.Status, g.AspectRatio, completedAt)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	g.ID = id
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r *GenerationRepository) GetByID(ctx context.Context, id int64) (*models.Generation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = ?`, id)
	g, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan generation: %w", err)
	}
	return g, nil
}

func (r *GenerationRepository) SetProviderID(ctx context.Context, id int64, providerID string) error {
	const query = `UPDATE generations SET provider_prompt_id = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, providerID, id); err != nil {
		return fmt.Errorf("set generation provider id: %w", err)
	}
	return nil
}

// Complete finalizes a processing generation with its image.
// It reports false when the record is missing or already finalized.
func (r *GenerationRepository) Complete(ctx context.Context, id int64, imageURL string, at time.Time) (bool, error) {
	const query = `
UPDATE generations SET status = ?, image_url = ?, completed_at = ?
WHERE id = ? AND status = ?`
	return r.finalize(ctx, query, models.GenerationCompleted, imageURL, at, id, models.GenerationProcessing)
}

// Fail moves a processing generation to failed.
func (r *GenerationRepository) Fail(ctx context.Context, id int64, at time.Time) (bool, error) {
	const query = `
UPDATE generations SET status = ?, completed_at = ?
WHERE id = ? AND status = ?`
	return r.finalize(ctx, query, models.GenerationFailed, at, id, models.GenerationProcessing)
}

func (r *GenerationRepository) finalize(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("finalize generation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("generation rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *GenerationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Generation, error) {
	const query = `SELECT ` + generationColumns + ` FROM generations WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation list: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (r *GenerationRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}
