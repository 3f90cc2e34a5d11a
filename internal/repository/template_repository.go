package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/photostudio/internal/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) List(ctx context.Context, limit int) ([]models.Template, error) {
	const query = `
SELECT id, name, prompt, category, image_url, is_hit, created_at
FROM templates
ORDER BY is_hit DESC, created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Prompt, &t.Category, &t.ImageURL, &t.IsHit, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	const query = `
SELECT id, name, prompt, category, image_url, is_hit, created_at
FROM templates
WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var t models.Template
	if err := row.Scan(&t.ID, &t.Name, &t.Prompt, &t.Category, &t.ImageURL, &t.IsHit, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) (*models.Template, error) {
	const query = `
INSERT INTO templates (name, prompt, category, image_url, is_hit)
VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Prompt, t.Category, t.ImageURL, t.IsHit)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("template last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *TemplateRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("template rows affected: %w", err)
	}
	return affected > 0, nil
}
