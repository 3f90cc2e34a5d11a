package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/photostudio/internal/models"
)

type TrainedModelRepository struct {
	db *sql.DB
}

func NewTrainedModelRepository(db *sql.DB) *TrainedModelRepository {
	return &TrainedModelRepository{db: db}
}

const trainedModelColumns = `id, user_id, name, subject_class, training_images, status, COALESCE(provider_tune_id, ''), created_at, completed_at`

func scanTrainedModel(row interface{ Scan(...any) error }) (*models.TrainedModel, error) {
	var m models.TrainedModel
	var images []byte
	var completedAt sql.NullTime
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.SubjectClass, &images, &m.Status, &m.ProviderTuneID, &m.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &m.TrainingImages); err != nil {
			return nil, fmt.Errorf("decode training images: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		m.CompletedAt = &t
	}
	return &m, nil
}

func (r *TrainedModelRepository) Create(ctx context.Context, m *models.TrainedModel) error {
	images, err := json.Marshal(m.TrainingImages)
	if err != nil {
		return fmt.Errorf("encode training images: %w", err)
	}
	const query = `
INSERT INTO trained_models (user_id, name, subject_class, training_images, status)
VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, m.UserID, m.Name, m.SubjectClass, string(images), m.Status)
	if err != nil {
		return fmt.Errorf("insert trained model: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r *TrainedModelRepository) GetByID(ctx context.Context, id int64) (*models.TrainedModel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+trainedModelColumns+` FROM trained_models WHERE id = ?`, id)
	m, err := scanTrainedModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan trained model: %w", err)
	}
	return m, nil
}

func (r *TrainedModelRepository) SetProviderID(ctx context.Context, id int64, tuneID string) error {
	const query = `UPDATE trained_models SET provider_tune_id = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, tuneID, id); err != nil {
		return fmt.Errorf("set trained model provider id: %w", err)
	}
	return nil
}

// Finish moves a processing model to ready or failed. A tune id carried by
// the callback is kept only when the dispatcher has not stored one yet.
func (r *TrainedModelRepository) Finish(ctx context.Context, id int64, status models.ModelStatus, tuneID string, at time.Time) (bool, error) {
	const query = `
UPDATE trained_models
SET status = ?, completed_at = ?, provider_tune_id = COALESCE(NULLIF(provider_tune_id, ''), NULLIF(?, ''))
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, status, at, tuneID, id, models.ModelProcessing)
	if err != nil {
		return false, fmt.Errorf("finish trained model: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("trained model rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TrainedModelRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.TrainedModel, error) {
	const query = `SELECT ` + trainedModelColumns + ` FROM trained_models WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trained models: %w", err)
	}
	defer rows.Close()

	var out []models.TrainedModel
	for rows.Next() {
		m, err := scanTrainedModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trained model list: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *TrainedModelRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trained_models WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete trained model: %w", err)
	}
	return nil
}
