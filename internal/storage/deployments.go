package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/deployment"
)

// SaveDeployment stores a sealed configuration under a new id.
func (p *PostgresClient) SaveDeployment(ctx context.Context, name string, cfg *deployment.Config) (StoredDeployment, error) {
	stored, err := newStoredDeployment(name, cfg, time.Now())
	if err != nil {
		return StoredDeployment{}, err
	}

	docJSON, err := json.Marshal(stored.Document)
	if err != nil {
		return StoredDeployment{}, fmt.Errorf("failed to marshal deployment: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO deployments (id, name, platform, document, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, stored.ID, stored.Name, stored.Platform, docJSON, stored.CreatedAt)
	if err != nil {
		return StoredDeployment{}, fmt.Errorf("failed to insert deployment: %w", err)
	}

	p.logger.Info("Deployment stored",
		zap.String("id", stored.ID.String()),
		zap.String("name", stored.Name),
		zap.String("platform", stored.Platform))

	return stored, nil
}

func (p *PostgresClient) GetDeployment(ctx context.Context, id uuid.UUID) (StoredDeployment, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, platform, document, created_at
		FROM deployments
		WHERE id = $1
	`, id)

	stored, err := scanDeployment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredDeployment{}, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return stored, err
}

// ListDeployments returns all stored deployments, newest first.
func (p *PostgresClient) ListDeployments(ctx context.Context) ([]StoredDeployment, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, platform, document, created_at
		FROM deployments
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	deployments := make([]StoredDeployment, 0)
	for rows.Next() {
		stored, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, stored)
	}
	return deployments, rows.Err()
}

func (p *PostgresClient) DeleteDeployment(ctx context.Context, id uuid.UUID) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM deployments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanDeployment(row pgx.Row) (StoredDeployment, error) {
	var stored StoredDeployment
	var docJSON []byte

	if err := row.Scan(&stored.ID, &stored.Name, &stored.Platform, &docJSON, &stored.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredDeployment{}, err
		}
		return StoredDeployment{}, fmt.Errorf("failed to scan deployment: %w", err)
	}

	if err := json.Unmarshal(docJSON, &stored.Document); err != nil {
		return StoredDeployment{}, fmt.Errorf("failed to unmarshal deployment: %w", err)
	}
	return stored, nil
}
