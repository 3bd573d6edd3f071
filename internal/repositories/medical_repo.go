package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/herdworks/fieldsync/internal/models"
)

type PostgresMedicalRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMedicalRepository(pool *pgxpool.Pool) *PostgresMedicalRepository {
	return &PostgresMedicalRepository{pool: pool}
}

func (r *PostgresMedicalRepository) Insert(ctx context.Context, event *models.MedicalEvent) error {
	query := `INSERT INTO medical_events (animal_id, account_id, event_type, description, medication, dosage, event_date, next_due_date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		event.AnimalID,
		event.AccountID,
		event.EventType,
		event.Description,
		event.Medication,
		event.Dosage,
		event.EventDate,
		event.NextDueDate,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert medical event: %w", err)
	}
	return nil
}

func (r *PostgresMedicalRepository) ExistsForKey(ctx context.Context, animalID uuid.UUID, eventType string, eventDate time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM medical_events WHERE animal_id = $1 AND event_type = $2 AND event_date = $3)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, animalID, eventType, eventDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check medical event: %w", err)
	}
	return exists, nil
}

func (r *PostgresMedicalRepository) ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]*models.MedicalEvent, error) {
	query := `SELECT id, animal_id, account_id, event_type, description, medication, dosage, event_date, next_due_date, created_at
	          FROM medical_events
	          WHERE animal_id = $1
	          ORDER BY event_date DESC`

	rows, err := r.pool.Query(ctx, query, animalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query medical events: %w", err)
	}
	defer rows.Close()

	var events []*models.MedicalEvent
	for rows.Next() {
		var event models.MedicalEvent
		err := rows.Scan(
			&event.ID,
			&event.AnimalID,
			&event.AccountID,
			&event.EventType,
			&event.Description,
			&event.Medication,
			&event.Dosage,
			&event.EventDate,
			&event.NextDueDate,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medical event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medical events: %w", err)
	}

	return events, nil
}
