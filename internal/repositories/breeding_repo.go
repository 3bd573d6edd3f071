package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/herdworks/fieldsync/internal/models"
)

type PostgresBreedingRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresBreedingRepository(pool *pgxpool.Pool) *PostgresBreedingRepository {
	return &PostgresBreedingRepository{pool: pool}
}

func (r *PostgresBreedingRepository) Insert(ctx context.Context, rec *models.BreedingRecord) error {
	query := `INSERT INTO breeding_records (dam_id, sire_id, account_id, breeding_date, expected_due_date, outcome, notes)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		rec.DamID,
		rec.SireID,
		rec.AccountID,
		rec.BreedingDate,
		rec.ExpectedDueDate,
		rec.Outcome,
		rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert breeding record: %w", err)
	}
	return nil
}

func (r *PostgresBreedingRepository) ExistsForKey(ctx context.Context, damID uuid.UUID, breedingDate time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM breeding_records WHERE dam_id = $1 AND breeding_date = $2)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, damID, breedingDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check breeding record: %w", err)
	}
	return exists, nil
}

func (r *PostgresBreedingRepository) ListByDam(ctx context.Context, damID uuid.UUID) ([]*models.BreedingRecord, error) {
	query := `SELECT id, dam_id, sire_id, account_id, breeding_date, expected_due_date, outcome, notes, created_at
	          FROM breeding_records
	          WHERE dam_id = $1
	          ORDER BY breeding_date DESC`

	rows, err := r.pool.Query(ctx, query, damID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breeding records: %w", err)
	}
	defer rows.Close()

	var records []*models.BreedingRecord
	for rows.Next() {
		var rec models.BreedingRecord
		err := rows.Scan(
			&rec.ID,
			&rec.DamID,
			&rec.SireID,
			&rec.AccountID,
			&rec.BreedingDate,
			&rec.ExpectedDueDate,
			&rec.Outcome,
			&rec.Notes,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan breeding record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breeding records: %w", err)
	}

	return records, nil
}
