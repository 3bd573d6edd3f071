package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/herdworks/fieldsync/internal/models"
)

type PostgresAttendanceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAttendanceRepository(pool *pgxpool.Pool) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{pool: pool}
}

func (r *PostgresAttendanceRepository) Insert(ctx context.Context, att *models.Attendance) error {
	query := `INSERT INTO attendance (animal_id, account_id, attendance_date, notes, recorded_at)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		att.AnimalID,
		att.AccountID,
		att.AttendanceDate,
		att.Notes,
		att.RecordedAt,
	).Scan(&att.ID)

	if err != nil {
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

// ExistsForDate is the dedup check: at most one attendance row per
// (animal_id, attendance_date).
func (r *PostgresAttendanceRepository) ExistsForDate(ctx context.Context, animalID uuid.UUID, date time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM attendance WHERE animal_id = $1 AND attendance_date = $2)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, animalID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check attendance: %w", err)
	}
	return exists, nil
}

func (r *PostgresAttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]*models.Attendance, error) {
	query := `SELECT id, animal_id, account_id, attendance_date, notes, recorded_at
	          FROM attendance
	          WHERE attendance_date = $1
	          ORDER BY recorded_at DESC`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []*models.Attendance
	for rows.Next() {
		var att models.Attendance
		err := rows.Scan(
			&att.ID,
			&att.AnimalID,
			&att.AccountID,
			&att.AttendanceDate,
			&att.Notes,
			&att.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, &att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}

	return records, nil
}
