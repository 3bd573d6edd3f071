package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/herdworks/fieldsync/internal/models"
)

const animalColumns = `id, tag_number, barcode, name, breed, gender, birth_date, weight, color, status, created_at, updated_at`

type PostgresAnimalRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAnimalRepository(pool *pgxpool.Pool) *PostgresAnimalRepository {
	return &PostgresAnimalRepository{pool: pool}
}

func (r *PostgresAnimalRepository) Create(ctx context.Context, animal *models.Animal) error {
	query := `INSERT INTO animals (tag_number, barcode, name, breed, gender, birth_date, weight, color, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active')
	          RETURNING id, status, created_at`

	err := r.pool.QueryRow(ctx, query,
		animal.TagNumber,
		animal.Barcode,
		animal.Name,
		animal.Breed,
		animal.Gender,
		animal.BirthDate,
		animal.Weight,
		animal.Color,
	).Scan(&animal.ID, &animal.Status, &animal.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create animal: %w", err)
	}
	return nil
}

func (r *PostgresAnimalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Animal, error) {
	query := `SELECT ` + animalColumns + ` FROM animals WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresAnimalRepository) GetByTag(ctx context.Context, tag string) (*models.Animal, error) {
	query := `SELECT ` + animalColumns + ` FROM animals WHERE tag_number = $1 AND status = 'active'`
	return r.scanOne(r.pool.QueryRow(ctx, query, tag))
}

func (r *PostgresAnimalRepository) GetByBarcode(ctx context.Context, barcode string) (*models.Animal, error) {
	query := `SELECT ` + animalColumns + ` FROM animals WHERE barcode = $1 AND status = 'active'`
	return r.scanOne(r.pool.QueryRow(ctx, query, barcode))
}

// ListActive returns the full active herd, ordered by tag. This is the bulk
// read agents use to refresh their local cache while online.
func (r *PostgresAnimalRepository) ListActive(ctx context.Context) ([]*models.Animal, error) {
	query := `SELECT ` + animalColumns + ` FROM animals WHERE status = 'active' ORDER BY tag_number ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query animals: %w", err)
	}
	defer rows.Close()

	var animals []*models.Animal
	for rows.Next() {
		var animal models.Animal
		if err := scanAnimal(rows, &animal); err != nil {
			return nil, fmt.Errorf("failed to scan animal: %w", err)
		}
		animals = append(animals, &animal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating animals: %w", err)
	}

	return animals, nil
}

func (r *PostgresAnimalRepository) Update(ctx context.Context, animal *models.Animal) error {
	query := `UPDATE animals
	          SET tag_number = $1, barcode = $2, name = $3, breed = $4, gender = $5,
	              birth_date = $6, weight = $7, color = $8, updated_at = NOW()
	          WHERE id = $9`

	result, err := r.pool.Exec(ctx, query,
		animal.TagNumber,
		animal.Barcode,
		animal.Name,
		animal.Breed,
		animal.Gender,
		animal.BirthDate,
		animal.Weight,
		animal.Color,
		animal.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update animal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Retire marks an animal deceased instead of deleting the row, so historic
// attendance and medical records keep a valid reference.
func (r *PostgresAnimalRepository) Retire(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE animals SET status = 'deceased', updated_at = NOW() WHERE id = $1 AND status = 'active'`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to retire animal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresAnimalRepository) scanOne(row pgx.Row) (*models.Animal, error) {
	var animal models.Animal
	err := scanAnimal(row, &animal)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get animal: %w", err)
	}
	return &animal, nil
}

func scanAnimal(row pgx.Row, animal *models.Animal) error {
	return row.Scan(
		&animal.ID,
		&animal.TagNumber,
		&animal.Barcode,
		&animal.Name,
		&animal.Breed,
		&animal.Gender,
		&animal.BirthDate,
		&animal.Weight,
		&animal.Color,
		&animal.Status,
		&animal.CreatedAt,
		&animal.UpdatedAt,
	)
}
