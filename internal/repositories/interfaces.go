package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type AnimalRepository interface {
	Create(ctx context.Context, animal *models.Animal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Animal, error)
	GetByTag(ctx context.Context, tag string) (*models.Animal, error)
	GetByBarcode(ctx context.Context, barcode string) (*models.Animal, error)
	ListActive(ctx context.Context) ([]*models.Animal, error)
	Update(ctx context.Context, animal *models.Animal) error
	Retire(ctx context.Context, id uuid.UUID) error
}

type AttendanceRepository interface {
	Insert(ctx context.Context, att *models.Attendance) error
	ExistsForDate(ctx context.Context, animalID uuid.UUID, date time.Time) (bool, error)
	ListByDate(ctx context.Context, date time.Time) ([]*models.Attendance, error)
}

type MedicalRepository interface {
	Insert(ctx context.Context, event *models.MedicalEvent) error
	ExistsForKey(ctx context.Context, animalID uuid.UUID, eventType string, eventDate time.Time) (bool, error)
	ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]*models.MedicalEvent, error)
}

type BreedingRepository interface {
	Insert(ctx context.Context, rec *models.BreedingRecord) error
	ExistsForKey(ctx context.Context, damID uuid.UUID, breedingDate time.Time) (bool, error)
	ListByDam(ctx context.Context, damID uuid.UUID) ([]*models.BreedingRecord, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}
