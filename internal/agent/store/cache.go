package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/herdworks/fieldsync/internal/models"
)

// ErrCacheMiss means the entity is not resolvable offline. Nothing is
// queued on a miss; the caller surfaces it to the user.
var ErrCacheMiss = errors.New("entity not resolvable offline")

// Cache holds the last-known snapshot of the herd so scanned codes resolve
// while offline. It is refreshed opportunistically after successful online
// bulk reads and never treated as the source of truth.
type Cache struct {
	db *sql.DB
}

func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Put upserts entries, last write wins per animal id.
func (c *Cache) Put(ctx context.Context, entries []models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cached_animals (animal_id, tag_number, barcode, snapshot, refreshed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(animal_id) DO UPDATE SET
			tag_number = excluded.tag_number,
			barcode = excluded.barcode,
			snapshot = excluded.snapshot,
			refreshed_at = excluded.refreshed_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare cache upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		snapshot, err := json.Marshal(entry.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			entry.AnimalID,
			entry.TagNumber,
			entry.Barcode,
			string(snapshot),
			entry.RefreshedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert cache entry %s: %w", entry.AnimalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache upsert: %w", err)
	}
	return nil
}

// Get looks up by primary key.
func (c *Cache) Get(ctx context.Context, animalID string) (*models.CacheEntry, error) {
	query := `SELECT animal_id, tag_number, barcode, snapshot, refreshed_at
	          FROM cached_animals WHERE animal_id = ?`
	return c.scanOne(c.db.QueryRowContext(ctx, query, animalID))
}

// FindByAltKey resolves a scanned code against ear tag or barcode. Both keys
// point at the same row a primary lookup would return.
func (c *Cache) FindByAltKey(ctx context.Context, code string) (*models.CacheEntry, error) {
	query := `SELECT animal_id, tag_number, barcode, snapshot, refreshed_at
	          FROM cached_animals WHERE tag_number = ? OR (barcode != '' AND barcode = ?)`
	return c.scanOne(c.db.QueryRowContext(ctx, query, code, code))
}

func (c *Cache) scanOne(row *sql.Row) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var snapshot string
	var refreshedAt int64

	err := row.Scan(&entry.AnimalID, &entry.TagNumber, &entry.Barcode, &snapshot, &refreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &entry.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	entry.RefreshedAt = time.Unix(0, refreshedAt).UTC()
	return &entry, nil
}

// RefreshFromHerd replaces cached identity data with the latest online bulk
// read.
func (c *Cache) RefreshFromHerd(ctx context.Context, animals []*models.Animal) error {
	now := time.Now().UTC()
	entries := make([]models.CacheEntry, 0, len(animals))
	for _, animal := range animals {
		entries = append(entries, models.CacheEntry{
			AnimalID:    animal.ID.String(),
			TagNumber:   animal.TagNumber,
			Barcode:     animal.Barcode,
			Snapshot:    *animal,
			RefreshedAt: now,
		})
	}
	return c.Put(ctx, entries)
}
