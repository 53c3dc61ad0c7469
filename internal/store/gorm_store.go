package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateKey indicates an insert collided with an existing unique key.
	ErrDuplicateKey = errors.New("store: duplicate key")
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("store: document not found")

	errMissingDatabase = errors.New("store: database handle is required")
)

// IDProvider abstracts document id generation so tests can inject
// deterministic ids.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

func (uuidProvider) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewUUIDProvider returns an IDProvider backed by random UUIDs.
func NewUUIDProvider() IDProvider {
	return uuidProvider{}
}

// GormStoreConfig describes the dependencies for the gorm-backed store.
type GormStoreConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
}

// GormStore implements Store on top of a single documents table. Single-
// document atomicity comes from running every mutator inside one transaction
// against a single-writer SQLite connection.
type GormStore struct {
	db         *gorm.DB
	idProvider IDProvider
	clock      func() time.Time
}

// NewGormStore constructs the store and validates its dependencies.
func NewGormStore(cfg GormStoreConfig) (*GormStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &GormStore{db: cfg.Database, idProvider: idProvider, clock: clock}, nil
}

func (s *GormStore) Insert(ctx context.Context, collection, uniqueKey string, doc interface{}) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("store: encode document: %w", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", fmt.Errorf("store: generate id: %w", err)
	}
	record := Document{
		Collection: collection,
		ID:         id,
		Body:       datatypes.JSON(body),
	}
	if uniqueKey != "" {
		record.UniqueKey = &uniqueKey
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isDuplicateKeyError(err) {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("store: insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *GormStore) FindOne(ctx context.Context, collection, id string) (Document, error) {
	var record Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: find in %s: %w", collection, err)
	}
	return record, nil
}

func (s *GormStore) FindByKey(ctx context.Context, collection, uniqueKey string) (Document, error) {
	var record Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND unique_key = ?", collection, uniqueKey).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: find in %s by key: %w", collection, err)
	}
	return record, nil
}

func (s *GormStore) FindAll(ctx context.Context, collection string) ([]Document, error) {
	var records []Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	return records, nil
}

func (s *GormStore) UpdateOne(ctx context.Context, collection, id string, patch map[string]interface{}) (int64, error) {
	modified := int64(0)
	err := s.mutate(ctx, collection, id, func(body map[string]interface{}) error {
		for path, value := range patch {
			normalized, err := normalizeValue(value)
			if err != nil {
				return err
			}
			if err := setField(body, path, normalized); err != nil {
				return err
			}
		}
		modified = 1
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return modified, err
}

func (s *GormStore) DeleteOne(ctx context.Context, collection, id string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&Document{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: delete from %s: %w", collection, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) IncrementField(ctx context.Context, collection, id, path string, delta float64) error {
	return s.mutate(ctx, collection, id, func(body map[string]interface{}) error {
		return addToField(body, path, delta)
	})
}

func (s *GormStore) PushArray(ctx context.Context, collection, id, path string, values ...interface{}) error {
	return s.mutate(ctx, collection, id, func(body map[string]interface{}) error {
		return appendToArray(body, path, values...)
	})
}

func (s *GormStore) PullArray(ctx context.Context, collection, id, path string, value interface{}) (int, error) {
	removed := 0
	err := s.mutate(ctx, collection, id, func(body map[string]interface{}) error {
		count, err := removeFromArray(body, path, value)
		removed = count
		return err
	})
	return removed, err
}

// Mutate exposes the single-document read-modify-write primitive.
func (s *GormStore) Mutate(ctx context.Context, collection, id string, apply func(map[string]interface{}) error) error {
	return s.mutate(ctx, collection, id, apply)
}

// mutate performs a read-modify-write of one document under a transaction.
func (s *GormStore) mutate(ctx context.Context, collection, id string, apply func(map[string]interface{}) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record Document
		err := tx.Where("collection = ? AND doc_id = ?", collection, id).
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: load %s/%s: %w", collection, id, err)
		}
		body := map[string]interface{}{}
		if len(record.Body) > 0 {
			if err := json.Unmarshal(record.Body, &body); err != nil {
				return fmt.Errorf("store: decode %s/%s: %w", collection, id, err)
			}
		}
		if err := apply(body); err != nil {
			return err
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("store: encode %s/%s: %w", collection, id, err)
		}
		record.Body = datatypes.JSON(encoded)
		record.UpdatedAt = s.clock()
		return tx.Where("collection = ? AND doc_id = ?", collection, id).
			Select("body", "updated_at").
			Updates(&record).Error
	})
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
