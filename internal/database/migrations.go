package database

import (
	"errors"
	"time"

	"github.com/gadgetswap/backend/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillRentalOrderStatus = "2026-07-14_backfill_rental_order_status"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillRentalOrderStatus, apply: backfillRentalOrderStatus},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillRentalOrderStatus stamps "active" on rental orders written before
// the status field existed.
func backfillRentalOrderStatus(db *gorm.DB) error {
	return db.Exec(
		"UPDATE documents SET body = json_set(body, '$.status', 'active') WHERE collection = ? AND json_extract(body, '$.status') IS NULL",
		store.CollectionRentalOrders,
	).Error
}
