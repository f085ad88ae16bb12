package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

// migrationOrder lists tables parents first so foreign keys resolve.
var migrationOrder = []any{
	&model.Gate{},
	&model.Contractor{},
	&model.Factory{},
	&model.User{},
	&model.Truck{},
}

// Migrate creates or updates the schema: unique indexes on users.email,
// reference names and trucks.plate_number, and RESTRICT foreign keys from
// trucks (and users.gate_id) to their references.
func Migrate(dsn string, log *logrus.Logger) error {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	db = db.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci")
	for _, m := range migrationOrder {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
		log.WithField("model", fmt.Sprintf("%T", m)).Info("migrated")
	}
	return nil
}
