package blocksync

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type schemaMigration struct {
	Name      string `gorm:"primaryKey;size:190"`
	AppliedAt int64  `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

type migration struct {
	name  string
	apply func(*gorm.DB) error
}

// migrations run in order, each exactly once. Steps must be idempotent so a
// replay after a crash between apply and record is harmless.
var migrations = []migration{
	{name: "001_create_membership_tables", apply: migrateCreateMembershipTables},
	{name: "002_membership_indexes", apply: migrateMembershipIndexes},
}

func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		var rec schemaMigration
		err := db.Where("name = ?", m.name).Take(&rec).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("checking migration %s: %w", m.name, err)
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		if err := db.Create(&schemaMigration{Name: m.name, AppliedAt: time.Now().UTC().Unix()}).Error; err != nil {
			return fmt.Errorf("recording migration %s: %w", m.name, err)
		}
	}

	return nil
}

func migrateCreateMembershipTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&ListMembership{},
		&ListSyncState{},
	)
}

func migrateMembershipIndexes(db *gorm.DB) error {
	mig := db.Migrator()
	if !mig.HasIndex(&ListMembership{}, "idx_handle_list") {
		if err := mig.CreateIndex(&ListMembership{}, "idx_handle_list"); err != nil {
			return err
		}
	}
	return nil
}
