// Package tester opens throwaway sqlite databases carrying the full schema,
// for repository, service and handler tests.
package tester

import (
	"path/filepath"
	"testing"

	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Migrate creates the schema on a gorm handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// DB returns a migrated database in the test's temp dir. It is closed when the
// test ends.
func DB(t testing.TB) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alpha.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=1"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := database.Wrap(gdb, zerolog.Nop())
	if err != nil {
		t.Fatalf("wrap db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
