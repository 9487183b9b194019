package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CoderParva/Onebox/internal/database/models"
)

// setupLogTestDB creates a test database for log service tests
func setupLogTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "log_service_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	db.AutoMigrate(&models.Log{})

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

func TestLogLevelFiltering(t *testing.T) {
	db, cleanup := setupLogTestDB(t)
	defer cleanup()

	service := NewLogServiceWithLevel(db, "WARN")

	service.LogDebug(models.LogModuleIngest, "test", "debug entry", nil)
	service.LogInfo(models.LogModuleIngest, "test", "info entry", nil)
	service.LogWarn(models.LogModuleIngest, "test", "warn entry", nil)
	service.LogError(models.LogModuleIngest, "test", "error entry", nil)

	logs, err := service.Recent(0, "")
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d entries, want only WARN and ERROR", len(logs))
	}
	for _, entry := range logs {
		if entry.Level != string(models.LogLevelWarn) && entry.Level != string(models.LogLevelError) {
			t.Errorf("unexpected level %q recorded", entry.Level)
		}
	}
}

func TestRecentFiltersByLevel(t *testing.T) {
	db, cleanup := setupLogTestDB(t)
	defer cleanup()

	service := NewLogService(db)
	service.LogInfo(models.LogModuleAPI, "a", "first", nil)
	service.LogError(models.LogModuleAPI, "b", "second", nil)
	service.LogInfo(models.LogModuleAPI, "c", "third", nil)

	logs, err := service.Recent(0, "ERROR")
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "second" {
		t.Errorf("level filter returned %v", logs)
	}
}

func TestNilDatabaseTolerated(t *testing.T) {
	service := NewLogService(nil)

	if err := service.LogInfo(models.LogModuleCLI, "test", "unrecorded", nil); err != nil {
		t.Errorf("log against nil db errored: %v", err)
	}
	logs, err := service.Recent(10, "")
	if err != nil {
		t.Errorf("recent against nil db errored: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("got %d entries from nil db", len(logs))
	}
}

func TestProperty_AllRecordedEntriesRetrievable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("recorded_entries_come_back_from_recent", prop.ForAll(
		func(numEntries int) bool {
			if numEntries < 1 || numEntries > 50 {
				return true
			}

			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogServiceWithLevel(db, "DEBUG")
			for i := 0; i < numEntries; i++ {
				if err := service.LogInfo(models.LogModuleClassify, "test", "entry", map[string]interface{}{"i": i}); err != nil {
					return false
				}
			}

			logs, err := service.Recent(100, "")
			return err == nil && len(logs) == numEntries
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
