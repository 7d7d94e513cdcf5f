package database

import (
	"context"
	"testing"

	"launchpad/internal/config"
	"launchpad/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_Defaults(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("db", "5432", "u", "p", "launchpad", "")
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=launchpad sslmode=disable", dsn)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		wantSQL    bool
		wantAuto   bool
		wantErrMsg string
	}{
		{"hybrid dev", config.Config{Env: "development"}, true, true, ""},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, ""},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, ""},
		{"auto dev", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, ""},
		{"auto prod refused", config.Config{Env: "prod", DBSchemaMode: "auto"}, false, false, "refusing"},
		{"unknown", config.Config{DBSchemaMode: "yolo"}, false, false, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErrMsg != "" {
				assert.ErrorContains(t, err, tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestGetSchemaStatus_ReportsMissingCatalogTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	cfg := &config.Config{Env: "development", DBSchemaMode: SchemaModeAuto}

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.Contains(t, status.MissingTables, "products")
	assert.Contains(t, status.MissingTables, "product_comments")
	assert.Contains(t, status.MissingTables, "image_variants")
	assert.Empty(t, status.PendingMigrations, "auto mode does not read the migration table")

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}))
	status, err = GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.NotContains(t, status.MissingTables, "products")
	assert.Contains(t, status.MissingTables, "product_tags")

	require.NoError(t, runAutoMigrate(db))
	status, err = GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.Empty(t, status.MissingTables)
}
