package database

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papermill-forge/papermill/pkg/models"
)

func TestConnectSqliteAndMigrate(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite"}, hclog.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	// The migrated schema accepts the core models.
	doc := &models.Document{TenantID: 1, FolderID: 1, FileName: "a.txt"}
	require.NoError(t, db.Create(doc).Error)

	found, err := models.FindDocumentByID(db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", found.FileName)
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "oracle"}, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestConnectionPoolDefaults(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite"}, nil)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)

	stats := sqlDB.Stats()
	assert.Equal(t, 25, stats.MaxOpenConnections)
}

func TestConnectionPoolCustomSettings(t *testing.T) {
	db, err := Connect(Config{
		Driver:          "sqlite",
		MaxIdleConns:    3,
		MaxOpenConns:    7,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}, nil)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)

	stats := sqlDB.Stats()
	assert.Equal(t, 7, stats.MaxOpenConnections)
}
