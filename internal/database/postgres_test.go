package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestBuildConnectionString(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the taskcache database", func(t *testing.T) {
		t.Parallel()

		require.Equal(t,
			"user=user password=pass database=taskcache host=db.internal",
			BuildConnectionString("user", "pass", "db.internal", ""),
		)
	})

	t.Run("uses the configured database name", func(t *testing.T) {
		t.Parallel()

		require.Equal(t,
			"user=user password=pass database=custom host=db.internal",
			BuildConnectionString("user", "pass", "db.internal", "custom"),
		)
	})
}

func TestGetSchemaName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "taskcache", GetSchemaName(false))
	require.Equal(t, "taskcache_test", GetSchemaName(true))
}

func TestPostgresConnection(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping db tests in short mode.")
	}

	t.Run("NewPostgresDatabase connects and pings", func(t *testing.T) {
		t.Parallel()

		db, err := NewPostgresDatabase(LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		require.NotNil(t, db)
	})

	t.Run("createDatabaseIfNotExists", func(t *testing.T) {
		t.Parallel()

		db, err := sqlx.Connect("postgres", LOCAL_CONNECTION_STRING)
		require.NoError(t, err)

		t.Run("existing databases are left alone", func(t *testing.T) {
			t.Parallel()

			require.NoError(t, createDatabaseIfNotExists(db, "postgres"))
			require.NoError(t, createDatabaseIfNotExists(db, DB_NAME))
		})

		t.Run("missing databases are created", func(t *testing.T) {
			t.Parallel()

			dbName := fmt.Sprintf("zz_test_db_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
			require.NoError(t, createDatabaseIfNotExists(db, dbName))
		})
	})
}
